package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestSessionErrorKinds(t *testing.T) {
	Convey("Given a wrapped backend failure", t, func() {
		cause := stderrors.New("connection refused")
		err := fmt.Errorf("save: %w", ErrBackendFailure.WithMessagef("failed to update row").Wrap(cause))

		Convey("It should match its own kind only", func() {
			So(stderrors.Is(err, ErrBackendFailure), ShouldBeTrue)
			So(stderrors.Is(err, ErrEncodingFailure), ShouldBeFalse)
			So(stderrors.Is(err, ErrInvalidArgument), ShouldBeFalse)
		})

		Convey("It should expose the cause", func() {
			So(stderrors.Is(err, cause), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "failed to update row: connection refused")
		})

		Convey("It should leave the sentinel untouched", func() {
			So(ErrBackendFailure.Err, ShouldBeNil)
			So(ErrBackendFailure.Message, ShouldEqual, "backend operation failed")
		})
	})
}

func TestRetryWithBackoff(t *testing.T) {
	fast := &RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Millisecond,
		MaxDelay:      2 * time.Millisecond,
		BackoffFactor: 2,
		Retryable:     IsBackendFailure,
	}

	Convey("Given a function that fails with a backend error once", t, func() {
		calls := 0
		err := RetryWithBackoff(context.Background(), fast, func() error {
			calls++
			if calls == 1 {
				return ErrBackendFailure.Wrap(stderrors.New("timeout"))
			}
			return nil
		})

		Convey("It should succeed on the second attempt", func() {
			So(err, ShouldBeNil)
			So(calls, ShouldEqual, 2)
		})
	})

	Convey("Given a function that fails with an encoding error", t, func() {
		calls := 0
		err := RetryWithBackoff(context.Background(), fast, func() error {
			calls++
			return ErrEncodingFailure
		})

		Convey("It should not retry", func() {
			So(calls, ShouldEqual, 1)
			So(stderrors.Is(err, ErrEncodingFailure), ShouldBeTrue)
		})
	})

	Convey("Given a function that always fails with a backend error", t, func() {
		calls := 0
		err := RetryWithBackoff(context.Background(), fast, func() error {
			calls++
			return ErrBackendFailure
		})

		Convey("It should give up after MaxAttempts", func() {
			So(calls, ShouldEqual, 3)
			So(stderrors.Is(err, ErrBackendFailure), ShouldBeTrue)
		})
	})

	Convey("Given a cancelled context", t, func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := RetryWithBackoff(ctx, fast, func() error {
			calls++
			return ErrBackendFailure
		})

		Convey("It should stop after the first attempt", func() {
			So(calls, ShouldEqual, 1)
			So(err, ShouldNotBeNil)
		})
	})
}

package metrics

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestNewStoreMetrics(t *testing.T) {
	Convey("When creating a new metrics instance", t, func() {
		m := NewStoreMetrics()
		Convey("Then it should not be nil", func() {
			So(m, ShouldNotBeNil)
		})
		Convey("Then averages should be zero instead of NaN", func() {
			So(m.GetMetrics()["avg_load_time"], ShouldEqual, 0.0)
			So(m.GetMetrics()["avg_sweep_time"], ShouldEqual, 0.0)
		})
	})
}

func TestRecordLoad(t *testing.T) {
	Convey("Given a metrics instance", t, func() {
		m := NewStoreMetrics()
		m.RecordLoad(true, time.Second)
		m.RecordLoad(false, time.Second)
		Convey("Then load stats are recorded", func() {
			So(m.Loads, ShouldEqual, 2)
			So(m.LoadMisses, ShouldEqual, 1)
			So(m.GetMetrics()["avg_load_time"], ShouldEqual, 1.0)
		})
	})
}

func TestRecordSave(t *testing.T) {
	Convey("Given a metrics instance", t, func() {
		m := NewStoreMetrics()
		m.RecordSave(true, time.Millisecond)
		m.RecordSave(false, time.Millisecond)
		Convey("Then failed saves are counted separately", func() {
			So(m.Saves, ShouldEqual, 2)
			So(m.FailedSaves, ShouldEqual, 1)
		})
	})
}

func TestRecordSweep(t *testing.T) {
	Convey("Given a metrics instance", t, func() {
		m := NewStoreMetrics()
		m.RecordSweep(3, time.Second)
		m.RecordSweep(0, time.Second)
		m.RecordDelete()
		m.RecordBackendError()
		Convey("Then sweep metrics update", func() {
			So(m.Sweeps, ShouldEqual, 2)
			So(m.SweptSessions, ShouldEqual, 3)
			So(m.Deletes, ShouldEqual, 1)
			So(m.BackendErrors, ShouldEqual, 1)
		})
	})
}

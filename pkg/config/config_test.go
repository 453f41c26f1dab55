package config

import (
	stderrors "errors"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
	"github.com/spf13/viper"
	"github.com/theapemachine/sqlsession/pkg/errors"
)

func TestLoad(t *testing.T) {
	Convey("Given an empty viper instance", t, func() {
		v := viper.New()

		Convey("It should fall back to the defaults", func() {
			config, err := Load(v)
			So(err, ShouldBeNil)
			So(config.Database.Driver, ShouldEqual, "sqlite")
			So(config.Session.MaxInactiveInterval, ShouldEqual, 1800)
			So(config.Session.Codec, ShouldEqual, "gob")
			So(config.Sweep.Interval, ShouldEqual, time.Minute)
			So(config.Server.CookieName, ShouldEqual, "SESSION")
		})

		Convey("It should pick up overrides", func() {
			v.Set("database.driver", "postgres")
			v.Set("database.dsn", "postgres://localhost/sessions")
			v.Set("session.maxInactiveInterval", -1)
			v.Set("session.codec", "cbor")
			v.Set("sweep.interval", "30s")

			config, err := Load(v)
			So(err, ShouldBeNil)
			So(config.Database.Driver, ShouldEqual, "postgres")
			So(config.Session.MaxInactiveInterval, ShouldEqual, -1)
			So(config.Session.Codec, ShouldEqual, "cbor")
			So(config.Sweep.Interval, ShouldEqual, 30*time.Second)
		})

		Convey("It should reject invalid values", func() {
			v.Set("database.driver", "oracle")
			v.Set("server.port", 70000)

			config, err := Load(v)
			So(config, ShouldBeNil)
			So(stderrors.Is(err, errors.ErrInvalidArgument), ShouldBeTrue)
			So(err.Error(), ShouldContainSubstring, "database.driver")
		})

		Convey("It should reject unknown codecs", func() {
			v.Set("session.codec", "xml")

			_, err := Load(v)
			So(err, ShouldNotBeNil)
		})
	})
}

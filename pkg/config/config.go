package config

import (
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/cohesivestack/valgo"
	"github.com/spf13/viper"
	"github.com/theapemachine/sqlsession/pkg/codec"
	"github.com/theapemachine/sqlsession/pkg/errors"
	"github.com/theapemachine/sqlsession/pkg/logging"
	"github.com/theapemachine/sqlsession/pkg/session"
	"github.com/theapemachine/sqlsession/pkg/sweep"
)

type Database struct {
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
}

type Session struct {
	MaxInactiveInterval int    `mapstructure:"maxInactiveInterval"`
	Codec               string `mapstructure:"codec"`
}

type Sweep struct {
	Interval time.Duration `mapstructure:"interval"`
}

type Server struct {
	Host       string `mapstructure:"host"`
	Port       int    `mapstructure:"port"`
	CookieName string `mapstructure:"cookieName"`
	// APIKey protects the admin API when set.
	APIKey string `mapstructure:"apiKey"`
}

/*
Config is the typed view of the viper configuration every command shares.
*/
type Config struct {
	Database Database       `mapstructure:"database"`
	Session  Session        `mapstructure:"session"`
	Sweep    Sweep          `mapstructure:"sweep"`
	Server   Server         `mapstructure:"server"`
	Logging  logging.Config `mapstructure:"logging"`
}

/*
SetDefaults registers the values used when neither the config file nor the
environment provides a key.
*/
func SetDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.dsn", "sessions.db")
	v.SetDefault("session.maxInactiveInterval", session.DefaultMaxInactiveInterval)
	v.SetDefault("session.codec", "gob")
	v.SetDefault("sweep.interval", sweep.DefaultInterval)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3210)
	v.SetDefault("server.cookieName", "SESSION")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
}

/*
Load reads and validates the configuration held by v.
*/
func Load(v *viper.Viper) (*Config, error) {
	SetDefaults(v)

	config := &Config{}

	if err := v.Unmarshal(config); err != nil {
		return nil, errors.ErrInvalidArgument.WithMessagef("failed to read configuration").Wrap(err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func (config *Config) Validate() error {
	validation := valgo.Is(
		valgo.String(config.Database.Driver, "database.driver").InSlice([]string{"sqlite", "postgres"}),
	).Is(
		valgo.String(config.Database.DSN, "database.dsn").Not().Blank(),
	).Is(
		valgo.String(config.Session.Codec, "session.codec").InSlice(codec.Names()),
	).Is(
		valgo.Int64(int64(config.Sweep.Interval), "sweep.interval").GreaterThan(0),
	).Is(
		valgo.Int(config.Server.Port, "server.port").Between(1, 65535),
	).Is(
		valgo.String(config.Server.CookieName, "server.cookieName").Not().Blank(),
	).Is(
		valgo.String(config.Logging.Format, "logging.format").InSlice(logging.Formats()),
	)

	if !validation.Valid() {
		fields := slices.Sorted(maps.Keys(validation.Errors()))

		return errors.ErrInvalidArgument.WithMessagef(
			"invalid configuration: %s", strings.Join(fields, ", "),
		).Wrap(validation.Error())
	}

	return nil
}

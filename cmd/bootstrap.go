package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/spf13/viper"
	"github.com/theapemachine/sqlsession/pkg/codec"
	"github.com/theapemachine/sqlsession/pkg/config"
	"github.com/theapemachine/sqlsession/pkg/logging"
	"github.com/theapemachine/sqlsession/pkg/stores"
)

/*
bootstrap loads the configuration, sets up logging and opens the session
store every command works against. Extra options are applied after the configured
ones. The returned close function releases the database and the log file.
*/
func bootstrap(
	ctx context.Context, options ...stores.SessionStoreOption,
) (*config.Config, *stores.SessionStore, func(), error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, nil, nil, err
	}

	if err = logging.Init(cfg.Logging); err != nil {
		return nil, nil, nil, err
	}

	attributeCodec, err := codec.ByName(cfg.Session.Codec)
	if err != nil {
		logging.Close()
		return nil, nil, nil, err
	}

	handle, err := stores.Open(ctx, cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		logging.Close()
		return nil, nil, nil, err
	}

	options = append([]stores.SessionStoreOption{
		stores.WithDefaultMaxInactiveInterval(cfg.Session.MaxInactiveInterval),
		stores.WithCodec(attributeCodec),
		stores.WithDestroyedListener(func(_ context.Context, sessionID string) {
			log.Debug("session destroyed", "session_id", sessionID)
		}),
	}, options...)

	store, err := stores.NewSessionStore(ctx, handle, options...)
	if err != nil {
		handle.Close()
		logging.Close()
		return nil, nil, nil, fmt.Errorf("failed to prepare session store: %w", err)
	}

	return cfg, store, func() {
		if err := handle.Close(); err != nil {
			log.Error("failed to close database", "error", err)
		}

		logging.Close()
	}, nil
}

package cmd

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/theapemachine/sqlsession/pkg/service"
	"github.com/theapemachine/sqlsession/pkg/service/sse"
	"github.com/theapemachine/sqlsession/pkg/stores"
	"github.com/theapemachine/sqlsession/pkg/sweep"
	"golang.org/x/sync/errgroup"
)

var (
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the session API and the expiry sweep",
		Long:  longServe,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			broker := sse.NewBroker()

			cfg, store, closeStore, err := bootstrap(
				ctx, stores.WithDestroyedListener(broker.SessionDestroyed),
			)
			if err != nil {
				return err
			}

			defer closeStore()

			var auth service.AuthChecker
			if cfg.Server.APIKey != "" {
				auth = service.APIKeyAuth{Key: cfg.Server.APIKey}
			}

			srv := service.NewSessionServer(store, cfg.Server, auth, service.WithEvents(broker))
			scheduler := sweep.NewScheduler(store, cfg.Sweep.Interval)

			group, groupCtx := errgroup.WithContext(ctx)

			group.Go(srv.Start)

			group.Go(func() error {
				return scheduler.Run(groupCtx)
			})

			group.Go(func() error {
				<-groupCtx.Done()

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				log.Info("shutting down")
				broker.Close()

				return srv.Shutdown(shutdownCtx)
			})

			return group.Wait()
		},
	}
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 3210, "Port to serve on")
	serveCmd.Flags().StringP("host", "H", "0.0.0.0", "Host address to bind to")

	_ = viper.BindPFlag("server.port", serveCmd.Flags().Lookup("port"))
	_ = viper.BindPFlag("server.host", serveCmd.Flags().Lookup("host"))
}

var longServe = `
Serve the session API and sweep expired sessions in the background.

Examples:
  # Serve on port 8080 against the configured database
  sqlsession serve --port 8080

  # Serve against Postgres
  sqlsession serve --database-driver postgres --database-dsn postgres://localhost/sessions
`

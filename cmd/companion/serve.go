package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/companion"
	"github.com/aretw0/companion/internal/cli"
	httpadapter "github.com/aretw0/companion/pkg/adapters/http"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Exposes the companion over HTTP: intents, queries, a state snapshot,
a server-sent event stream of state diffs and Prometheus metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
			cfg.Server.Addr = addr
		}
		logger, err := cli.NewLogger(cfg.Log.Level, false)
		if err != nil {
			return err
		}

		rt, err := cli.BuildApp(sc, cfg, logger)
		if err != nil {
			return err
		}

		handler := httpadapter.NewServer(rt.App,
			httpadapter.WithLogger(logger.With("component", "http")),
			httpadapter.WithMetricsHandler(rt.MetricsHandler),
		)
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		cli.NewRenderer(cmd.OutOrStdout()).Banner(companion.Version)

		serverErrors := make(chan error, 1)
		go func() {
			logger.Info("Starting Companion server", "addr", srv.Addr, "storage", cfg.Storage.Backend)
			serverErrors <- srv.ListenAndServe()
		}()

		var runErr error
		select {
		case err := <-serverErrors:
			if !errors.Is(err, http.ErrServerClosed) {
				runErr = fmt.Errorf("server error: %w", err)
			}
		case <-sc.Done():
			logger.Info("Shutting down", "signal", sc.Signal())
		}

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		// Streams never end on their own, so close them before Shutdown waits on handlers.
		handler.Close()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("Graceful shutdown did not complete", "err", err, "timeout", shutdownTimeout)
			_ = srv.Close()
		}
		if err := rt.App.Close(ctx); err != nil {
			logger.Error("Failed to close companion", "err", err)
			runErr = errors.Join(runErr, err)
		}
		logger.Info("Companion server stopped")
		return runErr
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", "", "Address to listen on (overrides server.addr)")
}

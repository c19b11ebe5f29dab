package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danmuck/netchat/internal/logging"
	"github.com/danmuck/netchat/internal/observability"
	"github.com/danmuck/netchat/internal/server"
	"github.com/spf13/cobra"
)

func serveCmd() *cobra.Command {
	var (
		configPath string
		host       string
		port       int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the chat server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.ListenHost = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "TOML config file")
	cmd.Flags().StringVar(&host, "host", "", "listen address (default: outbound interface)")
	cmd.Flags().IntVar(&port, "port", server.DefaultPort, "listen port")
	return cmd
}

func runServe(ctx context.Context, cfg appConfig) error {
	srv, err := server.New(cfg.Server)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		stop := serveMetrics(cfg.MetricsAddr)
		defer stop()
	}
	return srv.Run(ctx)
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string) func() {
	log := logging.Component("metrics")
	hs := &http.Server{
		Addr:              addr,
		Handler:           observability.NewRouter("netchat", log),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info().Str("addr", addr).Msg("metrics listening")
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = hs.Shutdown(ctx)
	}
}

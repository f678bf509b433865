package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/keagan/scenesplit/internal/api"
	"github.com/keagan/scenesplit/internal/config"
	"github.com/keagan/scenesplit/internal/logging"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/internal/session"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		if serveAddr != "" {
			cfg.Server.Addr = serveAddr
		}

		c, err := newComponents(cfg)
		if err != nil {
			return err
		}

		store, err := session.NewStore(log.Logger, newOrchestrator(cfg, c, 0), session.Options{
			TTL:           cfg.Server.BatchTTL,
			SweepSchedule: cfg.Server.SweepSchedule,
		})
		if err != nil {
			return err
		}
		defer store.Close()

		server := api.NewServer(api.ServerConfig{
			Addr:        cfg.Server.Addr,
			Store:       store,
			Logger:      logging.WithComponent("api"),
			StartTime:   time.Now(),
			UploadDir:   cfg.TempDir,
			MaxUploadMB: cfg.Server.MaxUploadMB,
			Defaults: scene.BatchContext{
				Sensitivity: cfg.Detection.DefaultSensitivity,
				Format:      scene.FormatClip,
				Options:     cfg.ExportDefaults(),
			},
		})

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
}

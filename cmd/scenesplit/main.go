package main

import (
	"context"
	"fmt"
	"os"

	"github.com/keagan/scenesplit/internal/config"
	"github.com/keagan/scenesplit/internal/detect"
	"github.com/keagan/scenesplit/internal/export"
	"github.com/keagan/scenesplit/internal/ffmpeg"
	"github.com/keagan/scenesplit/internal/logging"
	"github.com/keagan/scenesplit/internal/pipeline"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var (
	cfgFile string
	verbose bool
)

func main() {
	ctx := context.Background()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "scenesplit",
	Short: "scenesplit - cut videos into one file per scene",
	Long:  "Detects scene changes in videos and exports every scene as its own clip or animated image, with thumbnails and ZIP bundles.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Load config
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}

		// Initialize logging
		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logging.Init(level, cfg.Log.Format)

		// Store config in context
		ctx := config.WithConfig(cmd.Context(), cfg)
		cmd.SetContext(ctx)

		return nil
	},
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./scenesplit.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)

	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// components wires the ffmpeg-backed detector and exporter from config
type components struct {
	detector *detect.Detector
	exporter *export.Exporter
}

func newComponents(cfg *config.Config) (*components, error) {
	exec, err := ffmpeg.New(log.Logger, ffmpeg.Options{
		FFmpegPath:  cfg.FFmpeg.BinaryPath,
		FFprobePath: cfg.FFmpeg.ProbePath,
		Threads:     cfg.FFmpeg.Threads,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize ffmpeg: %w", err)
	}

	detector := detect.New(log.Logger, exec, detect.Config{
		MinSceneLength: cfg.Detection.MinSceneLength,
	})

	exporter := export.New(log.Logger, exec, export.Config{
		MinArtifactBytes: cfg.Export.MinArtifactBytes,
		ThumbnailQuality: cfg.Export.ThumbnailQuality,
		ThumbnailWidth:   cfg.Export.ThumbnailWidth,
		Defaults:         cfg.ExportDefaults(),
	})

	return &components{detector: detector, exporter: exporter}, nil
}

func newOrchestrator(cfg *config.Config, c *components, workers int) *pipeline.Orchestrator {
	if workers <= 0 {
		workers = cfg.Workers
	}
	return pipeline.New(log.Logger, c.detector, c.exporter, pipeline.Config{
		Workers:        workers,
		TempDir:        cfg.TempDir,
		DetectionShare: pipeline.DefaultConfig().DetectionShare,
	})
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Config management commands",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.FromContext(cmd.Context())
		data, err := yaml.Marshal(cfg)
		if err != nil {
			return err
		}
		_, err = cmd.OutOrStdout().Write(data)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write the default configuration to a file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "scenesplit.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists", path)
		}
		if err := config.Default().Save(path); err != nil {
			return err
		}
		log.Info().Str("path", path).Msg("config written")
		return nil
	},
}

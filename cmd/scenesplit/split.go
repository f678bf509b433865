package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/keagan/scenesplit/internal/archive"
	"github.com/keagan/scenesplit/internal/config"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/internal/termui"
	"github.com/keagan/scenesplit/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var splitFlags struct {
	sensitivity int
	format      string
	audio       bool
	out         string
	zip         string
	workers     int
}

var splitCmd = &cobra.Command{
	Use:   "split [videos...]",
	Short: "Detect scenes and export each one as its own file",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSplit,
}

func init() {
	f := splitCmd.Flags()
	f.IntVarP(&splitFlags.sensitivity, "sensitivity", "s", 0, fmt.Sprintf("scene sensitivity %d-%d, lower finds more scenes (default from config)", scene.MinSensitivity, scene.MaxSensitivity))
	f.StringVarP(&splitFlags.format, "format", "f", "clip", "output format: clip or gif")
	f.BoolVar(&splitFlags.audio, "audio", true, "keep audio in clips")
	f.StringVarP(&splitFlags.out, "out", "o", "scenes", "output directory")
	f.StringVar(&splitFlags.zip, "zip", "", "also bundle every exported scene into this ZIP file")
	f.IntVarP(&splitFlags.workers, "workers", "w", 0, "concurrent scene exports (default from config)")
}

func runSplit(cmd *cobra.Command, args []string) error {
	cfg := config.FromContext(cmd.Context())

	format, err := scene.ParseFormat(splitFlags.format)
	if err != nil {
		return err
	}

	sensitivity := cfg.Detection.DefaultSensitivity
	if cmd.Flags().Changed("sensitivity") {
		sensitivity = splitFlags.sensitivity
	}

	options := cfg.ExportDefaults()
	if cmd.Flags().Changed("audio") {
		options.IncludeAudio = splitFlags.audio
	}

	videos := make([]scene.SourceVideo, 0, len(args))
	for _, path := range args {
		v, err := scene.FromFile(path)
		if err != nil {
			return err
		}
		videos = append(videos, v)
	}

	c, err := newComponents(cfg)
	if err != nil {
		return err
	}
	orchestrator := newOrchestrator(cfg, c, splitFlags.workers)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	bar := termui.NewProgress(cmd.ErrOrStderr(), 40)
	batch := &scene.BatchContext{
		Videos:      videos,
		Sensitivity: sensitivity,
		Format:      format,
		Options:     options,
		OnEvent:     bar.Handle,
	}

	start := time.Now()
	result, runErr := orchestrator.RunBatch(ctx, batch)
	bar.Done()
	if result == nil {
		return runErr
	}

	if err := writeResult(splitFlags.out, result); err != nil {
		return err
	}

	if splitFlags.zip != "" && len(result.Manifest) > 0 {
		data, err := archive.BuildAll(result.Manifest)
		if err != nil {
			return err
		}
		if err := os.WriteFile(splitFlags.zip, data, 0o644); err != nil {
			return fmt.Errorf("failed to write archive: %w", err)
		}
		log.Info().Str("path", splitFlags.zip).Int("entries", len(result.Manifest)).Msg("archive written")
	}

	fmt.Fprintln(cmd.OutOrStdout(), termui.Summary(result))

	log.Info().
		Str("out", splitFlags.out).
		Int("scenes", result.Successes()).
		Dur("elapsed", time.Since(start)).
		Msg("split complete")

	if runErr != nil {
		return runErr
	}
	if result.Successes() == 0 && result.Failures() > 0 {
		return fmt.Errorf("no scenes could be exported")
	}
	return nil
}

// writeResult stores every artifact, its thumbnail and a manifest.json under dir
func writeResult(dir string, result *scene.BatchResult) error {
	if err := util.EnsureDir(dir); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, a := range result.Manifest {
		if err := os.WriteFile(filepath.Join(dir, a.FileName()), a.ArtifactBytes, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.FileName(), err)
		}
		thumb := scene.ThumbnailName(a.BaseName, a.SceneIndex)
		if err := os.WriteFile(filepath.Join(dir, thumb), a.ThumbnailBytes, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", thumb, err)
		}
	}

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, "manifest.json"), data, 0o644)
}

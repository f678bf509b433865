package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/keagan/scenesplit/internal/ffmpeg"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/pkg/util"
	"github.com/rs/zerolog"
)

// Encoder is the subset of the transcoder the exporter drives
type Encoder interface {
	ExtractClip(ctx context.Context, input string, opts ffmpeg.ClipOptions) error
	RenderAnimatedImage(ctx context.Context, input string, opts ffmpeg.AnimatedImageOptions) error
	GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, quality int) error
}

// Config holds exporter settings that stay fixed for the process
type Config struct {
	MinArtifactBytes int64
	ThumbnailQuality int
	ThumbnailWidth   uint
	Defaults         scene.ExportOptions
}

// DefaultConfig returns exporter defaults
func DefaultConfig() Config {
	crf := ffmpeg.DefaultCRF
	return Config{
		MinArtifactBytes: 1024,
		ThumbnailQuality: ffmpeg.DefaultThumbnailQuality,
		ThumbnailWidth:   320,
		Defaults: scene.ExportOptions{
			IncludeAudio: true,
			Preset:       ffmpeg.DefaultPreset,
			CRF:          &crf,
			FPS:          ffmpeg.DefaultGIFFPS,
			Width:        ffmpeg.DefaultGIFWidth,
		},
	}
}

// Request describes one (source, boundary) export
type Request struct {
	SourcePath string
	SourceName string
	BaseName   string
	SceneIndex int
	Boundary   scene.Boundary
	Format     scene.Format
	Options    scene.ExportOptions
	OutDir     string
	// OnProgress, when set, receives the completed fraction of the primary encode
	OnProgress func(frac float64)
}

// Exporter materializes one boundary as an artifact plus thumbnail
type Exporter struct {
	logger  zerolog.Logger
	encoder Encoder
	config  Config
}

// New creates an exporter
func New(logger zerolog.Logger, encoder Encoder, cfg Config) *Exporter {
	return &Exporter{
		logger:  logger.With().Str("component", "exporter").Logger(),
		encoder: encoder,
		config:  cfg,
	}
}

// ExportSegment encodes req.Boundary, validates the output and returns the
// manifest entry. It never returns a partial artifact: any encoder failure is
// an EncodingError and any validation failure is an ExportError.
func (x *Exporter) ExportSegment(ctx context.Context, req Request) (*scene.SceneArtifact, error) {
	if !req.Boundary.Valid() {
		return nil, &scene.ExportError{Source: req.SourceName, SceneIndex: req.SceneIndex,
			Reason: fmt.Sprintf("invalid boundary %v", req.Boundary)}
	}

	opts := x.withDefaults(req.Options)
	outPath := filepath.Join(req.OutDir, scene.FileName(req.BaseName, req.SceneIndex, req.Format))
	thumbPath := filepath.Join(req.OutDir, scene.ThumbnailName(req.BaseName, req.SceneIndex))

	logger := x.logger.With().
		Str("source", req.SourceName).
		Int("scene", req.SceneIndex).
		Str("format", string(req.Format)).
		Float64("start", req.Boundary.Start).
		Float64("end", req.Boundary.End).
		Logger()

	start := util.SecondsToDuration(req.Boundary.Start)
	end := util.SecondsToDuration(req.Boundary.End)

	var err error
	switch req.Format {
	case scene.FormatClip:
		err = x.encoder.ExtractClip(ctx, req.SourcePath, ffmpeg.ClipOptions{
			Start:        start,
			End:          end,
			Output:       outPath,
			IncludeAudio: opts.IncludeAudio,
			Preset:       opts.Preset,
			CRF:          opts.CRF,
			ProgressFunc: progressFunc(req.OnProgress),
		})
	case scene.FormatAnimatedImage:
		err = x.encoder.RenderAnimatedImage(ctx, req.SourcePath, ffmpeg.AnimatedImageOptions{
			Start:        start,
			End:          end,
			Output:       outPath,
			FPS:          opts.FPS,
			Width:        opts.Width,
			ProgressFunc: progressFunc(req.OnProgress),
		})
	default:
		return nil, &scene.CallerError{Field: "format", Reason: fmt.Sprintf("unknown output format %q", req.Format)}
	}
	if err != nil {
		return nil, x.encodingError(ctx, req, err)
	}

	artifact, err := x.readValidated(req, outPath)
	if err != nil {
		logger.Warn().Err(err).Msg("artifact failed validation")
		return nil, err
	}

	midpoint := util.SecondsToDuration(req.Boundary.Midpoint())
	if err := x.encoder.GenerateThumbnail(ctx, req.SourcePath, thumbPath, midpoint, x.config.ThumbnailQuality); err != nil {
		return nil, x.encodingError(ctx, req, err)
	}

	thumb, err := os.ReadFile(thumbPath)
	if err != nil || len(thumb) == 0 {
		return nil, &scene.ExportError{Source: req.SourceName, SceneIndex: req.SceneIndex, Path: thumbPath,
			Reason: "thumbnail missing or empty"}
	}

	if small, err := Downscale(thumb, x.config.ThumbnailWidth); err == nil {
		thumb = small
	} else {
		logger.Debug().Err(err).Msg("thumbnail downscale failed, keeping original")
	}

	logger.Info().
		Int("bytes", len(artifact)).
		Int("thumbnail_bytes", len(thumb)).
		Msg("scene exported")

	return &scene.SceneArtifact{
		SourceName:     req.SourceName,
		BaseName:       req.BaseName,
		SceneIndex:     req.SceneIndex,
		Format:         req.Format,
		ArtifactBytes:  artifact,
		ThumbnailBytes: thumb,
		Start:          req.Boundary.Start,
		End:            req.Boundary.End,
		Duration:       req.Boundary.Duration(),
	}, nil
}

// readValidated loads the primary output and enforces the size floor
func (x *Exporter) readValidated(req Request, path string) ([]byte, error) {
	size, err := util.FileSize(path)
	if err != nil {
		return nil, &scene.ExportError{Source: req.SourceName, SceneIndex: req.SceneIndex, Path: path,
			Reason: fmt.Sprintf("output missing: %v", err)}
	}
	if size <= x.config.MinArtifactBytes {
		return nil, &scene.ExportError{Source: req.SourceName, SceneIndex: req.SceneIndex, Path: path,
			Reason: fmt.Sprintf("output is %d bytes, need more than %d", size, x.config.MinArtifactBytes)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &scene.ExportError{Source: req.SourceName, SceneIndex: req.SceneIndex, Path: path,
			Reason: fmt.Sprintf("read output: %v", err)}
	}
	return data, nil
}

func (x *Exporter) encodingError(ctx context.Context, req Request, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	encErr := &scene.EncodingError{Source: req.SourceName, SceneIndex: req.SceneIndex, ExitCode: -1, Err: err}
	var exitErr *ffmpeg.ExitError
	if errors.As(err, &exitErr) {
		encErr.ExitCode = exitErr.ExitCode
		encErr.Diagnostics = exitErr.Stderr
	}
	return encErr
}

// progressFunc adapts encoder percentages to a 0..1 callback
func progressFunc(fn func(float64)) ffmpeg.ProgressFunc {
	if fn == nil {
		return nil
	}
	return func(p *ffmpeg.Progress) {
		fn(p.Percentage / 100)
	}
}

// withDefaults fills unset quality knobs from the process config
func (x *Exporter) withDefaults(opts scene.ExportOptions) scene.ExportOptions {
	if opts.Preset == "" {
		opts.Preset = x.config.Defaults.Preset
	}
	if opts.CRF == nil {
		opts.CRF = x.config.Defaults.CRF
	}
	if opts.FPS == 0 {
		opts.FPS = x.config.Defaults.FPS
	}
	if opts.Width == 0 {
		opts.Width = x.config.Defaults.Width
	}
	return opts
}

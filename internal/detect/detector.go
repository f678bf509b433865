package detect

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/keagan/scenesplit/internal/ffmpeg"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/rs/zerolog"
)

// Analyzer is the subset of the transcoder the detector needs
type Analyzer interface {
	ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error)
	DetectScenes(ctx context.Context, path string, threshold float64) ([]float64, error)
}

// Config configures boundary detection behavior
type Config struct {
	// MinSceneLength drops cuts closer than this many seconds to the previous cut
	MinSceneLength float64
}

// DefaultConfig returns the detection defaults
func DefaultConfig() Config {
	return Config{
		MinSceneLength: 0.5,
	}
}

// Detector turns content-difference cuts into ordered scene boundaries
type Detector struct {
	logger   zerolog.Logger
	analyzer Analyzer
	config   Config
}

// New creates a detector backed by the given analyzer
func New(logger zerolog.Logger, analyzer Analyzer, cfg Config) *Detector {
	return &Detector{
		logger:   logger.With().Str("component", "detector").Logger(),
		analyzer: analyzer,
		config:   cfg,
	}
}

// Threshold maps a sensitivity value onto the ffmpeg scene score scale
func Threshold(sensitivity int) float64 {
	return float64(sensitivity) / 100
}

// DetectBoundaries scans path from the start and returns its scene boundaries.
// An empty result means no content change exceeded the threshold. Boundaries
// are strictly increasing, non-overlapping and end at the probed duration.
func (d *Detector) DetectBoundaries(ctx context.Context, path string, sensitivity int) ([]scene.Boundary, error) {
	info, err := d.analyzer.ProbeVideo(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &scene.DetectionError{Source: path, Err: err}
	}
	if !info.HasVideo {
		return nil, &scene.DetectionError{Source: path, Err: errors.New("no video stream")}
	}

	duration := info.Duration.Seconds()
	if duration <= 0 {
		return nil, &scene.DetectionError{Source: path, Err: errors.New("unknown or zero duration")}
	}

	threshold := Threshold(sensitivity)
	cuts, err := d.analyzer.DetectScenes(ctx, path, threshold)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &scene.DetectionError{Source: path, Err: fmt.Errorf("scene analysis: %w", err)}
	}

	boundaries := Boundaries(cuts, duration, d.config.MinSceneLength)

	d.logger.Info().
		Str("source", path).
		Int("sensitivity", sensitivity).
		Float64("threshold", threshold).
		Int("cuts", len(cuts)).
		Int("boundaries", len(boundaries)).
		Float64("duration", duration).
		Msg("boundary detection complete")

	return boundaries, nil
}

// Boundaries converts cut timestamps into scene intervals covering [0, duration).
// Cuts outside (0, duration) or closer than minLen to the previous kept cut are
// ignored; a final scene shorter than minLen is merged into the one before it.
// No surviving cut yields no boundaries.
func Boundaries(cuts []float64, duration, minLen float64) []scene.Boundary {
	sorted := append([]float64(nil), cuts...)
	sort.Float64s(sorted)

	kept := make([]float64, 0, len(sorted))
	last := 0.0
	for _, c := range sorted {
		if c <= 0 || c >= duration {
			continue
		}
		if c-last < minLen || c == last {
			continue
		}
		kept = append(kept, c)
		last = c
	}

	// the tail after the last cut must be a real scene too
	for len(kept) > 0 && duration-kept[len(kept)-1] < minLen {
		kept = kept[:len(kept)-1]
	}

	if len(kept) == 0 {
		return nil
	}

	boundaries := make([]scene.Boundary, 0, len(kept)+1)
	start := 0.0
	for _, c := range kept {
		boundaries = append(boundaries, scene.Boundary{Start: start, End: c})
		start = c
	}
	boundaries = append(boundaries, scene.Boundary{Start: start, End: duration})

	return boundaries
}

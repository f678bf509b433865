package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/scenesplit/pkg/util"
)

// ClipOptions defines clip extraction parameters
type ClipOptions struct {
	Start        time.Duration
	End          time.Duration
	Output       string
	IncludeAudio bool
	VideoCodec   string
	AudioCodec   string
	Preset       string
	CRF          *int // 0-51, lower is better; nil selects DefaultCRF
	ProgressFunc ProgressFunc
}

// ExtractClip cuts a segment from a video and re-encodes it to H.264
func (e *Executor) ExtractClip(ctx context.Context, input string, opts ClipOptions) error {
	args, err := clipArgs(input, opts)
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.End-opts.Start).
		Bool("audio", opts.IncludeAudio).
		Msg("extracting clip")

	runOpts := RunOptions{
		Args:            args,
		Duration:        (opts.End - opts.Start).Seconds(),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("clip extraction")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("clip extraction failed: %w", err)
	}

	e.logger.Debug().Str("output", opts.Output).Msg("clip extraction complete")
	return nil
}

func clipArgs(input string, opts ClipOptions) ([]string, error) {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration: end must be after start")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	codec := opts.VideoCodec
	if codec == "" {
		codec = DefaultVideoCodec
	}
	preset := opts.Preset
	if preset == "" {
		preset = DefaultPreset
	}
	crf := DefaultCRF
	if opts.CRF != nil {
		crf = *opts.CRF
	}

	// input seeking: fast, and frame accurate because we re-encode
	args := []string{
		"-ss", util.FormatDuration(opts.Start),
		"-i", input,
		"-t", util.FormatDuration(duration),
		"-map", "0:v:0",
		"-c:v", codec,
		"-preset", preset,
		"-crf", fmt.Sprintf("%d", crf),
		"-pix_fmt", "yuv420p",
	}

	if opts.IncludeAudio {
		audioCodec := opts.AudioCodec
		if audioCodec == "" {
			audioCodec = DefaultAudioCodec
		}
		args = append(args, "-map", "0:a:0?", "-c:a", audioCodec)
	} else {
		args = append(args, "-an")
	}

	args = append(args, "-movflags", "+faststart", opts.Output)
	return args, nil
}

// AnimatedImageOptions defines GIF rendering parameters
type AnimatedImageOptions struct {
	Start        time.Duration
	End          time.Duration
	Output       string
	FPS          int
	Width        int
	ProgressFunc ProgressFunc
}

// RenderAnimatedImage renders a segment as a looping, palette-reduced GIF
func (e *Executor) RenderAnimatedImage(ctx context.Context, input string, opts AnimatedImageOptions) error {
	args, err := animatedImageArgs(input, opts)
	if err != nil {
		return err
	}

	e.logger.Info().
		Str("input", input).
		Str("output", opts.Output).
		Dur("start", opts.Start).
		Dur("duration", opts.End-opts.Start).
		Msg("rendering animated image")

	runOpts := RunOptions{
		Args:            args,
		Duration:        (opts.End - opts.Start).Seconds(),
		ProgressHandler: opts.ProgressFunc,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("animated image")
		},
	}

	if err := e.Run(ctx, runOpts); err != nil {
		return fmt.Errorf("animated image rendering failed: %w", err)
	}
	return nil
}

func animatedImageArgs(input string, opts AnimatedImageOptions) ([]string, error) {
	duration := opts.End - opts.Start
	if duration <= 0 {
		return nil, fmt.Errorf("invalid clip duration: end must be after start")
	}
	if opts.Output == "" {
		return nil, fmt.Errorf("output path is required")
	}

	fps := opts.FPS
	if fps <= 0 {
		fps = DefaultGIFFPS
	}
	width := opts.Width
	if width <= 0 {
		width = DefaultGIFWidth
	}

	filter := NewFilterBuilder().
		FPS(float64(fps)).
		ScaleWidth(width).
		Palette().
		Build()

	return []string{
		"-ss", util.FormatDuration(opts.Start),
		"-t", util.FormatDuration(duration),
		"-i", input,
		"-vf", filter,
		"-an",
		"-loop", "0",
		opts.Output,
	}, nil
}

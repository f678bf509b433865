package ffmpeg

import (
	"context"
	"fmt"
	"time"

	"github.com/keagan/scenesplit/pkg/util"
)

// GenerateThumbnail creates a single JPEG still at a specific timestamp.
// quality follows ffmpeg's -q:v scale (2 is near-lossless, 31 is worst).
func (e *Executor) GenerateThumbnail(ctx context.Context, input, output string, timestamp time.Duration, quality int) error {
	if input == "" {
		return fmt.Errorf("input path is required")
	}
	if output == "" {
		return fmt.Errorf("output path is required")
	}
	if quality <= 0 {
		quality = DefaultThumbnailQuality
	}

	e.logger.Debug().
		Str("input", input).
		Str("output", output).
		Dur("timestamp", timestamp).
		Msg("generating thumbnail")

	args := []string{
		"-ss", util.FormatDuration(timestamp),
		"-i", input,
		"-frames:v", "1",
		"-q:v", fmt.Sprintf("%d", quality),
		output,
	}

	opts := RunOptions{
		Args: args,
		LogHandler: func(line string) {
			e.logger.Trace().Str("ffmpeg", line).Msg("thumbnail generation")
		},
	}

	if err := e.Run(ctx, opts); err != nil {
		return fmt.Errorf("thumbnail generation failed: %w", err)
	}
	return nil
}

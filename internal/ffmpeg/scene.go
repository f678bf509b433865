package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// DetectScenes finds scene changes in video using ffmpeg scene detection.
// threshold is the scene score in [0,1] a frame must exceed to count as a cut.
// Returned timestamps are in seconds and sorted ascending.
func (e *Executor) DetectScenes(ctx context.Context, input string, threshold float64) ([]float64, error) {
	e.logger.Info().
		Str("input", input).
		Float64("threshold", threshold).
		Msg("detecting scene changes")

	var stderrBuf bytes.Buffer
	var mu sync.Mutex

	opts := RunOptions{
		Args: []string{
			"-i", input,
			"-an",
			"-vf", fmt.Sprintf("select='gt(scene,%f)',showinfo", threshold),
			"-f", "null",
			"-",
		},
		LogHandler: func(line string) {
			mu.Lock()
			stderrBuf.WriteString(line + "\n")
			mu.Unlock()
			e.logger.Trace().Str("stderr", line).Msg("scene detection output")
		},
	}

	err := e.Run(ctx, opts)

	mu.Lock()
	output := stderrBuf.String()
	mu.Unlock()

	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		var exitErr *ExitError
		if !errors.As(err, &exitErr) || !strings.Contains(exitErr.Stderr, "Output file is empty") {
			return nil, fmt.Errorf("scene detection failed: %w", err)
		}
	}

	scenes := parseSceneOutput(output)
	e.logger.Info().Int("scenes", len(scenes)).Msg("scene detection complete")
	return scenes, nil
}

// parseSceneOutput extracts scene change timestamps from showinfo output
func parseSceneOutput(output string) []float64 {
	var scenes []float64

	for _, line := range strings.Split(output, "\n") {
		if !strings.Contains(line, "Parsed_showinfo") || !strings.Contains(line, "pts_time:") {
			continue
		}
		parts := strings.SplitN(line, "pts_time:", 2)
		fields := strings.Fields(strings.TrimSpace(parts[1]))
		if len(fields) == 0 {
			continue
		}
		if seconds, err := strconv.ParseFloat(fields[0], 64); err == nil {
			scenes = append(scenes, seconds)
		}
	}

	sort.Float64s(scenes)
	return scenes
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/keagan/scenesplit/internal/export"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/pkg/util"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Orchestrator drives detection and export across a batch of videos
type Orchestrator struct {
	logger   zerolog.Logger
	config   Config
	detector Detector
	exporter Exporter
}

// New creates a new orchestrator instance
func New(logger zerolog.Logger, detector Detector, exporter Exporter, cfg Config) *Orchestrator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.DetectionShare <= 0 || cfg.DetectionShare >= 1 {
		cfg.DetectionShare = DefaultConfig().DetectionShare
	}

	return &Orchestrator{
		logger:   logger.With().Str("component", "pipeline").Logger(),
		config:   cfg,
		detector: detector,
		exporter: exporter,
	}
}

// RunBatch processes every video in batch and returns the manifest of exported
// scenes. Video- and scene-scoped failures are recorded in the result and never
// abort the batch. A CallerError is returned before any work starts. When ctx is
// cancelled the partial result is returned together with ctx.Err().
func (o *Orchestrator) RunBatch(ctx context.Context, batch *scene.BatchContext) (*scene.BatchResult, error) {
	if batch == nil {
		return nil, &scene.CallerError{Field: "batch", Reason: "batch cannot be nil"}
	}
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	startTime := time.Now()
	total := len(batch.Videos)

	o.logger.Info().
		Int("videos", total).
		Int("sensitivity", batch.Sensitivity).
		Str("format", string(batch.Format)).
		Int("workers", o.config.Workers).
		Msg("starting batch")

	workDir, err := os.MkdirTemp(o.config.TempDir, "scenesplit-")
	if err != nil {
		return nil, fmt.Errorf("failed to create work directory: %w", err)
	}
	// every export pool has joined by the time RunBatch returns
	defer func() {
		if err := os.RemoveAll(workDir); err != nil {
			o.logger.Warn().Err(err).Str("dir", workDir).Msg("failed to remove work directory")
		}
	}()

	names := make([]string, total)
	for i, v := range batch.Videos {
		names[i] = v.Name
	}
	bases := scene.AssignBaseNames(names)

	progress := newTracker(total, o.config.DetectionShare, batch.OnEvent)
	progress.Notify(scene.Event{
		Kind:   scene.EventBatchStarted,
		Status: fmt.Sprintf("Processing %d video(s)", total),
	})

	result := &scene.BatchResult{
		Manifest: []scene.SceneArtifact{},
		Videos:   make([]scene.VideoReport, total),
	}
	for i, v := range batch.Videos {
		result.Videos[i] = scene.VideoReport{Name: v.Name, BaseName: bases[i], Status: scene.VideoPending}
	}

	for i, video := range batch.Videos {
		if ctx.Err() != nil {
			result.Videos[i].Status = scene.VideoCancelled
			continue
		}

		artifacts := o.processVideo(ctx, i, video, batch, workDir, &result.Videos[i], progress)
		result.Manifest = append(result.Manifest, artifacts...)
	}

	// base names are unique within a batch
	order := make(map[string]int, total)
	for i, base := range bases {
		order[base] = i
	}
	sort.SliceStable(result.Manifest, func(a, b int) bool {
		ma, mb := result.Manifest[a], result.Manifest[b]
		oa, ob := order[ma.BaseName], order[mb.BaseName]
		if oa != ob {
			return oa < ob
		}
		return ma.SceneIndex < mb.SceneIndex
	})

	summary := summarize(result)

	if err := ctx.Err(); err != nil {
		result.Cancelled = true
		progress.Notify(scene.Event{Kind: scene.EventBatchDone, Status: "Cancelled: " + summary})
		o.logger.Warn().
			Int("exported", result.Successes()).
			Dur("elapsed", time.Since(startTime)).
			Msg("batch cancelled")
		return result, err
	}

	progress.Finish(scene.Event{Kind: scene.EventBatchDone, Status: summary})

	o.logger.Info().
		Int("exported", result.Successes()).
		Int("failed", result.Failures()).
		Dur("elapsed", time.Since(startTime)).
		Msg("batch complete")

	return result, nil
}

// processVideo stages, detects and exports one source. It fills report and
// returns the artifacts in scene order.
func (o *Orchestrator) processVideo(
	ctx context.Context,
	i int,
	video scene.SourceVideo,
	batch *scene.BatchContext,
	workDir string,
	report *scene.VideoReport,
	progress *tracker,
) []scene.SceneArtifact {
	logger := o.logger.With().Str("source", video.Name).Int("video", i+1).Logger()
	total := len(batch.Videos)

	progress.Notify(scene.Event{
		Kind:   scene.EventVideoStarted,
		Source: video.Name,
		Status: fmt.Sprintf("Detecting scenes in %s (%d/%d)", video.Name, i+1, total),
	})

	videoDir := filepath.Join(workDir, fmt.Sprintf("%03d_%s", i+1, report.BaseName))
	srcPath, err := stage(video, videoDir)
	if err != nil {
		return o.videoFailed(ctx, i, video, report, progress, &scene.DetectionError{Source: video.Name, Err: err})
	}

	boundaries, err := o.detector.DetectBoundaries(ctx, srcPath, batch.Sensitivity)
	if err != nil {
		var detErr *scene.DetectionError
		if errors.As(err, &detErr) {
			err = &scene.DetectionError{Source: video.Name, Err: detErr.Err}
		}
		return o.videoFailed(ctx, i, video, report, progress, err)
	}

	report.BoundariesDetected = len(boundaries)

	if len(boundaries) == 0 {
		report.Status = scene.VideoNoScenes
		logger.Info().Msg("no scenes found")
		progress.VideoDone(i, scene.Event{
			Kind:   scene.EventNoScenes,
			Source: video.Name,
			Status: fmt.Sprintf("No scenes found in %s", video.Name),
		})
		return nil
	}

	progress.Detected(i, len(boundaries), scene.Event{
		Kind:   scene.EventDetected,
		Source: video.Name,
		Status: fmt.Sprintf("Found %d scenes in %s", len(boundaries), video.Name),
	})

	outDir := filepath.Join(videoDir, "out")
	if err := util.EnsureDir(outDir); err != nil {
		return o.videoFailed(ctx, i, video, report, progress, fmt.Errorf("failed to create output directory: %w", err))
	}

	outcomes := make([]sceneOutcome, len(boundaries))

	var g errgroup.Group
	g.SetLimit(o.config.Workers)

	for j, b := range boundaries {
		if ctx.Err() != nil {
			break
		}

		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}

			index := j + 1
			artifact, err := o.exporter.ExportSegment(ctx, export.Request{
				SourcePath: srcPath,
				SourceName: video.Name,
				BaseName:   report.BaseName,
				SceneIndex: index,
				Boundary:   b,
				Format:     batch.Format,
				Options:    batch.Options,
				OutDir:     outDir,
				OnProgress: func(frac float64) {
					progress.SceneProgress(i, index, frac, scene.Event{
						Kind:   scene.EventSceneProgress,
						Source: video.Name,
						Scene:  index,
						Status: fmt.Sprintf("Encoding scene %d/%d of %s (%.0f%%)", index, len(boundaries), video.Name, frac*100),
					})
				},
			})
			if err != nil && ctx.Err() != nil {
				// interrupted by cancellation, not a scene failure
				return nil
			}

			outcomes[j] = sceneOutcome{artifact: artifact, err: err, ran: true}

			ev := scene.Event{Source: video.Name, Scene: index}
			if err != nil {
				logger.Warn().Err(err).Int("scene", index).Msg("scene export failed")
				ev.Kind = scene.EventSceneFailed
				ev.Status = fmt.Sprintf("Scene %d of %s failed: %v", index, video.Name, err)
			} else {
				ev.Kind = scene.EventSceneExported
				ev.Status = fmt.Sprintf("Exported scene %d/%d of %s", index, len(boundaries), video.Name)
			}
			progress.SceneDone(i, index, ev)
			return nil
		})
	}

	// tasks never return errors; failures live in outcomes
	_ = g.Wait()

	var artifacts []scene.SceneArtifact
	finished := 0
	for j, out := range outcomes {
		if !out.ran {
			continue
		}
		finished++
		if out.err != nil {
			report.Failures = append(report.Failures, scene.SceneFailure{
				SceneIndex: j + 1,
				Boundary:   boundaries[j],
				Kind:       scene.FailureKind(out.err),
				Message:    out.err.Error(),
			})
			continue
		}
		artifacts = append(artifacts, *out.artifact)
	}
	report.ScenesExported = len(artifacts)

	switch {
	case finished < len(boundaries):
		report.Status = scene.VideoCancelled
	case len(report.Failures) == 0:
		report.Status = scene.VideoExported
	case len(artifacts) == 0:
		report.Status = scene.VideoFailed
	default:
		report.Status = scene.VideoPartial
	}

	if report.Status != scene.VideoCancelled {
		progress.VideoDone(i, scene.Event{
			Kind:   scene.EventVideoDone,
			Source: video.Name,
			Status: fmt.Sprintf("Finished %s: %d exported, %d failed", video.Name, len(artifacts), len(report.Failures)),
		})
	}

	logger.Info().
		Str("status", string(report.Status)).
		Int("boundaries", len(boundaries)).
		Int("exported", len(artifacts)).
		Int("failed", len(report.Failures)).
		Msg("video processed")

	return artifacts
}

func (o *Orchestrator) videoFailed(
	ctx context.Context,
	i int,
	video scene.SourceVideo,
	report *scene.VideoReport,
	progress *tracker,
	err error,
) []scene.SceneArtifact {
	if ctx.Err() != nil {
		report.Status = scene.VideoCancelled
		return nil
	}

	o.logger.Warn().Err(err).Str("source", video.Name).Msg("skipping video")

	report.Status = scene.VideoDetectionFailed
	report.Err = err.Error()
	progress.VideoDone(i, scene.Event{
		Kind:   scene.EventVideoFailed,
		Source: video.Name,
		Status: fmt.Sprintf("Could not read %s: %v", video.Name, err),
	})
	return nil
}

// stage copies the source content into dir so the encoder can seek in it
func stage(video scene.SourceVideo, dir string) (string, error) {
	rc, err := video.Open()
	if err != nil {
		return "", fmt.Errorf("open source: %w", err)
	}
	defer rc.Close()

	path := filepath.Join(dir, "source"+strings.ToLower(filepath.Ext(video.Name)))
	n, err := util.WriteStream(path, rc)
	if err != nil {
		return "", fmt.Errorf("stage source: %w", err)
	}
	if n == 0 {
		return "", errors.New("source is empty")
	}
	if video.Size > 0 && n != video.Size {
		return "", fmt.Errorf("source is truncated: staged %d of %d bytes", n, video.Size)
	}
	return path, nil
}

func summarize(result *scene.BatchResult) string {
	noScenes := 0
	unreadable := 0
	for _, v := range result.Videos {
		switch v.Status {
		case scene.VideoNoScenes:
			noScenes++
		case scene.VideoDetectionFailed:
			unreadable++
		}
	}

	parts := []string{fmt.Sprintf("%d scene(s) exported", result.Successes())}
	if n := result.Failures(); n > 0 {
		parts = append(parts, fmt.Sprintf("%d failed", n))
	}
	if noScenes > 0 {
		if noScenes == len(result.Videos) {
			parts = append(parts, "no scenes found")
		} else {
			parts = append(parts, fmt.Sprintf("no scenes found in %d video(s)", noScenes))
		}
	}
	if unreadable > 0 {
		parts = append(parts, fmt.Sprintf("%d video(s) unreadable", unreadable))
	}
	return strings.Join(parts, ", ")
}

package ffmpeg_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/keagan/scenesplit/internal/archive"
	"github.com/keagan/scenesplit/internal/detect"
	"github.com/keagan/scenesplit/internal/export"
	"github.com/keagan/scenesplit/internal/ffmpeg"
	"github.com/keagan/scenesplit/internal/pipeline"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/rs/zerolog"
)

// local helper (cannot use unexported ones from ffmpeg package)
func skipIfNoFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not found in PATH - install with: brew install ffmpeg")
	}
	if _, err := exec.LookPath("ffprobe"); err != nil {
		t.Skip("ffprobe not found in PATH - install with: brew install ffmpeg")
	}
}

// makePatternVideo renders three visually distinct 2s shots with a tone track
func makePatternVideo(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)

	cmd := exec.Command("ffmpeg", "-y", "-hide_banner", "-loglevel", "error",
		"-f", "lavfi", "-i", "testsrc=s=320x240:d=2:r=25",
		"-f", "lavfi", "-i", "smptebars=s=320x240:d=2:r=25",
		"-f", "lavfi", "-i", "rgbtestsrc=s=320x240:d=2:r=25",
		"-f", "lavfi", "-i", "sine=frequency=440:duration=6",
		"-filter_complex", "[0:v][1:v][2:v]concat=n=3:v=1:a=0[v]",
		"-map", "[v]", "-map", "3:a",
		"-c:v", "libx264", "-pix_fmt", "yuv420p", "-c:a", "aac", "-shortest", path)
	if out, err := cmd.CombinedOutput(); err != nil {
		t.Skipf("could not generate test video: %v: %s", err, out)
	}
	return path
}

func newOrchestrator(t *testing.T) *pipeline.Orchestrator {
	t.Helper()
	logger := zerolog.Nop()

	ex, err := ffmpeg.New(logger, ffmpeg.Options{Threads: 2})
	if err != nil {
		t.Fatalf("failed to create executor: %v", err)
	}

	detector := detect.New(logger, ex, detect.DefaultConfig())
	exporter := export.New(logger, ex, export.DefaultConfig())
	return pipeline.New(logger, detector, exporter, pipeline.Config{Workers: 2, TempDir: t.TempDir()})
}

func TestIntegration_SplitIntoClips(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := makePatternVideo(t, "patterns.mp4")

	video, err := scene.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	var last scene.Event
	batch := &scene.BatchContext{
		Videos:      []scene.SourceVideo{video},
		Sensitivity: scene.DefaultSensitivity,
		Format:      scene.FormatClip,
		Options:     scene.ExportOptions{IncludeAudio: true},
		OnEvent:     func(ev scene.Event) { last = ev },
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	result, err := newOrchestrator(t).RunBatch(ctx, batch)
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}

	if len(result.Manifest) != 3 {
		t.Fatalf("expected 3 scenes, got %d (%+v)", len(result.Manifest), result.Videos)
	}
	for i, a := range result.Manifest {
		if a.SceneIndex != i+1 || a.FileName() != "patterns_scene"+string(rune('1'+i))+".mp4" {
			t.Errorf("entry %d named %s", i, a.FileName())
		}
		if len(a.ArtifactBytes) <= 1024 {
			t.Errorf("scene %d artifact only %d bytes", a.SceneIndex, len(a.ArtifactBytes))
		}
		if len(a.ThumbnailBytes) < 3 || !bytes.Equal(a.ThumbnailBytes[:3], []byte{0xff, 0xd8, 0xff}) {
			t.Errorf("scene %d thumbnail is not a JPEG", a.SceneIndex)
		}
		if a.Duration < 1.5 || a.Duration > 2.5 {
			t.Errorf("scene %d lasts %.2fs, want ~2s", a.SceneIndex, a.Duration)
		}
	}
	if last.Kind != scene.EventBatchDone || last.Progress != 1 {
		t.Errorf("final event %+v", last)
	}

	data, err := archive.BuildAll(result.Manifest)
	if err != nil {
		t.Fatalf("BuildAll failed: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil || len(zr.File) != 3 {
		t.Fatalf("archive has %v entries (err %v)", len(zr.File), err)
	}
}

func TestIntegration_SplitIntoAnimatedImages(t *testing.T) {
	skipIfNoFFmpeg(t)
	path := makePatternVideo(t, "gifs.mov")

	video, err := scene.FromFile(path)
	if err != nil {
		t.Fatal(err)
	}

	result, err := newOrchestrator(t).RunBatch(context.Background(), &scene.BatchContext{
		Videos:      []scene.SourceVideo{video},
		Sensitivity: scene.DefaultSensitivity,
		Format:      scene.FormatAnimatedImage,
		Options:     scene.ExportOptions{FPS: 5, Width: 160},
	})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if len(result.Manifest) == 0 {
		t.Fatalf("no scenes exported: %+v", result.Videos)
	}
	for _, a := range result.Manifest {
		if !bytes.HasPrefix(a.ArtifactBytes, []byte("GIF89a")) {
			t.Errorf("%s is not a GIF", a.FileName())
		}
	}
}

func TestIntegration_UnreadableVideoIsSkipped(t *testing.T) {
	skipIfNoFFmpeg(t)

	result, err := newOrchestrator(t).RunBatch(context.Background(), &scene.BatchContext{
		Videos:      []scene.SourceVideo{scene.FromBytes("broken.mp4", []byte("this is not a video"))},
		Sensitivity: scene.DefaultSensitivity,
		Format:      scene.FormatClip,
	})
	if err != nil {
		t.Fatalf("RunBatch failed: %v", err)
	}
	if result.Videos[0].Status != scene.VideoDetectionFailed || len(result.Manifest) != 0 {
		t.Fatalf("unexpected result %+v", result.Videos[0])
	}
}

package detect

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/keagan/scenesplit/internal/ffmpeg"
	"github.com/keagan/scenesplit/internal/scene"
	"github.com/rs/zerolog"
)

type fakeAnalyzer struct {
	info       *ffmpeg.VideoInfo
	probeErr   error
	cuts       []float64
	sceneErr   error
	thresholds []float64
}

func (f *fakeAnalyzer) ProbeVideo(ctx context.Context, path string) (*ffmpeg.VideoInfo, error) {
	if f.probeErr != nil {
		return nil, f.probeErr
	}
	return f.info, nil
}

func (f *fakeAnalyzer) DetectScenes(ctx context.Context, path string, threshold float64) ([]float64, error) {
	f.thresholds = append(f.thresholds, threshold)
	return f.cuts, f.sceneErr
}

func video(seconds float64) *ffmpeg.VideoInfo {
	return &ffmpeg.VideoInfo{HasVideo: true, Duration: time.Duration(seconds * float64(time.Second))}
}

func TestBoundaries(t *testing.T) {
	tests := []struct {
		name     string
		cuts     []float64
		duration float64
		minLen   float64
		want     []scene.Boundary
	}{
		{
			name:     "no cuts",
			duration: 10,
			minLen:   0.5,
			want:     nil,
		},
		{
			name:     "three scenes",
			cuts:     []float64{3, 7},
			duration: 10,
			minLen:   0.5,
			want:     []scene.Boundary{{Start: 0, End: 3}, {Start: 3, End: 7}, {Start: 7, End: 10}},
		},
		{
			name:     "unsorted with duplicates",
			cuts:     []float64{7, 3, 3},
			duration: 10,
			minLen:   0,
			want:     []scene.Boundary{{Start: 0, End: 3}, {Start: 3, End: 7}, {Start: 7, End: 10}},
		},
		{
			name:     "cuts too close merged",
			cuts:     []float64{0.2, 3, 3.1, 7},
			duration: 10,
			minLen:   0.5,
			want:     []scene.Boundary{{Start: 0, End: 3}, {Start: 3, End: 7}, {Start: 7, End: 10}},
		},
		{
			name:     "out of range cuts ignored",
			cuts:     []float64{0, 5, 10, 12},
			duration: 10,
			minLen:   0.5,
			want:     []scene.Boundary{{Start: 0, End: 5}, {Start: 5, End: 10}},
		},
		{
			name:     "short tail merged",
			cuts:     []float64{5, 9.8},
			duration: 10,
			minLen:   0.5,
			want:     []scene.Boundary{{Start: 0, End: 5}, {Start: 5, End: 10}},
		},
		{
			name:     "only cut too close to end",
			cuts:     []float64{9.9},
			duration: 10,
			minLen:   0.5,
			want:     nil,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := Boundaries(tc.cuts, tc.duration, tc.minLen)
			if len(got) != len(tc.want) {
				t.Fatalf("Boundaries() = %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Fatalf("Boundaries()[%d] = %v, want %v", i, got[i], tc.want[i])
				}
			}
		})
	}
}

func TestBoundariesOrderedAndWithinDuration(t *testing.T) {
	cuts := []float64{8.4, 1.1, 2.2, 2.25, 4.9, 4.95, 6.0, 9.99, 3.3}
	duration := 10.0

	for _, minLen := range []float64{0, 0.1, 0.5, 1, 2} {
		got := Boundaries(cuts, duration, minLen)
		for i, b := range got {
			if !b.Valid() {
				t.Fatalf("minLen %.1f: boundary %d invalid: %v", minLen, i, b)
			}
			if i > 0 {
				prev := got[i-1]
				if b.Start <= prev.Start || b.Start < prev.End {
					t.Fatalf("minLen %.1f: boundaries overlap or regress: %v then %v", minLen, prev, b)
				}
			}
		}
		if len(got) > 0 && got[len(got)-1].End > duration {
			t.Fatalf("minLen %.1f: last boundary ends after duration: %v", minLen, got)
		}
	}
}

func TestDetectBoundaries(t *testing.T) {
	analyzer := &fakeAnalyzer{info: video(10), cuts: []float64{4, 6}}
	d := New(zerolog.Nop(), analyzer, DefaultConfig())

	got, err := d.DetectBoundaries(context.Background(), "in.mp4", 20)
	if err != nil {
		t.Fatalf("DetectBoundaries() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 boundaries, got %v", got)
	}
	if analyzer.thresholds[0] != 0.2 {
		t.Fatalf("threshold = %v, want 0.2", analyzer.thresholds[0])
	}
}

func TestDetectBoundariesRescansOnEveryCall(t *testing.T) {
	analyzer := &fakeAnalyzer{info: video(10), cuts: []float64{5}}
	d := New(zerolog.Nop(), analyzer, DefaultConfig())

	for i := 0; i < 2; i++ {
		got, err := d.DetectBoundaries(context.Background(), "in.mp4", 27)
		if err != nil || len(got) != 2 {
			t.Fatalf("call %d: %v, %v", i, got, err)
		}
	}
	if len(analyzer.thresholds) != 2 {
		t.Fatalf("expected analyzer to be called twice, got %d", len(analyzer.thresholds))
	}
}

func TestDetectBoundariesNoScenes(t *testing.T) {
	d := New(zerolog.Nop(), &fakeAnalyzer{info: video(10)}, DefaultConfig())

	got, err := d.DetectBoundaries(context.Background(), "in.mp4", 30)
	if err != nil {
		t.Fatalf("DetectBoundaries() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no boundaries, got %v", got)
	}
}

func TestDetectBoundariesErrors(t *testing.T) {
	tests := []struct {
		name     string
		analyzer *fakeAnalyzer
	}{
		{name: "probe fails", analyzer: &fakeAnalyzer{probeErr: errors.New("moov atom not found")}},
		{name: "no video stream", analyzer: &fakeAnalyzer{info: &ffmpeg.VideoInfo{Duration: time.Second}}},
		{name: "zero duration", analyzer: &fakeAnalyzer{info: &ffmpeg.VideoInfo{HasVideo: true}}},
		{name: "scene filter fails", analyzer: &fakeAnalyzer{info: video(5), sceneErr: errors.New("exit 1")}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := New(zerolog.Nop(), tc.analyzer, DefaultConfig())
			_, err := d.DetectBoundaries(context.Background(), "bad.mp4", 27)
			var detErr *scene.DetectionError
			if !errors.As(err, &detErr) {
				t.Fatalf("expected DetectionError, got %v", err)
			}
			if detErr.Source != "bad.mp4" {
				t.Fatalf("DetectionError.Source = %q", detErr.Source)
			}
		})
	}
}

func TestDetectBoundariesCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := New(zerolog.Nop(), &fakeAnalyzer{info: video(5), sceneErr: context.Canceled}, DefaultConfig())
	_, err := d.DetectBoundaries(ctx, "in.mp4", 27)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestThresholdMonotonic(t *testing.T) {
	prev := -1.0
	for s := scene.MinSensitivity; s <= scene.MaxSensitivity; s++ {
		th := Threshold(s)
		if th <= prev || th <= 0 || th >= 1 {
			t.Fatalf("Threshold(%d) = %v not increasing within (0,1)", s, th)
		}
		prev = th
	}
}

package pipeline

import (
	"sync"

	"github.com/keagan/scenesplit/internal/scene"
)

type videoProgress struct {
	detected bool
	scenes   int
	done     int
	complete bool
	// encoding holds the completed fraction of in-flight scenes by index
	encoding map[int]float64
}

// tracker derives batch progress from per-video completion counts. Events are
// delivered while holding the lock, so callers observe them in order and the
// reported value never decreases.
type tracker struct {
	mu     sync.Mutex
	share  float64
	videos []videoProgress
	last   float64
	emit   func(scene.Event)
}

func newTracker(videos int, detectionShare float64, emit func(scene.Event)) *tracker {
	if detectionShare < 0 || detectionShare >= 1 {
		detectionShare = DefaultConfig().DetectionShare
	}
	if emit == nil {
		emit = func(scene.Event) {}
	}
	return &tracker{
		share:  detectionShare,
		videos: make([]videoProgress, videos),
		emit:   emit,
	}
}

// value must be called with mu held
func (t *tracker) value() float64 {
	if len(t.videos) == 0 {
		return 1
	}

	slice := 1 / float64(len(t.videos))
	total := 0.0
	for _, v := range t.videos {
		switch {
		case v.complete:
			total += slice
		case v.detected && v.scenes > 0:
			scenes := float64(v.done)
			for _, f := range v.encoding {
				scenes += f
			}
			frac := t.share + (1-t.share)*scenes/float64(v.scenes)
			total += slice * frac
		}
	}

	if total > 1 {
		total = 1
	}
	if total < t.last {
		total = t.last
	}
	t.last = total
	return total
}

func (t *tracker) send(ev scene.Event) {
	ev.Progress = t.value()
	t.emit(ev)
}

// Notify emits ev at the current progress without changing any counts
func (t *tracker) Notify(ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.send(ev)
}

// Detected credits the detection share of video i
func (t *tracker) Detected(i, scenes int, ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videos[i].detected = true
	t.videos[i].scenes = scenes
	t.send(ev)
}

// SceneProgress credits part of an in-flight scene export. frac is clamped to [0,1].
func (t *tracker) SceneProgress(i, sceneIndex int, frac float64, ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := &t.videos[i]
	if v.complete {
		return
	}
	frac = min(max(frac, 0), 1)
	if v.encoding == nil {
		v.encoding = make(map[int]float64)
	}
	if frac <= v.encoding[sceneIndex] {
		return
	}
	v.encoding[sceneIndex] = frac
	t.send(ev)
}

// SceneDone credits one finished scene export (success or failure) of video i
func (t *tracker) SceneDone(i, sceneIndex int, ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	v := &t.videos[i]
	delete(v.encoding, sceneIndex)
	if v.done < v.scenes {
		v.done++
	}
	t.send(ev)
}

// VideoDone credits the full slice of video i
func (t *tracker) VideoDone(i int, ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.videos[i].complete = true
	t.send(ev)
}

// Finish pins progress to exactly 1.0
func (t *tracker) Finish(ev scene.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.last = 1
	ev.Progress = 1
	t.emit(ev)
}

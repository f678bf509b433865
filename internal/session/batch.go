package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/keagan/scenesplit/internal/scene"
)

// State is the lifecycle stage of a batch
type State string

const (
	StateQueued    State = "queued"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"
	StateFailed    State = "failed"
)

// Terminal reports whether no further events will be produced
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateCancelled || s == StateFailed
}

const subscriberBuffer = 32

// Batch is one submitted run and everything it produced. Results live in
// memory only and disappear when the batch is deleted or swept.
type Batch struct {
	ID        string
	CreatedAt time.Time

	mu         sync.RWMutex
	ctx        *scene.BatchContext
	state      State
	progress   float64
	status     string
	result     *scene.BatchResult
	err        error
	finishedAt time.Time
	cancel     context.CancelFunc
	done       chan struct{}
	subs       map[chan scene.Event]struct{}
}

// Snapshot is a point-in-time copy of a batch safe to serialize
type Snapshot struct {
	ID        string              `json:"id"`
	CreatedAt time.Time           `json:"created_at"`
	State     State               `json:"state"`
	Progress  float64             `json:"progress"`
	Status    string              `json:"status"`
	Scenes    int                 `json:"scenes"`
	Failures  int                 `json:"failures"`
	Videos    []scene.VideoReport `json:"videos,omitempty"`
	Error     string              `json:"error,omitempty"`
}

func newBatch(id string, bc *scene.BatchContext, now time.Time) *Batch {
	return &Batch{
		ID:        id,
		CreatedAt: now,
		ctx:       bc,
		state:     StateQueued,
		status:    "Queued",
		done:      make(chan struct{}),
		subs:      make(map[chan scene.Event]struct{}),
	}
}

// Snapshot returns the current state of the batch
func (b *Batch) Snapshot() Snapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	snap := Snapshot{
		ID:        b.ID,
		CreatedAt: b.CreatedAt,
		State:     b.state,
		Progress:  b.progress,
		Status:    b.status,
	}
	if b.result != nil {
		snap.Scenes = b.result.Successes()
		snap.Failures = b.result.Failures()
		snap.Videos = append([]scene.VideoReport(nil), b.result.Videos...)
	}
	if b.err != nil {
		snap.Error = b.err.Error()
	}
	return snap
}

// Result returns the finished result, or nil while the batch is still running
func (b *Batch) Result() *scene.BatchResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if !b.state.Terminal() {
		return nil
	}
	return b.result
}

// Done is closed once the batch reaches a terminal state
func (b *Batch) Done() <-chan struct{} {
	return b.done
}

// Subscribe returns a channel of progress events, starting with the current
// state. The channel is closed when the batch finishes or unsubscribe is called.
// Slow readers miss intermediate events, never the close.
func (b *Batch) Subscribe() (<-chan scene.Event, func()) {
	ch := make(chan scene.Event, subscriberBuffer)

	b.mu.Lock()
	ch <- scene.Event{Kind: kindFor(b.state), Progress: b.progress, Status: b.status}
	if b.state.Terminal() {
		close(ch)
		b.mu.Unlock()
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if _, ok := b.subs[ch]; ok {
				delete(b.subs, ch)
				close(ch)
			}
		})
	}
}

func kindFor(s State) scene.EventKind {
	if s.Terminal() {
		return scene.EventBatchDone
	}
	return scene.EventBatchStarted
}

// record applies an orchestrator event and fans it out
func (b *Batch) record(ev scene.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ev.Progress > b.progress {
		b.progress = ev.Progress
	}
	b.status = ev.Status
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (b *Batch) setRunning(cancel context.CancelFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateRunning
	b.status = "Starting"
	b.cancel = cancel
}

func (b *Batch) finish(result *scene.BatchResult, err error, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.result = result
	b.finishedAt = now
	switch {
	case err == nil:
		b.state = StateCompleted
		b.progress = 1
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		b.state = StateCancelled
		b.status = "Cancelled"
	default:
		b.state = StateFailed
		b.err = err
		b.status = err.Error()
	}

	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	close(b.done)
}

// Cancel stops a running batch; it is a no-op once the batch has finished
func (b *Batch) Cancel() {
	b.mu.RLock()
	cancel := b.cancel
	b.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (b *Batch) expired(cutoff time.Time) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.state.Terminal() && b.finishedAt.Before(cutoff)
}

package scene

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Sensitivity bounds accepted by the detector. Lower values find more boundaries.
const (
	MinSensitivity     = 15
	MaxSensitivity     = 30
	DefaultSensitivity = 27
)

// SupportedContainers lists the accepted source file extensions
var SupportedContainers = []string{".mp4", ".mov", ".avi", ".mkv", ".webm", ".m4v"}

// SourceVideo is an uploaded or local video accepted for processing
type SourceVideo struct {
	Name string
	// Size is the expected byte count, 0 when unknown
	Size int64
	Open func() (io.ReadCloser, error)
}

// FromBytes wraps in-memory content as a SourceVideo
func FromBytes(name string, data []byte) SourceVideo {
	return SourceVideo{
		Name: name,
		Size: int64(len(data)),
		Open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// FromFile wraps a file on disk as a SourceVideo
func FromFile(path string) (SourceVideo, error) {
	info, err := os.Stat(path)
	if err != nil {
		return SourceVideo{}, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		return SourceVideo{}, &CallerError{Field: "video", Reason: fmt.Sprintf("%s is a directory", path)}
	}

	return SourceVideo{
		Name: filepath.Base(path),
		Size: info.Size(),
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// EventKind classifies progress events
type EventKind string

const (
	EventBatchStarted  EventKind = "batch_started"
	EventVideoStarted  EventKind = "video_started"
	EventDetected      EventKind = "detected"
	EventNoScenes      EventKind = "no_scenes"
	EventVideoFailed   EventKind = "video_failed"
	EventSceneProgress EventKind = "scene_progress"
	EventSceneExported EventKind = "scene_exported"
	EventSceneFailed   EventKind = "scene_failed"
	EventVideoDone     EventKind = "video_done"
	EventBatchDone     EventKind = "batch_done"
)

// Event is one progress notification emitted during a batch
type Event struct {
	Kind     EventKind `json:"kind"`
	Progress float64   `json:"progress"`
	Status   string    `json:"status"`
	Source   string    `json:"source,omitempty"`
	Scene    int       `json:"scene,omitempty"`
}

// BatchContext carries everything one "process" action needs. The caller
// creates it per run and discards it with the result; nothing is shared
// between runs.
type BatchContext struct {
	Videos      []SourceVideo
	Sensitivity int
	Format      Format
	Options     ExportOptions
	OnEvent     func(Event)
}

// Validate rejects bad configuration before any work begins
func (b *BatchContext) Validate() error {
	if len(b.Videos) == 0 {
		return &CallerError{Field: "videos", Reason: "at least one video is required"}
	}
	for i, v := range b.Videos {
		if strings.TrimSpace(v.Name) == "" {
			return &CallerError{Field: "videos", Reason: fmt.Sprintf("video %d has no name", i+1)}
		}
		if v.Open == nil {
			return &CallerError{Field: "videos", Reason: fmt.Sprintf("video %s has no content", v.Name)}
		}
		if !SupportedContainer(v.Name) {
			return &CallerError{Field: "videos", Reason: fmt.Sprintf("unsupported container for %s (want one of %s)",
				v.Name, strings.Join(SupportedContainers, ", "))}
		}
	}
	if err := ValidateSensitivity(b.Sensitivity); err != nil {
		return err
	}
	if !b.Format.Valid() {
		return &CallerError{Field: "format", Reason: fmt.Sprintf("unknown output format %q", b.Format)}
	}
	if crf := b.Options.CRF; crf != nil && (*crf < 0 || *crf > 51) {
		return &CallerError{Field: "crf", Reason: "must be between 0 and 51"}
	}
	if b.Options.FPS < 0 || b.Options.Width < 0 {
		return &CallerError{Field: "options", Reason: "fps and width must not be negative"}
	}
	return nil
}

// ValidateSensitivity checks s against the fixed operating range
func ValidateSensitivity(s int) error {
	if s < MinSensitivity || s > MaxSensitivity {
		return &CallerError{
			Field:  "sensitivity",
			Reason: fmt.Sprintf("%d is outside [%d, %d]", s, MinSensitivity, MaxSensitivity),
		}
	}
	return nil
}

// SupportedContainer reports whether the file name has an accepted extension
func SupportedContainer(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, c := range SupportedContainers {
		if ext == c {
			return true
		}
	}
	return false
}

package scene

import (
	"fmt"
	"strings"
)

// Format identifies the kind of artifact produced for a scene
type Format string

const (
	FormatClip          Format = "clip"
	FormatAnimatedImage Format = "animated-image"
)

// Formats lists every supported output format
var Formats = []Format{FormatClip, FormatAnimatedImage}

// ParseFormat converts user input into a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "clip", "mp4", "video":
		return FormatClip, nil
	case "animated-image", "gif", "animated":
		return FormatAnimatedImage, nil
	default:
		names := make([]string, len(Formats))
		for i, f := range Formats {
			names[i] = string(f)
		}
		return "", &CallerError{Field: "format",
			Reason: fmt.Sprintf("unknown output format %q (want %s)", s, strings.Join(names, " or "))}
	}
}

// Extension returns the file extension (without dot) for the format
func (f Format) Extension() string {
	if f == FormatAnimatedImage {
		return "gif"
	}
	return "mp4"
}

// MIMEType returns the content type served for artifacts of this format
func (f Format) MIMEType() string {
	if f == FormatAnimatedImage {
		return "image/gif"
	}
	return "video/mp4"
}

// Valid reports whether f is one of the enumerated formats
func (f Format) Valid() bool {
	return f == FormatClip || f == FormatAnimatedImage
}

// Boundary is a detected scene interval [Start, End) in seconds
type Boundary struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Duration returns End - Start
func (b Boundary) Duration() float64 {
	return b.End - b.Start
}

// Midpoint returns the timestamp halfway through the boundary
func (b Boundary) Midpoint() float64 {
	return b.Start + b.Duration()/2
}

// Valid reports whether the boundary is non-negative and non-empty
func (b Boundary) Valid() bool {
	return b.Start >= 0 && b.Start < b.End
}

func (b Boundary) String() string {
	return fmt.Sprintf("%.3fs-%.3fs", b.Start, b.End)
}

// ExportOptions holds encoder settings applied to every scene of a batch.
// IncludeAudio only applies to FormatClip.
type ExportOptions struct {
	IncludeAudio bool   `json:"include_audio" yaml:"include_audio"`
	Preset       string `json:"preset,omitempty" yaml:"preset"`
	CRF          *int   `json:"crf,omitempty" yaml:"crf,omitempty"` // nil selects the configured default
	FPS          int    `json:"fps,omitempty" yaml:"fps"`
	Width        int    `json:"width,omitempty" yaml:"width"`
}

// SceneArtifact is one manifest entry: a successfully exported scene
type SceneArtifact struct {
	SourceName     string  `json:"source_video"`
	BaseName       string  `json:"base_name"`
	SceneIndex     int     `json:"scene_number"`
	Format         Format  `json:"format"`
	ArtifactBytes  []byte  `json:"-"`
	ThumbnailBytes []byte  `json:"-"`
	Start          float64 `json:"start_time"`
	End            float64 `json:"end_time"`
	Duration       float64 `json:"duration"`
}

// FileName returns the canonical file name used on disk and inside archives
func (a *SceneArtifact) FileName() string {
	return FileName(a.BaseName, a.SceneIndex, a.Format)
}

// VideoStatus summarizes how a single source video fared in a batch
type VideoStatus string

const (
	VideoPending         VideoStatus = "pending"
	VideoExported        VideoStatus = "exported"
	VideoPartial         VideoStatus = "partial"
	VideoNoScenes        VideoStatus = "no_scenes"
	VideoFailed          VideoStatus = "failed"
	VideoDetectionFailed VideoStatus = "detection_failed"
	VideoCancelled       VideoStatus = "cancelled"
)

// SceneFailure records why a single scene was omitted from the manifest
type SceneFailure struct {
	SceneIndex int      `json:"scene_number"`
	Boundary   Boundary `json:"boundary"`
	Kind       string   `json:"kind"`
	Message    string   `json:"message"`
}

// VideoReport holds per-video counts for reporting
type VideoReport struct {
	Name               string         `json:"name"`
	BaseName           string         `json:"base_name"`
	Status             VideoStatus    `json:"status"`
	BoundariesDetected int            `json:"boundaries_detected"`
	ScenesExported     int            `json:"scenes_exported"`
	Failures           []SceneFailure `json:"failures,omitempty"`
	Err                string         `json:"error,omitempty"`
}

// BatchResult is the outcome of one batch run
type BatchResult struct {
	Manifest  []SceneArtifact `json:"manifest"`
	Videos    []VideoReport   `json:"videos"`
	Cancelled bool            `json:"cancelled"`
}

// Successes returns the number of exported scenes across all videos
func (r *BatchResult) Successes() int {
	return len(r.Manifest)
}

// Failures returns the number of failed scenes across all videos
func (r *BatchResult) Failures() int {
	n := 0
	for _, v := range r.Videos {
		n += len(v.Failures)
	}
	return n
}

// Sources returns the distinct source names present in the manifest, in manifest order
func (r *BatchResult) Sources() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range r.Manifest {
		if !seen[a.SourceName] {
			seen[a.SourceName] = true
			out = append(out, a.SourceName)
		}
	}
	return out
}

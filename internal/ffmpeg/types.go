package ffmpeg

import "time"

// VideoInfo is the part of ffprobe's report the detector relies on
type VideoInfo struct {
	Duration time.Duration
	HasVideo bool
}

// Progress represents ffmpeg progress data
type Progress struct {
	Frame      int
	Time       string
	Percentage float64 // 0-100, only set when RunOptions.Duration is known
}

// ProgressFunc is a callback for progress updates during ffmpeg operations.
// Called periodically with progress information as the operation executes.
type ProgressFunc func(*Progress)

// RunOptions configures ffmpeg execution
type RunOptions struct {
	Args            []string
	Duration        float64 // expected output length in seconds, enables Percentage
	ProgressHandler ProgressFunc
	LogHandler      func(line string)
}

// Default encoding settings
const (
	DefaultCRF              = 23
	DefaultPreset           = "veryfast"
	DefaultVideoCodec       = "libx264"
	DefaultAudioCodec       = "aac"
	DefaultGIFFPS           = 10
	DefaultGIFWidth         = 480
	DefaultThumbnailQuality = 2
)

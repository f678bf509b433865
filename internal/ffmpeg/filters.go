package ffmpeg

import (
	"fmt"
	"strings"
)

// FilterBuilder helps construct ffmpeg filter chains
type FilterBuilder struct {
	filters []string
}

// NewFilterBuilder creates a new filter builder
func NewFilterBuilder() *FilterBuilder {
	return &FilterBuilder{
		filters: make([]string, 0),
	}
}

// ScaleWidth scales to a fixed width keeping aspect ratio
func (fb *FilterBuilder) ScaleWidth(width int) *FilterBuilder {
	if width <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("scale=%d:-1:flags=lanczos", width))
	return fb
}

// FPS adds an fps filter
func (fb *FilterBuilder) FPS(fps float64) *FilterBuilder {
	if fps <= 0 {
		return fb
	}
	fb.filters = append(fb.filters, fmt.Sprintf("fps=%f", fps))
	return fb
}

// Palette generates an optimal 256-color palette from the stream and applies it.
// It must be the last filter in the chain.
func (fb *FilterBuilder) Palette() *FilterBuilder {
	fb.filters = append(fb.filters, "split[s0][s1];[s0]palettegen[p];[s1][p]paletteuse")
	return fb
}

// Build returns the complete filter string joined with commas
func (fb *FilterBuilder) Build() string {
	if len(fb.filters) == 0 {
		return ""
	}
	return strings.Join(fb.filters, ",")
}

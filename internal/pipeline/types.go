package pipeline

import (
	"context"

	"github.com/keagan/scenesplit/internal/export"
	"github.com/keagan/scenesplit/internal/scene"
)

// Detector finds scene boundaries in a staged source file
type Detector interface {
	DetectBoundaries(ctx context.Context, path string, sensitivity int) ([]scene.Boundary, error)
}

// Exporter materializes a single boundary
type Exporter interface {
	ExportSegment(ctx context.Context, req export.Request) (*scene.SceneArtifact, error)
}

// Config holds pipeline-specific configuration
type Config struct {
	// Workers bounds concurrent scene exports within one video
	Workers int
	// TempDir is the parent of each batch's scoped working directory ("" = os.TempDir)
	TempDir string
	// DetectionShare is the fraction of a video's progress slice credited when detection finishes
	DetectionShare float64
}

// DefaultConfig returns pipeline defaults
func DefaultConfig() Config {
	return Config{
		Workers:        4,
		DetectionShare: 0.1,
	}
}

// sceneOutcome is what one export task leaves behind in its slot
type sceneOutcome struct {
	artifact *scene.SceneArtifact
	err      error
	ran      bool
}

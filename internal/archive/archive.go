package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"

	"github.com/keagan/scenesplit/internal/scene"
)

// Build bundles the selected manifest entries into a ZIP archive. indices are
// 0-based positions in manifest and are treated as a set; entries are written
// in ascending index order under their canonical file names.
func Build(manifest []scene.SceneArtifact, indices []int) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteTo(&buf, manifest, indices); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BuildAll bundles every manifest entry
func BuildAll(manifest []scene.SceneArtifact) ([]byte, error) {
	indices := make([]int, len(manifest))
	for i := range indices {
		indices[i] = i
	}
	return Build(manifest, indices)
}

// WriteTo streams the archive for the selected entries to w. Selection errors
// are reported before anything is written.
func WriteTo(w io.Writer, manifest []scene.SceneArtifact, indices []int) error {
	selected, err := Select(manifest, indices)
	if err != nil {
		return err
	}

	zw := zip.NewWriter(w)
	for _, i := range selected {
		a := manifest[i]
		// zero timestamps keep identical selections byte-identical
		fw, err := zw.CreateHeader(&zip.FileHeader{
			Name:   a.FileName(),
			Method: zip.Deflate,
		})
		if err != nil {
			return fmt.Errorf("failed to add %s: %w", a.FileName(), err)
		}
		if _, err := fw.Write(a.ArtifactBytes); err != nil {
			return fmt.Errorf("failed to write %s: %w", a.FileName(), err)
		}
	}

	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to finalize archive: %w", err)
	}
	return nil
}

// Select validates indices against manifest and returns them deduplicated and sorted
func Select(manifest []scene.SceneArtifact, indices []int) ([]int, error) {
	if len(indices) == 0 {
		return nil, &scene.CallerError{Field: "indices", Reason: "select at least one scene"}
	}

	seen := make(map[int]bool, len(indices))
	out := make([]int, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(manifest) {
			return nil, &scene.CallerError{
				Field:  "indices",
				Reason: fmt.Sprintf("index %d out of range [0, %d)", i, len(manifest)),
			}
		}
		if !seen[i] {
			seen[i] = true
			out = append(out, i)
		}
	}

	sort.Ints(out)
	return out, nil
}

package scene

import (
	"fmt"
	"path/filepath"
	"strings"
)

// SanitizeBase strips the extension from a source file name and replaces every
// character outside [A-Za-z0-9_-] with an underscore.
func SanitizeBase(name string) string {
	base := filepath.Base(name)
	base = strings.TrimSuffix(base, filepath.Ext(base))

	var b strings.Builder
	for _, r := range base {
		if isNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	if b.Len() == 0 {
		return "video"
	}
	return b.String()
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '-' || r == '_':
		return true
	default:
		return false
	}
}

// FileName builds {base}_scene{index}.{ext}
func FileName(base string, index int, format Format) string {
	return fmt.Sprintf("%s_scene%d.%s", base, index, format.Extension())
}

// ThumbnailName builds {base}_scene{index}_thumb.jpg
func ThumbnailName(base string, index int) string {
	return fmt.Sprintf("%s_scene%d_thumb.jpg", base, index)
}

// AssignBaseNames returns one sanitized base name per source. When two sources
// sanitize to the same base, every source after the first gets its 1-based
// position appended so canonical file names stay unique within a batch.
func AssignBaseNames(names []string) []string {
	bases := make([]string, len(names))
	taken := make(map[string]bool, len(names))

	for i, name := range names {
		base := SanitizeBase(name)
		if taken[base] {
			candidate := fmt.Sprintf("%s_%d", base, i+1)
			for n := 2; taken[candidate]; n++ {
				candidate = fmt.Sprintf("%s_%d_%d", base, i+1, n)
			}
			base = candidate
		}
		taken[base] = true
		bases[i] = base
	}

	return bases
}

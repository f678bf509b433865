package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/keagan/scenesplit/internal/scene"
)

func TestWriteResult(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	result := &scene.BatchResult{
		Manifest: []scene.SceneArtifact{
			{SourceName: "a.mp4", BaseName: "a", SceneIndex: 1, Format: scene.FormatClip,
				ArtifactBytes: []byte("clip"), ThumbnailBytes: []byte("jpg"), Start: 0, End: 2, Duration: 2},
		},
		Videos: []scene.VideoReport{{Name: "a.mp4", BaseName: "a", Status: scene.VideoExported, BoundariesDetected: 1, ScenesExported: 1}},
	}

	if err := writeResult(dir, result); err != nil {
		t.Fatalf("writeResult() error = %v", err)
	}

	for name, want := range map[string]string{"a_scene1.mp4": "clip", "a_scene1_thumb.jpg": "jpg"} {
		got, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil || string(got) != want {
			t.Errorf("%s = %q, %v", name, got, err)
		}
	}

	data, err := os.ReadFile(filepath.Join(dir, "manifest.json"))
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Manifest []struct {
			SourceVideo string  `json:"source_video"`
			SceneNumber int     `json:"scene_number"`
			Duration    float64 `json:"duration"`
		} `json:"manifest"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if len(decoded.Manifest) != 1 || decoded.Manifest[0].SourceVideo != "a.mp4" || decoded.Manifest[0].SceneNumber != 1 {
		t.Errorf("unexpected manifest %s", data)
	}
}

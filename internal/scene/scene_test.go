package scene

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeBase(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "holiday.mp4", want: "holiday"},
		{name: "spaces and dots", in: "my trip.final.mov", want: "my_trip_final"},
		{name: "allowed punctuation", in: "a-b_c.mkv", want: "a-b_c"},
		{name: "unicode", in: "café ☕.mp4", want: "caf___"},
		{name: "directory stripped", in: "/tmp/uploads/clip.avi", want: "clip"},
		{name: "empty base", in: ".mp4", want: "video"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeBase(tc.in); got != tc.want {
				t.Fatalf("SanitizeBase(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestFileName(t *testing.T) {
	if got := FileName("holiday", 3, FormatClip); got != "holiday_scene3.mp4" {
		t.Fatalf("unexpected clip name %q", got)
	}
	if got := FileName("holiday", 1, FormatAnimatedImage); got != "holiday_scene1.gif" {
		t.Fatalf("unexpected gif name %q", got)
	}
	if got := ThumbnailName("holiday", 2); got != "holiday_scene2_thumb.jpg" {
		t.Fatalf("unexpected thumbnail name %q", got)
	}
}

func TestAssignBaseNames(t *testing.T) {
	got := AssignBaseNames([]string{"a b.mp4", "a_b.mov", "other.mp4", "a?b.mkv"})
	want := []string{"a_b", "a_b_2", "other", "a_b_4"}

	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("AssignBaseNames()[%d] = %q, want %q (all: %v)", i, got[i], want[i], got)
		}
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{
		"clip":           FormatClip,
		"MP4":            FormatClip,
		"animated-image": FormatAnimatedImage,
		"gif":            FormatAnimatedImage,
	} {
		got, err := ParseFormat(in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) error = %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseFormat(%q) = %q, want %q", in, got, want)
		}
	}

	_, err := ParseFormat("webp")
	if !IsCallerError(err) {
		t.Fatalf("expected CallerError for unknown format, got %v", err)
	}
	if !strings.Contains(err.Error(), "want clip or animated-image") {
		t.Errorf("error does not list the formats: %v", err)
	}
}

func TestBoundary(t *testing.T) {
	b := Boundary{Start: 2, End: 5}
	if b.Duration() != 3 {
		t.Fatalf("Duration() = %v", b.Duration())
	}
	if b.Midpoint() != 3.5 {
		t.Fatalf("Midpoint() = %v", b.Midpoint())
	}
	if !b.Valid() {
		t.Fatal("expected valid boundary")
	}
	if (Boundary{Start: 5, End: 5}).Valid() {
		t.Fatal("empty boundary should be invalid")
	}
	if (Boundary{Start: -1, End: 2}).Valid() {
		t.Fatal("negative start should be invalid")
	}
}

func TestBatchContextValidate(t *testing.T) {
	good := func() *BatchContext {
		return &BatchContext{
			Videos:      []SourceVideo{FromBytes("a.mp4", []byte("x"))},
			Sensitivity: 27,
			Format:      FormatClip,
		}
	}

	if err := good().Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(b *BatchContext)
		field  string
	}{
		{name: "no videos", mutate: func(b *BatchContext) { b.Videos = nil }, field: "videos"},
		{name: "sensitivity low", mutate: func(b *BatchContext) { b.Sensitivity = 14 }, field: "sensitivity"},
		{name: "sensitivity high", mutate: func(b *BatchContext) { b.Sensitivity = 31 }, field: "sensitivity"},
		{name: "format", mutate: func(b *BatchContext) { b.Format = "webp" }, field: "format"},
		{name: "container", mutate: func(b *BatchContext) { b.Videos[0].Name = "notes.txt" }, field: "videos"},
		{name: "crf", mutate: func(b *BatchContext) { crf := 60; b.Options.CRF = &crf }, field: "crf"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			b := good()
			tc.mutate(b)
			err := b.Validate()
			var ce *CallerError
			if !errors.As(err, &ce) {
				t.Fatalf("Validate() = %v, want CallerError", err)
			}
			if ce.Field != tc.field {
				t.Fatalf("CallerError.Field = %q, want %q", ce.Field, tc.field)
			}
		})
	}
}

func TestFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.mp4")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	src, err := FromFile(path)
	if err != nil {
		t.Fatalf("FromFile() error = %v", err)
	}
	if src.Name != "source.mp4" || src.Size != 7 {
		t.Fatalf("unexpected source %+v", src)
	}

	rc, err := src.Open()
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer rc.Close()
	data, _ := io.ReadAll(rc)
	if string(data) != "payload" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestErrorTaxonomy(t *testing.T) {
	enc := &EncodingError{Source: "a.mp4", SceneIndex: 2, Err: fmt.Errorf("exit status 1"), Diagnostics: "frame=1\nInvalid data found\n"}
	if FailureKind(fmt.Errorf("wrapped: %w", enc)) != "encoding" {
		t.Fatal("expected encoding kind")
	}
	if got := enc.Error(); got != "encode a.mp4 scene 2: exit status 1: Invalid data found" {
		t.Fatalf("unexpected message %q", got)
	}
	if FailureKind(&ExportError{Reason: "too small"}) != "export" {
		t.Fatal("expected export kind")
	}

	det := &DetectionError{Source: "a.mp4", Err: io.ErrUnexpectedEOF}
	if !errors.Is(det, io.ErrUnexpectedEOF) {
		t.Fatal("DetectionError should unwrap")
	}
}

func TestBatchResultCounts(t *testing.T) {
	r := &BatchResult{
		Manifest: []SceneArtifact{{SourceName: "a.mp4"}, {SourceName: "b.mp4"}, {SourceName: "a.mp4"}},
		Videos: []VideoReport{
			{Name: "a.mp4", Failures: []SceneFailure{{SceneIndex: 2}}},
			{Name: "b.mp4"},
		},
	}
	if r.Successes() != 3 || r.Failures() != 1 {
		t.Fatalf("Successes()=%d Failures()=%d", r.Successes(), r.Failures())
	}
	if got := r.Sources(); len(got) != 2 || got[0] != "a.mp4" || got[1] != "b.mp4" {
		t.Fatalf("Sources() = %v", got)
	}
}

package api

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/keagan/scenesplit/internal/scene"
	"github.com/keagan/scenesplit/pkg/util"
)

const maxFieldBytes = 1 << 10

// parseUpload streams the multipart body of a batch submission. Video parts
// ("files") are written into dir; the other fields override defaults.
func parseUpload(r *http.Request, dir string, defaults scene.BatchContext) (*scene.BatchContext, error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return nil, &scene.CallerError{Field: "body", Reason: "expected multipart/form-data"}
	}

	bc := &scene.BatchContext{
		Sensitivity: defaults.Sensitivity,
		Format:      defaults.Format,
		Options:     defaults.Options,
	}
	if bc.Sensitivity == 0 {
		bc.Sensitivity = scene.DefaultSensitivity
	}
	if bc.Format == "" {
		bc.Format = scene.FormatClip
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &scene.CallerError{Field: "body", Reason: fmt.Sprintf("malformed multipart body: %v", err)}
		}

		name := part.FormName()
		if name == "files" || part.FileName() != "" {
			video, err := saveVideo(part, dir, len(bc.Videos))
			part.Close()
			if err != nil {
				return nil, err
			}
			bc.Videos = append(bc.Videos, video)
			continue
		}

		value, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
		part.Close()
		if err != nil {
			return nil, &scene.CallerError{Field: name, Reason: "unreadable field"}
		}
		if err := applyField(bc, name, strings.TrimSpace(string(value))); err != nil {
			return nil, err
		}
	}

	return bc, nil
}

func saveVideo(part *multipart.Part, dir string, position int) (scene.SourceVideo, error) {
	name := filepath.Base(part.FileName())
	if name == "" || name == "." || name == string(filepath.Separator) {
		return scene.SourceVideo{}, &scene.CallerError{Field: "files", Reason: "uploaded file has no name"}
	}
	if !scene.SupportedContainer(name) {
		return scene.SourceVideo{}, &scene.CallerError{Field: "files", Reason: fmt.Sprintf("unsupported container for %s", name)}
	}

	path := filepath.Join(dir, fmt.Sprintf("%03d%s", position+1, strings.ToLower(filepath.Ext(name))))
	size, err := util.WriteStream(path, part)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return scene.SourceVideo{}, &scene.CallerError{Field: "files", Reason: fmt.Sprintf("upload exceeds %d bytes", maxErr.Limit)}
		}
		return scene.SourceVideo{}, fmt.Errorf("failed to store upload %s: %w", name, err)
	}

	return scene.SourceVideo{
		Name: name,
		Size: size,
		Open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

func applyField(bc *scene.BatchContext, name, value string) error {
	if value == "" {
		return nil
	}

	switch name {
	case "sensitivity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return &scene.CallerError{Field: "sensitivity", Reason: fmt.Sprintf("%q is not an integer", value)}
		}
		bc.Sensitivity = n
	case "format":
		f, err := scene.ParseFormat(value)
		if err != nil {
			return err
		}
		bc.Format = f
	case "include_audio":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return &scene.CallerError{Field: "include_audio", Reason: fmt.Sprintf("%q is not a boolean", value)}
		}
		bc.Options.IncludeAudio = b
	}
	return nil
}

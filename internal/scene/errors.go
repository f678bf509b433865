package scene

import (
	"errors"
	"fmt"
)

// DetectionError means a source video could not be opened or decoded.
// It is scoped to one video: the batch skips it and continues.
type DetectionError struct {
	Source string
	Err    error
}

func (e *DetectionError) Error() string {
	return fmt.Sprintf("detect %s: %v", e.Source, e.Err)
}

func (e *DetectionError) Unwrap() error { return e.Err }

// EncodingError means the external encoder exited non-zero for one scene
type EncodingError struct {
	Source      string
	SceneIndex  int
	ExitCode    int
	Diagnostics string
	Err         error
}

func (e *EncodingError) Error() string {
	msg := fmt.Sprintf("encode %s scene %d: %v", e.Source, e.SceneIndex, e.Err)
	if e.Diagnostics != "" {
		msg += ": " + lastLine(e.Diagnostics)
	}
	return msg
}

func (e *EncodingError) Unwrap() error { return e.Err }

// ExportError means the encoder reported success but the output failed validation
type ExportError struct {
	Source     string
	SceneIndex int
	Path       string
	Reason     string
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s scene %d: %s", e.Source, e.SceneIndex, e.Reason)
}

// CallerError is an invalid configuration value or selection, rejected before any work
type CallerError struct {
	Field  string
	Reason string
}

func (e *CallerError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// IsCallerError reports whether err (or anything it wraps) is a CallerError
func IsCallerError(err error) bool {
	var ce *CallerError
	return errors.As(err, &ce)
}

// FailureKind names the taxonomy bucket of a scene-scoped error
func FailureKind(err error) string {
	var enc *EncodingError
	var exp *ExportError
	switch {
	case errors.As(err, &enc):
		return "encoding"
	case errors.As(err, &exp):
		return "export"
	default:
		return "internal"
	}
}

func lastLine(s string) string {
	end := len(s)
	for end > 0 && (s[end-1] == '\n' || s[end-1] == '\r') {
		end--
	}
	start := end
	for start > 0 && s[start-1] != '\n' {
		start--
	}
	return s[start:end]
}

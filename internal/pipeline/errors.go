package pipeline

import (
	"errors"
	"fmt"
	"path/filepath"
)

// Kind classifies a failure by the stage that produced it.
type Kind string

const (
	// ProbeFailure: dimensions or stream parameters could not be read.
	ProbeFailure Kind = "probe"
	// DecodeFailure: pixel data could not be read.
	DecodeFailure Kind = "decode"
	// EncodeFailure: output could not be produced.
	EncodeFailure Kind = "encode"
	// FilesystemFailure: workspace or output file handling failed.
	FilesystemFailure Kind = "filesystem"
	// ConfigFailure: calibration or settings are unusable.
	ConfigFailure Kind = "config"
)

// Sentinels matched by errors.Is against a *FileError of the same kind.
var (
	ErrProbe      = errors.New("probe failure")
	ErrDecode     = errors.New("decode failure")
	ErrEncode     = errors.New("encode failure")
	ErrFilesystem = errors.New("filesystem failure")
	ErrConfig     = errors.New("configuration failure")
)

func (k Kind) sentinel() error {
	switch k {
	case ProbeFailure:
		return ErrProbe
	case DecodeFailure:
		return ErrDecode
	case EncodeFailure:
		return ErrEncode
	case FilesystemFailure:
		return ErrFilesystem
	default:
		return ErrConfig
	}
}

// FileError is a per-file failure.
type FileError struct {
	Path string
	Kind Kind
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", filepath.Base(e.Path), e.Kind, e.Err)
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *FileError) Unwrap() []error {
	return []error{e.Kind.sentinel(), e.Err}
}

func fail(path string, kind Kind, err error) *FileError {
	return &FileError{Path: path, Kind: kind, Err: err}
}

// KindOf returns the kind of a *FileError in err's chain, or "" if none.
func KindOf(err error) Kind {
	var fe *FileError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

// ConfigError marks a startup error as a ConfigFailure.
func ConfigError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrConfig, err)
}

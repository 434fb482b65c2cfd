// Package errs defines the failure kinds shared by the training engines.
//
// Every error returned by the engines wraps exactly one kind, so callers can
// branch with errors.Is without parsing messages:
//
//	if errors.Is(err, errs.ErrCorpus) {
//	    ...
//	}
package errs

import (
	"errors"
	"fmt"
)

var (
	// ErrConfig reports an invalid training parameter.
	ErrConfig = errors.New("invalid configuration")
	// ErrCorpus reports a missing, unreadable or empty corpus.
	ErrCorpus = errors.New("corpus error")
	// ErrTraining reports a merge or segmentation step that cannot proceed.
	ErrTraining = errors.New("training failure")
	// ErrDecode reports an unknown token id during reconstruction.
	ErrDecode = errors.New("decode error")
	// ErrIO reports a failed save or load.
	ErrIO = errors.New("i/o error")
)

// Error carries a failure kind together with the operation and, for file
// operations, the path involved.
type Error struct {
	Kind error
	Op   string
	Path string
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + e.Path
	}

	switch {
	case e.Err != nil && msg != "":
		return fmt.Sprintf("%s: %v", msg, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	case msg != "":
		return fmt.Sprintf("%s: %v", msg, e.Kind)
	default:
		return e.Kind.Error()
	}
}

// Unwrap exposes both the kind and the underlying cause to errors.Is/As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}

	return []error{e.Kind, e.Err}
}

// Config returns an ErrConfig error with a formatted message.
func Config(format string, args ...any) error {
	return &Error{Kind: ErrConfig, Err: fmt.Errorf(format, args...)}
}

// Corpus returns an ErrCorpus error for op on path.
func Corpus(op, path string, err error) error {
	return &Error{Kind: ErrCorpus, Op: op, Path: path, Err: err}
}

// Training returns an ErrTraining error with a formatted message.
func Training(format string, args ...any) error {
	return &Error{Kind: ErrTraining, Err: fmt.Errorf(format, args...)}
}

// Decode returns an ErrDecode error with a formatted message.
func Decode(format string, args ...any) error {
	return &Error{Kind: ErrDecode, Err: fmt.Errorf(format, args...)}
}

// IO returns an ErrIO error for op on path.
func IO(op, path string, err error) error {
	return &Error{Kind: ErrIO, Op: op, Path: path, Err: err}
}

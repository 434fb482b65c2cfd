package errs

import (
	"errors"
	"io/fs"
	"testing"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{name: "config", err: Config("target %d below %d", 10, 256), kind: ErrConfig},
		{name: "corpus", err: Corpus("open corpus", "/tmp/x", fs.ErrNotExist), kind: ErrCorpus},
		{name: "training", err: Training("heap underflow"), kind: ErrTraining},
		{name: "decode", err: Decode("unknown id %d", 9999), kind: ErrDecode},
		{name: "io", err: IO("write model", "/tmp/m", fs.ErrPermission), kind: ErrIO},
	}

	all := []error{ErrConfig, ErrCorpus, ErrTraining, ErrDecode, ErrIO}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, k := range all {
				got := errors.Is(tt.err, k)
				if got != (k == tt.kind) {
					t.Errorf("errors.Is(%v, %v) = %v", tt.err, k, got)
				}
			}
		})
	}
}

func TestCauseIsPreserved(t *testing.T) {
	err := Corpus("open corpus", "/missing.txt", fs.ErrNotExist)
	if !errors.Is(err, fs.ErrNotExist) {
		t.Fatalf("expected fs.ErrNotExist in chain: %v", err)
	}

	want := "open corpus /missing.txt: file does not exist"
	if err.Error() != want {
		t.Errorf("Error() = %q; want %q", err.Error(), want)
	}
}

func TestErrorWithoutCause(t *testing.T) {
	err := &Error{Kind: ErrTraining, Op: "merge"}
	if err.Error() != "merge: training failure" {
		t.Errorf("Error() = %q", err.Error())
	}

	var target *Error
	if !errors.As(Config("x"), &target) || target.Kind != ErrConfig {
		t.Errorf("errors.As did not recover *Error")
	}
}

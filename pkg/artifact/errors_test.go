package artifact

import (
	"errors"
	"fmt"
	"testing"
)

func TestWriteError_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := &WriteError{Key: "functions/ACME.json", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("WriteError should unwrap to its cause")
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("WriteError must not match ErrNotFound")
	}
}

func TestActivationError_Unwrap(t *testing.T) {
	cause := errors.New("compile failed")
	err := &ActivationError{EntityID: "ACME", Err: cause}
	if !errors.Is(err, cause) {
		t.Error("ActivationError should unwrap to its cause")
	}
	var actErr *ActivationError
	if !errors.As(err, &actErr) || actErr.EntityID != "ACME" {
		t.Errorf("errors.As lost the entity: %+v", actErr)
	}
}

func TestErrNotFound_SurvivesWrapping(t *testing.T) {
	wrapped := fmt.Errorf("load ACME: %w", ErrNotFound)
	if !errors.Is(wrapped, ErrNotFound) {
		t.Error("wrapped ErrNotFound no longer matches")
	}
}

func TestVersionParseError_Message(t *testing.T) {
	err := &VersionParseError{Raw: "one.two.three"}
	want := `invalid version "one.two.three": want major.minor.patch`
	if err.Error() != want {
		t.Errorf("got %q, want %q", err.Error(), want)
	}
}

package artifact

import (
	"errors"
	"fmt"
)

// ErrNotFound is the sentinel for lookup misses: no current artifact, no
// such version, no registry record. Callers branch on it with errors.Is;
// a miss is expected flow, never logged as a failure.
var ErrNotFound = errors.New("not found")

// WriteError reports a failed write to the backing medium (disk full,
// permission denied, unreachable bucket). The operation that hit it is
// abandoned without rollback; see Store.Save for the partial-write window.
type WriteError struct {
	Key string
	Err error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write %s: %v", e.Key, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// VersionParseError signals a stored version string that is not in
// major.minor.patch integer form. It surfaces corrupted history, not a
// normal-flow condition.
type VersionParseError struct {
	Raw string
}

func (e *VersionParseError) Error() string {
	return fmt.Sprintf("invalid version %q: want major.minor.patch", e.Raw)
}

// ActivationError wraps any failure to turn a stored artifact into a
// callable namespace: schema violations, expression compile errors,
// invalid wasm. The underlying cause is attached.
type ActivationError struct {
	EntityID string
	Err      error
}

func (e *ActivationError) Error() string {
	return fmt.Sprintf("activate %s: %v", e.EntityID, e.Err)
}

func (e *ActivationError) Unwrap() error { return e.Err }

// RegistrationError reports an artifact that activated but does not honor
// the discovery contract. It flags defective artifact content, not a
// loadability problem, and is not fatal to the pipeline around it.
type RegistrationError struct {
	EntityID string
	Reason   string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %s: %s", e.EntityID, e.Reason)
}

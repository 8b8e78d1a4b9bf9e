package activation

import (
	"context"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// Load activates an artifact blob for the given entity. Blobs carrying
// the wasm preamble go to the WASI engine; everything else is treated as
// a ruleset document. Failures are reported as *artifact.ActivationError
// so callers can distinguish content defects from storage problems.
func Load(ctx context.Context, entityID string, blob []byte) (Namespace, error) {
	if IsWasm(blob) {
		ns, err := LoadWasm(ctx, entityID, blob, DefaultWasmLimits)
		if err != nil {
			return nil, &artifact.ActivationError{EntityID: entityID, Err: err}
		}
		return ns, nil
	}

	ns, err := LoadRuleset(blob)
	if err != nil {
		return nil, &artifact.ActivationError{EntityID: entityID, Err: err}
	}
	return ns, nil
}

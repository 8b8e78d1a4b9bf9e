package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/policyforge/policyforge/pkg/activation"
	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/signing"
)

// Activate loads the current artifact and turns it into a callable
// namespace. When the store carries a keyring the blob's detached
// signature is verified first, and a missing or invalid signature fails
// the activation. Content defects (schema violations, bad expressions,
// invalid wasm) surface as *artifact.ActivationError with the cause
// attached. No scratch files are involved.
func (s *Store) Activate(ctx context.Context, entityID string) (activation.Namespace, error) {
	art, err := s.Load(ctx, entityID)
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, art)
}

// ActivateVersion is Activate for one exact stored version.
func (s *Store) ActivateVersion(ctx context.Context, entityID, version string) (activation.Namespace, error) {
	art, err := s.LoadVersion(ctx, entityID, version)
	if err != nil {
		return nil, err
	}
	return s.activate(ctx, art)
}

func (s *Store) activate(ctx context.Context, art *artifact.Artifact) (activation.Namespace, error) {
	if s.keyring != nil {
		if err := s.checkSignature(ctx, art); err != nil {
			return nil, err
		}
	}
	return activation.Load(ctx, art.EntityID, art.Blob)
}

func (s *Store) checkSignature(ctx context.Context, art *artifact.Artifact) error {
	sigJSON, err := s.backend.Get(ctx, signatureKey(art.EntityID, art.Version))
	if err != nil {
		return fmt.Errorf("signature for %s v%s unavailable: %w", art.EntityID, art.Version, err)
	}

	var sig signing.Signature
	if err := json.Unmarshal(sigJSON, &sig); err != nil {
		return fmt.Errorf("failed to decode signature for %s v%s: %w", art.EntityID, art.Version, err)
	}

	signer, err := s.keyring.DeriveSigner(art.EntityID)
	if err != nil {
		return fmt.Errorf("failed to derive verifier for %s: %w", art.EntityID, err)
	}
	if err := signer.Verify(art.Blob, sig); err != nil {
		return fmt.Errorf("artifact %s v%s: %w", art.EntityID, art.Version, err)
	}
	return nil
}

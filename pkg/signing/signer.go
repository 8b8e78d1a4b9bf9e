package signing

import (
	"crypto/ed25519"
	"encoding/hex"
	"fmt"
)

// AlgorithmEd25519 is the only signature algorithm currently produced.
const AlgorithmEd25519 = "ed25519"

// Signature is the detached signature object persisted next to a
// versioned artifact copy.
type Signature struct {
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
	Sig       string `json:"sig"`
}

// Signer signs and verifies blobs with one derived entity keypair.
type Signer struct {
	keyID string
	priv  ed25519.PrivateKey
	pub   ed25519.PublicKey
}

// Sign produces a detached signature over the raw blob bytes.
func (s *Signer) Sign(blob []byte) Signature {
	return Signature{
		KeyID:     s.keyID,
		Algorithm: AlgorithmEd25519,
		Sig:       hex.EncodeToString(ed25519.Sign(s.priv, blob)),
	}
}

// PublicKey returns the signer's verification key.
func (s *Signer) PublicKey() ed25519.PublicKey {
	return s.pub
}

// Verify checks a detached signature against the blob. A nil return
// means the signature is valid and was produced by this signer's key.
func (s *Signer) Verify(blob []byte, sig Signature) error {
	return Verify(s.pub, blob, sig)
}

// Verify checks a detached signature against an explicit public key.
func Verify(pub ed25519.PublicKey, blob []byte, sig Signature) error {
	if sig.Algorithm != AlgorithmEd25519 {
		return fmt.Errorf("unsupported signature algorithm %q", sig.Algorithm)
	}
	raw, err := hex.DecodeString(sig.Sig)
	if err != nil {
		return fmt.Errorf("invalid signature hex: %w", err)
	}
	if len(raw) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature size %d", len(raw))
	}
	if !ed25519.Verify(pub, blob, raw) {
		return fmt.Errorf("signature verification failed for key %s", sig.KeyID)
	}
	return nil
}

// Package signing derives per-entity Ed25519 keys from a master secret
// and produces detached signatures over artifact blobs. The store writes
// one signature object per versioned copy and checks it before
// activation when a keyring is configured.
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

// kdfSalt separates this keyring's derivations from any other use of the
// same master secret.
var kdfSalt = []byte("policyforge-entity-kdf")

// MasterKeySize is the required master secret length in bytes.
const MasterKeySize = 32

// Keyring derives deterministic per-entity signing keys using
// HKDF-SHA256 with the entity ID as info. The same master secret always
// yields the same keypair for an entity, so verification needs no key
// distribution beyond the master.
type Keyring struct {
	master []byte
}

// NewKeyring validates the master secret length and returns a keyring.
func NewKeyring(master []byte) (*Keyring, error) {
	if len(master) != MasterKeySize {
		return nil, fmt.Errorf("master key must be %d bytes, got %d", MasterKeySize, len(master))
	}
	k := &Keyring{master: make([]byte, MasterKeySize)}
	copy(k.master, master)
	return k, nil
}

// DeriveSigner returns the entity's signer. Derivation is deterministic:
// HKDF-SHA256(master, salt, entityID) feeds an Ed25519 seed.
func (k *Keyring) DeriveSigner(entityID string) (*Signer, error) {
	if entityID == "" {
		return nil, fmt.Errorf("entity id must not be empty")
	}

	hkdfReader := hkdf.New(sha256.New, k.master, kdfSalt, []byte(entityID))
	seed := make([]byte, ed25519.SeedSize)
	if _, err := io.ReadFull(hkdfReader, seed); err != nil {
		return nil, fmt.Errorf("HKDF derivation failed: %w", err)
	}

	priv := ed25519.NewKeyFromSeed(seed)
	return &Signer{
		keyID: entityID,
		priv:  priv,
		pub:   priv.Public().(ed25519.PublicKey),
	}, nil
}

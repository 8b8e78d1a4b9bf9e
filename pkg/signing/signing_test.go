package signing

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMaster() []byte {
	return bytes.Repeat([]byte{0x42}, MasterKeySize)
}

func TestNewKeyringRejectsBadMasterLength(t *testing.T) {
	_, err := NewKeyring([]byte("too short"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "must be 32 bytes")
}

func TestDeriveSignerIsDeterministic(t *testing.T) {
	k1, err := NewKeyring(testMaster())
	require.NoError(t, err)
	k2, err := NewKeyring(testMaster())
	require.NoError(t, err)

	s1, err := k1.DeriveSigner("ACME_CORP")
	require.NoError(t, err)
	s2, err := k2.DeriveSigner("ACME_CORP")
	require.NoError(t, err)

	require.Equal(t, s1.PublicKey(), s2.PublicKey())
}

func TestDeriveSignerSeparatesEntities(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)

	acme, err := k.DeriveSigner("ACME_CORP")
	require.NoError(t, err)
	globex, err := k.DeriveSigner("GLOBEX")
	require.NoError(t, err)

	require.NotEqual(t, acme.PublicKey(), globex.PublicKey())
}

func TestDeriveSignerRejectsEmptyEntity(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)

	_, err = k.DeriveSigner("")
	require.Error(t, err)
}

func TestSignVerifyRoundTrip(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)
	signer, err := k.DeriveSigner("ACME_CORP")
	require.NoError(t, err)

	blob := []byte(`{"schema": "policyforge/ruleset/v1"}`)
	sig := signer.Sign(blob)

	require.Equal(t, "ACME_CORP", sig.KeyID)
	require.Equal(t, AlgorithmEd25519, sig.Algorithm)
	require.NoError(t, signer.Verify(blob, sig))
}

func TestVerifyRejectsTamperedBlob(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)
	signer, err := k.DeriveSigner("ACME_CORP")
	require.NoError(t, err)

	sig := signer.Sign([]byte("original"))
	err = signer.Verify([]byte("tampered"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "verification failed")
}

func TestVerifyRejectsForeignAlgorithm(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)
	signer, err := k.DeriveSigner("ACME_CORP")
	require.NoError(t, err)

	sig := signer.Sign([]byte("blob"))
	sig.Algorithm = "rsa-pss"
	err = signer.Verify([]byte("blob"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported signature algorithm")
}

func TestVerifyRejectsMalformedHex(t *testing.T) {
	k, err := NewKeyring(testMaster())
	require.NoError(t, err)
	signer, err := k.DeriveSigner("ACME_CORP")
	require.NoError(t, err)

	sig := signer.Sign([]byte("blob"))
	sig.Sig = "zz-not-hex"
	require.Error(t, signer.Verify([]byte("blob"), sig))

	sig.Sig = "deadbeef"
	err = signer.Verify([]byte("blob"), sig)
	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid signature size")
}

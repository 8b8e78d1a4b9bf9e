package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyCleanEntity(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "ACME", []byte("CODE_V1"), nil)
	require.NoError(t, err)
	_, err = s.Save(ctx, "ACME", []byte("CODE_V2"), nil)
	require.NoError(t, err)

	report, err := s.Verify(ctx, "ACME")
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Equal(t, 2, report.Checked)
	require.Equal(t, "ACME", report.EntityID)
}

func TestVerifyUnknownEntity(t *testing.T) {
	s, _ := newTestStore(t)

	report, err := s.Verify(context.Background(), "GHOST")
	require.NoError(t, err)
	require.True(t, report.OK())
	require.Zero(t, report.Checked)
}

func TestVerifyDetectsTamperedVersionedCopy(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "ACME", []byte("CODE_V1"), nil)
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, "versions/ACME_v1.0.0.json", []byte("EVIL")))

	report, err := s.Verify(ctx, "ACME")
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Len(t, report.Issues, 1)
	require.Equal(t, "1.0.0", report.Issues[0].Version)
	require.Contains(t, report.Issues[0].Problem, "content hash mismatch")
}

func TestVerifyDetectsMissingVersionedCopy(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "ACME", []byte("CODE_V1"), nil)
	require.NoError(t, err)

	require.NoError(t, backend.Delete(ctx, "versions/ACME_v1.0.0.json"))

	report, err := s.Verify(ctx, "ACME")
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Equal(t, "versioned copy missing", report.Issues[0].Problem)
}

func TestVerifyDetectsStrayVersionedCopy(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "ACME", []byte("CODE_V1"), nil)
	require.NoError(t, err)

	// A copy the ledger never heard of (partial-write remnant).
	require.NoError(t, backend.Put(ctx, "versions/ACME_v9.9.9.json", []byte("stray")))

	report, err := s.Verify(ctx, "ACME")
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Len(t, report.Issues, 1)
	require.Equal(t, "9.9.9", report.Issues[0].Version)
	require.Contains(t, report.Issues[0].Problem, "absent from history ledger")
}

func TestVerifyDetectsDivergedCurrent(t *testing.T) {
	s, backend := newTestStore(t)
	ctx := context.Background()

	_, err := s.Save(ctx, "ACME", []byte("CODE_V1"), nil)
	require.NoError(t, err)

	require.NoError(t, backend.Put(ctx, "functions/ACME.json", []byte("DIVERGED")))

	report, err := s.Verify(ctx, "ACME")
	require.NoError(t, err)
	require.False(t, report.OK())
	require.Len(t, report.Issues, 1)
	require.Equal(t, "current copy does not match latest history entry", report.Issues[0].Problem)
}

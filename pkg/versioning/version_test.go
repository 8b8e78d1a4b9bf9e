package versioning

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge/pkg/artifact"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input   string
		want    Version
		wantErr bool
	}{
		{"1.0.0", Version{Major: 1, Minor: 0, Patch: 0}, false},
		{"2.3.4", Version{Major: 2, Minor: 3, Patch: 4}, false},
		{"10.20.30", Version{Major: 10, Minor: 20, Patch: 30}, false},
		{"v1.0.0", Version{}, true},
		{"1.0.0-alpha", Version{}, true},
		{"1.0.0+build.1", Version{}, true},
		{"1.0", Version{}, true},
		{"1.0.0.0", Version{}, true},
		{"one.two.three", Version{}, true},
		{"", Version{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				var parseErr *artifact.VersionParseError
				require.True(t, errors.As(err, &parseErr), "want VersionParseError, got %T", err)
				require.Equal(t, tt.input, parseErr.Raw)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.want, got)
			}
		})
	}
}

func TestString_RoundTrip(t *testing.T) {
	for _, v := range []Version{First, {2, 0, 11}, {0, 0, 0}, {12, 34, 56}} {
		got, err := Parse(v.String())
		require.NoError(t, err)
		require.Equal(t, v, got)
	}
}

func TestCompare(t *testing.T) {
	tests := []struct {
		a, b Version
		want int
	}{
		{Version{1, 0, 0}, Version{1, 0, 0}, 0},
		{Version{1, 0, 0}, Version{2, 0, 0}, -1},
		{Version{2, 0, 0}, Version{1, 9, 9}, 1},
		{Version{1, 1, 0}, Version{1, 0, 9}, 1},
		{Version{1, 0, 1}, Version{1, 0, 2}, -1},
		// Integer compare, not string compare: 1.0.10 > 1.0.9.
		{Version{1, 0, 10}, Version{1, 0, 9}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.a.String()+"_vs_"+tt.b.String(), func(t *testing.T) {
			require.Equal(t, tt.want, tt.a.Compare(tt.b))
		})
	}
}

func TestIncrementPatch(t *testing.T) {
	v := Version{Major: 1, Minor: 2, Patch: 3}
	require.Equal(t, Version{Major: 1, Minor: 2, Patch: 4}, v.IncrementPatch())
}

func TestNext_EmptyHistory(t *testing.T) {
	v, err := Next(nil)
	require.NoError(t, err)
	require.Equal(t, First, v)
	require.Equal(t, "1.0.0", v.String())
}

func TestNext_IncrementsPatchOfLatest(t *testing.T) {
	history := []artifact.HistoryEntry{
		{Version: "1.0.0", CreatedAt: time.Now(), ContentHash: "aaaa"},
		{Version: "1.0.1", CreatedAt: time.Now(), ContentHash: "bbbb"},
	}
	v, err := Next(history)
	require.NoError(t, err)
	require.Equal(t, "1.0.2", v.String())
}

func TestNext_UsesLastEntryEvenAfterOverride(t *testing.T) {
	// An explicit version override can leave non-monotonic history; the
	// allocator still works from the last entry, as recorded.
	history := []artifact.HistoryEntry{
		{Version: "1.0.5"},
		{Version: "2.1.0"},
	}
	v, err := Next(history)
	require.NoError(t, err)
	require.Equal(t, "2.1.1", v.String())
}

func TestNext_CorruptHistory(t *testing.T) {
	history := []artifact.HistoryEntry{{Version: "garbage"}}
	_, err := Next(history)
	var parseErr *artifact.VersionParseError
	require.True(t, errors.As(err, &parseErr))
	require.Equal(t, "garbage", parseErr.Raw)
}

func TestNext_SequenceProducesExpectedVersions(t *testing.T) {
	// The n-th allocation without overrides must be (1, 0, n-1).
	var history []artifact.HistoryEntry
	for n := 0; n < 25; n++ {
		v, err := Next(history)
		require.NoError(t, err)
		require.Equal(t, Version{Major: 1, Minor: 0, Patch: n}, v)
		history = append(history, artifact.HistoryEntry{Version: v.String()})
	}
}

package activation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsWasm(t *testing.T) {
	require.True(t, IsWasm([]byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}))
	require.False(t, IsWasm([]byte(`{"schema": "policyforge/ruleset/v1"}`)))
	require.False(t, IsWasm([]byte{0x00, 0x61}))
	require.False(t, IsWasm(nil))
}

func TestLoadWasmRejectsInvalidModule(t *testing.T) {
	// Correct preamble, garbage body.
	blob := append([]byte{0x00, 0x61, 0x73, 0x6d}, []byte("not a real module")...)

	_, err := LoadWasm(context.Background(), "ACME_CORP", blob, DefaultWasmLimits)
	require.Error(t, err)
	require.Contains(t, err.Error(), "failed to compile wasm module")
}

func TestLoadWasmRejectsEmptyModule(t *testing.T) {
	// A structurally valid module with no _start export cannot serve
	// the discovery call.
	minimal := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

	_, err := LoadWasm(context.Background(), "ACME_CORP", minimal, DefaultWasmLimits)
	require.Error(t, err)
}

package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEntityID(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"simple", "Acme", "ACME"},
		{"spaces become underscores", "Acme Corp", "ACME_CORP"},
		{"already normalized", "GLOBEX_INC", "GLOBEX_INC"},
		{"surrounding whitespace trimmed", "  TechStart Inc  ", "TECHSTART_INC"},
		{"mixed case", "gLoBaL dYnAmIcS", "GLOBAL_DYNAMICS"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeEntityID(tt.input))
		})
	}
}

func TestNormalizeEntityID_UnicodeNFC(t *testing.T) {
	// "é" as a combining sequence (e + U+0301) and as the precomposed
	// code point must normalize to the same key.
	decomposed := "Café Travel"
	precomposed := "Café Travel"
	assert.Equal(t, NormalizeEntityID(precomposed), NormalizeEntityID(decomposed))
}

func TestNormalizeEntityID_Idempotent(t *testing.T) {
	once := NormalizeEntityID("Initech Global Services")
	assert.Equal(t, once, NormalizeEntityID(once))
}

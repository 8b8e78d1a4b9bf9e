package artifact

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEntityID derives the canonical entity key from a free-form
// owner name: Unicode NFC, trimmed, upper-cased, spaces replaced with
// underscores. Normalization happens once at the boundary; every key the
// store sees is already in this form.
func NormalizeEntityID(name string) string {
	s := norm.NFC.String(name)
	s = strings.TrimSpace(s)
	s = strings.ToUpper(s)
	return strings.ReplaceAll(s, " ", "_")
}

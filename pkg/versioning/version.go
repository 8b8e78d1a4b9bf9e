// Package versioning allocates and compares the semantic versions of
// stored artifacts. Artifact versions are strictly major.minor.patch
// integer triples; anything else in a history ledger is treated as
// corruption and surfaces as a VersionParseError.
package versioning

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// First is the version assigned to an entity's first save.
var First = Version{Major: 1, Minor: 0, Patch: 0}

// Version is a semantic version triple. Comparison is lexicographic on
// the three integers, never on the string form.
type Version struct {
	Major int `json:"major"`
	Minor int `json:"minor"`
	Patch int `json:"patch"`
}

// String returns the canonical "major.minor.patch" form.
func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

var versionRe = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)$`)

// Parse parses a strict major.minor.patch string. Prerelease tags, build
// metadata, and "v" prefixes are rejected: the store never writes them,
// so encountering one means the history is corrupt.
func Parse(s string) (Version, error) {
	m := versionRe.FindStringSubmatch(s)
	if m == nil {
		return Version{}, &artifact.VersionParseError{Raw: s}
	}

	major, _ := strconv.Atoi(m[1])
	minor, _ := strconv.Atoi(m[2])
	patch, _ := strconv.Atoi(m[3])

	return Version{Major: major, Minor: minor, Patch: patch}, nil
}

// Compare returns -1 if v < other, 0 if equal, 1 if v > other.
func (v Version) Compare(other Version) int {
	if v.Major != other.Major {
		return compareInt(v.Major, other.Major)
	}
	if v.Minor != other.Minor {
		return compareInt(v.Minor, other.Minor)
	}
	return compareInt(v.Patch, other.Patch)
}

func compareInt(a, b int) int {
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// IncrementPatch returns a new version with patch incremented.
func (v Version) IncrementPatch() Version {
	return Version{Major: v.Major, Minor: v.Minor, Patch: v.Patch + 1}
}

// Next computes the version for an entity's upcoming save: First on an
// empty history, otherwise the newest entry's version with its patch
// bumped. The newest entry is the last one — the ledger is append-only
// and ordered by save. A malformed stored version yields a
// VersionParseError, signalling corrupt history rather than a caller
// mistake.
func Next(history []artifact.HistoryEntry) (Version, error) {
	if len(history) == 0 {
		return First, nil
	}

	latest := history[len(history)-1].Version
	v, err := Parse(latest)
	if err != nil {
		return Version{}, err
	}
	return v.IncrementPatch(), nil
}

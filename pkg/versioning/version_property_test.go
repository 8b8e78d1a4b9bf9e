//go:build property
// +build property

// Package versioning_test contains property-based tests for version
// allocation and content hashing determinism.
package versioning_test

import (
	"fmt"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/versioning"
)

// TestParseStringRoundTrip verifies Parse(v.String()) == v for any triple.
func TestParseStringRoundTrip(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("Parse inverts String", prop.ForAll(
		func(major, minor, patch int) bool {
			v := versioning.Version{Major: major, Minor: minor, Patch: patch}
			got, err := versioning.Parse(v.String())
			if err != nil {
				return false
			}
			return got == v
		},
		gen.IntRange(0, 1_000_000),
		gen.IntRange(0, 1_000_000),
		gen.IntRange(0, 1_000_000),
	))

	properties.TestingRun(t)
}

// TestAllocationSequence verifies the n-th allocation is always (1,0,n-1).
func TestAllocationSequence(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("n-th allocation is (1,0,n-1)", prop.ForAll(
		func(n int) bool {
			var history []artifact.HistoryEntry
			var v versioning.Version
			for i := 0; i < n; i++ {
				var err error
				v, err = versioning.Next(history)
				if err != nil {
					return false
				}
				history = append(history, artifact.HistoryEntry{Version: v.String()})
			}
			if n == 0 {
				return true
			}
			return v == versioning.Version{Major: 1, Minor: 0, Patch: n - 1}
		},
		gen.IntRange(0, 50),
	))

	properties.TestingRun(t)
}

// TestIncrementPatchOrdering verifies v < v.IncrementPatch() always.
func TestIncrementPatchOrdering(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("IncrementPatch strictly increases", prop.ForAll(
		func(major, minor, patch int) bool {
			v := versioning.Version{Major: major, Minor: minor, Patch: patch}
			return v.Compare(v.IncrementPatch()) < 0
		},
		gen.IntRange(0, 10_000),
		gen.IntRange(0, 10_000),
		gen.IntRange(0, 10_000),
	))

	properties.TestingRun(t)
}

// TestContentHashDeterminism verifies hashing is a pure function of the
// blob bytes and distinct short inputs do not trivially collide.
func TestContentHashDeterminism(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("same bytes, same hash", prop.ForAll(
		func(blob string) bool {
			return artifact.ContentHash([]byte(blob)) == artifact.ContentHash([]byte(blob))
		},
		gen.AnyString(),
	))

	properties.Property("suffix change, different hash", prop.ForAll(
		func(blob string, n int) bool {
			other := blob + fmt.Sprintf("|%d", n)
			return artifact.ContentHash([]byte(blob)) != artifact.ContentHash([]byte(other))
		},
		gen.AnyString(),
		gen.IntRange(0, 1_000_000),
	))

	properties.TestingRun(t)
}

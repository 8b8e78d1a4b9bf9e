package testgen

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/policyforge/policyforge/pkg/activation"
	"github.com/policyforge/policyforge/pkg/generator"
	"github.com/policyforge/policyforge/pkg/parser"
)

const samplePolicy = `Company: Acme Corp
Version: 2.1
Effective: 2026-01-01

Flights over $2,000 require manager approval.
Bookings must be made 14 days in advance.
Preferred airlines: Delta, United

Staff may check 1 bag. Executives get 3 bags.
$50 per extra bag.
`

func sampleRulesetAndNamespace(t *testing.T) (*activation.Ruleset, activation.Namespace) {
	t.Helper()
	doc := parser.NewParser().Parse(samplePolicy)
	rs, blob, err := generator.Generate(doc)
	require.NoError(t, err)
	ns, err := activation.LoadRuleset(blob)
	require.NoError(t, err)
	return rs, ns
}

func TestGenerateSuiteCoversEveryFunction(t *testing.T) {
	rs, _ := sampleRulesetAndNamespace(t)

	suite, err := GenerateSuite(rs)
	require.NoError(t, err)
	require.Equal(t, "ACME_CORP", suite.EntityID)
	require.Equal(t, "Acme Corp travel policy", suite.Policy)

	seen := map[string]int{}
	for _, c := range suite.Cases {
		seen[c.Function]++
		require.NotEmpty(t, c.Expect, "case %s/%s has no expectation", c.Function, c.Name)
	}
	for _, fn := range rs.Functions {
		require.Positive(t, seen[fn.Name], "no cases for %s", fn.Name)
	}
}

func TestGeneratedSuitePassesAgainstOwnRuleset(t *testing.T) {
	rs, ns := sampleRulesetAndNamespace(t)

	suite, err := GenerateSuite(rs)
	require.NoError(t, err)

	report, err := NewRunner(nil).Run(context.Background(), ns, suite)
	require.NoError(t, err)
	require.Equal(t, len(suite.Cases), report.Total)
	require.Zero(t, report.Failed, "failures: %+v", report.Results)
	require.Equal(t, report.Total, report.Passed)
}

func TestSuiteSurvivesYAMLRoundTrip(t *testing.T) {
	rs, ns := sampleRulesetAndNamespace(t)

	suite, err := GenerateSuite(rs)
	require.NoError(t, err)

	data, err := EncodeYAML(suite)
	require.NoError(t, err)
	decoded, err := DecodeYAML(data)
	require.NoError(t, err)
	require.Equal(t, suite.EntityID, decoded.EntityID)
	require.Len(t, decoded.Cases, len(suite.Cases))

	// YAML turns whole floats into ints; the runner's comparison must
	// absorb that.
	report, err := NewRunner(nil).Run(context.Background(), ns, decoded)
	require.NoError(t, err)
	require.Zero(t, report.Failed, "failures: %+v", report.Results)
}

func TestRunnerDetectsDrift(t *testing.T) {
	rs, ns := sampleRulesetAndNamespace(t)

	suite, err := GenerateSuite(rs)
	require.NoError(t, err)

	// Corrupt one expectation to simulate a behavior change.
	suite.Cases[0].Expect["requires_approval"] = "definitely"

	report, err := NewRunner(nil).Run(context.Background(), ns, suite)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.NotEmpty(t, report.Results[0].Diffs)
}

func TestRunnerReportsCallErrors(t *testing.T) {
	_, ns := sampleRulesetAndNamespace(t)

	suite := &Suite{
		EntityID: "ACME_CORP",
		Cases: []Case{{
			Name:     "missing_function",
			Function: "check_teleportation",
			Args:     map[string]any{},
			Expect:   map[string]any{"approved": true},
		}},
	}

	report, err := NewRunner(nil).Run(context.Background(), ns, suite)
	require.NoError(t, err)
	require.Equal(t, 1, report.Failed)
	require.NotEmpty(t, report.Results[0].Err)
}

package testgen

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/policyforge/policyforge/pkg/activation"
)

// CaseResult reports one executed case. Diffs lists the fields whose
// live values departed from the expectation.
type CaseResult struct {
	Function string   `json:"function"`
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Diffs    []string `json:"diffs,omitempty"`
	Err      string   `json:"error,omitempty"`
}

// Report summarizes a suite run.
type Report struct {
	EntityID string       `json:"entity_id"`
	Total    int          `json:"total"`
	Passed   int          `json:"passed"`
	Failed   int          `json:"failed"`
	Results  []CaseResult `json:"results"`
}

// Runner executes suites against a namespace.
type Runner struct {
	logger *slog.Logger
}

func NewRunner(logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger.With("component", "testgen.runner")}
}

// Run replays every case and compares each expected field against the
// live result. A call error fails the case but never aborts the run.
func (r *Runner) Run(ctx context.Context, ns activation.Namespace, suite *Suite) (*Report, error) {
	if suite == nil {
		return nil, fmt.Errorf("nil suite")
	}

	report := &Report{EntityID: suite.EntityID, Total: len(suite.Cases)}
	for _, c := range suite.Cases {
		result := CaseResult{Function: c.Function, Name: c.Name}

		got, err := ns.Call(ctx, c.Function, c.Args)
		if err != nil {
			result.Err = err.Error()
		} else {
			result.Diffs = diffFields(c.Expect, got)
		}
		result.Passed = result.Err == "" && len(result.Diffs) == 0

		if result.Passed {
			report.Passed++
		} else {
			report.Failed++
			r.logger.Warn("case failed",
				"function", c.Function, "case", c.Name,
				"diffs", result.Diffs, "error", result.Err)
		}
		report.Results = append(report.Results, result)
	}
	return report, nil
}

// diffFields compares expectation fields against the live result,
// reporting expected-vs-got per mismatch, sorted for stable output.
func diffFields(expect, got map[string]any) []string {
	var diffs []string
	for key, want := range expect {
		have, ok := got[key]
		if !ok {
			diffs = append(diffs, fmt.Sprintf("%s: expected %v, field missing", key, want))
			continue
		}
		if !valuesEqual(want, have) {
			diffs = append(diffs, fmt.Sprintf("%s: expected %v, got %v", key, want, have))
		}
	}
	sort.Strings(diffs)
	return diffs
}

// valuesEqual compares loosely across the numeric representations YAML
// and JSON round trips produce (int vs float64) and element-wise for
// lists.
func valuesEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		bf, bok := asFloat(b)
		return bok && af == bf
	}
	if al, aok := asList(a); aok {
		bl, bok := asList(b)
		if !bok || len(al) != len(bl) {
			return false
		}
		for i := range al {
			if !valuesEqual(al[i], bl[i]) {
				return false
			}
		}
		return true
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func asList(v any) ([]any, bool) {
	switch l := v.(type) {
	case []any:
		return l, true
	case []string:
		out := make([]any, len(l))
		for i, s := range l {
			out[i] = s
		}
		return out, true
	default:
		return nil, false
	}
}

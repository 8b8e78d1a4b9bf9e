// Package testgen derives example test suites from generated rulesets
// and replays them against activated namespaces. Expectations are
// captured from the ruleset itself at generation time, so a suite pins
// the artifact's behavior: any later edit that changes a decision shows
// up as a failing case.
package testgen

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/policyforge/policyforge/pkg/activation"
)

// Case is one recorded invocation: arguments in, expected fields out.
// Expect is a subset match — extra fields in the live result are fine.
type Case struct {
	Name     string         `yaml:"name" json:"name"`
	Function string         `yaml:"function" json:"function"`
	Args     map[string]any `yaml:"args" json:"args"`
	Expect   map[string]any `yaml:"expect" json:"expect"`
}

// Suite is the set of cases generated for one entity's ruleset.
type Suite struct {
	EntityID    string    `yaml:"entity_id" json:"entity_id"`
	Policy      string    `yaml:"policy" json:"policy"`
	GeneratedAt time.Time `yaml:"generated_at" json:"generated_at"`
	Cases       []Case    `yaml:"cases" json:"cases"`
}

// caseSpec is an argument scenario for one known function family.
type caseSpec struct {
	name string
	args map[string]any
}

// scenarios lists the representative argument sets per generated
// function family: a happy path, the interesting boundaries, a denial,
// and the exception variants.
var scenarios = map[string][]caseSpec{
	"check_flight_approval": {
		{"staff_cheap_flight", map[string]any{"cost": 200.0, "employee_level": "staff", "is_emergency": false}},
		{"staff_over_threshold", map[string]any{"cost": 5000.0, "employee_level": "staff", "is_emergency": false}},
		{"staff_far_over_threshold", map[string]any{"cost": 50000.0, "employee_level": "staff", "is_emergency": false}},
		{"executive_expensive_flight", map[string]any{"cost": 5000.0, "employee_level": "executive", "is_emergency": false}},
		{"emergency_raises_threshold", map[string]any{"cost": 1200.0, "employee_level": "staff", "is_emergency": true}},
		{"unknown_level_falls_back", map[string]any{"cost": 5000.0, "employee_level": "wizard", "is_emergency": false}},
	},
	"check_advance_booking": {
		{"booked_well_ahead", map[string]any{"days_in_advance": 30.0, "is_emergency": false, "is_conference": false}},
		{"booked_too_late", map[string]any{"days_in_advance": 1.0, "is_emergency": false, "is_conference": false}},
		{"emergency_waives_window", map[string]any{"days_in_advance": 0.0, "is_emergency": true, "is_conference": false}},
		{"conference_needs_double", map[string]any{"days_in_advance": 10.0, "is_emergency": false, "is_conference": true}},
		{"conference_well_ahead", map[string]any{"days_in_advance": 60.0, "is_emergency": false, "is_conference": true}},
	},
	"check_airline_allowed": {
		{"preferred_carrier", map[string]any{"airline": "Delta"}},
		{"preferred_carrier_case_insensitive", map[string]any{"airline": "delta"}},
		{"off_list_carrier", map[string]any{"airline": "Budget Sky Air"}},
	},
	"check_baggage_allowance": {
		{"staff_one_bag", map[string]any{"num_bags": 1.0, "employee_level": "staff", "trip_duration_days": 3.0}},
		{"staff_too_many_bags", map[string]any{"num_bags": 4.0, "employee_level": "staff", "trip_duration_days": 3.0}},
		{"long_trip_extra_bag", map[string]any{"num_bags": 2.0, "employee_level": "staff", "trip_duration_days": 10.0}},
		{"executive_three_bags", map[string]any{"num_bags": 3.0, "employee_level": "executive", "trip_duration_days": 3.0}},
	},
	"check_cabin_class": {
		{"economy_always_allowed", map[string]any{"cabin_class": "economy", "flight_hours": 2.0, "is_international": false}},
		{"business_short_domestic", map[string]any{"cabin_class": "business", "flight_hours": 2.0, "is_international": false}},
		{"business_long_international", map[string]any{"cabin_class": "business", "flight_hours": 11.0, "is_international": true}},
		{"first_class_request", map[string]any{"cabin_class": "first", "flight_hours": 11.0, "is_international": true}},
	},
}

// GenerateSuite builds a suite for a ruleset by evaluating the scenario
// table against it and recording each result as the expectation.
// Functions outside the known families get a single defaults case.
func GenerateSuite(rs *activation.Ruleset) (*Suite, error) {
	if rs == nil {
		return nil, fmt.Errorf("nil ruleset")
	}

	blob, err := json.Marshal(rs)
	if err != nil {
		return nil, fmt.Errorf("encode ruleset: %w", err)
	}
	ns, err := activation.LoadRuleset(blob)
	if err != nil {
		return nil, fmt.Errorf("ruleset does not activate: %w", err)
	}

	suite := &Suite{
		EntityID:    rs.EntityID,
		Policy:      rs.Policy.Name,
		GeneratedAt: time.Now().UTC(),
	}

	ctx := context.Background()
	for _, fn := range rs.Functions {
		specs, known := scenarios[fn.Name]
		if !known {
			specs = []caseSpec{{"defaults", map[string]any{}}}
		}
		for _, spec := range specs {
			result, err := ns.Call(ctx, fn.Name, spec.args)
			if err != nil {
				return nil, fmt.Errorf("function %s case %s: %w", fn.Name, spec.name, err)
			}
			suite.Cases = append(suite.Cases, Case{
				Name:     spec.name,
				Function: fn.Name,
				Args:     spec.args,
				Expect:   result,
			})
		}
	}
	return suite, nil
}

// EncodeYAML renders a suite as a YAML fixture file.
func EncodeYAML(suite *Suite) ([]byte, error) {
	return yaml.Marshal(suite)
}

// DecodeYAML parses a YAML fixture file back into a suite.
func DecodeYAML(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, fmt.Errorf("parse suite: %w", err)
	}
	return &suite, nil
}

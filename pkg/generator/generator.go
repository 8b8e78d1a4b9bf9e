// Package generator turns parsed policy documents into ruleset
// artifacts. Decision logic the original policies express in prose is
// compiled into CEL rule tables: thresholds and allowances are resolved
// at generation time, so conditions carry concrete numbers.
package generator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/gowebpki/jcs"

	"github.com/policyforge/policyforge/pkg/activation"
	"github.com/policyforge/policyforge/pkg/artifact"
	"github.com/policyforge/policyforge/pkg/parser"
)

// Generation defaults applied when the policy document is silent.
const (
	defaultThreshold  = 1000.0
	defaultMinDays    = 7.0
	defaultOverageFee = 35.0
)

func defaultAirlines() []string {
	return []string{"Delta", "United", "American", "Southwest"}
}

// levelOrder lists the recognized employee tiers, highest first.
var levelOrder = []string{"executive", "director", "manager", "staff", "intern"}

// levelMultipliers scale the base approval threshold per tier.
var levelMultipliers = map[string]float64{
	"executive": 3.0,
	"director":  2.0,
	"manager":   1.5,
	"staff":     1.0,
	"intern":    0.5,
}

// levelSynonyms feed the per-tier matching patterns so titles like "VP"
// or "senior manager" land in the right tier without a lookup table at
// call time.
var levelSynonyms = map[string][]string{
	"executive": {"executive", "exec", "ceo", "cto", "cfo", "vp"},
	"director":  {"director", "senior manager", "senior_manager", "sr manager", "sr_manager"},
	"manager":   {"manager", "mgr"},
	"staff":     {"staff", "employee", "worker"},
	"intern":    {"intern", "contractor"},
}

// cabinSynonyms mirror the original system's cabin normalization.
var cabinSynonyms = map[string][]string{
	"first":           {"first", "first_class", "first class", "1st"},
	"business":        {"business", "business_class", "business class", "biz"},
	"premium_economy": {"premium_economy", "premium economy", "premium", "premium_eco", "prem_economy"},
	"economy":         {"economy", "eco", "coach"},
}

// EntityIDForCompany returns the canonical store key for a company name.
func EntityIDForCompany(name string) string {
	return artifact.NormalizeEntityID(name)
}

// Generate builds the ruleset artifact for a parsed policy document and
// returns it alongside its canonical RFC 8785 byte encoding, so equal
// rulesets always hash equal.
func Generate(doc *parser.PolicyDoc) (*activation.Ruleset, []byte, error) {
	if doc == nil {
		return nil, nil, fmt.Errorf("nil policy document")
	}

	f := factsFrom(doc)
	rs := &activation.Ruleset{
		Schema:   activation.SchemaID,
		EntityID: EntityIDForCompany(doc.Company),
		Policy: activation.PolicyInfo{
			Name:      doc.Company + " travel policy",
			Version:   doc.Version,
			Effective: doc.Effective,
		},
		Functions: []activation.Function{
			flightApprovalFunction(f),
			advanceBookingFunction(f),
			airlineFunction(f),
			baggageFunction(f),
			cabinFunction(f),
		},
	}

	raw, err := json.Marshal(rs)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode ruleset: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to canonicalize ruleset: %w", err)
	}
	return rs, canonical, nil
}

// policyFacts are the numbers and lists resolved from a document before
// rule emission.
type policyFacts struct {
	threshold  float64
	approver   string
	minDays    float64
	airlines   []string
	allowances map[string]float64
	overageFee float64
	cabinRules []parser.Rule
}

// canonicalTier folds parsed level spellings onto the tier names used in
// generated rules.
var canonicalTier = map[string]string{
	"senior_manager": "director",
	"contractor":     "intern",
	"employee":       "staff",
	"worker":         "staff",
}

func factsFrom(doc *parser.PolicyDoc) policyFacts {
	f := policyFacts{
		threshold:  defaultThreshold,
		approver:   "manager",
		minDays:    defaultMinDays,
		airlines:   defaultAirlines(),
		allowances: map[string]float64{"executive": 3, "director": 2, "manager": 2, "staff": 1, "intern": 1},
		overageFee: defaultOverageFee,
	}

	thresholdSet := false
	minDaysSet := false
	for _, r := range doc.Rules {
		switch r.Category {
		case parser.CategoryCostApproval:
			v, err := strconv.ParseFloat(r.Attrs[parser.AttrThreshold], 64)
			if err != nil {
				continue
			}
			// The highest stated threshold wins, and carries its approver.
			if !thresholdSet || v > f.threshold {
				f.threshold = v
				thresholdSet = true
				if role := r.Attrs[parser.AttrApprover]; role != "" {
					f.approver = role
				}
			}
		case parser.CategoryAdvanceBooking:
			if r.Attrs[parser.AttrException] != "" {
				continue
			}
			v, err := strconv.ParseFloat(r.Attrs[parser.AttrMinDays], 64)
			if err != nil {
				continue
			}
			if !minDaysSet || v > f.minDays {
				f.minDays = v
				minDaysSet = true
			}
		case parser.CategoryAirlines:
			if list := r.Attrs[parser.AttrAirlines]; list != "" {
				var names []string
				for _, name := range strings.Split(list, ",") {
					// Captured names can span lines when the source list
					// has no trailing blank line; collapse internal
					// whitespace so the name embeds on one condition line.
					if name = strings.Join(strings.Fields(name), " "); name != "" {
						names = append(names, name)
					}
				}
				if len(names) > 0 {
					f.airlines = names
				}
			}
		case parser.CategoryBaggage:
			if fee, err := strconv.ParseFloat(r.Attrs[parser.AttrOverageFee], 64); err == nil {
				f.overageFee = fee
			}
			level := r.Attrs[parser.AttrEmployeeLevel]
			if canon, ok := canonicalTier[level]; ok {
				level = canon
			}
			if _, known := f.allowances[level]; !known {
				continue
			}
			if v, err := strconv.ParseFloat(r.Attrs[parser.AttrMaxBags], 64); err == nil && v > 0 {
				f.allowances[level] = v
			}
		case parser.CategoryCabinClass:
			f.cabinRules = append(f.cabinRules, r)
		}
	}
	return f
}

// num renders a float as a CEL double literal. Arithmetic in CEL does
// not mix int and double, so every number in a condition gets a decimal
// point.
func num(v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// tierCondition matches input.employee_level against a tier and its
// synonyms, anchored and case-insensitive.
func tierCondition(tier string) string {
	alternatives := make([]string, 0, len(levelSynonyms[tier]))
	for _, syn := range levelSynonyms[tier] {
		alternatives = append(alternatives, regexp.QuoteMeta(syn))
	}
	return fmt.Sprintf("input.employee_level.matches(r'(?i)^\\s*(%s)\\s*$')", strings.Join(alternatives, "|"))
}

func cabinCondition(cabin string) string {
	alternatives := cabinSynonyms[cabin]
	if alternatives == nil {
		alternatives = []string{cabin}
	}
	quoted := make([]string, 0, len(alternatives))
	for _, alt := range alternatives {
		quoted = append(quoted, regexp.QuoteMeta(alt))
	}
	return fmt.Sprintf("input.cabin_class.matches(r'(?i)^\\s*(%s)\\s*$')", strings.Join(quoted, "|"))
}

func airlineCondition(airlines []string) string {
	quoted := make([]string, 0, len(airlines))
	for _, a := range airlines {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(a)))
	}
	return fmt.Sprintf("input.airline.matches(r'(?i)^\\s*(%s)\\s*$')", strings.Join(quoted, "|"))
}

// emergencyScale is the emergency multiplier applied to thresholds at
// call time.
const emergencyScale = "(input.is_emergency ? 1.5 : 1.0)"

func flightApprovalFunction(f policyFacts) activation.Function {
	var rules []activation.Rule
	for _, tier := range levelOrder {
		base := f.threshold * levelMultipliers[tier]
		cond := tierCondition(tier)
		rules = append(rules,
			activation.Rule{
				ID:       tier + "_director_escalation",
				When:     fmt.Sprintf("%s && input.cost > 2.0 * %s * %s", cond, num(base), emergencyScale),
				Then:     map[string]any{"requires_approval": true, "approval_level": "director", "threshold": base},
				Priority: 30,
			},
			activation.Rule{
				ID:       tier + "_needs_approval",
				When:     fmt.Sprintf("%s && input.cost > %s * %s", cond, num(base), emergencyScale),
				Then:     map[string]any{"requires_approval": true, "approval_level": f.approver, "threshold": base},
				Priority: 20,
			},
			activation.Rule{
				ID:       tier + "_within_allowance",
				When:     cond,
				Then:     map[string]any{"requires_approval": false, "approval_level": "none", "threshold": base},
				Priority: 10,
			},
		)
	}
	// Unrecognized levels fall back to the base threshold.
	rules = append(rules,
		activation.Rule{
			ID:       "unknown_level_director_escalation",
			When:     fmt.Sprintf("input.cost > 2.0 * %s * %s", num(f.threshold), emergencyScale),
			Then:     map[string]any{"requires_approval": true, "approval_level": "director", "threshold": f.threshold},
			Priority: 2,
		},
		activation.Rule{
			ID:       "unknown_level_needs_approval",
			When:     fmt.Sprintf("input.cost > %s * %s", num(f.threshold), emergencyScale),
			Then:     map[string]any{"requires_approval": true, "approval_level": f.approver, "threshold": f.threshold},
			Priority: 1,
		},
	)

	return activation.Function{
		Name:        "check_flight_approval",
		Description: "Check whether a trip cost requires approval for an employee level",
		Parameters: map[string]string{
			"cost":           "number: total trip cost in USD",
			"employee_level": "string: employee job level (executive, director, manager, staff, intern)",
			"is_emergency":   "boolean: emergency travel raises thresholds by 1.5x",
		},
		ResultFields: []string{"requires_approval", "approval_level", "threshold"},
		Rules:        rules,
		Default:      map[string]any{"requires_approval": false, "approval_level": "none", "threshold": f.threshold},
	}
}

func advanceBookingFunction(f policyFacts) activation.Function {
	conference := f.minDays * 2
	return activation.Function{
		Name:        "check_advance_booking",
		Description: "Check whether a booking meets the advance-purchase window",
		Parameters: map[string]string{
			"days_in_advance": "number: days between booking and travel",
			"is_emergency":    "boolean: emergency travel waives the window",
			"is_conference":   "boolean: conference travel doubles the window",
		},
		ResultFields: []string{"valid", "waived", "required_days"},
		Rules: []activation.Rule{
			{
				ID:       "emergency_waived",
				When:     "input.is_emergency == true",
				Then:     map[string]any{"valid": true, "waived": true, "required_days": 0.0},
				Priority: 30,
			},
			{
				ID:       "conference_window_met",
				When:     fmt.Sprintf("input.is_conference == true && input.days_in_advance >= %s", num(conference)),
				Then:     map[string]any{"valid": true, "waived": false, "required_days": conference},
				Priority: 20,
			},
			{
				ID:       "conference_window_missed",
				When:     "input.is_conference == true",
				Then:     map[string]any{"valid": false, "waived": false, "required_days": conference},
				Priority: 20,
			},
			{
				ID:       "standard_window_met",
				When:     fmt.Sprintf("input.days_in_advance >= %s", num(f.minDays)),
				Then:     map[string]any{"valid": true, "waived": false, "required_days": f.minDays},
				Priority: 10,
			},
		},
		Default: map[string]any{"valid": false, "waived": false, "required_days": f.minDays},
	}
}

func airlineFunction(f policyFacts) activation.Function {
	return activation.Function{
		Name:        "check_airline_allowed",
		Description: "Check whether an airline is on the preferred carrier list",
		Parameters: map[string]string{
			"airline": "string: airline name",
		},
		ResultFields: []string{"approved", "is_preferred", "needs_justification", "preferred_airlines"},
		Rules: []activation.Rule{
			{
				ID:       "preferred_carrier",
				When:     airlineCondition(f.airlines),
				Then:     map[string]any{"approved": true, "is_preferred": true, "needs_justification": false, "preferred_airlines": f.airlines},
				Priority: 10,
			},
		},
		// Off-list carriers stay bookable but need justification.
		Default: map[string]any{"approved": true, "is_preferred": false, "needs_justification": true, "preferred_airlines": f.airlines},
	}
}

func baggageFunction(f policyFacts) activation.Function {
	var rules []activation.Rule
	for _, tier := range levelOrder {
		allow := f.allowances[tier]
		cond := tierCondition(tier)
		rules = append(rules,
			activation.Rule{
				ID:       tier + "_extended_trip",
				When:     fmt.Sprintf("%s && input.trip_duration_days > 7.0 && input.num_bags <= %s", cond, num(allow+1)),
				Then:     map[string]any{"approved": true, "allowed_bags": allow + 1},
				Priority: 40,
			},
			activation.Rule{
				ID:       tier + "_standard_trip",
				When:     fmt.Sprintf("%s && input.num_bags <= %s", cond, num(allow)),
				Then:     map[string]any{"approved": true, "allowed_bags": allow},
				Priority: 30,
			},
			activation.Rule{
				ID:       tier + "_over_allowance_extended",
				When:     fmt.Sprintf("%s && input.trip_duration_days > 7.0", cond),
				Then:     map[string]any{"approved": false, "allowed_bags": allow + 1, "overage_fee_per_bag": f.overageFee},
				Priority: 4,
			},
			activation.Rule{
				ID:       tier + "_over_allowance",
				When:     cond,
				Then:     map[string]any{"approved": false, "allowed_bags": allow, "overage_fee_per_bag": f.overageFee},
				Priority: 3,
			},
		)
	}
	// Unrecognized levels get the single-bag allowance.
	rules = append(rules,
		activation.Rule{
			ID:       "unknown_level_extended_trip",
			When:     "input.trip_duration_days > 7.0 && input.num_bags <= 2.0",
			Then:     map[string]any{"approved": true, "allowed_bags": 2.0},
			Priority: 20,
		},
		activation.Rule{
			ID:       "unknown_level_standard_trip",
			When:     "input.num_bags <= 1.0",
			Then:     map[string]any{"approved": true, "allowed_bags": 1.0},
			Priority: 10,
		},
	)

	return activation.Function{
		Name:        "check_baggage_allowance",
		Description: "Check a checked-bag request against the per-level allowance",
		Parameters: map[string]string{
			"num_bags":           "number: checked bags requested",
			"employee_level":     "string: employee job level",
			"trip_duration_days": "number: trip length in days; over 7 adds one bag",
		},
		ResultFields: []string{"approved", "allowed_bags", "overage_fee_per_bag"},
		Rules:        rules,
		Default:      map[string]any{"approved": false, "allowed_bags": 1.0, "overage_fee_per_bag": f.overageFee},
	}
}

func cabinFunction(f policyFacts) activation.Function {
	var rules []activation.Rule
	for i, r := range f.cabinRules {
		cabin := r.Attrs[parser.AttrCabinClass]
		if cabin == "" {
			continue
		}
		conds := []string{cabinCondition(cabin)}
		if hours, err := strconv.ParseFloat(r.Attrs[parser.AttrFlightHours], 64); err == nil && hours > 0 {
			conds = append(conds, fmt.Sprintf("input.flight_hours >= %s", num(hours)))
		}
		switch r.Attrs[parser.AttrFlightType] {
		case "international":
			conds = append(conds, "input.is_international == true")
		case "domestic":
			conds = append(conds, "input.is_international == false")
		}
		rules = append(rules, activation.Rule{
			ID:       fmt.Sprintf("policy_cabin_rule_%d", i+1),
			When:     strings.Join(conds, " && "),
			Then:     map[string]any{"allowed": true, "cabin": cabin, "requires_approval": false},
			Priority: 20,
		})
	}
	rules = append(rules, activation.Rule{
		ID:       "economy_always_allowed",
		When:     cabinCondition("economy"),
		Then:     map[string]any{"allowed": true, "cabin": "economy", "requires_approval": false},
		Priority: 10,
	})

	return activation.Function{
		Name:        "check_cabin_class",
		Description: "Check whether a cabin class is allowed for a flight",
		Parameters: map[string]string{
			"cabin_class":      "string: requested cabin (economy, premium_economy, business, first)",
			"flight_hours":     "number: flight duration in hours",
			"is_international": "boolean: whether the flight is international",
		},
		ResultFields: []string{"allowed", "cabin", "requires_approval"},
		Rules:        rules,
		Default:      map[string]any{"allowed": false, "cabin": "economy", "requires_approval": true},
	}
}

package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/policyforge/policyforge/pkg/artifact"
)

// Result fields stamped onto every call result regardless of which rule
// produced it.
const (
	ResultPolicyApplied = "policy_applied"
	ResultCompanyID     = "company_id"
	ResultMatchedRule   = "matched_rule"
)

// DefaultRuleID is the value of ResultMatchedRule when no rule matched
// and the function's default row was returned.
const DefaultRuleID = "default"

// Namespace is a live, callable view of an activated artifact. Ruleset
// and wasm artifacts both satisfy it, so callers never care which engine
// is underneath. Close releases engine resources; it is a no-op for
// rulesets.
type Namespace interface {
	artifact.FunctionProvider

	// Call invokes a function by name with a flat argument map and
	// returns its result map.
	Call(ctx context.Context, name string, args map[string]any) (map[string]any, error)

	Close(ctx context.Context) error
}

// RulesetNamespace evaluates rule tables with compiled CEL programs. All
// compilation happens in LoadRuleset; Call only evaluates.
type RulesetNamespace struct {
	entityID string
	policy   PolicyInfo
	order    []string
	funcs    map[string]*compiledFunction
}

type compiledFunction struct {
	descriptor artifact.FunctionDescriptor
	params     map[string]string
	rules      []compiledRule
	defaults   map[string]any
}

type compiledRule struct {
	id       string
	prg      cel.Program
	then     map[string]any
	priority int
}

func newRuleEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("input", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
}

// LoadRuleset parses, statically validates, and compiles a ruleset blob
// into a callable namespace. Every rule condition is checked before any
// is compiled so authors see all findings at once.
func LoadRuleset(blob []byte) (*RulesetNamespace, error) {
	rs, err := ParseRuleset(blob)
	if err != nil {
		return nil, err
	}

	env, err := newRuleEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to build evaluation environment: %w", err)
	}

	validator := &conditionValidator{env: env}
	var issues []ValidationIssue
	for _, fn := range rs.Functions {
		for _, r := range fn.Rules {
			found, err := validator.validate(r.ID, r.When)
			if err != nil {
				return nil, fmt.Errorf("function %s rule %s: %w", fn.Name, r.ID, err)
			}
			issues = append(issues, found...)
		}
	}
	if len(issues) > 0 {
		msgs := make([]string, len(issues))
		for i, iss := range issues {
			msgs[i] = iss.String()
		}
		return nil, fmt.Errorf("ruleset validation failed: %s", strings.Join(msgs, "; "))
	}

	ns := &RulesetNamespace{
		entityID: rs.EntityID,
		policy:   rs.Policy,
		funcs:    make(map[string]*compiledFunction, len(rs.Functions)),
	}
	for _, fn := range rs.Functions {
		if _, exists := ns.funcs[fn.Name]; exists {
			return nil, fmt.Errorf("duplicate function %q", fn.Name)
		}
		cf := &compiledFunction{
			descriptor: artifact.FunctionDescriptor{
				Name:        fn.Name,
				Description: fn.Description,
				Parameters:  fn.Parameters,
			},
			params:   fn.Parameters,
			defaults: fn.Default,
			rules:    make([]compiledRule, 0, len(fn.Rules)),
		}
		for _, r := range fn.Rules {
			ast, iss := env.Compile(r.When)
			if iss != nil && iss.Err() != nil {
				return nil, fmt.Errorf("function %s rule %s: failed to compile condition: %w", fn.Name, r.ID, iss.Err())
			}
			prg, err := env.Program(ast,
				cel.InterruptCheckFrequency(100),
				cel.CostLimit(10000),
			)
			if err != nil {
				return nil, fmt.Errorf("function %s rule %s: failed to build program: %w", fn.Name, r.ID, err)
			}
			cf.rules = append(cf.rules, compiledRule{id: r.ID, prg: prg, then: r.Then, priority: r.Priority})
		}
		// Higher priority wins; ties keep declaration order.
		sort.SliceStable(cf.rules, func(i, j int) bool {
			return cf.rules[i].priority > cf.rules[j].priority
		})

		ns.order = append(ns.order, fn.Name)
		ns.funcs[fn.Name] = cf
	}
	return ns, nil
}

// EntityID reports the owning entity recorded in the ruleset.
func (ns *RulesetNamespace) EntityID() string { return ns.entityID }

// Policy reports the source policy identity.
func (ns *RulesetNamespace) Policy() PolicyInfo { return ns.policy }

// AvailableFunctions lists descriptors in declaration order.
func (ns *RulesetNamespace) AvailableFunctions() []artifact.FunctionDescriptor {
	out := make([]artifact.FunctionDescriptor, 0, len(ns.order))
	for _, name := range ns.order {
		out = append(out, ns.funcs[name].descriptor)
	}
	return out
}

// Call evaluates the named function's rules in priority order and
// returns the outputs of the first match, or the function default when
// nothing matches. Missing declared arguments are filled with typed
// zeros so partially specified calls behave like the generated policy
// functions they replace.
func (ns *RulesetNamespace) Call(ctx context.Context, name string, args map[string]any) (map[string]any, error) {
	cf, ok := ns.funcs[name]
	if !ok {
		return nil, fmt.Errorf("unknown function %q", name)
	}

	input := normalizeArgs(cf.params, args)
	vars := map[string]any{"input": input}

	for _, r := range cf.rules {
		out, _, err := r.prg.ContextEval(ctx, vars)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.id, err)
		}
		matched, ok := out.Value().(bool)
		if !ok {
			return nil, fmt.Errorf("rule %s: condition did not produce a boolean", r.id)
		}
		if matched {
			return ns.result(r.then, r.id), nil
		}
	}
	return ns.result(cf.defaults, DefaultRuleID), nil
}

// Close is a no-op; rulesets hold no external resources.
func (ns *RulesetNamespace) Close(context.Context) error { return nil }

func (ns *RulesetNamespace) result(fields map[string]any, ruleID string) map[string]any {
	out := make(map[string]any, len(fields)+3)
	for k, v := range fields {
		out[k] = v
	}
	out[ResultPolicyApplied] = ns.policy.Name
	out[ResultCompanyID] = ns.entityID
	out[ResultMatchedRule] = ruleID
	return out
}

// normalizeArgs widens numerics to float64 and fills missing declared
// parameters with typed zeros inferred from the parameter hint prefix
// ("number: ...", "boolean: ...", otherwise string).
func normalizeArgs(params map[string]string, args map[string]any) map[string]any {
	in := make(map[string]any, len(args)+len(params))
	for k, v := range args {
		in[k] = normalizeValue(v)
	}
	for name, hint := range params {
		if _, ok := in[name]; !ok {
			in[name] = zeroForHint(hint)
		}
	}
	return in
}

func normalizeValue(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case float32:
		return float64(n)
	case json.Number:
		if f, err := n.Float64(); err == nil {
			return f
		}
		return string(n)
	default:
		return v
	}
}

func zeroForHint(hint string) any {
	kind := hint
	if idx := strings.Index(hint, ":"); idx >= 0 {
		kind = hint[:idx]
	}
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "number", "float", "int", "integer":
		return float64(0)
	case "bool", "boolean":
		return false
	default:
		return ""
	}
}

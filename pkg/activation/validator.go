package activation

import (
	"fmt"

	"github.com/google/cel-go/cel"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// ValidationIssue is a single static-analysis finding for a rule
// condition. Issues are reported before compilation so authors see every
// problem in one pass.
type ValidationIssue struct {
	RuleID  string
	Message string
}

func (i ValidationIssue) String() string {
	return fmt.Sprintf("rule %s: %s", i.RuleID, i.Message)
}

// conditionValidator statically inspects rule conditions. Rulesets are
// meant to stay data-like: a condition reads the input map and compares
// values. Comprehensions and clock access would make evaluation depend
// on more than the arguments, so they are rejected up front.
type conditionValidator struct {
	env *cel.Env
}

func (v *conditionValidator) validate(ruleID, expr string) ([]ValidationIssue, error) {
	parsedAST, iss := v.env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("failed to parse condition: %w", iss.Err())
	}

	//nolint:staticcheck // Expr() is deprecated but there is no replacement for raw AST access yet.
	parsed := parsedAST.Expr()

	var issues []ValidationIssue
	v.walkExpr(ruleID, parsed, &issues)
	return issues, nil
}

func (v *conditionValidator) walkExpr(ruleID string, e *exprpb.Expr, issues *[]ValidationIssue) {
	if e == nil {
		return
	}

	switch kind := e.GetExprKind().(type) {
	case *exprpb.Expr_ConstExpr, *exprpb.Expr_IdentExpr:
		// Leaves are always fine.

	case *exprpb.Expr_SelectExpr:
		v.walkExpr(ruleID, kind.SelectExpr.GetOperand(), issues)

	case *exprpb.Expr_CallExpr:
		call := kind.CallExpr
		if call.GetFunction() == "now" {
			*issues = append(*issues, ValidationIssue{
				RuleID:  ruleID,
				Message: "now() is not allowed: conditions must depend only on call arguments",
			})
		}
		v.walkExpr(ruleID, call.GetTarget(), issues)
		for _, arg := range call.GetArgs() {
			v.walkExpr(ruleID, arg, issues)
		}

	case *exprpb.Expr_ListExpr:
		for _, el := range kind.ListExpr.GetElements() {
			v.walkExpr(ruleID, el, issues)
		}

	case *exprpb.Expr_StructExpr:
		for _, entry := range kind.StructExpr.GetEntries() {
			v.walkExpr(ruleID, entry.GetMapKey(), issues)
			v.walkExpr(ruleID, entry.GetValue(), issues)
		}

	case *exprpb.Expr_ComprehensionExpr:
		*issues = append(*issues, ValidationIssue{
			RuleID:  ruleID,
			Message: "comprehensions are not allowed in rule conditions",
		})
		comp := kind.ComprehensionExpr
		v.walkExpr(ruleID, comp.GetIterRange(), issues)
		v.walkExpr(ruleID, comp.GetAccuInit(), issues)
		v.walkExpr(ruleID, comp.GetLoopCondition(), issues)
		v.walkExpr(ruleID, comp.GetLoopStep(), issues)
		v.walkExpr(ruleID, comp.GetResult(), issues)
	}
}

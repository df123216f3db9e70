package types

import (
	"fmt"

	"github.com/expr-lang/expr/ast"
	"github.com/expr-lang/expr/parser"
)

// InvalidPredicateError is the static admission failure for a `where`
// clause whose expression tree contains a node kind that would require
// inference (a method/function call, external identifier resolution, or
// anything beyond literal comparison, set membership, and boolean
// conjunction) to evaluate. The checker never executes an admitted
// predicate against an inferred value — admission is a structural,
// decidable pass over the parsed tree, not an evaluation.
type InvalidPredicateError struct {
	Source string
	Reason string
}

func (e *InvalidPredicateError) Error() string {
	return fmt.Sprintf("invalid predicate %q: %s", e.Source, e.Reason)
}

// admittedBinaryOps are the only binary operators a structural predicate
// may use: comparisons, boolean conjunction/disjunction, and membership.
var admittedBinaryOps = map[string]bool{
	"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
	"&&": true, "||": true, "and": true, "or": true, "in": true,
}

// AdmitPredicate parses `source` with expr-lang/expr and walks the
// resulting AST to confirm it uses only the structural node kinds §4.3
// permits: identifiers (field references on the declared base type),
// literals (including nil), array literals (for `in` membership), unary
// `!` and `-`, and the
// admitted binary operator set above. Any other node kind — a call, a
// member/index expression, a closure, a conditional — is a static
// InvalidPredicateError.
func AdmitPredicate(source string) error {
	tree, err := parser.Parse(source)
	if err != nil {
		return &InvalidPredicateError{Source: source, Reason: err.Error()}
	}
	return admitNode(source, tree.Node)
}

func admitNode(source string, n ast.Node) error {
	switch node := n.(type) {
	case *ast.IdentifierNode, *ast.IntegerNode, *ast.FloatNode,
		*ast.StringNode, *ast.BoolNode, *ast.NilNode:
		return nil
	case *ast.UnaryNode:
		if node.Operator != "!" && node.Operator != "-" {
			return &InvalidPredicateError{Source: source, Reason: fmt.Sprintf("unary operator %q requires inference", node.Operator)}
		}
		return admitNode(source, node.Node)
	case *ast.BinaryNode:
		if !admittedBinaryOps[node.Operator] {
			return &InvalidPredicateError{Source: source, Reason: fmt.Sprintf("operator %q is not a structural predicate operator", node.Operator)}
		}
		if err := admitNode(source, node.Left); err != nil {
			return err
		}
		return admitNode(source, node.Right)
	case *ast.ArrayNode:
		for _, el := range node.Nodes {
			if err := admitNode(source, el); err != nil {
				return err
			}
		}
		return nil
	default:
		return &InvalidPredicateError{Source: source, Reason: fmt.Sprintf("node kind %T requires inference and is not admitted", n)}
	}
}

// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file adapts the expression parser's syntax tree into the small
// closed node set the transformer walks. Parsing itself is delegated to the
// embedded cel-go parser (see transform.go); this adapter only classifies
// and reshapes its output.
package aggregation

import (
	"math"
	"strconv"
	"strings"

	"github.com/google/cel-go/common/operators"
	exprpb "google.golang.org/genproto/googleapis/api/expr/v1alpha1"
)

// nodeKind is the closed set of node classifications. Classification is a
// one-time decision made while wrapping the parser output, not repeated per
// visit.
type nodeKind int

const (
	// nodeLiteral: a constant (bool, int, long, float, string, null).
	nodeLiteral nodeKind = iota
	// nodeOperator: a unary or binary math/comparison/logical operator.
	nodeOperator
	// nodeMethodReference: a function-call-shaped expression (abs, cond, ...).
	nodeMethodReference
	// nodeGeneric: everything else the transformer understands — field
	// paths (idents and dotted selects) and array literals.
	nodeGeneric
)

// exprNode is the adapter's view of one parsed syntax node.
type exprNode struct {
	kind  nodeKind
	name  string      // operator symbol, function name, or field path
	value any         // evaluated constant, literal nodes only
	args  []*exprNode // child expressions in call order
	list  bool        // generic node: array literal rather than field path
}

func (n *exprNode) isLiteral() bool { return n.kind == nodeLiteral }

// childCount returns the number of child expressions.
func (n *exprNode) childCount() int { return len(n.args) }

// childAt returns the child expression at the given position.
func (n *exprNode) childAt(index int) *exprNode { return n.args[index] }

// wrapExpr classifies a parsed syntax node into the adapter's node set.
// Syntax the transformer cannot express (struct literals, comprehensions)
// fails here with an UnsupportedExpressionError naming the construct.
func wrapExpr(expr *exprpb.Expr) (*exprNode, error) {
	switch expr.GetExprKind().(type) {
	case *exprpb.Expr_ConstExpr:
		return wrapConst(expr.GetConstExpr())
	case *exprpb.Expr_IdentExpr:
		return &exprNode{kind: nodeGeneric, name: expr.GetIdentExpr().GetName()}, nil
	case *exprpb.Expr_SelectExpr:
		return wrapSelect(expr)
	case *exprpb.Expr_CallExpr:
		return wrapCall(expr.GetCallExpr())
	case *exprpb.Expr_ListExpr:
		return wrapList(expr.GetListExpr())
	case *exprpb.Expr_StructExpr:
		return nil, &UnsupportedExpressionError{Name: "struct literal"}
	case *exprpb.Expr_ComprehensionExpr:
		return nil, &UnsupportedExpressionError{Name: "comprehension"}
	}
	return nil, &UnsupportedExpressionError{Name: "unknown syntax node"}
}

// wrapConst turns a parsed constant into a literal node carrying its Go
// value.
func wrapConst(c *exprpb.Constant) (*exprNode, error) {
	node := &exprNode{kind: nodeLiteral}
	switch k := c.GetConstantKind().(type) {
	case *exprpb.Constant_BoolValue:
		node.value = k.BoolValue
	case *exprpb.Constant_Int64Value:
		node.value = k.Int64Value
	case *exprpb.Constant_Uint64Value:
		// The wire format has no unsigned integer type, so unsigned literals
		// carry over as signed. Values outside the signed range are rejected
		// rather than silently wrapped.
		if k.Uint64Value > math.MaxInt64 {
			return nil, &InvalidArgumentError{
				Reason: "integer literal " + strconv.FormatUint(k.Uint64Value, 10) + "u exceeds the representable range",
			}
		}
		node.value = int64(k.Uint64Value)
	case *exprpb.Constant_DoubleValue:
		node.value = k.DoubleValue
	case *exprpb.Constant_StringValue:
		node.value = k.StringValue
	case *exprpb.Constant_BytesValue:
		node.value = k.BytesValue
	case *exprpb.Constant_NullValue:
		node.value = nil
	default:
		return nil, &UnsupportedExpressionError{Name: "constant"}
	}
	return node, nil
}

// wrapSelect flattens a chain of select expressions ("a.b.c") into a single
// dotted field path node. Any operand other than an ident or another select
// is not a field path and is rejected.
func wrapSelect(expr *exprpb.Expr) (*exprNode, error) {
	segments := make([]string, 0, 4)
	current := expr
	for {
		sel := current.GetSelectExpr()
		if sel == nil {
			break
		}
		if sel.GetTestOnly() {
			return nil, &UnsupportedExpressionError{Name: "has(" + sel.GetField() + ")"}
		}
		segments = append([]string{sel.GetField()}, segments...)
		current = sel.GetOperand()
	}
	ident := current.GetIdentExpr()
	if ident == nil {
		return nil, &UnsupportedExpressionError{Name: "select over non-field operand"}
	}
	segments = append([]string{ident.GetName()}, segments...)
	return &exprNode{kind: nodeGeneric, name: strings.Join(segments, ".")}, nil
}

// wrapCall classifies a call: operator-symbol functions become operator
// nodes, everything else becomes a method-reference node. A member call's
// target is treated as the first argument, so "price.round()" and
// "round(price)" wrap identically.
func wrapCall(call *exprpb.Expr_Call) (*exprNode, error) {
	args := make([]*exprNode, 0, len(call.GetArgs())+1)
	if call.GetTarget() != nil {
		target, err := wrapExpr(call.GetTarget())
		if err != nil {
			return nil, err
		}
		args = append(args, target)
	}
	for _, arg := range call.GetArgs() {
		wrapped, err := wrapExpr(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, wrapped)
	}

	name := call.GetFunction()
	if name == operators.Negate {
		// Unary minus on a numeric literal folds the sign into the
		// literal, matching how the expression language reads negative
		// numbers.
		if folded, ok := foldNegatedLiteral(args); ok {
			return folded, nil
		}
		return &exprNode{kind: nodeOperator, name: name, args: args}, nil
	}
	if isOperatorSymbol(name) {
		return &exprNode{kind: nodeOperator, name: name, args: args}, nil
	}
	return &exprNode{kind: nodeMethodReference, name: name, args: args}, nil
}

// wrapList wraps an array literal.
func wrapList(list *exprpb.Expr_CreateList) (*exprNode, error) {
	node := &exprNode{kind: nodeGeneric, list: true}
	for _, element := range list.GetElements() {
		wrapped, err := wrapExpr(element)
		if err != nil {
			return nil, err
		}
		node.args = append(node.args, wrapped)
	}
	return node, nil
}

// foldNegatedLiteral merges a unary minus into its numeric literal operand.
func foldNegatedLiteral(args []*exprNode) (*exprNode, bool) {
	if len(args) != 1 || !args[0].isLiteral() {
		return nil, false
	}
	switch v := args[0].value.(type) {
	case int64:
		return &exprNode{kind: nodeLiteral, value: -v}, true
	case float64:
		return &exprNode{kind: nodeLiteral, value: -v}, true
	}
	return nil, false
}

// isOperatorSymbol reports whether a call names a built-in operator of the
// expression language rather than a user-facing function.
func isOperatorSymbol(name string) bool {
	_, ok := operatorReferences[name]
	return ok
}

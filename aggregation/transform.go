// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the expression transformer: it parses textual
// expressions with the embedded cel-go parser, walks the adapted syntax
// tree, and emits the native nested-document representation.
package aggregation

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/operators"

	"go.mongodb.org/mongo-driver/bson"
)

// operatorReferences maps the expression language's built-in operator
// symbols onto registry entries. Like methodReferences, the table is built
// once and read-only.
var operatorReferences = map[string]methodReference{
	operators.Add:           listRef("$add"),
	operators.Subtract:      listRef("$subtract"),
	operators.Multiply:      listRef("$multiply"),
	operators.Divide:        listRef("$divide"),
	operators.Modulo:        listRef("$mod"),
	operators.Equals:        listRef("$eq"),
	operators.NotEquals:     listRef("$ne"),
	operators.Greater:       listRef("$gt"),
	operators.GreaterEquals: listRef("$gte"),
	operators.Less:          listRef("$lt"),
	operators.LessEquals:    listRef("$lte"),
	operators.LogicalAnd:    listRef("$and"),
	operators.LogicalOr:     listRef("$or"),
	operators.LogicalNot:    listRef("$not"),
	operators.Conditional:   mapRef("$cond", "if", "then", "else"),
	operators.Negate:        listRef("$multiply"),
	operators.In:            listRef("$in"),
	operators.Index:         listRef("$arrayElemAt"),
}

// The parser environment is shared and lazily initialized. The lock is
// scoped to the nil check and construction, so the environment is built
// exactly once even under concurrent first use.
var (
	parserMutex sync.Mutex
	parserEnv   *cel.Env
)

// parserEnvironment returns the shared parse-only environment of the
// embedded expression parser.
func parserEnvironment() (*cel.Env, error) {
	parserMutex.Lock()
	defer parserMutex.Unlock()
	if parserEnv != nil {
		return parserEnv, nil
	}
	env, err := cel.NewEnv()
	if err != nil {
		return nil, fmt.Errorf("aggregation: initialize expression parser: %w", err)
	}
	parserEnv = env
	return env, nil
}

// Expr returns an Expression backed by a textual expression, parsed and
// translated when the surrounding stage renders.
//
// The expression language supports field references (plain or dotted
// names), literals, arithmetic/comparison/logical operators, the ternary
// conditional, and every function in the operator registry.
//
// Example:
//
//	aggregation.Project("customerId").
//	    AndExpression("price * quantity").As("total")
func Expr(text string) Expression {
	return parsedExpression{text: text}
}

type parsedExpression struct {
	text string
}

// Render implements Expression.
func (e parsedExpression) Render(ctx Context) (any, error) {
	env, err := parserEnvironment()
	if err != nil {
		return nil, err
	}
	ast, issues := env.Parse(e.text)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("aggregation: parse expression %q: %w", e.text, issues.Err())
	}
	parsed, err := cel.AstToParsedExpr(ast)
	if err != nil {
		return nil, fmt.Errorf("aggregation: parse expression %q: %w", e.text, err)
	}
	node, err := wrapExpr(parsed.GetExpr())
	if err != nil {
		return nil, err
	}
	return transformNode(node, ctx)
}

// transformNode recursively turns an adapted syntax node into its native
// document form.
//
//   - literal nodes emit their value unchanged
//   - field paths resolve through the stage context and emit a "$"-sigil
//     reference
//   - array literals emit a native array of transformed elements
//   - operator and method-reference nodes look up their registry entry,
//     transform each child argument, and assemble per the entry's argument
//     shape
//
// An unrecognized function fails with an UnsupportedExpressionError naming
// it, so failures are attributable to the specific unsupported feature.
func transformNode(node *exprNode, ctx Context) (any, error) {
	switch node.kind {
	case nodeLiteral:
		return node.value, nil

	case nodeGeneric:
		if node.list {
			elements := make(bson.A, 0, node.childCount())
			for i := 0; i < node.childCount(); i++ {
				value, err := transformNode(node.childAt(i), ctx)
				if err != nil {
					return nil, err
				}
				elements = append(elements, value)
			}
			return elements, nil
		}
		ref, err := ctx.Resolve(node.name)
		if err != nil {
			return nil, err
		}
		return ref.Ref(), nil

	case nodeOperator:
		ref, ok := operatorReferences[node.name]
		if !ok {
			return nil, &UnsupportedExpressionError{Name: node.name}
		}
		return transformCall(node, ref, ctx)

	case nodeMethodReference:
		ref, ok := methodReferenceFor(node.name)
		if !ok {
			return nil, &UnsupportedExpressionError{Name: node.name}
		}
		return transformCall(node, ref, ctx)
	}
	return nil, &UnsupportedExpressionError{Name: node.name}
}

// transformCall transforms the children of an operator application and
// assembles them under the native keyword.
func transformCall(node *exprNode, ref methodReference, ctx Context) (any, error) {
	args := make([]any, 0, node.childCount())
	for i := 0; i < node.childCount(); i++ {
		value, err := transformNode(node.childAt(i), ctx)
		if err != nil {
			return nil, err
		}
		args = append(args, value)
	}

	// Unary minus that survived literal folding negates by multiplication,
	// since the wire format has no dedicated negation operator.
	if node.name == operators.Negate {
		return assembleOperator(listRef("$multiply"), append([]any{int64(-1)}, args...))
	}
	return assembleOperator(ref, args)
}

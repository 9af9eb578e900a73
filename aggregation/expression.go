// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the fluent expression surface: composable values
// that render themselves into native expression documents given a stage
// context.
package aggregation

import (
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
)

// Expression is a node that can render itself into the native nested
// document form given a resolution context.
//
// Variants: literal values (Literal), field references (Ref), operator
// applications (Apply), raw pass-through documents (Raw), and parsed textual
// expressions (Expr, see transform.go). Operator applications hold child
// expressions recursively, forming a tree.
type Expression interface {
	Render(ctx Context) (any, error)
}

// Literal wraps a constant used verbatim in expression position. The value
// is still subject to type conversion when the surrounding document is
// mapped.
func Literal(value any) Expression {
	return literalExpression{value: value}
}

type literalExpression struct {
	value any
}

func (e literalExpression) Render(Context) (any, error) {
	return e.value, nil
}

// Ref references a field visible in the current stage. The name is resolved
// through the stage context and rendered with the "$" sigil.
//
// Example:
//
//	aggregation.Apply("abs", aggregation.Ref("price"))
func Ref(name string) Expression {
	return fieldExpression{name: name}
}

type fieldExpression struct {
	name string
}

func (e fieldExpression) Render(ctx Context) (any, error) {
	ref, err := ctx.Resolve(e.name)
	if err != nil {
		return nil, err
	}
	return ref.Ref(), nil
}

// Raw passes a prebuilt native document through unchanged. It is the escape
// hatch for operators the registry does not model.
func Raw(doc bson.D) Expression {
	return rawExpression{doc: doc}
}

type rawExpression struct {
	doc bson.D
}

func (e rawExpression) Render(Context) (any, error) {
	return e.doc, nil
}

// Apply applies a registered operator by its expression-language function
// name to the given arguments. Rendering fails with an
// UnsupportedExpressionError when the name has no registry entry.
//
// Example:
//
//	aggregation.Apply("cond",
//	    aggregation.Apply("gt", aggregation.Ref("qty"), aggregation.Literal(10)),
//	    aggregation.Literal("bulk"),
//	    aggregation.Literal("single"),
//	)
func Apply(name string, args ...Expression) Expression {
	return operationExpression{name: name, args: args}
}

type operationExpression struct {
	name string
	args []Expression
}

func (e operationExpression) Render(ctx Context) (any, error) {
	ref, ok := methodReferenceFor(e.name)
	if !ok {
		return nil, &UnsupportedExpressionError{Name: e.name}
	}
	rendered := make([]any, 0, len(e.args))
	for _, arg := range e.args {
		value, err := arg.Render(ctx)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, value)
	}
	return assembleOperator(ref, rendered)
}

// assembleOperator wraps the evaluated arguments under the operator keyword
// according to the registry entry's argument shape.
//
// Named-map entries invoked with fewer positional arguments than declared
// parameter names omit the missing trailing parameters from the output
// document; an absent optional key is not the same wire value as an explicit
// null.
func assembleOperator(ref methodReference, args []any) (bson.D, error) {
	switch ref.shape {
	case shapeSingle:
		if len(args) != 1 {
			return nil, &InvalidArgumentError{
				Reason: fmt.Sprintf("operator %s takes exactly one argument, got %d", ref.operator, len(args)),
			}
		}
		return bson.D{{Key: ref.operator, Value: args[0]}}, nil

	case shapeOrderedList:
		return bson.D{{Key: ref.operator, Value: bson.A(args)}}, nil

	case shapeNamedMap:
		if len(args) > len(ref.parameters) {
			return nil, &InvalidArgumentError{
				Reason: fmt.Sprintf("operator %s declares %d parameters, got %d arguments",
					ref.operator, len(ref.parameters), len(args)),
			}
		}
		named := make(bson.D, 0, len(args))
		for i, arg := range args {
			named = append(named, bson.E{Key: ref.parameterAt(i), Value: arg})
		}
		return bson.D{{Key: ref.operator, Value: named}}, nil
	}
	return nil, &InvalidArgumentError{Reason: "operator " + ref.operator + " has an unknown argument shape"}
}

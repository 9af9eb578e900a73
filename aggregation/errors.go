// Package aggregation provides the pipeline compilation core of the talos
// ODM. This file defines the typed errors raised during translation.
package aggregation

import "fmt"

// UnresolvedFieldError is returned when a field reference cannot be resolved
// under the strict lookup policy. It always names the offending reference so
// the caller can identify the expression fragment at fault.
type UnresolvedFieldError struct {
	Name string
}

// Error implements the error interface.
func (e *UnresolvedFieldError) Error() string {
	return fmt.Sprintf("aggregation: field reference %q is not exposed in this stage", e.Name)
}

// UnsupportedExpressionError is returned when a parsed function or operator
// has no registry entry. Translation fails outright; nothing is deferred to
// the database.
type UnsupportedExpressionError struct {
	Name string
}

// Error implements the error interface.
func (e *UnsupportedExpressionError) Error() string {
	return fmt.Sprintf("aggregation: unsupported expression function %q", e.Name)
}

// InvalidArgumentError is returned when an expression or stage is built with
// arguments the target operator cannot accept, e.g. excluding a regular
// field inside an inclusion projection or passing more positional arguments
// than an operator declares parameters.
type InvalidArgumentError struct {
	Reason string
}

// Error implements the error interface.
func (e *InvalidArgumentError) Error() string {
	return "aggregation: " + e.Reason
}

// Package core provides the fundamental building blocks of the talos ODM.
// This file defines the hook identifiers used to register functions that run
// before or after persistence operations on a schema.
package core

// PreHook identifies a hook executed before an operation.
type PreHook string

// PostHook identifies a hook executed after an operation.
type PostHook string

const (
	PreInsert PreHook = "pre:insert"
	PreUpdate PreHook = "pre:update"
	PreDelete PreHook = "pre:delete"
	PreFind   PreHook = "pre:find"

	PostInsert PostHook = "post:insert"
	PostUpdate PostHook = "post:update"
	PostDelete PostHook = "post:delete"
	PostFind   PostHook = "post:find"
)

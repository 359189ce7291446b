// Package errors provides standardized error handling for the component
// query/serialization protocol.
//
// # Overview
//
// The package implements a three-class error model: Invalid (bad input or an
// invalid operation against current state, fatal to the single operation),
// Recoverable (per-node failures during batch operations that must not abort
// sibling nodes), and Fatal (programming or configuration errors that stop
// processing).
//
// Alongside classification, every error resolves to a stable machine-readable
// Code. Codes are transmitted in response envelopes so remote callers can
// special-case conditions such as a protocol version mismatch without string
// matching. Code values are part of the wire contract and never change.
//
// # Quick Start
//
// Return standard error variables for known conditions:
//
//	if !attr.IsSet() {
//	    return errors.ErrInactiveAttribute
//	}
//
// Wrap errors with context:
//
//	if err := attr.SetValue(v); err != nil {
//	    return errors.Wrap(err, "Component", "Deserialize", "attribute merge")
//	}
//
// Resolve the wire code for a response envelope:
//
//	envelope.ErrorCode = string(errors.CodeOf(err))
//
// The package integrates with standard error handling: errors.Is, errors.As,
// and wrapping chains all work across the helpers here.
package errors

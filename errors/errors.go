// Package errors provides standardized error handling for the component
// protocol. It includes error classification, stable machine-readable codes
// for wire transmission, and helper functions for consistent error wrapping
// across the system.
package errors

import (
	"errors"
	"fmt"
)

// ErrorClass represents the classification of errors for handling purposes
type ErrorClass int

const (
	// ErrorInvalid represents errors caused by invalid input or an invalid
	// operation against the current state; fatal to the single operation.
	ErrorInvalid ErrorClass = iota
	// ErrorRecoverable represents per-node errors that abort one node of a
	// batch operation without aborting its siblings.
	ErrorRecoverable
	// ErrorFatal represents programming or configuration errors that should
	// stop processing entirely.
	ErrorFatal
)

// String returns the string representation of ErrorClass
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorInvalid:
		return "invalid"
	case ErrorRecoverable:
		return "recoverable"
	case ErrorFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Code is a stable machine-readable error code. Codes cross the wire in
// response envelopes, so their values are part of the protocol contract
// and must never be renumbered or reused.
type Code string

const (
	// CodeUnknownComponent indicates a component name with no registration.
	CodeUnknownComponent Code = "UNKNOWN_COMPONENT"
	// CodeUnknownProperty indicates a property name not declared on the component.
	CodeUnknownProperty Code = "UNKNOWN_PROPERTY"
	// CodePropertyKind indicates a property redefinition with an incompatible kind.
	CodePropertyKind Code = "PROPERTY_KIND_MISMATCH"
	// CodeInactiveAttribute indicates a read of a declared but inactive attribute.
	CodeInactiveAttribute Code = "INACTIVE_ATTRIBUTE"
	// CodeIdentityConflict indicates two instances claiming one identifier value.
	CodeIdentityConflict Code = "IDENTITY_CONFLICT"
	// CodeImmutableIdentifier indicates a write to an already-set primary identifier.
	CodeImmutableIdentifier Code = "IMMUTABLE_IDENTIFIER"
	// CodeUnauthorized indicates a get/set/call denied by exposure policy.
	CodeUnauthorized Code = "UNAUTHORIZED"
	// CodeVersionMismatch indicates client/server protocol version disagreement.
	CodeVersionMismatch Code = "PROTOCOL_VERSION_MISMATCH"
	// CodeDanglingReference indicates a reference stub naming an unresolvable component.
	CodeDanglingReference Code = "DANGLING_REFERENCE"
	// CodeInvalidQuery indicates a malformed query document.
	CodeInvalidQuery Code = "INVALID_QUERY"
	// CodeInvalidValue indicates a value rejected by its declared value type.
	CodeInvalidValue Code = "INVALID_VALUE"
	// CodeInternal covers everything without a more specific code.
	CodeInternal Code = "INTERNAL"
)

// Standard error variables for common conditions
var (
	// Schema and shape errors
	ErrUnknownComponent  = errors.New("unknown component")
	ErrComponentExists   = errors.New("component already registered")
	ErrUnknownProperty   = errors.New("property does not exist")
	ErrPropertyKind      = errors.New("property kind mismatch")
	ErrInvalidTypeSpec   = errors.New("invalid value type specifier")
	ErrValidationFailed  = errors.New("value failed validation")
	ErrMissingIdentifier = errors.New("missing identifier attribute")

	// Activation errors
	ErrInactiveAttribute = errors.New("attribute is inactive")

	// Identity errors
	ErrIdentityConflict     = errors.New("identifier already exists")
	ErrImmutableIdentifier  = errors.New("primary identifier is immutable once set")
	ErrEntityDetached       = errors.New("entity is detached from its manager")
	ErrDuplicateIdentifier  = errors.New("entity class already has a primary identifier")
	ErrIdentifierValueType  = errors.New("identifier value must be a string or number")
	ErrUnknownIdentityClass = errors.New("component is not an entity")

	// Protocol errors
	ErrUnauthorized      = errors.New("operation not permitted by exposure")
	ErrVersionMismatch   = errors.New("protocol version mismatch")
	ErrDanglingReference = errors.New("reference to unresolvable component")
	ErrInvalidQuery      = errors.New("invalid query document")
	ErrInvalidPayload    = errors.New("invalid serialized payload")

	// Lifecycle and configuration errors
	ErrAlreadyStarted = errors.New("already started")
	ErrNotStarted     = errors.New("not started")
	ErrInvalidConfig  = errors.New("invalid configuration")
	ErrMissingConfig  = errors.New("missing required configuration")
)

// codes maps sentinel errors to their wire codes. Wrapped errors resolve
// through errors.Is so classification survives arbitrary wrapping.
var codes = []struct {
	err  error
	code Code
}{
	{ErrUnknownComponent, CodeUnknownComponent},
	{ErrComponentExists, CodeUnknownComponent},
	{ErrUnknownProperty, CodeUnknownProperty},
	{ErrPropertyKind, CodePropertyKind},
	{ErrInactiveAttribute, CodeInactiveAttribute},
	{ErrIdentityConflict, CodeIdentityConflict},
	{ErrImmutableIdentifier, CodeImmutableIdentifier},
	{ErrUnauthorized, CodeUnauthorized},
	{ErrVersionMismatch, CodeVersionMismatch},
	{ErrDanglingReference, CodeDanglingReference},
	{ErrInvalidQuery, CodeInvalidQuery},
	{ErrValidationFailed, CodeInvalidValue},
	{ErrInvalidTypeSpec, CodeInvalidValue},
}

// CodeOf returns the stable wire code for an error. Unrecognized errors
// map to CodeInternal.
func CodeOf(err error) Code {
	var ce *ClassifiedError
	if errors.As(err, &ce) && ce.Code != "" {
		return ce.Code
	}
	for _, m := range codes {
		if errors.Is(err, m.err) {
			return m.code
		}
	}
	return CodeInternal
}

// FromWire reconstructs an error from a wire code and message, preserving
// errors.Is identity with the matching sentinel so callers can branch on
// remote failures the same way they branch on local ones.
func FromWire(code Code, message string) error {
	for _, m := range codes {
		if m.code == code {
			if message == "" {
				return m.err
			}
			return fmt.Errorf("%s: %w", message, m.err)
		}
	}
	if message == "" {
		return errors.New(string(code))
	}
	return errors.New(message)
}

// ClassifiedError wraps an error with its classification and wire code
type ClassifiedError struct {
	Class     ErrorClass
	Code      Code
	Err       error
	Message   string
	Component string
	Operation string
}

// Error implements the error interface
func (ce *ClassifiedError) Error() string {
	if ce.Message != "" {
		return ce.Message
	}
	return ce.Err.Error()
}

// Unwrap returns the underlying error
func (ce *ClassifiedError) Unwrap() error {
	return ce.Err
}

// IsRecoverable checks whether an error aborts only its own node in a
// batch operation.
func IsRecoverable(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorRecoverable
	}
	return errors.Is(err, ErrDanglingReference)
}

// IsFatal checks if an error is fatal and should stop processing
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorFatal
	}
	return errors.Is(err, ErrInvalidConfig) || errors.Is(err, ErrMissingConfig)
}

// IsInvalid checks if an error is due to invalid input or an invalid
// operation against current state
func IsInvalid(err error) bool {
	if err == nil {
		return false
	}
	var ce *ClassifiedError
	if errors.As(err, &ce) {
		return ce.Class == ErrorInvalid
	}
	return !IsFatal(err) && !IsRecoverable(err)
}

// newClassified creates a new classified error
// This is an internal helper - use WrapInvalid(), WrapRecoverable(), or WrapFatal() instead.
func newClassified(class ErrorClass, err error, component, operation, message string) *ClassifiedError {
	return &ClassifiedError{
		Class:     class,
		Code:      CodeOf(err),
		Err:       err,
		Message:   message,
		Component: component,
		Operation: operation,
	}
}

// Wrap creates a standardized error with context following the pattern:
// "component.method: action failed: %w"
func Wrap(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s.%s: %s failed: %w", component, method, action, err)
}

// WrapInvalid wraps an error as invalid with context
func WrapInvalid(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorInvalid, wrappedErr, component, method, wrappedErr.Error())
}

// WrapRecoverable wraps an error as recoverable-per-node with context
func WrapRecoverable(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorRecoverable, wrappedErr, component, method, wrappedErr.Error())
}

// WrapFatal wraps an error as fatal with context
func WrapFatal(err error, component, method, action string) error {
	if err == nil {
		return nil
	}
	wrappedErr := Wrap(err, component, method, action)
	return newClassified(ErrorFatal, wrappedErr, component, method, wrappedErr.Error())
}

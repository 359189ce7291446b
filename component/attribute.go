package component

import (
	"fmt"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
)

// ValueChange records one attribute transition. PreviousSet/NewSet mirror
// the activation flag on each side of the transition, so observers can
// distinguish "was unset" from "was nil".
type ValueChange struct {
	PreviousValue any
	PreviousSet   bool
	NewValue      any
	NewSet        bool
}

// AttributeOptions configures an attribute declaration.
type AttributeOptions struct {
	// Type is the symbolic value-type specifier ("string", "number?",
	// "[Movie]"). Required.
	Type string
	// Exposure is the get/set policy. The zero value exposes nothing.
	Exposure Exposure
	// Default, when non-nil, produces the initial value applied to newly
	// created instances.
	Default func() any
	// Validators are attached to the parsed value type and run on every
	// SetValue.
	Validators []types.Validator
	// PrimaryIdentifier marks the attribute as the entity's primary
	// identifier: write-once, string or number valued, at most one per
	// class.
	PrimaryIdentifier bool
	// SecondaryIdentifier marks the attribute as a secondary identifier:
	// mutable, tracked for uniqueness within the identity scope.
	SecondaryIdentifier bool
}

// Attribute is a declared data property. On a class it only describes the
// declaration; on an instance it additionally carries the current value and
// the activation flag.
type Attribute struct {
	name      string
	owner     *Component
	valueType *types.ValueType
	exposure  Exposure
	defaultFn func() any

	primaryIdentifier   bool
	secondaryIdentifier bool

	active        bool
	value         any
	previousValue any
	previousSet   bool
}

// Name returns the attribute name.
func (a *Attribute) Name() string { return a.name }

// PropertyKind returns KindAttribute.
func (a *Attribute) PropertyKind() PropertyKind { return KindAttribute }

// Exposure returns the attribute's get/set policy.
func (a *Attribute) Exposure() Exposure { return a.exposure }

// Owner returns the component the attribute is attached to.
func (a *Attribute) Owner() *Component { return a.owner }

// ValueType returns the parsed value type.
func (a *Attribute) ValueType() *types.ValueType { return a.valueType }

// IsPrimaryIdentifier reports whether the attribute is the primary
// identifier of its class.
func (a *Attribute) IsPrimaryIdentifier() bool { return a.primaryIdentifier }

// IsSecondaryIdentifier reports whether the attribute is a secondary
// identifier.
func (a *Attribute) IsSecondaryIdentifier() bool { return a.secondaryIdentifier }

// IsIdentifier reports whether the attribute takes part in identity
// reconciliation.
func (a *Attribute) IsIdentifier() bool { return a.primaryIdentifier || a.secondaryIdentifier }

// HasDefault reports whether the declaration carries a default.
func (a *Attribute) HasDefault() bool { return a.defaultFn != nil }

// IsSet reports whether the attribute's value is currently known. This is
// independent of what the value is; an attribute set to nil is still set.
func (a *Attribute) IsSet() bool { return a.active }

// Value returns the current value. Reading an inactive attribute is an
// error, distinguished from reading an attribute that does not exist.
func (a *Attribute) Value() (any, error) {
	if !a.active {
		return nil, errors.WrapInvalid(errors.ErrInactiveAttribute, "Attribute", "Value",
			fmt.Sprintf("attribute %q of component %q", a.name, a.owner.Name()))
	}
	return a.value, nil
}

// PreviousValue returns the value the attribute held before the most recent
// SetValue or UnsetValue, and whether such a value is retained. The
// previous value survives UnsetValue so callers can diff across a clear.
func (a *Attribute) PreviousValue() (any, bool) {
	return a.previousValue, a.previousSet
}

// SetValue sets the value, activates the attribute, and returns the
// transition. The value is checked against the declared type first. A
// second write to an already-set primary identifier with a different value
// is rejected. Identifier changes are propagated to the instance's
// identity observer; if the observer rejects the change (identity
// conflict) the attribute is rolled back so value state and identity index
// never diverge.
func (a *Attribute) SetValue(value any) (ValueChange, error) {
	if err := a.valueType.Check(value, types.CheckOptions{ComponentChecker: isComponentValue}); err != nil {
		return ValueChange{}, errors.Wrap(err, "Attribute", "SetValue",
			fmt.Sprintf("attribute %q", a.name))
	}
	if a.primaryIdentifier && a.active && a.value != value {
		return ValueChange{}, errors.WrapInvalid(errors.ErrImmutableIdentifier, "Attribute", "SetValue",
			fmt.Sprintf("attribute %q already holds %v", a.name, a.value))
	}

	change := ValueChange{
		PreviousValue: a.value,
		PreviousSet:   a.active,
		NewValue:      value,
		NewSet:        true,
	}

	retainedValue, retainedSet := a.previousValue, a.previousSet
	a.previousValue = a.value
	a.previousSet = a.active
	a.value = value
	a.active = true

	if err := a.notifyObserver(change); err != nil {
		a.value = change.PreviousValue
		a.active = change.PreviousSet
		a.previousValue = retainedValue
		a.previousSet = retainedSet
		return ValueChange{}, err
	}
	if a.owner != nil && a.owner.IsInstance() {
		a.owner.bumpVersion()
	}
	return change, nil
}

// UnsetValue clears the activation flag. The prior value is retained as
// the previous value for diffing. A no-op when already inactive.
func (a *Attribute) UnsetValue() error {
	if !a.active {
		return nil
	}
	change := ValueChange{
		PreviousValue: a.value,
		PreviousSet:   true,
		NewSet:        false,
	}
	retainedValue, retainedSet := a.previousValue, a.previousSet
	a.previousValue = a.value
	a.previousSet = true
	a.active = false
	a.value = nil

	if err := a.notifyObserver(change); err != nil {
		a.value = change.PreviousValue
		a.active = true
		a.previousValue = retainedValue
		a.previousSet = retainedSet
		return err
	}
	if a.owner != nil && a.owner.IsInstance() {
		a.owner.bumpVersion()
	}
	return nil
}

// ApplyDefault activates the attribute with its declared default. Applied
// to new instances only; reconciled instances never invent values. A no-op
// for attributes without a default.
func (a *Attribute) ApplyDefault() error {
	if a.defaultFn == nil {
		return nil
	}
	_, err := a.SetValue(a.defaultFn())
	return err
}

func (a *Attribute) notifyObserver(change ValueChange) error {
	if !a.IsIdentifier() {
		return nil
	}
	owner := a.owner
	if owner == nil || owner.IsClass() || owner.identityObserver == nil {
		return nil
	}
	return owner.identityObserver(owner, a, change)
}

// clone produces the instance-side copy of a class-level declaration.
func (a *Attribute) clone(owner *Component) *Attribute {
	return &Attribute{
		name:                a.name,
		owner:               owner,
		valueType:           a.valueType,
		exposure:            a.exposure,
		defaultFn:           a.defaultFn,
		primaryIdentifier:   a.primaryIdentifier,
		secondaryIdentifier: a.secondaryIdentifier,
	}
}

// isComponentValue is the types.ComponentValueChecker for attribute values:
// a value satisfies a component-kind type when it is a component instance
// of the named class (or a fork of it).
func isComponentValue(value any, componentName string) bool {
	c, ok := value.(*Component)
	return ok && c.IsInstance() && c.Name() == componentName
}

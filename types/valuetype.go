// Package types contains the value-type registry shared across the platform.
// It maps symbolic type specifiers ("string", "number?", "[Movie]") to
// parsed ValueType descriptors with validation and coercion rules.
package types

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/layrjs/layr-sub008/errors"
)

// Kind identifies the base kind of a value type.
type Kind int

// Value type kinds
const (
	KindAny Kind = iota
	KindBoolean
	KindNumber
	KindString
	KindDate
	KindRegExp
	KindObject
	KindArray
	KindComponent
)

// String returns the specifier keyword for the kind
func (k Kind) String() string {
	switch k {
	case KindAny:
		return "any"
	case KindBoolean:
		return "boolean"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindDate:
		return "date"
	case KindRegExp:
		return "regExp"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	case KindComponent:
		return "component"
	default:
		return "unknown"
	}
}

// ValueType is a parsed value-type specifier. It describes what values an
// attribute may hold: a base kind, optionality ("?" suffix), an item type
// for arrays, a referenced component name for component types, and any
// attached validators.
type ValueType struct {
	Kind          Kind
	Optional      bool
	Item          *ValueType // element type, arrays only
	ComponentName string     // referenced component, component kinds only
	Validators    []Validator
}

// Specifier reconstructs the symbolic specifier this type was parsed from.
func (t *ValueType) Specifier() string {
	var base string
	switch t.Kind {
	case KindArray:
		base = "[" + t.Item.Specifier() + "]"
	case KindComponent:
		base = t.ComponentName
	default:
		base = t.Kind.String()
	}
	if t.Optional {
		return base + "?"
	}
	return base
}

// IsComponent reports whether the type (or, for arrays, its item type)
// references a component.
func (t *ValueType) IsComponent() bool {
	if t.Kind == KindArray {
		return t.Item.IsComponent()
	}
	return t.Kind == KindComponent
}

// ReferencedComponent returns the component name the type references,
// looking through one level of array nesting; empty for scalar types.
func (t *ValueType) ReferencedComponent() string {
	if t.Kind == KindArray {
		return t.Item.ReferencedComponent()
	}
	return t.ComponentName
}

// componentNamePattern matches valid component names: an upper-case letter
// followed by letters and digits.
var componentNamePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// scalarKinds maps specifier keywords to kinds.
var scalarKinds = map[string]Kind{
	"any":     KindAny,
	"boolean": KindBoolean,
	"number":  KindNumber,
	"string":  KindString,
	"date":    KindDate,
	"regExp":  KindRegExp,
	"object":  KindObject,
}

// Parse parses a symbolic value-type specifier into a ValueType.
//
// Grammar:
//
//	spec  := inner "?"?
//	inner := scalar | "[" spec "]" | ComponentName
//
// Scalar keywords are lower-case ("string", "number", ...); anything
// starting with an upper-case letter is a component reference resolved by
// name at serialization time.
func Parse(spec string) (*ValueType, error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidTypeSpec, "ValueType", "Parse",
			"empty specifier")
	}

	t := &ValueType{}
	if strings.HasSuffix(spec, "?") {
		t.Optional = true
		spec = spec[:len(spec)-1]
	}

	switch {
	case strings.HasPrefix(spec, "["):
		if !strings.HasSuffix(spec, "]") {
			return nil, errors.WrapInvalid(errors.ErrInvalidTypeSpec, "ValueType", "Parse",
				fmt.Sprintf("unterminated array specifier %q", spec))
		}
		item, err := Parse(spec[1 : len(spec)-1])
		if err != nil {
			return nil, err
		}
		t.Kind = KindArray
		t.Item = item
	case componentNamePattern.MatchString(spec):
		t.Kind = KindComponent
		t.ComponentName = spec
	default:
		kind, ok := scalarKinds[spec]
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidTypeSpec, "ValueType", "Parse",
				fmt.Sprintf("unknown specifier %q", spec))
		}
		t.Kind = kind
	}

	return t, nil
}

// MustParse is Parse for statically-known specifiers; it panics on error.
// Intended for component declarations written in code.
func MustParse(spec string) *ValueType {
	t, err := Parse(spec)
	if err != nil {
		panic(err)
	}
	return t
}

// ComponentValueChecker reports whether a runtime value is an instance of
// the named component. Supplied by the component layer so this package
// stays a leaf.
type ComponentValueChecker func(value any, componentName string) bool

// CheckOptions configures value checking.
type CheckOptions struct {
	// ComponentChecker resolves component-kind checks. When nil,
	// component-kind values are accepted without inspection.
	ComponentChecker ComponentValueChecker
}

// Check validates a runtime value against the type. nil is only accepted
// for optional types. After the kind check, attached validators run in
// order; the first failure aborts.
func (t *ValueType) Check(value any, opts CheckOptions) error {
	if value == nil {
		if t.Optional {
			return nil
		}
		return errors.WrapInvalid(errors.ErrValidationFailed, "ValueType", "Check",
			fmt.Sprintf("%s does not accept an unset value", t.Specifier()))
	}

	if err := t.checkKind(value, opts); err != nil {
		return err
	}

	for _, v := range t.Validators {
		if !v.Fn(value) {
			return errors.WrapInvalid(errors.ErrValidationFailed, "ValueType", "Check",
				fmt.Sprintf("validator %q rejected value", v.Name))
		}
	}
	return nil
}

func (t *ValueType) checkKind(value any, opts CheckOptions) error {
	ok := false
	switch t.Kind {
	case KindAny:
		ok = true
	case KindBoolean:
		_, ok = value.(bool)
	case KindNumber:
		ok = isNumber(value)
	case KindString:
		_, ok = value.(string)
	case KindDate:
		_, ok = value.(time.Time)
	case KindRegExp:
		_, ok = value.(*regexp.Regexp)
	case KindObject:
		_, ok = value.(map[string]any)
	case KindArray:
		items, isSlice := value.([]any)
		if !isSlice {
			break
		}
		for i, item := range items {
			if err := t.Item.Check(item, opts); err != nil {
				return errors.Wrap(err, "ValueType", "Check",
					fmt.Sprintf("array element %d", i))
			}
		}
		ok = true
	case KindComponent:
		if opts.ComponentChecker == nil {
			ok = true
			break
		}
		ok = opts.ComponentChecker(value, t.ComponentName)
	}

	if !ok {
		return errors.WrapInvalid(errors.ErrValidationFailed, "ValueType", "Check",
			fmt.Sprintf("value of type %T does not satisfy %s", value, t.Specifier()))
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	default:
		return false
	}
}

package component

import (
	"fmt"
	"sort"

	"github.com/layrjs/layr-sub008/errors"
)

// Selector is a recursive inclusion specification over an attribute tree:
// everything (All), nothing (None, the nil selector), or a per-attribute
// mapping to nested selectors for component-valued attributes.
//
// Selectors appear on the wire as JSON true / false / object, converted by
// SelectorFromValue and Selector.Value.
type Selector struct {
	all    bool
	fields map[string]*Selector
}

// All returns the selector covering every attribute, recursively.
func All() *Selector {
	return &Selector{all: true}
}

// None returns the selector covering nothing.
func None() *Selector {
	return nil
}

// Pick returns a selector covering exactly the listed attributes. Unlisted
// attributes are excluded.
func Pick(fields map[string]*Selector) *Selector {
	return &Selector{fields: fields}
}

// PickNames returns a selector covering the named attributes with All
// nested selection each.
func PickNames(names ...string) *Selector {
	fields := make(map[string]*Selector, len(names))
	for _, name := range names {
		fields[name] = All()
	}
	return &Selector{fields: fields}
}

// IsAll reports whether the selector covers everything.
func (s *Selector) IsAll() bool {
	return s != nil && s.all
}

// IsNone reports whether the selector covers nothing.
func (s *Selector) IsNone() bool {
	return s == nil || (!s.all && len(s.fields) == 0)
}

// Includes reports whether the named attribute is covered.
func (s *Selector) Includes(name string) bool {
	return !s.Field(name).IsNone()
}

// Field returns the nested selector for an attribute name.
func (s *Selector) Field(name string) *Selector {
	if s == nil {
		return nil
	}
	if s.all {
		return All()
	}
	return s.fields[name]
}

// FieldNames returns the covered attribute names in sorted order; nil for
// All and None selectors.
func (s *Selector) FieldNames() []string {
	if s == nil || s.all || len(s.fields) == 0 {
		return nil
	}
	names := make([]string, 0, len(s.fields))
	for name, sub := range s.fields {
		if sub.IsNone() {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ComponentResolver resolves a component name to its local class. Used
// during selector expansion to follow component-valued attributes.
type ComponentResolver func(name string) (*Component, bool)

// DefaultExpansionDepth bounds selector expansion through recursive
// component references.
const DefaultExpansionDepth = 10

// Expand canonicalizes the selector against a component class: All becomes
// one key per declared attribute, each mapped to the expansion of the
// attribute's value type (terminal types expand to All); None stays None;
// a field selector expands each listed key and drops excluded ones.
// Expansion is idempotent. The depth limit truncates recursive
// self-references to None.
//
// The same expansion drives the serializer, the deserializer, and populate
// logic.
func (s *Selector) Expand(class *Component, resolve ComponentResolver, depth int) *Selector {
	if s.IsNone() || depth <= 0 {
		return None()
	}
	if class == nil {
		// Terminal position: nothing to enumerate.
		return All()
	}

	expanded := make(map[string]*Selector)
	for _, prop := range class.Properties(AttributesOnly) {
		attr := prop.(*Attribute)
		sub := s.Field(attr.Name())
		if sub.IsNone() {
			continue
		}

		if referenced := attr.ValueType().ReferencedComponent(); referenced != "" {
			nested, ok := resolveClass(resolve, referenced)
			if !ok {
				// Unresolvable nested class: keep the caller's intent
				// untouched rather than inventing a shape.
				expanded[attr.Name()] = sub
				continue
			}
			nestedExpanded := sub.Expand(nested, resolve, depth-1)
			if nestedExpanded.IsNone() {
				continue
			}
			expanded[attr.Name()] = nestedExpanded
			continue
		}

		expanded[attr.Name()] = All()
	}
	return &Selector{fields: expanded}
}

func resolveClass(resolve ComponentResolver, name string) (*Component, bool) {
	if resolve == nil {
		return nil, false
	}
	return resolve(name)
}

// Value converts the selector to its wire form: true, false, or a nested
// map.
func (s *Selector) Value() any {
	if s.IsNone() {
		return false
	}
	if s.all {
		return true
	}
	out := make(map[string]any, len(s.fields))
	for name, sub := range s.fields {
		out[name] = sub.Value()
	}
	return out
}

// SelectorFromValue converts a decoded JSON value (true, false, or an
// object) into a Selector.
func SelectorFromValue(value any) (*Selector, error) {
	switch v := value.(type) {
	case nil:
		return None(), nil
	case bool:
		if v {
			return All(), nil
		}
		return None(), nil
	case map[string]any:
		fields := make(map[string]*Selector, len(v))
		for name, sub := range v {
			parsed, err := SelectorFromValue(sub)
			if err != nil {
				return nil, errors.Wrap(err, "Selector", "SelectorFromValue",
					fmt.Sprintf("field %q", name))
			}
			fields[name] = parsed
		}
		return &Selector{fields: fields}, nil
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("selector must be a boolean or an object, got %T", value),
			"Selector", "SelectorFromValue", "value parsing")
	}
}

package component

import (
	"fmt"

	"github.com/layrjs/layr-sub008/errors"
)

// MissingAttributes computes the part of a selector that is not yet active
// on an instance: the front half of a batch load. The selector is expanded
// against the instance's class first, so partial-load semantics match
// serialization exactly. Attributes that are active but component-valued
// are descended into, and for arrays the per-item missing selectors are
// unioned, because a later load must fill the worst-case gap.
func MissingAttributes(instance *Component, selector *Selector, resolve ComponentResolver) (*Selector, error) {
	if instance == nil || !instance.IsInstance() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("populate target must be a component instance"),
			"Component", "MissingAttributes", "instance check")
	}

	expanded := selector.Expand(instance.Class(), resolve, DefaultExpansionDepth)
	if expanded.IsNone() {
		return None(), nil
	}

	missing := make(map[string]*Selector)
	for _, name := range expanded.FieldNames() {
		sub := expanded.Field(name)
		attr, err := instance.GetAttribute(name)
		if err != nil {
			return nil, err
		}

		if !attr.IsSet() {
			missing[name] = sub
			continue
		}

		if !attr.ValueType().IsComponent() {
			continue
		}
		value, err := attr.Value()
		if err != nil {
			return nil, err
		}
		nested, err := missingInValue(value, sub, resolve)
		if err != nil {
			return nil, errors.Wrap(err, "Component", "MissingAttributes",
				fmt.Sprintf("attribute %q", name))
		}
		if !nested.IsNone() {
			missing[name] = nested
		}
	}

	if len(missing) == 0 {
		return None(), nil
	}
	return Pick(missing), nil
}

func missingInValue(value any, selector *Selector, resolve ComponentResolver) (*Selector, error) {
	switch v := value.(type) {
	case nil:
		return None(), nil
	case *Component:
		return MissingAttributes(v, selector, resolve)
	case []any:
		union := make(map[string]*Selector)
		for _, item := range v {
			itemMissing, err := missingInValue(item, selector, resolve)
			if err != nil {
				return nil, err
			}
			for _, name := range itemMissing.FieldNames() {
				union[name] = mergeSelectors(union[name], itemMissing.Field(name))
			}
		}
		if len(union) == 0 {
			return None(), nil
		}
		return Pick(union), nil
	default:
		return None(), nil
	}
}

// mergeSelectors unions two selectors field-wise.
func mergeSelectors(a, b *Selector) *Selector {
	if a.IsNone() {
		return b
	}
	if b.IsNone() {
		return a
	}
	if a.IsAll() || b.IsAll() {
		return All()
	}
	merged := make(map[string]*Selector)
	for _, name := range a.FieldNames() {
		merged[name] = a.Field(name)
	}
	for _, name := range b.FieldNames() {
		merged[name] = mergeSelectors(merged[name], b.Field(name))
	}
	return Pick(merged)
}

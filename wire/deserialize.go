package wire

import (
	"fmt"
	"regexp"
	"time"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/entity"
	"github.com/layrjs/layr-sub008/errors"
)

// ComponentProvider resolves wire component names against the local graph.
// The componentregistry package provides the standard implementation; the
// indirection is what lets cross-references resolve without static
// imports.
type ComponentProvider interface {
	// GetComponent resolves a declared class name.
	GetComponent(name string) (*component.Component, error)
	// ManagerFor returns the identity manager for an entity class name.
	ManagerFor(name string) (*entity.Manager, bool)
}

// ErrorHandler receives recoverable per-node deserialization errors
// (dangling references). Returning nil suppresses the node: it
// deserializes to nil and sibling nodes continue; returning an error
// aborts the whole operation with that error.
type ErrorHandler func(err error) error

// DeserializeOptions configures one deserialization walk.
type DeserializeOptions struct {
	// Components resolves component payloads and reference stubs.
	// Required whenever the value may contain component nodes.
	Components ComponentProvider
	// AttributeFilter gates attribute merging. A payload attribute the
	// filter rejects is an authorization error, never a silent drop.
	AttributeFilter AttributeFilter
	// ErrorHandler handles recoverable per-node errors. Nil propagates
	// them.
	ErrorHandler ErrorHandler
	// EntityObserver, when non-nil, is notified for every entity payload
	// reconciled during the walk. created reports whether the instance was
	// materialized rather than found in the identity map.
	EntityObserver func(inst *component.Component, created bool)
}

// Deserializer reconstructs live values from wire-safe structures.
type Deserializer struct{}

// NewDeserializer creates a Deserializer.
func NewDeserializer() *Deserializer {
	return &Deserializer{}
}

// Deserialize walks a wire-safe structure, restoring marker objects to
// native values and component payloads to live, identity-reconciled
// instances. Deserializing the same identity twice within one scope
// yields the same instance with the payloads merged; attributes absent
// from a payload are left untouched.
func (d *Deserializer) Deserialize(value any, opts DeserializeOptions) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			deserialized, err := d.Deserialize(item, opts)
			if err != nil {
				return nil, errors.Wrap(err, "Deserializer", "Deserialize",
					fmt.Sprintf("array element %d", i))
			}
			out[i] = deserialized
		}
		return out, nil
	case map[string]any:
		return d.deserializeObject(v, opts)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot deserialize value of type %T", value),
			"Deserializer", "Deserialize", "type dispatch")
	}
}

func (d *Deserializer) deserializeObject(m map[string]any, opts DeserializeOptions) (any, error) {
	if raw, ok := m[MarkerDate]; ok {
		source, ok := raw.(string)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Deserializer", "Deserialize",
				fmt.Sprintf("%s marker must be a string, got %T", MarkerDate, raw))
		}
		t, err := time.Parse(time.RFC3339Nano, source)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Deserializer", "Deserialize", "date parsing")
		}
		return t, nil
	}
	if raw, ok := m[MarkerRegExp]; ok {
		source, ok := raw.(string)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Deserializer", "Deserialize",
				fmt.Sprintf("%s marker must be a string, got %T", MarkerRegExp, raw))
		}
		re, err := regexp.Compile(source)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Deserializer", "Deserialize", "regexp compilation")
		}
		return re, nil
	}
	if _, ok := m[MarkerUndefined]; ok {
		return Undefined, nil
	}
	if raw, ok := m[MarkerFunction]; ok {
		source, ok := raw.(string)
		if !ok {
			return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Deserializer", "Deserialize",
				fmt.Sprintf("%s marker must be a string, got %T", MarkerFunction, raw))
		}
		return Function{Source: source}, nil
	}
	if _, ok := m[MarkerComponent]; ok {
		result, err := d.deserializeComponent(m, opts)
		if err != nil && errors.IsRecoverable(err) && opts.ErrorHandler != nil {
			if handled := opts.ErrorHandler(err); handled != nil {
				return nil, handled
			}
			return nil, nil
		}
		return result, err
	}

	out := make(map[string]any, len(m))
	for key, item := range m {
		deserialized, err := d.Deserialize(item, opts)
		if err != nil {
			return nil, errors.Wrap(err, "Deserializer", "Deserialize",
				fmt.Sprintf("object key %q", key))
		}
		out[key] = deserialized
	}
	return out, nil
}

func (d *Deserializer) deserializeComponent(m map[string]any, opts DeserializeOptions) (any, error) {
	wireName, ok := m[MarkerComponent].(string)
	if !ok || wireName == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidPayload, "Deserializer", "Deserialize",
			fmt.Sprintf("%s marker must be a non-empty string", MarkerComponent))
	}
	if opts.Components == nil {
		return nil, errors.WrapFatal(errors.ErrMissingConfig, "Deserializer", "Deserialize",
			"component provider is required for component payloads")
	}

	className := classNameOf(wireName)
	class, err := opts.Components.GetComponent(className)
	if err != nil {
		return nil, errors.WrapRecoverable(errors.ErrDanglingReference, "Deserializer", "Deserialize",
			fmt.Sprintf("component %q", className))
	}

	if isClassReference(wireName) {
		return class, nil
	}

	isNew, _ := m[MarkerNew].(bool)
	inst, identityKeys, err := d.resolveInstance(class, m, isNew, opts)
	if err != nil {
		return nil, err
	}

	if err := d.mergePayload(inst, m, identityKeys, opts); err != nil {
		return nil, err
	}

	if isNew && !class.IsEntity() {
		inst.SetNew(true)
		for _, prop := range inst.Properties(component.AttributesOnly) {
			attr := prop.(*component.Attribute)
			if !attr.IsSet() {
				if err := attr.ApplyDefault(); err != nil {
					return nil, err
				}
			}
		}
	}
	return inst, nil
}

// resolveInstance is the reconciliation step: entity payloads resolve
// through the identity manager so one identity maps to one live instance;
// non-entity payloads always materialize fresh. The returned set names the
// identifier keys consumed for resolution; those payload keys are identity
// references, not set operations, and are exempt from the attribute filter
// when the payload is merged.
func (d *Deserializer) resolveInstance(class *component.Component, m map[string]any, isNew bool, opts DeserializeOptions) (*component.Component, map[string]bool, error) {
	manager, managed := opts.Components.ManagerFor(class.Name())
	if !managed || !class.IsEntity() {
		inst, err := class.Instantiate()
		if err != nil {
			return nil, nil, err
		}
		return inst, nil, nil
	}

	identifiers := make(map[string]any)
	identityKeys := make(map[string]bool)
	for _, attr := range class.IdentifierAttributes() {
		raw, present := m[attr.Name()]
		if !present {
			continue
		}
		value, err := d.Deserialize(raw, opts)
		if err != nil {
			return nil, nil, errors.Wrap(err, "Deserializer", "Deserialize",
				fmt.Sprintf("identifier %q", attr.Name()))
		}
		identifiers[attr.Name()] = value
		identityKeys[attr.Name()] = true
	}

	_, existed, err := manager.GetEntity(identifiers)
	if err != nil {
		return nil, nil, err
	}
	inst, err := manager.GetOrInstantiate(identifiers, isNew)
	if err != nil {
		return nil, nil, err
	}
	if opts.EntityObserver != nil {
		opts.EntityObserver(inst, !existed)
	}
	return inst, identityKeys, nil
}

// mergePayload applies payload attributes in declaration order: each
// present attribute is set (activating it), absent attributes are left
// untouched. Unknown payload keys are schema errors; filtered attributes
// are authorization errors, except identifier keys already consumed for
// entity resolution, which carry identity rather than data.
func (d *Deserializer) mergePayload(inst *component.Component, m map[string]any, identityKeys map[string]bool, opts DeserializeOptions) error {
	consumed := make(map[string]bool)
	for key := range m {
		if isMarkerKey(key) {
			consumed[key] = true
		}
	}

	for _, prop := range inst.Properties(component.AttributesOnly) {
		attr := prop.(*component.Attribute)
		raw, present := m[attr.Name()]
		if !present {
			continue
		}
		consumed[attr.Name()] = true

		if opts.AttributeFilter != nil && !identityKeys[attr.Name()] && !opts.AttributeFilter(attr) {
			return errors.WrapInvalid(errors.ErrUnauthorized, "Deserializer", "Deserialize",
				fmt.Sprintf("operation %q on attribute %q of component %q",
					component.OperationSet, attr.Name(), inst.Name()))
		}

		value, err := d.Deserialize(raw, opts)
		if err != nil {
			return errors.Wrap(err, "Deserializer", "Deserialize",
				fmt.Sprintf("attribute %q of component %q", attr.Name(), inst.Name()))
		}
		if value == Undefined {
			value = nil
		}
		if _, err := attr.SetValue(value); err != nil {
			return errors.Wrap(err, "Deserializer", "Deserialize",
				fmt.Sprintf("attribute %q of component %q", attr.Name(), inst.Name()))
		}
	}

	for key := range m {
		if !consumed[key] {
			return errors.WrapInvalid(errors.ErrUnknownProperty, "Deserializer", "Deserialize",
				fmt.Sprintf("payload key %q of component %q", key, inst.Name()))
		}
	}
	return nil
}

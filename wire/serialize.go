package wire

import (
	"fmt"
	"regexp"
	"time"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/errors"
)

// AttributeFilter decides per attribute whether its value may cross the
// boundary. Serialization filters are direction-sensitive: serializing
// toward a server typically requires the set operation to be exposed,
// toward a client the get operation.
type AttributeFilter func(attr *component.Attribute) bool

// ExposedForGet is the filter for values travelling toward a caller: only
// attributes whose get operation is exposed may leave.
func ExposedForGet(attr *component.Attribute) bool {
	return attr.Exposure().IsExposed(component.OperationGet)
}

// ExposedForSet is the filter for values travelling toward a receiver:
// only attributes whose set operation is exposed may be sent.
func ExposedForSet(attr *component.Attribute) bool {
	return attr.Exposure().IsExposed(component.OperationSet)
}

// SerializeOptions configures one serialization walk.
type SerializeOptions struct {
	// AttributeFilter gates attribute emission. Nil emits every active
	// attribute.
	AttributeFilter AttributeFilter
	// Selector restricts which attributes are walked. Nil means all.
	// The selector is consulted with the same semantics the deserializer
	// and populate logic use.
	Selector *component.Selector
	// ReturnComponentReferences serializes entity instances as reference
	// stubs (name plus identifiers) instead of full payloads. Used for
	// RPC receivers and arguments the far side already holds. Instances
	// that cannot be referenced (no set identifier, or marked new) fall
	// back to full payloads.
	ReturnComponentReferences bool
	// ComponentDependencies, when non-nil, accumulates every component
	// class the value references so the caller can serialize each
	// dependency's shape exactly once.
	ComponentDependencies *DependencySet
}

// Serializer walks values into wire-safe plain structures.
type Serializer struct{}

// NewSerializer creates a Serializer.
func NewSerializer() *Serializer {
	return &Serializer{}
}

// Serialize converts a value into a wire-safe structure: primitives pass
// through, non-JSON-native scalars become marker objects, and component
// references become payloads or stubs per the options. Inactive attributes
// are omitted entirely.
func (s *Serializer) Serialize(value any, opts SerializeOptions) (any, error) {
	return s.serialize(value, opts, make(map[*component.Component]bool))
}

func (s *Serializer) serialize(value any, opts SerializeOptions, inProgress map[*component.Component]bool) (any, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case undefinedValue:
		return map[string]any{MarkerUndefined: true}, nil
	case bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64, float32, float64:
		return v, nil
	case time.Time:
		return map[string]any{MarkerDate: v.UTC().Format(time.RFC3339Nano)}, nil
	case *regexp.Regexp:
		return map[string]any{MarkerRegExp: v.String()}, nil
	case Function:
		return map[string]any{MarkerFunction: v.Source}, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			serialized, err := s.serialize(item, opts, inProgress)
			if err != nil {
				return nil, errors.Wrap(err, "Serializer", "Serialize",
					fmt.Sprintf("array element %d", i))
			}
			out[i] = serialized
		}
		return out, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			serialized, err := s.serialize(item, opts, inProgress)
			if err != nil {
				return nil, errors.Wrap(err, "Serializer", "Serialize",
					fmt.Sprintf("object key %q", key))
			}
			out[key] = serialized
		}
		return out, nil
	case *component.Component:
		return s.serializeComponent(v, opts, inProgress)
	default:
		return nil, errors.WrapInvalid(
			fmt.Errorf("cannot serialize value of type %T", value),
			"Serializer", "Serialize", "type dispatch")
	}
}

func (s *Serializer) serializeComponent(c *component.Component, opts SerializeOptions, inProgress map[*component.Component]bool) (any, error) {
	if opts.ComponentDependencies != nil {
		opts.ComponentDependencies.Add(c.Class())
	}

	if c.IsClass() {
		return map[string]any{MarkerComponent: c.Name()}, nil
	}

	// A cycle or an explicit request for references collapses the
	// instance to a stub, provided it is referenceable: an entity with a
	// set primary identifier that the far side already knows about.
	wantStub := opts.ReturnComponentReferences || inProgress[c]
	if wantStub && s.isReferenceable(c) {
		return s.referenceStub(c, opts, inProgress)
	}
	if inProgress[c] {
		return nil, errors.WrapInvalid(
			fmt.Errorf("cyclic reference through unidentified %q instance", c.Name()),
			"Serializer", "Serialize", "cycle detection")
	}

	inProgress[c] = true
	defer delete(inProgress, c)

	payload := map[string]any{MarkerComponent: instanceName(c.Name())}
	if c.IsNew() {
		payload[MarkerNew] = true
	}

	for _, prop := range c.Properties(component.AttributesOnly) {
		attr := prop.(*component.Attribute)
		if !attr.IsSet() {
			continue
		}
		if opts.Selector != nil && !opts.Selector.Includes(attr.Name()) {
			continue
		}
		if opts.AttributeFilter != nil && !opts.AttributeFilter(attr) {
			continue
		}

		value, err := attr.Value()
		if err != nil {
			return nil, err
		}

		sub := opts
		if opts.Selector != nil {
			sub.Selector = opts.Selector.Field(attr.Name())
		}
		serialized, err := s.serialize(value, sub, inProgress)
		if err != nil {
			return nil, errors.Wrap(err, "Serializer", "Serialize",
				fmt.Sprintf("attribute %q of component %q", attr.Name(), c.Name()))
		}
		payload[attr.Name()] = serialized
	}
	return payload, nil
}

func (s *Serializer) isReferenceable(c *component.Component) bool {
	if c.IsNew() {
		return false
	}
	primary, ok := c.PrimaryIdentifierAttribute()
	return ok && primary.IsSet()
}

// referenceStub emits the minimal serialized form: component name plus
// every set identifier attribute.
func (s *Serializer) referenceStub(c *component.Component, opts SerializeOptions, inProgress map[*component.Component]bool) (any, error) {
	stub := map[string]any{MarkerComponent: instanceName(c.Name())}
	for _, prop := range c.Properties(component.AttributesOnly) {
		attr := prop.(*component.Attribute)
		if !attr.IsIdentifier() || !attr.IsSet() {
			continue
		}
		value, err := attr.Value()
		if err != nil {
			return nil, err
		}
		serialized, err := s.serialize(value, opts, inProgress)
		if err != nil {
			return nil, err
		}
		stub[attr.Name()] = serialized
	}
	return stub, nil
}

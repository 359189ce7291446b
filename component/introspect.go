package component

import (
	"context"
	"fmt"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
)

// Shape is the serializable description of a component class: its exposed
// properties and the shapes of its provided classes. Shapes are the
// payload of the reserved introspection query; a remote peer feeds them to
// Unintrospect to synthesize local proxy classes.
type Shape struct {
	Name       string          `json:"name"`
	Properties []PropertyShape `json:"properties,omitempty"`
	Provided   []Shape         `json:"provided,omitempty"`
	Consumed   []string        `json:"consumed,omitempty"`
}

// PropertyShape describes one exposed property.
type PropertyShape struct {
	Name                string        `json:"name"`
	Kind                PropertyKind  `json:"kind"`
	ValueType           string        `json:"valueType,omitempty"`
	Exposure            ExposureShape `json:"exposure"`
	PrimaryIdentifier   bool          `json:"primaryIdentifier,omitempty"`
	SecondaryIdentifier bool          `json:"secondaryIdentifier,omitempty"`
	// Validators carries validator wire sources ("minLength(5)"); they are
	// reconstituted into callables on the receiving side.
	Validators []string `json:"validators,omitempty"`
	HasDefault bool     `json:"hasDefault,omitempty"`
}

// ExposureShape is the wire form of an exposure policy: per operation,
// true (public) or a role list. Absent operations are not exposed.
type ExposureShape struct {
	Get  any `json:"get,omitempty"`
	Set  any `json:"set,omitempty"`
	Call any `json:"call,omitempty"`
}

func requirementValue(r Requirement) any {
	switch {
	case r.IsPublic():
		return true
	case len(r.Roles()) > 0:
		roles := make([]any, len(r.Roles()))
		for i, role := range r.Roles() {
			roles[i] = role
		}
		return roles
	default:
		return nil
	}
}

func requirementFromValue(value any) (Requirement, error) {
	switch v := value.(type) {
	case nil:
		return Requirement{}, nil
	case bool:
		if v {
			return Public(), nil
		}
		return Requirement{}, nil
	case string:
		return Role(v), nil
	case []any:
		roles := make([]string, 0, len(v))
		for _, item := range v {
			role, ok := item.(string)
			if !ok {
				return Requirement{}, fmt.Errorf("role must be a string, got %T", item)
			}
			roles = append(roles, role)
		}
		return Role(roles...), nil
	case []string:
		return Role(v...), nil
	default:
		return Requirement{}, fmt.Errorf("exposure requirement must be a boolean or role list, got %T", value)
	}
}

// ExposureValue converts an exposure policy to its wire form.
func ExposureValue(e Exposure) ExposureShape {
	return ExposureShape{
		Get:  requirementValue(e.Get),
		Set:  requirementValue(e.Set),
		Call: requirementValue(e.Call),
	}
}

// ExposureFromShape converts the wire form back to a policy.
func ExposureFromShape(shape ExposureShape) (Exposure, error) {
	get, err := requirementFromValue(shape.Get)
	if err != nil {
		return Exposure{}, err
	}
	set, err := requirementFromValue(shape.Set)
	if err != nil {
		return Exposure{}, err
	}
	call, err := requirementFromValue(shape.Call)
	if err != nil {
		return Exposure{}, err
	}
	return Exposure{Get: get, Set: set, Call: call}, nil
}

// Introspect produces the class's shape description. Only properties with
// at least one exposed operation are included; a remote peer has no
// business knowing about the rest. Provided classes are introspected
// recursively.
func (c *Component) Introspect() Shape {
	class := c.Class()
	shape := Shape{Name: class.Name(), Consumed: class.Consumed()}

	for _, prop := range class.Properties(nil) {
		exposure := prop.Exposure()
		if !exposure.IsExposed(OperationGet) &&
			!exposure.IsExposed(OperationSet) &&
			!exposure.IsExposed(OperationCall) {
			continue
		}

		ps := PropertyShape{
			Name:     prop.Name(),
			Kind:     prop.PropertyKind(),
			Exposure: ExposureValue(exposure),
		}
		if attr, ok := prop.(*Attribute); ok {
			ps.ValueType = attr.ValueType().Specifier()
			ps.PrimaryIdentifier = attr.IsPrimaryIdentifier()
			ps.SecondaryIdentifier = attr.IsSecondaryIdentifier()
			ps.HasDefault = attr.HasDefault()
			for _, v := range attr.ValueType().Validators {
				ps.Validators = append(ps.Validators, v.Source)
			}
		}
		shape.Properties = append(shape.Properties, ps)
	}

	for _, provided := range class.Provided() {
		shape.Provided = append(shape.Provided, provided.Introspect())
	}
	return shape
}

// RemoteCallHandler forwards a method invocation to a remote peer. It is
// installed on every method of an unintrospected proxy class.
type RemoteCallHandler func(ctx context.Context, receiver *Component, method string, args []any) (any, error)

// UnintrospectOptions configures proxy-class synthesis.
type UnintrospectOptions struct {
	// Validators reconstitutes validator wire sources. When nil a default
	// registry with the builtin validators is used.
	Validators *types.ValidatorRegistry
	// CallHandler backs the synthesized method stubs. Required if the
	// shape declares any method.
	CallHandler RemoteCallHandler
}

// Unintrospect synthesizes a local class from a shape description: the
// inverse of Introspect. Attribute declarations are reproduced with their
// value types, identifier flags, and reconstituted validators; methods
// become forwarding stubs through the call handler. Provided shapes are
// synthesized recursively and attached with Provide.
func Unintrospect(shape Shape, opts UnintrospectOptions) (*Component, error) {
	validators := opts.Validators
	if validators == nil {
		validators = types.NewValidatorRegistry()
	}

	class, err := NewClass(shape.Name)
	if err != nil {
		return nil, errors.Wrap(err, "Component", "Unintrospect", "class creation")
	}
	class.Consume(shape.Consumed...)

	for _, ps := range shape.Properties {
		exposure, err := ExposureFromShape(ps.Exposure)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Component", "Unintrospect",
				fmt.Sprintf("exposure of property %q", ps.Name))
		}

		switch ps.Kind {
		case KindAttribute:
			var vs []types.Validator
			for _, source := range ps.Validators {
				v, err := validators.Reconstitute(source)
				if err != nil {
					return nil, errors.Wrap(err, "Component", "Unintrospect",
						fmt.Sprintf("validator of attribute %q", ps.Name))
				}
				vs = append(vs, v)
			}
			err = class.DeclareAttribute(ps.Name, AttributeOptions{
				Type:                ps.ValueType,
				Exposure:            exposure,
				Validators:          vs,
				PrimaryIdentifier:   ps.PrimaryIdentifier,
				SecondaryIdentifier: ps.SecondaryIdentifier,
			})
		case KindMethod:
			if opts.CallHandler == nil {
				return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Component", "Unintrospect",
					fmt.Sprintf("method %q requires a call handler", ps.Name))
			}
			methodName := ps.Name
			handler := opts.CallHandler
			err = class.DeclareMethod(methodName, MethodOptions{
				Exposure: exposure,
				Impl: func(ctx context.Context, receiver *Component, args []any) (any, error) {
					return handler(ctx, receiver, methodName, args)
				},
			})
		default:
			err = errors.WrapInvalid(errors.ErrPropertyKind, "Component", "Unintrospect",
				fmt.Sprintf("property %q has unknown kind %q", ps.Name, ps.Kind))
		}
		if err != nil {
			return nil, err
		}
	}

	for _, providedShape := range shape.Provided {
		provided, err := Unintrospect(providedShape, opts)
		if err != nil {
			return nil, err
		}
		if err := class.Provide(provided); err != nil {
			return nil, err
		}
	}
	return class, nil
}

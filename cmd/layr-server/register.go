package main

import (
	"context"
	"fmt"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/componentregistry"
)

// RegisterFunc wires an application's component tree into a registry and
// returns the root component the engine serves.
type RegisterFunc func(*componentregistry.Registry) (*component.Component, error)

// registerApplication is the built-in application served when no other
// register function is compiled in. It exposes a ping method and a Counter
// entity so a fresh deployment has something to query.
func registerApplication(registry *componentregistry.Registry) (*component.Component, error) {
	public := component.Exposure{
		Get:  component.Public(),
		Set:  component.Public(),
		Call: component.Public(),
	}

	counter, err := component.NewClass("Counter")
	if err != nil {
		return nil, err
	}
	if err := counter.DeclareAttribute("id", component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          public,
	}); err != nil {
		return nil, err
	}
	if err := counter.DeclareAttribute("value", component.AttributeOptions{
		Type:     "number?",
		Default:  func() any { return float64(0) },
		Exposure: public,
	}); err != nil {
		return nil, err
	}
	if err := counter.DeclareMethod("increment", component.MethodOptions{
		Exposure: component.Exposure{Call: component.Public()},
		Impl: func(_ context.Context, receiver *component.Component, _ []any) (any, error) {
			attr, err := receiver.GetAttribute("value")
			if err != nil {
				return nil, err
			}
			var current float64
			if attr.IsSet() {
				raw, err := attr.Value()
				if err != nil {
					return nil, err
				}
				current, _ = raw.(float64)
			}
			if _, err := attr.SetValue(current + 1); err != nil {
				return nil, err
			}
			return current + 1, nil
		},
	}); err != nil {
		return nil, err
	}

	app, err := component.NewClass("Application")
	if err != nil {
		return nil, err
	}
	if err := app.DeclareMethod("ping", component.MethodOptions{
		Exposure: component.Exposure{Call: component.Public()},
		Impl: func(_ context.Context, _ *component.Component, _ []any) (any, error) {
			return "pong", nil
		},
	}); err != nil {
		return nil, err
	}
	if err := app.Provide(counter); err != nil {
		return nil, err
	}

	for _, class := range []*component.Component{app, counter} {
		if err := registry.Register(class); err != nil {
			return nil, fmt.Errorf("register %s: %w", class.Name(), err)
		}
	}

	return app, nil
}

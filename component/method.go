package component

import (
	"context"
	"fmt"

	"github.com/layrjs/layr-sub008/errors"
)

// MethodFunc is a method implementation. The receiver is the component the
// method was invoked on: the class for class-side methods, an instance
// otherwise. Implementations may block; the engine awaits them through the
// context.
type MethodFunc func(ctx context.Context, receiver *Component, args []any) (any, error)

// MethodOptions configures a method declaration.
type MethodOptions struct {
	// Exposure is the call policy. The zero value exposes nothing.
	Exposure Exposure
	// Impl is the local implementation. Remote proxy classes leave this
	// nil and carry a forwarding stub instead; see Unintrospect.
	Impl MethodFunc
}

// Method is an invocable property.
type Method struct {
	name     string
	owner    *Component
	exposure Exposure
	impl     MethodFunc
}

// Name returns the method name.
func (m *Method) Name() string { return m.name }

// PropertyKind returns KindMethod.
func (m *Method) PropertyKind() PropertyKind { return KindMethod }

// Exposure returns the method's call policy.
func (m *Method) Exposure() Exposure { return m.exposure }

// Owner returns the component the method is attached to.
func (m *Method) Owner() *Component { return m.owner }

// Call invokes the implementation against a receiver. Exposure is not
// checked here; authorization happens at the protocol boundary, local
// calls are trusted.
func (m *Method) Call(ctx context.Context, receiver *Component, args []any) (any, error) {
	if m.impl == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("method %q of component %q has no implementation", m.name, m.owner.Name()),
			"Method", "Call", "implementation lookup")
	}
	return m.impl(ctx, receiver, args)
}

func (m *Method) clone(owner *Component) *Method {
	return &Method{
		name:     m.name,
		owner:    owner,
		exposure: m.exposure,
		impl:     m.impl,
	}
}

package component

// PropertyKind distinguishes attributes from methods. Redeclaring a
// property under a different kind is a schema error.
type PropertyKind string

// Property kinds
const (
	KindAttribute PropertyKind = "attribute"
	KindMethod    PropertyKind = "method"
)

// Property is the common supertype of attribute and method descriptors. A
// property is exclusively owned by the component that declares it; it is
// never shared between components.
type Property interface {
	// Name returns the property name, unique within its owning component.
	Name() string
	// PropertyKind returns whether the property is an attribute or a method.
	PropertyKind() PropertyKind
	// Exposure returns the per-operation authorization policy.
	Exposure() Exposure
	// Owner returns the component the property is attached to.
	Owner() *Component
}

// PropertyFilter selects properties during iteration. A nil filter selects
// everything.
type PropertyFilter func(Property) bool

// AttributesOnly is a PropertyFilter keeping attribute properties.
func AttributesOnly(p Property) bool {
	return p.PropertyKind() == KindAttribute
}

// MethodsOnly is a PropertyFilter keeping method properties.
func MethodsOnly(p Property) bool {
	return p.PropertyKind() == KindMethod
}

package component

import (
	"fmt"
	"slices"

	"github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
)

// IdentityObserver receives identifier-attribute transitions on an
// instance. The identity layer installs one per managed instance so the
// identity index stays consistent with attribute state; returning an error
// (identity conflict) rolls the attribute change back.
type IdentityObserver func(instance *Component, attr *Attribute, change ValueChange) error

// Component is a named node in the cross-boundary graph: either a class
// (one per process and fork) or an instance derived from a class. A class
// and its instances share one name and are distinguished by the
// class/instance flag.
type Component struct {
	name  string
	class *Component // instances: the class they derive from
	parent *Component // classes: fork/superclass parent

	properties map[string]Property
	order      []string

	provided      map[string]*Component
	providedOrder []string
	consumed      []string

	isNew            bool
	version          uint64
	identityObserver IdentityObserver
}

// Version returns the instance's mutation counter. It advances on every
// attribute activation change, so callers can detect side-effect mutations
// by comparing snapshots.
func (c *Component) Version() uint64 { return c.version }

func (c *Component) bumpVersion() { c.version++ }

// NewClass creates a component class. Class names start with an upper-case
// letter; the name is the component's wire identity.
func NewClass(name string) (*Component, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	return &Component{
		name:       name,
		properties: make(map[string]Property),
		provided:   make(map[string]*Component),
	}, nil
}

// MustClass is NewClass for statically-known names; it panics on error.
func MustClass(name string) *Component {
	c, err := NewClass(name)
	if err != nil {
		panic(err)
	}
	return c
}

// Name returns the component name.
func (c *Component) Name() string { return c.name }

// IsClass reports whether the component is a class.
func (c *Component) IsClass() bool { return c.class == nil }

// IsInstance reports whether the component is an instance.
func (c *Component) IsInstance() bool { return c.class != nil }

// Class returns the class an instance derives from; classes return
// themselves.
func (c *Component) Class() *Component {
	if c.class != nil {
		return c.class
	}
	return c
}

// Parent returns the fork/superclass parent of a class, nil at the root.
func (c *Component) Parent() *Component { return c.parent }

// IsDescendantOf reports whether the class is the given class or a fork
// descendant of it.
func (c *Component) IsDescendantOf(ancestor *Component) bool {
	for cur := c.Class(); cur != nil; cur = cur.parent {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Fork creates a layered child class: it shares the name, inherits every
// declaration through the parent chain, and shadows only what it itself
// declares. Two forks with the same name are distinct identities; nothing
// in the system conflates them by name alone.
func (c *Component) Fork() *Component {
	if c.IsInstance() {
		// Instances fork through their class; see entity.Manager.
		return c
	}
	return &Component{
		name:       c.name,
		parent:     c,
		properties: make(map[string]Property),
		provided:   make(map[string]*Component),
	}
}

// IsNew reports whether an instance has not yet been persisted. Serialized
// payloads carry this as the __new marker.
func (c *Component) IsNew() bool { return c.isNew }

// SetNew flips the not-yet-persisted marker.
func (c *Component) SetNew(isNew bool) { c.isNew = isNew }

// SetIdentityObserver installs the identity layer's hook on an instance.
func (c *Component) SetIdentityObserver(observer IdentityObserver) {
	c.identityObserver = observer
}

// InstantiateOption configures Instantiate.
type InstantiateOption func(*instantiateConfig)

type instantiateConfig struct {
	markNew bool
}

// AsNew marks the instance as not yet persisted and applies declared
// attribute defaults (generated primary identifiers included).
func AsNew() InstantiateOption {
	return func(cfg *instantiateConfig) { cfg.markNew = true }
}

// Instantiate creates an instance of a class. Every effective attribute
// declaration (own and inherited, shadowed by name) is cloned into the
// instance in inactive state; methods are shared with the class. Without
// AsNew, no attribute is activated: reconciled instances never invent
// values.
func (c *Component) Instantiate(opts ...InstantiateOption) (*Component, error) {
	if c.IsInstance() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("component %q is an instance", c.name),
			"Component", "Instantiate", "class check")
	}

	var cfg instantiateConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	instance := &Component{
		name:       c.name,
		class:      c,
		properties: make(map[string]Property),
		provided:   make(map[string]*Component),
		isNew:      cfg.markNew,
	}
	for _, prop := range c.Properties(nil) {
		switch p := prop.(type) {
		case *Attribute:
			instance.addProperty(p.clone(instance))
		case *Method:
			instance.addProperty(p.clone(instance))
		}
	}

	if cfg.markNew {
		for _, prop := range instance.Properties(AttributesOnly) {
			if err := prop.(*Attribute).ApplyDefault(); err != nil {
				return nil, errors.Wrap(err, "Component", "Instantiate",
					fmt.Sprintf("default for attribute %q", prop.Name()))
			}
		}
	}
	return instance, nil
}

// DeclareAttribute declares (or, on a fork, shadows) an attribute.
// Redeclaring an existing method name as an attribute is rejected. A class
// may carry at most one primary identifier attribute across its whole
// parent chain, and identifier attributes must be string or number typed.
func (c *Component) DeclareAttribute(name string, opts AttributeOptions) error {
	if err := c.checkRedeclaration(name, KindAttribute); err != nil {
		return err
	}
	valueType, err := types.Parse(opts.Type)
	if err != nil {
		return errors.Wrap(err, "Component", "DeclareAttribute",
			fmt.Sprintf("attribute %q", name))
	}
	valueType.Validators = opts.Validators

	if opts.PrimaryIdentifier {
		if opts.SecondaryIdentifier {
			return errors.WrapInvalid(
				fmt.Errorf("attribute %q cannot be both primary and secondary identifier", name),
				"Component", "DeclareAttribute", "identifier declaration")
		}
		if existing, ok := c.PrimaryIdentifierAttribute(); ok && existing.Name() != name {
			return errors.WrapInvalid(errors.ErrDuplicateIdentifier, "Component", "DeclareAttribute",
				fmt.Sprintf("class %q already declares primary identifier %q", c.name, existing.Name()))
		}
	}
	if opts.PrimaryIdentifier || opts.SecondaryIdentifier {
		if valueType.Kind != types.KindString && valueType.Kind != types.KindNumber {
			return errors.WrapInvalid(errors.ErrIdentifierValueType, "Component", "DeclareAttribute",
				fmt.Sprintf("attribute %q has type %s", name, valueType.Specifier()))
		}
	}

	c.addProperty(&Attribute{
		name:                name,
		owner:               c,
		valueType:           valueType,
		exposure:            opts.Exposure,
		defaultFn:           opts.Default,
		primaryIdentifier:   opts.PrimaryIdentifier,
		secondaryIdentifier: opts.SecondaryIdentifier,
	})
	return nil
}

// DeclareMethod declares (or shadows) a method. Redeclaring an existing
// attribute name as a method is rejected.
func (c *Component) DeclareMethod(name string, opts MethodOptions) error {
	if err := c.checkRedeclaration(name, KindMethod); err != nil {
		return err
	}
	c.addProperty(&Method{
		name:     name,
		owner:    c,
		exposure: opts.Exposure,
		impl:     opts.Impl,
	})
	return nil
}

func (c *Component) checkRedeclaration(name string, kind PropertyKind) error {
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("property name cannot be empty"),
			"Component", "DeclareProperty", "name validation")
	}
	existing, err := c.GetProperty(name)
	if err != nil {
		return nil
	}
	if existing.PropertyKind() != kind {
		return errors.WrapInvalid(errors.ErrPropertyKind, "Component", "DeclareProperty",
			fmt.Sprintf("property %q is declared as %s, cannot redeclare as %s",
				name, existing.PropertyKind(), kind))
	}
	return nil
}

func (c *Component) addProperty(p Property) {
	if _, shadowed := c.properties[p.Name()]; !shadowed {
		c.order = append(c.order, p.Name())
	}
	c.properties[p.Name()] = p
}

// GetProperty resolves a property by name, walking the parent chain so
// fork-local declarations shadow inherited ones.
func (c *Component) GetProperty(name string) (Property, error) {
	for cur := c; cur != nil; cur = cur.parent {
		if p, ok := cur.properties[name]; ok {
			return p, nil
		}
	}
	return nil, errors.WrapInvalid(errors.ErrUnknownProperty, "Component", "GetProperty",
		fmt.Sprintf("property %q of component %q", name, c.name))
}

// HasProperty reports whether the property exists.
func (c *Component) HasProperty(name string) bool {
	_, err := c.GetProperty(name)
	return err == nil
}

// GetAttribute resolves an attribute by name; a method under that name is
// a kind error.
func (c *Component) GetAttribute(name string) (*Attribute, error) {
	p, err := c.GetProperty(name)
	if err != nil {
		return nil, err
	}
	attr, ok := p.(*Attribute)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrPropertyKind, "Component", "GetAttribute",
			fmt.Sprintf("property %q of component %q is a %s", name, c.name, p.PropertyKind()))
	}
	return attr, nil
}

// GetMethod resolves a method by name; an attribute under that name is a
// kind error.
func (c *Component) GetMethod(name string) (*Method, error) {
	p, err := c.GetProperty(name)
	if err != nil {
		return nil, err
	}
	m, ok := p.(*Method)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrPropertyKind, "Component", "GetMethod",
			fmt.Sprintf("property %q of component %q is a %s", name, c.name, p.PropertyKind()))
	}
	return m, nil
}

// Properties returns the effective properties in declaration order:
// ancestor declarations first, each shadowed by the nearest descendant
// redeclaration. A nil filter selects everything. The slice is freshly
// built per call; callers may range repeatedly.
func (c *Component) Properties(filter PropertyFilter) []Property {
	var chain []*Component
	for cur := c; cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)

	var order []string
	seen := make(map[string]bool)
	for _, layer := range chain {
		for _, name := range layer.order {
			if !seen[name] {
				seen[name] = true
				order = append(order, name)
			}
		}
	}

	props := make([]Property, 0, len(order))
	for _, name := range order {
		p, err := c.GetProperty(name)
		if err != nil {
			continue
		}
		if filter == nil || filter(p) {
			props = append(props, p)
		}
	}
	return props
}

// PrimaryIdentifierAttribute returns the primary identifier declaration,
// if the class (or its chain) has one.
func (c *Component) PrimaryIdentifierAttribute() (*Attribute, bool) {
	for _, prop := range c.Properties(AttributesOnly) {
		if attr := prop.(*Attribute); attr.IsPrimaryIdentifier() {
			return attr, true
		}
	}
	return nil, false
}

// IdentifierAttributes returns every identifier attribute in declaration
// order. Lookup tie-breaks follow this order: first declared wins.
func (c *Component) IdentifierAttributes() []*Attribute {
	var attrs []*Attribute
	for _, prop := range c.Properties(AttributesOnly) {
		if attr := prop.(*Attribute); attr.IsIdentifier() {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// IsEntity reports whether the component carries identity: a declared
// primary identifier attribute.
func (c *Component) IsEntity() bool {
	_, ok := c.PrimaryIdentifierAttribute()
	return ok
}

// Provide registers a nested component class under this one. Provided
// classes travel with introspection so a remote peer can synthesize the
// whole family from one bootstrap query.
func (c *Component) Provide(child *Component) error {
	if child == nil || !child.IsClass() {
		return errors.WrapInvalid(
			fmt.Errorf("provided component must be a class"),
			"Component", "Provide", "class check")
	}
	if existing, ok := c.provided[child.Name()]; ok && existing != child {
		return errors.WrapInvalid(errors.ErrComponentExists, "Component", "Provide",
			fmt.Sprintf("component %q already provides %q", c.name, child.Name()))
	}
	if _, ok := c.provided[child.Name()]; !ok {
		c.providedOrder = append(c.providedOrder, child.Name())
	}
	c.provided[child.Name()] = child
	return nil
}

// Provided returns the provided classes in registration order, walking the
// parent chain.
func (c *Component) Provided() []*Component {
	var chain []*Component
	for cur := c.Class(); cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)

	var out []*Component
	seen := make(map[string]bool)
	for _, layer := range chain {
		for _, name := range layer.providedOrder {
			if !seen[name] {
				seen[name] = true
				out = append(out, layer.provided[name])
			}
		}
	}
	return out
}

// GetProvided resolves a provided class by name.
func (c *Component) GetProvided(name string) (*Component, bool) {
	for cur := c.Class(); cur != nil; cur = cur.parent {
		if child, ok := cur.provided[name]; ok {
			return child, true
		}
	}
	return nil, false
}

// Consume records a named cross-cutting dependency resolved by the
// enclosing registry at runtime. This is how a class refers to another
// class without a static import.
func (c *Component) Consume(names ...string) {
	for _, name := range names {
		if !slices.Contains(c.consumed, name) {
			c.consumed = append(c.consumed, name)
		}
	}
}

// Consumed returns the declared consumed component names.
func (c *Component) Consumed() []string {
	var chain []*Component
	for cur := c.Class(); cur != nil; cur = cur.parent {
		chain = append(chain, cur)
	}
	slices.Reverse(chain)

	var out []string
	for _, layer := range chain {
		for _, name := range layer.consumed {
			if !slices.Contains(out, name) {
				out = append(out, name)
			}
		}
	}
	return out
}

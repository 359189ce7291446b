package entity

import (
	"fmt"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/errors"
)

// entry is one identifier index slot. A deleted entry is a tombstone
// shadowing an inherited slot from a parent layer.
type entry struct {
	instance *component.Component
	deleted  bool
}

// Manager is the identity map for one entity class. Lookups see the own
// layer first and delegate to the parent layer; writes always land in the
// own layer. See Fork.
type Manager struct {
	class  *component.Component
	parent *Manager

	// own maps identifier attribute name -> normalized value -> entry.
	own      map[string]map[any]entry
	detached map[*component.Component]bool
}

// NewManager creates the root identity map for an entity class.
func NewManager(class *component.Component) (*Manager, error) {
	if class == nil || !class.IsClass() {
		return nil, errors.WrapInvalid(
			fmt.Errorf("manager requires a component class"),
			"Manager", "NewManager", "class check")
	}
	if !class.IsEntity() {
		return nil, errors.WrapInvalid(errors.ErrUnknownIdentityClass, "Manager", "NewManager",
			fmt.Sprintf("class %q declares no primary identifier", class.Name()))
	}
	return &Manager{
		class:    class,
		own:      make(map[string]map[any]entry),
		detached: make(map[*component.Component]bool),
	}, nil
}

// Class returns the entity class this manager indexes.
func (m *Manager) Class() *component.Component { return m.class }

// Parent returns the layer this manager delegates to, nil at the root.
func (m *Manager) Parent() *Manager { return m.parent }

// Fork creates a layered child manager over a fork of the entity class.
// The child inherits every entry it has not written itself; its own writes
// shadow the parent and stay invisible to it. Each independent session or
// request takes its own fork.
func (m *Manager) Fork() *Manager {
	return &Manager{
		class:    m.class.Fork(),
		parent:   m,
		own:      make(map[string]map[any]entry),
		detached: make(map[*component.Component]bool),
	}
}

// identifierKey normalizes an identifier value for index keying. Numeric
// identifiers collapse to float64 so a JSON-decoded 7 and a native int 7
// land on the same slot.
func identifierKey(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	default:
		return nil, errors.WrapInvalid(errors.ErrIdentifierValueType, "Manager", "identifierKey",
			fmt.Sprintf("identifier value of type %T", value))
	}
}

// lookup finds an identifier slot through the layer chain. It returns the
// instance, the layer owning the entry, and whether a live entry was
// found. Tombstones terminate the walk as a miss.
func (m *Manager) lookup(attrName string, key any) (*component.Component, *Manager, bool) {
	for layer := m; layer != nil; layer = layer.parent {
		if e, ok := layer.own[attrName][key]; ok {
			if e.deleted {
				return nil, nil, false
			}
			return e.instance, layer, true
		}
	}
	return nil, nil, false
}

func (m *Manager) write(attrName string, key any, e entry) {
	index, ok := m.own[attrName]
	if !ok {
		index = make(map[any]entry)
		m.own[attrName] = index
	}
	index[key] = e
}

// remove drops an instance's slot: own entries are deleted outright,
// inherited entries are shadowed with a tombstone.
func (m *Manager) remove(attrName string, key any, inst *component.Component) {
	existing, owner, ok := m.lookup(attrName, key)
	if !ok || existing != inst {
		return
	}
	if owner == m {
		delete(m.own[attrName], key)
		return
	}
	m.write(attrName, key, entry{deleted: true})
}

// GetEntity resolves identifiers to the single live instance carrying that
// identity. Identifier attributes are consulted in declaration order; the
// first supplied attribute with an index hit wins. An entity found through
// an inherited entry is forked against this manager's class and
// re-registered as an own entry before being returned, so mutations made
// through a fork never leak into the parent scope.
func (m *Manager) GetEntity(identifiers map[string]any) (*component.Component, bool, error) {
	for _, attr := range m.class.IdentifierAttributes() {
		value, present := identifiers[attr.Name()]
		if !present {
			continue
		}
		key, err := identifierKey(value)
		if err != nil {
			return nil, false, err
		}
		found, owner, ok := m.lookup(attr.Name(), key)
		if !ok {
			continue
		}
		if owner == m {
			return found, true, nil
		}
		forked, err := m.forkEntity(found)
		if err != nil {
			return nil, false, err
		}
		return forked, true, nil
	}
	return nil, false, nil
}

// forkEntity clones an inherited instance into this layer: a fresh
// instance of the forked class carrying the same active attribute values,
// registered as an own entry for every set identifier.
func (m *Manager) forkEntity(inst *component.Component) (*component.Component, error) {
	forked, err := m.class.Instantiate()
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "forkEntity", "instantiation")
	}
	for _, prop := range inst.Properties(component.AttributesOnly) {
		attr := prop.(*component.Attribute)
		if !attr.IsSet() {
			continue
		}
		value, err := attr.Value()
		if err != nil {
			return nil, err
		}
		target, err := forked.GetAttribute(attr.Name())
		if err != nil {
			return nil, err
		}
		if _, err := target.SetValue(value); err != nil {
			return nil, errors.Wrap(err, "Manager", "forkEntity",
				fmt.Sprintf("copying attribute %q", attr.Name()))
		}
	}
	forked.SetNew(inst.IsNew())

	if err := m.register(forked, true); err != nil {
		return nil, err
	}
	m.attach(forked)
	return forked, nil
}

// AddEntity registers an instance under every set identifier attribute.
// Claiming a slot already visible for a different instance is an identity
// conflict: the single source of truth preventing two co-existing objects
// from representing one identity within a scope. Registration is atomic;
// on conflict no slot is written.
func (m *Manager) AddEntity(inst *component.Component) error {
	if inst == nil || !inst.IsInstance() {
		return errors.WrapInvalid(
			fmt.Errorf("manager accepts component instances only"),
			"Manager", "AddEntity", "instance check")
	}
	if !inst.IsDescendantOf(m.class) && !m.class.IsDescendantOf(inst.Class()) {
		return errors.WrapInvalid(
			fmt.Errorf("instance of %q does not belong to this manager's class lineage", inst.Name()),
			"Manager", "AddEntity", "class check")
	}
	if err := m.register(inst, false); err != nil {
		return err
	}
	delete(m.detached, inst)
	m.attach(inst)
	return nil
}

func (m *Manager) register(inst *component.Component, allowInheritedShadow bool) error {
	type slot struct {
		attrName string
		key      any
	}
	var slots []slot

	for _, attr := range m.identifierAttributesOf(inst) {
		if !attr.IsSet() {
			continue
		}
		value, err := attr.Value()
		if err != nil {
			return err
		}
		key, err := identifierKey(value)
		if err != nil {
			return err
		}
		existing, owner, ok := m.lookup(attr.Name(), key)
		if ok && existing != inst {
			if !(allowInheritedShadow && owner != m) {
				return errors.WrapInvalid(errors.ErrIdentityConflict, "Manager", "AddEntity",
					fmt.Sprintf("identifier %q=%v of component %q", attr.Name(), value, inst.Name()))
			}
		}
		slots = append(slots, slot{attr.Name(), key})
	}

	for _, s := range slots {
		m.write(s.attrName, s.key, entry{instance: inst})
	}
	return nil
}

// identifierAttributesOf returns the instance-side identifier attributes
// in declaration order.
func (m *Manager) identifierAttributesOf(inst *component.Component) []*component.Attribute {
	var attrs []*component.Attribute
	for _, prop := range inst.Properties(component.AttributesOnly) {
		if attr := prop.(*component.Attribute); attr.IsIdentifier() {
			attrs = append(attrs, attr)
		}
	}
	return attrs
}

// attach installs the identity observer so identifier mutations keep the
// index consistent.
func (m *Manager) attach(inst *component.Component) {
	inst.SetIdentityObserver(m.updateEntity)
}

// updateEntity reacts to one identifier attribute transition: the old slot
// is released and the new value claims its slot, atomically. A no-op for
// unchanged values and for detached entities. Claiming a slot held by a
// different instance is an identity conflict; the attribute layer rolls
// the value change back when this errors.
func (m *Manager) updateEntity(inst *component.Component, attr *component.Attribute, change component.ValueChange) error {
	if m.detached[inst] || !attr.IsIdentifier() {
		return nil
	}

	var oldKey, newKey any
	var err error
	if change.PreviousSet {
		if oldKey, err = identifierKey(change.PreviousValue); err != nil {
			return err
		}
	}
	if change.NewSet {
		if newKey, err = identifierKey(change.NewValue); err != nil {
			return err
		}
	}
	if change.PreviousSet && change.NewSet && oldKey == newKey {
		return nil
	}

	if change.NewSet {
		existing, _, ok := m.lookup(attr.Name(), newKey)
		if ok && existing != inst {
			return errors.WrapInvalid(errors.ErrIdentityConflict, "Manager", "UpdateEntity",
				fmt.Sprintf("identifier %q=%v of component %q", attr.Name(), change.NewValue, inst.Name()))
		}
	}

	if change.PreviousSet {
		m.remove(attr.Name(), oldKey, inst)
	}
	if change.NewSet {
		m.write(attr.Name(), newKey, entry{instance: inst})
	}
	return nil
}

// RemoveEntity detaches an instance: every identifier slot it holds is
// released (inherited slots are tombstoned) and further identifier
// mutations on the instance no longer touch the index. Used when an entity
// is explicitly released, e.g. after a delete operation.
func (m *Manager) RemoveEntity(inst *component.Component) error {
	if inst == nil || !inst.IsInstance() {
		return errors.WrapInvalid(
			fmt.Errorf("manager accepts component instances only"),
			"Manager", "RemoveEntity", "instance check")
	}
	for _, attr := range m.identifierAttributesOf(inst) {
		if !attr.IsSet() {
			continue
		}
		value, err := attr.Value()
		if err != nil {
			return err
		}
		key, err := identifierKey(value)
		if err != nil {
			return err
		}
		m.remove(attr.Name(), key, inst)
	}
	m.detached[inst] = true
	inst.SetIdentityObserver(nil)
	return nil
}

// IsDetached reports whether the instance was released from the manager.
func (m *Manager) IsDetached(inst *component.Component) bool {
	return m.detached[inst]
}

// GetOrInstantiate is the deserializer's reconciliation path: resolve the
// identifiers to the live instance, or create, register, and return a new
// one. Supplied identifier values are applied in declaration order; when
// markNew is set, remaining attribute defaults (generated primary
// identifiers included) are applied afterwards so a payload-supplied
// identifier always wins over a generated one.
func (m *Manager) GetOrInstantiate(identifiers map[string]any, markNew bool) (*component.Component, error) {
	found, ok, err := m.GetEntity(identifiers)
	if err != nil {
		return nil, err
	}
	if ok {
		return found, nil
	}

	inst, err := m.class.Instantiate()
	if err != nil {
		return nil, errors.Wrap(err, "Manager", "GetOrInstantiate", "instantiation")
	}
	m.attach(inst)

	for _, attr := range m.identifierAttributesOf(inst) {
		value, present := identifiers[attr.Name()]
		if !present {
			continue
		}
		if _, err := attr.SetValue(value); err != nil {
			return nil, errors.Wrap(err, "Manager", "GetOrInstantiate",
				fmt.Sprintf("identifier %q", attr.Name()))
		}
	}

	if markNew {
		inst.SetNew(true)
		for _, prop := range inst.Properties(component.AttributesOnly) {
			attr := prop.(*component.Attribute)
			if !attr.IsSet() {
				if err := attr.ApplyDefault(); err != nil {
					return nil, errors.Wrap(err, "Manager", "GetOrInstantiate",
						fmt.Sprintf("default for attribute %q", attr.Name()))
				}
			}
		}
	}

	if primary, hasPrimary := inst.PrimaryIdentifierAttribute(); !hasPrimary || !primary.IsSet() {
		return nil, errors.WrapInvalid(errors.ErrMissingIdentifier, "Manager", "GetOrInstantiate",
			fmt.Sprintf("component %q", m.class.Name()))
	}
	return inst, nil
}

// OwnEntities returns the distinct live instances registered in this
// manager's own layer, in no particular order. A forked manager's own
// layer is exactly the set of entities touched through the fork, which the
// query engine uses to report side-effect mutations.
func (m *Manager) OwnEntities() []*component.Component {
	seen := make(map[*component.Component]bool)
	var out []*component.Component
	for _, index := range m.own {
		for _, e := range index {
			if e.deleted || e.instance == nil || seen[e.instance] {
				continue
			}
			seen[e.instance] = true
			out = append(out, e.instance)
		}
	}
	return out
}

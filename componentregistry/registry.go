// Package componentregistry holds the set of component classes an
// application declares and the identity managers backing its entity
// classes. A registry is the unit a query engine serves: it resolves wire
// names for the serializer and deserializer, and forks into isolated
// per-request views.
package componentregistry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/entity"
	"github.com/layrjs/layr-sub008/errors"
)

// Registry manages component classes and entity identity managers. It
// provides thread-safe registration and lookup by declared class name.
type Registry struct {
	classes  map[string]*component.Component
	managers map[string]*entity.Manager
	order    []string
	mu       sync.RWMutex
}

// NewRegistry creates a new empty component registry.
func NewRegistry() *Registry {
	return &Registry{
		classes:  make(map[string]*component.Component),
		managers: make(map[string]*entity.Manager),
	}
}

// Register adds a component class to the registry. Entity classes get an
// identity manager alongside. Returns an error for instances, duplicate
// names, or nil classes.
func (r *Registry) Register(class *component.Component) error {
	if class == nil {
		return errors.WrapFatal(
			fmt.Errorf("class cannot be nil"),
			"Registry", "Register", "class validation")
	}
	if class.IsInstance() {
		return errors.WrapInvalid(
			fmt.Errorf("cannot register instance of %q", class.Name()),
			"Registry", "Register", "class validation")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	name := class.Name()
	if _, exists := r.classes[name]; exists {
		return errors.WrapInvalid(errors.ErrComponentExists, "Registry", "Register",
			fmt.Sprintf("component %q", name))
	}

	if class.IsEntity() {
		manager, err := entity.NewManager(class)
		if err != nil {
			return errors.Wrap(err, "Registry", "Register",
				fmt.Sprintf("identity manager for %q", name))
		}
		r.managers[name] = manager
	}

	r.classes[name] = class
	r.order = append(r.order, name)
	return nil
}

// MustRegister registers a class and panics on error. For declaration-time
// wiring where a failure is a programming error.
func (r *Registry) MustRegister(class *component.Component) {
	if err := r.Register(class); err != nil {
		panic(err)
	}
}

// GetComponent resolves a class by declared name.
func (r *Registry) GetComponent(name string) (*component.Component, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	class, ok := r.classes[name]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrUnknownComponent, "Registry", "GetComponent",
			fmt.Sprintf("component %q", name))
	}
	return class, nil
}

// HasComponent reports whether a class name is registered.
func (r *Registry) HasComponent(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.classes[name]
	return ok
}

// ManagerFor returns the identity manager for an entity class name.
// Returns false for unregistered names and non-entity classes.
func (r *Registry) ManagerFor(name string) (*entity.Manager, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	manager, ok := r.managers[name]
	return manager, ok
}

// Names returns all registered class names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.classes))
	for name := range r.classes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Components returns the registered classes in registration order.
func (r *Registry) Components() []*component.Component {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*component.Component, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.classes[name])
	}
	return out
}

// EntityManagers returns the identity managers keyed by entity class
// name. The query engine walks them to find instances mutated while
// serving a request.
func (r *Registry) EntityManagers() map[string]*entity.Manager {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]*entity.Manager, len(r.managers))
	for name, manager := range r.managers {
		out[name] = manager
	}
	return out
}

// Fork creates an isolated request-scoped view of the registry. Every
// entity manager is forked (which forks its class), so attribute writes
// and identity-map changes made while serving one request never leak into
// the shared registry or into concurrent requests. Non-entity classes are
// forked directly.
func (r *Registry) Fork() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	fork := &Registry{
		classes:  make(map[string]*component.Component, len(r.classes)),
		managers: make(map[string]*entity.Manager, len(r.managers)),
		order:    append([]string(nil), r.order...),
	}
	for name, class := range r.classes {
		if manager, ok := r.managers[name]; ok {
			forked := manager.Fork()
			fork.managers[name] = forked
			fork.classes[name] = forked.Class()
			continue
		}
		fork.classes[name] = class.Fork()
	}
	return fork
}

package wire

import "github.com/layrjs/layr-sub008/component"

// DependencySet accumulates every distinct component class referenced,
// directly or transitively, by a serialized value. Deduplication is by
// object identity, never by name: two forked classes sharing a name stay
// distinct entries, so a caller serializing each dependency's shape once
// never conflates them.
type DependencySet struct {
	classes []*component.Component
	seen    map[*component.Component]bool
}

// NewDependencySet creates an empty set.
func NewDependencySet() *DependencySet {
	return &DependencySet{seen: make(map[*component.Component]bool)}
}

// Add records a class; duplicates (same object) are ignored.
func (s *DependencySet) Add(class *component.Component) {
	if class == nil || s.seen[class] {
		return
	}
	s.seen[class] = true
	s.classes = append(s.classes, class)
}

// Contains reports whether the exact class object was recorded.
func (s *DependencySet) Contains(class *component.Component) bool {
	return s.seen[class]
}

// Classes returns the recorded classes in first-seen order.
func (s *DependencySet) Classes() []*component.Component {
	return s.classes
}

// Len returns the number of distinct classes recorded.
func (s *DependencySet) Len() int {
	return len(s.classes)
}

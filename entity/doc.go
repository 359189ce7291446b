// Package entity implements identity reconciliation for identity-bearing
// components: the per-class, fork-layered map from identifier values to the
// single live instance representing that identity.
//
// A Manager indexes instances of one entity class by every set identifier
// attribute. Within one manager scope, two distinct in-memory objects can
// never claim the same identifier value; the conflict surfaces immediately
// at registration time, never later.
//
// Fork is the isolation primitive. Manager.Fork layers a child manager over
// its parent: lookups delegate upward for entries the child has not
// written, writes always land in the child's own layer. An entity found
// through an inherited entry is forked against the child class and
// re-registered before it is returned, so mutations made through the fork
// never leak into the parent scope. Each request or session takes its own
// fork; the protocol core assumes no concurrent mutation within a single
// fork.
package entity

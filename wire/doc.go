// Package wire implements the serialization boundary of the component
// protocol: walking values into wire-safe plain structures and
// reconstructing live, identity-reconciled component graphs from them.
//
// # Wire format
//
// Values are JSON-compatible. Non-JSON-native scalars travel as marker
// objects:
//
//	{"__date": "2024-01-15T09:30:00Z"}
//	{"__regExp": "^[a-z]+$"}
//	{"__undefined": true}
//	{"__function": "minLength(5)"}
//
// Component instances serialize with a lower-cased leading letter in the
// __component marker ("movie"); classes keep the declared name ("Movie").
// An instance appears either as a full payload enumerating every active
// attribute that passes the attribute filter, or as a reference stub
// carrying only the identifier attributes:
//
//	{"__component": "movie", "id": "m1", "title": "Inception"}  // payload
//	{"__component": "movie", "id": "m1"}                        // stub
//	{"__component": "movie", "__new": true, "title": "..."}     // unsaved
//
// Inactive attributes are never emitted, not even as null; omission is
// what makes partial graphs composable.
//
// # Reconciliation
//
// Deserializing an entity payload resolves its identifiers through the
// entity manager: the same identity deserialized twice within one scope
// yields the same live instance, with later payloads merged in. Attributes
// absent from a payload are left untouched. A reference to an
// unresolvable component is recoverable per node via the error handler;
// sibling nodes of a batch are unaffected.
package wire

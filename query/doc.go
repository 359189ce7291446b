// Package query implements the remote-invocation protocol: the document
// shape that encodes "invoke method M on receiver R with arguments A", the
// engine that decodes a request, enforces exposure rules, executes the
// method, and re-encodes the result, and the client that drives the same
// protocol from the calling side.
//
// # Request and response
//
// A request carries an integer protocol version and a query document:
//
//	{"version": 1, "query": {"<=": {"__component": "movie", "id": "m1"}, "play=>": {"()": []}}}
//
// The reserved introspection query {"introspect=>": {"()": []}} returns the
// shape description of the engine's root component; clients use it once
// per connection to synthesize local proxy classes.
//
// A successful response is {"result": <value>, "components": [<payload>...]}
// where components carries every entity the call mutated as a side effect
// so the caller can re-synchronize. A failed response is
// {"error": {"code": <code>, "message": <text>}}.
//
// # Isolation
//
// Every request is served against a fork of the engine's component
// registry: attribute writes and identity-map changes made while serving
// one request never leak into the shared graph or into concurrent
// requests.
package query

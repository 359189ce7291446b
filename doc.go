// Package layr implements a component query protocol: applications describe
// their domain as classes with typed attributes and exposed methods, and
// remote callers invoke those methods through a JSON envelope that carries
// components across the wire and back.
//
// The packages compose bottom-up:
//
//   - types: value typing and the validator registry the attribute layer
//     checks against
//   - component: classes, instances, attributes, methods, exposure rules,
//     and introspection shapes
//   - entity: identity maps and fork layering so each request sees an
//     isolated view of shared entities
//   - wire: the serializer/deserializer for the marker-based payload format
//   - componentregistry: named registration and per-request forking
//   - query: the request/response envelope, the serving engine, and the
//     remote proxy client
//   - transport/...: local, HTTP/WebSocket, and NATS adapters that all
//     speak the same envelope
//
// cmd/layr-server wires a registered application behind the configured
// transports with metrics and health reporting.
package layr

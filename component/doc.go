// Package component implements the component graph model: named class and
// instance components, their declared properties (attributes and methods),
// exposure policies, attribute activation tracking, attribute selectors,
// and shape introspection.
//
// # Components
//
// A component is a named node in the cross-boundary graph. Classes are
// created with NewClass and declare properties once; Instantiate derives
// instances carrying their own attribute state. A class and its instances
// share one name and are distinguished by IsClass/IsInstance.
//
//	Movie := component.NewClass("Movie")
//	err := Movie.DeclareAttribute("title", component.AttributeOptions{
//	    Type:     "string",
//	    Exposure: component.Exposure{Get: component.Public(), Set: component.Public()},
//	})
//
// # Attribute activation
//
// Every attribute tracks whether its value is currently known, independent
// of the value itself. Reading an inactive attribute is an error, not a
// silent zero value; this is what makes partial object graphs safe. See
// Attribute.SetValue, Attribute.UnsetValue, and Attribute.IsSet.
//
// # Attribute selectors
//
// Selectors describe which attributes an operation covers: everything,
// nothing, or a per-attribute nested selection. One canonical expansion
// algorithm (Selector.Expand) is shared by serialization, deserialization,
// and populate logic so partial-load semantics never diverge.
//
// # Introspection
//
// Introspect produces a serializable description of a class's shape;
// Unintrospect synthesizes a local proxy class from such a description,
// with method stubs forwarding through a caller-supplied RemoteCallHandler.
// This pair is the bootstrap mechanism remote clients use to construct
// queries against components they have never statically imported.
package component

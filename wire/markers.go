package wire

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Wire marker keys. These are part of the protocol contract.
const (
	// MarkerComponent tags a component payload or reference stub.
	MarkerComponent = "__component"
	// MarkerNew marks an entity instance not yet persisted.
	MarkerNew = "__new"
	// MarkerDate tags an ISO 8601 timestamp.
	MarkerDate = "__date"
	// MarkerRegExp tags a regular expression source.
	MarkerRegExp = "__regExp"
	// MarkerUndefined tags an explicitly-undefined value.
	MarkerUndefined = "__undefined"
	// MarkerFunction tags function source travelling with introspected
	// shapes (validators).
	MarkerFunction = "__function"
)

// Function is a function value in transit: source only, reconstituted into
// a callable by the receiving side's validator registry.
type Function struct {
	Source string
}

// undefinedValue is the type of Undefined.
type undefinedValue struct{}

// Undefined is the explicitly-undefined sentinel. It serializes to the
// __undefined marker; deserialization restores it so a round trip is
// lossless. Plain Go nil serializes to JSON null.
var Undefined = undefinedValue{}

// instanceName lower-cases the leading letter of a class name: the wire
// spelling of an instance payload.
func instanceName(className string) string {
	r, size := utf8.DecodeRuneInString(className)
	return string(unicode.ToLower(r)) + className[size:]
}

// classNameOf restores the declared class name from a wire component name.
func classNameOf(wireName string) string {
	r, size := utf8.DecodeRuneInString(wireName)
	return string(unicode.ToUpper(r)) + wireName[size:]
}

// isClassReference reports whether a wire component name denotes the class
// itself rather than an instance: classes keep their capitalized name.
func isClassReference(wireName string) bool {
	r, _ := utf8.DecodeRuneInString(wireName)
	return unicode.IsUpper(r)
}

// isMarkerKey reports whether a payload key is protocol metadata rather
// than an attribute name.
func isMarkerKey(key string) bool {
	return strings.HasPrefix(key, "__")
}

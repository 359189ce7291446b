package query

import (
	"fmt"
	"strings"

	"github.com/layrjs/layr-sub008/errors"
)

// Query document keys.
const (
	// ReceiverKey introduces the serialized receiver of the call.
	ReceiverKey = "<="
	// DirectiveSuffix marks a method-invocation key ("play=>").
	DirectiveSuffix = "=>"
	// ArgumentsKey holds the positional arguments inside a directive.
	ArgumentsKey = "()"
	// IntrospectMethod is the reserved bootstrap method name. It is served
	// by the engine itself and cannot be declared by components.
	IntrospectMethod = "introspect"
)

// Document is a parsed query document: a receiver, a method name, and
// positional arguments, all still in wire form.
type Document struct {
	// Receiver is the serialized receiver (component reference or
	// payload). Nil for the reserved introspection query.
	Receiver any
	// Method is the directive's method name.
	Method string
	// Arguments are the serialized positional arguments.
	Arguments []any
}

// IsIntrospection reports whether the document is the reserved bootstrap
// query.
func (d Document) IsIntrospection() bool {
	return d.Method == IntrospectMethod
}

// Value returns the document's wire form.
func (d Document) Value() map[string]any {
	doc := make(map[string]any, 2)
	if d.Receiver != nil {
		doc[ReceiverKey] = d.Receiver
	}
	args := d.Arguments
	if args == nil {
		args = []any{}
	}
	doc[d.Method+DirectiveSuffix] = map[string]any{ArgumentsKey: args}
	return doc
}

// ParseDocument validates and decomposes a raw query document. Exactly one
// method directive is required; the receiver is required for everything
// but the reserved introspection query.
func ParseDocument(raw any) (Document, error) {
	doc, ok := raw.(map[string]any)
	if !ok {
		return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			fmt.Sprintf("query must be an object, got %T", raw))
	}

	var parsed Document
	found := false
	for key, value := range doc {
		switch {
		case key == ReceiverKey:
			parsed.Receiver = value
		case strings.HasSuffix(key, DirectiveSuffix):
			if found {
				return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
					"query declares more than one method directive")
			}
			found = true

			method := strings.TrimSuffix(key, DirectiveSuffix)
			if method == "" {
				return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
					"method directive has an empty name")
			}
			args, err := parseArguments(value)
			if err != nil {
				return Document{}, err
			}
			parsed.Method = method
			parsed.Arguments = args
		default:
			return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
				fmt.Sprintf("unknown query key %q", key))
		}
	}

	if !found {
		return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			"query declares no method directive")
	}
	if parsed.Receiver == nil && !parsed.IsIntrospection() {
		return Document{}, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			fmt.Sprintf("method %q requires a receiver", parsed.Method))
	}
	return parsed, nil
}

func parseArguments(value any) ([]any, error) {
	directive, ok := value.(map[string]any)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			fmt.Sprintf("method directive must be an object, got %T", value))
	}
	raw, ok := directive[ArgumentsKey]
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			fmt.Sprintf("method directive lacks the %q arguments key", ArgumentsKey))
	}
	args, ok := raw.([]any)
	if !ok {
		return nil, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
			fmt.Sprintf("arguments must be an array, got %T", raw))
	}
	for key := range directive {
		if key != ArgumentsKey {
			return nil, errors.WrapInvalid(errors.ErrInvalidQuery, "Document", "ParseDocument",
				fmt.Sprintf("unknown directive key %q", key))
		}
	}
	return args, nil
}

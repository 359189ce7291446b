package query

import (
	"fmt"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/layrjs/layr-sub008/errors"
)

// ProtocolVersion is the version this build speaks. Both sides declare it
// per request; a mismatch is rejected before anything executes.
const ProtocolVersion = 1

// Request envelope keys.
const (
	VersionKey = "version"
	QueryKey   = "query"
)

// Response envelope keys.
const (
	ResultKey     = "result"
	ComponentsKey = "components"
	ErrorKey      = "error"
)

// requestSchema is the JSON-Schema contract every inbound request must
// satisfy before the engine looks at it.
const requestSchema = `{
	"type": "object",
	"required": ["version", "query"],
	"additionalProperties": false,
	"properties": {
		"version": {"type": "integer"},
		"query": {"type": "object", "minProperties": 1}
	}
}`

var (
	compiledRequestSchema *gojsonschema.Schema
	compileSchemaOnce     sync.Once
)

func validateRequest(request map[string]any) error {
	var compileErr error
	compileSchemaOnce.Do(func() {
		compiledRequestSchema, compileErr = gojsonschema.NewSchema(
			gojsonschema.NewStringLoader(requestSchema))
	})
	if compileErr != nil {
		return errors.WrapFatal(compileErr, "Engine", "Receive", "request schema compilation")
	}
	if compiledRequestSchema == nil {
		return errors.WrapFatal(errors.ErrInvalidConfig, "Engine", "Receive",
			"request schema unavailable")
	}

	result, err := compiledRequestSchema.Validate(gojsonschema.NewGoLoader(request))
	if err != nil {
		return errors.WrapInvalid(err, "Engine", "Receive", "request validation")
	}
	if !result.Valid() {
		detail := ""
		for _, desc := range result.Errors() {
			if detail != "" {
				detail += "; "
			}
			detail += fmt.Sprintf("%s: %s", desc.Field(), desc.Description())
		}
		return errors.WrapInvalid(errors.ErrInvalidQuery, "Engine", "Receive", detail)
	}
	return nil
}

// NewRequest builds a request envelope around a query document.
func NewRequest(doc Document) map[string]any {
	return map[string]any{
		VersionKey: ProtocolVersion,
		QueryKey:   doc.Value(),
	}
}

// ErrorEnvelope converts an error into the wire error response
// {"error": {"code": ..., "message": ...}}. Transports apply it to every
// error the engine returns so the caller always receives a structured
// envelope.
func ErrorEnvelope(err error) map[string]any {
	return map[string]any{
		ErrorKey: map[string]any{
			"code":    string(errors.CodeOf(err)),
			"message": err.Error(),
		},
	}
}

// ErrorFromEnvelope reconstructs an error from a wire error response.
// Returns nil when the response carries no error.
func ErrorFromEnvelope(response map[string]any) error {
	raw, ok := response[ErrorKey]
	if !ok {
		return nil
	}
	payload, ok := raw.(map[string]any)
	if !ok {
		return errors.WrapInvalid(errors.ErrInvalidPayload, "Client", "Send",
			fmt.Sprintf("error envelope must be an object, got %T", raw))
	}
	code, _ := payload["code"].(string)
	message, _ := payload["message"].(string)
	return errors.FromWire(errors.Code(code), message)
}

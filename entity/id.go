package entity

import (
	"github.com/google/uuid"

	"github.com/layrjs/layr-sub008/component"
)

// NewID returns a generated unique string identifier.
func NewID() string {
	return uuid.NewString()
}

// GeneratedID is the default generator for string primary identifier
// attributes: each new instance gets a fresh unique id.
func GeneratedID() func() any {
	return func() any { return NewID() }
}

// PrimaryIdentifierOptions returns the conventional declaration for a
// string primary identifier with a generated default.
func PrimaryIdentifierOptions(exposure component.Exposure) component.AttributeOptions {
	return component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Default:           GeneratedID(),
		Exposure:          exposure,
	}
}

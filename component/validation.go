package component

import (
	"fmt"
	"regexp"

	"github.com/layrjs/layr-sub008/errors"
)

// MaxNameLength bounds component names; names cross the wire and key
// registries, so unbounded names are a resource-exhaustion vector.
const MaxNameLength = 128

// namePattern matches valid component names: an upper-case letter followed
// by letters and digits. The upper-case rule is what distinguishes a
// component reference from a scalar keyword in value-type specifiers.
var namePattern = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// ValidateName checks a component name for registry and wire safety.
func ValidateName(name string) error {
	if name == "" {
		return errors.WrapInvalid(
			fmt.Errorf("component name cannot be empty"),
			"Component", "ValidateName", "name validation")
	}
	if len(name) > MaxNameLength {
		return errors.WrapInvalid(
			fmt.Errorf("component name length %d exceeds maximum %d", len(name), MaxNameLength),
			"Component", "ValidateName", "length check")
	}
	if !namePattern.MatchString(name) {
		return errors.WrapInvalid(
			fmt.Errorf("component name %q must start with an upper-case letter and contain only letters and digits", name),
			"Component", "ValidateName", "pattern check")
	}
	return nil
}

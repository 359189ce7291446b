package component

import (
	"context"
	"fmt"

	"github.com/layrjs/layr-sub008/errors"
)

// Operation identifies what a caller wants to do with a property.
type Operation string

// Property operations subject to exposure policy
const (
	OperationGet  Operation = "get"
	OperationSet  Operation = "set"
	OperationCall Operation = "call"
)

// Requirement states who may perform one operation on a property. The zero
// value denies everyone, which is the correct default: nothing crosses the
// boundary unless explicitly exposed.
type Requirement struct {
	public bool
	roles  []string
}

// Public returns a requirement satisfied by any caller.
func Public() Requirement {
	return Requirement{public: true}
}

// Role returns a requirement satisfied only by callers holding one of the
// given roles.
func Role(roles ...string) Requirement {
	return Requirement{roles: roles}
}

// IsDenied reports whether the requirement denies all callers.
func (r Requirement) IsDenied() bool {
	return !r.public && len(r.roles) == 0
}

// Roles returns the roles that satisfy the requirement; empty when the
// requirement is public or denied.
func (r Requirement) Roles() []string {
	return r.roles
}

// IsPublic reports whether any caller satisfies the requirement.
func (r Requirement) IsPublic() bool {
	return r.public
}

// RoleResolver decides whether the current caller holds a role. Supplied by
// the embedding application's authorization layer; consulted only for
// role-based requirements.
type RoleResolver func(ctx context.Context, role string) (bool, error)

// Exposure is the per-operation authorization policy attached to a
// property. Attributes use Get/Set; methods use Call.
type Exposure struct {
	Get  Requirement
	Set  Requirement
	Call Requirement
}

// Requirement returns the requirement governing an operation.
func (e Exposure) Requirement(op Operation) Requirement {
	switch op {
	case OperationGet:
		return e.Get
	case OperationSet:
		return e.Set
	case OperationCall:
		return e.Call
	default:
		return Requirement{}
	}
}

// IsExposed reports whether the operation is exposed to anyone at all.
// Used by serialization filters, which must not consult a role resolver
// (direction decides, not identity).
func (e Exposure) IsExposed(op Operation) bool {
	return !e.Requirement(op).IsDenied()
}

// Check verifies the operation against the policy for the current caller.
// A denied or unsatisfied requirement yields an ErrUnauthorized carrying
// the operation and property name; the caller never learns partial results.
func (e Exposure) Check(ctx context.Context, op Operation, propertyName string, resolver RoleResolver) error {
	req := e.Requirement(op)
	if req.public {
		return nil
	}
	if len(req.roles) == 0 {
		return errors.WrapInvalid(errors.ErrUnauthorized, "Exposure", "Check",
			fmt.Sprintf("operation %q on property %q is not exposed", op, propertyName))
	}
	if resolver == nil {
		return errors.WrapInvalid(errors.ErrUnauthorized, "Exposure", "Check",
			fmt.Sprintf("operation %q on property %q requires a role but no resolver is configured", op, propertyName))
	}
	for _, role := range req.roles {
		ok, err := resolver(ctx, role)
		if err != nil {
			return errors.Wrap(err, "Exposure", "Check",
				fmt.Sprintf("resolving role %q", role))
		}
		if ok {
			return nil
		}
	}
	return errors.WrapInvalid(errors.ErrUnauthorized, "Exposure", "Check",
		fmt.Sprintf("operation %q on property %q denied for current caller", op, propertyName))
}

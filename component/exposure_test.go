package component

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/layrjs/layr-sub008/errors"
)

func TestRequirementStates(t *testing.T) {
	assert.True(t, Requirement{}.IsDenied())
	assert.True(t, Public().IsPublic())
	assert.False(t, Public().IsDenied())
	assert.Equal(t, []string{"admin"}, Role("admin").Roles())
	assert.False(t, Role("admin").IsDenied())
}

func TestExposureCheckPublic(t *testing.T) {
	e := Exposure{Get: Public()}
	assert.NoError(t, e.Check(context.Background(), OperationGet, "title", nil))
}

func TestExposureCheckDenied(t *testing.T) {
	e := Exposure{Get: Public()}

	err := e.Check(context.Background(), OperationSet, "title", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrUnauthorized)
	// The error names the operation and property.
	assert.Contains(t, err.Error(), "set")
	assert.Contains(t, err.Error(), "title")
}

func TestExposureCheckRoles(t *testing.T) {
	e := Exposure{Call: Role("admin", "editor")}

	asRoles := func(held ...string) RoleResolver {
		return func(_ context.Context, role string) (bool, error) {
			for _, h := range held {
				if h == role {
					return true, nil
				}
			}
			return false, nil
		}
	}

	assert.NoError(t, e.Check(context.Background(), OperationCall, "delete", asRoles("editor")))
	assert.ErrorIs(t,
		e.Check(context.Background(), OperationCall, "delete", asRoles("viewer")),
		pkgerrors.ErrUnauthorized)

	// A role requirement with no resolver configured denies.
	assert.ErrorIs(t,
		e.Check(context.Background(), OperationCall, "delete", nil),
		pkgerrors.ErrUnauthorized)
}

func TestExposureCheckResolverError(t *testing.T) {
	e := Exposure{Call: Role("admin")}
	resolver := func(_ context.Context, _ string) (bool, error) {
		return false, fmt.Errorf("directory unavailable")
	}
	err := e.Check(context.Background(), OperationCall, "delete", resolver)
	require.Error(t, err)
	assert.NotErrorIs(t, err, pkgerrors.ErrUnauthorized)
}

func TestExposureIsExposed(t *testing.T) {
	e := Exposure{Get: Public(), Call: Role("admin")}
	assert.True(t, e.IsExposed(OperationGet))
	assert.False(t, e.IsExposed(OperationSet))
	assert.True(t, e.IsExposed(OperationCall))
}

package component

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/layrjs/layr-sub008/errors"
	"github.com/layrjs/layr-sub008/types"
)

func newTitleAttribute(t *testing.T) *Attribute {
	t.Helper()
	movie := newMovieClass(t)
	instance, err := movie.Instantiate()
	require.NoError(t, err)
	attr, err := instance.GetAttribute("title")
	require.NoError(t, err)
	return attr
}

func TestAttributeActivation(t *testing.T) {
	attr := newTitleAttribute(t)

	assert.False(t, attr.IsSet())
	_, err := attr.Value()
	assert.ErrorIs(t, err, pkgerrors.ErrInactiveAttribute)

	change, err := attr.SetValue("Inception")
	require.NoError(t, err)
	assert.False(t, change.PreviousSet)
	assert.Equal(t, "Inception", change.NewValue)
	assert.True(t, attr.IsSet())

	v, err := attr.Value()
	require.NoError(t, err)
	assert.Equal(t, "Inception", v)
}

func TestAttributeUnsetRetainsPreviousValue(t *testing.T) {
	attr := newTitleAttribute(t)

	_, err := attr.SetValue("Inception")
	require.NoError(t, err)
	require.NoError(t, attr.UnsetValue())

	// Activation and value knowledge are orthogonal: the attribute is
	// unset, reading is an error, but the prior value stays retrievable
	// for diffing.
	assert.False(t, attr.IsSet())
	_, err = attr.Value()
	assert.ErrorIs(t, err, pkgerrors.ErrInactiveAttribute)

	prev, ok := attr.PreviousValue()
	assert.True(t, ok)
	assert.Equal(t, "Inception", prev)

	// Unset on an inactive attribute is a no-op.
	require.NoError(t, attr.UnsetValue())
}

func TestAttributeSetValueTracksTransition(t *testing.T) {
	attr := newTitleAttribute(t)

	_, err := attr.SetValue("first")
	require.NoError(t, err)
	change, err := attr.SetValue("second")
	require.NoError(t, err)

	assert.True(t, change.PreviousSet)
	assert.Equal(t, "first", change.PreviousValue)
	assert.Equal(t, "second", change.NewValue)

	prev, ok := attr.PreviousValue()
	assert.True(t, ok)
	assert.Equal(t, "first", prev)
}

func TestAttributeTypeChecking(t *testing.T) {
	attr := newTitleAttribute(t)

	_, err := attr.SetValue(42)
	require.Error(t, err)
	assert.ErrorIs(t, err, pkgerrors.ErrValidationFailed)
	assert.False(t, attr.IsSet(), "rejected value must not activate the attribute")
}

func TestAttributeValidators(t *testing.T) {
	reg := types.NewValidatorRegistry()
	minLen, err := reg.Build("minLength", 3)
	require.NoError(t, err)

	c := MustClass("Tagged")
	require.NoError(t, c.DeclareAttribute("tag", AttributeOptions{
		Type:       "string",
		Validators: []types.Validator{minLen},
	}))
	instance, err := c.Instantiate()
	require.NoError(t, err)
	attr, err := instance.GetAttribute("tag")
	require.NoError(t, err)

	_, err = attr.SetValue("ok!")
	assert.NoError(t, err)
	_, err = attr.SetValue("no")
	assert.ErrorIs(t, err, pkgerrors.ErrValidationFailed)
}

func TestPrimaryIdentifierWriteOnce(t *testing.T) {
	movie := newMovieClass(t)
	instance, err := movie.Instantiate()
	require.NoError(t, err)
	id, err := instance.GetAttribute("id")
	require.NoError(t, err)

	_, err = id.SetValue("m1")
	require.NoError(t, err)

	// Re-setting the same value is fine; changing it is not.
	_, err = id.SetValue("m1")
	assert.NoError(t, err)
	_, err = id.SetValue("m2")
	assert.ErrorIs(t, err, pkgerrors.ErrImmutableIdentifier)
}

func TestIdentityObserverRollback(t *testing.T) {
	movie := newMovieClass(t)
	instance, err := movie.Instantiate()
	require.NoError(t, err)

	instance.SetIdentityObserver(func(_ *Component, _ *Attribute, _ ValueChange) error {
		return pkgerrors.ErrIdentityConflict
	})

	id, err := instance.GetAttribute("id")
	require.NoError(t, err)
	_, err = id.SetValue("m1")
	assert.ErrorIs(t, err, pkgerrors.ErrIdentityConflict)
	assert.False(t, id.IsSet(), "rejected identifier change must roll back")
}

func TestIdentityObserverRollbackPreservesPreviousValue(t *testing.T) {
	c := MustClass("Article")
	require.NoError(t, c.DeclareAttribute("id", AttributeOptions{Type: "string", PrimaryIdentifier: true}))
	require.NoError(t, c.DeclareAttribute("slug", AttributeOptions{Type: "string?", SecondaryIdentifier: true}))
	instance, err := c.Instantiate()
	require.NoError(t, err)

	slug, err := instance.GetAttribute("slug")
	require.NoError(t, err)
	_, err = slug.SetValue("first")
	require.NoError(t, err)
	_, err = slug.SetValue("second")
	require.NoError(t, err)

	instance.SetIdentityObserver(func(_ *Component, _ *Attribute, _ ValueChange) error {
		return pkgerrors.ErrIdentityConflict
	})

	_, err = slug.SetValue("third")
	assert.ErrorIs(t, err, pkgerrors.ErrIdentityConflict)

	v, err := slug.Value()
	require.NoError(t, err)
	assert.Equal(t, "second", v)
	prev, ok := slug.PreviousValue()
	assert.True(t, ok)
	assert.Equal(t, "first", prev, "rolled-back write must not disturb diff tracking")

	err = slug.UnsetValue()
	assert.ErrorIs(t, err, pkgerrors.ErrIdentityConflict)
	assert.True(t, slug.IsSet())
	prev, ok = slug.PreviousValue()
	assert.True(t, ok)
	assert.Equal(t, "first", prev)
}

func TestIdentifierAttributesDeclarationOrder(t *testing.T) {
	c := MustClass("User")
	require.NoError(t, c.DeclareAttribute("id", AttributeOptions{Type: "string", PrimaryIdentifier: true}))
	require.NoError(t, c.DeclareAttribute("name", AttributeOptions{Type: "string"}))
	require.NoError(t, c.DeclareAttribute("email", AttributeOptions{Type: "string", SecondaryIdentifier: true}))
	require.NoError(t, c.DeclareAttribute("handle", AttributeOptions{Type: "string", SecondaryIdentifier: true}))

	var names []string
	for _, attr := range c.IdentifierAttributes() {
		names = append(names, attr.Name())
	}
	assert.Equal(t, []string{"id", "email", "handle"}, names)
	assert.True(t, c.IsEntity())
}

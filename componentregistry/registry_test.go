package componentregistry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/errors"
)

func newMovieClass(t *testing.T) *component.Component {
	t.Helper()

	movie := component.MustClass("Movie")
	require.NoError(t, movie.DeclareAttribute("id", component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          component.Exposure{Get: component.Public(), Set: component.Public()},
	}))
	require.NoError(t, movie.DeclareAttribute("title", component.AttributeOptions{
		Type:     "string",
		Exposure: component.Exposure{Get: component.Public(), Set: component.Public()},
	}))
	return movie
}

func TestRegisterAndResolve(t *testing.T) {
	r := NewRegistry()
	movie := newMovieClass(t)
	require.NoError(t, r.Register(movie))

	got, err := r.GetComponent("Movie")
	require.NoError(t, err)
	assert.Same(t, movie, got)
	assert.True(t, r.HasComponent("Movie"))

	manager, ok := r.ManagerFor("Movie")
	require.True(t, ok)
	assert.Same(t, movie, manager.Class())
}

func TestRegisterDuplicateName(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(newMovieClass(t)))

	err := r.Register(newMovieClass(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrComponentExists)
}

func TestRegisterRejectsInstance(t *testing.T) {
	r := NewRegistry()
	movie := newMovieClass(t)
	inst, err := movie.Instantiate()
	require.NoError(t, err)

	require.Error(t, r.Register(inst))
}

func TestGetComponentUnknown(t *testing.T) {
	r := NewRegistry()
	_, err := r.GetComponent("Ghost")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownComponent)
}

func TestNonEntityHasNoManager(t *testing.T) {
	r := NewRegistry()
	plain := component.MustClass("Greeter")
	require.NoError(t, r.Register(plain))

	_, ok := r.ManagerFor("Greeter")
	assert.False(t, ok)
}

func TestNamesSorted(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(component.MustClass("Zebra")))
	require.NoError(t, r.Register(component.MustClass("Apple")))

	assert.Equal(t, []string{"Apple", "Zebra"}, r.Names())
}

func TestForkIsolation(t *testing.T) {
	root := NewRegistry()
	movie := newMovieClass(t)
	require.NoError(t, root.Register(movie))

	rootManager, ok := root.ManagerFor("Movie")
	require.True(t, ok)

	inst, err := movie.Instantiate()
	require.NoError(t, err)
	attr, err := inst.GetAttribute("id")
	require.NoError(t, err)
	_, err = attr.SetValue("m1")
	require.NoError(t, err)
	require.NoError(t, rootManager.AddEntity(inst))

	fork := root.Fork()
	forkManager, ok := fork.ManagerFor("Movie")
	require.True(t, ok)

	// The fork sees entities registered before the fork.
	inherited, found, err := forkManager.GetEntity(map[string]any{"id": "m1"})
	require.NoError(t, err)
	require.True(t, found)
	assert.NotSame(t, inst, inherited, "inherited hits materialize as fork-local clones")

	// Entities created inside the fork stay invisible to the root.
	forkClass, err := fork.GetComponent("Movie")
	require.NoError(t, err)
	other, err := forkClass.Instantiate()
	require.NoError(t, err)
	otherID, err := other.GetAttribute("id")
	require.NoError(t, err)
	_, err = otherID.SetValue("m2")
	require.NoError(t, err)
	require.NoError(t, forkManager.AddEntity(other))

	_, found, err = rootManager.GetEntity(map[string]any{"id": "m2"})
	require.NoError(t, err)
	assert.False(t, found)
}

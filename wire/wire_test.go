package wire

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/entity"
)

// testProvider is a minimal ComponentProvider over a fixed class set.
type testProvider struct {
	classes  map[string]*component.Component
	managers map[string]*entity.Manager
}

func (p *testProvider) GetComponent(name string) (*component.Component, error) {
	c, ok := p.classes[name]
	if !ok {
		return nil, errUnknownClass(name)
	}
	return c, nil
}

func (p *testProvider) ManagerFor(name string) (*entity.Manager, bool) {
	m, ok := p.managers[name]
	return m, ok
}

func errUnknownClass(name string) error {
	return &unknownClassError{name: name}
}

type unknownClassError struct{ name string }

func (e *unknownClassError) Error() string { return "unknown component " + e.name }

type fixture struct {
	movie    *component.Component
	director *component.Component
	movies   *entity.Manager
	provider *testProvider
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	public := component.Exposure{Get: component.Public(), Set: component.Public()}

	director := component.MustClass("Director")
	require.NoError(t, director.DeclareAttribute("fullName", component.AttributeOptions{
		Type:     "string",
		Exposure: public,
	}))

	movie := component.MustClass("Movie")
	require.NoError(t, movie.DeclareAttribute("id", component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          public,
	}))
	require.NoError(t, movie.DeclareAttribute("slug", component.AttributeOptions{
		Type:                "string?",
		SecondaryIdentifier: true,
		Exposure:            public,
	}))
	require.NoError(t, movie.DeclareAttribute("title", component.AttributeOptions{
		Type:     "string",
		Exposure: public,
	}))
	require.NoError(t, movie.DeclareAttribute("year", component.AttributeOptions{
		Type:     "number?",
		Exposure: public,
	}))
	require.NoError(t, movie.DeclareAttribute("director", component.AttributeOptions{
		Type:     "Director?",
		Exposure: public,
	}))
	require.NoError(t, movie.DeclareAttribute("secret", component.AttributeOptions{
		Type:     "string?",
		Exposure: component.Exposure{},
	}))

	movies, err := entity.NewManager(movie)
	require.NoError(t, err)

	return &fixture{
		movie:    movie,
		director: director,
		movies:   movies,
		provider: &testProvider{
			classes:  map[string]*component.Component{"Movie": movie, "Director": director},
			managers: map[string]*entity.Manager{"Movie": movies},
		},
	}
}

func setAttr(t *testing.T, inst *component.Component, name string, value any) {
	t.Helper()
	attr, err := inst.GetAttribute(name)
	require.NoError(t, err)
	_, err = attr.SetValue(value)
	require.NoError(t, err)
}

func attrValue(t *testing.T, inst *component.Component, name string) any {
	t.Helper()
	attr, err := inst.GetAttribute(name)
	require.NoError(t, err)
	value, err := attr.Value()
	require.NoError(t, err)
	return value
}

func newMovie(t *testing.T, f *fixture, id string) *component.Component {
	t.Helper()
	inst, err := f.movie.Instantiate()
	require.NoError(t, err)
	setAttr(t, inst, "id", id)
	require.NoError(t, f.movies.AddEntity(inst))
	return inst
}

package component

import "testing"

// newMovieClass builds the class most tests exercise: a primary
// identifier, two plain attributes, and a nested component reference.
func newMovieClass(t *testing.T) *Component {
	t.Helper()

	movie := MustClass("Movie")
	mustDeclare(t, movie, "id", AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          Exposure{Get: Public(), Set: Public()},
	})
	mustDeclare(t, movie, "title", AttributeOptions{
		Type:     "string",
		Exposure: Exposure{Get: Public(), Set: Public()},
	})
	mustDeclare(t, movie, "director", AttributeOptions{
		Type:     "Director?",
		Exposure: Exposure{Get: Public(), Set: Public()},
	})
	return movie
}

func newDirectorClass(t *testing.T) *Component {
	t.Helper()

	director := MustClass("Director")
	mustDeclare(t, director, "fullName", AttributeOptions{
		Type:     "string",
		Exposure: Exposure{Get: Public(), Set: Public()},
	})
	return director
}

func mustDeclare(t *testing.T, c *Component, name string, opts AttributeOptions) {
	t.Helper()
	if err := c.DeclareAttribute(name, opts); err != nil {
		t.Fatalf("declaring attribute %q: %v", name, err)
	}
}

// resolverFor builds a ComponentResolver over a fixed class set.
func resolverFor(classes ...*Component) ComponentResolver {
	byName := make(map[string]*Component, len(classes))
	for _, c := range classes {
		byName[c.Name()] = c
	}
	return func(name string) (*Component, bool) {
		c, ok := byName[name]
		return c, ok
	}
}

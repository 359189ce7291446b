package wire

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/layrjs/layr-sub008/component"
	"github.com/layrjs/layr-sub008/entity"
	"github.com/layrjs/layr-sub008/errors"
)

func TestDeserializeMarkers(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()
	opts := DeserializeOptions{Components: f.provider}

	out, err := d.Deserialize(map[string]any{MarkerDate: "2024-06-01T12:30:00Z"}, opts)
	require.NoError(t, err)
	require.IsType(t, time.Time{}, out)
	assert.True(t, out.(time.Time).Equal(time.Date(2024, 6, 1, 12, 30, 0, 0, time.UTC)))

	out, err = d.Deserialize(map[string]any{MarkerRegExp: `^[a-z]+$`}, opts)
	require.NoError(t, err)
	require.IsType(t, (*regexp.Regexp)(nil), out)
	assert.Equal(t, `^[a-z]+$`, out.(*regexp.Regexp).String())

	out, err = d.Deserialize(map[string]any{MarkerUndefined: true}, opts)
	require.NoError(t, err)
	assert.Equal(t, Undefined, out)

	out, err = d.Deserialize(map[string]any{MarkerFunction: "notEmpty()"}, opts)
	require.NoError(t, err)
	assert.Equal(t, Function{Source: "notEmpty()"}, out)
}

func TestDeserializeInvalidDate(t *testing.T) {
	d := NewDeserializer()
	_, err := d.Deserialize(map[string]any{MarkerDate: "not-a-date"}, DeserializeOptions{})
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestDeserializeClassReference(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	out, err := d.Deserialize(map[string]any{MarkerComponent: "Movie"},
		DeserializeOptions{Components: f.provider})
	require.NoError(t, err)
	assert.Same(t, f.movie, out)
}

func TestDeserializeEntityPayloadReconciles(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()
	opts := DeserializeOptions{Components: f.provider}

	out, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"title":         "Inception",
	}, opts)
	require.NoError(t, err)

	inst, ok := out.(*component.Component)
	require.True(t, ok)
	assert.Equal(t, "Movie", inst.Name())

	again, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"year":          float64(2010),
	}, opts)
	require.NoError(t, err)

	assert.Same(t, out, again, "same identity must deserialize to the same instance")
}

func TestDeserializeMergeIsAsymmetric(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()
	opts := DeserializeOptions{Components: f.provider}

	_, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"title":         "Inception",
	}, opts)
	require.NoError(t, err)

	_, err = d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"year":          float64(2010),
	}, opts)
	require.NoError(t, err)

	inst, found, err := f.movies.GetEntity(map[string]any{"id": "m1"})
	require.NoError(t, err)
	require.True(t, found)

	assert.Equal(t, "Inception", attrValue(t, inst, "title"),
		"attributes absent from a later payload must stay untouched")
	assert.Equal(t, float64(2010), attrValue(t, inst, "year"))
}

func TestDeserializeUndefinedActivatesAttribute(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	out, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"year":          map[string]any{MarkerUndefined: true},
	}, DeserializeOptions{Components: f.provider})
	require.NoError(t, err)

	inst := out.(*component.Component)
	attr, err := inst.GetAttribute("year")
	require.NoError(t, err)
	assert.True(t, attr.IsSet(), "an undefined payload value still activates the attribute")
	assert.Nil(t, attrValue(t, inst, "year"))
}

func TestDeserializeNewEntity(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	out, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		MarkerNew:       true,
		"id":            "m1",
		"title":         "Draft",
	}, DeserializeOptions{Components: f.provider})
	require.NoError(t, err)

	inst := out.(*component.Component)
	assert.True(t, inst.IsNew())
	assert.Equal(t, "Draft", attrValue(t, inst, "title"))

	got, found, err := f.movies.GetEntity(map[string]any{"id": "m1"})
	require.NoError(t, err)
	require.True(t, found)
	assert.Same(t, inst, got)
}

func TestDeserializeNestedComponent(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	out, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"director": map[string]any{
			MarkerComponent: "director",
			"fullName":      "Christopher Nolan",
		},
	}, DeserializeOptions{Components: f.provider})
	require.NoError(t, err)

	inst := out.(*component.Component)
	director, ok := attrValue(t, inst, "director").(*component.Component)
	require.True(t, ok)
	assert.Equal(t, "Christopher Nolan", attrValue(t, director, "fullName"))
}

func TestDeserializeUnknownComponentPropagatesWithoutHandler(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	_, err := d.Deserialize(map[string]any{MarkerComponent: "ghost"},
		DeserializeOptions{Components: f.provider})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDanglingReference)
	assert.True(t, errors.IsRecoverable(err))
}

func TestDeserializeErrorHandlerSuppressesDanglingReference(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	var seen []error
	out, err := d.Deserialize([]any{
		map[string]any{MarkerComponent: "ghost"},
		"kept",
	}, DeserializeOptions{
		Components: f.provider,
		ErrorHandler: func(err error) error {
			seen = append(seen, err)
			return nil
		},
	})
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, []any{nil, "kept"}, out)
}

func TestDeserializeErrorHandlerCanAbort(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	_, err := d.Deserialize(map[string]any{MarkerComponent: "ghost"},
		DeserializeOptions{
			Components:   f.provider,
			ErrorHandler: func(err error) error { return err },
		})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrDanglingReference)
}

func TestDeserializeRejectsFilteredAttribute(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	_, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"secret":        "stolen",
	}, DeserializeOptions{
		Components:      f.provider,
		AttributeFilter: ExposedForSet,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnauthorized)
}

func TestDeserializeResolvesGetOnlyIdentifierStub(t *testing.T) {
	// Identifier values in an entity payload carry identity, not data: the
	// set-exposure filter must not apply to them.
	getOnly := component.Exposure{Get: component.Public()}
	public := component.Exposure{Get: component.Public(), Set: component.Public()}

	ticket := component.MustClass("Ticket")
	require.NoError(t, ticket.DeclareAttribute("id", component.AttributeOptions{
		Type:              "string",
		PrimaryIdentifier: true,
		Exposure:          getOnly,
	}))
	require.NoError(t, ticket.DeclareAttribute("note", component.AttributeOptions{
		Type:     "string?",
		Exposure: public,
	}))
	tickets, err := entity.NewManager(ticket)
	require.NoError(t, err)
	provider := &testProvider{
		classes:  map[string]*component.Component{"Ticket": ticket},
		managers: map[string]*entity.Manager{"Ticket": tickets},
	}

	existing, err := ticket.Instantiate()
	require.NoError(t, err)
	setAttr(t, existing, "id", "t1")
	setAttr(t, existing, "note", "open")
	require.NoError(t, tickets.AddEntity(existing))

	d := NewDeserializer()
	out, err := d.Deserialize(map[string]any{
		MarkerComponent: "ticket",
		"id":            "t1",
	}, DeserializeOptions{
		Components:      provider,
		AttributeFilter: ExposedForSet,
	})
	require.NoError(t, err)
	assert.Same(t, existing, out)

	// An unknown identity materializes; settable attributes still merge.
	out, err = d.Deserialize(map[string]any{
		MarkerComponent: "ticket",
		"id":            "t2",
		"note":          "fresh",
	}, DeserializeOptions{
		Components:      provider,
		AttributeFilter: ExposedForSet,
	})
	require.NoError(t, err)
	created := out.(*component.Component)
	assert.Equal(t, "t2", attrValue(t, created, "id"))
	assert.Equal(t, "fresh", attrValue(t, created, "note"))
}

func TestDeserializeRejectsUnknownPayloadKey(t *testing.T) {
	f := newFixture(t)
	d := NewDeserializer()

	_, err := d.Deserialize(map[string]any{
		MarkerComponent: "movie",
		"id":            "m1",
		"bogus":         1,
	}, DeserializeOptions{Components: f.provider})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrUnknownProperty)
}

func TestRoundTripAcrossSides(t *testing.T) {
	sender := newFixture(t)
	receiver := newFixture(t)
	s := NewSerializer()
	d := NewDeserializer()

	director, err := sender.director.Instantiate()
	require.NoError(t, err)
	setAttr(t, director, "fullName", "Christopher Nolan")

	inst := newMovie(t, sender, "m1")
	setAttr(t, inst, "title", "Inception")
	setAttr(t, inst, "director", director)

	payload, err := s.Serialize(inst, SerializeOptions{AttributeFilter: ExposedForGet})
	require.NoError(t, err)

	out, err := d.Deserialize(payload, DeserializeOptions{Components: receiver.provider})
	require.NoError(t, err)

	got := out.(*component.Component)
	assert.Equal(t, "Inception", attrValue(t, got, "title"))

	nested, ok := attrValue(t, got, "director").(*component.Component)
	require.True(t, ok)
	assert.Equal(t, "Christopher Nolan", attrValue(t, nested, "fullName"))
}

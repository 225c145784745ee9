package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"

	ical "github.com/sonroyaalmerol/jscalical/pkg/ical"
)

func TestValidID(t *testing.T) {
	assert.True(t, ValidID("abc-123_XYZ"))
	assert.False(t, ValidID(""))
	assert.False(t, ValidID("has a space"))
	assert.False(t, ValidID("has/slash"))
}

func TestIDFromPropPrefersExplicitXJMAPID(t *testing.T) {
	prop := ical.NewProp(ical.PropLocation)
	prop.Value = "Room 1"
	SetIDParam(prop, "stable-id-1")

	assert.Equal(t, "stable-id-1", IDFromProp(prop))
}

func TestIDFromPropDerivesStableHashWithoutXJMAPID(t *testing.T) {
	propA := ical.NewProp(ical.PropLocation)
	propA.Value = "Room 1"
	propB := ical.NewProp(ical.PropLocation)
	propB.Value = "Room 1"

	idA := IDFromProp(propA)
	idB := IDFromProp(propB)
	assert.Equal(t, idA, idB, "identical properties must derive the same id")
	assert.Len(t, idA, 40, "derived ids are lowercase hex SHA-1, 40 characters")
	assert.True(t, ValidID(idA))

	propC := ical.NewProp(ical.PropLocation)
	propC.Value = "Room 2"
	idC := IDFromProp(propC)
	assert.NotEqual(t, idA, idC)
}

func TestSetIDParamRoundTrip(t *testing.T) {
	prop := ical.NewProp(ical.PropLocation)
	prop.Value = "Room 1"
	SetIDParam(prop, "my-id")
	assert.Equal(t, "my-id", prop.Params.Get(ical.XJMAPID))
}

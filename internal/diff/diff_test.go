package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func TestDiffMinimalPatch(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Title = jscal.Str("Standup")
	master.Start = jscal.Str("2026-01-05T09:00:00")
	master.Sequence = jscal.Int(2)

	instance := master.Clone()
	instance.Title = jscal.Str("Standup (moved)")
	instance.Start = jscal.Str("2026-01-12T09:00:00")

	patch, err := Diff(master, instance)
	require.NoError(t, err)

	assert.Equal(t, "Standup (moved)", patch["/title"])
	assert.Equal(t, "2026-01-12T09:00:00", patch["/start"])
	assert.Len(t, patch, 2, "only the two changed leaves should appear")
}

func TestDiffRemovedKeyEmitsNull(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Description = jscal.Str("agenda here")

	instance := master.Clone()
	instance.Description = nil

	patch, err := Diff(master, instance)
	require.NoError(t, err)

	val, ok := patch["/description"]
	require.True(t, ok)
	assert.Nil(t, val)
}

func TestDiffNestedMapLeaf(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Keywords = map[string]bool{"standup": true}

	instance := master.Clone()
	instance.Keywords = map[string]bool{"standup": true, "urgent": true}

	patch, err := Diff(master, instance)
	require.NoError(t, err)

	assert.Equal(t, true, patch["/keywords/urgent"])
	_, hadUnrelated := patch["/keywords/standup"]
	assert.False(t, hadUnrelated, "unchanged keyword should not appear in the patch")
}

func TestDiffNoChanges(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Title = jscal.Str("Same")
	instance := master.Clone()

	patch, err := Diff(master, instance)
	require.NoError(t, err)
	assert.Empty(t, patch)
}

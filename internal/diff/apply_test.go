package diff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func TestApplyRoundTripsWithDiff(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Title = jscal.Str("Standup")
	master.Start = jscal.Str("2026-01-05T09:00:00")
	master.Keywords = map[string]bool{"standup": true}

	instance := master.Clone()
	instance.Title = jscal.Str("Standup (moved)")
	instance.Start = jscal.Str("2026-01-12T09:00:00")
	instance.Keywords = map[string]bool{"standup": true, "urgent": true}

	patch, err := Diff(master, instance)
	require.NoError(t, err)

	var rebuilt jscal.Event
	require.NoError(t, Apply(master, patch, &rebuilt))

	assert.Equal(t, "Standup (moved)", *rebuilt.Title)
	assert.Equal(t, "2026-01-12T09:00:00", *rebuilt.Start)
	assert.True(t, rebuilt.Keywords["urgent"])
	assert.True(t, rebuilt.Keywords["standup"])
}

func TestApplyNullRemovesKey(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Description = jscal.Str("agenda here")

	patch := map[string]interface{}{"/description": nil}

	var rebuilt jscal.Event
	require.NoError(t, Apply(master, patch, &rebuilt))
	assert.Nil(t, rebuilt.Description)
}

func TestApplyAddsNewKey(t *testing.T) {
	master := jscal.NewEvent("uid-1")

	patch := map[string]interface{}{"/title": "Added title"}

	var rebuilt jscal.Event
	require.NoError(t, Apply(master, patch, &rebuilt))
	require.NotNil(t, rebuilt.Title)
	assert.Equal(t, "Added title", *rebuilt.Title)
}

func TestApplyNoOpWhenPatchEmpty(t *testing.T) {
	master := jscal.NewEvent("uid-1")
	master.Title = jscal.Str("unchanged")

	var rebuilt jscal.Event
	require.NoError(t, Apply(master, map[string]interface{}{}, &rebuilt))
	assert.Equal(t, "unchanged", *rebuilt.Title)
}

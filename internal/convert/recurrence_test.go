package convert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/jscalical/internal/tzcache"
	"github.com/sonroyaalmerol/jscalical/pkg/jscal"
)

func TestRRuleFromICalWeeklyByDay(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	rule, err := c.RRuleFromICal("FREQ=WEEKLY;INTERVAL=2;BYDAY=MO,WE,FR;COUNT=10")
	require.NoError(t, err)

	assert.Equal(t, "weekly", rule.Frequency)
	require.NotNil(t, rule.Interval)
	assert.Equal(t, 2, *rule.Interval)
	require.NotNil(t, rule.Count)
	assert.Equal(t, 10, *rule.Count)
	require.Len(t, rule.ByDay, 3)
	assert.Equal(t, "mo", rule.ByDay[0].Day)
}

func TestRRuleToICalRoundTrip(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	rule := &jscal.RecurrenceRule{
		Frequency: "monthly",
		Interval:  jscal.Int(3),
		ByDate:    []int{1, 15, -1},
	}
	value, ok := RRuleToICal(c, rule)
	require.True(t, ok)
	assert.False(t, c.HasErrors())
	assert.Contains(t, value, "FREQ=MONTHLY")
	assert.Contains(t, value, "INTERVAL=3")
	assert.Contains(t, value, "BYMONTHDAY=1,15,-1")

	reparsed, err := c.RRuleFromICal(value)
	require.NoError(t, err)
	assert.Equal(t, "monthly", reparsed.Frequency)
	assert.Equal(t, []int{-1, 1, 15}, reparsed.ByDate)
}

func TestRRuleToICalRejectsCountAndUntilTogether(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	rule := &jscal.RecurrenceRule{
		Frequency: "daily",
		Count:     jscal.Int(5),
		Until:     jscal.Str("2026-01-01T00:00:00Z"),
	}
	_, ok := RRuleToICal(c, rule)
	assert.False(t, ok)
	assert.True(t, c.HasErrors())
}

func TestRRuleToICalRejectsOutOfRangeByMonthDay(t *testing.T) {
	c := NewContext(tzcache.New(), nil)
	rule := &jscal.RecurrenceRule{
		Frequency: "monthly",
		ByDate:    []int{0, 40},
	}
	_, ok := RRuleToICal(c, rule)
	assert.False(t, ok)
	assert.True(t, c.HasErrors())
}

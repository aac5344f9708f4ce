package testutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClock_StartsAtEpoch(t *testing.T) {
	c := NewClock(time.Time{})
	assert.Equal(t, Epoch, c.Now())
}

func TestClock_AdvanceMovesNow(t *testing.T) {
	c := NewClock(time.Time{})
	c.Advance(1500 * time.Millisecond)
	assert.Equal(t, Epoch.Add(1500*time.Millisecond), c.Now())
}

func TestClock_AfterFuncFiresOnlyWhenDue(t *testing.T) {
	c := NewClock(time.Time{})
	var fired []string

	c.AfterFunc(2*time.Second, func() { fired = append(fired, "late") })
	c.AfterFunc(time.Second, func() { fired = append(fired, "early") })
	require.Equal(t, 2, c.Pending())

	c.Advance(999 * time.Millisecond)
	assert.Empty(t, fired)

	c.Advance(time.Millisecond)
	assert.Equal(t, []string{"early"}, fired)

	c.Advance(5 * time.Second)
	assert.Equal(t, []string{"early", "late"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestClock_TimerMayScheduleAnother(t *testing.T) {
	c := NewClock(time.Time{})
	count := 0
	c.AfterFunc(time.Second, func() {
		count++
		c.AfterFunc(time.Second, func() { count++ })
	})

	c.Advance(time.Second)
	assert.Equal(t, 1, count)
	c.Advance(time.Second)
	assert.Equal(t, 2, count)
}

func TestSequenceIDs(t *testing.T) {
	g := NewSequenceIDs("toast")
	assert.Equal(t, "toast-1", g.Generate())
	assert.Equal(t, "toast-2", g.Generate())

	d := NewSequenceIDs("")
	assert.Equal(t, "id-1", d.Generate())
}

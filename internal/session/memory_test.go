package session

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemory_GetAbsentReturnsSentinel(t *testing.T) {
	m := NewMemory(nil)
	assert.Equal(t, Sentinel, m.GetField(FieldSuspendData))
}

func TestMemory_SetGetCommit(t *testing.T) {
	m := NewMemory(nil)
	ctx := context.Background()

	require.NoError(t, m.SetField(FieldLocation, "3"))
	assert.Equal(t, "3", m.GetField(FieldLocation))

	require.NoError(t, m.Commit(ctx))
	assert.Equal(t, 1, m.Commits())
}

func TestMemory_TerminateDeactivates(t *testing.T) {
	m := NewMemory(map[string]string{FieldLocation: "1"})
	ctx := context.Background()

	require.NoError(t, m.Terminate(ctx))

	assert.False(t, m.IsActive())
	assert.False(t, Live(m))
	assert.Equal(t, Sentinel, m.GetField(FieldLocation))
	assert.ErrorIs(t, m.SetField(FieldLocation, "2"), ErrTerminated)
	assert.ErrorIs(t, m.Commit(ctx), ErrTerminated)
	assert.Equal(t, "1", m.Snapshot()[FieldLocation])
}

func TestFields_CountTracksIndexedWrites(t *testing.T) {
	f := NewFields(nil)

	require.NoError(t, f.Set("cmi.interactions.0.id", "q1"))
	require.NoError(t, f.Set("cmi.interactions.2.id", "q3"))
	require.NoError(t, f.Set("cmi.interactions.1.id", "q2"))

	count, ok := f.Get("cmi.interactions._count")
	require.True(t, ok)
	assert.Equal(t, "3", count)
}

func TestFields_CountIsReadOnly(t *testing.T) {
	f := NewFields(nil)
	assert.ErrorIs(t, f.Set("cmi.interactions._count", "9"), ErrReadOnly)
	assert.ErrorIs(t, f.Set("cmi.interactions._children", "id"), ErrReadOnly)
}

func TestFields_DirtyAndClean(t *testing.T) {
	f := NewFields(map[string]string{FieldLocation: "0"})
	assert.Empty(t, f.Dirty())

	require.NoError(t, f.Set(FieldSuspendData, "{}"))
	require.NoError(t, f.Set(FieldLocation, "1"))
	assert.Equal(t, []string{FieldLocation, FieldSuspendData}, f.Dirty())

	f.MarkClean()
	assert.Empty(t, f.Dirty())
	v, _ := f.Get(FieldLocation)
	assert.Equal(t, "1", v)
}

func TestLive_NilBridge(t *testing.T) {
	var b Bridge
	assert.False(t, Live(b))
}

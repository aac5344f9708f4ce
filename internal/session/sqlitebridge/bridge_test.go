package sqlitebridge

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/axiom/internal/session"
)

// setupTestDB creates a temporary database for testing.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "session.db")
	db, err := Open(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpen_Idempotent(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "session.db")

	db1, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := Open(dbPath)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
}

func TestBegin_RequiresRegistration(t *testing.T) {
	db := setupTestDB(t)
	_, err := db.Begin(context.Background(), "")
	assert.Error(t, err)
}

func TestBridge_ImplementsInterface(t *testing.T) {
	var _ session.Bridge = (*Bridge)(nil)
}

func TestBridge_CommitPersistsAcrossSessions(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	b, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "ab-initio", b.GetField(session.FieldEntry))

	require.NoError(t, b.SetField(session.FieldLocation, "2"))
	require.NoError(t, b.SetField(session.FieldSuspendData, `{"position":2}`))
	require.NoError(t, b.Commit(ctx))
	require.NoError(t, b.Terminate(ctx))
	assert.False(t, b.IsActive())

	again, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "2", again.GetField(session.FieldLocation))
	assert.Equal(t, `{"position":2}`, again.GetField(session.FieldSuspendData))
	assert.Equal(t, "resume", again.GetField(session.FieldEntry))

	attempts, err := db.Attempts(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
}

func TestBridge_UncommittedWritesAreNotPersisted(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	b, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	require.NoError(t, b.SetField(session.FieldLocation, "5"))

	stored, err := db.LoadFields(ctx, "reg-1")
	require.NoError(t, err)
	_, ok := stored[session.FieldLocation]
	assert.False(t, ok)
}

func TestBridge_RegistrationsAreIsolated(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	a, err := db.Begin(ctx, "alpha")
	require.NoError(t, err)
	require.NoError(t, a.SetField(session.FieldLocation, "1"))
	require.NoError(t, a.Commit(ctx))

	b, err := db.Begin(ctx, "beta")
	require.NoError(t, err)
	assert.Equal(t, session.Sentinel, b.GetField(session.FieldLocation))
	require.NoError(t, b.SetField(session.FieldLocation, "9"))
	require.NoError(t, b.Commit(ctx))

	regs, err := db.Registrations(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "beta"}, regs)
}

func TestBridge_InteractionCountPersists(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	b, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	require.NoError(t, session.WriteInteraction(b, session.InteractionFields{ID: "q1", Result: "correct"}))
	require.NoError(t, b.Commit(ctx))

	stored, err := db.LoadFields(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, "1", stored["cmi.interactions._count"])
	assert.Equal(t, "q1", stored["cmi.interactions.0.id"])
}

func TestBridge_TerminatedRejectsWrites(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	b, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	require.NoError(t, b.Terminate(ctx))

	assert.ErrorIs(t, b.SetField(session.FieldLocation, "1"), session.ErrTerminated)
	assert.ErrorIs(t, b.Terminate(ctx), session.ErrTerminated)
	assert.Equal(t, session.Sentinel, b.GetField(session.FieldLocation))
}

func TestDeleteRegistration(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	b, err := db.Begin(ctx, "reg-1")
	require.NoError(t, err)
	require.NoError(t, b.SetField(session.FieldLocation, "1"))
	require.NoError(t, b.Commit(ctx))

	require.NoError(t, db.DeleteRegistration(ctx, "reg-1"))

	stored, err := db.LoadFields(ctx, "reg-1")
	require.NoError(t, err)
	assert.Empty(t, stored)
	attempts, err := db.Attempts(ctx, "reg-1")
	require.NoError(t, err)
	assert.Equal(t, 0, attempts)
}

package sqlitebridge

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/axiom/internal/session"
)

// Bridge is a session.Bridge for one registration backed by a DB.
//
// Thread-safety: Bridge is safe for concurrent use via internal mutex.
type Bridge struct {
	mu           sync.Mutex
	db           *DB
	registration string
	attemptID    string
	fields       *session.Fields
	active       bool
	terminated   bool
	now          func() time.Time
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithClock overrides the clock used for row timestamps.
func WithClock(now func() time.Time) Option {
	return func(b *Bridge) {
		b.now = now
	}
}

// Begin opens a session for registration: stored fields are loaded, an
// attempt row is recorded and cmi.entry reports "resume" when suspend data
// exists, "ab-initio" otherwise.
func (d *DB) Begin(ctx context.Context, registration string, opts ...Option) (*Bridge, error) {
	if registration == "" {
		return nil, fmt.Errorf("begin session: registration is required")
	}

	b := &Bridge{
		db:           d,
		registration: registration,
		attemptID:    uuid.Must(uuid.NewV7()).String(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}

	stored, err := d.LoadFields(ctx, registration)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	if session.Has(stored[session.FieldSuspendData]) {
		stored[session.FieldEntry] = "resume"
	} else {
		stored[session.FieldEntry] = "ab-initio"
	}
	b.fields = session.NewFields(stored)

	_, err = d.db.ExecContext(ctx, `
		INSERT INTO attempts (id, registration, started_at)
		VALUES (?, ?, ?)
	`, b.attemptID, registration, b.stamp())
	if err != nil {
		return nil, fmt.Errorf("begin session: record attempt: %w", err)
	}

	b.active = true
	slog.Info("session opened", "backend", "sqlite", "registration", registration, "attempt", b.attemptID)
	return b, nil
}

// AttemptID returns the id of the attempt row created by Begin.
func (b *Bridge) AttemptID() string {
	return b.attemptID
}

// IsActive implements session.Bridge.
func (b *Bridge) IsActive() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

// GetField implements session.Bridge.
func (b *Bridge) GetField(name string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.active {
		return session.Sentinel
	}
	v, ok := b.fields.Get(name)
	if !ok {
		return session.Sentinel
	}
	return v
}

// SetField implements session.Bridge. The write is staged until Commit.
func (b *Bridge) SetField(name, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usable(); err != nil {
		return err
	}
	return b.fields.Set(name, value)
}

// Commit implements session.Bridge by upserting every staged field in one
// transaction. On failure the staged fields stay dirty for the next Commit.
func (b *Bridge) Commit(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usable(); err != nil {
		return err
	}
	return b.flush(ctx)
}

// Terminate implements session.Bridge.
func (b *Bridge) Terminate(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.usable(); err != nil {
		return err
	}
	if err := b.flush(ctx); err != nil {
		return err
	}

	_, err := b.db.db.ExecContext(ctx, `
		UPDATE attempts SET terminated_at = ? WHERE id = ?
	`, b.stamp(), b.attemptID)
	if err != nil {
		return fmt.Errorf("terminate session: %w", err)
	}

	b.active = false
	b.terminated = true
	slog.Info("session terminated", "backend", "sqlite", "registration", b.registration)
	return nil
}

func (b *Bridge) usable() error {
	if b.terminated {
		return session.ErrTerminated
	}
	if !b.active {
		return session.ErrNotActive
	}
	return nil
}

// flush must be called with b.mu held.
func (b *Bridge) flush(ctx context.Context) error {
	dirty := b.fields.Dirty()
	if len(dirty) == 0 {
		return nil
	}

	tx, err := b.db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit session: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stamp := b.stamp()
	for _, name := range dirty {
		value, _ := b.fields.Get(name)
		_, err := tx.ExecContext(ctx, `
			INSERT INTO fields (registration, name, value, updated_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(registration, name) DO UPDATE
			SET value = excluded.value, updated_at = excluded.updated_at
		`, b.registration, name, value, stamp)
		if err != nil {
			return fmt.Errorf("commit session: write %s: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	b.fields.MarkClean()
	slog.Debug("session committed", "backend", "sqlite", "registration", b.registration, "fields", len(dirty))
	return nil
}

func (b *Bridge) stamp() string {
	return b.now().UTC().Format(time.RFC3339Nano)
}

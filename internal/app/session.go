package app

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/roach88/axiom/internal/session"
	"github.com/roach88/axiom/internal/session/redisbridge"
	"github.com/roach88/axiom/internal/session/sqlitebridge"
)

// Session is an opened session bridge and the backend holding it.
type Session struct {
	Bridge  session.Bridge
	Backend string
	closer  io.Closer
}

// Close releases the backend connection. It does not terminate the
// session; that is the player's job.
func (s *Session) Close() error {
	if s.closer == nil {
		return nil
	}
	err := s.closer.Close()
	s.closer = nil
	return err
}

// Backend is a session store that can list and clear registrations.
type Backend interface {
	Registrations(ctx context.Context) ([]string, error)
	LoadFields(ctx context.Context, registration string) (map[string]string, error)
	Attempts(ctx context.Context, registration string) (int, error)
	DeleteRegistration(ctx context.Context, registration string) error
	Close() error
}

// OpenBackend connects to the durable backend named by dsn. The memory
// backend has nothing to inspect and is rejected.
func OpenBackend(ctx context.Context, dsn string) (Backend, error) {
	switch {
	case strings.HasPrefix(dsn, "sqlite:"):
		db, err := sqlitebridge.Open(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, err
		}
		return db, nil
	case strings.HasPrefix(dsn, "redis://"):
		cfg, err := redisbridge.ParseURL(dsn)
		if err != nil {
			return nil, err
		}
		return redisbridge.Open(ctx, cfg)
	case strings.HasPrefix(dsn, "memory:"):
		return nil, fmt.Errorf("session %q: the memory backend keeps nothing to inspect", dsn)
	}
	return nil, fmt.Errorf("session %q: unsupported backend", dsn)
}

// OpenSession opens a session for registration on the backend named by
// dsn. now stamps sqlite rows; nil uses the wall clock.
func OpenSession(ctx context.Context, dsn, registration string, now func() time.Time) (*Session, error) {
	switch {
	case strings.HasPrefix(dsn, "memory:"):
		return &Session{Bridge: session.NewMemory(nil), Backend: "memory"}, nil

	case strings.HasPrefix(dsn, "sqlite:"):
		db, err := sqlitebridge.Open(strings.TrimPrefix(dsn, "sqlite:"))
		if err != nil {
			return nil, err
		}
		var opts []sqlitebridge.Option
		if now != nil {
			opts = append(opts, sqlitebridge.WithClock(now))
		}
		b, err := db.Begin(ctx, registration, opts...)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Session{Bridge: b, Backend: "sqlite", closer: db}, nil

	case strings.HasPrefix(dsn, "redis://"):
		cfg, err := redisbridge.ParseURL(dsn)
		if err != nil {
			return nil, err
		}
		client, err := redisbridge.Open(ctx, cfg)
		if err != nil {
			return nil, err
		}
		b, err := client.Begin(ctx, registration)
		if err != nil {
			client.Close()
			return nil, err
		}
		return &Session{Bridge: b, Backend: "redis", closer: client}, nil
	}
	return nil, fmt.Errorf("session %q: unsupported backend", dsn)
}

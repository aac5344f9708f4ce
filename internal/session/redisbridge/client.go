package redisbridge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/roach88/axiom/internal/session"
)

// ErrConnection is returned when Redis cannot be reached.
var ErrConnection = errors.New("redisbridge: connection failed")

// Client owns the Redis connection pool shared by every Bridge it opens.
type Client struct {
	rdb    *redis.Client
	config Config
}

// Open connects to Redis and checks the connection with PING.
func Open(ctx context.Context, cfg Config) (*Client, error) {
	rdb := redis.NewClient(cfg.options())

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DialTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: %v", ErrConnection, err)
	}

	return &Client{rdb: rdb, config: cfg}, nil
}

// Close closes the connection pool.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// LoadFields returns every stored field for registration.
func (c *Client) LoadFields(ctx context.Context, registration string) (map[string]string, error) {
	values, err := c.rdb.HGetAll(ctx, sessionKey(registration)).Result()
	if err != nil {
		return nil, fmt.Errorf("load fields: %w", err)
	}
	return values, nil
}

// Registrations lists the registrations with stored fields, sorted.
func (c *Client) Registrations(ctx context.Context) ([]string, error) {
	var regs []string
	iter := c.rdb.Scan(ctx, 0, PrefixSession+"*", 100).Iterator()
	for iter.Next(ctx) {
		regs = append(regs, strings.TrimPrefix(iter.Val(), PrefixSession))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list registrations: %w", err)
	}
	sort.Strings(regs)
	return regs, nil
}

// Attempts returns how many attempts were opened for registration.
func (c *Client) Attempts(ctx context.Context, registration string) (int, error) {
	n, err := c.rdb.LLen(ctx, attemptsKey(registration)).Result()
	if err != nil {
		return 0, fmt.Errorf("count attempts: %w", err)
	}
	return int(n), nil
}

// DeleteRegistration removes every field and attempt of registration.
func (c *Client) DeleteRegistration(ctx context.Context, registration string) error {
	if err := c.rdb.Del(ctx, sessionKey(registration), attemptsKey(registration)).Err(); err != nil {
		return fmt.Errorf("delete registration: %w", err)
	}
	return nil
}

// Bridge is a session.Bridge for one registration stored in Redis.
//
// Thread-safety: Bridge is safe for concurrent use via internal mutex.
type Bridge struct {
	mu           sync.Mutex
	client       *Client
	registration string
	attemptID    string
	fields       *session.Fields
	active       bool
	terminated   bool
}

// Begin opens a session for registration. cmi.entry reports "resume" when
// suspend data is stored, "ab-initio" otherwise.
func (c *Client) Begin(ctx context.Context, registration string) (*Bridge, error) {
	if registration == "" {
		return nil, fmt.Errorf("begin session: registration is required")
	}

	stored, err := c.LoadFields(ctx, registration)
	if err != nil {
		return nil, fmt.Errorf("begin session: %w", err)
	}
	if session.Has(stored[session.FieldSuspendData]) {
		stored[session.FieldEntry] = "resume"
	} else {
		stored[session.FieldEntry] = "ab-initio"
	}

	b := &Bridge{
		client:       c,
		registration: registration,
		attemptID:    uuid.Must(uuid.NewV7()).String(),
		fields:       session.NewFields(stored),
		active:       true,
	}

	if err := c.rdb.RPush(ctx, attemptsKey(registration), b.attemptID).Err(); err != nil {
		return nil, fmt.Errorf("begin session: record attempt: %w", err)
	}

	slog.Info("session opened", "backend", "redis", "registration", registration, "attempt", b.attemptID)
	return b, nil
}

// AttemptID returns the id recorded by Begin.
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

// Commit implements session.Bridge.
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
	b.active = false
	b.terminated = true
	slog.Info("session terminated", "backend", "redis", "registration", b.registration)
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

	values := make([]any, 0, len(dirty)*2)
	for _, name := range dirty {
		v, _ := b.fields.Get(name)
		values = append(values, name, v)
	}

	key := sessionKey(b.registration)
	ttl := b.client.config.SessionTTL
	write := func() (struct{}, error) {
		_, err := b.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.HSet(ctx, key, values...)
			if ttl > 0 {
				pipe.Expire(ctx, key, ttl)
			}
			return nil
		})
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(ctx.Err())
		}
		return struct{}{}, err
	}

	_, err := backoff.Retry(ctx, write,
		backoff.WithBackOff(commitBackOff()),
		backoff.WithMaxTries(max(b.client.config.CommitAttempts, 1)),
		backoff.WithNotify(func(err error, wait time.Duration) {
			slog.Warn("session commit retry", "registration", b.registration, "wait", wait, "error", err)
		}),
	)
	if err != nil {
		return fmt.Errorf("commit session: %w", err)
	}

	b.fields.MarkClean()
	slog.Debug("session committed", "backend", "redis", "registration", b.registration, "fields", len(dirty))
	return nil
}

func commitBackOff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 50 * time.Millisecond
	eb.MaxInterval = time.Second
	return eb
}

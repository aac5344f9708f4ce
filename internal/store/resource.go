package store

import (
	"context"
	"log/slog"
	"time"
)

// Status is the lifecycle state of an async Resource.
type Status string

const (
	StatusIdle    Status = "idle"
	StatusLoading Status = "loading"
	StatusSyncing Status = "syncing"
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// DefaultQueryTTL is the cache lifetime used when Query is given ttl <= 0.
const DefaultQueryTTL = 30 * time.Second

// Resource is the value shape written by Query and Mutate.
type Resource struct {
	Data      any
	Status    Status
	Err       error
	Timestamp time.Time
}

// Fresh reports whether r is a successful result younger than ttl at now.
func (r Resource) Fresh(now time.Time, ttl time.Duration) bool {
	return r.Status == StatusSuccess && !r.Timestamp.IsZero() && now.Sub(r.Timestamp) < ttl
}

// Fetcher loads data for Query. It should honour ctx cancellation.
type Fetcher func(ctx context.Context) (any, error)

// RemoteTask performs the remote side of a Mutate.
type RemoteTask func(ctx context.Context) error

// Query returns cached data for key when a fresh success Resource is stored;
// otherwise it marks the key loading (keeping the previous Data), runs fetch
// and stores the outcome.
//
// On fetch failure the previous Resource is stored with StatusError and the
// error, and the error is returned to the caller.
//
// Concurrent calls for the same key are not de-duplicated (see package doc).
func (s *Store) Query(ctx context.Context, key string, fetch Fetcher, ttl time.Duration) (any, error) {
	if ttl <= 0 {
		ttl = DefaultQueryTTL
	}
	now := s.now()

	current, _ := s.Get(key).(Resource)
	if current.Fresh(now, ttl) {
		slog.Debug("query cache hit", "key", key)
		return current.Data, nil
	}

	loading := current
	loading.Status = StatusLoading
	loading.Err = nil
	s.Set(key, loading)

	data, err := fetch(ctx)
	if err != nil {
		slog.Error("query failed", "key", key, "error", err)
		failed := current
		failed.Status = StatusError
		failed.Err = err
		s.Set(key, failed)
		return nil, err
	}

	s.Set(key, Resource{
		Data:      data,
		Status:    StatusSuccess,
		Timestamp: now,
	})
	return data, nil
}

// Invalidate clears the timestamp of a stored Resource so the next Query
// refetches. Non-resource values are left alone.
func (s *Store) Invalidate(key string) {
	r, ok := s.Get(key).(Resource)
	if !ok {
		return
	}
	r.Timestamp = time.Time{}
	s.Set(key, r)
}

// Mutate applies payload optimistically and then runs remote.
//
// The stored value is first normalised to a Resource (a raw value becomes
// Data with StatusIdle). When both payload and the current Data are
// map[string]any the payload is shallow-merged; otherwise it replaces Data.
// The optimistic Resource is written with StatusSyncing before remote runs.
//
// On success the status becomes StatusSuccess. On failure the exact
// pre-mutation value is restored (a StatusSyncing snapshot is coerced to
// StatusSuccess), a failure notification is raised, and Mutate returns
// false. The remote error is logged, not returned.
func (s *Store) Mutate(ctx context.Context, key string, payload any, remote RemoteTask) bool {
	backup := s.Get(key)

	current, ok := backup.(Resource)
	if !ok {
		current = Resource{Data: backup, Status: StatusIdle}
	}

	optimistic := current
	optimistic.Data = mergeData(current.Data, payload)
	optimistic.Status = StatusSyncing
	s.Set(key, optimistic)

	if err := remote(ctx); err != nil {
		restored := backup
		if r, ok := backup.(Resource); ok && r.Status == StatusSyncing {
			r.Status = StatusSuccess
			restored = r
		}
		s.Set(key, restored)
		s.Notify("Mutation Failed: Rolling back.", KindError, DefaultNotifyDuration)
		slog.Error("mutation failed, rolled back", "key", key, "error", err)
		return false
	}

	succ, ok := s.Get(key).(Resource)
	if !ok {
		succ = Resource{Data: s.Get(key)}
	}
	succ.Status = StatusSuccess
	s.Set(key, succ)
	return true
}

// mergeData shallow-merges payload into base when both are maps,
// otherwise returns payload.
func mergeData(base, payload any) any {
	p, ok := payload.(map[string]any)
	if !ok {
		return payload
	}
	merged := make(map[string]any, len(p))
	if b, ok := base.(map[string]any); ok {
		for k, v := range b {
			merged[k] = v
		}
	}
	for k, v := range p {
		merged[k] = v
	}
	return merged
}

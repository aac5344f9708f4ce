package store

import (
	"log/slog"
	"reflect"
	"sync"
	"time"
)

// Event is delivered to listeners once per committed write.
type Event struct {
	Key   string
	Value any
}

// Listener receives store events.
type Listener func(Event)

// Scheduler runs fn after d has elapsed. Used for notification auto-dismiss.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func())
}

// Persister mirrors selected keys to a durable location.
// Load is consulted once at construction; Save is called after each
// committed write of a persisted key.
type Persister interface {
	Load(key string) (any, bool)
	Save(key string, value any)
}

type subscription struct {
	id uint64
	fn Listener
}

// Store is the reactive key/value store.
//
// Thread-safety model:
//   - Get/Set/Update/Subscribe/Query/Mutate/Notify: safe from any goroutine
//   - Listeners run on the writer's goroutine, outside the store lock
//
// INVARIANTS:
//   - A write deeply equal to the current value publishes nothing
//   - Each committed write publishes exactly one Event
//   - Listeners are called in subscription order
type Store struct {
	mu      sync.Mutex
	values  map[string]any
	subs    []subscription
	nextSub uint64

	now       func() time.Time
	ids       IDGenerator
	scheduler Scheduler
	persister Persister
	persisted map[string]bool
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for query timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithIDGenerator overrides the notification id generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(s *Store) {
		s.ids = g
	}
}

// WithScheduler overrides the timer used for notification auto-dismiss.
func WithScheduler(sch Scheduler) Option {
	return func(s *Store) {
		s.scheduler = sch
	}
}

// WithPersistence mirrors the given keys through p.
func WithPersistence(p Persister, keys ...string) Option {
	return func(s *Store) {
		s.persister = p
		for _, k := range keys {
			s.persisted[k] = true
		}
	}
}

// WithValues seeds additional initial values on top of the defaults.
func WithValues(values map[string]any) Option {
	return func(s *Store) {
		for k, v := range values {
			s.values[k] = v
		}
	}
}

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) {
	time.AfterFunc(d, fn)
}

// New creates a store holding the default keys.
func New(opts ...Option) *Store {
	s := &Store{
		values:    defaultValues(),
		now:       time.Now,
		ids:       UUIDv7Generator{},
		scheduler: timeScheduler{},
		persisted: make(map[string]bool),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.persister != nil {
		for key := range s.persisted {
			if v, ok := s.persister.Load(key); ok {
				s.values[key] = v
			}
		}
	}

	return s
}

// Get returns the current value for key, or nil when unset.
func (s *Store) Get(key string) any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.values[key]
}

// Lookup returns the current value and whether the key has ever been written.
func (s *Store) Lookup(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

// Set writes value under key and publishes an Event.
// Returns false when the value is deeply equal to the current one, in which
// case nothing is written and no listener runs.
func (s *Store) Set(key string, value any) bool {
	return s.Update(key, func(any) any { return value })
}

// Update replaces the value under key with fn(current) as one atomic step,
// so concurrent read-modify-write callers never lose each other's changes.
// fn runs under the store lock and must not call back into the Store.
// The equality and publish rules are those of Set.
func (s *Store) Update(key string, fn func(current any) any) bool {
	s.mu.Lock()
	value := fn(s.values[key])
	if reflect.DeepEqual(s.values[key], value) {
		s.mu.Unlock()
		return false
	}
	s.values[key] = value
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	persist := s.persister != nil && s.persisted[key]
	s.mu.Unlock()

	if persist {
		s.persister.Save(key, value)
	}

	slog.Debug("store delta", "key", key)

	ev := Event{Key: key, Value: value}
	for _, sub := range subs {
		sub.fn(ev)
	}
	return true
}

// Subscribe registers fn for every key's changes.
// The returned function removes only this subscription; calling it more
// than once is harmless.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	s.nextSub++
	id := s.nextSub
	s.subs = append(s.subs, subscription{id: id, fn: fn})
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		for i, sub := range s.subs {
			if sub.id == id {
				s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
				return
			}
		}
	}
}

// SubscribeKey is Subscribe filtered to a single key.
func (s *Store) SubscribeKey(key string, fn func(value any)) func() {
	return s.Subscribe(func(ev Event) {
		if ev.Key == key {
			fn(ev.Value)
		}
	})
}

// Select applies fn to the current value of key.
func (s *Store) Select(key string, fn func(any) any) any {
	return fn(s.Get(key))
}

// GetAs returns the value under key asserted to T.
// The boolean is false when the key is unset or holds another type.
func GetAs[T any](s *Store, key string) (T, bool) {
	v, ok := s.Get(key).(T)
	return v, ok
}

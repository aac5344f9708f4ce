// Package redisbridge implements session.Bridge on top of Redis.
//
// Each registration owns one hash, "axiom:session:<registration>", holding
// every data model field, and one list, "axiom:attempts:<registration>",
// holding the id of every attempt opened against it. Commits write the
// dirty fields in a MULTI/EXEC pipeline and are retried with exponential
// backoff on transient failures.
package redisbridge

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection configuration.
type Config struct {
	// Host is the Redis server hostname.
	Host string

	// Port is the Redis server port.
	Port int

	// Password is the Redis authentication password (empty if no auth).
	Password string

	// DB is the Redis database number.
	DB int

	// PoolSize is the maximum number of socket connections.
	PoolSize int

	// DialTimeout is the timeout for establishing new connections.
	DialTimeout time.Duration

	// ReadTimeout is the timeout for socket reads.
	ReadTimeout time.Duration

	// WriteTimeout is the timeout for socket writes.
	WriteTimeout time.Duration

	// SessionTTL expires idle session hashes. Zero keeps them forever.
	SessionTTL time.Duration

	// CommitAttempts bounds the retries of a failed commit.
	CommitAttempts uint
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	return Config{
		Host:           "localhost",
		Port:           6379,
		DB:             0,
		PoolSize:       4,
		DialTimeout:    5 * time.Second,
		ReadTimeout:    3 * time.Second,
		WriteTimeout:   3 * time.Second,
		SessionTTL:     30 * 24 * time.Hour,
		CommitAttempts: 4,
	}
}

// Addr returns the Redis address in "host:port" format.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c Config) options() *redis.Options {
	return &redis.Options{
		Addr:         c.Addr(),
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		DialTimeout:  c.DialTimeout,
		ReadTimeout:  c.ReadTimeout,
		WriteTimeout: c.WriteTimeout,
	}
}

// ParseURL builds a Config from a "redis://[:password@]host[:port][/db]" URL,
// starting from DefaultConfig.
func ParseURL(raw string) (Config, error) {
	cfg := DefaultConfig()

	u, err := url.Parse(raw)
	if err != nil {
		return cfg, fmt.Errorf("parse redis url: %w", err)
	}
	if u.Scheme != "redis" {
		return cfg, fmt.Errorf("parse redis url: unsupported scheme %q", u.Scheme)
	}
	if h := u.Hostname(); h != "" {
		cfg.Host = h
	}
	if p := u.Port(); p != "" {
		port, err := strconv.Atoi(p)
		if err != nil {
			return cfg, fmt.Errorf("parse redis url: port: %w", err)
		}
		cfg.Port = port
	}
	if u.User != nil {
		if pw, ok := u.User.Password(); ok {
			cfg.Password = pw
		}
	}
	if db := trimSlash(u.Path); db != "" {
		n, err := strconv.Atoi(db)
		if err != nil {
			return cfg, errors.New("parse redis url: db must be a number")
		}
		cfg.DB = n
	}
	return cfg, nil
}

func trimSlash(s string) string {
	for len(s) > 0 && s[0] == '/' {
		s = s[1:]
	}
	return s
}

// Key prefixes for namespacing Redis keys.
const (
	PrefixSession  = "axiom:session:"
	PrefixAttempts = "axiom:attempts:"
)

func sessionKey(registration string) string {
	return PrefixSession + registration
}

func attemptsKey(registration string) string {
	return PrefixAttempts + registration
}

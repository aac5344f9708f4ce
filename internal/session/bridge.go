package session

import (
	"context"
	"strconv"
)

// Bridge is the capability the course engine uses to persist a session.
//
// GetField returns Sentinel for absent fields or an inactive bridge.
// SetField stages a value; Commit makes staged values durable.
// Terminate commits and closes the session; the bridge is inactive after it.
type Bridge interface {
	IsActive() bool
	GetField(name string) string
	SetField(name, value string) error
	Commit(ctx context.Context) error
	Terminate(ctx context.Context) error
}

// Live reports whether b is non-nil and active.
func Live(b Bridge) bool {
	return b != nil && b.IsActive()
}

// Count reads a collection's "_count" as an int, treating absence as zero.
func Count(b Bridge, collection string) int {
	n, err := strconv.Atoi(b.GetField(CountField(collection)))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// Has reports whether a GetField result carries a real value.
func Has(value string) bool {
	return value != "" && value != Sentinel
}

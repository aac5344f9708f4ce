package player

import (
	"context"
	"fmt"
	"os"
)

// Source supplies the raw course document.
type Source interface {
	// Name identifies the document in validation errors.
	Name() string
	Fetch(ctx context.Context) ([]byte, error)
}

// FileSource reads the course document from a local path.
type FileSource string

// Name implements Source.
func (s FileSource) Name() string {
	return string(s)
}

// Fetch implements Source.
func (s FileSource) Fetch(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(string(s))
	if err != nil {
		return nil, fmt.Errorf("read course: %w", err)
	}
	return data, nil
}

// BytesSource serves an in-memory document.
type BytesSource struct {
	Filename string
	Data     []byte
}

// Name implements Source.
func (s BytesSource) Name() string {
	return s.Filename
}

// Fetch implements Source.
func (s BytesSource) Fetch(context.Context) ([]byte, error) {
	return s.Data, nil
}

package harness

import (
	"context"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// RunWithGolden executes s and compares the suspend data it leaves behind
// against testdata/golden/{s.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the run result so callers can make further checks. Setup
// failures are returned as errors; a golden mismatch fails t.
func RunWithGolden(t *testing.T, s *Script) (*Result, error) {
	t.Helper()

	result, err := Run(context.Background(), s)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, s.Name, result)
	return result, nil
}

// AssertGolden compares result's suspend data with the named golden file.
// The suspend data is compared byte for byte: it is the wire format any
// earlier reader of the session must still understand.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.SuspendData))
}

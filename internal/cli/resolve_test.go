package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const resolveConfig = `
base_path: /app/
api_base: https://api.example
route_depths:
  default: 1
  stats/:learner: 2
routes:
  home: { view: home }
  course: { view: course }
  glossary: { view: glossary }
  login: { view: login }
  not-found: { view: not-found }
  stats/:learner:
    view: stats
    data_key: stats
    endpoint: /stats/:learner
    guarded: true
`

func runResolveCmd(t *testing.T, format string, args ...string) (string, error) {
	t.Helper()
	buf := &bytes.Buffer{}
	opts := &RootOptions{Format: format}
	if len(args) > 1 {
		opts.Config = args[1]
	}
	cmd := NewResolveCommand(opts)
	cmd.SetOut(buf)
	cmd.SetArgs(args[:1])
	err := cmd.Execute()
	return buf.String(), err
}

func TestResolveExactSlug(t *testing.T) {
	out, err := runResolveCmd(t, "text", "/course?page=2")
	require.NoError(t, err)

	assert.Contains(t, out, "Slug:     course\n")
	assert.Contains(t, out, "View:     course\n")
	assert.Contains(t, out, "URL:      /course\n")
	assert.Contains(t, out, "Position: 1\n")
}

func TestResolveFallback(t *testing.T) {
	out, err := runResolveCmd(t, "json", "/Café.html")
	require.NoError(t, err)

	var resp struct {
		Data ResolveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "Cafe", resp.Data.Slug)
	assert.Equal(t, "Cafe/Cafe", resp.Data.View)
	assert.True(t, resp.Data.Fallback)
	assert.Equal(t, 99, resp.Data.Position)
}

func TestResolvePatternFromConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axiom.yaml")
	require.NoError(t, os.WriteFile(path, []byte(resolveConfig), 0644))

	out, err := runResolveCmd(t, "json", "/app/stats/ada", path)
	require.NoError(t, err)

	var resp struct {
		Status string        `json:"status"`
		Data   ResolveResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, ResolveResult{
		Path:      "/app/stats/ada",
		URL:       "/app/stats/ada",
		CleanPath: "stats/ada",
		Slug:      "stats/:learner",
		View:      "stats",
		Params:    map[string]string{"learner": "ada"},
		DataKey:   "stats",
		Guarded:   true,
		Depth:     2,
		Position:  99,
	}, resp.Data)
}

func TestResolveBadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "axiom.yaml")
	require.NoError(t, os.WriteFile(path, []byte("base_path: app\n"), 0644))

	_, err := runResolveCmd(t, "text", "/", path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "base_path")
}

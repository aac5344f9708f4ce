package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var passScript = filepath.Join("testdata", "scripts", "knots_pass.yaml")

func TestPlayPassingScript(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{passScript})

	require.NoError(t, cmd.Execute())

	output := buf.String()
	assert.Contains(t, output, "[1 of 4] title-page")
	assert.Contains(t, output, "- Bight: A curved section of rope.")
	assert.Contains(t, output, "✓ knots_pass\n  page 4 of 4, 100% complete, score 100 (passing)\n")
}

func TestPlayQuiet(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{passScript, "--quiet"})

	require.NoError(t, cmd.Execute())
	assert.Equal(t, "✓ knots_pass\n  page 4 of 4, 100% complete, score 100 (passing)\n", buf.String())
}

func TestPlayJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{passScript})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string `json:"status"`
		Data   struct {
			Pass    bool `json:"pass"`
			Summary struct {
				Score   int  `json:"score"`
				Passing bool `json:"passing"`
			} `json:"summary"`
			Fields map[string]string `json:"fields"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Pass)
	assert.Equal(t, 100, resp.Data.Summary.Score)
	assert.Equal(t, "passed", resp.Data.Fields["cmi.success_status"])
}

func TestPlayFailingScript(t *testing.T) {
	path := writeScript(t, t.TempDir(), "wrong_frame", "scorecard")

	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "-q"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "script wrong_frame failed with 1 error(s)")
	assert.Contains(t, buf.String(), "✗ wrong_frame")
}

func TestPlayMissingScript(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/script.yaml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "Error [E020]")
}

func TestPlayLaunchLearner(t *testing.T) {
	course, err := filepath.Abs(filepath.Join("testdata", "course.json"))
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "home.yaml")
	script := fmt.Sprintf("name: home\ncourse: %s\nsteps:\n  - do: navigate\n    path: /glossary\n", course)
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path, "--launch", "https://lms.example/launch?learner_id=grace&auth=secret"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "# Home\nCourse: Knots\nLearner: grace\n")
}

func TestPlayUnsupportedSession(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewPlayCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{passScript, "--session", "postgres://db", "--registration", "r"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, buf.String(), "unsupported backend")
}

func TestPlayThenInspectSQLiteSession(t *testing.T) {
	dsn := "sqlite:" + filepath.Join(t.TempDir(), "sessions.db")

	play := NewPlayCommand(&RootOptions{Format: "text"})
	play.SetOut(&bytes.Buffer{})
	play.SetArgs([]string{passScript, "-q", "--session", dsn, "--registration", "reg-1"})
	require.NoError(t, play.Execute())

	buf := &bytes.Buffer{}
	show := NewSessionCommand(&RootOptions{Format: "json"})
	show.SetOut(buf)
	show.SetArgs([]string{"show", "--session", dsn, "--registration", "reg-1"})
	require.NoError(t, show.Execute())

	var resp struct {
		Status string        `json:"status"`
		Data   SessionReport `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "reg-1", resp.Data.Registration)
	assert.Equal(t, 1, resp.Data.Attempts)
	assert.Equal(t, "passed", resp.Data.Fields["cmi.success_status"])
	assert.Equal(t, "100", resp.Data.Fields["cmi.score.raw"])
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duplicateIDCourse = `{
  "meta": {"title": "Twice"},
  "pages": [
    {"id": "start", "type": "title-page", "title": "One"},
    {"id": "start", "type": "title-page", "title": "Two"}
  ]
}`

func writeCourse(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "course.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestValidateValidCourse(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "course.json")})

	err := cmd.Execute()
	require.NoError(t, err)
	assert.Equal(t, "✓ Course valid: Knots (4 pages)\n", buf.String())
}

func TestValidateValidCourseJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{filepath.Join("testdata", "course.json")})

	require.NoError(t, cmd.Execute())

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.True(t, resp.Data.Valid)
	assert.Equal(t, "Knots", resp.Data.Course)
	assert.Equal(t, 4, resp.Data.Pages)
}

func TestValidateNonExistentFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{"/nonexistent/course.json"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "course not found: /nonexistent/course.json", err.Error())
	assert.Equal(t, "Error [E005]: course not found: /nonexistent/course.json\n", buf.String())
}

func TestValidateInvalidCourse(t *testing.T) {
	path := writeCourse(t, duplicateIDCourse)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "validation failed with 1 error(s)")

	output := buf.String()
	assert.Contains(t, output, "✗ Validation failed")
	assert.Contains(t, output, `pages.1.id: duplicate page id "start" (first used by pages.0)`)
}

func TestValidateInvalidCourseJSON(t *testing.T) {
	path := writeCourse(t, duplicateIDCourse)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "json"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp struct {
		Status string           `json:"status"`
		Data   ValidationResult `json:"data"`
		Error  *CLIError        `json:"error"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	assert.False(t, resp.Data.Valid)
	require.Len(t, resp.Data.Errors, 1)
	assert.Equal(t, "pages.1.id", resp.Data.Errors[0].Path)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeInvalid, resp.Error.Code)
}

func TestValidateMalformedJSON(t *testing.T) {
	path := writeCourse(t, `{"meta": {"title": "Broken"`)

	buf := &bytes.Buffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(buf)
	cmd.SetArgs([]string{path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "✗ Validation failed")
}

func TestValidateMissingArgs(t *testing.T) {
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "accepts 1 arg")
}

// lockedBuffer is written by the watcher goroutine and read by the test.
type lockedBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *lockedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *lockedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestValidateWatchRevalidatesOnSave(t *testing.T) {
	valid, err := os.ReadFile(filepath.Join("testdata", "course.json"))
	require.NoError(t, err)
	path := writeCourse(t, string(valid))

	out := &lockedBuffer{}
	cmd := NewValidateCommand(&RootOptions{Format: "text"})
	cmd.SetOut(out)
	cmd.SetErr(out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- watchValidate(ctx, &ValidateOptions{RootOptions: &RootOptions{Format: "text"}}, path, cmd)
	}()

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("✓ Course valid"))
	}, 2*time.Second, 10*time.Millisecond)

	// Give the watcher time to register before the save.
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte(duplicateIDCourse), 0644))

	require.Eventually(t, func() bool {
		return bytes.Contains([]byte(out.String()), []byte("✗ Validation failed"))
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after cancel")
	}
}

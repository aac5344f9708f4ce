package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "axiom", cmd.Use)
	assert.Contains(t, cmd.Long, "courses")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"validate"},
		{"play"},
		{"test"},
		{"resolve"},
		{"session", "show"},
		{"session", "reset"},
		{"session", "list"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err, "Command %v should exist", path)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	logFormatFlag := cmd.PersistentFlags().Lookup("log-format")
	require.NotNil(t, logFormatFlag)
	assert.Equal(t, "text", logFormatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestPlayCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	playCmd, _, err := cmd.Find([]string{"play"})
	require.NoError(t, err)

	for _, name := range []string{"session", "registration", "launch", "quiet"} {
		assert.NotNil(t, playCmd.Flags().Lookup(name), "play should have --%s", name)
	}
}

func TestInvalidFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"resolve", "/", "--format", "xml"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestInvalidLogFormat(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"resolve", "/", "--log-format", "logfmt"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid log format "logfmt"`)
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		opts      RootOptions
		wantDebug bool
		wantJSON  bool
	}{
		{"text quiet", RootOptions{LogFormat: "text"}, false, false},
		{"text verbose", RootOptions{LogFormat: "text", Verbose: true}, true, false},
		{"json verbose", RootOptions{LogFormat: "json", Verbose: true}, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			logger := newLogger(buf, &tt.opts)

			logger.Debug("route committed", "slug", "course")
			logger.Warn("guard denied", "slug", "stats")

			out := buf.String()
			assert.Contains(t, out, "guard denied")
			assert.Equal(t, tt.wantDebug, bytes.Contains(buf.Bytes(), []byte("route committed")))
			if tt.wantJSON {
				assert.Contains(t, out, `"msg":"guard denied"`)
			} else {
				assert.Contains(t, out, "msg=\"guard denied\"")
			}
		})
	}
}

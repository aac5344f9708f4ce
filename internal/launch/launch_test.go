package launch

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Aliases(t *testing.T) {
	tests := []struct {
		name  string
		query string
		get   func(Params) string
		want  string
	}{
		{"endpoint", "?endpoint=https://lms.example/api", Params.Endpoint, "https://lms.example/api"},
		{"endpoint via url", "url=https://lms.example/api", Params.Endpoint, "https://lms.example/api"},
		{"token via auth", "auth=abc", Params.AuthToken, "abc"},
		{"token", "token=xyz", Params.AuthToken, "xyz"},
		{"learner via actor", "actor=u1", Params.LearnerID, "u1"},
		{"learner via student_id", "student_id=u2", Params.LearnerID, "u2"},
		{"learner precedence", "actor=u1&learner_id=u0", Params.LearnerID, "u0"},
		{"registration via enrollment", "enrollment_id=r9", Params.Registration, "r9"},
		{"activity via sco", "sco_id=s1", Params.ActivityID, "s1"},
		{"activity via course", "course_id=c1", Params.ActivityID, "c1"},
		{"return via camel", "returnUrl=https://lms.example", Params.ReturnURL, "https://lms.example"},
		{"return via exit", "exit_url=https://lms.example/exit", Params.ReturnURL, "https://lms.example/exit"},
		{"learner name", "student_name=Ada%20Lovelace", Params.LearnerName, "Ada Lovelace"},
		{"mode default", "", Params.Mode, ModeNormal},
		{"mode alias", "launch_mode=review", Params.Mode, ModeReview},
		{"empty alias falls through", "endpoint=&url=https://b.example", Params.Endpoint, "https://b.example"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Parse(tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, tt.get(p))
		})
	}
}

func TestDebug(t *testing.T) {
	tests := map[string]bool{
		"":            false,
		"debug":       true,
		"debug=":      true,
		"debug=true":  true,
		"debug=1":     true,
		"debug=false": false,
		"debug=yes":   false,
		"other=1":     false,
	}
	for query, want := range tests {
		p, err := Parse(query)
		require.NoError(t, err)
		assert.Equal(t, want, p.Debug(), "query %q", query)
	}
}

func TestAttempt(t *testing.T) {
	p, _ := Parse("attempt=3")
	n, ok := p.Attempt()
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	p, _ = Parse("attempt=third")
	_, ok = p.Attempt()
	assert.False(t, ok)

	p, _ = Parse("")
	_, ok = p.Attempt()
	assert.False(t, ok)
}

func TestAll_RepeatedKeys(t *testing.T) {
	p, err := Parse("tag=a&tag=b&mode=browse")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"tag":  []string{"a", "b"},
		"mode": "browse",
	}, p.All())
	assert.Equal(t, []string{"a", "b"}, p.GetAll("tag"))
	assert.Equal(t, "a", p.Get("tag", ""))
	assert.Equal(t, "fallback", p.Get("missing", "fallback"))
}

func TestFromURL(t *testing.T) {
	p, err := FromURL("https://cdn.example/course/index.html?registration=r1&attempt=2&debug")
	require.NoError(t, err)

	two := 2
	assert.Equal(t, Summary{
		Debug:        true,
		Registration: "r1",
		Attempt:      &two,
		Mode:         ModeNormal,
	}, p.Summary())
}

func TestParse_Malformed(t *testing.T) {
	_, err := Parse("a=%zz")
	assert.Error(t, err)
}

func TestLogValue_RedactsToken(t *testing.T) {
	p, _ := Parse("token=secret&registration=r1")
	v := p.LogValue()

	assert.Equal(t, slog.KindGroup, v.Kind())
	assert.NotContains(t, v.String(), "secret")
	assert.Contains(t, v.String(), "REDACTED")
	assert.Contains(t, v.String(), "r1")
}

// Package launch parses the query string an LMS appends when it launches
// a course. Each accessor accepts the common SCORM/AICC/xAPI aliases and
// returns the first one present.
package launch

import (
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
)

// Launch modes.
const (
	ModeNormal = "normal"
	ModeBrowse = "browse"
	ModeReview = "review"
)

// Params is a parsed launch query string.
type Params struct {
	values url.Values
}

// Parse parses a raw query string, with or without the leading "?".
func Parse(raw string) (Params, error) {
	values, err := url.ParseQuery(strings.TrimPrefix(raw, "?"))
	if err != nil {
		return Params{}, fmt.Errorf("parse launch params: %w", err)
	}
	return Params{values: values}, nil
}

// FromURL parses the query string of a full launch URL.
func FromURL(raw string) (Params, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Params{}, fmt.Errorf("parse launch url: %w", err)
	}
	return Parse(u.RawQuery)
}

// Get returns the first value of key, or def when absent.
func (p Params) Get(key, def string) string {
	if !p.values.Has(key) {
		return def
	}
	return p.values.Get(key)
}

// Has reports whether key is present, even with an empty value.
func (p Params) Has(key string) bool {
	return p.values.Has(key)
}

// GetAll returns every value of a repeated key.
func (p Params) GetAll(key string) []string {
	return p.values[key]
}

// All returns every parameter. A key given once maps to a string; a
// repeated key maps to a []string.
func (p Params) All() map[string]any {
	out := make(map[string]any, len(p.values))
	for k, vs := range p.values {
		if len(vs) == 1 {
			out[k] = vs[0]
			continue
		}
		out[k] = append([]string(nil), vs...)
	}
	return out
}

// first returns the first non-empty value among keys.
func (p Params) first(keys ...string) string {
	for _, k := range keys {
		if v := p.values.Get(k); v != "" {
			return v
		}
	}
	return ""
}

// Debug is true for "?debug", "?debug=true" and "?debug=1".
func (p Params) Debug() bool {
	if !p.Has("debug") {
		return false
	}
	switch p.values.Get("debug") {
	case "", "true", "1":
		return true
	}
	return false
}

// Endpoint is the LMS API endpoint.
func (p Params) Endpoint() string { return p.first("endpoint", "url") }

// AuthToken is the LMS authentication token.
func (p Params) AuthToken() string { return p.first("auth", "token") }

// LearnerID identifies the learner.
func (p Params) LearnerID() string { return p.first("learner_id", "actor", "student_id") }

// LearnerName is the learner's display name.
func (p Params) LearnerName() string { return p.first("learner_name", "student_name") }

// Registration is the enrollment the session is stored under.
func (p Params) Registration() string { return p.first("registration", "enrollment_id") }

// ActivityID identifies the course or SCO.
func (p Params) ActivityID() string { return p.first("activity_id", "course_id", "sco_id") }

// ReturnURL is where the learner goes after finishing.
func (p Params) ReturnURL() string { return p.first("return_url", "returnUrl", "exit_url") }

// Mode is the launch mode, ModeNormal when absent.
func (p Params) Mode() string {
	if m := p.first("mode", "launch_mode"); m != "" {
		return m
	}
	return ModeNormal
}

// Attempt is the attempt number. The boolean is false when absent or not
// a number.
func (p Params) Attempt() (int, bool) {
	v := p.values.Get("attempt")
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Summary is the SCORM-relevant subset of the launch params.
type Summary struct {
	Debug        bool   `json:"debug"`
	Endpoint     string `json:"endpoint,omitempty"`
	AuthToken    string `json:"auth_token,omitempty"`
	LearnerID    string `json:"learner_id,omitempty"`
	LearnerName  string `json:"learner_name,omitempty"`
	Registration string `json:"registration,omitempty"`
	ActivityID   string `json:"activity_id,omitempty"`
	Attempt      *int   `json:"attempt,omitempty"`
	Mode         string `json:"mode"`
	ReturnURL    string `json:"return_url,omitempty"`
}

// Summary collects every accessor.
func (p Params) Summary() Summary {
	s := Summary{
		Debug:        p.Debug(),
		Endpoint:     p.Endpoint(),
		AuthToken:    p.AuthToken(),
		LearnerID:    p.LearnerID(),
		LearnerName:  p.LearnerName(),
		Registration: p.Registration(),
		ActivityID:   p.ActivityID(),
		Mode:         p.Mode(),
		ReturnURL:    p.ReturnURL(),
	}
	if n, ok := p.Attempt(); ok {
		s.Attempt = &n
	}
	return s
}

// LogValue implements slog.LogValuer. The auth token is never logged.
func (p Params) LogValue() slog.Value {
	s := p.Summary()
	attrs := []slog.Attr{
		slog.Bool("debug", s.Debug),
		slog.String("mode", s.Mode),
	}
	for _, kv := range [][2]string{
		{"endpoint", s.Endpoint},
		{"learner_id", s.LearnerID},
		{"registration", s.Registration},
		{"activity_id", s.ActivityID},
	} {
		if kv[1] != "" {
			attrs = append(attrs, slog.String(kv[0], kv[1]))
		}
	}
	if s.AuthToken != "" {
		attrs = append(attrs, slog.String("auth_token", "REDACTED"))
	}
	return slog.GroupValue(attrs...)
}

package config

import (
	"fmt"
	"slices"
	"sort"
	"strings"
)

// ValidationError is one invalid setting.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid setting.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, err := range e {
		msgs[i] = err.Error()
	}
	return strings.Join(msgs, "; ")
}

// LogLevels are the accepted log_level values.
var LogLevels = []string{"debug", "info", "warn", "error"}

// SessionSchemes are the accepted session DSN prefixes.
var SessionSchemes = []string{"memory:", "sqlite:", "redis://"}

// Validate checks the configuration and returns ValidationErrors, or nil.
func (c *Config) Validate() error {
	var errs ValidationErrors
	add := func(field, format string, args ...any) {
		errs = append(errs, ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if !strings.HasPrefix(c.BasePath, "/") {
		add("base_path", "must start with %q, got %q", "/", c.BasePath)
	}
	for field, slug := range map[string]string{
		"default_route":   c.DefaultRoute,
		"login_route":     c.LoginRoute,
		"not_found_route": c.NotFoundRoute,
	} {
		if slug == "" {
			add(field, "must not be empty")
			continue
		}
		if _, ok := c.Routes[slug]; !ok {
			add(field, "route %q is not declared in routes", slug)
		}
	}

	names := make([]string, 0, len(c.Routes))
	for name := range c.Routes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		r := c.Routes[name]
		if r.View == "" {
			add("routes."+name+".view", "must not be empty")
		}
		if r.Endpoint != "" && r.DataKey == "" {
			add("routes."+name+".data_key", "required when endpoint is set")
		}
		if r.Endpoint != "" && c.APIBase == "" {
			add("routes."+name+".endpoint", "requires api_base")
		}
	}

	if c.QueryTTL < 0 {
		add("query_ttl", "must not be negative")
	}
	if c.NotifyDuration < 0 {
		add("notify_duration", "must not be negative")
	}
	if !hasAnyPrefix(c.Session, SessionSchemes) {
		add("session", "unsupported backend %q (want one of %v)", c.Session, SessionSchemes)
	}
	if strings.HasPrefix(c.Course, "api:") && c.APIBase == "" {
		add("course", "api course %q requires api_base", c.Course)
	}
	if !slices.Contains(LogLevels, strings.ToLower(c.LogLevel)) {
		add("log_level", "must be one of %v, got %q", LogLevels, c.LogLevel)
	}

	if len(errs) == 0 {
		return nil
	}
	sort.SliceStable(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })
	return errs
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

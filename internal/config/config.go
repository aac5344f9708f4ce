// Package config loads the application configuration.
//
// Values are resolved in three layers: defaults, then the config file
// (YAML, TOML or JSON by extension), then AXIOM_* environment variables.
// Launch parameters from the LMS may override the session registration
// on top of that. Validate runs last and reports every problem at once.
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/roach88/axiom/internal/launch"
)

// Duration is a time.Duration read from strings like "30s" in every
// supported format.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Route configures one route of the table.
type Route struct {
	// View is the registered view path.
	View string `yaml:"view" toml:"view" json:"view"`

	// DataKey and Endpoint wire an API loader whose result is cached in
	// the store under DataKey.
	DataKey  string `yaml:"data_key,omitempty" toml:"data_key" json:"data_key,omitempty"`
	Endpoint string `yaml:"endpoint,omitempty" toml:"endpoint" json:"endpoint,omitempty"`

	// Guarded routes require an authenticated learner.
	Guarded bool `yaml:"guarded,omitempty" toml:"guarded" json:"guarded,omitempty"`
}

// Config is the application configuration.
type Config struct {
	BasePath      string `yaml:"base_path" toml:"base_path" json:"base_path"`
	DefaultRoute  string `yaml:"default_route" toml:"default_route" json:"default_route"`
	LoginRoute    string `yaml:"login_route" toml:"login_route" json:"login_route"`
	NotFoundRoute string `yaml:"not_found_route" toml:"not_found_route" json:"not_found_route"`

	QueryTTL       Duration `yaml:"query_ttl" toml:"query_ttl" json:"query_ttl"`
	NotifyDuration Duration `yaml:"notify_duration" toml:"notify_duration" json:"notify_duration"`

	RouteDepths map[string]int   `yaml:"route_depths" toml:"route_depths" json:"route_depths"`
	RouteOrder  map[string]int   `yaml:"route_order" toml:"route_order" json:"route_order"`
	Routes      map[string]Route `yaml:"routes" toml:"routes" json:"routes"`

	// Session is the session backend DSN: "memory:", "sqlite:<path>" or
	// "redis://host:port/db".
	Session      string `yaml:"session" toml:"session" json:"session"`
	Registration string `yaml:"registration" toml:"registration" json:"registration"`

	// Course is a local path, or an endpoint relative to APIBase when it
	// starts with "api:".
	Course  string `yaml:"course" toml:"course" json:"course"`
	APIBase string `yaml:"api_base" toml:"api_base" json:"api_base"`
	Version string `yaml:"version" toml:"version" json:"version"`

	Theme    string `yaml:"theme" toml:"theme" json:"theme"`
	LogLevel string `yaml:"log_level" toml:"log_level" json:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		BasePath:       "/",
		DefaultRoute:   "home",
		LoginRoute:     "login",
		NotFoundRoute:  "not-found",
		QueryTTL:       Duration(30 * time.Second),
		NotifyDuration: Duration(3 * time.Second),
		RouteDepths: map[string]int{
			"home":    0,
			"default": 1,
		},
		RouteOrder: map[string]int{
			"home":     0,
			"course":   1,
			"glossary": 2,
		},
		Routes: map[string]Route{
			"home":      {View: "home"},
			"course":    {View: "course"},
			"glossary":  {View: "glossary"},
			"login":     {View: "login"},
			"not-found": {View: "not-found"},
		},
		Session:  "memory:",
		Version:  "1.0.0-axiom",
		Theme:    "dark",
		LogLevel: "info",
	}
}

// Load reads path over the defaults, applies environment overrides and
// validates. An empty path yields the defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.ApplyEnv(os.Getenv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode parses data by the extension of path. Unknown keys are errors.
func decode(path string, data []byte, cfg *Config) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode YAML %s: %w", path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(data), cfg)
		if err != nil {
			return fmt.Errorf("decode TOML %s: %w", path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return fmt.Errorf("decode TOML %s: unknown key %q", path, undecoded[0].String())
		}
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return fmt.Errorf("decode JSON %s: %w", path, err)
		}
	default:
		return fmt.Errorf("config %s: unsupported extension %q (want .yaml, .yml, .toml or .json)", path, ext)
	}
	return nil
}

// ApplyEnv overrides fields from AXIOM_* variables read through getenv.
func (c *Config) ApplyEnv(getenv func(string) string) {
	overrides := []struct {
		name  string
		field *string
	}{
		{"AXIOM_BASE_PATH", &c.BasePath},
		{"AXIOM_SESSION", &c.Session},
		{"AXIOM_REGISTRATION", &c.Registration},
		{"AXIOM_COURSE", &c.Course},
		{"AXIOM_API_BASE", &c.APIBase},
		{"AXIOM_LOG_LEVEL", &c.LogLevel},
	}
	for _, o := range overrides {
		if v := getenv(o.name); v != "" {
			*o.field = v
		}
	}
}

// ApplyLaunch overrides fields from LMS launch parameters.
func (c *Config) ApplyLaunch(p launch.Params) {
	if reg := p.Registration(); reg != "" {
		c.Registration = reg
	}
	if ep := p.Endpoint(); ep != "" {
		c.APIBase = ep
	}
	if p.Debug() {
		c.LogLevel = "debug"
	}
}

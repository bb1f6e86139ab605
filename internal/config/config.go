// Package config handles loading the application's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"fedirelay/internal/model"
)

// Duration wraps time.Duration so values like "1s" decode from YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

// Main holds the stream connection and gating settings.
type Main struct {
	Instance          string   `yaml:"instance"`
	Token             string   `yaml:"token"`
	User              string   `yaml:"user"`
	List              string   `yaml:"list"`
	AutoReconnect     bool     `yaml:"auto_reconnect"`
	ReconnectDelay    Duration `yaml:"reconnect_delay"`
	ExcludeVisibility []string `yaml:"exclude_visibility"`
	LogLevel          string   `yaml:"loglevel"`
}

// Filter is one named filter section. Every filter type reads its own
// subset of keys; unrecognized keys are ignored by the YAML decoder.
type Filter struct {
	Type       string   `yaml:"type"`
	List       []string `yaml:"list"`
	ValidMedia []string `yaml:"valid_media"`
	Mode       string   `yaml:"mode"`
	Regexp     string   `yaml:"regexp"`
	Tags       []string `yaml:"tags"`
	Options    []string `yaml:"options"`
	Filters    []string `yaml:"filters"`
	Operator   string   `yaml:"operator"`
}

// Sink is one delivery destination. Sinks are an ordered list so dispatch
// results stay in declaration order.
type Sink struct {
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Filters []string `yaml:"filters"`

	// telegram
	Token    string `yaml:"token"`
	Chat     int64  `yaml:"chat"`
	Template string `yaml:"template"`
	Silent   *bool  `yaml:"silent"`

	// discord
	Webhook string `yaml:"webhook"`
}

// Config holds the full application configuration.
type Config struct {
	Main    Main              `yaml:"main"`
	Filters map[string]Filter `yaml:"filters"`
	Sinks   []Sink            `yaml:"sinks"`
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates raw YAML configuration.
func Parse(data []byte) (*Config, error) {
	cfg := &Config{
		Main: Main{
			ReconnectDelay:    Duration(1 * time.Second),
			ExcludeVisibility: []string{string(model.VisibilityDirect)},
			LogLevel:          "info",
		},
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch {
	case c.Main.Instance == "":
		return fmt.Errorf("main: instance is required")
	case c.Main.Token == "":
		return fmt.Errorf("main: token is required")
	case c.Main.User == "":
		return fmt.Errorf("main: user is required")
	}

	for _, v := range c.Main.ExcludeVisibility {
		if _, ok := model.ParseVisibility(v); !ok {
			return fmt.Errorf("main: unknown visibility %q in exclude_visibility", v)
		}
	}

	for name, f := range c.Filters {
		if f.Type == "" {
			return fmt.Errorf("filter %q: type is required", name)
		}
	}

	if len(c.Sinks) == 0 {
		return fmt.Errorf("at least one sink is required")
	}
	seen := make(map[string]bool, len(c.Sinks))
	for i, s := range c.Sinks {
		if s.Name == "" {
			return fmt.Errorf("sink #%d: name is required", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("sink %q: duplicate name", s.Name)
		}
		seen[s.Name] = true

		switch s.Type {
		case "telegram":
			if s.Token == "" || s.Chat == 0 {
				return fmt.Errorf("sink %q: telegram requires token and chat", s.Name)
			}
		case "discord":
			if s.Webhook == "" {
				return fmt.Errorf("sink %q: discord requires webhook", s.Name)
			}
		case "":
			return fmt.Errorf("sink %q: type is required", s.Name)
		default:
			return fmt.Errorf("sink %q: unknown type %q", s.Name, s.Type)
		}
	}
	return nil
}

// ExcludedVisibilities returns the gate's visibility exclusion set.
func (c *Config) ExcludedVisibilities() map[model.Visibility]bool {
	out := make(map[model.Visibility]bool, len(c.Main.ExcludeVisibility))
	for _, v := range c.Main.ExcludeVisibility {
		if vis, ok := model.ParseVisibility(v); ok {
			out[vis] = true
		}
	}
	return out
}

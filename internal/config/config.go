// Package config loads the midiclock YAML configuration.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no --config flag is given.
const DefaultPath = "midiclock.yaml"

// Config holds the settings shared by all commands. Output and Input name a
// port either by index ("0") or by name.
type Config struct {
	Output       string        `yaml:"output"`
	Input        string        `yaml:"input"`
	Channel      int           `yaml:"channel"`
	BPM          float64       `yaml:"bpm"`
	Listen       string        `yaml:"listen"`
	LogLevel     string        `yaml:"log_level"`
	Realtime     bool          `yaml:"realtime"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Channel:      1,
		BPM:          120,
		Listen:       ":8080",
		LogLevel:     "info",
		RetryBackoff: 50 * time.Millisecond,
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.Channel < 1 || c.Channel > 16 {
		return fmt.Errorf("channel %d out of range 1-16", c.Channel)
	}
	if c.BPM <= 0 || math.IsInf(c.BPM, 0) || math.IsNaN(c.BPM) {
		return fmt.Errorf("bpm %v must be greater than zero", c.BPM)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff %v is negative", c.RetryBackoff)
	}
	return nil
}

// PortRef is a port given either by index or by name.
type PortRef struct {
	Index int
	Name  string
}

// ByIndex reports whether the reference is numeric.
func (p PortRef) ByIndex() bool { return p.Name == "" }

// ParsePort interprets s as an index when it is a non-negative integer and
// as a name otherwise.
func ParsePort(s string) (PortRef, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return PortRef{}, errors.New("empty port")
	}
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return PortRef{}, fmt.Errorf("port index %d is negative", n)
		}
		return PortRef{Index: n}, nil
	}
	return PortRef{Name: s}, nil
}

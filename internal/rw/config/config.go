// Package config holds the settings of one simulation run.
//
// Settings come from Defaults, optionally overlaid by a YAML file (Load)
// and then by command-line options. Validate is called once all layers
// are applied.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultBuffer is the sentence the original program shrinks.
const DefaultBuffer = "All work and no play makes Jack a dull boy."

// MaxCheckedTasks is the largest run the race checker watches. Checker
// memory grows with the square of the task count; larger runs go
// unchecked.
const MaxCheckedTasks = 1024

// MaxCount bounds each task count so that Tasks cannot overflow.
const MaxCount = math.MaxInt32

// Config represents the complete run configuration.
type Config struct {
	Readers       int           `yaml:"readers"`         // reader tasks (>= 1)
	Writers       int           `yaml:"writers"`         // writer tasks (>= 1)
	Buffer        string        `yaml:"buffer"`          // initial buffer content
	ReadPause     time.Duration `yaml:"read_pause"`      // pause after each read section
	WritePause    time.Duration `yaml:"write_pause"`     // pause after each write section
	MaxTasks      int           `yaml:"max_tasks"`       // spawn limit, 0 = unlimited
	RacyLoopCheck bool          `yaml:"racy_loop_check"` // check the length outside every permit
	CheckRaces    bool          `yaml:"check_races"`     // wire the happens-before checker
	LogLevel      string        `yaml:"log_level"`       // debug, info, warn, error
	Quiet         bool          `yaml:"quiet"`           // suppress per-transition lines
}

// Defaults returns the configuration of the original program, without
// task counts.
func Defaults() Config {
	return Config{
		Buffer:     DefaultBuffer,
		ReadPause:  time.Second,
		WritePause: time.Second,
		CheckRaces: true,
		LogLevel:   "info",
	}
}

// Load reads a YAML configuration file over Defaults.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is the user's --config argument.
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over Defaults. Unknown keys are rejected.
func Parse(data []byte) (Config, error) {
	cfg := Defaults()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// Validate checks every field and returns the first *ValidationError.
func (c *Config) Validate() error {
	if c.Readers < 1 {
		return &ValidationError{
			Field:      "readers",
			Message:    fmt.Sprintf("must be at least 1, got %d", c.Readers),
			Suggestion: "pass a positive reader count",
		}
	}
	if c.Writers < 1 {
		return &ValidationError{
			Field:      "writers",
			Message:    fmt.Sprintf("must be at least 1, got %d", c.Writers),
			Suggestion: "pass a positive writer count",
		}
	}
	if c.Readers > MaxCount {
		return &ValidationError{Field: "readers", Message: fmt.Sprintf("must be at most %d, got %d", MaxCount, c.Readers)}
	}
	if c.Writers > MaxCount {
		return &ValidationError{Field: "writers", Message: fmt.Sprintf("must be at most %d, got %d", MaxCount, c.Writers)}
	}
	if c.ReadPause < 0 {
		return &ValidationError{Field: "read_pause", Message: "must not be negative, got " + c.ReadPause.String()}
	}
	if c.WritePause < 0 {
		return &ValidationError{Field: "write_pause", Message: "must not be negative, got " + c.WritePause.String()}
	}
	if c.MaxTasks < 0 {
		return &ValidationError{
			Field:      "max_tasks",
			Message:    fmt.Sprintf("must not be negative, got %d", c.MaxTasks),
			Suggestion: "use 0 for no limit",
		}
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return &ValidationError{
			Field:      "log_level",
			Message:    err.Error(),
			Suggestion: "use one of debug, info, warn, error",
		}
	}
	return nil
}

// Tasks returns the total task count.
func (c *Config) Tasks() int {
	return c.Readers + c.Writers
}

// RaceCheckEnabled reports whether the race checker is wired: CheckRaces
// is set and the run has at most MaxCheckedTasks tasks.
func (c *Config) RaceCheckEnabled() bool {
	return c.CheckRaces && c.Tasks() <= MaxCheckedTasks
}

// SlogLevel returns the configured log level. Call Validate first; an
// unknown level maps to info.
func (c *Config) SlogLevel() slog.Level {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

// ParseLevel maps a level name to a slog.Level. The empty string is info.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", name)
	}
}

package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"
)

// ColorMode selects when diagnostics are colored
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// DefaultLanguageConstraint accepts every 1.x language version
const DefaultLanguageConstraint = ">= 1.0.0, < 2.0.0"

// Duration is a time.Duration written as a string such as "1.5s" in config
// files.
type Duration time.Duration

// String implements fmt.Stringer
func (d Duration) String() string { return time.Duration(d).String() }

// MarshalJSON implements json.Marshaler
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON implements json.Unmarshaler
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"5s\": %w", err)
	}
	return d.parse(s)
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return d.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		return d.parse(value.Value)
	case yaml.AliasNode:
		return d.UnmarshalYAML(value.Alias)
	default:
		return fmt.Errorf("line %d: duration must be a scalar", value.Line)
	}
}

// Set implements flag.Value
func (d *Duration) Set(s string) error { return d.parse(s) }

func (d *Duration) parse(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		*d = 0
		return nil
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// ServerConfig configures `plc serve`
type ServerConfig struct {
	Addr     string `json:"addr" yaml:"addr"`
	CertFile string `json:"cert_file,omitempty" yaml:"cert_file,omitempty"`
	KeyFile  string `json:"key_file,omitempty" yaml:"key_file,omitempty"`
}

// WatchConfig configures `plc watch`
type WatchConfig struct {
	Debounce Duration `json:"debounce" yaml:"debounce"`
}

// Config represents the configuration shared by every plc command
type Config struct {
	Verbose bool      `json:"verbose" yaml:"verbose"`
	Debug   bool      `json:"debug" yaml:"debug"`
	Color   ColorMode `json:"color" yaml:"color"`

	// Language is a semver constraint the implemented language version
	// must satisfy.
	Language string `json:"language" yaml:"language"`

	// Jobs bounds how many programs run at once; 0 means one per CPU.
	Jobs int `json:"jobs" yaml:"jobs"`

	// Timeout bounds each program run; 0 disables the limit.
	Timeout Duration `json:"timeout" yaml:"timeout"`

	Server ServerConfig `json:"server" yaml:"server"`
	Watch  WatchConfig  `json:"watch" yaml:"watch"`
}

// DefaultConfig returns the configuration used when no file is given
func DefaultConfig() *Config {
	return &Config{
		Color:    ColorAuto,
		Language: DefaultLanguageConstraint,
		Server:   ServerConfig{Addr: "localhost:4433"},
		Watch:    WatchConfig{Debounce: Duration(100 * time.Millisecond)},
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

// LoadConfig loads configuration from a JSON or YAML file, chosen by
// extension. A missing file yields the defaults.
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath == "" {
		return config, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Default config if file doesn't exist
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(configPath) {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(config); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
		}
	} else if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config file %s: %w", configPath, err)
	}
	return config, nil
}

// Validate checks field values that the decoders cannot
func (c *Config) Validate() error {
	switch c.Color {
	case ColorAuto, ColorAlways, ColorNever:
	case "":
		c.Color = ColorAuto
	default:
		return fmt.Errorf("color must be auto, always or never, got %q", c.Color)
	}
	if _, err := c.LanguageConstraint(); err != nil {
		return err
	}
	if c.Jobs < 0 {
		return fmt.Errorf("jobs must not be negative, got %d", c.Jobs)
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	return nil
}

// LanguageConstraint parses Language, defaulting to every 1.x version
func (c *Config) LanguageConstraint() (*semver.Constraints, error) {
	expr := c.Language
	if strings.TrimSpace(expr) == "" {
		expr = DefaultLanguageConstraint
	}
	constraint, err := semver.NewConstraint(expr)
	if err != nil {
		return nil, fmt.Errorf("language constraint %q: %w", expr, err)
	}
	return constraint, nil
}

// JobLimit returns the effective concurrency limit
func (c *Config) JobLimit() int {
	if c.Jobs > 0 {
		return c.Jobs
	}
	return runtime.NumCPU()
}

// UseColor decides whether output written to f is colored
func (c *Config) UseColor(f *os.File) bool {
	switch c.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	return os.Getenv("NO_COLOR") == "" && IsTerminal(f)
}

// SaveConfig saves configuration to file as JSON or YAML by extension
func (c *Config) SaveConfig(configPath string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(configPath) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

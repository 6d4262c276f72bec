// Package config holds depfetch runtime settings. Values come from built-in
// defaults, then an optional TOML file, then DEPFETCH_* environment
// variables; command-line flags are applied last by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

const (
	// DefaultDestination is where archives are downloaded and extracted.
	DefaultDestination = "ffmpeg_bin"
	// DefaultRegistry is the source registry file name.
	DefaultRegistry = "ffmpeg_source.json"
	// DefaultRetries is the number of download retries per source.
	DefaultRetries = 2
	// DefaultTimeout bounds a single HTTP request.
	DefaultTimeout = 5 * time.Minute
)

// Environment variable names.
const (
	EnvRegistry = "DEPFETCH_REGISTRY"
	EnvDest     = "DEPFETCH_DEST"
	EnvPolicy   = "DEPFETCH_POLICY"
	EnvKeyring  = "DEPFETCH_KEYRING"
	EnvRetries  = "DEPFETCH_RETRIES"
)

// Policy selects how trust questions are answered.
type Policy string

const (
	// PolicyPrompt asks the operator on the terminal.
	PolicyPrompt Policy = "prompt"
	// PolicyTrust answers yes to every question.
	PolicyTrust Policy = "trust"
	// PolicyReject answers no to every question.
	PolicyReject Policy = "reject"
	// PolicyAuto prompts when stdin is a terminal and rejects otherwise.
	PolicyAuto Policy = "auto"
)

// ErrInvalidConfig is wrapped by every validation failure.
var ErrInvalidConfig = errors.New("invalid configuration")

// ParsePolicy converts s into a Policy. Matching is case-insensitive.
func ParsePolicy(s string) (Policy, error) {
	p := Policy(strings.ToLower(strings.TrimSpace(s)))
	switch p {
	case PolicyPrompt, PolicyTrust, PolicyReject, PolicyAuto:
		return p, nil
	default:
		return "", fmt.Errorf("%w: unknown policy %q (want prompt, trust, reject or auto)", ErrInvalidConfig, s)
	}
}

// Config is the resolved set of runtime settings.
type Config struct {
	RegistryPath  string        `toml:"registry"`
	Destination   string        `toml:"destination"`
	Platform      string        `toml:"platform"`
	Policy        Policy        `toml:"policy"`
	KeyringPath   string        `toml:"keyring"`
	Retries       int           `toml:"retries"`
	Timeout       time.Duration `toml:"timeout"`
	Progress      bool          `toml:"progress"`
	SkipHashCheck bool          `toml:"skip_hash_check"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		RegistryPath: DefaultRegistry,
		Destination:  DefaultDestination,
		Policy:       PolicyAuto,
		Retries:      DefaultRetries,
		Timeout:      DefaultTimeout,
		Progress:     true,
	}
}

// LoadFile overlays the TOML file at path onto Default. A missing file is
// not an error.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv overrides fields from DEPFETCH_* variables that are set and non-empty.
func (c *Config) ApplyEnv() error {
	if v := os.Getenv(EnvRegistry); v != "" {
		c.RegistryPath = v
	}
	if v := os.Getenv(EnvDest); v != "" {
		c.Destination = v
	}
	if v := os.Getenv(EnvKeyring); v != "" {
		c.KeyringPath = v
	}
	if v := os.Getenv(EnvPolicy); v != "" {
		p, err := ParsePolicy(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvPolicy, err)
		}
		c.Policy = p
	}
	if v := os.Getenv(EnvRetries); v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%w: %s=%q is not a number", ErrInvalidConfig, EnvRetries, v)
		}
		c.Retries = n
	}
	return nil
}

// Validate checks the settings for consistency.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RegistryPath) == "" {
		return fmt.Errorf("%w: registry path is required", ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Destination) == "" {
		return fmt.Errorf("%w: destination is required", ErrInvalidConfig)
	}
	if _, err := ParsePolicy(string(c.Policy)); err != nil {
		return err
	}
	if c.Retries < 0 {
		return fmt.Errorf("%w: retries must not be negative (got %d)", ErrInvalidConfig, c.Retries)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("%w: timeout must be positive (got %s)", ErrInvalidConfig, c.Timeout)
	}
	return nil
}

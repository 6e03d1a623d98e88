// Package config loads beamsim's configuration.
//
// Configuration comes from three layers, later ones winning: built-in
// defaults, an optional YAML file, and environment variables. The result
// is validated once at startup.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	// DataDirName is the directory under the user's home holding run data.
	DataDirName = ".beamsim"
	// ConfigFile is the default config filename inside the data directory.
	ConfigFile = "config.yaml"
)

// Environment variables that override file values.
const (
	EnvConfigPath   = "BEAMSIM_CONFIG"
	EnvStoreBackend = "BEAMSIM_STORE_BACKEND"
	EnvStorePath    = "BEAMSIM_STORE_PATH"
	EnvMetricsAddr  = "BEAMSIM_METRICS_ADDR"
	EnvMaxBeamWidth = "BEAMSIM_MAX_BEAM_WIDTH"
	EnvLogLevel     = "LOG_LEVEL"
	EnvLogFormat    = "LOG_FORMAT"
)

// Config is the root configuration.
type Config struct {
	Store    Store    `yaml:"store"`
	Defaults Defaults `yaml:"defaults"`
	Limits   Limits   `yaml:"limits"`
	Log      Log      `yaml:"log"`
	Metrics  Metrics  `yaml:"metrics"`
}

// Store selects the run store backend.
type Store struct {
	Backend string `yaml:"backend" validate:"oneof=file sqlite"`
	Path    string `yaml:"path" validate:"required"`
}

// Defaults apply when a simulate_run request omits a parameter.
type Defaults struct {
	BeamWidth int    `yaml:"beam_width" validate:"gte=1"`
	MaxSteps  int    `yaml:"max_steps" validate:"gte=0"`
	Scoring   string `yaml:"scoring" validate:"omitempty,oneof=sum_minus_penalty weighted_penalty"`
}

// Limits cap the work a single request may ask for.
type Limits struct {
	MaxBeamWidth int `yaml:"max_beam_width" validate:"gte=1"`
	MaxSteps     int `yaml:"max_steps" validate:"gte=0"`
}

// Log configures the slog handler.
type Log struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Metrics configures the Prometheus endpoint. Empty Addr disables it.
type Metrics struct {
	Addr string `yaml:"addr" validate:"omitempty,hostname_port"`
}

// DataDir returns ~/.beamsim, falling back to the working directory when
// the home directory is unknown.
func DataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return DataDirName
	}
	return filepath.Join(home, DataDirName)
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: Store{
			Backend: "file",
			Path:    filepath.Join(DataDir(), "simulations.json"),
		},
		Defaults: Defaults{
			BeamWidth: 5,
			MaxSteps:  10,
			Scoring:   "sum_minus_penalty",
		},
		Limits: Limits{
			MaxBeamWidth: 1000,
			MaxSteps:     10000,
		},
		Log: Log{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config file location: $BEAMSIM_CONFIG or
// ~/.beamsim/config.yaml.
func DefaultPath() string {
	if p := os.Getenv(EnvConfigPath); p != "" {
		return p
	}
	return filepath.Join(DataDir(), ConfigFile)
}

// Load builds the configuration from defaults, the YAML file at path (a
// missing file is not an error) and the environment, then validates it.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return Config{}, fmt.Errorf("parsing %s: %w", path, err)
			}
		case os.IsNotExist(err):
			// Defaults only.
		default:
			return Config{}, fmt.Errorf("reading %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvStoreBackend); v != "" {
		c.Store.Backend = strings.ToLower(v)
	}
	if v := os.Getenv(EnvStorePath); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv(EnvMetricsAddr); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
	if v := os.Getenv(EnvMaxBeamWidth); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMaxBeamWidth, err)
		}
		c.Limits.MaxBeamWidth = n
	}
	return nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks struct tags plus the cross-field rules tags cannot express.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value: %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Defaults.BeamWidth > c.Limits.MaxBeamWidth {
		return fmt.Errorf("invalid config: defaults.beam_width %d exceeds limits.max_beam_width %d",
			c.Defaults.BeamWidth, c.Limits.MaxBeamWidth)
	}
	if c.Defaults.MaxSteps > c.Limits.MaxSteps {
		return fmt.Errorf("invalid config: defaults.max_steps %d exceeds limits.max_steps %d",
			c.Defaults.MaxSteps, c.Limits.MaxSteps)
	}
	return nil
}

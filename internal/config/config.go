// Package config loads pwvault settings from a JSON file and the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/illarion/pwvault/internal/crypto"
	"github.com/illarion/pwvault/internal/logging"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// Environment variables
const (
	EnvConfig      = "PWVAULT_CONFIG"
	EnvDir         = "PWVAULT_DIR"
	EnvLogLevel    = "PWVAULT_LOG_LEVEL"
	EnvLogFormat   = "PWVAULT_LOG_FORMAT"
	EnvEnvelope    = "PWVAULT_ENVELOPE"
	EnvIterations  = "PWVAULT_ITERATIONS"
	EnvDisableKeys = "PWVAULT_NO_KEYRING"
)

const (
	DefaultUsersDir = "Users"
	configDirName   = ".pwvault"
	configFileName  = "config.json"
)

var ErrInvalidConfig = errors.New("invalid configuration")

// Config holds user settings. Zero values are replaced by defaults.
type Config struct {
	UsersDir    string `json:"usersDir"`
	LogLevel    string `json:"logLevel"`
	LogFormat   string `json:"logFormat"` // "console" or "json"
	Envelope    string `json:"envelope"`   // "cbc" or "gcm"
	Iterations  int    `json:"iterations"` // PBKDF2 iterations for gcm envelopes
	BcryptCost  int    `json:"bcryptCost"`
	MinStrength int    `json:"minStrength"` // zxcvbn score 0-4 for new master passwords
	Keyring     bool   `json:"keyring"`     // allow the OS keyring cache
	Index       bool   `json:"index"`       // keep the bbolt account index
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		UsersDir:    DefaultUsersDir,
		LogLevel:    logging.DefaultLevel,
		LogFormat:   logging.FormatConsole,
		Envelope:    crypto.FormatCBC.String(),
		Iterations:  crypto.DefaultIterations,
		BcryptCost:  bcrypt.DefaultCost,
		MinStrength: 0,
		Keyring:     true,
		Index:       true,
	}
}

// DefaultPath returns ~/.pwvault/config.json, or "" if there is no home directory
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, configDirName, configFileName)
}

// Load reads the config file at path (PWVAULT_CONFIG or DefaultPath when
// empty), applies environment overrides and validates the result. A missing
// file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = os.Getenv(EnvConfig)
		explicit = path != ""
	}
	if !explicit {
		path = DefaultPath()
	}

	if path != "" {
		if err := cfg.readFile(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) || explicit {
				return cfg, err
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}

	return cfg, cfg.Validate()
}

func (c *Config) readFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, c); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvDir); v != "" {
		c.UsersDir = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.LogFormat = v
	}
	if v := os.Getenv(EnvEnvelope); v != "" {
		c.Envelope = v
	}
	if v := os.Getenv(EnvIterations); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvIterations, err)
		}
		c.Iterations = n
	}
	if v := os.Getenv(EnvDisableKeys); v != "" {
		disabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%w: %s: %w", ErrInvalidConfig, EnvDisableKeys, err)
		}
		c.Keyring = !disabled
	}
	return nil
}

// Validate checks value ranges
func (c Config) Validate() error {
	if c.UsersDir == "" {
		return fmt.Errorf("%w: usersDir is empty", ErrInvalidConfig)
	}
	if c.LogFormat != logging.FormatConsole && c.LogFormat != logging.FormatJSON {
		return fmt.Errorf("%w: logFormat must be %q or %q, got %q",
			ErrInvalidConfig, logging.FormatConsole, logging.FormatJSON, c.LogFormat)
	}
	if _, err := crypto.ParseFormat(c.Envelope); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.Iterations < 1000 {
		return fmt.Errorf("%w: iterations must be at least 1000, got %d", ErrInvalidConfig, c.Iterations)
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		return fmt.Errorf("%w: bcryptCost must be between %d and %d, got %d",
			ErrInvalidConfig, bcrypt.MinCost, bcrypt.MaxCost, c.BcryptCost)
	}
	if c.MinStrength < 0 || c.MinStrength > 4 {
		return fmt.Errorf("%w: minStrength must be between 0 and 4, got %d", ErrInvalidConfig, c.MinStrength)
	}
	return nil
}

// Logger builds the diagnostic logger writing to w
func (c Config) Logger(w io.Writer) zerolog.Logger {
	if c.LogFormat == logging.FormatJSON {
		return logging.NewJSON(c.LogLevel, w)
	}
	return logging.New(c.LogLevel, w)
}

// Engine returns the envelope configuration for vault writes
func (c Config) Engine() crypto.Engine {
	format, _ := crypto.ParseFormat(c.Envelope)
	return crypto.Engine{Format: format, Iterations: c.Iterations}
}

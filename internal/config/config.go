package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
)

// Config is the root configuration for gts, stored in ~/.gts/config.json.
// The file may contain // and /* */ comments and trailing commas.
type Config struct {
	Store     StoreConfig     `json:"store"`
	Inference InferenceConfig `json:"inference"`
	Share     ShareConfig     `json:"share"`
	// Workers caps how many repositories are scanned concurrently.
	Workers int `json:"workers"`
}

// StoreConfig locates the local database.
type StoreConfig struct {
	// Path of the SQLite file. Empty = ~/.gts/gts.db.
	Path string `json:"path"`
	// LockTimeout bounds how long a second process waits for the store lock.
	LockTimeout Duration `json:"lock_timeout"`
}

// InferenceConfig holds the hour-clamping rules for commit-derived entries.
type InferenceConfig struct {
	MinimumHours  float64  `json:"minimum_hours"`
	MaximumHours  float64  `json:"maximum_hours"`
	MaxFutureSkew Duration `json:"max_future_skew"`
	// Author restricts counted commits to this author (git --author pattern).
	// Empty = the author recorded on the binding at init time.
	Author string `json:"author"`
}

// ShareConfig configures the remote ephemeral store.
type ShareConfig struct {
	Address string   `json:"address"`
	Token   string   `json:"token"`
	TTL     Duration `json:"ttl"`
	Timeout Duration `json:"timeout"`
	// Sandbox redirects every share call to SandboxAddress.
	Sandbox        bool   `json:"sandbox"`
	SandboxAddress string `json:"sandbox_address"`
}

// Endpoint returns the address share calls go to, honouring sandbox mode.
func (s ShareConfig) Endpoint() string {
	if s.Sandbox {
		return s.SandboxAddress
	}
	return s.Address
}

const (
	DefaultMinimumHours   = 0.25
	DefaultMaximumHours   = 8.0
	DefaultMaxFutureSkew  = 24 * time.Hour
	DefaultLockTimeout    = 5 * time.Second
	DefaultShareTTL       = 24 * time.Hour
	DefaultShareTimeout   = 10 * time.Second
	DefaultSandboxAddress = "http://127.0.0.1:8787"
	DefaultWorkers        = 4
)

// Environment variables that override the file.
const (
	EnvShareAddress = "GTS_SHARE_ADDRESS"
	EnvShareToken   = "GTS_SHARE_TOKEN"
	EnvShareTTL     = "GTS_SHARE_TTL"
	EnvTestMode     = "GTS_TEST_MODE"
)

// Default returns a Config pre-filled with the built-in defaults.
func Default() Config {
	return Config{
		Store: StoreConfig{
			LockTimeout: Duration(DefaultLockTimeout),
		},
		Inference: InferenceConfig{
			MinimumHours:  DefaultMinimumHours,
			MaximumHours:  DefaultMaximumHours,
			MaxFutureSkew: Duration(DefaultMaxFutureSkew),
		},
		Share: ShareConfig{
			TTL:            Duration(DefaultShareTTL),
			Timeout:        Duration(DefaultShareTimeout),
			SandboxAddress: DefaultSandboxAddress,
		},
		Workers: DefaultWorkers,
	}
}

// configTemplate is the annotated config written on first run.
const configTemplate = `// gts configuration – ~/.gts/config.json
//
// All settings are optional; the defaults below are used for anything left out.
{
  // ── Local store ──────────────────────────────────────────────────────────
  "store": {
    // SQLite file holding bindings and work entries. Empty = ~/.gts/gts.db
    "path": "",
    // How long to wait for another gts process to release the store.
    "lock_timeout": "5s"
  },

  // ── Hour inference from commit timestamps ────────────────────────────────
  "inference": {
    // A day with a single commit (or a very short span) counts this many hours.
    "minimum_hours": 0.25,
    // No inferred day counts more than this many hours.
    "maximum_hours": 8,
    // Commits dated further than this into the future are ignored.
    "max_future_skew": "24h",
    // Only count commits by this author. Empty = git user.email at init time.
    "author": ""
  },

  // ── Sharing ──────────────────────────────────────────────────────────────
  "share": {
    // Base URL of the remote timesheet store. Override with GTS_SHARE_ADDRESS.
    "address": "",
    // Bearer credential. Override with GTS_SHARE_TOKEN.
    "token": "",
    // Lifetime of a shared timesheet. Override with GTS_SHARE_TTL.
    "ttl": "24h",
    "timeout": "10s",
    // Send share requests to sandbox_address instead (GTS_TEST_MODE=1).
    // Run a local sandbox with: gts sandbox
    "sandbox": false,
    "sandbox_address": "http://127.0.0.1:8787"
  },

  // Repositories scanned in parallel by 'gts make'.
  "workers": 4
}
`

// Dir returns ~/.gts.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".gts"), nil
}

// DefaultPath returns the path to ~/.gts/config.json.
func DefaultPath() (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

// Load reads the config file at path, creating it with annotated defaults
// on first run, then applies environment overrides. An empty path means
// DefaultPath.
func Load(path string) (Config, error) {
	if path == "" {
		p, err := DefaultPath()
		if err != nil {
			return Default(), err
		}
		path = p
	}

	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		if writeErr := writeDefault(path); writeErr != nil {
			fmt.Fprintf(os.Stderr, "Warning: could not create config file %s: %v\n", path, writeErr)
		}
	case err != nil:
		return cfg, fmt.Errorf("reading config file %s: %w", path, err)
	default:
		if cfg, err = Parse(data); err != nil {
			return Default(), fmt.Errorf("parsing config file %s: %w\nTip: delete the file to regenerate defaults", path, err)
		}
	}

	if err := applyEnv(&cfg, os.Getenv); err != nil {
		return cfg, err
	}
	if cfg.Store.Path == "" {
		dir, err := Dir()
		if err != nil {
			return cfg, err
		}
		cfg.Store.Path = filepath.Join(dir, "gts.db")
	}
	return cfg, cfg.Validate()
}

// Parse decodes a JSONC document over the defaults, so keys left out keep
// their default and explicit values, zero included, are kept.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := json.Unmarshal(jsonc.ToJSON(data), &cfg); err != nil {
		return Default(), err
	}
	fillDefaults(&cfg)
	return cfg, nil
}

// fillDefaults replaces values that cannot work (no workers, no sandbox
// target, a share timeout or TTL of zero) with their defaults.
func fillDefaults(cfg *Config) {
	d := Default()
	if cfg.Share.TTL == 0 {
		cfg.Share.TTL = d.Share.TTL
	}
	if cfg.Share.Timeout <= 0 {
		cfg.Share.Timeout = d.Share.Timeout
	}
	if cfg.Share.SandboxAddress == "" {
		cfg.Share.SandboxAddress = d.Share.SandboxAddress
	}
	if cfg.Workers <= 0 {
		cfg.Workers = d.Workers
	}
}

// applyEnv overlays the GTS_* environment variables.
func applyEnv(cfg *Config, getenv func(string) string) error {
	if v := getenv(EnvShareAddress); v != "" {
		cfg.Share.Address = v
	}
	if v := getenv(EnvShareToken); v != "" {
		cfg.Share.Token = v
	}
	if v := getenv(EnvShareTTL); v != "" {
		ttl, err := parseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvShareTTL, err)
		}
		cfg.Share.TTL = Duration(ttl)
	}
	if v := getenv(EnvTestMode); v != "" {
		on, _ := strconv.ParseBool(v)
		cfg.Share.Sandbox = on
	}
	return nil
}

// Validate checks cross-field constraints.
func (c Config) Validate() error {
	in := c.Inference
	if in.MinimumHours < 0 || in.MaximumHours <= 0 || in.MaximumHours > 24 || in.MinimumHours > in.MaximumHours {
		return fmt.Errorf("invalid inference hours: minimum %.2f, maximum %.2f (need 0 <= minimum <= maximum <= 24, maximum > 0)",
			in.MinimumHours, in.MaximumHours)
	}
	if in.MaxFutureSkew < 0 {
		return fmt.Errorf("invalid inference max_future_skew %s", in.MaxFutureSkew)
	}
	if c.Store.LockTimeout < 0 {
		return fmt.Errorf("invalid store lock_timeout %s", c.Store.LockTimeout)
	}
	if c.Share.TTL < 0 {
		return fmt.Errorf("invalid share ttl %s", c.Share.TTL)
	}
	return nil
}

// writeDefault creates the config directory and atomically writes the
// annotated default config template.
func writeDefault(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, []byte(configTemplate), 0o600); err != nil {
		return fmt.Errorf("writing default config: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("renaming default config: %w", err)
	}
	return nil
}

// Duration is a time.Duration that reads and writes "90m"-style strings.
// Plain numbers are read as seconds.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var secs float64
		if err2 := json.Unmarshal(data, &secs); err2 != nil {
			return fmt.Errorf("duration must be a string like \"24h\" or a number of seconds: %w", err)
		}
		*d = Duration(secs * float64(time.Second))
		return nil
	}
	v, err := parseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	return time.ParseDuration(s)
}

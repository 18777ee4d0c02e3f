// Package config handles configuration loading from TOML files and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the root configuration structure.
type Config struct {
	Session      SessionConfig      `toml:"session"`
	Humanize     HumanizeConfig     `toml:"humanize"`
	Emergency    EmergencyConfig    `toml:"emergency"`
	RandomEvents RandomEventsConfig `toml:"random_events"`
	Env          EnvConfig          `toml:"env"`
	Quests       QuestsConfig       `toml:"quests"`
	Store        StoreConfig        `toml:"store"`
	Journal      JournalConfig      `toml:"journal"`
}

// SessionConfig holds tick and identity settings.
type SessionConfig struct {
	Name   string `toml:"name"`
	TickMs int    `toml:"tick_ms" validate:"min=50,max=10000"`
	// Seed fixes the randomness source; 0 seeds from the clock.
	Seed uint64 `toml:"seed"`
}

// HumanizeConfig tunes inefficiency injection, fatigue and pacing.
type HumanizeConfig struct {
	Enabled bool `toml:"enabled"`

	BacktrackProbability  float64 `toml:"backtrack_probability" validate:"min=0,max=1"`
	BacktrackIntervalMs   int     `toml:"backtrack_interval_ms" validate:"min=0"`
	RedundantProbability  float64 `toml:"redundant_probability" validate:"min=0,max=1"`
	RedundantIntervalMs   int     `toml:"redundant_interval_ms" validate:"min=0"`
	HesitationProbability float64 `toml:"hesitation_probability" validate:"min=0,max=1"`
	HesitationIntervalMs  int     `toml:"hesitation_interval_ms" validate:"min=0"`
	CancelProbability     float64 `toml:"cancel_probability" validate:"min=0,max=1"`
	CancelIntervalMs      int     `toml:"cancel_interval_ms" validate:"min=0"`

	FatigueIncrease float64 `toml:"fatigue_increase" validate:"min=0,max=1"`
	FatigueRecovery float64 `toml:"fatigue_recovery" validate:"min=0,max=1"`

	// ActionsPerMinute caps commands sent; 0 disables the cap.
	ActionsPerMinute float64 `toml:"actions_per_minute" validate:"min=0"`
	Burst            int     `toml:"burst" validate:"min=1"`
}

// EmergencyConfig holds emergency handling settings.
type EmergencyConfig struct {
	Suppressed       bool   `toml:"suppressed"`
	LowHealthPercent int    `toml:"low_health_percent" validate:"min=0,max=100"`
	LowHealthFood    string `toml:"low_health_food"`
	RetreatTarget    string `toml:"retreat_target"`
	CooldownMs       int    `toml:"cooldown_ms" validate:"min=0"`
}

// RandomEventsConfig holds random event responder settings.
type RandomEventsConfig struct {
	Enabled          bool   `toml:"enabled"`
	RewardChoice     string `toml:"reward_choice"`
	CooldownTicks    int    `toml:"cooldown_ticks" validate:"min=1"`
	IdleTimeoutTicks int    `toml:"idle_timeout_ticks" validate:"min=1"`
}

// EnvConfig points at the environment bridge.
type EnvConfig struct {
	URL       string `toml:"url" validate:"required,url"`
	AgentName string `toml:"agent_name" validate:"required"`
}

// QuestsConfig selects quest documents.
type QuestsConfig struct {
	Dir    string `toml:"dir"`
	Active string `toml:"active"`
}

// StoreConfig holds the session history database location.
type StoreConfig struct {
	// Path defaults to pilot.db in the data directory.
	Path string `toml:"path"`
}

// JournalConfig holds tick journal settings.
type JournalConfig struct {
	Enabled bool `toml:"enabled"`
	// Dir defaults to journal/ in the data directory.
	Dir string `toml:"dir"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Session: SessionConfig{
			Name:   "default",
			TickMs: 600,
		},
		Humanize: HumanizeConfig{
			Enabled:               true,
			BacktrackProbability:  0.02,
			BacktrackIntervalMs:   30000,
			RedundantProbability:  0.03,
			RedundantIntervalMs:   20000,
			HesitationProbability: 0.05,
			HesitationIntervalMs:  5000,
			CancelProbability:     0.01,
			CancelIntervalMs:      60000,
			FatigueIncrease:       0.00007,
			FatigueRecovery:       0.0002,
			ActionsPerMinute:      90,
			Burst:                 5,
		},
		Emergency: EmergencyConfig{
			LowHealthPercent: 40,
			CooldownMs:       10000,
		},
		RandomEvents: RandomEventsConfig{
			Enabled:          true,
			CooldownTicks:    50,
			IdleTimeoutTicks: 20,
		},
		Env: EnvConfig{
			URL:       "ws://localhost:7780/agent",
			AgentName: "pilot",
		},
		Journal: JournalConfig{
			Enabled: true,
		},
	}
}

// Load reads configuration from a TOML file and applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if _, err := toml.DecodeFile(path, cfg); err != nil {
				return nil, fmt.Errorf("decode %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

// LoadEnvFile loads KEY=value pairs from a .env file into the process
// environment. A missing file is not an error.
func LoadEnvFile(path string) error {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, e := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", e.Namespace(), e.Tag(), e.Value()))
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// applyEnvOverrides applies environment variable overrides to the configuration.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ZOEA_ENV_URL"); v != "" {
		cfg.Env.URL = v
	}

	if v := os.Getenv("ZOEA_AGENT_NAME"); v != "" {
		cfg.Env.AgentName = v
	}

	if v := os.Getenv("ZOEA_TICK_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Session.TickMs = n
		}
	}

	if v := os.Getenv("ZOEA_SEED"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Session.Seed = n
		}
	}

	if v := os.Getenv("ZOEA_HUMANIZE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Humanize.Enabled = b
		}
	}

	if v := os.Getenv("ZOEA_ACTIONS_PER_MINUTE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Humanize.ActionsPerMinute = f
		}
	}

	if v := os.Getenv("ZOEA_EMERGENCY_SUPPRESSED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Emergency.Suppressed = b
		}
	}

	if v := os.Getenv("ZOEA_LOW_HEALTH_FOOD"); v != "" {
		cfg.Emergency.LowHealthFood = v
	}

	if v := os.Getenv("ZOEA_REWARD_CHOICE"); v != "" {
		cfg.RandomEvents.RewardChoice = v
	}

	if v := os.Getenv("ZOEA_QUESTS_DIR"); v != "" {
		cfg.Quests.Dir = v
	}

	if v := os.Getenv("ZOEA_QUEST"); v != "" {
		cfg.Quests.Active = v
	}

	if v := os.Getenv("ZOEA_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}

	if v := os.Getenv("ZOEA_JOURNAL_DIR"); v != "" {
		cfg.Journal.Dir = v
	}
}

// DataDir returns the path to the data directory (~/.zoea-pilot), or
// ZOEA_DATA_DIR when set.
func DataDir() (string, error) {
	if v := os.Getenv("ZOEA_DATA_DIR"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".zoea-pilot"), nil
}

// EnsureDataDir creates the data directory if it doesn't exist.
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

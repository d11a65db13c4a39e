package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Account is one configured bot slot. The first account is the primary
// connection; additional accounts with is_main false are mass-message
// slaves.
type Account struct {
	ID        string `yaml:"id"`
	Username  string `yaml:"username"`
	Password  string `yaml:"password"`
	Character string `yaml:"character"`
	IsMain    bool   `yaml:"is_main"`
}

// Config holds all bot configuration
type Config struct {
	Server   string    `yaml:"server"`
	Port     int       `yaml:"port"`
	Accounts []Account `yaml:"accounts"`

	CommandSymbol string `yaml:"command_symbol"`
	SuperAdmin    string `yaml:"superadmin"`
	DatabasePath  string `yaml:"database_path"`

	// Outgoing queue tuning (seconds / multiplier).
	RecoverySeconds float64 `yaml:"recovery_seconds"`
	Burst           float64 `yaml:"burst"`

	// Grace period before selecting a character the server still shows
	// as online.
	CharacterOnlineWaitSeconds int `yaml:"character_online_wait_seconds"`

	// Whether a failed slave login aborts startup or just drops the slot.
	IgnoreSlaveLoginFailure bool `yaml:"ignore_slave_login_failure"`

	// Per-channel pagination limits.
	PrivateMessagePageLength int `yaml:"private_message_page_length"`
	OrgChannelPageLength     int `yaml:"org_channel_page_length"`
	PrivateChannelPageLength int `yaml:"private_channel_page_length"`
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if len(cfg.Accounts) == 0 {
		return nil, fmt.Errorf("config: at least one account is required")
	}

	// Set defaults
	if cfg.Port == 0 {
		cfg.Port = 7105
	}
	if cfg.CommandSymbol == "" {
		cfg.CommandSymbol = "!"
	}
	if cfg.DatabasePath == "" {
		cfg.DatabasePath = "./aobot.db"
	}
	if cfg.RecoverySeconds == 0 {
		cfg.RecoverySeconds = 2
	}
	if cfg.Burst == 0 {
		cfg.Burst = 2.5
	}
	if cfg.CharacterOnlineWaitSeconds == 0 {
		cfg.CharacterOnlineWaitSeconds = 20
	}
	if cfg.PrivateMessagePageLength == 0 {
		cfg.PrivateMessagePageLength = 7500
	}
	if cfg.OrgChannelPageLength == 0 {
		cfg.OrgChannelPageLength = 7500
	}
	if cfg.PrivateChannelPageLength == 0 {
		cfg.PrivateChannelPageLength = 7500
	}
	for i := range cfg.Accounts {
		if cfg.Accounts[i].ID == "" {
			cfg.Accounts[i].ID = cfg.Accounts[i].Character
		}
	}

	return &cfg, nil
}

// Recovery returns the outgoing queue recovery interval.
func (c *Config) Recovery() time.Duration {
	return time.Duration(c.RecoverySeconds * float64(time.Second))
}

// CharacterOnlineWait returns the already-online selection grace period.
func (c *Config) CharacterOnlineWait() time.Duration {
	return time.Duration(c.CharacterOnlineWaitSeconds) * time.Second
}

// Package config handles configuration loading for nexus.
// It supports XDG config paths, project-level overrides, and environment
// variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for nexus.
type Config struct {
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Swarm     SwarmConfig     `mapstructure:"swarm"`
	Memory    MemoryConfig    `mapstructure:"memory"`
	Security  SecurityConfig  `mapstructure:"security"`
	Skills    SkillsConfig    `mapstructure:"skills"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// LLMConfig holds model selection and transport settings.
type LLMConfig struct {
	// DefaultModel is used for medium and complex requests.
	DefaultModel string `mapstructure:"default_model"`
	// UseBedrock routes completions through AWS Bedrock.
	UseBedrock bool `mapstructure:"use_bedrock"`
	// AWSProfile and AWSRegion apply when UseBedrock is set.
	AWSProfile string `mapstructure:"aws_profile"`
	AWSRegion  string `mapstructure:"aws_region"`
}

// SwarmConfig holds scheduler and messaging settings.
type SwarmConfig struct {
	// MaxAgentsPerRole caps concurrent agents per role.
	MaxAgentsPerRole int `mapstructure:"max_agents_per_role"`
	// MailboxCapacity bounds each agent's message queue.
	MailboxCapacity int `mapstructure:"mailbox_capacity"`
	// ConsensusStrategy resolves speculative executions (majority,
	// unanimous, weighted).
	ConsensusStrategy string `mapstructure:"consensus_strategy"`
	// MaxDispatchAttempts bounds retries when no agent is available.
	MaxDispatchAttempts int `mapstructure:"max_dispatch_attempts"`
	// CancelGrace is how long in-flight tasks get to finish after a
	// cancellation.
	CancelGrace time.Duration `mapstructure:"cancel_grace"`
}

// MemoryConfig holds the memory subsystem settings.
type MemoryConfig struct {
	// Enabled turns the episodic store on.
	Enabled bool `mapstructure:"enabled"`
	// DBPath is the episodic database location. Empty uses the XDG data
	// path.
	DBPath string `mapstructure:"db_path"`
	// MaxSessions and MaxEntries bound working memory.
	MaxSessions int `mapstructure:"max_sessions"`
	MaxEntries  int `mapstructure:"max_entries"`
}

// SecurityConfig holds capability enforcement settings.
type SecurityConfig struct {
	// AuditLog is the append-only audit file. Empty disables auditing.
	AuditLog string `mapstructure:"audit_log"`
}

// SkillsConfig holds skill loading settings.
type SkillsConfig struct {
	// Dir is the manifest override directory. Empty uses the XDG config
	// path.
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from XDG paths, project overrides, and
// environment variables.
// Precedence (highest to lowest):
// 1. Environment variables (ANTHROPIC_API_KEY)
// 2. Project config (.nexus.yaml in current directory or parent)
// 3. User config (~/.config/nexus/config.yaml)
// 4. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(getUserConfigDir())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading user config: %w", err)
		}
	}

	if projectConfig := findProjectConfig(); projectConfig != "" {
		projectViper := viper.New()
		projectViper.SetConfigFile(projectConfig)
		if err := projectViper.ReadInConfig(); err == nil {
			if err := v.MergeConfigMap(projectViper.AllSettings()); err != nil {
				return nil, fmt.Errorf("merging project config: %w", err)
			}
		}
	}

	v.AutomaticEnv()
	v.BindEnv("anthropic.api_key", "ANTHROPIC_API_KEY")
	v.BindEnv("llm.use_bedrock", "NEXUS_USE_BEDROCK")
	v.BindEnv("llm.aws_profile", "AWS_PROFILE")
	v.BindEnv("llm.aws_region", "AWS_REGION")

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	// Expand ${VAR} references.
	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// LoadFromPath loads configuration from a specific file.
func LoadFromPath(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config from %s: %w", path, err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.Anthropic.APIKey = os.ExpandEnv(cfg.Anthropic.APIKey)

	return cfg, nil
}

// Save writes the current configuration to the user config file.
func Save(cfg *Config) error {
	userConfigDir := getUserConfigDir()
	if err := os.MkdirAll(userConfigDir, 0700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	v := viper.New()
	v.SetConfigFile(filepath.Join(userConfigDir, "config.yaml"))

	v.Set("anthropic.api_key", cfg.Anthropic.APIKey)
	v.Set("llm.default_model", cfg.LLM.DefaultModel)
	v.Set("llm.use_bedrock", cfg.LLM.UseBedrock)
	v.Set("llm.aws_profile", cfg.LLM.AWSProfile)
	v.Set("llm.aws_region", cfg.LLM.AWSRegion)
	v.Set("swarm.max_agents_per_role", cfg.Swarm.MaxAgentsPerRole)
	v.Set("swarm.mailbox_capacity", cfg.Swarm.MailboxCapacity)
	v.Set("swarm.consensus_strategy", cfg.Swarm.ConsensusStrategy)
	v.Set("swarm.max_dispatch_attempts", cfg.Swarm.MaxDispatchAttempts)
	v.Set("swarm.cancel_grace", cfg.Swarm.CancelGrace.String())
	v.Set("memory.enabled", cfg.Memory.Enabled)
	v.Set("memory.db_path", cfg.Memory.DBPath)
	v.Set("memory.max_sessions", cfg.Memory.MaxSessions)
	v.Set("memory.max_entries", cfg.Memory.MaxEntries)
	v.Set("security.audit_log", cfg.Security.AuditLog)
	v.Set("skills.dir", cfg.Skills.Dir)

	return v.WriteConfig()
}

// GetUserConfigPath returns the path to the user config file.
func GetUserConfigPath() string {
	return filepath.Join(getUserConfigDir(), "config.yaml")
}

// GetProjectConfigPath returns the path to the project config file if it
// exists.
func GetProjectConfigPath() string {
	return findProjectConfig()
}

// SkillsDir returns the configured skills directory, defaulting to the XDG
// config path.
func (c *Config) SkillsDir() string {
	if c.Skills.Dir != "" {
		return c.Skills.Dir
	}
	return filepath.Join(getUserConfigDir(), "skills")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("anthropic.api_key", "")

	v.SetDefault("llm.default_model", "")
	v.SetDefault("llm.use_bedrock", false)
	v.SetDefault("llm.aws_profile", "")
	v.SetDefault("llm.aws_region", "")

	v.SetDefault("swarm.max_agents_per_role", 3)
	v.SetDefault("swarm.mailbox_capacity", 64)
	v.SetDefault("swarm.consensus_strategy", "majority")
	v.SetDefault("swarm.max_dispatch_attempts", 5)
	v.SetDefault("swarm.cancel_grace", "5s")

	v.SetDefault("memory.enabled", false)
	v.SetDefault("memory.db_path", "")
	v.SetDefault("memory.max_sessions", 128)
	v.SetDefault("memory.max_entries", 50)

	v.SetDefault("security.audit_log", "")
	v.SetDefault("skills.dir", "")
}

// getUserConfigDir returns the XDG config directory for nexus.
func getUserConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "nexus")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".config", "nexus")
	}
	return filepath.Join(home, ".config", "nexus")
}

// findProjectConfig searches for .nexus.yaml in the current directory and
// parents.
func findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		configPath := filepath.Join(cwd, ".nexus.yaml")
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(cwd)
		if parent == cwd {
			break
		}
		cwd = parent
	}

	return ""
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Swarm: SwarmConfig{
			MaxAgentsPerRole:    3,
			MailboxCapacity:     64,
			ConsensusStrategy:   "majority",
			MaxDispatchAttempts: 5,
			CancelGrace:         5 * time.Second,
		},
		Memory: MemoryConfig{
			MaxSessions: 128,
			MaxEntries:  50,
		},
	}
}

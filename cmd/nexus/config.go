package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nexusswarm/nexus/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config [key] [value]",
	Short: "Manage configuration",
	Long: `View or modify nexus configuration.

Without arguments, displays current configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the configuration value.

Configuration is stored at ~/.config/nexus/config.yaml
Project-specific overrides can be placed in .nexus.yaml`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
			os.Exit(1)
		}

		switch len(args) {
		case 0:
			displayAllConfig(cfg)
		case 1:
			displayConfigKey(cfg, args[0])
		default:
			setConfigKey(cfg, args[0], args[1])
		}
	},
}

// displayAllConfig prints all configuration values.
func displayAllConfig(cfg *config.Config) {
	fmt.Printf("anthropic.api_key: %s\n", config.MaskAPIKey(cfg.Anthropic.APIKey))
	fmt.Printf("llm.default_model: %s\n", orUnset(cfg.LLM.DefaultModel))
	fmt.Printf("llm.use_bedrock: %t\n", cfg.LLM.UseBedrock)
	fmt.Printf("llm.aws_profile: %s\n", orUnset(cfg.LLM.AWSProfile))
	fmt.Printf("llm.aws_region: %s\n", orUnset(cfg.LLM.AWSRegion))
	fmt.Printf("swarm.max_agents_per_role: %d\n", cfg.Swarm.MaxAgentsPerRole)
	fmt.Printf("swarm.mailbox_capacity: %d\n", cfg.Swarm.MailboxCapacity)
	fmt.Printf("swarm.consensus_strategy: %s\n", cfg.Swarm.ConsensusStrategy)
	fmt.Printf("swarm.max_dispatch_attempts: %d\n", cfg.Swarm.MaxDispatchAttempts)
	fmt.Printf("swarm.cancel_grace: %s\n", cfg.Swarm.CancelGrace)
	fmt.Printf("memory.enabled: %t\n", cfg.Memory.Enabled)
	fmt.Printf("memory.db_path: %s\n", orUnset(cfg.Memory.DBPath))
	fmt.Printf("security.audit_log: %s\n", orUnset(cfg.Security.AuditLog))
	fmt.Printf("skills.dir: %s\n", cfg.SkillsDir())
}

func orUnset(s string) string {
	if s == "" {
		return "(not set)"
	}
	return s
}

// displayConfigKey prints a single configuration value.
func displayConfigKey(cfg *config.Config, key string) {
	value, err := getConfigValue(cfg, key)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(value)
}

// setConfigKey sets a configuration value and saves the config.
func setConfigKey(cfg *config.Config, key, value string) {
	if err := setConfigValue(cfg, key, value); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := config.Save(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error saving config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Set %s = %s\n", key, value)
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.Config, key string) (string, error) {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		return config.MaskAPIKey(cfg.Anthropic.APIKey), nil
	case "llm.default_model":
		return cfg.LLM.DefaultModel, nil
	case "llm.use_bedrock":
		return strconv.FormatBool(cfg.LLM.UseBedrock), nil
	case "llm.aws_profile":
		return cfg.LLM.AWSProfile, nil
	case "llm.aws_region":
		return cfg.LLM.AWSRegion, nil
	case "swarm.max_agents_per_role":
		return strconv.Itoa(cfg.Swarm.MaxAgentsPerRole), nil
	case "swarm.mailbox_capacity":
		return strconv.Itoa(cfg.Swarm.MailboxCapacity), nil
	case "swarm.consensus_strategy":
		return cfg.Swarm.ConsensusStrategy, nil
	case "swarm.max_dispatch_attempts":
		return strconv.Itoa(cfg.Swarm.MaxDispatchAttempts), nil
	case "swarm.cancel_grace":
		return cfg.Swarm.CancelGrace.String(), nil
	case "memory.enabled":
		return strconv.FormatBool(cfg.Memory.Enabled), nil
	case "memory.db_path":
		return cfg.Memory.DBPath, nil
	case "security.audit_log":
		return cfg.Security.AuditLog, nil
	case "skills.dir":
		return cfg.SkillsDir(), nil
	default:
		return "", fmt.Errorf("unknown configuration key: %s", key)
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.Config, key, value string) error {
	switch strings.ToLower(key) {
	case "anthropic.api_key":
		cfg.Anthropic.APIKey = value
	case "llm.default_model":
		cfg.LLM.DefaultModel = value
	case "llm.use_bedrock":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for llm.use_bedrock: %w", err)
		}
		cfg.LLM.UseBedrock = b
	case "llm.aws_profile":
		cfg.LLM.AWSProfile = value
	case "llm.aws_region":
		cfg.LLM.AWSRegion = value
	case "swarm.max_agents_per_role":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_agents_per_role: %w", err)
		}
		cfg.Swarm.MaxAgentsPerRole = n
	case "swarm.mailbox_capacity":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for mailbox_capacity: %w", err)
		}
		cfg.Swarm.MailboxCapacity = n
	case "swarm.consensus_strategy":
		cfg.Swarm.ConsensusStrategy = value
	case "swarm.max_dispatch_attempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid value for max_dispatch_attempts: %w", err)
		}
		cfg.Swarm.MaxDispatchAttempts = n
	case "swarm.cancel_grace":
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("invalid duration for cancel_grace: %w", err)
		}
		cfg.Swarm.CancelGrace = d
	case "memory.enabled":
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for memory.enabled: %w", err)
		}
		cfg.Memory.Enabled = b
	case "memory.db_path":
		cfg.Memory.DBPath = value
	case "security.audit_log":
		cfg.Security.AuditLog = value
	case "skills.dir":
		cfg.Skills.Dir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

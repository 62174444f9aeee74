package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nexusswarm/nexus/internal/config"
	"github.com/nexusswarm/nexus/internal/security"
	"github.com/nexusswarm/nexus/internal/skill"
)

var skillsCmd = &cobra.Command{
	Use:   "skills",
	Short: "List available skills and their capabilities",
	Long: `List the registered skills, their required capabilities, and whether
manifest overrides in the skills directory have disabled or constrained
them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		enforcer := security.NewEnforcer(nil)
		registry := skill.NewRegistry(enforcer)
		skill.RegisterBuiltins(registry)

		watcher, err := skill.NewWatcher(registry, cfg.SkillsDir())
		if err != nil {
			return fmt.Errorf("load skills: %w", err)
		}
		defer watcher.Close()

		for _, m := range registry.List() {
			state := color.GreenString("enabled")
			if m.Enabled != nil && !*m.Enabled {
				state = color.RedString("disabled")
			}
			fmt.Printf("%s %s (%s) — %s\n", color.New(color.Bold).Sprint(m.Name), m.Version, state, m.Description)
			for _, grant := range m.Capabilities {
				fmt.Printf("  requires %s%s\n", grant.Capability, formatConstraints(grant.Constraints))
			}
		}
		fmt.Printf("\nmanifest overrides: %s\n", cfg.SkillsDir())
		return nil
	},
}

func formatConstraints(c security.Constraints) string {
	var parts []string
	if len(c.Paths) > 0 {
		parts = append(parts, fmt.Sprintf("paths %v", c.Paths))
	}
	if len(c.Domains) > 0 {
		parts = append(parts, fmt.Sprintf("domains %v", c.Domains))
	}
	if len(c.Commands) > 0 {
		parts = append(parts, fmt.Sprintf("commands %v", c.Commands))
	}
	if len(parts) == 0 {
		return ""
	}
	out := " ["
	for i, p := range parts {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out + "]"
}

package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/nexusswarm/nexus/internal/config"
	"github.com/nexusswarm/nexus/internal/memory"
	"github.com/nexusswarm/nexus/internal/security"
)

var statusAuditLimit int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, memory, and audit state",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		bold := color.New(color.Bold)

		bold.Println("Config")
		fmt.Printf("  user:    %s\n", config.GetUserConfigPath())
		if project := config.GetProjectConfigPath(); project != "" {
			fmt.Printf("  project: %s\n", project)
		}
		if _, err := config.GetAPIKey(cfg); err != nil {
			fmt.Printf("  api key: %s\n", color.RedString("not configured"))
		} else {
			fmt.Printf("  api key: %s\n", color.GreenString("configured"))
		}

		bold.Println("\nMemory")
		if !cfg.Memory.Enabled {
			fmt.Println("  disabled")
		} else {
			printMemoryStatus(cfg)
		}

		bold.Println("\nAudit")
		if cfg.Security.AuditLog == "" {
			fmt.Println("  disabled")
		} else {
			printAuditTail(cfg.Security.AuditLog, statusAuditLimit)
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().IntVar(&statusAuditLimit, "audit-entries", 5, "How many recent audit entries to show")
}

func printMemoryStatus(cfg *config.Config) {
	dbPath := cfg.Memory.DBPath
	if dbPath == "" {
		dbPath = memory.DefaultDBPath()
	}
	fmt.Printf("  database: %s\n", dbPath)

	if _, err := os.Stat(dbPath); err != nil {
		fmt.Println("  episodes: none recorded yet")
		return
	}

	mgr, err := memory.NewManager(memory.ManagerConfig{DBPath: dbPath})
	if err != nil {
		fmt.Printf("  %s: %v\n", color.RedString("error"), err)
		return
	}
	defer mgr.Close()

	count, err := mgr.Episodic().Count()
	if err != nil {
		fmt.Printf("  %s: %v\n", color.RedString("error"), err)
		return
	}
	fmt.Printf("  episodes: %d\n", count)

	recent, err := mgr.Episodic().Recent(3)
	if err == nil {
		for _, ep := range recent {
			fmt.Printf("  - [%s] %s\n", ep.Type, truncate(ep.Content, 70))
		}
	}
}

func printAuditTail(path string, limit int) {
	fmt.Printf("  log: %s\n", path)

	logger, err := security.NewAuditLogger(path)
	if err != nil {
		fmt.Printf("  %s: %v\n", color.RedString("error"), err)
		return
	}
	events, err := logger.Query("", "", limit)
	if err != nil {
		fmt.Printf("  %s: %v\n", color.RedString("error"), err)
		return
	}
	if len(events) == 0 {
		fmt.Println("  no entries")
		return
	}
	for _, e := range events {
		marker := color.GreenString("✓")
		if e.Result != security.ResultAllowed {
			marker = color.RedString("✗")
		}
		fmt.Printf("  %s %s %s %s (%s)\n", marker, e.Timestamp.Format("15:04:05"), e.EventType, e.Action, e.Actor)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}

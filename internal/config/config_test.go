package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
llm:
  default_model: claude-sonnet-4-20250514
  use_bedrock: true
  aws_region: us-west-2
swarm:
  max_agents_per_role: 7
  consensus_strategy: unanimous
  cancel_grace: 10s
memory:
  enabled: true
  db_path: /tmp/nexus-test.db
security:
  audit_log: /tmp/audit.jsonl
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.LLM.DefaultModel != "claude-sonnet-4-20250514" {
		t.Errorf("default_model = %q", cfg.LLM.DefaultModel)
	}
	if !cfg.LLM.UseBedrock || cfg.LLM.AWSRegion != "us-west-2" {
		t.Errorf("bedrock settings = %+v", cfg.LLM)
	}
	if cfg.Swarm.MaxAgentsPerRole != 7 {
		t.Errorf("max_agents_per_role = %d", cfg.Swarm.MaxAgentsPerRole)
	}
	if cfg.Swarm.ConsensusStrategy != "unanimous" {
		t.Errorf("consensus_strategy = %q", cfg.Swarm.ConsensusStrategy)
	}
	if cfg.Swarm.CancelGrace != 10*time.Second {
		t.Errorf("cancel_grace = %s", cfg.Swarm.CancelGrace)
	}
	if !cfg.Memory.Enabled || cfg.Memory.DBPath != "/tmp/nexus-test.db" {
		t.Errorf("memory = %+v", cfg.Memory)
	}
	if cfg.Security.AuditLog != "/tmp/audit.jsonl" {
		t.Errorf("audit_log = %q", cfg.Security.AuditLog)
	}
}

func TestLoadFromPathAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("llm:\n  use_bedrock: false\n"), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	want := Default()
	if cfg.Swarm.MaxAgentsPerRole != want.Swarm.MaxAgentsPerRole {
		t.Errorf("max_agents_per_role = %d, want %d", cfg.Swarm.MaxAgentsPerRole, want.Swarm.MaxAgentsPerRole)
	}
	if cfg.Swarm.ConsensusStrategy != want.Swarm.ConsensusStrategy {
		t.Errorf("consensus_strategy = %q, want %q", cfg.Swarm.ConsensusStrategy, want.Swarm.ConsensusStrategy)
	}
	if cfg.Swarm.CancelGrace != want.Swarm.CancelGrace {
		t.Errorf("cancel_grace = %s, want %s", cfg.Swarm.CancelGrace, want.Swarm.CancelGrace)
	}
	if cfg.Memory.Enabled {
		t.Error("memory enabled by default")
	}
}

func TestLoadFromPathExpandsAPIKey(t *testing.T) {
	t.Setenv("NEXUS_TEST_KEY", "sk-ant-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "anthropic:\n  api_key: ${NEXUS_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Anthropic.APIKey != "sk-ant-from-env" {
		t.Errorf("api_key = %q, want expanded value", cfg.Anthropic.APIKey)
	}
}

func TestLoadFromPathMissingFile(t *testing.T) {
	if _, err := LoadFromPath(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("missing file did not error")
	}
}

func TestSkillsDirDefault(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")

	cfg := Default()
	if got, want := cfg.SkillsDir(), filepath.Join("/tmp/xdg", "nexus", "skills"); got != want {
		t.Errorf("SkillsDir() = %q, want %q", got, want)
	}

	cfg.Skills.Dir = "/opt/skills"
	if got := cfg.SkillsDir(); got != "/opt/skills" {
		t.Errorf("SkillsDir() = %q, want /opt/skills", got)
	}
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg := Default()
	cfg.Swarm.MaxAgentsPerRole = 9
	cfg.Memory.Enabled = true
	if err := Save(cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := LoadFromPath(GetUserConfigPath())
	if err != nil {
		t.Fatalf("load saved config: %v", err)
	}
	if loaded.Swarm.MaxAgentsPerRole != 9 {
		t.Errorf("max_agents_per_role = %d, want 9", loaded.Swarm.MaxAgentsPerRole)
	}
	if !loaded.Memory.Enabled {
		t.Error("memory.enabled not persisted")
	}
}

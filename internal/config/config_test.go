package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write temp config: %v", err)
	}
	return path
}

func TestLoad_AppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "llm:\n  default_provider: anthropic\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval.Policy != "ask" {
		t.Fatalf("expected default approval policy ask, got %q", cfg.Approval.Policy)
	}
	if cfg.Sandbox.Mode != "permissive" {
		t.Fatalf("expected default sandbox mode permissive, got %q", cfg.Sandbox.Mode)
	}
	if cfg.Sandbox.AgentScope != "non-main" {
		t.Fatalf("expected default sandbox agent_scope non-main, got %q", cfg.Sandbox.AgentScope)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Fatalf("expected default logging level/format, got %+v", cfg.Logging)
	}
}

func TestLoad_AppliesDefaultVersion(t *testing.T) {
	path := writeTempConfig(t, "llm:\n  default_provider: anthropic\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Version != CurrentVersion {
		t.Fatalf("expected unversioned config to default to CurrentVersion %d, got %d", CurrentVersion, cfg.Version)
	}
}

func TestLoad_RejectsNewerVersion(t *testing.T) {
	path := writeTempConfig(t, "version: 99\nllm:\n  default_provider: anthropic\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error loading a config with a version newer than this build")
	}
}

func TestLoad_RejectsUnknownFields(t *testing.T) {
	path := writeTempConfig(t, "llm:\n  bogus_field: true\n")
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestLoad_ResolvesIncludes(t *testing.T) {
	dir := t.TempDir()
	basePath := filepath.Join(dir, "base.yaml")
	if err := os.WriteFile(basePath, []byte("approval:\n  policy: auto\n"), 0o644); err != nil {
		t.Fatalf("write base: %v", err)
	}
	mainPath := filepath.Join(dir, "main.yaml")
	if err := os.WriteFile(mainPath, []byte("$include: base.yaml\nsandbox:\n  mode: strict\n"), 0o644); err != nil {
		t.Fatalf("write main: %v", err)
	}
	cfg, err := Load(mainPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Approval.Policy != "auto" {
		t.Fatalf("expected included approval.policy=auto, got %q", cfg.Approval.Policy)
	}
	if cfg.Sandbox.Mode != "strict" {
		t.Fatalf("expected sandbox.mode=strict, got %q", cfg.Sandbox.Mode)
	}
}

func TestValidateConfig_RejectsInvalidEnums(t *testing.T) {
	cfg := &Config{
		Version:  CurrentVersion,
		Approval: ApprovalConfig{Policy: "sometimes"},
		Sandbox:  SandboxConfig{Mode: "yolo", AgentScope: "all"},
	}
	err := validateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation error")
	}
	var verr *ConfigValidationError
	if ok := asConfigValidationError(err, &verr); !ok {
		t.Fatalf("expected *ConfigValidationError, got %T", err)
	}
	if len(verr.Issues) != 2 {
		t.Fatalf("expected 2 issues, got %v", verr.Issues)
	}
}

func asConfigValidationError(err error, target **ConfigValidationError) bool {
	ve, ok := err.(*ConfigValidationError)
	if !ok {
		return false
	}
	*target = ve
	return true
}

func TestApplyOverride_ApprovalPolicy(t *testing.T) {
	cfg := &Config{}
	if err := ApplyOverride(cfg, "approval.policy", "never"); err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if cfg.Approval.Policy != "never" {
		t.Fatalf("expected policy never, got %q", cfg.Approval.Policy)
	}
}

func TestApplyOverride_RejectsInvalidValue(t *testing.T) {
	cfg := &Config{}
	if err := ApplyOverride(cfg, "sandbox.mode", "yolo"); err == nil {
		t.Fatal("expected error for invalid sandbox.mode value")
	}
}

func TestApplyOverride_RejectsUnknownKey(t *testing.T) {
	cfg := &Config{}
	if err := ApplyOverride(cfg, "not.a.real.key", "x"); err == nil {
		t.Fatal("expected error for unknown override key")
	}
}

func TestApplyOverride_ModelsModelSetsDefaultProviderModel(t *testing.T) {
	cfg := &Config{LLM: LLMConfig{DefaultProvider: "anthropic"}}
	if err := ApplyOverride(cfg, "models.model", "claude-opus-4-20250514"); err != nil {
		t.Fatalf("ApplyOverride: %v", err)
	}
	if cfg.LLM.Providers["anthropic"].DefaultModel != "claude-opus-4-20250514" {
		t.Fatalf("expected provider default model set, got %+v", cfg.LLM.Providers)
	}
}

func TestApplyOverrides_StopsAtFirstMalformedEntry(t *testing.T) {
	cfg := &Config{}
	err := ApplyOverrides(cfg, []string{"approval.policy=auto", "not-key-value"})
	if err == nil {
		t.Fatal("expected error for malformed override")
	}
	if cfg.Approval.Policy != "auto" {
		t.Fatalf("expected first override still applied, got %q", cfg.Approval.Policy)
	}
}

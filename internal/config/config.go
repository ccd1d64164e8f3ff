package config

import (
	"fmt"
	"strings"
)

// Config is the root configuration for the engine: provider defaults,
// approval policy, and sandbox mode, per the file-format surface the
// runtime touches. Everything else (credential storage, host-specific
// transport) lives outside this package.
type Config struct {
	Version  int            `yaml:"version"`
	LLM      LLMConfig      `yaml:"llm"`
	Approval ApprovalConfig `yaml:"approval"`
	Sandbox  SandboxConfig  `yaml:"sandbox"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// Load reads a YAML (or JSON5) config file, resolving $include directives,
// expanding environment variables, applying defaults, and validating the
// result.
func Load(path string) (*Config, error) {
	raw, err := LoadRaw(path)
	if err != nil {
		return nil, err
	}
	cfg, err := decodeRawConfig(raw)
	if err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Version == 0 {
		cfg.Version = CurrentVersion
	}
	applyLLMDefaults(&cfg.LLM)
	applyApprovalDefaults(&cfg.Approval)
	applySandboxDefaults(&cfg.Sandbox)
	applyLoggingDefaults(&cfg.Logging)
}

func applyLLMDefaults(cfg *LLMConfig) {
	if cfg.DefaultProvider == "" {
		cfg.DefaultProvider = "anthropic"
	}
	if cfg.Bedrock.Region == "" {
		cfg.Bedrock.Region = "us-east-1"
	}
	if cfg.Bedrock.DefaultContextWindow == 0 {
		cfg.Bedrock.DefaultContextWindow = 32000
	}
	if cfg.Bedrock.DefaultMaxTokens == 0 {
		cfg.Bedrock.DefaultMaxTokens = 4096
	}
}

func applyApprovalDefaults(cfg *ApprovalConfig) {
	if cfg.Policy == "" {
		cfg.Policy = "ask"
	}
	if cfg.RequestTTL == 0 {
		cfg.RequestTTL = defaultApprovalTTL
	}
}

func applySandboxDefaults(cfg *SandboxConfig) {
	if cfg.Mode == "" {
		cfg.Mode = "permissive"
	}
	if cfg.AgentScope == "" {
		cfg.AgentScope = "non-main"
	}
	if cfg.Scope == "" {
		cfg.Scope = "agent"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultSandboxTimeout
	}
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Format == "" {
		cfg.Format = "json"
	}
}

// ConfigValidationError reports every validation failure found in a config
// file at once, rather than failing on the first.
type ConfigValidationError struct {
	Issues []string
}

func (e *ConfigValidationError) Error() string {
	return "config validation failed:\n- " + strings.Join(e.Issues, "\n- ")
}

func validateConfig(cfg *Config) error {
	if cfg == nil {
		return nil
	}
	var issues []string

	if err := ValidateVersion(cfg.Version); err != nil {
		issues = append(issues, err.Error())
	}
	if !validApprovalPolicy(cfg.Approval.Policy) {
		issues = append(issues, `approval.policy must be "ask", "auto", or "never"`)
	}
	if !validSandboxMode(cfg.Sandbox.Mode) {
		issues = append(issues, `sandbox.mode must be "strict", "permissive", or "danger_full_access"`)
	}
	if !validSandboxAgentScope(cfg.Sandbox.AgentScope) {
		issues = append(issues, `sandbox.agent_scope must be "off", "all", or "non-main"`)
	}

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if defaultProvider != "" && len(cfg.LLM.Providers) > 0 {
		if _, ok := cfg.LLM.Providers[defaultProvider]; !ok {
			if _, ok := cfg.LLM.Providers[cfg.LLM.DefaultProvider]; !ok {
				issues = append(issues, fmt.Sprintf("llm.providers missing entry for default_provider %q", cfg.LLM.DefaultProvider))
			}
		}
	}

	issues = append(issues, pluginValidationIssues(cfg)...)

	if len(issues) > 0 {
		return &ConfigValidationError{Issues: issues}
	}
	return nil
}

func validApprovalPolicy(v string) bool {
	switch v {
	case "ask", "auto", "never":
		return true
	}
	return false
}

func validSandboxMode(v string) bool {
	switch v {
	case "strict", "permissive", "danger_full_access":
		return true
	}
	return false
}

func validSandboxAgentScope(v string) bool {
	switch v {
	case "off", "all", "non-main":
		return true
	}
	return false
}

// ApplyOverride applies a single CLI "key=value" override. The accepted
// keys mirror the file-format surface the runtime exposes: approval.policy,
// sandbox.mode, models.model, and models.provider. Any other key is an
// error.
func ApplyOverride(cfg *Config, key, value string) error {
	key = strings.TrimSpace(key)
	value = strings.TrimSpace(value)
	switch key {
	case "approval.policy":
		if !validApprovalPolicy(value) {
			return fmt.Errorf("invalid value %q for approval.policy", value)
		}
		cfg.Approval.Policy = value
	case "sandbox.mode":
		if !validSandboxMode(value) {
			return fmt.Errorf("invalid value %q for sandbox.mode", value)
		}
		cfg.Sandbox.Mode = value
	case "models.model":
		if value == "" {
			return fmt.Errorf("models.model requires a non-empty value")
		}
		setDefaultProviderModel(cfg, value)
	case "models.provider":
		if value == "" {
			return fmt.Errorf("models.provider requires a non-empty value")
		}
		cfg.LLM.DefaultProvider = value
	default:
		return fmt.Errorf("unknown config override key %q", key)
	}
	return nil
}

// ApplyOverrides parses and applies a batch of "key=value" override strings
// in order, stopping at the first malformed or unknown entry.
func ApplyOverrides(cfg *Config, overrides []string) error {
	for _, raw := range overrides {
		key, value, ok := strings.Cut(raw, "=")
		if !ok {
			return fmt.Errorf("malformed override %q, expected key=value", raw)
		}
		if err := ApplyOverride(cfg, key, value); err != nil {
			return err
		}
	}
	return nil
}

func setDefaultProviderModel(cfg *Config, model string) {
	provider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	if provider == "" {
		return
	}
	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = map[string]LLMProviderConfig{}
	}
	entry := cfg.LLM.Providers[provider]
	entry.DefaultModel = model
	cfg.LLM.Providers[provider] = entry
}

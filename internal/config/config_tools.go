package config

import "time"

const (
	defaultApprovalTTL   = 15 * time.Minute
	defaultSandboxTimeout = 2 * time.Minute
)

// ApprovalConfig controls tool approval behavior.
type ApprovalConfig struct {
	// Policy is the approval mode applied to every tool call that isn't
	// covered by the allow/deny lists below: "ask", "auto", or "never".
	Policy string `yaml:"policy"`

	// Profile is a pre-configured tool access level.
	// Valid profiles: "coding", "messaging", "readonly", "full", "minimal".
	// When set, the profile's default tools are included in the allowlist.
	Profile string `yaml:"profile"`

	// Allowlist contains tools that are always allowed (no approval needed),
	// regardless of Policy. Supports patterns like "mcp:*", "read_*", "*".
	Allowlist []string `yaml:"allowlist"`

	// Denylist contains tools that are always denied, regardless of Policy.
	Denylist []string `yaml:"denylist"`

	// SafeBins are stdin-only tools that are safe to auto-allow.
	SafeBins []string `yaml:"safe_bins"`

	// AskFallback queues approval when the UI is unavailable instead of
	// denying outright.
	AskFallback *bool `yaml:"ask_fallback"`

	// RequestTTL is how long a pending ExecApprovalRequest remains valid
	// before the approval store prunes it.
	RequestTTL time.Duration `yaml:"request_ttl"`
}

// SandboxConfig controls tool execution sandboxing.
type SandboxConfig struct {
	Enabled        bool                  `yaml:"enabled"`
	Backend        string                `yaml:"backend"`
	PoolSize       int                   `yaml:"pool_size"`
	MaxPoolSize    int                   `yaml:"max_pool_size"`
	MinIdle        int                   `yaml:"min_idle"`
	MaxIdleTime    time.Duration         `yaml:"max_idle_time"`
	Timeout        time.Duration         `yaml:"timeout"`
	NetworkEnabled bool                  `yaml:"network_enabled"`
	Limits         ResourceLimits        `yaml:"limits"`
	Snapshots      SandboxSnapshotConfig `yaml:"snapshots"`
	Daytona        SandboxDaytonaConfig  `yaml:"daytona"`

	// Mode controls how strictly sandboxed execution is confined:
	// - "strict": no network, read-only workspace outside an explicit allowlist
	// - "permissive": network enabled, workspace read-write (default)
	// - "danger_full_access": no sandboxing constraints at all
	Mode string `yaml:"mode"`

	// AgentScope controls which agents get sandboxed execution:
	// - "off": sandboxing disabled regardless of Mode
	// - "all": every agent is sandboxed
	// - "non-main": only non-main agents are sandboxed (default)
	AgentScope string `yaml:"agent_scope"`

	// Scope controls sandbox isolation granularity:
	// - "agent": one sandbox container per agent (default)
	// - "session": one sandbox per session
	// - "shared": all agents share one sandbox
	Scope string `yaml:"scope"`

	// WorkspaceRoot is the root directory for sandboxed workspaces.
	WorkspaceRoot string `yaml:"workspace_root"`

	// WorkspaceAccess controls workspace access mode: "readonly", "readwrite", "ro", "rw", or "none".
	WorkspaceAccess string `yaml:"workspace_access"`
}

// SandboxDaytonaConfig configures the Daytona sandbox backend.
type SandboxDaytonaConfig struct {
	APIKey         string         `yaml:"api_key"`
	JWTToken       string         `yaml:"jwt_token"`
	OrganizationID string         `yaml:"organization_id"`
	APIURL         string         `yaml:"api_url"`
	Target         string         `yaml:"target"`
	Snapshot       string         `yaml:"snapshot"`
	Image          string         `yaml:"image"`
	SandboxClass   string         `yaml:"class"`
	WorkspaceDir   string         `yaml:"workspace_dir"`
	NetworkAllow   string         `yaml:"network_allow_list"`
	ReuseSandbox   bool           `yaml:"reuse_sandbox"`
	AutoStop       *time.Duration `yaml:"auto_stop_interval"`
	AutoArchive    *time.Duration `yaml:"auto_archive_interval"`
	AutoDelete     *time.Duration `yaml:"auto_delete_interval"`
}

// SandboxSnapshotConfig controls Firecracker snapshot behavior.
type SandboxSnapshotConfig struct {
	Enabled         bool          `yaml:"enabled"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	MaxAge          time.Duration `yaml:"max_age"`
}

// ResourceLimits caps sandbox resource consumption.
type ResourceLimits struct {
	MaxCPU    int    `yaml:"max_cpu"`
	MaxMemory string `yaml:"max_memory"`
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brandlll-lee/cokra/internal/agent/agentcontrol"
	"github.com/brandlll-lee/cokra/internal/agent/turnexec"
	"github.com/brandlll-lee/cokra/internal/config"
	"github.com/brandlll-lee/cokra/internal/llmprovider"
	"github.com/brandlll-lee/cokra/internal/observability"
	"github.com/brandlll-lee/cokra/internal/protocol"
	"github.com/brandlll-lee/cokra/internal/queue"
	"github.com/brandlll-lee/cokra/internal/spawnguard"
	"github.com/brandlll-lee/cokra/internal/toolrouter"
)

// buildRunCmd creates the "run" command: it boots the engine against the
// configured provider and drives it with newline-delimited JSON
// Submissions read from stdin, writing newline-delimited JSON Events to
// stdout. This is the scripting/testing surface for the core engine; a
// richer interactive host (REPL/TUI) is explicitly out of scope (spec.md
// §1).
func buildRunCmd() *cobra.Command {
	var (
		configPath string
		overrides  []string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the agent engine against stdin/stdout framed JSON",
		Long: `Run boots the turn-execution engine using the configured provider, then
reads newline-delimited JSON Submissions from stdin and writes
newline-delimited JSON Events to stdout until a "shutdown" Submission is
processed or stdin is closed.`,
		Example: `  # Run with the default config search path
  cokra run < submissions.jsonl

  # Override approval policy and sandbox mode for this run
  cokra run --config cokra.yaml --set approval.policy=auto --set sandbox.mode=strict`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEngine(cmd.Context(), configPath, overrides)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "cokra.yaml", "Path to YAML/JSON5 configuration file")
	cmd.Flags().StringArrayVar(&overrides, "set", nil, "Config override in key=value form (may be repeated)")

	return cmd
}

func runEngine(ctx context.Context, configPath string, overrides []string) error {
	cfg, err := loadRunConfig(configPath, overrides)
	if err != nil {
		return err
	}
	slog.SetDefault(observability.NewLogger(observability.LogConfig{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: os.Stderr,
	}).Slog())

	model, err := selectProvider(cfg)
	if err != nil {
		return err
	}

	registry := toolrouter.NewRegistry()
	validator := toolrouter.NewValidator(approvalModeFromPolicy(cfg.Approval.Policy))
	for _, name := range cfg.Approval.Allowlist {
		validator.AutoApprove[name] = true
	}
	for _, name := range cfg.Approval.Denylist {
		validator.AutoDeny[name] = true
	}
	approvals := toolrouter.NewApprovalStore()
	router := toolrouter.NewRouter(registry, validator, approvals, toolrouter.DefaultShellCommandExtractor)

	executor := turnexec.NewExecutor(model, router)
	guards := spawnguard.NewGuards()
	manager := spawnguard.NewThreadManager()

	rootThreadId := protocol.NewThreadId()
	manager.Register(protocol.ThreadInfo{ThreadId: rootThreadId, Role: "main"})

	defaultProvider := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	defaultModel := cfg.LLM.Providers[defaultProvider].DefaultModel

	turnCfg := turnexec.TurnConfig{
		Model:               defaultModel,
		EnableTools:         true,
		Tools:               registry.AsToolSpecs(),
		ContextWindowTokens: cfg.LLM.DefaultContextWindow,
	}

	control := agentcontrol.New(rootThreadId, 0, executor, spawnguard.NewWeakRef(manager), guards, turnCfg)
	if err := control.Start(); err != nil {
		return fmt.Errorf("start control: %w", err)
	}

	engine := queue.New(control, approvals)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sigCtx, stop := signal.NotifyContext(runCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	go engine.Run(sigCtx)
	go pumpSubmissions(sigCtx, os.Stdin, engine)

	return writeEvents(os.Stdout, engine.Events())
}

func loadRunConfig(path string, overrides []string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := config.ApplyOverrides(cfg, overrides); err != nil {
		return nil, fmt.Errorf("apply overrides: %w", err)
	}
	return cfg, nil
}

func approvalModeFromPolicy(policy string) toolrouter.ApprovalMode {
	switch policy {
	case "auto":
		return toolrouter.ApprovalAuto
	case "never":
		return toolrouter.ApprovalNever
	default:
		return toolrouter.ApprovalAsk
	}
}

// selectProvider builds the ModelClient for cfg.LLM.DefaultProvider.
// Credentials are read from the provider's config entry, falling back to
// the conventional environment variable for that vendor — credential
// storage itself is explicitly out of the engine's scope (spec.md §1);
// this is just the minimal glue a runnable binary needs.
func selectProvider(cfg *config.Config) (turnexec.ModelClient, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.LLM.DefaultProvider))
	entry := cfg.LLM.Providers[name]

	switch name {
	case "anthropic", "":
		return llmprovider.NewAnthropic(llmprovider.AnthropicConfig{
			APIKey:       firstNonEmpty(entry.APIKey, os.Getenv("ANTHROPIC_API_KEY")),
			BaseURL:      entry.BaseURL,
			DefaultModel: entry.DefaultModel,
		}), nil
	case "openai":
		return llmprovider.NewOpenAICompatible(llmprovider.OpenAICompatibleConfig{
			APIKey:       firstNonEmpty(entry.APIKey, os.Getenv("OPENAI_API_KEY")),
			BaseURL:      entry.BaseURL,
			DefaultModel: entry.DefaultModel,
		}), nil
	case "venice":
		return llmprovider.NewVenice(llmprovider.VeniceConfig{
			APIKey:       firstNonEmpty(entry.APIKey, os.Getenv("VENICE_API_KEY")),
			DefaultModel: entry.DefaultModel,
		}), nil
	case "bedrock":
		return llmprovider.NewBedrock(llmprovider.BedrockConfig{
			Region:       firstNonEmpty(cfg.LLM.Bedrock.Region, "us-east-1"),
			DefaultModel: entry.DefaultModel,
		})
	case "gemini", "google":
		return llmprovider.NewGemini(llmprovider.GeminiConfig{
			APIKey:       firstNonEmpty(entry.APIKey, os.Getenv("GEMINI_API_KEY")),
			DefaultModel: entry.DefaultModel,
		})
	default:
		return nil, fmt.Errorf("unknown llm provider %q", cfg.LLM.DefaultProvider)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// pumpSubmissions reads newline-delimited JSON Submissions from r and
// forwards each to engine, until EOF, a decode error, or ctx is
// cancelled. On EOF it submits a Shutdown so the engine's Run loop exits
// cleanly.
func pumpSubmissions(ctx context.Context, r io.Reader, engine *queue.Engine) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var sub protocol.Submission
		if err := json.Unmarshal([]byte(line), &sub); err != nil {
			slog.Error("malformed submission", "error", err)
			continue
		}
		engine.Submit(sub)
	}
	engine.Submit(protocol.Submission{Op: protocol.Op{Type: protocol.OpShutdown}})
}

// writeEvents drains events to w as newline-delimited JSON until the
// channel closes (the engine's Run loop exiting after Shutdown).
func writeEvents(w io.Writer, events <-chan protocol.Event) error {
	enc := json.NewEncoder(w)
	for ev := range events {
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("encode event: %w", err)
		}
	}
	return nil
}

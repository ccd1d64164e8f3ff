package llmprovider

// Venice AI speaks the OpenAI chat-completions wire format (privacy-
// focused hosting, plus anonymized proxy access to Claude/GPT models),
// so it rides the same adapter as any other OpenAI-compatible vendor;
// this just pins the endpoint and default model, grounded on
// internal/providers/venice's BaseURL/DefaultModel constants.
const (
	veniceBaseURL     = "https://api.venice.ai/api/v1"
	veniceDefaultModel = "llama-3.3-70b"
)

// VeniceConfig configures the Venice adapter.
type VeniceConfig struct {
	APIKey       string
	DefaultModel string
	RetryConfig
}

// NewVenice builds a turnexec.ModelClient against Venice AI.
func NewVenice(cfg VeniceConfig) Adapter {
	model := cfg.DefaultModel
	if model == "" {
		model = veniceDefaultModel
	}
	return NewOpenAICompatible(OpenAICompatibleConfig{
		APIKey:       cfg.APIKey,
		BaseURL:      veniceBaseURL,
		DefaultModel: model,
		RetryConfig:  cfg.RetryConfig,
	})
}

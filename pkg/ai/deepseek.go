package ai

// DefaultDeepSeekBaseURL is the OpenAI-compatible endpoint of DeepSeek.
const DefaultDeepSeekBaseURL = "https://api.deepseek.com/v1"

// DeepSeekConfig defines configuration options for the DeepSeek scorer.
type DeepSeekConfig = ChatConfig

// DeepSeekScorer implements Scorer against DeepSeek's chat completion API.
type DeepSeekScorer struct {
	*chatScorer
}

// NewDeepSeekScorer builds a scorer for DeepSeek.
func NewDeepSeekScorer(cfg DeepSeekConfig) *DeepSeekScorer {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultDeepSeekBaseURL
	}
	return &DeepSeekScorer{chatScorer: newChatScorer(ProviderDeepSeek, cfg)}
}

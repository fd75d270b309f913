package framework

import "context"

// Message is a single role/content turn sent to the language model.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// LLMOptions carries per-call sampling knobs. Zero values mean "leave the
// backend default alone", which keeps payloads minimal for local models.
type LLMOptions struct {
	Model       string
	Temperature float64
	MaxTokens   int
	TopP        float64
	Stop        []string
}

// LLMResponse is the decoded reply from a chat or generate call.
type LLMResponse struct {
	Text         string
	FinishReason string
	Usage        map[string]int
}

// LanguageModel is the transport contract the agent layer depends on. The
// pipeline never talks HTTP directly; tests substitute a fake implementation
// so no network I/O happens outside llm package tests.
type LanguageModel interface {
	Chat(ctx context.Context, messages []Message, options *LLMOptions) (*LLMResponse, error)
}

package llm

import (
	"context"
	"strings"

	"github.com/codesprintlab/planforge/framework"
)

// InstrumentedModel wraps a LanguageModel and emits telemetry for prompts and
// responses.
type InstrumentedModel struct {
	Inner     framework.LanguageModel
	Telemetry framework.Telemetry
	Debug     bool
}

func NewInstrumentedModel(inner framework.LanguageModel, telemetry framework.Telemetry, debug bool) *InstrumentedModel {
	return &InstrumentedModel{Inner: inner, Telemetry: telemetry, Debug: debug}
}

func (m *InstrumentedModel) Chat(ctx context.Context, messages []framework.Message, options *framework.LLMOptions) (*framework.LLMResponse, error) {
	m.emitPrompt(messages, options)
	resp, err := m.Inner.Chat(ctx, messages, options)
	m.emitResponse(resp, err)
	return resp, err
}

func (m *InstrumentedModel) emitPrompt(messages []framework.Message, options *framework.LLMOptions) {
	if m == nil || m.Telemetry == nil {
		return
	}
	var roles []string
	chars := 0
	for _, msg := range messages {
		roles = append(roles, msg.Role)
		chars += len(msg.Content)
	}
	metadata := map[string]interface{}{
		"model":         modelFromOptions(options),
		"message_count": len(messages),
		"roles":         roles,
		"prompt_chars":  chars,
	}
	if m.Debug && len(messages) > 0 {
		metadata["prompt_preview"] = clip(messages[len(messages)-1].Content, 1024)
	}
	framework.Emit(m.Telemetry, framework.Event{
		Type:     framework.EventLLMPrompt,
		Message:  "llm chat prompt",
		Metadata: metadata,
	})
}

func (m *InstrumentedModel) emitResponse(resp *framework.LLMResponse, err error) {
	if m == nil || m.Telemetry == nil {
		return
	}
	metadata := map[string]interface{}{}
	if resp != nil {
		metadata["finish_reason"] = resp.FinishReason
		metadata["text_chars"] = len(resp.Text)
		metadata["usage"] = resp.Usage
		if m.Debug {
			metadata["text_preview"] = clip(resp.Text, 1024)
		}
	}
	if err != nil {
		metadata["error"] = err.Error()
	}
	framework.Emit(m.Telemetry, framework.Event{
		Type:     framework.EventLLMResponse,
		Message:  "llm chat response",
		Metadata: metadata,
	})
}

func modelFromOptions(options *framework.LLMOptions) string {
	if options != nil && options.Model != "" {
		return options.Model
	}
	return ""
}

func clip(s string, max int) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if max <= 0 {
		return ""
	}
	if len(s) <= max {
		return s
	}
	return s[:max] + "...(truncated)"
}

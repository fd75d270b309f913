package agents

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/codesprintlab/planforge/framework"
)

// FallbackAnalysis is returned when a turn exhausts its retry budget. It is a
// fixed sentence so downstream extraction still has non-empty input.
const FallbackAnalysis = "Análise técnica simplificada para projeto utilizando as tecnologias solicitadas."

// defaults applied when the executor is constructed with zero values.
const (
	defaultPrimaryTimeout = 10 * time.Minute
	defaultRetryTimeout   = 2 * time.Minute
	defaultMinResponseLen = 50
	maxTurnAttempts       = 2
)

// Executor runs exactly one agent turn with bounded latency. Deadlines are
// enforced cooperatively through context at the transport layer, so an
// abandoned call is cancelled rather than leaked.
type Executor struct {
	Model     framework.LanguageModel
	Telemetry framework.Telemetry
	Logger    *log.Logger

	// PrimaryTimeout bounds the first attempt; RetryTimeout bounds the terse
	// retry and must be strictly smaller. Both are generous by default
	// because large local models routinely take minutes per reply.
	PrimaryTimeout time.Duration
	RetryTimeout   time.Duration

	// MinResponseLen is the shortest reply accepted as a genuine answer.
	MinResponseLen int

	// Options carries sampling defaults applied to every call.
	Options *framework.LLMOptions
}

// Execute runs one agent turn. It never returns an error: timeouts, transport
// failures, and degenerate output all collapse into a Result carrying
// fallback text, because the pipeline's contract is "always produce a plan".
func (e *Executor) Execute(ctx context.Context, profile Profile, taskDescription string) Result {
	logger := e.logger()
	minLen := e.MinResponseLen
	if minLen <= 0 {
		minLen = defaultMinResponseLen
	}

	framework.Emit(e.Telemetry, framework.Event{
		Type:     framework.EventAgentStart,
		Agent:    profile.Role,
		Metadata: map[string]interface{}{"task_chars": len(taskDescription)},
	})
	start := time.Now()

	var text string
	for attempt := 1; attempt <= maxTurnAttempts; attempt++ {
		reply, err := e.runTurn(ctx, profile, taskDescription)
		if err != nil {
			logger.Printf("agent %s failed: %v", profile.Role, err)
			framework.Emit(e.Telemetry, framework.Event{
				Type:     framework.EventAgentFinish,
				Agent:    profile.Role,
				Message:  "fallback",
				Metadata: map[string]interface{}{"error": err.Error(), "elapsed": time.Since(start).String()},
			})
			return Result{AgentRole: profile.Role, Text: FallbackAnalysis, Succeeded: false}
		}
		text = strings.TrimSpace(reply)
		chars := utf8.RuneCountInString(text)
		if chars >= minLen {
			break
		}
		if attempt < maxTurnAttempts {
			logger.Printf("agent %s reply too short (%d chars), retrying turn", profile.Role, chars)
			framework.Emit(e.Telemetry, framework.Event{
				Type:     framework.EventAgentRetry,
				Agent:    profile.Role,
				Message:  "short reply",
				Metadata: map[string]interface{}{"chars": chars},
			})
		}
	}

	logger.Printf("agent %s finished in %s", profile.Role, time.Since(start).Round(time.Millisecond))
	framework.Emit(e.Telemetry, framework.Event{
		Type:     framework.EventAgentFinish,
		Agent:    profile.Role,
		Metadata: map[string]interface{}{"chars": len(text), "elapsed": time.Since(start).String()},
	})
	return Result{AgentRole: profile.Role, Text: text, Succeeded: text != ""}
}

// runTurn performs one attempt: the full prompt under the primary deadline,
// then a terse prompt under the strictly smaller retry deadline if the first
// call timed out. Non-timeout errors are returned as-is; the terse variant
// only helps when the model was too slow, not when the transport is down.
func (e *Executor) runTurn(ctx context.Context, profile Profile, taskDescription string) (string, error) {
	primary := e.PrimaryTimeout
	if primary <= 0 {
		primary = defaultPrimaryTimeout
	}
	retry := e.RetryTimeout
	if retry <= 0 || retry >= primary {
		retry = primary / 2
	}

	text, err := e.chat(ctx, turnPrompt(profile.Role, taskDescription), primary)
	if err == nil {
		return text, nil
	}
	if !isTimeout(err) {
		return "", err
	}

	e.logger().Printf("agent %s timed out, retrying with terse prompt", profile.Role)
	framework.Emit(e.Telemetry, framework.Event{
		Type:    framework.EventAgentRetry,
		Agent:   profile.Role,
		Message: "primary deadline missed",
	})
	return e.chat(ctx, tersePrompt(profile.Role, taskDescription), retry)
}

func (e *Executor) chat(ctx context.Context, prompt string, timeout time.Duration) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	resp, err := e.Model.Chat(cctx, []framework.Message{{Role: "user", Content: prompt}}, e.Options)
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

func (e *Executor) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

func isTimeout(err error) bool {
	return errors.Is(err, context.DeadlineExceeded)
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/codesprintlab/planforge/framework"
)

// ProbeOptions bounds the readiness check against the model endpoint.
type ProbeOptions struct {
	Retries   int
	Backoff   time.Duration
	Telemetry framework.Telemetry
	Logger    *log.Logger
}

// Probe checks that the Ollama endpoint is reachable via its version
// endpoint. It retries with a growing wait (backoff × attempt) and returns
// the last error after the retry budget is spent. Callers are expected to
// log the error and continue serving; an unreachable model host must never
// wedge process startup.
func (c *Client) Probe(ctx context.Context, opts ProbeOptions) error {
	retries := opts.Retries
	if retries <= 0 {
		retries = 5
	}
	backoff := opts.Backoff
	if backoff <= 0 {
		backoff = 2 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	var lastErr error
	for attempt := 1; attempt <= retries; attempt++ {
		version, err := c.probeOnce(ctx)
		if err == nil {
			logger.Printf("ollama reachable at %s (version %s)", c.Endpoint, version)
			framework.Emit(opts.Telemetry, framework.Event{
				Type:     framework.EventProbe,
				Message:  "ollama reachable",
				Metadata: map[string]interface{}{"endpoint": c.Endpoint, "version": version, "attempt": attempt},
			})
			return nil
		}
		lastErr = err
		logger.Printf("ollama probe attempt %d/%d failed: %v", attempt, retries, err)
		if attempt == retries {
			break
		}
		wait := backoff * time.Duration(attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	framework.Emit(opts.Telemetry, framework.Event{
		Type:     framework.EventProbe,
		Message:  "ollama unreachable",
		Metadata: map[string]interface{}{"endpoint": c.Endpoint, "error": lastErr.Error()},
	})
	return fmt.Errorf("ollama probe failed after %d attempts: %w", retries, lastErr)
}

func (c *Client) probeOnce(ctx context.Context) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(cctx, http.MethodGet, c.Endpoint+"/api/version", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.getHTTPClient().Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("ollama responded with %s", resp.Status)
	}
	var payload struct {
		Version string `json:"version"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}
	return payload.Version, nil
}

// Package search implements the optional external search collaborator used
// to enrich a project brief with supplementary context before generation.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultEndpoint = "https://api.exa.ai/search"

// Client queries the Exa search API. Results are cached because the frontend
// retry button routinely resubmits the same brief within minutes.
type Client struct {
	APIKey   string
	Endpoint string
	client   *http.Client
	cache    *lru.Cache[string, []string]
}

type searchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"numResults"`
}

type searchResponse struct {
	Results []struct {
		Text string `json:"text"`
	} `json:"results"`
}

// NewClient builds a search client. An empty endpoint selects the public
// Exa API.
func NewClient(apiKey, endpoint string) (*Client, error) {
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	cache, err := lru.New[string, []string](256)
	if err != nil {
		return nil, err
	}
	return &Client{
		APIKey:   apiKey,
		Endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		cache:    cache,
	}, nil
}

// Search returns the text snippets of the first numResults hits for query.
func (c *Client) Search(ctx context.Context, query string, numResults int) ([]string, error) {
	if numResults <= 0 {
		numResults = 5
	}
	key := cacheKey(query, numResults)
	if cached, ok := c.cache.Get(key); ok {
		return cached, nil
	}

	body, err := json.Marshal(searchRequest{Query: query, NumResults: numResults})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		detail := strings.TrimSpace(string(msg))
		if detail != "" {
			return nil, fmt.Errorf("exa error: %s: %s", resp.Status, detail)
		}
		return nil, fmt.Errorf("exa error: %s", resp.Status)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, err
	}
	results := make([]string, 0, len(payload.Results))
	for _, r := range payload.Results {
		results = append(results, r.Text)
	}
	c.cache.Add(key, results)
	return results, nil
}

func cacheKey(query string, numResults int) string {
	return fmt.Sprintf("%d:%s", numResults, query)
}

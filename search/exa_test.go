package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsResultTexts(t *testing.T) {
	var gotAuth string
	var gotBody searchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{
				{"text": "primeiro"},
				{"text": "segundo"},
			},
		})
	}))
	defer ts.Close()

	client, err := NewClient("secret", ts.URL)
	require.NoError(t, err)

	results, err := client.Search(context.Background(), "task manager", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"primeiro", "segundo"}, results)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "task manager", gotBody.Query)
	assert.Equal(t, 2, gotBody.NumResults)
}

func TestSearchCachesRepeatedQueries(t *testing.T) {
	hits := 0
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]string{{"text": "cached"}},
		})
	}))
	defer ts.Close()

	client, err := NewClient("secret", ts.URL)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		results, err := client.Search(context.Background(), "same brief", 5)
		require.NoError(t, err)
		assert.Equal(t, []string{"cached"}, results)
	}
	assert.Equal(t, 1, hits)

	// a different result count is a different cache entry
	_, err = client.Search(context.Background(), "same brief", 3)
	require.NoError(t, err)
	assert.Equal(t, 2, hits)
}

func TestSearchPropagatesAPIErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid key", http.StatusUnauthorized)
	}))
	defer ts.Close()

	client, err := NewClient("bad", ts.URL)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "anything", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exa error")
}

func TestSearchDefaultsNumResults(t *testing.T) {
	var gotBody searchRequest
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		_ = json.NewEncoder(w).Encode(map[string]interface{}{"results": []map[string]string{}})
	}))
	defer ts.Close()

	client, err := NewClient("secret", ts.URL)
	require.NoError(t, err)

	_, err = client.Search(context.Background(), "q", 0)
	require.NoError(t, err)
	assert.Equal(t, 5, gotBody.NumResults)
}

package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearchReturnsRankedHits(t *testing.T) {
	var gotKey, gotQuery string
	var gotNum int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-API-KEY")
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		gotQuery = req["q"].(string)
		gotNum = int(req["num"].(float64))

		json.NewEncoder(w).Encode(map[string]any{
			"organic": []map[string]string{
				{"title": "First", "link": "https://a.example/one", "snippet": "alpha"},
				{"title": "Second", "link": "https://b.example/two", "snippet": "beta"},
				{"title": "Third", "link": "https://c.example/three", "snippet": "gamma"},
			},
		})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "sekrit", Timeout: 5 * time.Second})
	hits, err := c.Search(context.Background(), "quantum computing", 3)
	require.NoError(t, err)

	assert.Equal(t, "sekrit", gotKey)
	assert.Equal(t, "quantum computing", gotQuery)
	assert.Equal(t, 3, gotNum)

	require.Len(t, hits, 3)
	assert.Equal(t, "First", hits[0].Title)
	assert.Equal(t, "https://a.example/one", hits[0].URL)
	assert.Equal(t, 1, hits[0].Position)
	assert.Equal(t, 3, hits[2].Position)
}

func TestSearchTruncatesToLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		results := make([]map[string]string, 10)
		for i := range results {
			results[i] = map[string]string{"title": "t", "link": "https://x.example", "snippet": "s"}
		}
		json.NewEncoder(w).Encode(map[string]any{"organic": results})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "k"})
	hits, err := c.Search(context.Background(), "q", 4)
	require.NoError(t, err)
	assert.Len(t, hits, 4)
}

func TestSearchEmptyResultsIsNotAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"organic": []any{}})
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "k"})
	hits, err := c.Search(context.Background(), "obscure", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchNon2xxIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusForbidden)
	}))
	defer srv.Close()

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "k"})
	_, err := c.Search(context.Background(), "q", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HTTP 403")
}

func TestSearchTransportErrorIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // Refuse connections.

	c := NewClient(Config{Endpoint: srv.URL, APIKey: "k"})
	_, err := c.Search(context.Background(), "q", 5)
	require.Error(t, err)
}

func TestSearchValidatesInput(t *testing.T) {
	c := NewClient(Config{Endpoint: "http://unused", APIKey: "k"})

	_, err := c.Search(context.Background(), "", 5)
	require.Error(t, err)

	_, err = c.Search(context.Background(), "q", 0)
	require.Error(t, err)
}

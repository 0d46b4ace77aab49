package graph

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mementolabs/memento/internal/memory"
)

func TestSanitizeFulltextQuery(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"what did I say about Go?", "what OR did OR I OR say OR about OR Go"},
		{`weird "quoted" (terms) + ops`, "weird OR quoted OR terms OR ops"},
		{"   ", ""},
		{"+-&|!(){}[]^\"~*?:\\/", ""},
		{"simple", "simple"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sanitizeFulltextQuery(tt.in), "input %q", tt.in)
	}
}

func TestEpisodeParams(t *testing.T) {
	ref := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	ep := memory.Episode{
		ID:                "ep-1",
		Name:              "conversation_2025-06-01T12:30:00Z",
		Body:              "User: hi\nAgent: hello",
		Source:            memory.SourceText,
		SourceDescription: "Conversation turn",
		ReferenceTime:     ref,
		GroupID:           "alice",
	}

	params := episodeParams(ep)
	assert.Equal(t, "ep-1", params["id"])
	assert.Equal(t, "User: hi\nAgent: hello", params["body"])
	assert.Equal(t, "text", params["source"])
	assert.Equal(t, "alice", params["group_id"])
	assert.Equal(t, "2025-06-01T12:30:00Z", params["reference_time"])
}

func TestResultFromProps(t *testing.T) {
	props := map[string]any{
		"name":           "conversation_x",
		"body":           "User: hi",
		"group_id":       "bob",
		"reference_time": "2025-06-01T12:30:00Z",
	}
	r := resultFromProps(props, 0.87)

	assert.Equal(t, "conversation_x", r.Name)
	assert.Equal(t, "User: hi", r.Content)
	assert.Equal(t, "bob", r.GroupID)
	assert.Equal(t, 0.87, r.Score)
	assert.Equal(t, 2025, r.ReferenceTime.Year())
}

func TestResultFromPropsMissingFields(t *testing.T) {
	r := resultFromProps(map[string]any{"body": 42}, 0.5)
	assert.Empty(t, r.Name)
	assert.Empty(t, r.Content)
	assert.True(t, r.ReferenceTime.IsZero())
}

func TestOpenAIEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/embeddings", r.URL.Path)
		require.Equal(t, "Bearer k", r.Header.Get("Authorization"))

		var body struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Input, 2)

		// Respond out of order to exercise index-based reassembly.
		json.NewEncoder(w).Encode(map[string]any{
			"data": []map[string]any{
				{"embedding": []float32{0.3, 0.4}, "index": 1},
				{"embedding": []float32{0.1, 0.2}, "index": 0},
			},
		})
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(EmbedderConfig{APIKey: "k", BaseURL: srv.URL, Dimensions: 2})
	vectors, err := e.Embed(context.Background(), []string{"first", "second"})
	require.NoError(t, err)
	require.Len(t, vectors, 2)
	assert.Equal(t, []float32{0.1, 0.2}, vectors[0])
	assert.Equal(t, []float32{0.3, 0.4}, vectors[1])
}

func TestOpenAIEmbedderAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	e := NewOpenAIEmbedder(EmbedderConfig{APIKey: "k", BaseURL: srv.URL})
	_, err := e.Embed(context.Background(), []string{"text"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embeddings API error")
}

func TestOpenAIEmbedderEmptyInput(t *testing.T) {
	e := NewOpenAIEmbedder(EmbedderConfig{APIKey: "k"})
	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

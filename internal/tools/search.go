package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	defaultSearchBaseURL = "https://api.tavily.com"

	// excerptBudget bounds each source excerpt so one verbose page can't eat
	// the synthesis call's token budget.
	excerptBudget = 400

	searchAttempts = 3
)

// SearchTool performs web searches against a Tavily-compatible API.
type SearchTool struct {
	client     *http.Client
	apiKey     string
	baseURL    string
	maxResults int
}

// SearchConfig configures the web search tool.
type SearchConfig struct {
	APIKey     string
	BaseURL    string // default: https://api.tavily.com
	MaxResults int    // default: 5
}

// searchInput is the model-facing input schema.
type searchInput struct {
	Query string `json:"query"`
}

// searchResponse mirrors the provider's answer + results shape.
type searchResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// NewSearchTool creates the web search tool.
func NewSearchTool(cfg SearchConfig) *SearchTool {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultSearchBaseURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 5
	}
	return &SearchTool{
		client:     &http.Client{Timeout: 30 * time.Second},
		apiKey:     cfg.APIKey,
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		maxResults: cfg.MaxResults,
	}
}

// Name returns the tool name.
func (t *SearchTool) Name() string {
	return "web_search"
}

// Description returns the tool description.
func (t *SearchTool) Description() string {
	return "Search the web for current information when you need up-to-date facts, news, prices, or information beyond your training data"
}

// Schema returns the JSON schema for the tool input.
func (t *SearchTool) Schema() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The search query to find relevant information on the web"
			}
		},
		"required": ["query"]
	}`)
}

// Execute performs the search. Provider failures degrade to an error-flavored
// result after a few attempts; Execute itself never returns an error.
func (t *SearchTool) Execute(ctx context.Context, input json.RawMessage) (*ToolResult, error) {
	var params searchInput
	if err := json.Unmarshal(input, &params); err != nil {
		return &ToolResult{
			Content: fmt.Sprintf("Invalid input: %v", err),
			IsError: true,
		}, nil
	}
	if strings.TrimSpace(params.Query) == "" {
		return &ToolResult{
			Content: "Error: 'query' is required",
			IsError: true,
		}, nil
	}

	var resp *searchResponse
	var err error
	for attempt := 1; attempt <= searchAttempts; attempt++ {
		resp, err = t.search(ctx, params.Query)
		if err == nil {
			break
		}
		if ctx.Err() != nil {
			break
		}
		slog.Warn("web search attempt failed", "attempt", attempt, "error", err)
	}
	if err != nil {
		return &ToolResult{
			Content: fmt.Sprintf("Search error: %v", err),
			IsError: true,
		}, nil
	}

	return &ToolResult{Content: t.format(params.Query, resp)}, nil
}

// search issues one request to the provider.
func (t *SearchTool) search(ctx context.Context, query string) (*searchResponse, error) {
	body, err := json.Marshal(map[string]any{
		"query":          query,
		"max_results":    t.maxResults,
		"include_answer": true,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("search API error: %s - %s", resp.Status, string(respBody))
	}

	var result searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}
	return &result, nil
}

// format renders the provider response as an optional synthesized answer
// followed by a numbered source list.
func (t *SearchTool) format(query string, resp *searchResponse) string {
	if resp.Answer == "" && len(resp.Results) == 0 {
		return "No results found for: " + query
	}

	var sb strings.Builder
	if resp.Answer != "" {
		sb.WriteString("Answer: ")
		sb.WriteString(resp.Answer)
		sb.WriteString("\n\n")
	}

	if len(resp.Results) > 0 {
		sb.WriteString("Sources:\n")
		for i, r := range resp.Results {
			if i >= t.maxResults {
				break
			}
			sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, r.Title))
			sb.WriteString(fmt.Sprintf("   URL: %s\n", r.URL))
			if r.Content != "" {
				sb.WriteString("   " + truncate(r.Content, excerptBudget) + "\n")
			}
		}
	}

	return strings.TrimRight(sb.String(), "\n")
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := s[:max]
	for len(cut) > 0 && !utf8.ValidString(cut) {
		cut = cut[:len(cut)-1]
	}
	return cut + "..."
}

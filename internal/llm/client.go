// Package llm is a thin HTTP client for the LLM sidecar service. Trident
// uses it for two single-turn calls per research run: query expansion and
// report synthesis.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tridentlabs/trident/internal/tracing"
)

// Config configures the client.
type Config struct {
	BaseURL string
	Timeout time.Duration
}

// Request is a single-turn completion request.
type Request struct {
	SystemPrompt string
	Prompt       string
	AgentID      string
	ModelTier    string
	MaxTokens    int
	Temperature  float64
	WorkflowID   string
}

// Response carries the completion text plus usage metadata.
type Response struct {
	Text         string
	ModelUsed    string
	Provider     string
	TokensUsed   int
	InputTokens  int
	OutputTokens int
}

// Client calls the LLM service's /agent/query endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the LLM service at cfg.BaseURL.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type agentQueryRequest struct {
	Query       string                 `json:"query"`
	MaxTokens   int                    `json:"max_tokens,omitempty"`
	Temperature float64                `json:"temperature"`
	AgentID     string                 `json:"agent_id,omitempty"`
	ModelTier   string                 `json:"model_tier,omitempty"`
	Context     map[string]interface{} `json:"context,omitempty"`
}

type agentQueryResponse struct {
	Success  bool   `json:"success"`
	Response string `json:"response"`
	Error    string `json:"error,omitempty"`
	Metadata struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"metadata"`
	TokensUsed int    `json:"tokens_used"`
	ModelUsed  string `json:"model_used"`
	Provider   string `json:"provider"`
}

// Complete performs a single-turn completion.
func (c *Client) Complete(ctx context.Context, req Request) (*Response, error) {
	if req.Prompt == "" {
		return nil, fmt.Errorf("prompt is required")
	}

	body := agentQueryRequest{
		Query:       req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		AgentID:     req.AgentID,
		ModelTier:   req.ModelTier,
	}
	if req.SystemPrompt != "" || req.WorkflowID != "" {
		body.Context = map[string]interface{}{}
		if req.SystemPrompt != "" {
			body.Context["system_prompt"] = req.SystemPrompt
		}
		if req.WorkflowID != "" {
			body.Context["parent_workflow_id"] = req.WorkflowID
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	endpoint := c.baseURL + "/agent/query"
	ctx, span := tracing.StartHTTPSpan(ctx, http.MethodPost, endpoint)
	defer span.End()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	tracing.InjectTraceparent(ctx, httpReq)
	if req.AgentID != "" {
		httpReq.Header.Set("X-Agent-ID", req.AgentID)
	}
	if req.WorkflowID != "" {
		httpReq.Header.Set("X-Workflow-ID", req.WorkflowID)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("LLM service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return nil, fmt.Errorf("HTTP %d from LLM service: %s", resp.StatusCode, excerpt)
	}

	var parsed agentQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to parse LLM response: %w", err)
	}
	if !parsed.Success {
		return nil, fmt.Errorf("LLM service reported failure: %s", parsed.Error)
	}

	return &Response{
		Text:         parsed.Response,
		ModelUsed:    parsed.ModelUsed,
		Provider:     parsed.Provider,
		TokensUsed:   parsed.TokensUsed,
		InputTokens:  parsed.Metadata.InputTokens,
		OutputTokens: parsed.Metadata.OutputTokens,
	}, nil
}

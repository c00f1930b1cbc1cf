package perplexity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/alexandrkolosov/personal-rag-agent-sub000/internal/domain"
)

// Client wraps the HTTP client for the search API. Call timeouts are
// per-request (model dependent), so the underlying http.Client carries none.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new search API client.
func NewClient(config Config) *Client {
	return &Client{
		apiKey:     config.APIKey,
		baseURL:    config.BaseURL,
		httpClient: &http.Client{},
	}
}

// Search API request/response structures.
type searchRequest struct {
	Model              string          `json:"model"`
	Messages           []searchMessage `json:"messages"`
	SearchDomainFilter []string        `json:"search_domain_filter,omitempty"`
	ReturnImages       bool            `json:"return_images,omitempty"`
	ReturnRelated      bool            `json:"return_related_questions,omitempty"`
}

type searchMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response represents a raw answer from the search API.
type Response struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Citations        []string `json:"citations"`
	Images           []string `json:"images"`
	RelatedQuestions []string `json:"related_questions"`
}

// Answer returns the first choice's content.
func (r *Response) Answer() string {
	if len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// Complete sends one search request. HTTP 429 is translated into
// domain.ErrRateLimited so callers can degrade instead of aborting.
func (c *Client) Complete(ctx context.Context, req searchRequest) (*Response, error) {
	if c.apiKey == "" {
		return nil, errors.New("API key is not configured")
	}

	reqBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		c.baseURL+"/chat/completions",
		bytes.NewReader(reqBody),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("search API returned 429: %w", domain.ErrRateLimited)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var apiResp Response
	if decodeErr := json.NewDecoder(resp.Body).Decode(&apiResp); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode response: %w", decodeErr)
	}

	return &apiResp, nil
}

// Package llm wraps the OpenAI Chat Completions API for diary analysis and
// history summarization. The client performs single attempts only; retry and
// circuit breaking belong to the resilience layer that wraps every call.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kokorolog/go-diary-backend/internal/config"
)

// ErrEmptyResponse reports a 200 response that carried no usable choice.
var ErrEmptyResponse = errors.New("llm: empty response")

// APIError is a non-2xx answer from the API. It exposes the status code and
// rate-limit reset hint through the interfaces the error classifier inspects.
type APIError struct {
	StatusCode int
	RetryAfter int // seconds until the rate limit resets, 0 if unknown
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("llm: api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) HTTPStatus() int        { return e.StatusCode }
func (e *APIError) RetryAfterSeconds() int { return e.RetryAfter }

// Message is one turn of a chat completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens,omitempty"`
	Temperature float64   `json:"temperature"`
}

// ChatCompletionResponse mirrors the fields of the API answer we consume.
type ChatCompletionResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// CompletionOptions override the configured model parameters per call.
type CompletionOptions struct {
	MaxTokens   int
	Temperature float64
}

// Client talks to one Chat Completions endpoint.
type Client struct {
	cfg  config.LLMConfig
	http *http.Client
	log  zerolog.Logger
}

// NewClient builds a Client from configuration. The HTTP client timeout is a
// backstop; per-call deadlines come from the caller's context.
func NewClient(cfg config.LLMConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "llm").Logger(),
	}
}

// CreateChatCompletion performs one API call and returns the decoded
// response. Failures are returned as *APIError when a status code is
// available, so callers can classify them.
func (c *Client) CreateChatCompletion(ctx context.Context, messages []Message, opts CompletionOptions) (*ChatCompletionResponse, error) {
	payload := chatCompletionRequest{
		Model:       c.cfg.Model,
		Messages:    messages,
		MaxTokens:   opts.MaxTokens,
		Temperature: opts.Temperature,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("llm: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("llm: read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		apiErr := &APIError{
			StatusCode: resp.StatusCode,
			RetryAfter: retryAfterHint(resp.Header),
			Message:    errorMessage(raw, resp.Status),
		}
		c.log.Warn().
			Int("status", resp.StatusCode).
			Int("retry_after", apiErr.RetryAfter).
			Str("model", c.cfg.Model).
			Msg("chat completion request rejected")
		return nil, apiErr
	}

	var out ChatCompletionResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("llm: decode response: %w", err)
	}

	c.log.Debug().
		Str("model", out.Model).
		Int("total_tokens", out.Usage.TotalTokens).
		Msg("chat completion ok")
	return &out, nil
}

// AnalyzeDiary asks the model for a structured four-part analysis of one
// diary entry, optionally grounded in the user's recent-history summary.
// The returned string is the raw model output; parsing happens upstream.
func (c *Client) AnalyzeDiary(ctx context.Context, entry, historySummary string) (string, error) {
	if strings.TrimSpace(entry) == "" {
		return "", errors.New("llm: diary entry is required")
	}

	resp, err := c.CreateChatCompletion(ctx, AnalysisMessages(entry, historySummary), CompletionOptions{
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return "", err
	}
	return firstContent(resp)
}

// SummarizeEntries condenses recent diary entries into a short trend summary.
func (c *Client) SummarizeEntries(ctx context.Context, contents []string) (string, error) {
	if len(contents) == 0 {
		return "", errors.New("llm: no entries to summarize")
	}

	resp, err := c.CreateChatCompletion(ctx, SummaryMessages(contents), CompletionOptions{
		MaxTokens:   c.cfg.SummaryMaxTokens,
		Temperature: c.cfg.SummaryTemperature,
	})
	if err != nil {
		return "", err
	}
	content, err := firstContent(resp)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(content), nil
}

func firstContent(resp *ChatCompletionResponse) (string, error) {
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}
	return resp.Choices[0].Message.Content, nil
}

// retryAfterHint extracts a reset delay in seconds from the response
// headers, preferring the standard Retry-After over the OpenAI-specific
// rate-limit header.
func retryAfterHint(h http.Header) int {
	for _, key := range []string{"Retry-After", "X-Ratelimit-Reset-Requests"} {
		if v := h.Get(key); v != "" {
			if n, err := strconv.Atoi(strings.TrimSuffix(v, "s")); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// errorMessage pulls the API error description out of the body, falling back
// to the HTTP status line.
func errorMessage(raw []byte, statusLine string) string {
	var apiBody struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &apiBody); err == nil && apiBody.Error.Message != "" {
		return apiBody.Error.Message
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return statusLine
}

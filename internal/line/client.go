// Package line implements the subset of the LINE Messaging API the diary
// bot needs: replying to webhook events, pushing follow-up messages, and
// the typing indicator shown while analysis runs in the background.
package line

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/kokorolog/go-diary-backend/internal/config"
)

// Messenger is the outbound messaging surface consumed by the services
// layer. Implemented by *Client; tests substitute fakes.
type Messenger interface {
	Reply(ctx context.Context, replyToken string, texts []string) error
	Push(ctx context.Context, userID string, texts []string) error
	ShowLoading(ctx context.Context, userID string, seconds int) error
}

// APIError is a non-2xx answer from the Messaging API.
type APIError struct {
	StatusCode int
	RetryAfter int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("line: api error (status %d): %s", e.StatusCode, e.Message)
}

func (e *APIError) HTTPStatus() int        { return e.StatusCode }
func (e *APIError) RetryAfterSeconds() int { return e.RetryAfter }

// TextMessage is the only message type the bot sends.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Client talks to the LINE Messaging API over REST.
type Client struct {
	cfg  config.LINEConfig
	http *http.Client
	log  zerolog.Logger
}

var _ Messenger = (*Client)(nil)

// NewClient builds a Client from configuration.
func NewClient(cfg config.LINEConfig, log zerolog.Logger) *Client {
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log.With().Str("component", "line").Logger(),
	}
}

// Reply answers a webhook event using its one-shot reply token.
func (c *Client) Reply(ctx context.Context, replyToken string, texts []string) error {
	payload := struct {
		ReplyToken string        `json:"replyToken"`
		Messages   []TextMessage `json:"messages"`
	}{ReplyToken: replyToken, Messages: textMessages(texts)}

	return c.post(ctx, "/v2/bot/message/reply", payload)
}

// Push sends messages to a user outside the reply window. Used for the
// follow-up carrying the full analysis after the immediate acknowledgement.
func (c *Client) Push(ctx context.Context, userID string, texts []string) error {
	payload := struct {
		To       string        `json:"to"`
		Messages []TextMessage `json:"messages"`
	}{To: userID, Messages: textMessages(texts)}

	return c.post(ctx, "/v2/bot/message/push", payload)
}

// ShowLoading displays the typing indicator in the user's chat for up to
// the given number of seconds. Best effort; failures only affect UX.
func (c *Client) ShowLoading(ctx context.Context, userID string, seconds int) error {
	payload := struct {
		ChatID         string `json:"chatId"`
		LoadingSeconds int    `json:"loadingSeconds"`
	}{ChatID: userID, LoadingSeconds: seconds}

	return c.post(ctx, "/v2/bot/chat/loading/start", payload)
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("line: encode request: %w", err)
	}

	url := strings.TrimRight(c.cfg.APIEndpoint, "/") + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("line: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.ChannelToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("line: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: retryAfterHint(resp.Header),
		Message:    apiMessage(raw, resp.Status),
	}
	c.log.Warn().
		Str("path", path).
		Int("status", resp.StatusCode).
		Msg("messaging api request rejected")
	return apiErr
}

func textMessages(texts []string) []TextMessage {
	out := make([]TextMessage, len(texts))
	for i, t := range texts {
		out[i] = TextMessage{Type: "text", Text: t}
	}
	return out
}

func retryAfterHint(h http.Header) int {
	if v := h.Get("Retry-After"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return 0
}

func apiMessage(raw []byte, statusLine string) string {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		return body.Message
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return statusLine
}

// Package llm provides a streaming client for OpenAI-compatible chat-completion APIs.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultEndpoint is the OpenAI chat-completion URL.
	DefaultEndpoint = "https://api.openai.com/v1/chat/completions"
	// DefaultTimeout bounds a whole call, request and streaming together.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 64 * 1024
)

// Role is the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one role-tagged chat message. Order within a conversation is sent verbatim.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Request is one streaming chat call.
type Request struct {
	Messages    []Message
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// Validate checks the request before any network call.
func (r Request) Validate() error {
	switch {
	case len(r.Messages) == 0:
		return fmt.Errorf("%w: no messages", ErrInvalidRequest)
	case strings.TrimSpace(r.APIKey) == "":
		return fmt.Errorf("%w: missing API key", ErrInvalidRequest)
	case strings.TrimSpace(r.Model) == "":
		return fmt.Errorf("%w: missing model", ErrInvalidRequest)
	case r.Temperature < 0 || r.Temperature > 1:
		return fmt.Errorf("%w: temperature %.2f outside [0,1]", ErrInvalidRequest, r.Temperature)
	case r.MaxTokens <= 0:
		return fmt.Errorf("%w: max tokens must be positive", ErrInvalidRequest)
	}
	for _, m := range r.Messages {
		switch m.Role {
		case RoleSystem, RoleUser, RoleAssistant:
		default:
			return fmt.Errorf("%w: unknown role %q", ErrInvalidRequest, m.Role)
		}
	}
	return nil
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

// Client issues streaming chat-completion requests.
type Client struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithEndpoint sets the chat-completion URL.
func WithEndpoint(url string) ClientOption {
	return func(c *Client) {
		if url != "" {
			c.endpoint = url
		}
	}
}

// WithTimeout sets the upper bound for a whole call.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient sets the HTTP client. Its own Timeout should be zero: the call
// deadline is applied through the request context so it also covers streaming.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithLogger sets a logger for request and dropped-line debug output.
func WithLogger(l *zap.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient creates a client with the given options.
func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		endpoint:   DefaultEndpoint,
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the configured chat-completion URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Stream opens one streaming request. On a non-2xx status, transport failure or
// timeout it returns a nil Stream and an *Error; no fragment is ever produced in
// that case. The returned Stream must be drained or closed.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	payload, err := json.Marshal(chatRequest{
		Model:       req.Model,
		Messages:    req.Messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+req.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	c.logger.Debug("chat request",
		zap.String("endpoint", c.endpoint),
		zap.String("model", req.Model),
		zap.Int("messages", len(req.Messages)),
	)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		e := classify(ctx, err, KindConnection)
		cancel()
		return nil, e
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		_ = resp.Body.Close()
		cancel()
		detail := errorDetail(body)
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return nil, &Error{Kind: KindRequestFailed, StatusCode: resp.StatusCode, Detail: detail}
	}
	return newStream(ctx, cancel, resp.Body, c.logger), nil
}

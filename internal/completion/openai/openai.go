// Package openai implements completion.Completer against an OpenAI-compatible
// /v1/completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/discochess/chessllm/internal/completion"
)

const (
	// DefaultBaseURL is the public OpenAI API.
	DefaultBaseURL = "https://api.openai.com"

	// DefaultTimeout bounds a single request when ctx carries no deadline.
	DefaultTimeout = 60 * time.Second

	completionsPath = "/v1/completions"
)

// ErrNoChoices is returned when a response carries no choices.
var ErrNoChoices = errors.New("openai: response has no choices")

// Compile-time check that Client implements completion.Completer.
var _ completion.Completer = (*Client)(nil)

// Client calls the completions endpoint over fasthttp.
type Client struct {
	baseURL string
	apiKey  string
	http    *fasthttp.Client
	timeout time.Duration
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithHTTPClient sets the fasthttp client, e.g. one with a custom Dial.
func WithHTTPClient(hc *fasthttp.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// New returns a client authenticating with apiKey.
func New(apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		apiKey:  apiKey,
		http: &fasthttp.Client{
			ReadTimeout:     DefaultTimeout,
			WriteTimeout:    10 * time.Second,
			MaxConnsPerHost: 16,
		},
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type requestBody struct {
	Model       string  `json:"model"`
	Prompt      string  `json:"prompt"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

type responseBody struct {
	Choices []struct {
		Text string `json:"text"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

// Complete posts req and returns the first choice's text.
func (c *Client) Complete(ctx context.Context, req completion.Request) (string, error) {
	payload, err := json.Marshal(requestBody{
		Model:       req.Model,
		Prompt:      req.Prompt,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	httpReq := fasthttp.AcquireRequest()
	httpResp := fasthttp.AcquireResponse()
	defer func() {
		fasthttp.ReleaseRequest(httpReq)
		fasthttp.ReleaseResponse(httpResp)
	}()

	httpReq.Header.SetMethod(fasthttp.MethodPost)
	httpReq.SetRequestURI(c.baseURL + completionsPath)
	httpReq.Header.SetContentType("application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	httpReq.SetBody(payload)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	start := time.Now()
	if err := c.http.DoDeadline(httpReq, httpResp, c.deadline(ctx)); err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	c.logger.Debug("completion",
		zap.String("model", req.Model),
		zap.Int("status", httpResp.StatusCode()),
		zap.Duration("elapsed", time.Since(start)),
	)

	var body responseBody
	decodeErr := json.Unmarshal(httpResp.Body(), &body)

	if status := httpResp.StatusCode(); status < 200 || status >= 300 {
		if decodeErr == nil && body.Error != nil {
			return "", fmt.Errorf("openai api error: status=%d type=%s: %s", status, body.Error.Type, body.Error.Message)
		}
		return "", fmt.Errorf("openai api error: status=%d body=%s", status, truncate(string(httpResp.Body()), 512))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(body.Choices) == 0 {
		return "", ErrNoChoices
	}
	return body.Choices[0].Text, nil
}

func (c *Client) deadline(ctx context.Context) time.Time {
	clientDL := time.Now().Add(c.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(clientDL) {
		return dl
	}
	return clientDL
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

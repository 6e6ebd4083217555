package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"chat-gateway/internal/domain"
)

// chatRequest is the minimal request shape for the Chat Completions endpoint.
type chatRequest struct {
	Model     string               `json:"model"`
	Messages  []domain.ChatMessage `json:"messages"`
	MaxTokens int                  `json:"max_tokens,omitempty"`
}

// chatResponse is the minimal response shape returned by the Chat Completions endpoint.
type chatResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	Choices []struct {
		Index   int                `json:"index"`
		Message domain.ChatMessage `json:"message"`
	} `json:"choices"`
}

// Getter resolves named parameters from an external parameter store.
type Getter interface {
	GetParameter(ctx context.Context, name string) (string, error)
}

// ErrNoCredential indicates no API key could be resolved for the provider.
var ErrNoCredential = errors.New("openai: no API key configured")

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("openai: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client is a focused client for one OpenAI-compatible chat completion
// provider. The API key is resolved at call time: the configured environment
// variable first, then an optional parameter-store fallback. Keys are never
// logged.
type Client struct {
	name       string
	baseURL    string
	envKey     string
	httpClient *http.Client

	getter    Getter
	paramName string
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithParamStore enables a parameter-store fallback for the API key, read
// when the environment variable is unset.
func WithParamStore(getter Getter, paramName string) Option {
	return func(c *Client) {
		c.getter = getter
		c.paramName = strings.TrimSpace(paramName)
	}
}

// NewClient creates a Client for a named provider whose API key is read from
// the given environment variable.
func NewClient(name, baseURL, envKey string, opts ...Option) (*Client, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("openai: provider name must not be empty")
	}
	if strings.TrimSpace(envKey) == "" {
		return nil, errors.New("openai: env key name must not be empty")
	}
	c := &Client{
		name:       name,
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		envKey:     envKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	if c.baseURL == "" {
		c.baseURL = "https://api.openai.com/v1"
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Name returns the provider name used in user-facing degradation messages.
func (c *Client) Name() string {
	return c.name
}

// APIKey resolves the provider's API key. It returns ErrNoCredential when
// neither the environment variable nor the parameter store yields one.
func (c *Client) APIKey(ctx context.Context) (string, error) {
	if key := strings.TrimSpace(os.Getenv(c.envKey)); key != "" {
		return key, nil
	}
	if c.getter != nil && c.paramName != "" {
		key, err := c.getter.GetParameter(ctx, c.paramName)
		if err == nil && strings.TrimSpace(key) != "" {
			return strings.TrimSpace(key), nil
		}
	}
	return "", ErrNoCredential
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func (c *Client) chatURL() string {
	return c.baseURL + "/chat/completions"
}

// Chat issues one synchronous chat completion request and returns the first
// choice's content. An empty string with a nil error means the provider
// returned no completion.
func (c *Client) Chat(ctx context.Context, model string, messages []domain.ChatMessage, maxTokens int) (string, error) {
	if model == "" {
		return "", errors.New("openai: model must not be empty")
	}

	apiKey, err := c.APIKey(ctx)
	if err != nil {
		return "", err
	}

	body, err := json.Marshal(chatRequest{
		Model:     model,
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("openai: marshal request: %w", err)
	}

	url := c.chatURL()

	req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if reqErr != nil {
		return "", fmt.Errorf("openai: create request: %w", reqErr)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	raw, err := c.doJSONRequest(req, url)
	if err != nil {
		return "", err
	}

	var payload chatResponse
	if decErr := json.Unmarshal(raw, &payload); decErr != nil {
		return "", fmt.Errorf("openai: decode response: %w", decErr)
	}
	if len(payload.Choices) == 0 {
		return "", nil
	}
	return payload.Choices[0].Message.Content, nil
}

func (c *Client) doJSONRequest(req *http.Request, url string) ([]byte, error) {
	res, doErr := c.resolvedHTTPClient().Do(req)
	if doErr != nil {
		return nil, fmt.Errorf("openai: request failed: %w", doErr)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{
			StatusCode: res.StatusCode,
			URL:        url,
			Body:       string(buf),
		}
	}

	buf, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("openai: read response body: %w", err)
	}
	return buf, nil
}

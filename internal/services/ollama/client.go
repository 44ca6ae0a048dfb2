package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"themescore/internal/services"
)

const (
	// DefaultHost is used when no host is configured.
	DefaultHost           = "http://localhost:11434"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryBaseDelay = time.Second
	defaultRetryMaxDelay  = 10 * time.Second
)

// Config captures the runtime settings for an Ollama server.
type Config struct {
	Host           string
	Model          string
	TimeoutSeconds int
	// RetryAttempts bounds attempts per request; values below 1 mean one attempt.
	RetryAttempts int
}

// Client wraps the Ollama HTTP API.
type Client struct {
	cfg        Config
	httpClient *http.Client
	sleeper    func(time.Duration)
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed.
func WithSleeper(sleeper func(time.Duration)) Option {
	return func(c *Client) {
		c.sleeper = sleeper
	}
}

// NewClient constructs a client for the server at cfg.Host.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	cfg.Host = strings.TrimRight(strings.TrimSpace(cfg.Host), "/")
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.RetryAttempts < 1 {
		cfg.RetryAttempts = 1
	}
	client := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

// Host returns the server base URL.
func (c *Client) Host() string { return c.cfg.Host }

// Model returns the default model used when a request does not name one.
func (c *Client) Model() string { return c.cfg.Model }

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	NumPredict    int     `json:"num_predict,omitempty"`
}

type generateResponse struct {
	Model    string `json:"model"`
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// Generate runs one non-streaming completion and returns the response text
// verbatim. An empty model falls back to the configured one.
func (c *Client) Generate(ctx context.Context, model, prompt string, opts services.GenerateOptions) (string, error) {
	if strings.TrimSpace(prompt) == "" {
		return "", services.Wrap(services.ErrValidation, "ollama", "generate", "prompt required", nil)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = c.cfg.Model
	}
	if model == "" {
		return "", services.Wrap(services.ErrConfiguration, "ollama", "generate", "model required", nil)
	}
	payload := generateRequest{
		Model:  model,
		Prompt: prompt,
		Options: generateOptions{
			Temperature:   opts.Temperature,
			TopP:          opts.TopP,
			RepeatPenalty: opts.RepeatPenalty,
			NumPredict:    opts.MaxTokens,
		},
	}
	if opts.JSON {
		payload.Format = "json"
	}

	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryAttempts; attempt++ {
		text, err := c.generateOnce(ctx, payload)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if attempt == c.cfg.RetryAttempts || !retryable(ctx, err) {
			break
		}
		if err := c.sleep(ctx, backoff(attempt)); err != nil {
			lastErr = err
			break
		}
	}
	return "", classifyError("generate", lastErr)
}

func (c *Client) generateOnce(ctx context.Context, payload generateRequest) (string, error) {
	var decoded generateResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/generate", payload, &decoded); err != nil {
		return "", err
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("api error: %s", decoded.Error)
	}
	if !decoded.Done {
		return "", errors.New("response not marked done")
	}
	return decoded.Response, nil
}

// HealthCheck verifies the server is reachable and, when a model is
// configured, that it is installed. Tags may omit the ":latest" suffix.
func (c *Client) HealthCheck(ctx context.Context) error {
	var tags struct {
		Models []struct {
			Name  string `json:"name"`
			Model string `json:"model"`
		} `json:"models"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		return classifyError("health", err)
	}
	if c.cfg.Model == "" {
		return nil
	}
	want := normalizeTag(c.cfg.Model)
	for _, m := range tags.Models {
		if normalizeTag(m.Name) == want || normalizeTag(m.Model) == want {
			return nil
		}
	}
	return services.Wrap(services.ErrConfiguration, "ollama", "health", fmt.Sprintf("model %q not installed", c.cfg.Model), nil)
}

func normalizeTag(name string) string {
	name = strings.TrimSpace(name)
	if name != "" && !strings.Contains(name, ":") {
		name += ":latest"
	}
	return name
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	endpoint, err := url.JoinPath(c.cfg.Host, path)
	if err != nil {
		return fmt.Errorf("build url: %w", err)
	}
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if requestID, ok := services.RequestIDFromContext(ctx); ok {
		req.Header.Set("X-Request-ID", requestID)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http error (timeout=%s): %w", c.httpClient.Timeout, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return &statusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *statusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusRequestTimeout ||
			statusErr.StatusCode == http.StatusTooManyRequests ||
			statusErr.StatusCode >= http.StatusInternalServerError
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func backoff(attempt int) time.Duration {
	delay := defaultRetryBaseDelay
	for i := 1; i < attempt && delay < defaultRetryMaxDelay; i++ {
		delay *= 2
	}
	return min(delay, defaultRetryMaxDelay)
}

func (c *Client) sleep(ctx context.Context, delay time.Duration) error {
	if c.sleeper != nil {
		c.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func classifyError(op string, err error) error {
	var statusErr *statusError
	var netErr net.Error
	switch {
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return services.Wrap(services.ErrTimeout, "ollama", op, "request deadline exceeded", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return services.Wrap(services.ErrTimeout, "ollama", op, "request timed out", err)
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusNotFound:
		return services.Wrap(services.ErrConfiguration, "ollama", op, "model or endpoint not found", err)
	default:
		return services.Wrap(services.ErrExternalTool, "ollama", op, "", err)
	}
}

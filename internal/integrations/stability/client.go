package stability

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"halfjourney/internal/domain"
)

const (
	defaultBaseURL = "https://api.stability.ai"
	defaultEngine  = "stable-diffusion-v1-5"
	defaultTimeout = 25 * time.Second
	maxImageBytes  = 16 << 20
)

// KeySource supplies the API key. paramstore.Secret and
// paramstore.StaticSecret both satisfy it.
type KeySource interface {
	Value(ctx context.Context) (string, error)
}

// HTTPStatusError captures non-2xx upstream responses with status-aware context.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("stability: unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client calls the Stability REST text-to-image endpoint.
type Client struct {
	baseURL    string
	engine     string
	httpClient *http.Client
	key        KeySource
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSpace(baseURL)
	}
}

func WithEngine(engine string) Option {
	return func(c *Client) {
		if e := strings.TrimSpace(engine); e != "" {
			c.engine = e
		}
	}
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(key KeySource, opts ...Option) (*Client, error) {
	if key == nil {
		return nil, errors.New("stability: key source must not be nil")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		engine:     defaultEngine,
		httpClient: &http.Client{Timeout: defaultTimeout},
		key:        key,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func textToImageURL(baseURL, engine string) string {
	base := strings.TrimRight(baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	base = strings.TrimSuffix(base, "/v1")
	return base + "/v1/generation/" + engine + "/text-to-image"
}

func (c *Client) resolvedHTTPClient() *http.Client {
	if c.httpClient != nil {
		return c.httpClient
	}
	return &http.Client{Timeout: defaultTimeout}
}

// Generate synthesizes one image for prompt and returns the decoded bytes.
func (c *Client) Generate(ctx context.Context, prompt string) ([]byte, error) {
	apiKey, err := c.key.Value(ctx)
	if err != nil {
		return nil, fmt.Errorf("stability: resolve api key: %w", err)
	}

	body, err := json.Marshal(domain.NewTextToImageRequest(prompt))
	if err != nil {
		return nil, fmt.Errorf("stability: marshal request: %w", err)
	}

	url := textToImageURL(c.baseURL, c.engine)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("stability: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	res, err := c.resolvedHTTPClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("stability: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return nil, &HTTPStatusError{StatusCode: res.StatusCode, URL: url, Body: string(buf)}
	}

	var payload domain.TextToImageResponse
	if err := json.NewDecoder(io.LimitReader(res.Body, maxImageBytes)).Decode(&payload); err != nil {
		return nil, fmt.Errorf("stability: decode response: %w", err)
	}
	img, err := payload.FirstImage()
	if err != nil {
		return nil, fmt.Errorf("stability: %w", err)
	}
	return img, nil
}

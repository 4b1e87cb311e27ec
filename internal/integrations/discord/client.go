package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://discord.com/api/v10"
	defaultTimeout = 10 * time.Second
)

// followupMessage is the minimal webhook execute body.
type followupMessage struct {
	Content string `json:"content"`
}

// HTTPStatusError captures non-2xx webhook responses.
type HTTPStatusError struct {
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("discord: unexpected status %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPStatusError) HTTPStatusCode() int {
	return e.StatusCode
}

// Client posts follow-up messages to interactions of one application.
type Client struct {
	baseURL    string
	appID      string
	httpClient *http.Client
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

func NewClient(appID string, opts ...Option) (*Client, error) {
	appID = strings.TrimSpace(appID)
	if appID == "" {
		return nil, errors.New("discord: application id must not be empty")
	}
	c := &Client{
		baseURL:    defaultBaseURL,
		appID:      appID,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) webhookURL(token string) string {
	base := strings.TrimRight(c.baseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	return base + "/webhooks/" + url.PathEscape(c.appID) + "/" + url.PathEscape(token)
}

// PostFollowup sends content into the conversation the token belongs to.
func (c *Client) PostFollowup(ctx context.Context, token, content string) error {
	if strings.TrimSpace(token) == "" {
		return errors.New("discord: interaction token must not be empty")
	}
	body, err := json.Marshal(followupMessage{Content: content})
	if err != nil {
		return fmt.Errorf("discord: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL(token), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpClient := c.httpClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	res, err := httpClient.Do(req)
	if err != nil {
		// The URL embeds the reply token; keep it out of the error text.
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return fmt.Errorf("discord: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return &HTTPStatusError{StatusCode: res.StatusCode, Body: string(buf)}
	}
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<20))
	return nil
}

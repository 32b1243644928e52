package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// WebhookChannel delivers messages to an HTTP endpoint, either as a JSON POST
// body or as query parameters on a GET.
type WebhookChannel struct {
	url    string
	method string
	client *http.Client
}

// WebhookOption configures the webhook channel.
type WebhookOption func(*WebhookChannel)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) WebhookOption {
	return func(ch *WebhookChannel) {
		if client != nil {
			ch.client = client
		}
	}
}

// NewWebhookChannel constructs a webhook channel. method is POST or GET.
func NewWebhookChannel(rawURL, method string, opts ...WebhookOption) (*WebhookChannel, error) {
	if rawURL == "" {
		return nil, errors.New("webhook channel: empty url")
	}
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("webhook channel: %w", err)
	}
	method = strings.ToUpper(method)
	if method == "" {
		method = http.MethodPost
	}
	if method != http.MethodPost && method != http.MethodGet {
		return nil, fmt.Errorf("webhook channel: unsupported method %q", method)
	}

	channel := &WebhookChannel{
		url:    rawURL,
		method: method,
		client: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		opt(channel)
	}
	return channel, nil
}

// Name identifies the channel in logs.
func (w *WebhookChannel) Name() string {
	return "webhook"
}

// Send delivers msg.
func (w *WebhookChannel) Send(ctx context.Context, msg Message) error {
	req, err := w.request(ctx, msg)
	if err != nil {
		return err
	}
	resp, err := w.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook channel: non-2xx response %d", resp.StatusCode)
	}
	return nil
}

func (w *WebhookChannel) request(ctx context.Context, msg Message) (*http.Request, error) {
	if w.method == http.MethodGet {
		u, err := url.Parse(w.url)
		if err != nil {
			return nil, err
		}
		q := u.Query()
		q.Set("message", msg.Message)
		q.Set("severity", string(msg.Severity))
		q.Set("timestamp", msg.Timestamp)
		u.RawQuery = q.Encode()
		return http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

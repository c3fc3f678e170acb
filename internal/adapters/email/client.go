// Package email delivers notification mail through the external email
// integrator service over HTTP.
package email

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

	"github.com/stormgate/auth-api/config"
	"github.com/stormgate/auth-api/internal/ports"
)

// Client posts message payloads to the integrator's send endpoint with
// a bounded number of retries.
type Client struct {
	url        string
	appName    string
	retryLimit int
	client     *http.Client
}

// NewClient builds an integrator client. Callers should pass a
// validated config.
func NewClient(cfg config.EmailConfig) (*Client, error) {
	u := strings.TrimSpace(cfg.IntegratorURL)
	if u == "" {
		return nil, errors.New("email integrator url is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	retries := cfg.RetryLimit
	if retries < 0 {
		retries = 0
	}

	return &Client{
		url:        u,
		appName:    cfg.AppName,
		retryLimit: retries,
		client:     &http.Client{Timeout: timeout},
	}, nil
}

type sendRequest struct {
	App      string            `json:"app"`
	To       string            `json:"to"`
	Subject  string            `json:"subject"`
	Template string            `json:"template"`
	Vars     map[string]string `json:"vars,omitempty"`
}

// Send posts the message to the integrator, retrying transient
// failures with linear backoff.
func (c *Client) Send(ctx context.Context, msg ports.Email) error {
	body, err := json.Marshal(sendRequest{
		App:      c.appName,
		To:       msg.To,
		Subject:  msg.Subject,
		Template: msg.Template,
		Vars:     msg.Vars,
	})
	if err != nil {
		return fmt.Errorf("encode email payload: %w", err)
	}

	attempts := c.retryLimit + 1
	var lastErr error
	for attempt := range attempts {
		err = c.post(ctx, body)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt < attempts-1 {
			delay := time.Duration(attempt+1) * 200 * time.Millisecond
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				if !timer.Stop() {
					<-timer.C
				}
				return ctx.Err()
			case <-timer.C:
			}
		}
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create integrator request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("integrator request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("email integrator %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

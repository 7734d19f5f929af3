// Package push sends a fallback alert as an HTTP push notification to a
// ntfy.sh-compatible topic URL: a bare topic name is expanded against
// https://ntfy.sh, a full URL is posted to directly, so a self-hosted
// ntfy server works without any code change. Adapted from the teacher's
// ntfy client, generalized from its three hardcoded session-lifecycle
// notifications (attention/exit/test) down to the one generic Send the
// fallback dead-man-switch needs.
package push

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client posts a single notification to a ntfy topic or webhook URL.
type Client struct {
	url   string
	token string
}

// New builds a Client for target, which may be a bare ntfy topic name or a
// full https:// URL (a self-hosted ntfy server, or any webhook endpoint
// that accepts a POST body plus Title/Priority headers).
func New(target, token string) *Client {
	url := target
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		url = "https://ntfy.sh/" + target
	}
	return &Client{url: url, token: token}
}

// Send posts title/body as a single notification with the given ntfy
// priority ("default", "high", ...).
func (c *Client) Send(ctx context.Context, title, body, priority string) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewBufferString(body))
	if err != nil {
		return fmt.Errorf("build push request: %w", err)
	}
	req.Header.Set("Title", title)
	if priority != "" {
		req.Header.Set("Priority", priority)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("push request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return fmt.Errorf("push endpoint returned HTTP %d", resp.StatusCode)
	}
	return nil
}

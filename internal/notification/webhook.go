package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// webhookPayload is the JSON body POSTed for every message.
type webhookPayload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
	SentAt string `json:"sent_at"`
}

// WebhookNotifier POSTs messages as JSON to an HTTP endpoint. It serves as
// the alternate delivery path when Telegram fails.
type WebhookNotifier struct {
	url    string
	host   string
	client *http.Client
}

// NewWebhookNotifier creates a webhook notifier. A zero timeout keeps the
// 10s default.
func NewWebhookNotifier(endpoint string, timeout time.Duration) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	host := "webhook"
	if u, err := url.Parse(endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	return &WebhookNotifier{
		url:    endpoint,
		host:   host,
		client: &http.Client{Timeout: timeout},
	}
}

func (w *WebhookNotifier) Notify(ctx context.Context, text string) error {
	body, err := json.Marshal(webhookPayload{
		Text:   text,
		Source: "fisherbot",
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.client.Do(req)
	if err != nil {
		// url.Error repeats the full endpoint; keep only the cause.
		var uerr *url.Error
		if errors.As(err, &uerr) {
			err = uerr.Err
		}
		return fmt.Errorf("webhook %s: %w", w.host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("webhook %s: status %d: %s", w.host, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	// Only the host is logged; webhook paths often embed a secret.
	log.Printf("[webhook] delivered %d bytes to %s", len(text), w.host)
	return nil
}

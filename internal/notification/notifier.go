// Package notification delivers formatted signal text to external channels
// (Telegram, generic webhooks) and to the process log.
package notification

import (
	"context"
	"log"
	"strings"
)

// LogNotifier writes messages to the process log. It is the delivery path
// used when no Telegram credentials are configured.
type LogNotifier struct{}

// NewLogNotifier creates a log-based notifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, text string) error {
	log.Printf("[notify] %s", strings.ReplaceAll(text, "\n", " | "))
	return nil
}

// MaskSecret hides all but the last four characters of a credential.
func MaskSecret(s string) string {
	if s == "" {
		return "<unset>"
	}
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-4) + s[len(s)-4:]
}

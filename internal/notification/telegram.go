package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// DefaultTelegramURL is the Bot API root.
const DefaultTelegramURL = "https://api.telegram.org"

// Telegram parse modes. ParsePlain sends the text unformatted.
const (
	ParseMarkdown = "Markdown"
	ParsePlain    = ""
)

// TelegramNotifier sends messages via the Telegram Bot API.
type TelegramNotifier struct {
	botToken  string
	chatID    string
	baseURL   string
	parseMode string
	client    *http.Client
}

// TelegramOption customises a TelegramNotifier.
type TelegramOption func(*TelegramNotifier)

// WithBaseURL points the notifier at a different Bot API root.
func WithBaseURL(u string) TelegramOption {
	return func(t *TelegramNotifier) {
		if u != "" {
			t.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithParseMode sets the parse_mode field. ParsePlain omits it.
func WithParseMode(mode string) TelegramOption {
	return func(t *TelegramNotifier) { t.parseMode = mode }
}

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) TelegramOption {
	return func(t *TelegramNotifier) { t.client.Timeout = d }
}

// NewTelegramNotifier creates a Telegram notifier.
// botToken: Bot API token from @BotFather
// chatID: Target chat/group/channel ID
func NewTelegramNotifier(botToken, chatID string, opts ...TelegramOption) *TelegramNotifier {
	t := &TelegramNotifier{
		botToken:  botToken,
		chatID:    chatID,
		baseURL:   DefaultTelegramURL,
		parseMode: ParseMarkdown,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// Plain returns a copy of t that sends without a parse mode. Messages whose
// Markdown Telegram rejects still get through this way.
func (t *TelegramNotifier) Plain() *TelegramNotifier {
	cp := *t
	cp.parseMode = ParsePlain
	return &cp
}

type telegramResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

func (t *TelegramNotifier) Notify(ctx context.Context, text string) error {
	payload := map[string]interface{}{
		"chat_id": t.chatID,
		"text":    text,
	}
	if t.parseMode != ParsePlain {
		payload["parse_mode"] = t.parseMode
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram: marshal: %w", err)
	}

	if _, err := t.call(ctx, http.MethodPost, "sendMessage", body); err != nil {
		return err
	}

	log.Printf("[telegram] sent message (%d bytes, mode=%q)", len(text), t.parseMode)
	return nil
}

// Probe verifies the bot token with getMe.
func (t *TelegramNotifier) Probe(ctx context.Context) error {
	_, err := t.BotName(ctx)
	return err
}

// BotName calls getMe and returns the bot's username.
func (t *TelegramNotifier) BotName(ctx context.Context) (string, error) {
	if t.botToken == "" || t.chatID == "" {
		return "", fmt.Errorf("telegram: bot token and chat id are required")
	}
	res, err := t.call(ctx, http.MethodGet, "getMe", nil)
	if err != nil {
		return "", err
	}
	var me struct {
		Username string `json:"username"`
	}
	if err := json.Unmarshal(res, &me); err != nil {
		return "", fmt.Errorf("telegram: decode getMe: %w", err)
	}
	return me.Username, nil
}

func (t *TelegramNotifier) call(ctx context.Context, method, endpoint string, body []byte) (json.RawMessage, error) {
	url := fmt.Sprintf("%s/bot%s/%s", t.baseURL, t.botToken, endpoint)

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, rd)
	if err != nil {
		return nil, fmt.Errorf("telegram: create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("telegram: %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	var tr telegramResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&tr); err != nil {
		return nil, fmt.Errorf("telegram: %s: unexpected status %d", endpoint, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK || !tr.OK {
		return nil, fmt.Errorf("telegram: %s: status %d: %s", endpoint, resp.StatusCode, tr.Description)
	}
	return tr.Result, nil
}

package notification

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

type fakeBot struct {
	mu       sync.Mutex
	requests []map[string]any
	paths    []string
	reject   bool
}

func (f *fakeBot) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paths = append(f.paths, r.URL.Path)

	w.Header().Set("Content-Type", "application/json")
	switch {
	case strings.HasSuffix(r.URL.Path, "/getMe"):
		if strings.Contains(r.URL.Path, "/botbad-token/") {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"ok":false,"description":"Unauthorized"}`))
			return
		}
		w.Write([]byte(`{"ok":true,"result":{"id":1,"username":"fisher_bot"}}`))
	case strings.HasSuffix(r.URL.Path, "/sendMessage"):
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		f.requests = append(f.requests, body)
		if f.reject {
			if _, ok := body["parse_mode"]; ok {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"ok":false,"description":"Bad Request: can't parse entities"}`))
				return
			}
		}
		w.Write([]byte(`{"ok":true,"result":{"message_id":7}}`))
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func TestTelegram_NotifyMarkdown(t *testing.T) {
	bot := &fakeBot{}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	tg := NewTelegramNotifier("token", "42", WithBaseURL(srv.URL))
	if err := tg.Notify(context.Background(), "*hello*"); err != nil {
		t.Fatalf("Notify: %v", err)
	}

	if len(bot.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(bot.requests))
	}
	req := bot.requests[0]
	if req["chat_id"] != "42" || req["text"] != "*hello*" || req["parse_mode"] != ParseMarkdown {
		t.Errorf("unexpected payload: %v", req)
	}
	if bot.paths[0] != "/bottoken/sendMessage" {
		t.Errorf("unexpected path %s", bot.paths[0])
	}
}

func TestTelegram_PlainOmitsParseMode(t *testing.T) {
	bot := &fakeBot{reject: true}
	srv := httptest.NewServer(bot)
	defer srv.Close()

	tg := NewTelegramNotifier("token", "42", WithBaseURL(srv.URL))
	if err := tg.Notify(context.Background(), "broken_markdown*"); err == nil {
		t.Fatal("expected Markdown send to be rejected")
	} else if !strings.Contains(err.Error(), "can't parse entities") {
		t.Errorf("expected API description in error, got %v", err)
	}

	if err := tg.Plain().Notify(context.Background(), "broken_markdown*"); err != nil {
		t.Fatalf("plain Notify: %v", err)
	}
	if _, ok := bot.requests[1]["parse_mode"]; ok {
		t.Errorf("plain send must not set parse_mode: %v", bot.requests[1])
	}
	if tg.parseMode != ParseMarkdown {
		t.Error("Plain must not modify the original notifier")
	}
}

func TestTelegram_Probe(t *testing.T) {
	srv := httptest.NewServer(&fakeBot{})
	defer srv.Close()

	tg := NewTelegramNotifier("token", "42", WithBaseURL(srv.URL))
	name, err := tg.BotName(context.Background())
	if err != nil {
		t.Fatalf("BotName: %v", err)
	}
	if name != "fisher_bot" {
		t.Errorf("expected fisher_bot, got %q", name)
	}

	bad := NewTelegramNotifier("bad-token", "42", WithBaseURL(srv.URL))
	if err := bad.Probe(context.Background()); err == nil {
		t.Error("expected probe failure for rejected token")
	}

	if err := NewTelegramNotifier("", "", WithBaseURL(srv.URL)).Probe(context.Background()); err == nil {
		t.Error("expected probe failure without credentials")
	}
}

func TestWebhook_Notify(t *testing.T) {
	var (
		got         map[string]any
		contentType string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	if err := NewWebhookNotifier(srv.URL, time.Second).Notify(context.Background(), "signal"); err != nil {
		t.Fatalf("Notify: %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("content type=%q", contentType)
	}
	if got["text"] != "signal" || got["source"] != "fisherbot" {
		t.Errorf("unexpected payload: %v", got)
	}
	if ts, _ := got["sent_at"].(string); ts == "" {
		t.Errorf("missing sent_at: %v", got)
	} else if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("sent_at %q: %v", ts, err)
	}
}

func TestWebhook_ErrorStatusCarriesBody(t *testing.T) {
	cases := []struct {
		status int
		body   string
	}{
		{http.StatusBadGateway, "upstream down"},
		{http.StatusBadRequest, `{"error":"text too long"}`},
		{http.StatusInternalServerError, ""},
	}
	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			w.Write([]byte(tc.body))
		}))

		err := NewWebhookNotifier(srv.URL+"/hooks/secret-token", time.Second).Notify(context.Background(), "signal")
		srv.Close()

		if err == nil {
			t.Fatalf("status %d: expected error", tc.status)
		}
		msg := err.Error()
		if !strings.Contains(msg, strconv.Itoa(tc.status)) || !strings.Contains(msg, tc.body) {
			t.Errorf("status %d: error should carry status and body: %v", tc.status, err)
		}
		if strings.Contains(msg, "secret-token") {
			t.Errorf("status %d: error leaks the webhook path: %v", tc.status, err)
		}
	}
}

func TestWebhook_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	endpoint := srv.URL + "/hooks/secret-token"
	srv.Close()

	err := NewWebhookNotifier(endpoint, time.Second).Notify(context.Background(), "signal")
	if err == nil {
		t.Fatal("expected error for closed server")
	}
	if strings.Contains(err.Error(), "secret-token") {
		t.Errorf("error leaks the webhook path: %v", err)
	}
}

func TestLogNotifier(t *testing.T) {
	if err := NewLogNotifier().Notify(context.Background(), "line1\nline2"); err != nil {
		t.Errorf("LogNotifier: %v", err)
	}
}

func TestMaskSecret(t *testing.T) {
	cases := map[string]string{
		"":               "<unset>",
		"abc":            "***",
		"123456:ABCDEFG": "**********DEFG",
	}
	for in, want := range cases {
		if got := MaskSecret(in); got != want {
			t.Errorf("MaskSecret(%q)=%q, want %q", in, got, want)
		}
	}
}

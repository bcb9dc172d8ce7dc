// Command telegramcheck verifies the Telegram credentials the scanner would
// use: it prints the masked settings, resolves the bot with getMe and, with
// -send, delivers one test message.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/config"
	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/notification"
)

func main() {
	send := flag.Bool("send", false, "send a test message after the token check")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("[telegramcheck] %v", err)
	}

	fmt.Printf("TELEGRAM_BOT_TOKEN: %s\n", notification.MaskSecret(cfg.Telegram.BotToken))
	fmt.Printf("TELEGRAM_CHAT_ID:   %s\n", notification.MaskSecret(cfg.Telegram.ChatID))
	if !cfg.TelegramEnabled() {
		fmt.Println("telegram is not configured, the scanner will log signals only")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	tg := notification.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID,
		notification.WithBaseURL(cfg.Telegram.BaseURL))
	name, err := tg.BotName(ctx)
	if err != nil {
		log.Fatalf("[telegramcheck] getMe failed: %v", err)
	}
	fmt.Printf("bot: @%s\n", name)

	if !*send {
		return
	}
	text := fmt.Sprintf("✅ *Test message*\n\nSent at `%s`", time.Now().In(cfg.Location()).Format("2006-01-02 15:04:05"))
	if err := tg.Notify(ctx, text); err != nil {
		log.Fatalf("[telegramcheck] send failed: %v", err)
	}
	fmt.Println("test message sent")
}

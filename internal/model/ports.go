package model

import "context"

// ── Collaborator Port Interfaces ──
// The scan orchestrator only talks to the outside world through these, so
// exchanges and notification channels can be swapped or faked in tests.

// MarketData supplies candle windows for a pair.
type MarketData interface {
	// FetchWindow returns up to limit of the most recent candles for pair,
	// ordered ascending by time. An empty result with a nil error means
	// "no data available".
	FetchWindow(ctx context.Context, pair Pair, limit int) ([]Candle, error)

	// Ping checks connectivity. Used as a startup probe.
	Ping(ctx context.Context) error
}

// Notifier delivers a formatted text message to a destination.
type Notifier interface {
	Notify(ctx context.Context, text string) error
}

// Prober is implemented by notifiers that can verify their credentials
// without sending a message.
type Prober interface {
	Probe(ctx context.Context) error
}

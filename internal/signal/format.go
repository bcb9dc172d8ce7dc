package signal

import (
	"fmt"
	"strings"
	"time"

	"github.com/imransimsek/Fisher-EMA-Signal-Algorithm/internal/model"
)

const timeLayout = "2006-01-02 15:04"

// Format renders a signal as Telegram Markdown (legacy mode) text.
func Format(sig *model.Signal, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	title, arrow, bandName := "EXTREME HIGH ZONE", "⬆️", "Upper Band"
	if sig.Kind == model.ExtremeLow {
		title, arrow, bandName = "EXTREME LOW ZONE", "⬇️", "Lower Band"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "⚠️ %s *%s* %s\n\n", arrow, title, arrow)
	fmt.Fprintf(&b, "Symbol: `%s`\n", sig.Symbol)
	fmt.Fprintf(&b, "Interval: `%s`\n", sig.Interval)
	fmt.Fprintf(&b, "Price: %s\n", sig.Price.String())
	fmt.Fprintf(&b, "Time: %s\n\n", sig.Time.In(loc).Format(timeLayout))
	fmt.Fprintf(&b, "Trigger: %.4f\n", sig.Trigger)
	fmt.Fprintf(&b, "%s: %.4f\n", bandName, sig.Band)
	fmt.Fprintf(&b, "Fisher: %.4f", sig.Oscillator)
	return b.String()
}

// StartupInfo is what the startup notification reports.
type StartupInfo struct {
	Time            time.Time
	Symbols         []string
	Intervals       []string
	Length          int
	SmoothingLength int
	BandOffset      float64
	Policy          Policy
}

// FormatStartup renders the startup notification.
func FormatStartup(info StartupInfo) string {
	var b strings.Builder
	b.WriteString("🤖 *Fisher + EMA Bot started*\n\n")
	fmt.Fprintf(&b, "Time: `%s`\n", info.Time.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "Symbols: `%s`\n", strings.Join(info.Symbols, ", "))
	fmt.Fprintf(&b, "Intervals: `%s`\n\n", strings.Join(info.Intervals, ", "))
	fmt.Fprintf(&b, "Fisher length: %d\n", info.Length)
	fmt.Fprintf(&b, "EMA length: %d\n", info.SmoothingLength)
	fmt.Fprintf(&b, "Band offset: %g\n", info.BandOffset)
	fmt.Fprintf(&b, "Policy: `%s`", info.Policy)
	return b.String()
}

// ShutdownText is the plain-text final notification.
const ShutdownText = "⚠️ Bot stopped. Signal scanning is offline."

package notification

import (
	"fmt"
	"strings"
	"time"

	"signal-botv1/internal/model"
)

// FormatSignal renders a delivered indicator result into an alert message.
func FormatSignal(res model.IndicatorResult, now time.Time) Alert {
	emoji := "🟢"
	if res.Signal == model.SignalStrongSell {
		emoji = "🔴"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "💰 Current Price: $%.2f\n", res.CurrentPrice)
	fmt.Fprintf(&b, "📊 RPP Score: %.2f%%\n", res.RPP)
	b.WriteString("📈 Bollinger Bands:\n")
	fmt.Fprintf(&b, "   Upper: $%.2f\n", res.UpperBand)
	fmt.Fprintf(&b, "   Middle: $%.2f\n", res.MiddleBand)
	fmt.Fprintf(&b, "   Lower: $%.2f\n", res.LowerBand)

	if len(res.Triggers) > 0 {
		b.WriteString("\n⚡ Triggers:\n")
		for _, trigger := range res.Triggers {
			fmt.Fprintf(&b, "   • %s\n", trigger)
		}
	}

	fmt.Fprintf(&b, "\n🕐 %s", now.UTC().Format("2006-01-02 15:04:05"))

	return Alert{
		Title:   fmt.Sprintf("%s %s: %s", emoji, res.Signal, res.Ticker),
		Message: b.String(),
	}
}

// FormatStartup renders the startup announcement sent when the bot boots.
func FormatStartup(watchlist []model.WatchItem, interval time.Duration) Alert {
	tickers := make([]string, len(watchlist))
	for i, it := range watchlist {
		tickers[i] = it.Ticker
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Monitoring %d stocks:\n%s\n\n", len(watchlist), strings.Join(tickers, ", "))
	fmt.Fprintf(&b, "Check interval: %d minutes", int(interval.Minutes()))

	return Alert{
		Title:   "🤖 Market Signal Bot Started",
		Message: b.String(),
	}
}

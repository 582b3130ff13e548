package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"signal-botv1/internal/indicator"
	"signal-botv1/internal/marketdata"
	"signal-botv1/internal/model"
	"signal-botv1/internal/monitor"
	"signal-botv1/internal/notification"
)

// dispatch routes one admin command and returns the reply text. An empty
// string means no reply is sent.
func (b *Bot) dispatch(ctx context.Context, chatID int64, cmd string, args []string) string {
	switch cmd {
	case "/start":
		return b.cmdStart()
	case "/watchlist":
		return b.cmdWatchlist()
	case "/add":
		return b.cmdAdd(args)
	case "/remove":
		return b.cmdRemove(args)
	case "/analyze":
		return b.cmdAnalyze(ctx, chatID, args)
	case "/settings":
		return b.cmdSettings()
	case "/set_interval":
		return b.cmdSetInterval(args)
	case "/set_buy":
		return b.cmdSetBuy(args)
	case "/set_sell":
		return b.cmdSetSell(args)
	case "/set_cooldown":
		return b.cmdSetCooldown(args)
	case "/set_pricechange":
		return b.cmdSetPriceChange(args)
	case "/check":
		return b.cmdCheck(ctx, chatID, false)
	case "/check_force":
		return b.cmdCheck(ctx, chatID, true)
	case "/history":
		return b.cmdHistory()
	default:
		return ""
	}
}

func (b *Bot) cmdStart() string {
	var s strings.Builder
	s.WriteString("🤖 *Market Signal Bot - Admin Panel*\n\n")
	s.WriteString("*Available Commands:*\n")
	s.WriteString("/watchlist - View current watchlist\n")
	s.WriteString("/add TICKER NAME - Add stock to watchlist\n")
	s.WriteString("/remove TICKER - Remove stock from watchlist\n")
	s.WriteString("/analyze TICKER - Analyze any stock instantly\n")
	s.WriteString("/settings - View current settings\n")
	s.WriteString("/set\\_interval MINUTES - Set check interval\n")
	s.WriteString("/set\\_buy PERCENT - Set buy threshold\n")
	s.WriteString("/set\\_sell PERCENT - Set sell threshold\n")
	s.WriteString("/set\\_cooldown HOURS - Set signal cooldown\n")
	s.WriteString("/set\\_pricechange PERCENT - Set price change alert\n")
	s.WriteString("/check - Run immediate check\n")
	s.WriteString("/check\\_force - Force check (ignore cooldown)\n")
	s.WriteString("/history - View recent signals")
	return s.String()
}

func (b *Bot) cmdWatchlist() string {
	watchlist, err := b.store.Watchlist()
	if err != nil {
		return errReply(err)
	}

	var s strings.Builder
	s.WriteString("📊 *Current Watchlist*\n\n")
	for _, item := range watchlist {
		if item.Name != "" && item.Name != item.Ticker {
			fmt.Fprintf(&s, "• %s (%s)\n", item.Ticker, item.Name)
		} else {
			fmt.Fprintf(&s, "• %s\n", item.Ticker)
		}
	}
	fmt.Fprintf(&s, "\n*Total: %d stocks*", len(watchlist))
	return s.String()
}

func (b *Bot) cmdAdd(args []string) string {
	if len(args) < 1 {
		return "Usage: /add TICKER [NAME]"
	}
	ticker := strings.ToUpper(args[0])
	name := strings.Join(args[1:], " ")

	added, err := b.store.AddTicker(ticker, name)
	if err != nil {
		return errReply(err)
	}
	if !added {
		return fmt.Sprintf("❌ *%s* is already in the watchlist", ticker)
	}
	if name != "" {
		return fmt.Sprintf("✅ Added *%s* to watchlist (%s)", ticker, name)
	}
	return fmt.Sprintf("✅ Added *%s* to watchlist", ticker)
}

func (b *Bot) cmdRemove(args []string) string {
	if len(args) != 1 {
		return "Usage: /remove TICKER"
	}
	ticker := strings.ToUpper(args[0])

	removed, err := b.store.RemoveTicker(ticker)
	if err != nil {
		return errReply(err)
	}
	if !removed {
		return fmt.Sprintf("❌ *%s* not found in watchlist", ticker)
	}
	return fmt.Sprintf("✅ Removed *%s* from watchlist", ticker)
}

func (b *Bot) cmdSettings() string {
	interval, err := b.store.CheckInterval()
	if err != nil {
		return errReply(err)
	}
	buy, sell, err := b.store.Thresholds()
	if err != nil {
		return errReply(err)
	}
	cfg, err := b.store.DedupConfig()
	if err != nil {
		return errReply(err)
	}

	var s strings.Builder
	s.WriteString("⚙️ *Current Settings*\n\n")
	fmt.Fprintf(&s, "🕐 Check Interval: *%d minutes*\n", int(interval.Minutes()))
	fmt.Fprintf(&s, "📉 Buy Threshold: *< %g%%*\n", buy)
	fmt.Fprintf(&s, "📈 Sell Threshold: *> %g%%*\n", sell)
	if cfg.CooldownHours == 0 {
		s.WriteString("⏱️ Signal Cooldown: *Disabled*\n")
	} else {
		fmt.Fprintf(&s, "⏱️ Signal Cooldown: *%g hours*\n", cfg.CooldownHours)
	}
	fmt.Fprintf(&s, "💹 Price Change Alert: *%g%%*\n\n", cfg.PriceChangePct)
	s.WriteString("Use /set\\_interval, /set\\_buy, /set\\_sell, /set\\_cooldown, or /set\\_pricechange to modify")
	return s.String()
}

func (b *Bot) cmdSetInterval(args []string) string {
	if len(args) != 1 {
		return "Usage: /set_interval MINUTES"
	}
	minutes, err := strconv.Atoi(args[0])
	if err != nil || minutes < 1 {
		return "❌ Please provide a valid number of minutes"
	}
	if err := b.store.SetCheckInterval(time.Duration(minutes) * time.Minute); err != nil {
		return errReply(err)
	}
	return fmt.Sprintf("✅ Check interval updated to *%d minutes*", minutes)
}

func (b *Bot) cmdSetBuy(args []string) string {
	if len(args) != 1 {
		return "Usage: /set_buy PERCENT"
	}
	pct, err := strconv.ParseFloat(args[0], 64)
	if err != nil || pct < 0 || pct > 100 {
		return "❌ Please provide a valid percentage (0-100)"
	}
	if err := b.store.SetBuyThreshold(pct); err != nil {
		return errReply(err)
	}
	return fmt.Sprintf("✅ Buy threshold updated to *< %g%%*", pct)
}

func (b *Bot) cmdSetSell(args []string) string {
	if len(args) != 1 {
		return "Usage: /set_sell PERCENT"
	}
	pct, err := strconv.ParseFloat(args[0], 64)
	if err != nil || pct < 0 || pct > 100 {
		return "❌ Please provide a valid percentage (0-100)"
	}
	if err := b.store.SetSellThreshold(pct); err != nil {
		return errReply(err)
	}
	return fmt.Sprintf("✅ Sell threshold updated to *> %g%%*", pct)
}

func (b *Bot) cmdSetCooldown(args []string) string {
	if len(args) != 1 {
		return "Usage: /set_cooldown HOURS\n\nSet to 0 to disable cooldown (never repeat same signal)"
	}
	hours, err := strconv.ParseFloat(args[0], 64)
	if err != nil || hours < 0 {
		return "❌ Please provide a valid number of hours (0 or greater)"
	}
	if err := b.store.SetCooldownHours(hours); err != nil {
		return errReply(err)
	}
	if hours == 0 {
		return "✅ Cooldown disabled - signals will only be sent once (until they flip)"
	}
	return fmt.Sprintf("✅ Signal cooldown updated to *%g hours*", hours)
}

func (b *Bot) cmdSetPriceChange(args []string) string {
	if len(args) != 1 {
		return "Usage: /set_pricechange PERCENT"
	}
	pct, err := strconv.ParseFloat(args[0], 64)
	if err != nil || pct <= 0 {
		return "❌ Please provide a percentage greater than 0"
	}
	if err := b.store.SetPriceChangePct(pct); err != nil {
		return errReply(err)
	}
	return fmt.Sprintf("✅ Price change alert updated to *%g%%*", pct)
}

func (b *Bot) cmdCheck(ctx context.Context, chatID int64, forced bool) string {
	if forced {
		b.reply(ctx, chatID, "🔄 Running FORCED check (ignoring cooldown)...")
	} else {
		b.reply(ctx, chatID, "🔄 Running immediate check...")
	}

	sum, err := b.checker.CheckAll(ctx, forced)
	if errors.Is(err, monitor.ErrPassInProgress) {
		return "⏳ A check is already running, try again shortly"
	}
	if err != nil {
		return errReply(err)
	}

	label := "Check"
	if forced {
		label = "Forced check"
	}
	return fmt.Sprintf("✅ %s completed: %d checked, %d signals sent, %d skipped",
		label, sum.Tickers, sum.Delivered, sum.Skipped)
}

func (b *Bot) cmdAnalyze(ctx context.Context, chatID int64, args []string) string {
	if len(args) != 1 {
		return "Usage: /analyze TICKER\n\nExample: /analyze TSLA"
	}
	ticker := strings.ToUpper(args[0])
	b.reply(ctx, chatID, fmt.Sprintf("🔍 Analyzing *%s*...", ticker))

	res, err := b.checker.Analyze(ctx, ticker)
	switch {
	case errors.Is(err, indicator.ErrInsufficientData):
		return fmt.Sprintf("❌ Insufficient data to analyze *%s*", ticker)
	case err != nil && !errors.Is(err, marketdata.ErrTransientFetch):
		return fmt.Sprintf("❌ Could not fetch data for *%s*\n\nPlease check the ticker symbol.", ticker)
	case err != nil:
		return fmt.Sprintf("❌ Could not fetch data for *%s*\n\nThe data source is temporarily unavailable.", ticker)
	}

	if res.Signal != model.SignalNone {
		alert := notification.FormatSignal(res, b.now())
		return alert.Title + "\n\n" + alert.Message
	}
	return b.neutralReport(res)
}

// neutralReport explains why a ticker produced no signal.
func (b *Bot) neutralReport(res model.IndicatorResult) string {
	buy, sell, err := b.store.Thresholds()
	if err != nil {
		return errReply(err)
	}

	bbStatus, bbEmoji := "Within Bands (Normal)", "➡️"
	switch {
	case res.CurrentPrice < res.LowerBand:
		bbStatus, bbEmoji = "Below Lower Band (Oversold)", "📉"
	case res.CurrentPrice > res.UpperBand:
		bbStatus, bbEmoji = "Above Upper Band (Overbought)", "📈"
	}

	var rppStatus string
	switch {
	case res.RPP < buy:
		rppStatus = fmt.Sprintf("Near Low (%.1f%% < %g%%)", res.RPP, buy)
	case res.RPP > sell:
		rppStatus = fmt.Sprintf("Near High (%.1f%% > %g%%)", res.RPP, sell)
	default:
		rppStatus = fmt.Sprintf("Mid-Range (%.1f%%)", res.RPP)
	}

	var s strings.Builder
	fmt.Fprintf(&s, "ℹ️ *%s - No Signal*\n\n", res.Ticker)
	fmt.Fprintf(&s, "💰 Current Price: $%.2f\n", res.CurrentPrice)
	fmt.Fprintf(&s, "📊 RPP Score: %.2f%%\n", res.RPP)
	fmt.Fprintf(&s, "   Status: %s\n\n", rppStatus)
	s.WriteString("📈 Bollinger Bands:\n")
	fmt.Fprintf(&s, "   Upper: $%.2f\n", res.UpperBand)
	fmt.Fprintf(&s, "   Middle: $%.2f\n", res.MiddleBand)
	fmt.Fprintf(&s, "   Lower: $%.2f\n", res.LowerBand)
	fmt.Fprintf(&s, "   %s Status: %s\n\n", bbEmoji, bbStatus)

	s.WriteString("💡 *Why No Signal?*\n")
	switch {
	case res.CurrentPrice >= res.LowerBand && res.RPP >= buy:
		s.WriteString("   • Price not oversold enough\n")
		s.WriteString("   • RPP not low enough for BUY\n")
	case res.CurrentPrice <= res.UpperBand && res.RPP <= sell:
		s.WriteString("   • Price not overbought enough\n")
		s.WriteString("   • RPP not high enough for SELL\n")
	default:
		s.WriteString("   • Both conditions not met\n")
	}

	fmt.Fprintf(&s, "\n🕐 %s", b.now().UTC().Format("2006-01-02 15:04:05"))
	return s.String()
}

func (b *Bot) cmdHistory() string {
	since := b.now().Add(-7 * 24 * time.Hour)
	history, err := b.store.RecentSignals(since)
	if err != nil {
		return errReply(err)
	}
	if len(history) == 0 {
		return "No signals in the last 7 days"
	}
	if len(history) > 10 {
		history = history[:10]
	}

	var s strings.Builder
	s.WriteString("📜 *Recent Signals (Last 7 Days)*\n\n")
	for _, rec := range history {
		emoji := "🟢"
		if rec.Signal == model.SignalStrongSell {
			emoji = "🔴"
		}
		fmt.Fprintf(&s, "%s *%s* - %s\n", emoji, rec.Ticker, rec.Signal)
		fmt.Fprintf(&s, "   $%.2f | RPP: %.1f%%\n", rec.Price, rec.RPPScore)
		fmt.Fprintf(&s, "   %s\n\n", rec.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
	}
	return strings.TrimRight(s.String(), "\n")
}

func errReply(err error) string {
	return fmt.Sprintf("❌ Something went wrong: %v", err)
}

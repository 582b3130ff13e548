// Package bot implements the Telegram admin surface: a getUpdates long-poll
// loop that dispatches slash commands from the configured admin user. All
// runtime configuration (watchlist, thresholds, cooldown, interval) is
// editable through it without restarting the process.
package bot

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"signal-botv1/internal/model"
	"signal-botv1/internal/monitor"
)

const telegramAPI = "https://api.telegram.org"

// Store is the configuration and history surface the commands operate on.
// Implemented by the sqlite store.
type Store interface {
	Watchlist() ([]model.WatchItem, error)
	AddTicker(ticker, name string) (bool, error)
	RemoveTicker(ticker string) (bool, error)
	Thresholds() (buy, sell float64, err error)
	CheckInterval() (time.Duration, error)
	SetCheckInterval(d time.Duration) error
	SetBuyThreshold(pct float64) error
	SetSellThreshold(pct float64) error
	DedupConfig() (model.DedupConfig, error)
	SetCooldownHours(hours float64) error
	SetPriceChangePct(pct float64) error
	RecentSignals(since time.Time) ([]model.SignalRecord, error)
}

// Checker runs checks and ad-hoc analyses. Implemented by monitor.Monitor.
type Checker interface {
	CheckAll(ctx context.Context, forced bool) (monitor.Summary, error)
	Analyze(ctx context.Context, ticker string) (model.IndicatorResult, error)
}

// Bot long-polls Telegram and dispatches admin commands.
type Bot struct {
	token   string
	adminID int64
	store   Store
	checker Checker
	client  *resty.Client
	baseURL string
	offset  int64
	now     func() time.Time
}

// New creates a Bot. adminID is the only Telegram user the bot answers to.
func New(token string, adminID int64, store Store, checker Checker) *Bot {
	return &Bot{
		token:   token,
		adminID: adminID,
		store:   store,
		checker: checker,
		client:  resty.New().SetTimeout(45 * time.Second),
		baseURL: telegramAPI,
		now:     time.Now,
	}
}

type update struct {
	UpdateID int64    `json:"update_id"`
	Message  *message `json:"message"`
}

type message struct {
	MessageID int64  `json:"message_id"`
	From      *user  `json:"from"`
	Chat      chat   `json:"chat"`
	Text      string `json:"text"`
}

type user struct {
	ID int64 `json:"id"`
}

type chat struct {
	ID int64 `json:"id"`
}

type updatesResponse struct {
	OK     bool     `json:"ok"`
	Result []update `json:"result"`
}

// Run polls getUpdates until ctx is cancelled. Transport errors are logged
// and retried with a short backoff.
func (b *Bot) Run(ctx context.Context) {
	slog.Info("command bot started", slog.Int64("admin_id", b.adminID))
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		updates, err := b.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("getUpdates failed", slog.Any("error", err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(5 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}
			b.handleUpdate(ctx, u)
		}
	}
}

func (b *Bot) poll(ctx context.Context) ([]update, error) {
	var out updatesResponse
	resp, err := b.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"offset":  fmt.Sprintf("%d", b.offset),
			"timeout": "30",
		}).
		SetResult(&out).
		Get(fmt.Sprintf("%s/bot%s/getUpdates", b.baseURL, b.token))
	if err != nil {
		return nil, fmt.Errorf("getUpdates: %w", err)
	}
	if resp.StatusCode() != 200 || !out.OK {
		return nil, fmt.Errorf("getUpdates: status %d", resp.StatusCode())
	}
	return out.Result, nil
}

func (b *Bot) handleUpdate(ctx context.Context, u update) {
	msg := u.Message
	if msg == nil || msg.From == nil || !strings.HasPrefix(msg.Text, "/") {
		return
	}
	if msg.From.ID != b.adminID {
		// Silently ignore non-admin traffic, same as dropping it.
		return
	}

	fields := strings.Fields(msg.Text)
	cmd := strings.ToLower(fields[0])
	// Commands in groups arrive as /cmd@botname.
	if i := strings.Index(cmd, "@"); i >= 0 {
		cmd = cmd[:i]
	}
	args := fields[1:]

	reply := b.dispatch(ctx, msg.Chat.ID, cmd, args)
	if reply != "" {
		b.reply(ctx, msg.Chat.ID, reply)
	}
}

func (b *Bot) reply(ctx context.Context, chatID int64, text string) {
	resp, err := b.client.R().
		SetContext(ctx).
		SetFormData(map[string]string{
			"chat_id":    fmt.Sprintf("%d", chatID),
			"text":       text,
			"parse_mode": "Markdown",
		}).
		Post(fmt.Sprintf("%s/bot%s/sendMessage", b.baseURL, b.token))
	if err != nil {
		slog.Error("sendMessage failed", slog.Any("error", err))
		return
	}
	if resp.StatusCode() != 200 {
		slog.Error("sendMessage rejected",
			slog.Int("status", resp.StatusCode()),
			slog.String("body", resp.String()))
	}
}

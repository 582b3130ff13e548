package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"signal-botv1/internal/indicator"
	"signal-botv1/internal/marketdata"
	"signal-botv1/internal/model"
	"signal-botv1/internal/monitor"
)

type stubStore struct {
	watch    []model.WatchItem
	buy      float64
	sell     float64
	cfg      model.DedupConfig
	interval time.Duration
	history  []model.SignalRecord
}

func newStubStore() *stubStore {
	return &stubStore{
		buy:      10,
		sell:     90,
		cfg:      model.DefaultDedupConfig(),
		interval: 15 * time.Minute,
	}
}

func (s *stubStore) Watchlist() ([]model.WatchItem, error) { return s.watch, nil }

func (s *stubStore) AddTicker(ticker, name string) (bool, error) {
	for _, it := range s.watch {
		if it.Ticker == ticker {
			return false, nil
		}
	}
	s.watch = append(s.watch, model.WatchItem{Ticker: ticker, Name: name})
	return true, nil
}

func (s *stubStore) RemoveTicker(ticker string) (bool, error) {
	for i, it := range s.watch {
		if it.Ticker == ticker {
			s.watch = append(s.watch[:i], s.watch[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (s *stubStore) Thresholds() (float64, float64, error)    { return s.buy, s.sell, nil }
func (s *stubStore) CheckInterval() (time.Duration, error)    { return s.interval, nil }
func (s *stubStore) DedupConfig() (model.DedupConfig, error)  { return s.cfg, nil }
func (s *stubStore) SetCheckInterval(d time.Duration) error   { s.interval = d; return nil }
func (s *stubStore) SetBuyThreshold(pct float64) error        { s.buy = pct; return nil }
func (s *stubStore) SetSellThreshold(pct float64) error       { s.sell = pct; return nil }
func (s *stubStore) SetCooldownHours(hours float64) error     { s.cfg.CooldownHours = hours; return nil }
func (s *stubStore) SetPriceChangePct(pct float64) error      { s.cfg.PriceChangePct = pct; return nil }

func (s *stubStore) RecentSignals(_ time.Time) ([]model.SignalRecord, error) {
	return s.history, nil
}

type stubChecker struct {
	sum        monitor.Summary
	checkErr   error
	res        model.IndicatorResult
	analyzeErr error
	forced     []bool
}

func (c *stubChecker) CheckAll(_ context.Context, forced bool) (monitor.Summary, error) {
	c.forced = append(c.forced, forced)
	return c.sum, c.checkErr
}

func (c *stubChecker) Analyze(_ context.Context, ticker string) (model.IndicatorResult, error) {
	if c.analyzeErr != nil {
		return model.IndicatorResult{}, c.analyzeErr
	}
	res := c.res
	res.Ticker = ticker
	return res, nil
}

// sink records sendMessage bodies so handlers that emit interim replies can
// run against a live endpoint.
type sink struct {
	mu    sync.Mutex
	texts []string
}

func (s *sink) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		s.mu.Lock()
		s.texts = append(s.texts, r.FormValue("text"))
		s.mu.Unlock()
		w.Write([]byte(`{"ok":true,"result":{}}`))
	}
}

func newTestBot(t *testing.T, store Store, checker Checker) (*Bot, *sink) {
	t.Helper()
	s := &sink{}
	srv := httptest.NewServer(s.handler())
	t.Cleanup(srv.Close)

	b := New("test-token", 42, store, checker)
	b.baseURL = srv.URL
	b.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return b, s
}

func TestCmdStartListsCommands(t *testing.T) {
	b, _ := newTestBot(t, newStubStore(), &stubChecker{})
	reply := b.dispatch(context.Background(), 1, "/start", nil)
	for _, want := range []string{"/watchlist", "/add TICKER", "/check\\_force", "/set\\_pricechange"} {
		if !strings.Contains(reply, want) {
			t.Errorf("start reply missing %q", want)
		}
	}
}

func TestCmdWatchlist(t *testing.T) {
	store := newStubStore()
	store.watch = []model.WatchItem{
		{Ticker: "RELIANCE", Name: "Reliance Industries"},
		{Ticker: "TCS", Name: ""},
	}
	b, _ := newTestBot(t, store, &stubChecker{})

	reply := b.dispatch(context.Background(), 1, "/watchlist", nil)
	if !strings.Contains(reply, "RELIANCE (Reliance Industries)") {
		t.Errorf("missing named entry: %q", reply)
	}
	if !strings.Contains(reply, "• TCS\n") {
		t.Errorf("missing bare entry: %q", reply)
	}
	if !strings.Contains(reply, "Total: 2 stocks") {
		t.Errorf("missing total: %q", reply)
	}
}

func TestCmdAdd(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/add", nil); !strings.HasPrefix(reply, "Usage:") {
		t.Errorf("no-args reply = %q, want usage", reply)
	}
	reply := b.dispatch(context.Background(), 1, "/add", []string{"tsla", "Tesla", "Inc"})
	if !strings.Contains(reply, "Added *TSLA*") || !strings.Contains(reply, "(Tesla Inc)") {
		t.Errorf("add reply = %q", reply)
	}
	reply = b.dispatch(context.Background(), 1, "/add", []string{"TSLA"})
	if !strings.Contains(reply, "already in the watchlist") {
		t.Errorf("duplicate add reply = %q", reply)
	}
}

func TestCmdRemove(t *testing.T) {
	store := newStubStore()
	store.watch = []model.WatchItem{{Ticker: "TSLA"}}
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/remove", []string{"tsla"}); !strings.Contains(reply, "Removed *TSLA*") {
		t.Errorf("remove reply = %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/remove", []string{"TSLA"}); !strings.Contains(reply, "not found") {
		t.Errorf("missing-ticker reply = %q", reply)
	}
}

func TestCmdSettingsShowsDisabledCooldown(t *testing.T) {
	store := newStubStore()
	store.cfg.CooldownHours = 0
	b, _ := newTestBot(t, store, &stubChecker{})

	reply := b.dispatch(context.Background(), 1, "/settings", nil)
	if !strings.Contains(reply, "Signal Cooldown: *Disabled*") {
		t.Errorf("settings reply = %q", reply)
	}
	if !strings.Contains(reply, "Check Interval: *15 minutes*") {
		t.Errorf("settings reply = %q", reply)
	}
}

func TestCmdSetInterval(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	for _, bad := range [][]string{nil, {"0"}, {"-5"}, {"abc"}, {"5", "6"}} {
		reply := b.dispatch(context.Background(), 1, "/set_interval", bad)
		if strings.Contains(reply, "✅") {
			t.Errorf("args %v accepted: %q", bad, reply)
		}
	}
	if store.interval != 15*time.Minute {
		t.Fatalf("interval mutated by rejected input: %v", store.interval)
	}

	reply := b.dispatch(context.Background(), 1, "/set_interval", []string{"30"})
	if !strings.Contains(reply, "30 minutes") {
		t.Errorf("set_interval reply = %q", reply)
	}
	if store.interval != 30*time.Minute {
		t.Errorf("interval = %v, want 30m", store.interval)
	}
}

func TestCmdSetThresholds(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/set_buy", []string{"101"}); !strings.Contains(reply, "❌") {
		t.Errorf("out-of-range buy accepted: %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/set_buy", []string{"15"}); !strings.Contains(reply, "< 15%") {
		t.Errorf("set_buy reply = %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/set_sell", []string{"85"}); !strings.Contains(reply, "> 85%") {
		t.Errorf("set_sell reply = %q", reply)
	}
	if store.buy != 15 || store.sell != 85 {
		t.Errorf("thresholds = %g/%g, want 15/85", store.buy, store.sell)
	}
}

func TestCmdSetCooldown(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/set_cooldown", []string{"-1"}); !strings.Contains(reply, "❌") {
		t.Errorf("negative cooldown accepted: %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/set_cooldown", []string{"0"}); !strings.Contains(reply, "Cooldown disabled") {
		t.Errorf("zero cooldown reply = %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/set_cooldown", []string{"48"}); !strings.Contains(reply, "48 hours") {
		t.Errorf("set_cooldown reply = %q", reply)
	}
	if store.cfg.CooldownHours != 48 {
		t.Errorf("cooldown = %g, want 48", store.cfg.CooldownHours)
	}
}

func TestCmdSetPriceChange(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/set_pricechange", []string{"0"}); !strings.Contains(reply, "greater than 0") {
		t.Errorf("zero threshold accepted: %q", reply)
	}
	if reply := b.dispatch(context.Background(), 1, "/set_pricechange", []string{"2.5"}); !strings.Contains(reply, "2.5%") {
		t.Errorf("set_pricechange reply = %q", reply)
	}
	if store.cfg.PriceChangePct != 2.5 {
		t.Errorf("price change pct = %g, want 2.5", store.cfg.PriceChangePct)
	}
}

func TestCmdCheck(t *testing.T) {
	checker := &stubChecker{sum: monitor.Summary{Tickers: 3, Delivered: 1, Skipped: 1}}
	b, out := newTestBot(t, newStubStore(), checker)

	reply := b.dispatch(context.Background(), 1, "/check", nil)
	if !strings.Contains(reply, "3 checked, 1 signals sent, 1 skipped") {
		t.Errorf("check reply = %q", reply)
	}
	if len(checker.forced) != 1 || checker.forced[0] {
		t.Errorf("forced flags = %v, want [false]", checker.forced)
	}
	if len(out.texts) != 1 || !strings.Contains(out.texts[0], "Running immediate check") {
		t.Errorf("interim messages = %v", out.texts)
	}
}

func TestCmdCheckForce(t *testing.T) {
	checker := &stubChecker{sum: monitor.Summary{Tickers: 2, Delivered: 2}}
	b, out := newTestBot(t, newStubStore(), checker)

	reply := b.dispatch(context.Background(), 1, "/check_force", nil)
	if !strings.Contains(reply, "Forced check completed") {
		t.Errorf("check_force reply = %q", reply)
	}
	if len(checker.forced) != 1 || !checker.forced[0] {
		t.Errorf("forced flags = %v, want [true]", checker.forced)
	}
	if len(out.texts) != 1 || !strings.Contains(out.texts[0], "FORCED check") {
		t.Errorf("interim messages = %v", out.texts)
	}
}

func TestCmdCheckWhilePassRunning(t *testing.T) {
	checker := &stubChecker{checkErr: monitor.ErrPassInProgress}
	b, _ := newTestBot(t, newStubStore(), checker)

	reply := b.dispatch(context.Background(), 1, "/check", nil)
	if !strings.Contains(reply, "already running") {
		t.Errorf("reply = %q", reply)
	}
}

func TestCmdAnalyzeSignal(t *testing.T) {
	checker := &stubChecker{res: model.IndicatorResult{
		CurrentPrice: 50, UpperBand: 110, MiddleBand: 97.5, LowerBand: 75,
		RPP: 2, Signal: model.SignalStrongBuy,
		Triggers: []string{"Price below Lower Bollinger Band ($75.00)"},
	}}
	b, _ := newTestBot(t, newStubStore(), checker)

	reply := b.dispatch(context.Background(), 1, "/analyze", []string{"tsla"})
	if !strings.Contains(reply, "STRONG BUY: TSLA") {
		t.Errorf("analyze reply missing headline: %q", reply)
	}
	if !strings.Contains(reply, "Price below Lower Bollinger Band") {
		t.Errorf("analyze reply missing trigger: %q", reply)
	}
}

func TestCmdAnalyzeNeutral(t *testing.T) {
	checker := &stubChecker{res: model.IndicatorResult{
		CurrentPrice: 100, UpperBand: 110, MiddleBand: 100, LowerBand: 90,
		RPP: 50, Signal: model.SignalNone,
	}}
	b, _ := newTestBot(t, newStubStore(), checker)

	reply := b.dispatch(context.Background(), 1, "/analyze", []string{"HDFC"})
	if !strings.Contains(reply, "HDFC - No Signal") {
		t.Errorf("neutral reply missing headline: %q", reply)
	}
	if !strings.Contains(reply, "Mid-Range (50.0%)") {
		t.Errorf("neutral reply missing RPP status: %q", reply)
	}
	if !strings.Contains(reply, "Within Bands (Normal)") {
		t.Errorf("neutral reply missing band status: %q", reply)
	}
	if !strings.Contains(reply, "Why No Signal?") {
		t.Errorf("neutral reply missing explanation: %q", reply)
	}
}

func TestCmdAnalyzeErrors(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{"insufficient", indicator.ErrInsufficientData, "Insufficient data"},
		{"no data", marketdata.ErrNoData, "check the ticker symbol"},
		{"transient", marketdata.ErrTransientFetch, "temporarily unavailable"},
		{"unknown", errors.New("boom"), "Could not fetch data"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b, _ := newTestBot(t, newStubStore(), &stubChecker{analyzeErr: tc.err})
			reply := b.dispatch(context.Background(), 1, "/analyze", []string{"X"})
			if !strings.Contains(reply, tc.want) {
				t.Errorf("reply = %q, want substring %q", reply, tc.want)
			}
		})
	}
}

func TestCmdHistory(t *testing.T) {
	store := newStubStore()
	b, _ := newTestBot(t, store, &stubChecker{})

	if reply := b.dispatch(context.Background(), 1, "/history", nil); reply != "No signals in the last 7 days" {
		t.Errorf("empty history reply = %q", reply)
	}

	for i := 0; i < 12; i++ {
		store.history = append(store.history, model.SignalRecord{
			Ticker: "TSLA", Signal: model.SignalStrongSell, Price: 200, RPPScore: 95,
			CreatedAt: time.Date(2024, 5, 30, 10, 0, 0, 0, time.UTC),
		})
	}
	reply := b.dispatch(context.Background(), 1, "/history", nil)
	if got := strings.Count(reply, "🔴"); got != 10 {
		t.Errorf("history entries = %d, want capped at 10", got)
	}
	if !strings.Contains(reply, "$200.00 | RPP: 95.0%") {
		t.Errorf("history reply = %q", reply)
	}
}

func TestHandleUpdateIgnoresNonAdmin(t *testing.T) {
	b, out := newTestBot(t, newStubStore(), &stubChecker{})

	b.handleUpdate(context.Background(), update{
		UpdateID: 1,
		Message:  &message{From: &user{ID: 7}, Chat: chat{ID: 7}, Text: "/watchlist"},
	})
	if len(out.texts) != 0 {
		t.Errorf("non-admin got a reply: %v", out.texts)
	}
}

func TestHandleUpdateDispatchesAdminCommand(t *testing.T) {
	b, out := newTestBot(t, newStubStore(), &stubChecker{})

	b.handleUpdate(context.Background(), update{
		UpdateID: 2,
		Message:  &message{From: &user{ID: 42}, Chat: chat{ID: 42}, Text: "/watchlist@signalbot"},
	})
	if len(out.texts) != 1 || !strings.Contains(out.texts[0], "Current Watchlist") {
		t.Errorf("admin command not dispatched: %v", out.texts)
	}
}

func TestHandleUpdateIgnoresPlainText(t *testing.T) {
	b, out := newTestBot(t, newStubStore(), &stubChecker{})

	b.handleUpdate(context.Background(), update{
		UpdateID: 3,
		Message:  &message{From: &user{ID: 42}, Chat: chat{ID: 42}, Text: "hello"},
	})
	if len(out.texts) != 0 {
		t.Errorf("plain text got a reply: %v", out.texts)
	}
}

// Package monitor runs evaluation passes over the watchlist: fetch bars,
// compute indicators, run the dedup decision, and on delivery persist the
// record before notifying. One pass at a time; forced and scheduled checks
// never overlap.
package monitor

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"signal-botv1/internal/dedup"
	"signal-botv1/internal/indicator"
	"signal-botv1/internal/logger"
	"signal-botv1/internal/marketdata"
	"signal-botv1/internal/metrics"
	"signal-botv1/internal/model"
	"signal-botv1/internal/notification"
)

// ErrPassInProgress is returned when a pass is requested while another is
// still running.
var ErrPassInProgress = errors.New("evaluation pass already in progress")

const fallbackInterval = 15 * time.Minute

// Store is the persistence contract the monitor consumes. Implemented by
// the sqlite store.
type Store interface {
	Watchlist() ([]model.WatchItem, error)
	Thresholds() (buy, sell float64, err error)
	DedupConfig() (model.DedupConfig, error)
	CheckInterval() (time.Duration, error)
	LastSignal(ticker string) (*model.SignalRecord, error)
	AppendSignal(rec model.SignalRecord) error
}

// Feed receives every delivered signal record (the WS gateway).
type Feed interface {
	Publish(rec model.SignalRecord)
}

// IndicatorConfig fixes the indicator geometry. Thresholds are read from
// the store each pass; these don't change at runtime.
type IndicatorConfig struct {
	BollingerWindow int
	BollingerStdDev float64
	RPPLookbackDays int
}

// Options wires a Monitor. Feed, Metrics, Health, and Now are optional.
type Options struct {
	Store      Store
	Data       marketdata.Source
	Notifier   notification.Notifier
	Feed       Feed
	Metrics    *metrics.Metrics
	Health     *metrics.HealthStatus
	Indicators IndicatorConfig
	Now        func() time.Time
}

// Summary reports the outcome of one evaluation pass.
type Summary struct {
	Tickers    int
	Delivered  int
	Suppressed int
	Skipped    int
}

// Monitor owns the per-pass evaluation loop.
type Monitor struct {
	store    Store
	data     marketdata.Source
	notifier notification.Notifier
	feed     Feed
	prom     *metrics.Metrics
	health   *metrics.HealthStatus
	ind      IndicatorConfig
	now      func() time.Time

	running int32 // CAS guard: one pass at a time
}

// New creates a Monitor.
func New(opts Options) *Monitor {
	ind := opts.Indicators
	if ind.BollingerWindow == 0 {
		d := indicator.DefaultParams()
		ind = IndicatorConfig{
			BollingerWindow: d.BollingerWindow,
			BollingerStdDev: d.BollingerStdDev,
			RPPLookbackDays: d.RPPLookbackDays,
		}
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Monitor{
		store:    opts.Store,
		data:     opts.Data,
		notifier: opts.Notifier,
		feed:     opts.Feed,
		prom:     opts.Metrics,
		health:   opts.Health,
		ind:      ind,
		now:      now,
	}
}

// CheckAll evaluates every watchlist ticker sequentially. forced bypasses
// all suppression rules except the NONE-signal rule. Returns
// ErrPassInProgress when another pass holds the guard.
func (m *Monitor) CheckAll(ctx context.Context, forced bool) (Summary, error) {
	if !atomic.CompareAndSwapInt32(&m.running, 0, 1) {
		return Summary{}, ErrPassInProgress
	}
	defer atomic.StoreInt32(&m.running, 0)

	start := m.now()
	kind := "scheduled"
	if forced {
		kind = "forced"
	}
	ctx = logger.WithPassID(ctx, logger.GeneratePassID(kind, start))

	watchlist, err := m.store.Watchlist()
	if err != nil {
		m.recordPass(start, false)
		return Summary{}, err
	}
	dedupCfg, err := m.store.DedupConfig()
	if err != nil {
		m.recordPass(start, false)
		return Summary{}, err
	}
	params, err := m.params()
	if err != nil {
		m.recordPass(start, false)
		return Summary{}, err
	}

	if m.prom != nil {
		m.prom.ChecksTotal.Inc()
		if forced {
			m.prom.ForcedChecksTotal.Inc()
		}
		m.prom.WatchlistSize.Set(float64(len(watchlist)))
	}

	var sum Summary
	for _, item := range watchlist {
		select {
		case <-ctx.Done():
			m.recordPass(start, false)
			return sum, ctx.Err()
		default:
		}
		sum.Tickers++
		m.evaluate(ctx, item, params, dedupCfg, forced, &sum)
	}

	elapsed := time.Since(start)
	if m.prom != nil {
		m.prom.CheckDuration.Observe(elapsed.Seconds())
	}
	m.recordPass(start, true)

	slog.InfoContext(ctx, "pass complete", append(logger.LogWithPass(ctx),
		slog.Bool("forced", forced),
		slog.Int("tickers", sum.Tickers),
		slog.Int("delivered", sum.Delivered),
		slog.Int("suppressed", sum.Suppressed),
		slog.Int("skipped", sum.Skipped),
		slog.Duration("elapsed", elapsed),
	)...)
	return sum, nil
}

// evaluate runs the full decision chain for one ticker. Errors skip the
// ticker, never the pass.
func (m *Monitor) evaluate(ctx context.Context, item model.WatchItem, params indicator.Params, cfg model.DedupConfig, forced bool, sum *Summary) {
	ticker := item.Ticker

	bars, err := m.data.DailyHistory(ctx, ticker, m.ind.RPPLookbackDays)
	if err != nil {
		sum.Skipped++
		if m.prom != nil {
			m.prom.FetchErrors.Inc()
		}
		slog.WarnContext(ctx, "fetch failed, skipping ticker", append(logger.LogWithPass(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
		return
	}

	res, err := indicator.Analyze(ticker, bars, params)
	if err != nil {
		sum.Skipped++
		if m.prom != nil {
			m.prom.InsufficientData.Inc()
		}
		slog.WarnContext(ctx, "analysis skipped", append(logger.LogWithPass(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
		return
	}

	last, err := m.store.LastSignal(ticker)
	if err != nil {
		sum.Skipped++
		slog.ErrorContext(ctx, "history read failed, skipping ticker", append(logger.LogWithPass(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
		return
	}

	now := m.now()
	decision := dedup.Decide(res, last, cfg, forced, now)
	if !decision.Deliver {
		sum.Suppressed++
		if m.prom != nil {
			m.prom.TickersEvaluated.Inc()
			m.prom.SignalsSuppressed.WithLabelValues(decision.Reason).Inc()
		}
		if res.Signal != model.SignalNone {
			slog.InfoContext(ctx, "signal suppressed", append(logger.LogWithPass(ctx),
				slog.String("ticker", ticker),
				slog.String("signal", string(res.Signal)),
				slog.String("reason", decision.Reason))...)
		}
		return
	}

	// Persist before notifying: the last-delivered record must always
	// reflect what the user was actually told. A failed write aborts the
	// delivery entirely.
	rec := model.SignalRecord{
		Ticker:    ticker,
		Signal:    res.Signal,
		Price:     res.CurrentPrice,
		RPPScore:  res.RPP,
		CreatedAt: now,
	}
	if err := m.store.AppendSignal(rec); err != nil {
		sum.Skipped++
		if m.prom != nil {
			m.prom.HistoryWriteFails.Inc()
		}
		slog.ErrorContext(ctx, "history write failed, delivery aborted", append(logger.LogWithPass(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
		return
	}

	sum.Delivered++
	if m.prom != nil {
		m.prom.TickersEvaluated.Inc()
		m.prom.SignalsDelivered.WithLabelValues(decision.Reason).Inc()
	}
	slog.InfoContext(ctx, "signal delivered", append(logger.LogWithPass(ctx),
		slog.String("ticker", ticker),
		slog.String("signal", string(res.Signal)),
		slog.String("reason", decision.Reason),
		slog.Float64("price", res.CurrentPrice))...)

	if err := m.notifier.Send(ctx, notification.FormatSignal(res, now)); err != nil {
		// The record is already persisted and stays; a failed send is an
		// accepted inconsistency, retried naturally on the next trigger.
		if m.prom != nil {
			m.prom.NotifyFailures.Inc()
		}
		slog.ErrorContext(ctx, "notification failed", append(logger.LogWithPass(ctx),
			slog.String("ticker", ticker), slog.Any("error", err))...)
	}

	if m.feed != nil {
		m.feed.Publish(rec)
	}
}

// Analyze computes indicators for an arbitrary ticker without touching the
// dedup state. Used by the /analyze command.
func (m *Monitor) Analyze(ctx context.Context, ticker string) (model.IndicatorResult, error) {
	params, err := m.params()
	if err != nil {
		return model.IndicatorResult{}, err
	}
	bars, err := m.data.DailyHistory(ctx, ticker, m.ind.RPPLookbackDays)
	if err != nil {
		return model.IndicatorResult{}, err
	}
	return indicator.Analyze(ticker, bars, params)
}

// Run executes scheduled passes until ctx is cancelled. The interval is
// re-read from the store after every pass so /set_interval takes effect
// without a restart.
func (m *Monitor) Run(ctx context.Context) {
	for {
		if _, err := m.CheckAll(ctx, false); err != nil && !errors.Is(err, ErrPassInProgress) {
			slog.Error("scheduled pass failed", slog.Any("error", err))
		}

		interval, err := m.store.CheckInterval()
		if err != nil || interval <= 0 {
			interval = fallbackInterval
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}
	}
}

func (m *Monitor) params() (indicator.Params, error) {
	buy, sell, err := m.store.Thresholds()
	if err != nil {
		return indicator.Params{}, err
	}
	return indicator.Params{
		BollingerWindow: m.ind.BollingerWindow,
		BollingerStdDev: m.ind.BollingerStdDev,
		RPPLookbackDays: m.ind.RPPLookbackDays,
		BuyThreshold:    buy,
		SellThreshold:   sell,
	}, nil
}

func (m *Monitor) recordPass(at time.Time, ok bool) {
	if m.health != nil {
		m.health.SetLastPass(at, ok)
	}
}

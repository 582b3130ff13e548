package marketdata

import (
	"context"
	"errors"
	"log"
	"time"

	"signal-botv1/internal/model"
)

// Source provides daily bar series for tickers. Implemented by Client and
// by CachedSource; the monitor only sees this interface.
type Source interface {
	DailyHistory(ctx context.Context, ticker string, lookbackDays int) ([]model.PricePoint, error)
}

// BarCache is the cache contract CachedSource consumes. Implemented by the
// Redis price cache.
type BarCache interface {
	GetFresh(ctx context.Context, ticker string) ([]model.PricePoint, bool)
	GetStale(ctx context.Context, ticker string) ([]model.PricePoint, bool)
	Put(ctx context.Context, ticker string, bars []model.PricePoint, ttl time.Duration)
}

// CachedSource layers a bar cache and a circuit breaker over an upstream
// fetcher. Lookup order: fresh cache → upstream (through the breaker) →
// stale cache as a last resort when the upstream fails.
type CachedSource struct {
	upstream Source
	cache    BarCache // nil when redis is unavailable
	breaker  *Breaker // nil disables breaking
	ttl      time.Duration
}

// NewCachedSource wraps upstream with caching and breaking. cache and
// breaker may be nil.
func NewCachedSource(upstream Source, cache BarCache, breaker *Breaker, ttl time.Duration) *CachedSource {
	return &CachedSource{upstream: upstream, cache: cache, breaker: breaker, ttl: ttl}
}

// DailyHistory implements Source.
func (s *CachedSource) DailyHistory(ctx context.Context, ticker string, lookbackDays int) ([]model.PricePoint, error) {
	if s.cache != nil {
		if bars, ok := s.cache.GetFresh(ctx, ticker); ok {
			return bars, nil
		}
	}

	bars, err := s.fetch(ctx, ticker, lookbackDays)
	if err == nil {
		if s.cache != nil {
			s.cache.Put(ctx, ticker, bars, s.ttl)
		}
		return bars, nil
	}

	// Upstream down or breaker open: an old series beats a skipped ticker.
	if s.cache != nil && (errors.Is(err, ErrTransientFetch) || errors.Is(err, ErrCircuitOpen)) {
		if stale, ok := s.cache.GetStale(ctx, ticker); ok {
			log.Printf("[marketdata] %s: fetch failed (%v), serving stale cached bars", ticker, err)
			return stale, nil
		}
	}
	return nil, err
}

func (s *CachedSource) fetch(ctx context.Context, ticker string, lookbackDays int) ([]model.PricePoint, error) {
	if s.breaker == nil {
		return s.upstream.DailyHistory(ctx, ticker, lookbackDays)
	}

	if err := s.breaker.Allow(); err != nil {
		return nil, err
	}
	bars, err := s.upstream.DailyHistory(ctx, ticker, lookbackDays)
	if err != nil {
		// ErrNoData means the upstream is healthy, just useless for this
		// ticker; it must not trip the breaker.
		if errors.Is(err, ErrTransientFetch) {
			s.breaker.RecordFailure()
		} else {
			s.breaker.RecordSuccess()
		}
		return nil, err
	}
	s.breaker.RecordSuccess()
	return bars, nil
}

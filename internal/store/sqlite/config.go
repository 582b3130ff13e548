package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"time"

	"signal-botv1/internal/model"
)

// ErrInvalidConfig marks a rejected configuration change. The stored value
// is left untouched.
var ErrInvalidConfig = errors.New("invalid config value")

// Config keys.
const (
	keyCheckInterval  = "check_interval" // seconds between scheduled passes
	keyBuyThreshold   = "rpp_buy_threshold"
	keySellThreshold  = "rpp_sell_threshold"
	keyCooldownHours  = "signal_cooldown_hours"
	keyPriceChangePct = "price_change_threshold"
)

func (s *Store) getConfig(key string) (string, error) {
	var v string
	err := s.db.QueryRow(`SELECT value FROM config WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("config key %q not found", key)
	}
	return v, err
}

func (s *Store) setConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value, updated_at) VALUES (?, ?, strftime('%s', 'now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, value)
	return err
}

func (s *Store) getFloat(key string) (float64, error) {
	v, err := s.getConfig(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(v, 64)
}

// CheckInterval returns the delay between scheduled evaluation passes.
func (s *Store) CheckInterval() (time.Duration, error) {
	v, err := s.getConfig(keyCheckInterval)
	if err != nil {
		return 0, err
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", keyCheckInterval, err)
	}
	return time.Duration(secs) * time.Second, nil
}

// SetCheckInterval updates the scheduler cadence. Minimum one minute.
func (s *Store) SetCheckInterval(d time.Duration) error {
	if d < time.Minute {
		return fmt.Errorf("%w: check interval %v is under one minute", ErrInvalidConfig, d)
	}
	return s.setConfig(keyCheckInterval, strconv.Itoa(int(d.Seconds())))
}

// Thresholds returns the RPP buy and sell classification thresholds.
func (s *Store) Thresholds() (buy, sell float64, err error) {
	if buy, err = s.getFloat(keyBuyThreshold); err != nil {
		return 0, 0, err
	}
	if sell, err = s.getFloat(keySellThreshold); err != nil {
		return 0, 0, err
	}
	return buy, sell, nil
}

// SetBuyThreshold updates the RPP buy threshold (0–100).
func (s *Store) SetBuyThreshold(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: buy threshold %.2f out of range 0-100", ErrInvalidConfig, pct)
	}
	return s.setConfig(keyBuyThreshold, formatFloat(pct))
}

// SetSellThreshold updates the RPP sell threshold (0–100).
func (s *Store) SetSellThreshold(pct float64) error {
	if pct < 0 || pct > 100 {
		return fmt.Errorf("%w: sell threshold %.2f out of range 0-100", ErrInvalidConfig, pct)
	}
	return s.setConfig(keySellThreshold, formatFloat(pct))
}

// DedupConfig returns the current dedup policy.
func (s *Store) DedupConfig() (model.DedupConfig, error) {
	cooldown, err := s.getFloat(keyCooldownHours)
	if err != nil {
		return model.DedupConfig{}, err
	}
	changePct, err := s.getFloat(keyPriceChangePct)
	if err != nil {
		return model.DedupConfig{}, err
	}
	return model.DedupConfig{CooldownHours: cooldown, PriceChangePct: changePct}, nil
}

// SetCooldownHours updates the signal cooldown. 0 disables time-based
// repetition (signals then repeat only on flip or price move).
func (s *Store) SetCooldownHours(hours float64) error {
	if hours < 0 {
		return fmt.Errorf("%w: cooldown %.2f hours is negative", ErrInvalidConfig, hours)
	}
	return s.setConfig(keyCooldownHours, formatFloat(hours))
}

// SetPriceChangePct updates the re-alert price change threshold. Must be
// strictly positive.
func (s *Store) SetPriceChangePct(pct float64) error {
	if pct <= 0 {
		return fmt.Errorf("%w: price change threshold %.2f must be > 0", ErrInvalidConfig, pct)
	}
	return s.setConfig(keyPriceChangePct, formatFloat(pct))
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

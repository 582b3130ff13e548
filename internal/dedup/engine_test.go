package dedup

import (
	"testing"
	"time"

	"signal-botv1/internal/model"
)

var t0 = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func candidate(sig model.SignalType, price float64) model.IndicatorResult {
	return model.IndicatorResult{
		Ticker:       "NVDA",
		CurrentPrice: price,
		RPP:          8.5,
		Signal:       sig,
	}
}

func record(sig model.SignalType, price float64, at time.Time) *model.SignalRecord {
	return &model.SignalRecord{
		Ticker:    "NVDA",
		Signal:    sig,
		Price:     price,
		RPPScore:  8.5,
		CreatedAt: at,
	}
}

func TestDecide_NoSignalNeverDelivers(t *testing.T) {
	cfg := model.DefaultDedupConfig()

	// Even forced checks must not deliver a NONE candidate.
	d := Decide(candidate(model.SignalNone, 100), nil, cfg, true, t0)
	if d.Deliver {
		t.Fatal("NONE candidate delivered")
	}
	if d.Reason != ReasonNoSignal {
		t.Errorf("expected reason %q, got %q", ReasonNoSignal, d.Reason)
	}
}

func TestDecide_FirstTime(t *testing.T) {
	d := Decide(candidate(model.SignalStrongBuy, 100), nil, model.DefaultDedupConfig(), false, t0)
	if !d.Deliver || d.Reason != ReasonFirstTime {
		t.Errorf("expected deliver with %q, got %+v", ReasonFirstTime, d)
	}
}

func TestDecide_DuplicateSuppressed(t *testing.T) {
	// Same type, +1% price, one hour later: inside cooldown and under the 5%
	// threshold with default config.
	last := record(model.SignalStrongBuy, 100, t0)
	d := Decide(candidate(model.SignalStrongBuy, 101), last, model.DefaultDedupConfig(), false, t0.Add(time.Hour))
	if d.Deliver {
		t.Fatalf("duplicate delivered: %+v", d)
	}
	if d.Reason != ReasonDuplicate {
		t.Errorf("expected reason %q, got %q", ReasonDuplicate, d.Reason)
	}
}

func TestDecide_FlipAlwaysDelivers(t *testing.T) {
	// Flip at identical price and timestamp, even with an enormous cooldown.
	cfg := model.DedupConfig{CooldownHours: 10000, PriceChangePct: 99}
	last := record(model.SignalStrongBuy, 100, t0)
	d := Decide(candidate(model.SignalStrongSell, 100), last, cfg, false, t0)
	if !d.Deliver || d.Reason != ReasonFlipped {
		t.Errorf("expected deliver with %q, got %+v", ReasonFlipped, d)
	}
}

func TestDecide_CooldownBoundary(t *testing.T) {
	cfg := model.DefaultDedupConfig() // 24h
	last := record(model.SignalStrongBuy, 100, t0)
	c := candidate(model.SignalStrongBuy, 100) // price unchanged

	// Exactly at the boundary: delivers.
	d := Decide(c, last, cfg, false, t0.Add(24*time.Hour))
	if !d.Deliver || d.Reason != ReasonCooldown {
		t.Errorf("at boundary: expected deliver with %q, got %+v", ReasonCooldown, d)
	}

	// One minute short: suppressed.
	d = Decide(c, last, cfg, false, t0.Add(24*time.Hour-time.Minute))
	if d.Deliver {
		t.Errorf("one minute short: expected suppression, got %+v", d)
	}
}

func TestDecide_PriceChangeBoundary(t *testing.T) {
	cfg := model.DefaultDedupConfig() // 5%
	last := record(model.SignalStrongBuy, 100, t0)
	later := t0.Add(time.Hour) // within cooldown

	// Exactly 5%: delivers.
	d := Decide(candidate(model.SignalStrongBuy, 105), last, cfg, false, later)
	if !d.Deliver || d.Reason != ReasonPriceChange {
		t.Errorf("at 5%%: expected deliver with %q, got %+v", ReasonPriceChange, d)
	}

	// 4.9%: suppressed.
	d = Decide(candidate(model.SignalStrongBuy, 104.9), last, cfg, false, later)
	if d.Deliver {
		t.Errorf("at 4.9%%: expected suppression, got %+v", d)
	}

	// Drops count the same as rises.
	d = Decide(candidate(model.SignalStrongBuy, 95), last, cfg, false, later)
	if !d.Deliver || d.Reason != ReasonPriceChange {
		t.Errorf("-5%%: expected deliver with %q, got %+v", ReasonPriceChange, d)
	}
}

func TestDecide_ZeroCooldown(t *testing.T) {
	// Cooldown 0 disables time-based repetition: an identical signal stays
	// suppressed no matter how much time has passed.
	cfg := model.DedupConfig{CooldownHours: 0, PriceChangePct: 5}
	last := record(model.SignalStrongBuy, 50, t0)

	d := Decide(candidate(model.SignalStrongBuy, 50), last, cfg, false, t0.AddDate(1, 0, 0))
	if d.Deliver {
		t.Fatalf("zero cooldown delivered a duplicate after a year: %+v", d)
	}
	if d.Reason != ReasonDuplicate {
		t.Errorf("expected reason %q, got %q", ReasonDuplicate, d.Reason)
	}

	// Flip and price-change remain live triggers.
	d = Decide(candidate(model.SignalStrongSell, 50), last, cfg, false, t0)
	if !d.Deliver || d.Reason != ReasonFlipped {
		t.Errorf("zero cooldown flip: got %+v", d)
	}
	d = Decide(candidate(model.SignalStrongBuy, 55), last, cfg, false, t0)
	if !d.Deliver || d.Reason != ReasonPriceChange {
		t.Errorf("zero cooldown price move: got %+v", d)
	}
}

func TestDecide_ForcedBypassesSuppression(t *testing.T) {
	// Identical signal, price, and time (a textbook duplicate) still
	// delivers when forced.
	last := record(model.SignalStrongBuy, 100, t0)
	d := Decide(candidate(model.SignalStrongBuy, 100), last, model.DefaultDedupConfig(), true, t0)
	if !d.Deliver || d.Reason != ReasonForced {
		t.Errorf("expected deliver with %q, got %+v", ReasonForced, d)
	}
}

func TestDecide_PrecedenceCooldownBeforePriceChange(t *testing.T) {
	// Both triggers hold at once; the reported reason follows precedence.
	cfg := model.DefaultDedupConfig()
	last := record(model.SignalStrongBuy, 100, t0)
	d := Decide(candidate(model.SignalStrongBuy, 120), last, cfg, false, t0.Add(48*time.Hour))
	if !d.Deliver {
		t.Fatalf("expected delivery, got %+v", d)
	}
	if d.Reason != ReasonCooldown {
		t.Errorf("expected cooldown to win precedence, got %q", d.Reason)
	}
}

func TestDecide_PureNoMutation(t *testing.T) {
	// A suppressing decision must leave the reference record untouched.
	last := record(model.SignalStrongBuy, 100, t0)
	before := *last

	Decide(candidate(model.SignalStrongBuy, 101), last, model.DefaultDedupConfig(), false, t0.Add(time.Hour))

	if *last != before {
		t.Errorf("Decide mutated the last record: %+v → %+v", before, *last)
	}
}

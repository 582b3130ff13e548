// Package dedup decides whether a freshly computed signal should be delivered
// or suppressed, given the ticker's most recent delivered signal.
//
// The policy is an ordered rule list; first match wins:
//
//	1. no signal        → suppress
//	2. forced check     → deliver
//	3. no prior record  → deliver ("first time signal")
//	4. type changed     → deliver ("signal flipped")
//	5. cooldown elapsed → deliver (disabled entirely when cooldown is 0)
//	6. price moved ≥ threshold vs last delivered price → deliver
//	7. otherwise        → suppress ("duplicate signal")
//
// Keeping the rules as explicit predicates rather than nested conditionals
// keeps the precedence auditable and each rule independently testable.
package dedup

import (
	"math"
	"time"

	"signal-botv1/internal/model"
)

// Decision is the outcome of one dedup evaluation.
type Decision struct {
	Deliver bool   `json:"deliver"`
	Reason  string `json:"reason"`
}

// Decision reasons, reported with every outcome.
const (
	ReasonNoSignal    = "no signal"
	ReasonForced      = "forced check"
	ReasonFirstTime   = "first time signal"
	ReasonFlipped     = "signal flipped"
	ReasonCooldown    = "cooldown passed"
	ReasonPriceChange = "significant price change"
	ReasonDuplicate   = "duplicate signal"
)

// input bundles everything a rule may inspect. last is nil when the ticker
// has no delivered history.
type input struct {
	candidate model.IndicatorResult
	last      *model.SignalRecord
	cfg       model.DedupConfig
	forced    bool
	now       time.Time
}

// rule returns (decision, true) when it governs the outcome, or
// (zero, false) to defer to the next rule.
type rule func(in input) (Decision, bool)

var rules = []rule{
	noSignal,
	forcedCheck,
	firstTime,
	flipped,
	cooldownPassed,
	priceMoved,
}

// Decide returns whether the candidate signal should be delivered and why.
// last must be the most recent *delivered* record for the ticker (suppressed
// candidates never become the reference), or nil if none exists.
//
// Decide is pure: no clock reads and no store access; the caller supplies
// both. On Deliver=true the caller must persist a new SignalRecord before
// treating the ticker as processed.
func Decide(candidate model.IndicatorResult, last *model.SignalRecord, cfg model.DedupConfig, forced bool, now time.Time) Decision {
	in := input{candidate: candidate, last: last, cfg: cfg, forced: forced, now: now}
	for _, r := range rules {
		if d, ok := r(in); ok {
			return d
		}
	}
	return Decision{Deliver: false, Reason: ReasonDuplicate}
}

func noSignal(in input) (Decision, bool) {
	if in.candidate.Signal == model.SignalNone {
		return Decision{Deliver: false, Reason: ReasonNoSignal}, true
	}
	return Decision{}, false
}

func forcedCheck(in input) (Decision, bool) {
	if in.forced {
		return Decision{Deliver: true, Reason: ReasonForced}, true
	}
	return Decision{}, false
}

func firstTime(in input) (Decision, bool) {
	if in.last == nil {
		return Decision{Deliver: true, Reason: ReasonFirstTime}, true
	}
	return Decision{}, false
}

func flipped(in input) (Decision, bool) {
	if in.last.Signal != in.candidate.Signal {
		return Decision{Deliver: true, Reason: ReasonFlipped}, true
	}
	return Decision{}, false
}

func cooldownPassed(in input) (Decision, bool) {
	// Cooldown 0 means "repeat only on flip or price move", not "always
	// deliver"; the rule never fires there.
	if in.cfg.CooldownHours <= 0 {
		return Decision{}, false
	}
	elapsed := in.now.Sub(in.last.CreatedAt).Hours()
	if elapsed >= in.cfg.CooldownHours {
		return Decision{Deliver: true, Reason: ReasonCooldown}, true
	}
	return Decision{}, false
}

func priceMoved(in input) (Decision, bool) {
	changePct := math.Abs(in.candidate.CurrentPrice-in.last.Price) / in.last.Price * 100
	if changePct >= in.cfg.PriceChangePct {
		return Decision{Deliver: true, Reason: ReasonPriceChange}, true
	}
	return Decision{}, false
}

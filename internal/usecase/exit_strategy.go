package usecase

import (
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
)

// Strategy tags stored on the record at open time. The tag is fixed for the
// position's lifetime, never re-selected later.
const (
	StrategyTimeCapped = "time_capped"
	StrategyTrailing   = "trailing"
)

// ExitStrategy is a pluggable, stateless exit evaluator. Both methods are
// pure functions of the record and the price sample; they perform no I/O,
// so they are unit-testable from a record and a price alone. Track folds a
// fresh price into the record's peak/trailing state (the caller applies it
// through the registry's Update), Evaluate renders the close/hold verdict.
type ExitStrategy interface {
	Tag() string
	Track(p *domain.Position, price float64, now time.Time)
	Evaluate(p domain.Position, price float64, now time.Time) domain.ExitVerdict
}

func trackPeak(p *domain.Position, price float64, now time.Time) {
	if pnl := p.PnLPct(price); pnl > p.PeakPnLPct {
		p.PeakPnLPct = pnl
	}
	p.LastPrice = price
	p.LastCheckedAt = now
}

// TimeCappedStrategy closes on take-profit, stop-loss, or an unconditional
// maximum hold duration. The max-hold check fires regardless of current
// P&L; it caps capital lock-up to guarantee a target trade cadence.
type TimeCappedStrategy struct {
	TakeProfitPct float64
	StopLossPct   float64 // negative
	MaxHold       time.Duration
}

func (s *TimeCappedStrategy) Tag() string { return StrategyTimeCapped }

func (s *TimeCappedStrategy) Track(p *domain.Position, price float64, now time.Time) {
	trackPeak(p, price, now)
}

func (s *TimeCappedStrategy) Evaluate(p domain.Position, price float64, now time.Time) domain.ExitVerdict {
	pnl := p.PnLPct(price)

	if pnl >= s.TakeProfitPct {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitTakeProfit, PnLPct: pnl}
	}
	if pnl <= s.StopLossPct {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitStopLoss, PnLPct: pnl}
	}
	if p.Age(now) >= s.MaxHold {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitTimeLimit, PnLPct: pnl}
	}
	return domain.ExitVerdict{PnLPct: pnl}
}

// TrailingStopStrategy lets runners run: losers are capped by the fixed
// stop, winners are protected by a trailing stop armed once the peak P&L
// crosses the activation threshold. There is no time limit; a position may
// run indefinitely while it keeps making new peaks or sits above the
// trailing floor.
type TrailingStopStrategy struct {
	StopLossPct float64 // negative
	// TakeProfitPct is the absolute ceiling, strictly larger than
	// ActivationPct.
	TakeProfitPct    float64
	ActivationPct    float64
	TrailDistancePct float64
}

func (s *TrailingStopStrategy) Tag() string { return StrategyTrailing }

func (s *TrailingStopStrategy) Track(p *domain.Position, price float64, now time.Time) {
	trackPeak(p, price, now)
	// Activation is sticky: once armed it stays armed for the record's
	// lifetime, even if the price drops back below the threshold.
	if p.PeakPnLPct >= s.ActivationPct {
		p.TrailingActive = true
	}
}

func (s *TrailingStopStrategy) Evaluate(p domain.Position, price float64, now time.Time) domain.ExitVerdict {
	pnl := p.PnLPct(price)

	if pnl <= s.StopLossPct {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitStopLoss, PnLPct: pnl}
	}
	if pnl >= s.TakeProfitPct {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitTakeProfit, PnLPct: pnl}
	}
	if p.TrailingActive && p.PeakPnLPct-pnl > s.TrailDistancePct {
		return domain.ExitVerdict{ShouldClose: true, Reason: domain.ExitTrailingStop, PnLPct: pnl}
	}
	return domain.ExitVerdict{PnLPct: pnl}
}

// StrategySet resolves a record's strategy tag to its evaluator.
type StrategySet struct {
	byTag map[string]ExitStrategy
}

func NewStrategySet(strategies ...ExitStrategy) *StrategySet {
	set := &StrategySet{byTag: make(map[string]ExitStrategy, len(strategies))}
	for _, s := range strategies {
		set.byTag[s.Tag()] = s
	}
	return set
}

func (s *StrategySet) ForTag(tag string) (ExitStrategy, bool) {
	strat, ok := s.byTag[tag]
	return strat, ok
}

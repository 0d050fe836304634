package domain

import (
	"math"
	"time"
)

type Side string

const (
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ExitReason explains why a position was (or should be) closed.
type ExitReason string

const (
	ExitTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitStopLoss     ExitReason = "STOP_LOSS"
	ExitTimeLimit    ExitReason = "TIME_LIMIT"
	ExitTrailingStop ExitReason = "TRAILING_STOP"
	ExitManual       ExitReason = "MANUAL"
	// ExitMaxAge marks a rotation close: the orchestrator freed capital from
	// a position that outlived the configured maximum age, independent of
	// P&L and of the strategy's own time checks.
	ExitMaxAge ExitReason = "MAX_AGE"
)

// Position is the live state of one open trade, keyed by symbol.
// The registry owns it; callers always work on copies.
type Position struct {
	Symbol     string
	Side       Side
	EntryPrice float64
	// Size is the signed notional: negative encodes SHORT exposure so
	// notional arithmetic is uniform across sides.
	Size      float64
	EntryTime time.Time
	// Confidence is the [0,1] scalar supplied at open time. Used only for
	// sizing, retained for audit.
	Confidence float64
	// PeakPnLPct is the highest unrealized profit percentage observed since
	// entry. Monotonic non-decreasing.
	PeakPnLPct float64
	// TrailingActive flips true once PeakPnLPct crosses the strategy's
	// activation threshold and never reverts.
	TrailingActive bool
	StrategyTag    string
	LastPrice      float64
	LastCheckedAt  time.Time
}

// PnLPct returns the unrealized profit percentage at the given price.
func (p *Position) PnLPct(price float64) float64 {
	if p.EntryPrice == 0 {
		return 0
	}
	pct := (price - p.EntryPrice) / p.EntryPrice * 100
	if p.Side == SideShort {
		return -pct
	}
	return pct
}

// Notional returns the unsigned notional exposure.
func (p *Position) Notional() float64 {
	return math.Abs(p.Size)
}

func (p *Position) Age(now time.Time) time.Duration {
	return now.Sub(p.EntryTime)
}

// ExitVerdict is the close/hold decision produced by an exit strategy for
// one evaluation. It never mutates state itself.
type ExitVerdict struct {
	ShouldClose bool
	Reason      ExitReason
	PnLPct      float64
}

// OrderResult is returned by the execution gateway for a confirmed order.
// FillPrice may differ from the last-checked price that triggered the
// verdict; realized P&L is computed from the fill.
type OrderResult struct {
	OrderID   string
	FillPrice float64
	FilledAt  time.Time
}

// PositionHistory is one closed position: the audit trail row that the
// win-rate refresh aggregates.
type PositionHistory struct {
	ID          int64
	Symbol      string
	Side        Side
	Size        float64
	EntryPrice  float64
	ExitPrice   float64
	PnLPct      float64
	Confidence  float64
	StrategyTag string
	Reason      ExitReason
	OpenedAt    time.Time
	ClosedAt    time.Time
}

// UnreconciledClose records a position whose close submission failed twice.
// The bot no longer tracks it but the exchange may still hold it open, so it
// has to be verified against the exchange's own position list before the
// symbol is trusted again.
type UnreconciledClose struct {
	ID        int64
	Symbol    string
	Side      Side
	Size      float64
	Reason    ExitReason
	LastError string
	CreatedAt time.Time
}

// SymbolStats is the per-symbol closed-trade aggregate behind the sizing
// engine's historical-performance multiplier.
type SymbolStats struct {
	Symbol  string
	Trades  int
	Wins    int
	WinRate float64
}

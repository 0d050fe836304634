package usecase

import (
	"fmt"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
)

// SizingConfig holds the fixed tables and caps the sizing engine audits
// against.
type SizingConfig struct {
	BaseSize    float64
	MinNotional float64
	MaxNotional float64

	// Confidence tiers: discretized so sizing is auditable against a fixed
	// table rather than a continuous curve.
	HighConfidence   float64 // confidence >= this -> HighMultiplier
	MediumConfidence float64 // confidence >= this -> MediumMultiplier
	HighMultiplier   float64
	MediumMultiplier float64

	// Band for the symbol_win_rate / baseline_win_rate multiplier, so a
	// thin historical sample cannot produce an extreme size.
	BaselineWinRate float64
	WinRateFloor    float64
	WinRateCeiling  float64

	// Cap for the optional signal-boost multiplier.
	MaxSignalBoost float64
}

func DefaultSizingConfig() SizingConfig {
	return SizingConfig{
		BaseSize:         100,
		MinNotional:      10,
		MaxNotional:      1000,
		HighConfidence:   0.8,
		MediumConfidence: 0.6,
		HighMultiplier:   2.0,
		MediumMultiplier: 1.5,
		BaselineWinRate:  0.5,
		WinRateFloor:     0.5,
		WinRateCeiling:   2.0,
		MaxSignalBoost:   2.0,
	}
}

// SizingEngine computes the notional for a new position from the base size,
// a tiered confidence multiplier, the per-symbol historical performance
// multiplier, and an optional signal boost, all subject to floor/ceiling
// caps.
type SizingEngine struct {
	cfg SizingConfig
}

func NewSizingEngine(cfg SizingConfig) *SizingEngine {
	return &SizingEngine{cfg: cfg}
}

// ComputeSize returns the clamped notional for an open. winRate <= 0 means
// no usable history for the symbol and leaves the performance multiplier at
// 1.0. signalBoost <= 0 means no boost. exchangeMin is the market's minimum
// tradable notional: if the clamped result falls below it, ComputeSize
// returns ErrSizeTooSmall and the caller skips the trade; rounding up
// silently would break the confidence/size relationship callers rely on.
func (e *SizingEngine) ComputeSize(confidence, winRate, signalBoost, exchangeMin float64) (float64, error) {
	size := e.cfg.BaseSize * e.confidenceMultiplier(confidence)

	if winRate > 0 && e.cfg.BaselineWinRate > 0 {
		mult := winRate / e.cfg.BaselineWinRate
		if mult < e.cfg.WinRateFloor {
			mult = e.cfg.WinRateFloor
		}
		if mult > e.cfg.WinRateCeiling {
			mult = e.cfg.WinRateCeiling
		}
		size *= mult
	}

	if signalBoost > 1 {
		if signalBoost > e.cfg.MaxSignalBoost {
			signalBoost = e.cfg.MaxSignalBoost
		}
		size *= signalBoost
	}

	if size > e.cfg.MaxNotional {
		size = e.cfg.MaxNotional
	}
	if size < e.cfg.MinNotional {
		size = e.cfg.MinNotional
	}

	if size < exchangeMin {
		return 0, fmt.Errorf("notional %.2f < exchange minimum %.2f: %w", size, exchangeMin, domain.ErrSizeTooSmall)
	}
	return size, nil
}

func (e *SizingEngine) confidenceMultiplier(confidence float64) float64 {
	switch {
	case confidence >= e.cfg.HighConfidence:
		return e.cfg.HighMultiplier
	case confidence >= e.cfg.MediumConfidence:
		return e.cfg.MediumMultiplier
	default:
		return 1.0
	}
}

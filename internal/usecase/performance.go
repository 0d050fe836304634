package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"go.uber.org/zap"
)

// PerformanceTracker caches per-symbol win rates from closed-trade history.
// It is refreshed once per orchestrator cycle, not on every sizing call.
type PerformanceTracker struct {
	repo      domain.TradeRepository
	minTrades int
	logger    *zap.Logger

	mu    sync.RWMutex
	rates map[string]float64
}

// NewPerformanceTracker builds a tracker that ignores symbols with fewer
// than minTrades closed trades; a thin sample is worse than no sample.
func NewPerformanceTracker(repo domain.TradeRepository, minTrades int, logger *zap.Logger) *PerformanceTracker {
	return &PerformanceTracker{
		repo:      repo,
		minTrades: minTrades,
		logger:    logger,
		rates:     make(map[string]float64),
	}
}

// Refresh reloads the win-rate cache from the trade repository.
func (t *PerformanceTracker) Refresh(ctx context.Context) error {
	stats, err := t.repo.SymbolWinRates(ctx, t.minTrades)
	if err != nil {
		return fmt.Errorf("load win rates: %w", err)
	}

	rates := make(map[string]float64, len(stats))
	for _, s := range stats {
		rates[s.Symbol] = s.WinRate
	}

	t.mu.Lock()
	t.rates = rates
	t.mu.Unlock()

	t.logger.Debug("win rates refreshed", zap.Int("symbols", len(rates)))
	return nil
}

// WinRate returns the cached win rate for symbol, or 0 when there is no
// usable history.
func (t *PerformanceTracker) WinRate(symbol string) float64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.rates[symbol]
}

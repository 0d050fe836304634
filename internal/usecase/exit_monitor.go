package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type ExitMonitorConfig struct {
	Interval     time.Duration
	PriceTimeout time.Duration
}

// ExitMonitor is the fast loop: every tick it snapshots the registry,
// refreshes each position's price, folds the sample into the peak/trailing
// state, and executes the strategy's verdict. One symbol's failure never
// aborts the rest of the tick, and nothing here blocks the orchestrator's
// cycle.
type ExitMonitor struct {
	registry   *PositionRegistry
	feed       domain.PriceFeed
	executor   *TradeExecutor
	strategies *StrategySet
	cfg        ExitMonitorConfig
	logger     *zap.Logger
}

func NewExitMonitor(registry *PositionRegistry, feed domain.PriceFeed, executor *TradeExecutor, strategies *StrategySet, cfg ExitMonitorConfig, logger *zap.Logger) *ExitMonitor {
	return &ExitMonitor{
		registry:   registry,
		feed:       feed,
		executor:   executor,
		strategies: strategies,
		cfg:        cfg,
		logger:     logger,
	}
}

func (m *ExitMonitor) Run(ctx context.Context) {
	m.logger.Info("exit monitor started", zap.Duration("interval", m.cfg.Interval))
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("exit monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick processes one pass over a snapshot of the registry.
func (m *ExitMonitor) Tick(ctx context.Context) {
	for _, rec := range m.registry.Snapshot() {
		if err := m.check(ctx, rec.Symbol, rec.StrategyTag); err != nil {
			m.logger.Warn("exit check failed",
				zap.String("symbol", rec.Symbol),
				zap.Error(err))
		}
	}
	metrics.OpenPositions.Set(float64(m.registry.Len()))
}

func (m *ExitMonitor) check(ctx context.Context, symbol, tag string) error {
	strat, ok := m.strategies.ForTag(tag)
	if !ok {
		return fmt.Errorf("unknown strategy tag %q", tag)
	}

	priceCtx, cancel := context.WithTimeout(ctx, m.cfg.PriceTimeout)
	price, err := m.feed.GetPrice(priceCtx, symbol)
	cancel()
	if err != nil {
		// Transient: skip the symbol until the next tick. A stale price is
		// never treated as current, and a fetch failure is never a reason
		// to close.
		metrics.PriceFetchFailures.Inc()
		return fmt.Errorf("price fetch: %w", err)
	}

	now := time.Now()
	var updated domain.Position
	if err := m.registry.Update(symbol, func(p *domain.Position) {
		strat.Track(p, price, now)
		updated = *p
	}); err != nil {
		if errors.Is(err, domain.ErrPositionNotFound) {
			// Closed by the orchestrator between snapshot and update.
			return nil
		}
		return err
	}

	verdict := strat.Evaluate(updated, price, now)
	if !verdict.ShouldClose {
		return nil
	}

	m.logger.Info("exit triggered",
		zap.String("symbol", symbol),
		zap.String("reason", string(verdict.Reason)),
		zap.Float64("price", price),
		zap.Float64("pnl_pct", verdict.PnLPct),
		zap.Float64("peak_pnl_pct", updated.PeakPnLPct))

	_, err = m.executor.Close(ctx, symbol, verdict.Reason)
	return err
}

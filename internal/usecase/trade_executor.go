package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// TradeExecutor owns the open and close paths shared by both loops. The
// close path is the remove-then-submit sequence that guarantees at most one
// close submission per position: whoever wins Remove submits, everyone else
// backs off.
type TradeExecutor struct {
	registry *PositionRegistry
	gateway  domain.ExecutionGateway
	repo     domain.TradeRepository
	logger   *zap.Logger
}

func NewTradeExecutor(registry *PositionRegistry, gateway domain.ExecutionGateway, repo domain.TradeRepository, logger *zap.Logger) *TradeExecutor {
	return &TradeExecutor{
		registry: registry,
		gateway:  gateway,
		repo:     repo,
		logger:   logger,
	}
}

// Open submits the order and registers the resulting record under the given
// strategy tag. The record's entry price is the actual fill, not the price
// the decision was made at.
func (e *TradeExecutor) Open(ctx context.Context, req domain.OpenRequest, notional float64, strategyTag string) (domain.Position, error) {
	res, err := e.gateway.SubmitOpen(ctx, req.Symbol, req.Side, notional)
	if err != nil {
		return domain.Position{}, fmt.Errorf("submit open %s: %w", req.Symbol, err)
	}

	size := notional
	if req.Side == domain.SideShort {
		size = -notional
	}

	rec := domain.Position{
		Symbol:        req.Symbol,
		Side:          req.Side,
		EntryPrice:    res.FillPrice,
		Size:          size,
		EntryTime:     res.FilledAt,
		Confidence:    req.Confidence,
		StrategyTag:   strategyTag,
		LastPrice:     res.FillPrice,
		LastCheckedAt: res.FilledAt,
	}

	if err := e.registry.Register(rec); err != nil {
		// The order is live on the exchange but a record already exists:
		// an upstream logic error that must not be papered over.
		e.logger.Error("opened a symbol that already has a record",
			zap.String("symbol", req.Symbol),
			zap.String("order_id", res.OrderID),
			zap.Error(err))
		return domain.Position{}, err
	}

	metrics.PositionsOpened.WithLabelValues(string(req.Side)).Inc()
	e.logger.Info("position opened",
		zap.String("symbol", req.Symbol),
		zap.String("side", string(req.Side)),
		zap.Float64("notional", notional),
		zap.Float64("fill_price", res.FillPrice),
		zap.Float64("confidence", req.Confidence),
		zap.String("strategy", strategyTag))
	return rec, nil
}

// Close removes the record and submits the close order. Losing the remove
// race is a normal outcome (the other loop closed the symbol first) and
// returns (false, nil). A failed submission is retried once; after a second
// failure the position is recorded as unreconciled rather than re-registered,
// because re-inserting a synthetic record risks diverging from exchange
// truth.
func (e *TradeExecutor) Close(ctx context.Context, symbol string, reason domain.ExitReason) (bool, error) {
	rec, ok := e.registry.Remove(symbol)
	if !ok {
		metrics.CloseRacesLost.Inc()
		e.logger.Info("position already closed elsewhere",
			zap.String("symbol", symbol),
			zap.String("reason", string(reason)))
		return false, nil
	}

	res, err := e.gateway.SubmitClose(ctx, symbol, rec.Side, rec.Notional())
	if err != nil {
		e.logger.Warn("close submission failed, retrying",
			zap.String("symbol", symbol),
			zap.Error(err))
		res, err = e.gateway.SubmitClose(ctx, symbol, rec.Side, rec.Notional())
	}
	if err != nil {
		e.recordUnreconciled(ctx, rec, reason, err)
		return false, fmt.Errorf("submit close %s: %w", symbol, err)
	}

	pnl := rec.PnLPct(res.FillPrice)
	hist := &domain.PositionHistory{
		Symbol:      rec.Symbol,
		Side:        rec.Side,
		Size:        rec.Size,
		EntryPrice:  rec.EntryPrice,
		ExitPrice:   res.FillPrice,
		PnLPct:      pnl,
		Confidence:  rec.Confidence,
		StrategyTag: rec.StrategyTag,
		Reason:      reason,
		OpenedAt:    rec.EntryTime,
		ClosedAt:    res.FilledAt,
	}
	if err := e.repo.SavePositionHistory(ctx, hist); err != nil {
		e.logger.Error("failed to persist closed position",
			zap.String("symbol", symbol),
			zap.Error(err))
	}

	metrics.PositionsClosed.WithLabelValues(string(reason), string(rec.Side)).Inc()
	e.logger.Info("position closed",
		zap.String("symbol", symbol),
		zap.String("side", string(rec.Side)),
		zap.String("reason", string(reason)),
		zap.Float64("fill_price", res.FillPrice),
		zap.Float64("pnl_pct", pnl))
	return true, nil
}

func (e *TradeExecutor) recordUnreconciled(ctx context.Context, rec domain.Position, reason domain.ExitReason, cause error) {
	metrics.UnreconciledCloses.Inc()
	u := &domain.UnreconciledClose{
		Symbol:    rec.Symbol,
		Side:      rec.Side,
		Size:      rec.Size,
		Reason:    reason,
		LastError: cause.Error(),
		CreatedAt: time.Now(),
	}
	if err := e.repo.SaveUnreconciled(ctx, u); err != nil {
		e.logger.Error("failed to record unreconciled close",
			zap.String("symbol", rec.Symbol),
			zap.Error(err))
	}
	e.logger.Error("position left unreconciled after failed close",
		zap.String("symbol", rec.Symbol),
		zap.String("side", string(rec.Side)),
		zap.Float64("size", rec.Size),
		zap.Error(cause))
}

package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

type OrchestratorConfig struct {
	Interval        time.Duration
	MaxPositionAge  time.Duration
	DecisionTimeout time.Duration
	// StrategyTag selects the exit strategy stamped on positions opened by
	// this deployment.
	StrategyTag string
}

// Orchestrator is the slow loop. Each cycle it rotates stale positions,
// reconciles failed closes against exchange truth, refreshes win rates, and
// applies the decision collaborator's output: closes first, then opens
// through the sizing engine. It shares nothing with the exit monitor except
// the registry.
type Orchestrator struct {
	registry  *PositionRegistry
	executor  *TradeExecutor
	sizing    *SizingEngine
	perf      *PerformanceTracker
	decisions domain.DecisionProvider
	gateway   domain.ExecutionGateway
	repo      domain.TradeRepository
	cfg       OrchestratorConfig
	logger    *zap.Logger
}

func NewOrchestrator(
	registry *PositionRegistry,
	executor *TradeExecutor,
	sizing *SizingEngine,
	perf *PerformanceTracker,
	decisions domain.DecisionProvider,
	gateway domain.ExecutionGateway,
	repo domain.TradeRepository,
	cfg OrchestratorConfig,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		registry:  registry,
		executor:  executor,
		sizing:    sizing,
		perf:      perf,
		decisions: decisions,
		gateway:   gateway,
		repo:      repo,
		cfg:       cfg,
		logger:    logger,
	}
}

func (o *Orchestrator) Run(ctx context.Context) {
	o.logger.Info("orchestrator started",
		zap.Duration("interval", o.cfg.Interval),
		zap.String("strategy", o.cfg.StrategyTag))

	// First cycle immediately, then on the ticker.
	o.Cycle(ctx)

	ticker := time.NewTicker(o.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info("orchestrator stopped")
			return
		case <-ticker.C:
			o.Cycle(ctx)
		}
	}
}

// Cycle runs one decision cycle. Every stage is independent: a failure in
// one stage is logged and the rest still run.
func (o *Orchestrator) Cycle(ctx context.Context) {
	o.rotateStale(ctx)
	o.reconcile(ctx)

	if err := o.perf.Refresh(ctx); err != nil {
		o.logger.Warn("win-rate refresh failed", zap.Error(err))
	}

	o.applyDecision(ctx)
}

// rotateStale force-closes every record older than the configured maximum
// age, independent of P&L. This is a courtesy closure to free capital from
// stale trades; it is distinct from the time-capped strategy's own
// time-limit check, which is usually tighter.
func (o *Orchestrator) rotateStale(ctx context.Context) {
	if o.cfg.MaxPositionAge <= 0 {
		return
	}

	now := time.Now()
	for _, rec := range o.registry.Snapshot() {
		age := rec.Age(now)
		if age < o.cfg.MaxPositionAge {
			continue
		}
		o.logger.Info("rotating stale position",
			zap.String("symbol", rec.Symbol),
			zap.Duration("age", age))
		if _, err := o.executor.Close(ctx, rec.Symbol, domain.ExitMaxAge); err != nil {
			o.logger.Warn("rotation close failed",
				zap.String("symbol", rec.Symbol),
				zap.Error(err))
		}
	}
}

// reconcile cross-checks recorded unreconciled closes against the
// exchange's actual open-position list. Entries whose symbol the exchange
// no longer holds open are resolved; the rest stay for the operator.
func (o *Orchestrator) reconcile(ctx context.Context) {
	pending, err := o.repo.ListUnreconciled(ctx)
	if err != nil {
		o.logger.Warn("failed to list unreconciled closes", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	open, err := o.gateway.OpenPositions(ctx)
	if err != nil {
		o.logger.Warn("failed to fetch exchange positions for reconciliation", zap.Error(err))
		return
	}

	openSet := make(map[string]bool, len(open))
	for _, p := range open {
		openSet[p.Symbol] = true
	}

	for _, u := range pending {
		if openSet[u.Symbol] {
			o.logger.Warn("unreconciled position still open on exchange",
				zap.String("symbol", u.Symbol),
				zap.String("last_error", u.LastError))
			continue
		}
		if err := o.repo.DeleteUnreconciled(ctx, u.ID); err != nil {
			o.logger.Warn("failed to resolve unreconciled close",
				zap.String("symbol", u.Symbol),
				zap.Error(err))
			continue
		}
		o.logger.Info("unreconciled close resolved, exchange shows position flat",
			zap.String("symbol", u.Symbol))
	}
}

func (o *Orchestrator) applyDecision(ctx context.Context) {
	dctx, cancel := context.WithTimeout(ctx, o.cfg.DecisionTimeout)
	dec, err := o.decisions.NextDecision(dctx)
	cancel()
	if err != nil {
		metrics.DecisionCycles.WithLabelValues("decision_error").Inc()
		o.logger.Warn("decision fetch failed, skipping cycle", zap.Error(err))
		return
	}

	markets, err := o.tradableMarkets(ctx)
	if err != nil {
		metrics.DecisionCycles.WithLabelValues("decision_error").Inc()
		o.logger.Warn("market list unavailable, cannot validate decision", zap.Error(err))
		return
	}

	// Closes first, so rotated capital is free before new opens.
	for _, c := range dec.Closes {
		if _, err := o.executor.Close(ctx, c.Symbol, domain.ExitManual); err != nil {
			o.logger.Warn("requested close failed",
				zap.String("symbol", c.Symbol),
				zap.Error(err))
		}
	}

	for _, req := range dec.Opens {
		o.open(ctx, req, markets)
	}

	metrics.DecisionCycles.WithLabelValues("ok").Inc()
}

func (o *Orchestrator) open(ctx context.Context, req domain.OpenRequest, markets map[string]domain.Market) {
	market, ok := markets[req.Symbol]
	if !ok || !market.Active {
		o.logger.Warn("decision names an untradable symbol, skipping",
			zap.String("symbol", req.Symbol))
		return
	}
	if req.Side != domain.SideLong && req.Side != domain.SideShort {
		o.logger.Warn("decision carries an invalid side, skipping",
			zap.String("symbol", req.Symbol),
			zap.String("side", string(req.Side)))
		return
	}
	if req.Confidence < 0 || req.Confidence > 1 {
		o.logger.Warn("decision carries an out-of-range confidence, skipping",
			zap.String("symbol", req.Symbol),
			zap.Float64("confidence", req.Confidence))
		return
	}
	if _, exists := o.registry.Get(req.Symbol); exists {
		// The collaborator asked to open a symbol we still hold. Loud: the
		// upstream state is out of sync with ours.
		o.logger.Error("open requested for a symbol that already has a position",
			zap.String("symbol", req.Symbol))
		return
	}

	winRate := o.perf.WinRate(req.Symbol)
	notional, err := o.sizing.ComputeSize(req.Confidence, winRate, req.SignalBoost, market.MinNotional)
	if err != nil {
		if errors.Is(err, domain.ErrSizeTooSmall) {
			metrics.SizingSkips.Inc()
			o.logger.Info("open skipped, size below exchange minimum",
				zap.String("symbol", req.Symbol),
				zap.Float64("confidence", req.Confidence),
				zap.Float64("win_rate", winRate))
			return
		}
		o.logger.Warn("sizing failed",
			zap.String("symbol", req.Symbol),
			zap.Error(err))
		return
	}

	if _, err := o.executor.Open(ctx, req, notional, o.cfg.StrategyTag); err != nil {
		o.logger.Warn("open failed",
			zap.String("symbol", req.Symbol),
			zap.Error(err))
	}
}

func (o *Orchestrator) tradableMarkets(ctx context.Context) (map[string]domain.Market, error) {
	list, err := o.gateway.ListMarkets(ctx)
	if err != nil {
		return nil, err
	}
	markets := make(map[string]domain.Market, len(list))
	for _, m := range list {
		markets[m.Symbol] = m
	}
	return markets, nil
}

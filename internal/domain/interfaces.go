package domain

import "context"

// PriceFeed supplies current prices. Every call carries the caller's
// timeout; a timed-out fetch means "skip this symbol this tick", never
// "assume stale data is current".
type PriceFeed interface {
	GetPrice(ctx context.Context, symbol string) (float64, error)
}

// ExecutionGateway places and confirms orders against the exchange.
// Idempotency of order submission is the gateway's concern; this subsystem
// guarantees it will not submit two close orders for the same position.
type ExecutionGateway interface {
	PriceFeed

	SubmitOpen(ctx context.Context, symbol string, side Side, notional float64) (*OrderResult, error)
	SubmitClose(ctx context.Context, symbol string, side Side, notional float64) (*OrderResult, error)
	ListMarkets(ctx context.Context) ([]Market, error)
	OpenPositions(ctx context.Context) ([]ExchangePosition, error)
}

// DecisionProvider is the external decision collaborator, consulted once
// per orchestrator cycle.
type DecisionProvider interface {
	NextDecision(ctx context.Context) (*Decision, error)
}

// TradeRepository defines storage operations for closed trades and for
// closes that failed and await reconciliation.
type TradeRepository interface {
	SavePositionHistory(ctx context.Context, h *PositionHistory) error
	ListPositionHistory(ctx context.Context, limit int) ([]*PositionHistory, error)
	SymbolWinRates(ctx context.Context, minTrades int) ([]SymbolStats, error)

	SaveUnreconciled(ctx context.Context, u *UnreconciledClose) error
	ListUnreconciled(ctx context.Context) ([]*UnreconciledClose, error)
	DeleteUnreconciled(ctx context.Context, id int64) error
}

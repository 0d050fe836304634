package domain

// OpenRequest asks the orchestrator to open a new position. Produced by the
// external decision collaborator once per cycle; treated as untrusted input
// until the symbol is validated against the exchange's tradable set.
type OpenRequest struct {
	Symbol     string  `json:"symbol"`
	Side       Side    `json:"side"`
	Confidence float64 `json:"confidence"`
	// SignalBoost is an optional high-conviction multiplier; zero means no
	// boost.
	SignalBoost float64 `json:"signal_boost,omitempty"`
}

// CloseRequest asks the orchestrator to close an open position.
type CloseRequest struct {
	Symbol string `json:"symbol"`
}

// Decision is one cycle's worth of output from the decision collaborator.
type Decision struct {
	Opens  []OpenRequest  `json:"opens"`
	Closes []CloseRequest `json:"closes"`
}

// Market describes one tradable instrument on the exchange.
type Market struct {
	Symbol      string
	MinNotional float64
	Active      bool
}

// ExchangePosition is the exchange's own view of an open position, used to
// reconcile unreconciled closes against exchange truth.
type ExchangePosition struct {
	Symbol     string
	Side       Side
	Notional   float64
	EntryPrice float64
}

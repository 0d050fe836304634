package usecase_test

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
)

type openCall struct {
	Symbol   string
	Side     domain.Side
	Notional float64
}

type closeCall struct {
	Symbol   string
	Side     domain.Side
	Notional float64
}

// mockGateway is a scriptable execution gateway: fixed prices per symbol,
// queued close errors, and recorded submissions.
type mockGateway struct {
	mu        sync.Mutex
	prices    map[string]float64
	priceErrs map[string]error
	closeErrs []error
	openErr   error
	fillPrice float64

	opens   []openCall
	closes  []closeCall
	markets []domain.Market
	open    []domain.ExchangePosition
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		prices:    make(map[string]float64),
		priceErrs: make(map[string]error),
	}
}

func (m *mockGateway) GetPrice(ctx context.Context, symbol string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.priceErrs[symbol]; ok {
		return 0, err
	}
	price, ok := m.prices[symbol]
	if !ok {
		return 0, fmt.Errorf("no price for %s", symbol)
	}
	return price, nil
}

func (m *mockGateway) SubmitOpen(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.openErr != nil {
		return nil, m.openErr
	}
	m.opens = append(m.opens, openCall{Symbol: symbol, Side: side, Notional: notional})
	fill := m.fillPrice
	if fill == 0 {
		fill = m.prices[symbol]
	}
	return &domain.OrderResult{OrderID: "open-1", FillPrice: fill, FilledAt: time.Now()}, nil
}

func (m *mockGateway) SubmitClose(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.OrderResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.closeErrs) > 0 {
		err := m.closeErrs[0]
		m.closeErrs = m.closeErrs[1:]
		if err != nil {
			return nil, err
		}
	}
	m.closes = append(m.closes, closeCall{Symbol: symbol, Side: side, Notional: notional})
	fill := m.fillPrice
	if fill == 0 {
		fill = m.prices[symbol]
	}
	return &domain.OrderResult{OrderID: "close-1", FillPrice: fill, FilledAt: time.Now()}, nil
}

func (m *mockGateway) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.markets, nil
}

func (m *mockGateway) OpenPositions(ctx context.Context) ([]domain.ExchangePosition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.open, nil
}

func (m *mockGateway) closeCalls() []closeCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]closeCall, len(m.closes))
	copy(out, m.closes)
	return out
}

// memRepo is an in-memory trade repository.
type memRepo struct {
	mu      sync.Mutex
	history []*domain.PositionHistory
	unrec   []*domain.UnreconciledClose
	stats   []domain.SymbolStats
	nextID  int64
}

func (r *memRepo) SavePositionHistory(ctx context.Context, h *domain.PositionHistory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	h.ID = r.nextID
	r.history = append(r.history, h)
	return nil
}

func (r *memRepo) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if limit > len(r.history) {
		limit = len(r.history)
	}
	return r.history[:limit], nil
}

func (r *memRepo) SymbolWinRates(ctx context.Context, minTrades int) ([]domain.SymbolStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats, nil
}

func (r *memRepo) SaveUnreconciled(ctx context.Context, u *domain.UnreconciledClose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	u.ID = r.nextID
	r.unrec = append(r.unrec, u)
	return nil
}

func (r *memRepo) ListUnreconciled(ctx context.Context) ([]*domain.UnreconciledClose, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*domain.UnreconciledClose, len(r.unrec))
	copy(out, r.unrec)
	return out, nil
}

func (r *memRepo) DeleteUnreconciled(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, u := range r.unrec {
		if u.ID == id {
			r.unrec = append(r.unrec[:i], r.unrec[i+1:]...)
			return nil
		}
	}
	return nil
}

// mockDecisions returns a fixed decision.
type mockDecisions struct {
	dec *domain.Decision
	err error
}

func (m *mockDecisions) NextDecision(ctx context.Context) (*domain.Decision, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.dec, nil
}

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/usecase"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestTradeExecutor_OpenRegistersFill(t *testing.T) {
	gw := newMockGateway()
	gw.fillPrice = 101.3 // fill differs from the decision price
	repo := &memRepo{}
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, repo, zaptest.NewLogger(t))

	req := domain.OpenRequest{Symbol: "BTC", Side: domain.SideLong, Confidence: 0.7}
	rec, err := exec.Open(context.Background(), req, 250, usecase.StrategyTrailing)
	require.NoError(t, err)

	assert.Equal(t, 101.3, rec.EntryPrice)
	assert.Equal(t, 250.0, rec.Size)
	assert.Equal(t, usecase.StrategyTrailing, rec.StrategyTag)

	stored, ok := reg.Get("BTC")
	require.True(t, ok)
	assert.Equal(t, rec, stored)
}

func TestTradeExecutor_OpenShortStoresNegativeNotional(t *testing.T) {
	gw := newMockGateway()
	gw.fillPrice = 50
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, &memRepo{}, zaptest.NewLogger(t))

	req := domain.OpenRequest{Symbol: "SOL", Side: domain.SideShort, Confidence: 0.9}
	rec, err := exec.Open(context.Background(), req, 300, usecase.StrategyTimeCapped)
	require.NoError(t, err)

	assert.Equal(t, -300.0, rec.Size)
	assert.Equal(t, 300.0, rec.Notional())
}

func TestTradeExecutor_CloseRecordsHistory(t *testing.T) {
	gw := newMockGateway()
	gw.fillPrice = 105
	repo := &memRepo{}
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, repo, zaptest.NewLogger(t))

	require.NoError(t, reg.Register(domain.Position{
		Symbol:     "BTC",
		Side:       domain.SideLong,
		EntryPrice: 100,
		Size:       500,
		EntryTime:  time.Now().Add(-time.Hour),
		Confidence: 0.8,
	}))

	closed, err := exec.Close(context.Background(), "BTC", domain.ExitTakeProfit)
	require.NoError(t, err)
	require.True(t, closed)

	// Registry record is gone, exactly one close order was submitted.
	_, ok := reg.Get("BTC")
	assert.False(t, ok)
	calls := gw.closeCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, domain.SideLong, calls[0].Side)
	assert.Equal(t, 500.0, calls[0].Notional)

	// Realized P&L comes from the fill, not the trigger price.
	require.Len(t, repo.history, 1)
	assert.InDelta(t, 5.0, repo.history[0].PnLPct, 0.0001)
	assert.Equal(t, domain.ExitTakeProfit, repo.history[0].Reason)
}

func TestTradeExecutor_CloseLostRaceIsNotAnError(t *testing.T) {
	gw := newMockGateway()
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, &memRepo{}, zaptest.NewLogger(t))

	closed, err := exec.Close(context.Background(), "BTC", domain.ExitManual)
	require.NoError(t, err)
	assert.False(t, closed)
	assert.Empty(t, gw.closeCalls(), "a lost race must not submit a close order")
}

func TestTradeExecutor_CloseRetriesOnce(t *testing.T) {
	gw := newMockGateway()
	gw.fillPrice = 99
	gw.closeErrs = []error{errors.New("exchange hiccup")}
	repo := &memRepo{}
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, repo, zaptest.NewLogger(t))

	require.NoError(t, reg.Register(domain.Position{
		Symbol: "BTC", Side: domain.SideLong, EntryPrice: 100, Size: 500, EntryTime: time.Now(),
	}))

	closed, err := exec.Close(context.Background(), "BTC", domain.ExitStopLoss)
	require.NoError(t, err)
	assert.True(t, closed)
	assert.Len(t, gw.closeCalls(), 1, "retry should have succeeded")
	assert.Empty(t, repo.unrec)
}

func TestTradeExecutor_SecondFailureLeavesUnreconciled(t *testing.T) {
	gw := newMockGateway()
	gw.closeErrs = []error{errors.New("down"), errors.New("still down")}
	repo := &memRepo{}
	reg := usecase.NewPositionRegistry()
	exec := usecase.NewTradeExecutor(reg, gw, repo, zaptest.NewLogger(t))

	require.NoError(t, reg.Register(domain.Position{
		Symbol: "BTC", Side: domain.SideLong, EntryPrice: 100, Size: 500, EntryTime: time.Now(),
	}))

	closed, err := exec.Close(context.Background(), "BTC", domain.ExitStopLoss)
	require.Error(t, err)
	assert.False(t, closed)

	// Not re-registered: a synthetic record could diverge from exchange
	// truth. The failure is recorded for reconciliation instead.
	_, ok := reg.Get("BTC")
	assert.False(t, ok)
	require.Len(t, repo.unrec, 1)
	assert.Equal(t, "BTC", repo.unrec[0].Symbol)
	assert.Contains(t, repo.unrec[0].LastError, "still down")
}

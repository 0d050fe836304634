package exchange

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	PacificaBaseURL = "https://api.pacifica.fi/api/v1"
	PacificaWSURL   = "wss://ws.pacifica.fi/ws"
)

// priceSample is one cached websocket price.
type priceSample struct {
	price float64
	at    time.Time
}

// PacificaAdapter implements domain.ExecutionGateway against the Pacifica
// perp API. Prices come from the websocket stream when fresh, falling back
// to REST; orders always go over REST with a client order id so a retried
// submission is idempotent on the exchange side.
type PacificaAdapter struct {
	apiKey      string
	apiSecret   string
	baseURL     string
	wsURL       string
	client      *http.Client
	logger      *zap.Logger
	priceMaxAge time.Duration

	mu     sync.Mutex
	prices map[string]priceSample
}

func NewPacificaAdapter(apiKey, apiSecret, baseURL, wsURL string, priceMaxAge time.Duration, logger *zap.Logger) *PacificaAdapter {
	return &PacificaAdapter{
		apiKey:      apiKey,
		apiSecret:   apiSecret,
		baseURL:     baseURL,
		wsURL:       wsURL,
		client:      &http.Client{Timeout: 10 * time.Second},
		logger:      logger,
		priceMaxAge: priceMaxAge,
		prices:      make(map[string]priceSample),
	}
}

// --- REST API ---

func (a *PacificaAdapter) sign(payload string, timestamp int64) string {
	toSign := fmt.Sprintf("%d%s%s", timestamp, a.apiKey, payload)
	h := hmac.New(sha256.New, []byte(a.apiSecret))
	h.Write([]byte(toSign))
	return hex.EncodeToString(h.Sum(nil))
}

func (a *PacificaAdapter) sendRequest(ctx context.Context, method, path string, payload any) ([]byte, error) {
	timestamp := time.Now().UnixMilli()

	var body []byte
	if payload != nil {
		jsonBody, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		body = jsonBody
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}

	req.Header.Set("PF-API-KEY", a.apiKey)
	req.Header.Set("PF-TIMESTAMP", strconv.FormatInt(timestamp, 10))
	req.Header.Set("PF-SIGNATURE", a.sign(string(body), timestamp))
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// GetPrice serves the websocket mid price when it is fresh enough and falls
// back to the REST ticker otherwise. A stale cache entry is never returned.
func (a *PacificaAdapter) GetPrice(ctx context.Context, symbol string) (float64, error) {
	a.mu.Lock()
	sample, ok := a.prices[symbol]
	a.mu.Unlock()
	if ok && time.Since(sample.at) <= a.priceMaxAge {
		return sample.price, nil
	}

	resp, err := a.sendRequest(ctx, "GET", "/info/prices", nil)
	if err != nil {
		return 0, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			Symbol string `json:"symbol"`
			Mark   string `json:"mark"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return 0, err
	}

	for _, row := range result.Data {
		if row.Symbol != symbol {
			continue
		}
		price, err := strconv.ParseFloat(row.Mark, 64)
		if err != nil {
			return 0, fmt.Errorf("bad mark price for %s: %w", symbol, err)
		}
		a.cachePrice(symbol, price)
		return price, nil
	}
	return 0, fmt.Errorf("symbol %s not found in price feed", symbol)
}

type orderResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Data    struct {
		OrderID      string `json:"order_id"`
		AvgFillPrice string `json:"avg_fill_price"`
	} `json:"data"`
}

func (a *PacificaAdapter) submitMarketOrder(ctx context.Context, symbol, side string, notional float64, reduceOnly bool) (*domain.OrderResult, error) {
	payload := map[string]any{
		"symbol":          symbol,
		"side":            side,
		"order_type":      "market",
		"notional":        fmt.Sprintf("%.2f", notional),
		"reduce_only":     reduceOnly,
		"client_order_id": uuid.NewString(),
	}

	resp, err := a.sendRequest(ctx, "POST", "/orders/create_market", payload)
	if err != nil {
		return nil, err
	}

	var result orderResponse
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, fmt.Errorf("pacifica order error: %s", result.Error)
	}

	fill, err := strconv.ParseFloat(result.Data.AvgFillPrice, 64)
	if err != nil || fill <= 0 {
		// Some fills settle asynchronously and come back without a price;
		// use the current mark so realized P&L stays close to truth.
		fill, err = a.GetPrice(ctx, symbol)
		if err != nil {
			return nil, fmt.Errorf("order %s confirmed but fill price unavailable: %w", result.Data.OrderID, err)
		}
	}

	return &domain.OrderResult{
		OrderID:   result.Data.OrderID,
		FillPrice: fill,
		FilledAt:  time.Now(),
	}, nil
}

func (a *PacificaAdapter) SubmitOpen(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.OrderResult, error) {
	s := "bid"
	if side == domain.SideShort {
		s = "ask"
	}
	return a.submitMarketOrder(ctx, symbol, s, notional, false)
}

func (a *PacificaAdapter) SubmitClose(ctx context.Context, symbol string, side domain.Side, notional float64) (*domain.OrderResult, error) {
	// Closing takes the opposite side, reduce-only so a stale notional can
	// never flip the position.
	s := "ask"
	if side == domain.SideShort {
		s = "bid"
	}
	return a.submitMarketOrder(ctx, symbol, s, notional, true)
}

func (a *PacificaAdapter) ListMarkets(ctx context.Context) ([]domain.Market, error) {
	resp, err := a.sendRequest(ctx, "GET", "/info/markets", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			Symbol      string `json:"symbol"`
			MinNotional string `json:"min_notional"`
			Status      string `json:"status"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	var markets []domain.Market
	for _, row := range result.Data {
		minNotional, _ := strconv.ParseFloat(row.MinNotional, 64)
		markets = append(markets, domain.Market{
			Symbol:      row.Symbol,
			MinNotional: minNotional,
			Active:      row.Status == "active",
		})
	}
	return markets, nil
}

func (a *PacificaAdapter) OpenPositions(ctx context.Context) ([]domain.ExchangePosition, error) {
	resp, err := a.sendRequest(ctx, "GET", "/positions", nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Success bool `json:"success"`
		Data    []struct {
			Symbol     string `json:"symbol"`
			Side       string `json:"side"`
			Notional   string `json:"notional"`
			EntryPrice string `json:"entry_price"`
		} `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}

	var positions []domain.ExchangePosition
	for _, row := range result.Data {
		notional, _ := strconv.ParseFloat(row.Notional, 64)
		if notional == 0 {
			continue
		}
		entry, _ := strconv.ParseFloat(row.EntryPrice, 64)
		side := domain.SideLong
		if row.Side == "ask" || row.Side == "short" {
			side = domain.SideShort
		}
		positions = append(positions, domain.ExchangePosition{
			Symbol:     row.Symbol,
			Side:       side,
			Notional:   notional,
			EntryPrice: entry,
		})
	}
	return positions, nil
}

// --- WebSocket ---

// ConnectWS dials the price stream and keeps the local price cache warm.
// The subscription covers every symbol; reconnects are retried with a flat
// backoff until ctx is cancelled.
func (a *PacificaAdapter) ConnectWS(ctx context.Context) error {
	conn, err := a.dialAndSubscribe()
	if err != nil {
		return err
	}

	go a.readLoop(ctx, conn)
	return nil
}

func (a *PacificaAdapter) dialAndSubscribe() (*websocket.Conn, error) {
	conn, _, err := websocket.DefaultDialer.Dial(a.wsURL, nil)
	if err != nil {
		return nil, err
	}

	subMsg := map[string]any{
		"method": "subscribe",
		"params": map[string]any{"source": "prices"},
	}
	if err := conn.WriteJSON(subMsg); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func (a *PacificaAdapter) readLoop(ctx context.Context, conn *websocket.Conn) {
	defer conn.Close()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			a.logger.Warn("price stream read failed, reconnecting", zap.Error(err))
			conn = a.reconnect(ctx)
			if conn == nil {
				return
			}
			continue
		}

		var event struct {
			Channel string `json:"channel"`
			Data    []struct {
				Symbol string `json:"symbol"`
				Mark   string `json:"mark"`
			} `json:"data"`
		}
		if err := json.Unmarshal(message, &event); err != nil {
			a.logger.Warn("bad price stream message", zap.Error(err))
			continue
		}
		if event.Channel != "prices" {
			continue
		}

		for _, row := range event.Data {
			price, err := strconv.ParseFloat(row.Mark, 64)
			if err != nil || price <= 0 {
				continue
			}
			a.cachePrice(row.Symbol, price)
		}
	}
}

func (a *PacificaAdapter) reconnect(ctx context.Context) *websocket.Conn {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(5 * time.Second):
		}
		conn, err := a.dialAndSubscribe()
		if err != nil {
			a.logger.Warn("price stream reconnect failed", zap.Error(err))
			continue
		}
		a.logger.Info("price stream reconnected")
		return conn
	}
}

func (a *PacificaAdapter) cachePrice(symbol string, price float64) {
	a.mu.Lock()
	a.prices[symbol] = priceSample{price: price, at: time.Now()}
	a.mu.Unlock()
}

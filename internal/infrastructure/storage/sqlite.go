package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/0xRhota/pacifica-trading-bot-sub002/internal/domain"
	_ "github.com/mattn/go-sqlite3"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS position_history (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			pnl_pct REAL NOT NULL,
			confidence REAL NOT NULL,
			strategy TEXT NOT NULL,
			reason TEXT NOT NULL,
			opened_at DATETIME NOT NULL,
			closed_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_history_symbol ON position_history(symbol);`,
		`CREATE TABLE IF NOT EXISTS unreconciled_closes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol TEXT NOT NULL,
			side TEXT NOT NULL,
			size REAL NOT NULL,
			reason TEXT NOT NULL,
			last_error TEXT NOT NULL,
			created_at DATETIME NOT NULL
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// TradeRepository implementation

func (s *SQLiteStore) SavePositionHistory(ctx context.Context, h *domain.PositionHistory) error {
	query := `INSERT INTO position_history (symbol, side, size, entry_price, exit_price, pnl_pct, confidence, strategy, reason, opened_at, closed_at)
			  VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query,
		h.Symbol, h.Side, h.Size, h.EntryPrice, h.ExitPrice, h.PnLPct,
		h.Confidence, h.StrategyTag, h.Reason, h.OpenedAt, h.ClosedAt)
	if err != nil {
		return err
	}
	h.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListPositionHistory(ctx context.Context, limit int) ([]*domain.PositionHistory, error) {
	query := `SELECT id, symbol, side, size, entry_price, exit_price, pnl_pct, confidence, strategy, reason, opened_at, closed_at
			  FROM position_history ORDER BY closed_at DESC LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.PositionHistory
	for rows.Next() {
		h := &domain.PositionHistory{}
		if err := rows.Scan(&h.ID, &h.Symbol, &h.Side, &h.Size, &h.EntryPrice, &h.ExitPrice,
			&h.PnLPct, &h.Confidence, &h.StrategyTag, &h.Reason, &h.OpenedAt, &h.ClosedAt); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// SymbolWinRates aggregates closed trades into per-symbol win rates,
// skipping symbols with fewer than minTrades samples.
func (s *SQLiteStore) SymbolWinRates(ctx context.Context, minTrades int) ([]domain.SymbolStats, error) {
	query := `SELECT symbol, COUNT(*), SUM(CASE WHEN pnl_pct > 0 THEN 1 ELSE 0 END)
			  FROM position_history
			  GROUP BY symbol
			  HAVING COUNT(*) >= ?`
	rows, err := s.db.QueryContext(ctx, query, minTrades)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.SymbolStats
	for rows.Next() {
		var stats domain.SymbolStats
		if err := rows.Scan(&stats.Symbol, &stats.Trades, &stats.Wins); err != nil {
			return nil, err
		}
		if stats.Trades > 0 {
			stats.WinRate = float64(stats.Wins) / float64(stats.Trades)
		}
		out = append(out, stats)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SaveUnreconciled(ctx context.Context, u *domain.UnreconciledClose) error {
	query := `INSERT INTO unreconciled_closes (symbol, side, size, reason, last_error, created_at)
			  VALUES (?, ?, ?, ?, ?, ?)`
	res, err := s.db.ExecContext(ctx, query, u.Symbol, u.Side, u.Size, u.Reason, u.LastError, u.CreatedAt)
	if err != nil {
		return err
	}
	u.ID, _ = res.LastInsertId()
	return nil
}

func (s *SQLiteStore) ListUnreconciled(ctx context.Context) ([]*domain.UnreconciledClose, error) {
	query := `SELECT id, symbol, side, size, reason, last_error, created_at FROM unreconciled_closes ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.UnreconciledClose
	for rows.Next() {
		u := &domain.UnreconciledClose{}
		if err := rows.Scan(&u.ID, &u.Symbol, &u.Side, &u.Size, &u.Reason, &u.LastError, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) DeleteUnreconciled(ctx context.Context, id int64) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM unreconciled_closes WHERE id = ?`, id)
	return err
}

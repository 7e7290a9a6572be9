package storage

// sqlite.go — portfolio and secret persistence on a single SQLite file.
//
// One row per account in `portfolios`, child rows in `positions` and
// `round_trips`. Quantities and cash are stored as TEXT so decimal
// exactness survives the round trip. StorePortfolio is a transactional
// full-record replace: the external store's key-level atomicity is the
// only locking the system relies on.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/jdamico/rebalancer/internal/domain"
)

const schema = `
CREATE TABLE IF NOT EXISTS portfolios (
    account_id TEXT PRIMARY KEY,
    cash       TEXT     NOT NULL,
    updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS positions (
    account_id TEXT NOT NULL,
    symbol     TEXT NOT NULL,
    quantity   TEXT NOT NULL,
    PRIMARY KEY (account_id, symbol)
);

CREATE TABLE IF NOT EXISTS round_trips (
    account_id TEXT    NOT NULL,
    date       TEXT    NOT NULL,
    count      INTEGER NOT NULL,
    PRIMARY KEY (account_id, date)
);

CREATE TABLE IF NOT EXISTS secrets (
    key        TEXT PRIMARY KEY,
    value      TEXT     NOT NULL,
    updated_at DATETIME NOT NULL
);
`

// SQLiteStorage implements ports.PortfolioStore and ports.SecretStore using
// SQLite (pure Go, no CGo).
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens (or creates) the database at the given path and
// applies the schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}

	return &SQLiteStorage{db: db}, nil
}

// GetPortfolio loads one account's record. Returns domain.ErrNoPortfolio
// when no row exists.
func (s *SQLiteStorage) GetPortfolio(ctx context.Context, accountID string) (*domain.Portfolio, error) {
	var cash string
	err := s.db.QueryRowContext(ctx,
		`SELECT cash FROM portfolios WHERE account_id = ?`, accountID).Scan(&cash)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("storage.GetPortfolio: %s: %w", accountID, domain.ErrNoPortfolio)
	}
	if err != nil {
		return nil, fmt.Errorf("storage.GetPortfolio: %s: %w", accountID, err)
	}

	portfolio := domain.NewPortfolio(accountID)
	portfolio.Cash, err = decimal.NewFromString(cash)
	if err != nil {
		return nil, fmt.Errorf("storage.GetPortfolio: %s: parse cash %q: %w", accountID, cash, err)
	}

	if err := s.loadPositions(ctx, portfolio); err != nil {
		return nil, err
	}
	if err := s.loadRoundTrips(ctx, portfolio); err != nil {
		return nil, err
	}
	return portfolio, nil
}

// GetAllPortfolios loads every stored record.
func (s *SQLiteStorage) GetAllPortfolios(ctx context.Context) ([]*domain.Portfolio, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT account_id FROM portfolios ORDER BY account_id`)
	if err != nil {
		return nil, fmt.Errorf("storage.GetAllPortfolios: %w", err)
	}
	defer rows.Close()

	var accountIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("storage.GetAllPortfolios: scan: %w", err)
		}
		accountIDs = append(accountIDs, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.GetAllPortfolios: %w", err)
	}

	portfolios := make([]*domain.Portfolio, 0, len(accountIDs))
	for _, id := range accountIDs {
		portfolio, err := s.GetPortfolio(ctx, id)
		if err != nil {
			return nil, err
		}
		portfolios = append(portfolios, portfolio)
	}
	return portfolios, nil
}

// StorePortfolio replaces the full record for the portfolio's account.
// Zero-quantity positions are never written.
func (s *SQLiteStorage) StorePortfolio(ctx context.Context, p *domain.Portfolio) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.StorePortfolio: begin: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO portfolios (account_id, cash, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(account_id) DO UPDATE SET cash = excluded.cash, updated_at = excluded.updated_at`,
		p.AccountID, p.Cash.String(), now); err != nil {
		return fmt.Errorf("storage.StorePortfolio: upsert %s: %w", p.AccountID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM positions WHERE account_id = ?`, p.AccountID); err != nil {
		return fmt.Errorf("storage.StorePortfolio: clear positions: %w", err)
	}
	for symbol, quantity := range p.Positions {
		if quantity.IsZero() {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO positions (account_id, symbol, quantity) VALUES (?, ?, ?)`,
			p.AccountID, symbol, quantity.String()); err != nil {
			return fmt.Errorf("storage.StorePortfolio: insert position %s: %w", symbol, err)
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM round_trips WHERE account_id = ?`, p.AccountID); err != nil {
		return fmt.Errorf("storage.StorePortfolio: clear round trips: %w", err)
	}
	for date, count := range p.RoundTrips {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO round_trips (account_id, date, count) VALUES (?, ?, ?)`,
			p.AccountID, date, count); err != nil {
			return fmt.Errorf("storage.StorePortfolio: insert round trips %s: %w", date, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.StorePortfolio: commit: %w", err)
	}
	return nil
}

// Close closes the database cleanly.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) loadPositions(ctx context.Context, p *domain.Portfolio) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT symbol, quantity FROM positions WHERE account_id = ?`, p.AccountID)
	if err != nil {
		return fmt.Errorf("storage.loadPositions: %s: %w", p.AccountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var symbol, raw string
		if err := rows.Scan(&symbol, &raw); err != nil {
			return fmt.Errorf("storage.loadPositions: scan: %w", err)
		}
		quantity, err := decimal.NewFromString(raw)
		if err != nil {
			return fmt.Errorf("storage.loadPositions: parse %s quantity %q: %w", symbol, raw, err)
		}
		if quantity.IsZero() {
			continue
		}
		p.Positions[symbol] = quantity
	}
	return rows.Err()
}

func (s *SQLiteStorage) loadRoundTrips(ctx context.Context, p *domain.Portfolio) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT date, count FROM round_trips WHERE account_id = ?`, p.AccountID)
	if err != nil {
		return fmt.Errorf("storage.loadRoundTrips: %s: %w", p.AccountID, err)
	}
	defer rows.Close()

	for rows.Next() {
		var date string
		var count int
		if err := rows.Scan(&date, &count); err != nil {
			return fmt.Errorf("storage.loadRoundTrips: scan: %w", err)
		}
		p.RoundTrips[date] = count
	}
	return rows.Err()
}

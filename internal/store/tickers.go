package store

import (
	"context"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveTicker registers or renames a ticker. Only name and is_delisted
// are mutable; the natural key is the 6-digit code.
func (s *Store) SaveTicker(ctx context.Context, t contracts.Ticker) error {
	if err := contracts.ValidateCode(t.Code); err != nil {
		return &Error{Kind: KindIntegrity, Op: "save_ticker", Err: err}
	}

	query := `
		INSERT INTO data.tickers (code, name, market, sector, is_delisted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
		ON CONFLICT (code) DO UPDATE SET
			name = EXCLUDED.name,
			is_delisted = EXCLUDED.is_delisted,
			updated_at = NOW()
	`

	_, err := s.db.Exec(ctx, query, t.Code, t.Name, t.Market, t.Sector, t.IsDelisted)
	return wrap("save_ticker", err)
}

// GetTicker looks up one ticker by code
func (s *Store) GetTicker(ctx context.Context, code string) (*contracts.Ticker, error) {
	query := `
		SELECT code, name, market, sector, is_delisted, created_at, updated_at
		FROM data.tickers
		WHERE code = $1
	`

	var t contracts.Ticker
	err := s.db.QueryRow(ctx, query, code).Scan(
		&t.Code, &t.Name, &t.Market, &t.Sector, &t.IsDelisted, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("get_ticker", err)
	}

	return &t, nil
}

// ListActiveTickers returns every non-delisted ticker ordered by code
func (s *Store) ListActiveTickers(ctx context.Context) ([]contracts.Ticker, error) {
	query := `
		SELECT code, name, market, sector, is_delisted, created_at, updated_at
		FROM data.tickers
		WHERE is_delisted = false
		ORDER BY code
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrap("list_active_tickers", err)
	}
	defer rows.Close()

	var tickers []contracts.Ticker
	for rows.Next() {
		var t contracts.Ticker
		if err := rows.Scan(&t.Code, &t.Name, &t.Market, &t.Sector, &t.IsDelisted, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, wrap("scan_ticker", err)
		}
		tickers = append(tickers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, wrap("list_active_tickers", err)
	}

	return tickers, nil
}

// MarkDelisted soft-deletes a ticker
func (s *Store) MarkDelisted(ctx context.Context, code string) error {
	query := `UPDATE data.tickers SET is_delisted = true, updated_at = NOW() WHERE code = $1`
	_, err := s.db.Exec(ctx, query, code)
	return wrap("mark_delisted", err)
}

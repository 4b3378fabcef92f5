package store

import (
	"context"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveHolding upserts one position by ticker
func (s *Store) SaveHolding(ctx context.Context, h contracts.Holding) error {
	query := `
		INSERT INTO data.holdings (ticker_code, quantity, avg_buy_price, current_price, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (ticker_code) DO UPDATE SET
			quantity = EXCLUDED.quantity,
			avg_buy_price = EXCLUDED.avg_buy_price,
			current_price = EXCLUDED.current_price,
			updated_at = NOW()
	`

	_, err := s.db.Exec(ctx, query, h.TickerCode, h.Quantity, h.AvgBuyPrice, h.CurrentPrice)
	return wrap("save_holding", err)
}

// ListHoldings returns every open position
func (s *Store) ListHoldings(ctx context.Context) ([]contracts.Holding, error) {
	query := `
		SELECT ticker_code, quantity, avg_buy_price, current_price, updated_at
		FROM data.holdings
		WHERE quantity > 0
		ORDER BY ticker_code
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrap("list_holdings", err)
	}
	defer rows.Close()

	var holdings []contracts.Holding
	for rows.Next() {
		var h contracts.Holding
		if err := rows.Scan(&h.TickerCode, &h.Quantity, &h.AvgBuyPrice, &h.CurrentPrice, &h.UpdatedAt); err != nil {
			return nil, wrap("scan_holding", err)
		}
		holdings = append(holdings, h)
	}

	return holdings, wrap("list_holdings", rows.Err())
}

// RemoveHolding closes a position
func (s *Store) RemoveHolding(ctx context.Context, code string) error {
	query := `DELETE FROM data.holdings WHERE ticker_code = $1`
	_, err := s.db.Exec(ctx, query, code)
	return wrap("remove_holding", err)
}

package store

import (
	"context"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SavePrices upserts daily bars in 500-row transactions. Rows that fail
// validation are dropped and counted; the batch continues.
func (s *Store) SavePrices(ctx context.Context, bars []contracts.OHLCV) (int, error) {
	if len(bars) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO data.daily_prices (
			ticker_code, trade_date, open_price, high_price, low_price,
			close_price, volume, trading_value, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		ON CONFLICT (ticker_code, trade_date) DO UPDATE SET
			open_price = EXCLUDED.open_price,
			high_price = EXCLUDED.high_price,
			low_price = EXCLUDED.low_price,
			close_price = EXCLUDED.close_price,
			volume = EXCLUDED.volume,
			trading_value = EXCLUDED.trading_value,
			updated_at = NOW()
	`

	saved := 0
	dropped := 0

	for start := 0; start < len(bars); start += batchSize {
		end := start + batchSize
		if end > len(bars) {
			end = len(bars)
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return saved, wrap("save_prices", err)
		}

		for _, b := range bars[start:end] {
			if err := b.Validate(); err != nil {
				dropped++
				s.logger.WithError(err).Warn("Dropping invalid price bar")
				continue
			}

			_, err := tx.Exec(ctx, query,
				b.TickerCode, b.Date, b.Open, b.High, b.Low,
				b.Close, b.Volume, b.TradingValue,
			)
			if err != nil {
				tx.Rollback(ctx)
				return saved, wrap("save_prices", err)
			}
			saved++
		}

		if err := tx.Commit(ctx); err != nil {
			return saved, wrap("save_prices", err)
		}
	}

	if dropped > 0 {
		s.logger.WithField("dropped", dropped).Warn("Some price bars failed validation")
	}

	return saved, nil
}

// GetPrices returns bars for one ticker, newest first, up to limit days
// back from asOf.
func (s *Store) GetPrices(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.OHLCV, error) {
	query := `
		SELECT ticker_code, trade_date, open_price, high_price, low_price,
		       close_price, volume, trading_value
		FROM data.daily_prices
		WHERE ticker_code = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, code, asOf, limit)
	if err != nil {
		return nil, wrap("get_prices", err)
	}
	defer rows.Close()

	var bars []contracts.OHLCV
	for rows.Next() {
		var b contracts.OHLCV
		if err := rows.Scan(&b.TickerCode, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TradingValue); err != nil {
			return nil, wrap("scan_price", err)
		}
		bars = append(bars, b)
	}

	return bars, wrap("get_prices", rows.Err())
}

// GetPricesBatch loads bars for many tickers in one query, newest first
// per ticker. The screener stage-2 uses this to avoid N round trips.
func (s *Store) GetPricesBatch(ctx context.Context, codes []string, asOf time.Time, days int) (map[string][]contracts.OHLCV, error) {
	if len(codes) == 0 {
		return map[string][]contracts.OHLCV{}, nil
	}

	query := `
		SELECT ticker_code, trade_date, open_price, high_price, low_price,
		       close_price, volume, trading_value
		FROM (
			SELECT *, ROW_NUMBER() OVER (PARTITION BY ticker_code ORDER BY trade_date DESC) AS rn
			FROM data.daily_prices
			WHERE ticker_code = ANY($1) AND trade_date <= $2
		) t
		WHERE rn <= $3
		ORDER BY ticker_code, trade_date DESC
	`

	rows, err := s.db.Query(ctx, query, codes, asOf, days)
	if err != nil {
		return nil, wrap("get_prices_batch", err)
	}
	defer rows.Close()

	result := make(map[string][]contracts.OHLCV, len(codes))
	for rows.Next() {
		var b contracts.OHLCV
		if err := rows.Scan(&b.TickerCode, &b.Date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.TradingValue); err != nil {
			return nil, wrap("scan_price", err)
		}
		result[b.TickerCode] = append(result[b.TickerCode], b)
	}

	return result, wrap("get_prices_batch", rows.Err())
}

// CountAdvanceDecline counts advancing vs declining tickers on one
// trading day. Feeds the market-context ADR.
func (s *Store) CountAdvanceDecline(ctx context.Context, date time.Time) (advancers, decliners int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE close_price > open_price),
			COUNT(*) FILTER (WHERE close_price < open_price)
		FROM data.daily_prices
		WHERE trade_date = (
			SELECT MAX(trade_date) FROM data.daily_prices WHERE trade_date <= $1
		)
	`

	if err := s.db.QueryRow(ctx, query, date).Scan(&advancers, &decliners); err != nil {
		return 0, 0, wrap("count_advance_decline", err)
	}

	return advancers, decliners, nil
}

// GetClosePrice returns the closing price on or before a date
func (s *Store) GetClosePrice(ctx context.Context, code string, date time.Time) (int64, time.Time, error) {
	query := `
		SELECT close_price, trade_date
		FROM data.daily_prices
		WHERE ticker_code = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT 1
	`

	var price int64
	var tradeDate time.Time
	err := s.db.QueryRow(ctx, query, code, date).Scan(&price, &tradeDate)
	if err != nil {
		return 0, time.Time{}, wrap("get_close_price", err)
	}

	return price, tradeDate, nil
}

// GetLowestClose returns the lowest close in (from, to] for drawdown
// computation over a tracking horizon.
func (s *Store) GetLowestClose(ctx context.Context, code string, from, to time.Time) (int64, error) {
	query := `
		SELECT COALESCE(MIN(close_price), 0)
		FROM data.daily_prices
		WHERE ticker_code = $1 AND trade_date > $2 AND trade_date <= $3
	`

	var lowest int64
	err := s.db.QueryRow(ctx, query, code, from, to).Scan(&lowest)
	if err != nil {
		return 0, wrap("get_lowest_close", err)
	}

	return lowest, nil
}

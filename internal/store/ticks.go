package store

import (
	"context"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveTick appends one trade print and mirrors the price into
// holdings.current_price in the same transaction.
// ⭐ SSOT: 보유종목 현재가는 틱 저장 트랜잭션 안에서만 갱신
func (s *Store) SaveTick(ctx context.Context, t contracts.Tick) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return wrap("save_tick", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO data.ticks (ticker_code, ts, price, volume, change_rate, ask_price, bid_price)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err = tx.Exec(ctx, insertQuery,
		t.TickerCode, t.Timestamp, t.Price, t.Volume, t.ChangeRate, t.AskPrice, t.BidPrice,
	)
	if err != nil {
		return wrap("save_tick", err)
	}

	mirrorQuery := `
		UPDATE data.holdings
		SET current_price = $2, updated_at = NOW()
		WHERE ticker_code = $1
	`

	_, err = tx.Exec(ctx, mirrorQuery, t.TickerCode, t.Price)
	if err != nil {
		return wrap("save_tick", err)
	}

	return wrap("save_tick", tx.Commit(ctx))
}

// GetLatestTick returns the most recent print for a ticker, nil when
// none exists.
func (s *Store) GetLatestTick(ctx context.Context, code string) (*contracts.Tick, error) {
	query := `
		SELECT ticker_code, ts, price, volume, change_rate, ask_price, bid_price
		FROM data.ticks
		WHERE ticker_code = $1
		ORDER BY ts DESC
		LIMIT 1
	`

	var t contracts.Tick
	err := s.db.QueryRow(ctx, query, code).Scan(
		&t.TickerCode, &t.Timestamp, &t.Price, &t.Volume, &t.ChangeRate, &t.AskPrice, &t.BidPrice,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("get_latest_tick", err)
	}

	return &t, nil
}

// GetTicksSince returns prints since a timestamp, oldest first. The
// technical analyser reads the current session this way for VWAP.
func (s *Store) GetTicksSince(ctx context.Context, code string, since time.Time) ([]contracts.Tick, error) {
	query := `
		SELECT ticker_code, ts, price, volume, change_rate, ask_price, bid_price
		FROM data.ticks
		WHERE ticker_code = $1 AND ts >= $2
		ORDER BY ts
	`

	rows, err := s.db.Query(ctx, query, code, since)
	if err != nil {
		return nil, wrap("get_ticks_since", err)
	}
	defer rows.Close()

	var ticks []contracts.Tick
	for rows.Next() {
		var t contracts.Tick
		if err := rows.Scan(&t.TickerCode, &t.Timestamp, &t.Price, &t.Volume, &t.ChangeRate, &t.AskPrice, &t.BidPrice); err != nil {
			return nil, wrap("scan_tick", err)
		}
		ticks = append(ticks, t)
	}

	return ticks, wrap("get_ticks_since", rows.Err())
}

// PruneTicks deletes prints older than the retention window (1 month).
// Runs nightly from the scheduler.
func (s *Store) PruneTicks(ctx context.Context, now time.Time) (int64, error) {
	query := `DELETE FROM data.ticks WHERE ts < $1`

	tag, err := s.db.Exec(ctx, query, now.AddDate(0, -1, 0))
	if err != nil {
		return 0, wrap("prune_ticks", err)
	}

	return tag.RowsAffected(), nil
}

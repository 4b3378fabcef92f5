package store

import (
	"context"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// ScreenFilter is the hard-cut bound set for stage-1 screening
type ScreenFilter struct {
	MinPBR           float64
	MaxPBR           float64
	MinPER           float64
	MaxPER           float64
	MinAvgVolume     int64   // 20일 평균 거래량
	MinMarketCap     int64   // KRW
	MinTradedValue5D float64 // 5일 평균 거래대금 (KRW)
	Limit            int
}

// Candidate is one stage-1 survivor with the fundamentals that ranked it
type Candidate struct {
	Ticker        contracts.Ticker
	PBR           float64
	PER           float64
	MarketCap     int64
	AvgVolume20D  int64
	TradedValue5D float64
}

// ScreenCandidates runs the stage-1 hard cut in SQL: liquidity and
// valuation bounds against the latest fundamental snapshot joined to
// trailing price aggregates. Bounded result keeps stage 2 cheap.
// ⭐ SSOT: 1차 스크리닝 컷은 이 쿼리에서만
func (s *Store) ScreenCandidates(ctx context.Context, asOf time.Time, f ScreenFilter) ([]Candidate, error) {
	query := `
		WITH latest_fund AS (
			SELECT DISTINCT ON (ticker_code)
				ticker_code,
				(content->>'pbr')::float8 AS pbr,
				(content->>'per')::float8 AS per,
				(content->>'market_cap')::bigint AS market_cap
			FROM data.collected_blobs
			WHERE data_type = 'fundamental_v1'
			ORDER BY ticker_code, data_date DESC
		),
		vol AS (
			SELECT ticker_code,
			       AVG(volume) FILTER (WHERE trade_date > $1::date - 30) AS avg_volume,
			       AVG(trading_value) FILTER (WHERE trade_date > $1::date - 7) AS traded_value_5d
			FROM data.daily_prices
			WHERE trade_date <= $1 AND trade_date > $1::date - 30
			GROUP BY ticker_code
		)
		SELECT t.code, t.name, t.market, t.sector,
		       f.pbr, f.per, f.market_cap,
		       COALESCE(v.avg_volume, 0)::bigint, COALESCE(v.traded_value_5d, 0)
		FROM data.tickers t
		JOIN latest_fund f ON f.ticker_code = t.code
		JOIN vol v ON v.ticker_code = t.code
		WHERE t.is_delisted = false
		  AND f.pbr BETWEEN $2 AND $3
		  AND f.per BETWEEN $4 AND $5
		  AND COALESCE(v.avg_volume, 0) >= $6
		  AND f.market_cap >= $7
		  AND COALESCE(v.traded_value_5d, 0) >= $8
		ORDER BY f.market_cap DESC
		LIMIT $9
	`

	rows, err := s.db.Query(ctx, query, asOf,
		f.MinPBR, f.MaxPBR, f.MinPER, f.MaxPER,
		f.MinAvgVolume, f.MinMarketCap, f.MinTradedValue5D, f.Limit,
	)
	if err != nil {
		return nil, wrap("screen_candidates", err)
	}
	defer rows.Close()

	var out []Candidate
	for rows.Next() {
		var c Candidate
		if err := rows.Scan(&c.Ticker.Code, &c.Ticker.Name, &c.Ticker.Market, &c.Ticker.Sector,
			&c.PBR, &c.PER, &c.MarketCap, &c.AvgVolume20D, &c.TradedValue5D); err != nil {
			return nil, wrap("scan_candidate", err)
		}
		out = append(out, c)
	}

	return out, wrap("screen_candidates", rows.Err())
}

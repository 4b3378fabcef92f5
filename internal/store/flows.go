package store

import (
	"context"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveFlows upserts daily investor net flows in 500-row batches
func (s *Store) SaveFlows(ctx context.Context, flows []contracts.SupplyDemand) (int, error) {
	if len(flows) == 0 {
		return 0, nil
	}

	query := `
		INSERT INTO data.supply_demand (
			ticker_code, trade_date, foreign_net, institution_net,
			pension_net, individual_net, trust_net, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
		ON CONFLICT (ticker_code, trade_date) DO UPDATE SET
			foreign_net = EXCLUDED.foreign_net,
			institution_net = EXCLUDED.institution_net,
			pension_net = EXCLUDED.pension_net,
			individual_net = EXCLUDED.individual_net,
			trust_net = EXCLUDED.trust_net,
			updated_at = NOW()
	`

	saved := 0
	for start := 0; start < len(flows); start += batchSize {
		end := start + batchSize
		if end > len(flows) {
			end = len(flows)
		}

		tx, err := s.db.Begin(ctx)
		if err != nil {
			return saved, wrap("save_flows", err)
		}

		for _, f := range flows[start:end] {
			_, err := tx.Exec(ctx, query,
				f.TickerCode, f.Date, f.ForeignNet, f.InstitutionNet,
				f.PensionNet, f.IndividualNet, f.TrustNet,
			)
			if err != nil {
				tx.Rollback(ctx)
				return saved, wrap("save_flows", err)
			}
			saved++
		}

		if err := tx.Commit(ctx); err != nil {
			return saved, wrap("save_flows", err)
		}
	}

	return saved, nil
}

// GetFlows returns flows for one ticker, newest first
func (s *Store) GetFlows(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.SupplyDemand, error) {
	query := `
		SELECT ticker_code, trade_date, foreign_net, institution_net,
		       pension_net, individual_net, trust_net
		FROM data.supply_demand
		WHERE ticker_code = $1 AND trade_date <= $2
		ORDER BY trade_date DESC
		LIMIT $3
	`

	rows, err := s.db.Query(ctx, query, code, asOf, limit)
	if err != nil {
		return nil, wrap("get_flows", err)
	}
	defer rows.Close()

	var flows []contracts.SupplyDemand
	for rows.Next() {
		var f contracts.SupplyDemand
		if err := rows.Scan(&f.TickerCode, &f.Date, &f.ForeignNet, &f.InstitutionNet, &f.PensionNet, &f.IndividualNet, &f.TrustNet); err != nil {
			return nil, wrap("scan_flow", err)
		}
		flows = append(flows, f)
	}

	return flows, wrap("get_flows", rows.Err())
}

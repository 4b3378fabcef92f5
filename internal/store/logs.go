package store

import (
	"context"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// latencyEWMAAlpha smooths avg_latency_ms across executions
const latencyEWMAAlpha = 0.2

// RecordExecution appends one fetch-execution log row and updates the
// site health row in the same transaction. Health transitions follow
// the failure-streak thresholds; one success resets the streak.
func (s *Store) RecordExecution(ctx context.Context, log contracts.ExecutionLog) (contracts.SiteHealth, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return contracts.SiteHealth{}, wrap("record_execution", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO data.execution_logs (site_id, ticker_code, status, duration_ms, error_kind, ts)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err = tx.Exec(ctx, insertQuery,
		log.SiteID, log.TickerCode, log.Status, log.DurationMS, nullIfEmpty(log.ErrorKind), log.Timestamp,
	)
	if err != nil {
		return contracts.SiteHealth{}, wrap("record_execution", err)
	}

	healthQuery := `
		SELECT consecutive_failures, avg_latency_ms
		FROM data.site_health
		WHERE site_id = $1
		FOR UPDATE
	`

	var failures int
	var avgLatency float64
	err = tx.QueryRow(ctx, healthQuery, log.SiteID).Scan(&failures, &avgLatency)
	if err != nil && !isNoRows(err) {
		return contracts.SiteHealth{}, wrap("record_execution", err)
	}

	if log.Status == contracts.ExecOK {
		failures = 0
	} else {
		failures++
	}

	if avgLatency == 0 {
		avgLatency = float64(log.DurationMS)
	} else {
		avgLatency = latencyEWMAAlpha*float64(log.DurationMS) + (1-latencyEWMAAlpha)*avgLatency
	}

	health := contracts.SiteHealth{
		SiteID:              log.SiteID,
		Status:              contracts.StatusForFailures(failures),
		ConsecutiveFailures: failures,
		AvgLatencyMS:        avgLatency,
	}

	upsertQuery := `
		INSERT INTO data.site_health (site_id, status, consecutive_failures, avg_latency_ms, last_success_at)
		VALUES ($1, $2, $3, $4, CASE WHEN $5 THEN $6 ELSE NULL END)
		ON CONFLICT (site_id) DO UPDATE SET
			status = EXCLUDED.status,
			consecutive_failures = EXCLUDED.consecutive_failures,
			avg_latency_ms = EXCLUDED.avg_latency_ms,
			last_success_at = CASE WHEN $5 THEN $6 ELSE data.site_health.last_success_at END
	`

	_, err = tx.Exec(ctx, upsertQuery,
		health.SiteID, health.Status, health.ConsecutiveFailures, health.AvgLatencyMS,
		log.Status == contracts.ExecOK, log.Timestamp,
	)
	if err != nil {
		return contracts.SiteHealth{}, wrap("record_execution", err)
	}

	if log.Status == contracts.ExecOK {
		health.LastSuccessAt = &log.Timestamp
	}

	if err := tx.Commit(ctx); err != nil {
		return contracts.SiteHealth{}, wrap("record_execution", err)
	}

	return health, nil
}

// CountRecentFailures returns the failure count for a site over the
// last n executions. Used by operational queries, not the hot path.
func (s *Store) CountRecentFailures(ctx context.Context, siteID, n int) (int, error) {
	query := `
		SELECT COUNT(*) FILTER (WHERE status = 'fail')
		FROM (
			SELECT status FROM data.execution_logs
			WHERE site_id = $1
			ORDER BY ts DESC
			LIMIT $2
		) t
	`

	var count int
	err := s.db.QueryRow(ctx, query, siteID, n).Scan(&count)
	if err != nil {
		return 0, wrap("count_recent_failures", err)
	}

	return count, nil
}

func nullIfEmpty(v string) any {
	if v == "" {
		return nil
	}
	return v
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveRecommendation inserts one call, returning its id. Re-running a
// batch is idempotent: the conflict path refreshes the scores instead
// of duplicating the row.
func (s *Store) SaveRecommendation(ctx context.Context, r contracts.Recommendation) (int64, error) {
	scores, err := json.Marshal(r.Scores)
	if err != nil {
		return 0, &Error{Kind: KindIntegrity, Op: "save_recommendation", Err: err}
	}

	query := `
		INSERT INTO data.recommendations (
			batch_id, ticker_code, rec_date, rec_price, grade, confidence,
			decision, rationale, scores, final_score, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, NOW())
		ON CONFLICT (ticker_code, rec_date, batch_id) DO UPDATE SET
			rec_price = EXCLUDED.rec_price,
			grade = EXCLUDED.grade,
			confidence = EXCLUDED.confidence,
			decision = EXCLUDED.decision,
			rationale = EXCLUDED.rationale,
			scores = EXCLUDED.scores,
			final_score = EXCLUDED.final_score
		RETURNING id
	`

	var id int64
	err = s.db.QueryRow(ctx, query,
		r.BatchID, r.TickerCode, r.RecDate, r.RecPrice, r.Grade, r.Confidence,
		r.Decision, r.Rationale, scores, r.FinalScore,
	).Scan(&id)
	if err != nil {
		return 0, wrap("save_recommendation", err)
	}

	return id, nil
}

// ListRecommendations returns calls for one date (or the latest batch
// when date is zero), best grade first.
func (s *Store) ListRecommendations(ctx context.Context, date time.Time, limit int) ([]contracts.Recommendation, error) {
	query := `
		SELECT id, batch_id, ticker_code, rec_date, rec_price, grade, confidence,
		       decision, rationale, scores, final_score, created_at
		FROM data.recommendations
		WHERE ($1::date IS NULL AND rec_date = (SELECT MAX(rec_date) FROM data.recommendations))
		   OR rec_date = $1
		ORDER BY final_score DESC
		LIMIT $2
	`

	var dateArg any
	if !date.IsZero() {
		dateArg = date
	}

	rows, err := s.db.Query(ctx, query, dateArg, limit)
	if err != nil {
		return nil, wrap("list_recommendations", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

// ListDueForTracking returns calls whose rec_date is exactly `days`
// calendar days before today and that have no performance row for
// that horizon yet.
func (s *Store) ListDueForTracking(ctx context.Context, today time.Time, days int) ([]contracts.Recommendation, error) {
	query := `
		SELECT r.id, r.batch_id, r.ticker_code, r.rec_date, r.rec_price, r.grade,
		       r.confidence, r.decision, r.rationale, r.scores, r.final_score, r.created_at
		FROM data.recommendations r
		WHERE r.rec_date = $1::date - $2
		  AND NOT EXISTS (
			SELECT 1 FROM data.rec_performance p
			WHERE p.rec_id = r.id AND p.days_held = $2
		  )
		ORDER BY r.id
	`

	rows, err := s.db.Query(ctx, query, today, days)
	if err != nil {
		return nil, wrap("list_due_for_tracking", err)
	}
	defer rows.Close()

	return scanRecommendations(rows)
}

type recRows interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

func scanRecommendations(rows recRows) ([]contracts.Recommendation, error) {
	var recs []contracts.Recommendation
	for rows.Next() {
		var r contracts.Recommendation
		var scores []byte
		if err := rows.Scan(&r.ID, &r.BatchID, &r.TickerCode, &r.RecDate, &r.RecPrice, &r.Grade,
			&r.Confidence, &r.Decision, &r.Rationale, &scores, &r.FinalScore, &r.CreatedAt); err != nil {
			return nil, wrap("scan_recommendation", err)
		}
		if len(scores) > 0 {
			if err := json.Unmarshal(scores, &r.Scores); err != nil {
				return nil, &Error{Kind: KindIntegrity, Op: "scan_recommendation", Err: err}
			}
		}
		recs = append(recs, r)
	}
	return recs, wrap("scan_recommendation", rows.Err())
}

// SavePerformance upserts one tracked horizon result.
// Unique by (rec_id, days_held).
func (s *Store) SavePerformance(ctx context.Context, p contracts.Performance) error {
	query := `
		INSERT INTO data.rec_performance (
			rec_id, days_held, check_price, return_rate, max_drawdown, status, checked_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (rec_id, days_held) DO UPDATE SET
			check_price = EXCLUDED.check_price,
			return_rate = EXCLUDED.return_rate,
			max_drawdown = EXCLUDED.max_drawdown,
			status = EXCLUDED.status,
			checked_at = EXCLUDED.checked_at
	`

	_, err := s.db.Exec(ctx, query,
		p.RecID, p.DaysHeld, p.CheckPrice, p.ReturnRate, p.MaxDrawdown, p.Status, p.CheckedAt,
	)
	return wrap("save_performance", err)
}

// ListPerformance returns tracked results for recent recommendations,
// newest rec first then ascending horizon.
func (s *Store) ListPerformance(ctx context.Context, since time.Time) ([]contracts.Performance, error) {
	query := `
		SELECT p.rec_id, p.days_held, p.check_price, p.return_rate, p.max_drawdown, p.status, p.checked_at
		FROM data.rec_performance p
		JOIN data.recommendations r ON r.id = p.rec_id
		WHERE r.rec_date >= $1
		ORDER BY r.rec_date DESC, p.rec_id, p.days_held
	`

	rows, err := s.db.Query(ctx, query, since)
	if err != nil {
		return nil, wrap("list_performance", err)
	}
	defer rows.Close()

	var perfs []contracts.Performance
	for rows.Next() {
		var p contracts.Performance
		if err := rows.Scan(&p.RecID, &p.DaysHeld, &p.CheckPrice, &p.ReturnRate, &p.MaxDrawdown, &p.Status, &p.CheckedAt); err != nil {
			return nil, wrap("scan_performance", err)
		}
		perfs = append(perfs, p)
	}

	return perfs, wrap("list_performance", rows.Err())
}

// ListFailedWithoutRetro returns failed horizons that have no
// retrospective yet, oldest first, capped at limit per run.
func (s *Store) ListFailedWithoutRetro(ctx context.Context, limit int) ([]contracts.Performance, error) {
	query := `
		SELECT p.rec_id, p.days_held, p.check_price, p.return_rate, p.max_drawdown, p.status, p.checked_at
		FROM data.rec_performance p
		WHERE p.status = 'failed'
		  AND NOT EXISTS (
			SELECT 1 FROM data.retrospectives t
			WHERE t.rec_id = p.rec_id AND t.days_held = p.days_held
		  )
		ORDER BY p.checked_at
		LIMIT $1
	`

	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, wrap("list_failed_without_retro", err)
	}
	defer rows.Close()

	var perfs []contracts.Performance
	for rows.Next() {
		var p contracts.Performance
		if err := rows.Scan(&p.RecID, &p.DaysHeld, &p.CheckPrice, &p.ReturnRate, &p.MaxDrawdown, &p.Status, &p.CheckedAt); err != nil {
			return nil, wrap("scan_performance", err)
		}
		perfs = append(perfs, p)
	}

	return perfs, wrap("list_failed_without_retro", rows.Err())
}

// SaveRetrospective inserts one LLM post-mortem. A second insert for
// the same (rec_id, days_held) keeps the first and is not an error.
func (s *Store) SaveRetrospective(ctx context.Context, r contracts.Retrospective) error {
	missed, err := json.Marshal(r.MissedRisks)
	if err != nil {
		return &Error{Kind: KindIntegrity, Op: "save_retrospective", Err: err}
	}

	query := `
		INSERT INTO data.retrospectives (
			rec_id, days_held, missed_risks, actual_cause, lesson,
			improvement, confidence_adjustment, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (rec_id, days_held) DO NOTHING
	`

	_, err = s.db.Exec(ctx, query,
		r.RecID, r.DaysHeld, missed, r.ActualCause, r.Lesson,
		r.Improvement, r.ConfidenceAdjustment,
	)
	return wrap("save_retrospective", err)
}

// GetRecommendation returns one call by id, nil when absent
func (s *Store) GetRecommendation(ctx context.Context, id int64) (*contracts.Recommendation, error) {
	query := `
		SELECT id, batch_id, ticker_code, rec_date, rec_price, grade, confidence,
		       decision, rationale, scores, final_score, created_at
		FROM data.recommendations
		WHERE id = $1
	`

	var r contracts.Recommendation
	var scores []byte
	err := s.db.QueryRow(ctx, query, id).Scan(&r.ID, &r.BatchID, &r.TickerCode, &r.RecDate, &r.RecPrice,
		&r.Grade, &r.Confidence, &r.Decision, &r.Rationale, &scores, &r.FinalScore, &r.CreatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("get_recommendation", err)
	}

	if len(scores) > 0 {
		if err := json.Unmarshal(scores, &r.Scores); err != nil {
			return nil, &Error{Kind: KindIntegrity, Op: "get_recommendation", Err: err}
		}
	}

	return &r, nil
}

package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// SaveBlob upserts one collected payload by its natural key.
// Re-collection replaces content rather than duplicating rows.
func (s *Store) SaveBlob(ctx context.Context, b contracts.CollectedBlob) error {
	content, err := json.Marshal(b.Content)
	if err != nil {
		return &Error{Kind: KindIntegrity, Op: "save_blob", Err: err}
	}

	query := `
		INSERT INTO data.collected_blobs (
			ticker_code, site_id, domain_id, data_type, data_date,
			content, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		ON CONFLICT (ticker_code, site_id, domain_id, data_type, data_date) DO UPDATE SET
			content = EXCLUDED.content,
			updated_at = NOW()
	`

	_, err = s.db.Exec(ctx, query,
		b.TickerCode, b.SiteID, b.DomainID, b.DataType, b.DataDate, content,
	)
	return wrap("save_blob", err)
}

// GetLatestBlob returns the newest payload of one data type for a
// ticker, nil when nothing has been collected.
func (s *Store) GetLatestBlob(ctx context.Context, code, dataType string) (*contracts.CollectedBlob, error) {
	query := `
		SELECT ticker_code, site_id, domain_id, data_type, data_date, content, created_at, updated_at
		FROM data.collected_blobs
		WHERE ticker_code = $1 AND data_type = $2
		ORDER BY data_date DESC, updated_at DESC
		LIMIT 1
	`

	var b contracts.CollectedBlob
	var content []byte
	err := s.db.QueryRow(ctx, query, code, dataType).Scan(
		&b.TickerCode, &b.SiteID, &b.DomainID, &b.DataType, &b.DataDate,
		&content, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, wrap("get_latest_blob", err)
	}

	if err := json.Unmarshal(content, &b.Content); err != nil {
		return nil, &Error{Kind: KindIntegrity, Op: "get_latest_blob", Err: err}
	}

	return &b, nil
}

// GetBlobsSince returns payloads of one data type within a trailing
// window, newest first. Disclosure analysis reads 30 days this way.
func (s *Store) GetBlobsSince(ctx context.Context, code, dataType string, since time.Time) ([]contracts.CollectedBlob, error) {
	query := `
		SELECT ticker_code, site_id, domain_id, data_type, data_date, content, created_at, updated_at
		FROM data.collected_blobs
		WHERE ticker_code = $1 AND data_type = $2 AND data_date >= $3
		ORDER BY data_date DESC
	`

	rows, err := s.db.Query(ctx, query, code, dataType, since)
	if err != nil {
		return nil, wrap("get_blobs_since", err)
	}
	defer rows.Close()

	var blobs []contracts.CollectedBlob
	for rows.Next() {
		var b contracts.CollectedBlob
		var content []byte
		if err := rows.Scan(&b.TickerCode, &b.SiteID, &b.DomainID, &b.DataType, &b.DataDate, &content, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, wrap("scan_blob", err)
		}
		if err := json.Unmarshal(content, &b.Content); err != nil {
			s.logger.WithError(err).WithField("ticker", b.TickerCode).Warn("Skipping undecodable blob")
			continue
		}
		blobs = append(blobs, b)
	}

	return blobs, wrap("get_blobs_since", rows.Err())
}

// BlobFreshAt reports whether a payload of the given type exists for
// the ticker updated within maxAge of now. The lifecycle collector
// uses this to skip re-fetching fresh data.
func (s *Store) BlobFreshAt(ctx context.Context, code, dataType string, now time.Time, maxAge time.Duration) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM data.collected_blobs
			WHERE ticker_code = $1 AND data_type = $2 AND updated_at >= $3
		)
	`

	var fresh bool
	err := s.db.QueryRow(ctx, query, code, dataType, now.Add(-maxAge)).Scan(&fresh)
	if err != nil {
		return false, wrap("blob_fresh_at", err)
	}

	return fresh, nil
}

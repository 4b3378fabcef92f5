package store

import (
	"context"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// ListActiveSites loads the source registry, ordered by tier then id.
// Read once at orchestrator startup.
func (s *Store) ListActiveSites(ctx context.Context) ([]contracts.Site, error) {
	query := `
		SELECT id, tier, name, rate_limit_per_minute, is_active
		FROM data.sites
		WHERE is_active = true
		ORDER BY tier, id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrap("list_active_sites", err)
	}
	defer rows.Close()

	var sites []contracts.Site
	for rows.Next() {
		var site contracts.Site
		if err := rows.Scan(&site.ID, &site.Tier, &site.Name, &site.RateLimitPerMinute, &site.IsActive); err != nil {
			return nil, wrap("scan_site", err)
		}
		sites = append(sites, site)
	}

	return sites, wrap("list_active_sites", rows.Err())
}

// GetSiteHealth returns the health row for one site, a fresh active row
// when the site has never executed.
func (s *Store) GetSiteHealth(ctx context.Context, siteID int) (contracts.SiteHealth, error) {
	query := `
		SELECT site_id, status, consecutive_failures, avg_latency_ms, last_success_at
		FROM data.site_health
		WHERE site_id = $1
	`

	var h contracts.SiteHealth
	err := s.db.QueryRow(ctx, query, siteID).Scan(
		&h.SiteID, &h.Status, &h.ConsecutiveFailures, &h.AvgLatencyMS, &h.LastSuccessAt,
	)
	if err != nil {
		if isNoRows(err) {
			return contracts.SiteHealth{SiteID: siteID, Status: contracts.HealthActive}, nil
		}
		return contracts.SiteHealth{}, wrap("get_site_health", err)
	}

	return h, nil
}

// ListSiteHealth returns health rows for every registered site
func (s *Store) ListSiteHealth(ctx context.Context) ([]contracts.SiteHealth, error) {
	query := `
		SELECT site_id, status, consecutive_failures, avg_latency_ms, last_success_at
		FROM data.site_health
		ORDER BY site_id
	`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrap("list_site_health", err)
	}
	defer rows.Close()

	var out []contracts.SiteHealth
	for rows.Next() {
		var h contracts.SiteHealth
		if err := rows.Scan(&h.SiteID, &h.Status, &h.ConsecutiveFailures, &h.AvgLatencyMS, &h.LastSuccessAt); err != nil {
			return nil, wrap("scan_site_health", err)
		}
		out = append(out, h)
	}

	return out, wrap("list_site_health", rows.Err())
}

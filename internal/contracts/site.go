package contracts

import "time"

// Tier is the reliability/cost class of a data source.
// 1=공식 라이브러리, 2=공식 API, 3=스크래핑, 4=헤드리스 브라우저
type Tier int

const (
	TierLibrary Tier = 1
	TierAPI     Tier = 2
	TierScrape  Tier = 3
	TierBrowser Tier = 4
)

// Site is one registered external data source. The registry is read
// once at orchestrator startup.
type Site struct {
	ID                 int    `json:"id"`
	Tier               Tier   `json:"tier"`
	Name               string `json:"name"`
	RateLimitPerMinute int    `json:"rate_limit_per_minute"` // 0 → default 60
	IsActive           bool   `json:"is_active"`
}

// CollectedBlob is one opaque collected payload. UPSERT by
// (ticker, site_id, domain_id, data_type, data_date); analysers read
// Content defensively and tolerate schema drift.
type CollectedBlob struct {
	TickerCode string         `json:"ticker_code"`
	SiteID     int            `json:"site_id"`
	DomainID   int            `json:"domain_id"`
	DataType   string         `json:"data_type"` // versioned, e.g. "news_v1"
	DataDate   time.Time      `json:"data_date"`
	Content    map[string]any `json:"content"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ExecStatus is the outcome of one fetch execution
type ExecStatus string

const (
	ExecOK   ExecStatus = "ok"
	ExecFail ExecStatus = "fail"
)

// ExecutionLog is one append-only fetch-execution record
type ExecutionLog struct {
	SiteID     int        `json:"site_id"`
	TickerCode string     `json:"ticker_code"`
	Status     ExecStatus `json:"status"`
	DurationMS int64      `json:"duration_ms"`
	ErrorKind  string     `json:"error_kind,omitempty"`
	Timestamp  time.Time  `json:"ts"`
}

// HealthStatus classifies a site by its recent failure streak
type HealthStatus string

const (
	HealthActive   HealthStatus = "active"
	HealthDegraded HealthStatus = "degraded" // >= 3 consecutive failures
	HealthDown     HealthStatus = "down"     // >= 10 consecutive failures
)

// Failure streak thresholds for health transitions
const (
	DegradedThreshold = 3
	DownThreshold     = 10
)

// SiteHealth is the mutable health row per site, updated by the
// execution wrapper after every fetch.
type SiteHealth struct {
	SiteID              int          `json:"site_id"`
	Status              HealthStatus `json:"status"`
	ConsecutiveFailures int          `json:"consecutive_failures"`
	AvgLatencyMS        float64      `json:"avg_latency_ms"`
	LastSuccessAt       *time.Time   `json:"last_success_ts,omitempty"`
}

// StatusForFailures maps a failure streak onto a health status
func StatusForFailures(n int) HealthStatus {
	switch {
	case n >= DownThreshold:
		return HealthDown
	case n >= DegradedThreshold:
		return HealthDegraded
	default:
		return HealthActive
	}
}

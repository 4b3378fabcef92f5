package contracts

import "time"

// RecGrade ranks a recommendation by conviction
type RecGrade string

const (
	RecGradeS RecGrade = "S"
	RecGradeA RecGrade = "A"
	RecGradeB RecGrade = "B"
	RecGradeC RecGrade = "C"
	RecGradeD RecGrade = "D"
)

// RecGradeForScore maps the fused [-1,+1] score onto a grade
func RecGradeForScore(score float64) RecGrade {
	switch {
	case score >= 0.66:
		return RecGradeS
	case score >= 0.44:
		return RecGradeA
	case score >= 0.22:
		return RecGradeB
	case score >= 0.0:
		return RecGradeC
	default:
		return RecGradeD
	}
}

// Recommendation is one persisted buy/sell call.
// Unique by (ticker, rec_date, batch_id).
type Recommendation struct {
	ID         int64              `json:"id"`
	BatchID    string             `json:"batch_id"`
	TickerCode string             `json:"ticker_code"`
	RecDate    time.Time          `json:"rec_date"`
	RecPrice   int64              `json:"rec_price"`
	Grade      RecGrade           `json:"grade"`
	Confidence float64            `json:"confidence"` // 0.0 ~ 1.0
	Decision   Decision           `json:"decision"`
	Rationale  string             `json:"rationale"`
	Scores     map[string]float64 `json:"scores"` // analyser breakdown
	FinalScore float64            `json:"final_score"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Tracking horizons in days. The 1-day check is informational only and
// produces no Performance row.
var TrackingHorizons = []int{7, 14, 30}

// PerfStatus classifies a tracked horizon outcome
type PerfStatus string

const (
	PerfSuccess PerfStatus = "success"
	PerfActive  PerfStatus = "active"
	PerfWarning PerfStatus = "warning"
	PerfFailed  PerfStatus = "failed"
)

// ClassifyPerformance maps a horizon return onto a status.
// 성공 +5% 초과, 실패 -10% 이하, 경고 -5% 이하. 정확히 +5%는 아직 active.
func ClassifyPerformance(returnRate float64) PerfStatus {
	switch {
	case returnRate > 0.05:
		return PerfSuccess
	case returnRate <= -0.10:
		return PerfFailed
	case returnRate <= -0.05:
		return PerfWarning
	default:
		return PerfActive
	}
}

// Performance is one tracked horizon for a recommendation.
// Unique by (rec_id, days_held).
type Performance struct {
	RecID       int64      `json:"rec_id"`
	DaysHeld    int        `json:"days_held"` // 7, 14, 30
	CheckPrice  int64      `json:"check_price"`
	ReturnRate  float64    `json:"return_rate"`
	MaxDrawdown float64    `json:"max_drawdown"`
	Status      PerfStatus `json:"status"`
	CheckedAt   time.Time  `json:"checked_at"`
}

// Retrospective is the LLM post-mortem for a failed horizon.
// At most one per (rec_id, days_held).
type Retrospective struct {
	RecID                int64     `json:"rec_id"`
	DaysHeld             int       `json:"days_held"`
	MissedRisks          []string  `json:"missed_risks"`
	ActualCause          string    `json:"actual_cause"`
	Lesson               string    `json:"lesson"`
	Improvement          string    `json:"improvement"`
	ConfidenceAdjustment float64   `json:"confidence_adjustment"` // -10 ~ +10
	CreatedAt            time.Time `json:"created_at"`
}

// ValidAdjustment reports whether the LLM adjustment is in range
func (r Retrospective) ValidAdjustment() bool {
	return r.ConfidenceAdjustment >= -10 && r.ConfidenceAdjustment <= 10
}

package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// TrackerStore is the persistence surface outcome tracking needs
type TrackerStore interface {
	ListDueForTracking(ctx context.Context, today time.Time, days int) ([]contracts.Recommendation, error)
	GetClosePrice(ctx context.Context, code string, date time.Time) (int64, time.Time, error)
	GetLowestClose(ctx context.Context, code string, from, to time.Time) (int64, error)
	SavePerformance(ctx context.Context, p contracts.Performance) error
}

// TrackResult counts one tracking pass per status
type TrackResult struct {
	Checked  int
	Failed   int
	ByStatus map[contracts.PerfStatus]int
}

// Tracker measures each recommendation at its 7/14/30-day horizons:
// horizon return against the recommendation price plus the worst
// drawdown seen along the way.
// ⭐ SSOT: 추천 성과 판정은 여기서만
type Tracker struct {
	store  TrackerStore
	logger *logger.Logger
}

// NewTracker wires outcome tracking
func NewTracker(store TrackerStore, log *logger.Logger) *Tracker {
	return &Tracker{store: store, logger: log.WithComponent("tracker")}
}

// Run checks every horizon due today. Scheduled at 18:00 KST after
// the market close; already-checked horizons are excluded by the
// store query, so re-runs are idempotent.
func (t *Tracker) Run(ctx context.Context, today time.Time) (TrackResult, error) {
	result := TrackResult{ByStatus: make(map[contracts.PerfStatus]int)}

	for _, days := range contracts.TrackingHorizons {
		recs, err := t.store.ListDueForTracking(ctx, today, days)
		if err != nil {
			return result, fmt.Errorf("list due for %d-day tracking: %w", days, err)
		}

		for _, rec := range recs {
			if err := ctx.Err(); err != nil {
				return result, err
			}
			if err := t.trackOne(ctx, rec, days, today, &result); err != nil {
				result.Failed++
				t.logger.WithError(err).WithFields(map[string]interface{}{
					"rec_id": rec.ID,
					"days":   days,
				}).Warn("Tracking failed")
			}
		}
	}

	t.logger.WithFields(map[string]interface{}{
		"checked": result.Checked,
		"failed":  result.Failed,
	}).Info("Tracking pass complete")
	return result, nil
}

func (t *Tracker) trackOne(ctx context.Context, rec contracts.Recommendation, days int, today time.Time, result *TrackResult) error {
	if rec.RecPrice <= 0 {
		return fmt.Errorf("recommendation %d has no price", rec.ID)
	}

	checkPrice, checkedDate, err := t.store.GetClosePrice(ctx, rec.TickerCode, today)
	if err != nil {
		return fmt.Errorf("close price %s: %w", rec.TickerCode, err)
	}

	lowest, err := t.store.GetLowestClose(ctx, rec.TickerCode, rec.RecDate, today)
	if err != nil {
		return fmt.Errorf("lowest close %s: %w", rec.TickerCode, err)
	}

	returnRate := float64(checkPrice-rec.RecPrice) / float64(rec.RecPrice)
	var mdd float64
	if lowest > 0 && lowest < rec.RecPrice {
		mdd = float64(rec.RecPrice-lowest) / float64(rec.RecPrice)
	}
	status := contracts.ClassifyPerformance(returnRate)

	perf := contracts.Performance{
		RecID:       rec.ID,
		DaysHeld:    days,
		CheckPrice:  checkPrice,
		ReturnRate:  returnRate,
		MaxDrawdown: mdd,
		Status:      status,
		CheckedAt:   checkedDate,
	}
	if err := t.store.SavePerformance(ctx, perf); err != nil {
		return fmt.Errorf("save performance rec=%d days=%d: %w", rec.ID, days, err)
	}

	result.Checked++
	result.ByStatus[status]++
	return nil
}

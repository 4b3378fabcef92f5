package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/lifecycle"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// BatchNotifier pushes a batch summary after each run
type BatchNotifier interface {
	BatchSummary(ctx context.Context, r lifecycle.BatchResult) error
}

// TrackNotifier pushes a tracking summary after each pass
type TrackNotifier interface {
	TrackSummary(ctx context.Context, r lifecycle.TrackResult) error
}

// PipelineJob runs the daily recommendation batch every 20 minutes
// during KRX trading hours. Overlap protection lives inside the
// orchestrator, so a slow batch simply skips collection ticks.
type PipelineJob struct {
	batch    *lifecycle.Batch
	notifier BatchNotifier
	logger   *logger.Logger
}

// NewPipelineJob wires the scheduled pipeline
func NewPipelineJob(batch *lifecycle.Batch, notifier BatchNotifier, log *logger.Logger) *PipelineJob {
	return &PipelineJob{batch: batch, notifier: notifier, logger: log.WithComponent("job")}
}

func (j *PipelineJob) Name() string { return "pipeline" }

// 장중 09:00~15:30, 20분 간격, 평일만
func (j *PipelineJob) Schedule() string { return "0 0,20,40 9-15 * * 1-5" }

func (j *PipelineJob) Run(ctx context.Context) error {
	result, err := j.batch.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("pipeline batch: %w", err)
	}
	if j.notifier != nil {
		if err := j.notifier.BatchSummary(ctx, result); err != nil {
			j.logger.WithError(err).Warn("Batch notification failed")
		}
	}
	return nil
}

// TrackingJob checks recommendation horizons after the market close
type TrackingJob struct {
	tracker  *lifecycle.Tracker
	notifier TrackNotifier
	logger   *logger.Logger
}

// NewTrackingJob wires scheduled outcome tracking
func NewTrackingJob(tracker *lifecycle.Tracker, notifier TrackNotifier, log *logger.Logger) *TrackingJob {
	return &TrackingJob{tracker: tracker, notifier: notifier, logger: log.WithComponent("job")}
}

func (j *TrackingJob) Name() string { return "tracking" }

// 장 마감 후 18:00
func (j *TrackingJob) Schedule() string { return "0 0 18 * * *" }

func (j *TrackingJob) Run(ctx context.Context) error {
	result, err := j.tracker.Run(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("tracking pass: %w", err)
	}
	if j.notifier != nil {
		if err := j.notifier.TrackSummary(ctx, result); err != nil {
			j.logger.WithError(err).Warn("Tracking notification failed")
		}
	}
	return nil
}

// RetroJob generates LLM post-mortems after tracking has run
type RetroJob struct {
	retro *lifecycle.Retro
}

// NewRetroJob wires scheduled retrospective generation
func NewRetroJob(retro *lifecycle.Retro) *RetroJob {
	return &RetroJob{retro: retro}
}

func (j *RetroJob) Name() string { return "retrospective" }

// 성과 점검 30분 뒤
func (j *RetroJob) Schedule() string { return "0 30 18 * * *" }

func (j *RetroJob) Run(ctx context.Context) error {
	if _, err := j.retro.Run(ctx); err != nil {
		return fmt.Errorf("retrospective pass: %w", err)
	}
	return nil
}

// TickPruner deletes aged tick rows. *store.Store satisfies it.
type TickPruner interface {
	PruneTicks(ctx context.Context, now time.Time) (int64, error)
}

// PruneJob trims the append-only tick table nightly
type PruneJob struct {
	pruner TickPruner
	logger *logger.Logger
}

// NewPruneJob wires the nightly tick prune
func NewPruneJob(pruner TickPruner, log *logger.Logger) *PruneJob {
	return &PruneJob{pruner: pruner, logger: log.WithComponent("job")}
}

func (j *PruneJob) Name() string { return "tick-prune" }

// 새벽 03:00
func (j *PruneJob) Schedule() string { return "0 0 3 * * *" }

func (j *PruneJob) Run(ctx context.Context) error {
	deleted, err := j.pruner.PruneTicks(ctx, time.Now())
	if err != nil {
		return fmt.Errorf("prune ticks: %w", err)
	}
	j.logger.WithField("deleted", deleted).Info("Tick prune complete")
	return nil
}

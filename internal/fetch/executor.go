package fetch

import (
	"context"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/ratelimit"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// BlobSink persists collected payloads and execution outcomes
type BlobSink interface {
	SaveBlob(ctx context.Context, b contracts.CollectedBlob) error
	RecordExecution(ctx context.Context, log contracts.ExecutionLog) (contracts.SiteHealth, error)
}

// Executor wraps every fetch with the shared discipline: rate-limit
// token first, per-attempt timeout, transient-only retry, and an
// execution log plus health update regardless of outcome.
// ⭐ SSOT: 수집 실행 규율은 이 래퍼에서만
type Executor struct {
	sink    BlobSink
	limiter *ratelimit.Limiter
	logger  *logger.Logger
	timeout time.Duration
	clock   func() time.Time
}

// NewExecutor builds the execution wrapper
func NewExecutor(sink BlobSink, limiter *ratelimit.Limiter, log *logger.Logger, timeout time.Duration) *Executor {
	return &Executor{
		sink:    sink,
		limiter: limiter,
		logger:  log.WithComponent("fetch"),
		timeout: timeout,
		clock:   time.Now,
	}
}

// Execute runs one fetch for one ticker. Persistence of the execution
// log never depends on fetch success; blobs persist only on success.
func (e *Executor) Execute(ctx context.Context, f Fetcher, ticker contracts.Ticker) error {
	site := f.Site()

	if err := e.limiter.Acquire(ctx, site.ID); err != nil {
		return err
	}

	start := e.clock()
	payloads, fetchErr := e.fetchWithRetry(ctx, f, ticker)
	duration := e.clock().Sub(start)

	if fetchErr == nil {
		for _, p := range payloads {
			blob := contracts.CollectedBlob{
				TickerCode: ticker.Code,
				SiteID:     site.ID,
				DomainID:   f.DomainID(),
				DataType:   p.DataType,
				DataDate:   p.DataDate,
				Content:    p.Content,
			}
			if err := e.sink.SaveBlob(ctx, blob); err != nil {
				e.logger.WithError(err).WithField("site", site.Name).Error("Failed to persist blob")
				fetchErr = err
				break
			}
		}
	}

	log := contracts.ExecutionLog{
		SiteID:     site.ID,
		TickerCode: ticker.Code,
		Status:     contracts.ExecOK,
		DurationMS: duration.Milliseconds(),
		Timestamp:  e.clock(),
	}
	if fetchErr != nil {
		log.Status = contracts.ExecFail
		log.ErrorKind = string(KindOf(fetchErr))
	}

	health, err := e.sink.RecordExecution(ctx, log)
	if err != nil {
		e.logger.WithError(err).WithField("site", site.Name).Error("Failed to record execution")
	} else if health.Status != contracts.HealthActive {
		e.logger.WithFields(map[string]interface{}{
			"site":     site.Name,
			"status":   string(health.Status),
			"failures": health.ConsecutiveFailures,
		}).Warn("Site health degraded")
	}

	return fetchErr
}

// fetchWithRetry retries transient failures per the fetcher's policy.
// Non-transient kinds fail immediately; the backoff sleep honours ctx.
func (e *Executor) fetchWithRetry(ctx context.Context, f Fetcher, ticker contracts.Ticker) ([]Payload, error) {
	policy := f.Retry()
	if policy.MaxAttempts < 1 {
		policy = RetryStandard
	}

	delay := policy.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, e.timeout)
		payloads, err := f.Fetch(attemptCtx, ticker)
		cancel()

		if err == nil {
			return payloads, nil
		}
		lastErr = err

		if KindOf(err) != KindTransient || attempt == policy.MaxAttempts {
			break
		}

		e.logger.WithError(err).WithFields(map[string]interface{}{
			"site":    f.Site().Name,
			"ticker":  ticker.Code,
			"attempt": attempt,
		}).Warn("Transient fetch failure, retrying")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(float64(delay) * policy.Multiplier)
	}

	return nil, lastErr
}

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// Orchestrator drives collection across all registered sources in
// tier order. Within a tier, (site, ticker) tasks run on a bounded
// worker pool; the next tier starts only after the previous tier
// finishes so cheap official data always lands before scraped data.
// ⭐ SSOT: 수집 순서/동시성 제어는 여기서만
type Orchestrator struct {
	executor     *fetch.Executor
	fetchers     []fetch.Fetcher
	logger       *logger.Logger
	workers      int
	tier4Workers int

	mu      sync.Mutex
	running bool
}

// New builds the orchestrator. The browser tier gets its own, much
// smaller pool (default 1) because each task holds a Chrome tab.
func New(executor *fetch.Executor, fetchers []fetch.Fetcher, log *logger.Logger, workers, tier4Workers int) *Orchestrator {
	if workers < 1 {
		workers = 1
	}
	if tier4Workers < 1 {
		tier4Workers = 1
	}
	return &Orchestrator{
		executor:     executor,
		fetchers:     fetchers,
		logger:       log.WithComponent("orchestrator"),
		workers:      workers,
		tier4Workers: tier4Workers,
	}
}

// TierResult summarises one tier's pass
type TierResult struct {
	Tier     contracts.Tier
	OK       int
	Failed   int
	Duration time.Duration
}

// Summary is the outcome of one full collection run
type Summary struct {
	Tiers     []TierResult
	StartedAt time.Time
	Duration  time.Duration
	Skipped   bool
}

// Run collects every source for every ticker, tier by tier. A run
// already in progress makes this call a no-op (Skipped=true) so
// overlapping scheduler ticks never double-collect.
func (o *Orchestrator) Run(ctx context.Context, tickers []contracts.Ticker) (Summary, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		o.logger.Warn("Collection already running, skipping tick")
		return Summary{Skipped: true}, nil
	}
	o.running = true
	o.mu.Unlock()

	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	start := time.Now()
	summary := Summary{StartedAt: start}

	active := make([]contracts.Ticker, 0, len(tickers))
	for _, t := range tickers {
		if !t.IsDelisted {
			active = append(active, t)
		}
	}

	for _, tier := range o.tiers() {
		select {
		case <-ctx.Done():
			summary.Duration = time.Since(start)
			return summary, ctx.Err()
		default:
		}

		result := o.runTier(ctx, tier, active)
		summary.Tiers = append(summary.Tiers, result)

		o.logger.WithFields(map[string]interface{}{
			"tier":     int(tier),
			"ok":       result.OK,
			"failed":   result.Failed,
			"duration": result.Duration.String(),
		}).Info("Tier collection complete")
	}

	summary.Duration = time.Since(start)
	return summary, nil
}

// RunSingle collects every source for one ticker, still tier-ordered
func (o *Orchestrator) RunSingle(ctx context.Context, ticker contracts.Ticker) (Summary, error) {
	return o.Run(ctx, []contracts.Ticker{ticker})
}

// RunSite collects one site for one ticker, bypassing the tier walk.
// 사이트 단건 재수집용 (수동 복구, 디버깅).
func (o *Orchestrator) RunSite(ctx context.Context, siteID int, ticker contracts.Ticker) error {
	for _, f := range o.fetchers {
		if f.Site().ID == siteID {
			return o.executor.Execute(ctx, f, ticker)
		}
	}
	return fmt.Errorf("no fetcher registered for site %d", siteID)
}

// Schedule re-invokes Run every interval until the context ends.
// Missed ticks are skipped, not queued: Run's overlap guard turns a
// tick that lands mid-collection into a no-op. runOnce fires an
// immediate run before the first tick.
func (o *Orchestrator) Schedule(ctx context.Context, interval time.Duration, tickers []contracts.Ticker, runOnce bool) error {
	if interval <= 0 {
		return fmt.Errorf("invalid schedule interval %v", interval)
	}

	if runOnce {
		if _, err := o.Run(ctx, tickers); err != nil {
			o.logger.WithError(err).Error("Initial scheduled collection failed")
		}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := o.Run(ctx, tickers); err != nil {
				o.logger.WithError(err).Error("Scheduled collection failed")
			}
		}
	}
}

// tiers returns the distinct fetcher tiers in ascending order
func (o *Orchestrator) tiers() []contracts.Tier {
	seen := map[contracts.Tier]bool{}
	var tiers []contracts.Tier
	for _, f := range o.fetchers {
		t := f.Site().Tier
		if !seen[t] {
			seen[t] = true
			tiers = append(tiers, t)
		}
	}
	sort.Slice(tiers, func(i, j int) bool { return tiers[i] < tiers[j] })
	return tiers
}

type task struct {
	fetcher fetch.Fetcher
	ticker  contracts.Ticker
}

// runTier executes all (site, ticker) tasks of one tier on the pool.
// Failures count but never abort the tier.
func (o *Orchestrator) runTier(ctx context.Context, tier contracts.Tier, tickers []contracts.Ticker) TierResult {
	start := time.Now()
	result := TierResult{Tier: tier}

	var tasks []task
	for _, f := range o.fetchers {
		if f.Site().Tier != tier {
			continue
		}
		for _, t := range tickers {
			tasks = append(tasks, task{fetcher: f, ticker: t})
		}
	}
	if len(tasks) == 0 {
		return result
	}

	workers := o.workers
	if tier == contracts.TierBrowser {
		workers = o.tier4Workers
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	taskCh := make(chan task)
	var wg sync.WaitGroup
	var mu sync.Mutex

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range taskCh {
				err := o.executor.Execute(ctx, tk.fetcher, tk.ticker)
				mu.Lock()
				if err != nil {
					result.Failed++
				} else {
					result.OK++
				}
				mu.Unlock()
			}
		}()
	}

	for _, tk := range tasks {
		select {
		case <-ctx.Done():
			close(taskCh)
			wg.Wait()
			result.Duration = time.Since(start)
			return result
		case taskCh <- tk:
		}
	}
	close(taskCh)
	wg.Wait()

	result.Duration = time.Since(start)
	return result
}

package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fetch"
	"github.com/wonny/aegis/v14/internal/ratelimit"
	"github.com/wonny/aegis/v14/pkg/logger"
)

type nopSink struct{}

func (nopSink) SaveBlob(context.Context, contracts.CollectedBlob) error { return nil }
func (nopSink) RecordExecution(_ context.Context, log contracts.ExecutionLog) (contracts.SiteHealth, error) {
	return contracts.SiteHealth{SiteID: log.SiteID, Status: contracts.HealthActive}, nil
}

type recordingFetcher struct {
	site contracts.Site

	mu        sync.Mutex
	starts    []time.Time
	inFlight  int32
	maxActive int32
	delay     time.Duration
}

func (f *recordingFetcher) Site() contracts.Site     { return f.site }
func (f *recordingFetcher) DomainID() int            { return 1 }
func (f *recordingFetcher) Retry() fetch.RetryPolicy { return fetch.RetryPolicy{MaxAttempts: 1} }

func (f *recordingFetcher) Fetch(ctx context.Context, _ contracts.Ticker) ([]fetch.Payload, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		old := atomic.LoadInt32(&f.maxActive)
		if n <= old || atomic.CompareAndSwapInt32(&f.maxActive, old, n) {
			break
		}
	}

	f.mu.Lock()
	f.starts = append(f.starts, time.Now())
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	return []fetch.Payload{{DataType: "test_v1", DataDate: time.Now()}}, nil
}

func (f *recordingFetcher) window() (time.Time, time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	first, last := f.starts[0], f.starts[0]
	for _, s := range f.starts {
		if s.Before(first) {
			first = s
		}
		if s.After(last) {
			last = s
		}
	}
	return first, last
}

func newTestOrchestrator(fetchers []fetch.Fetcher, workers, tier4 int) *Orchestrator {
	limiter := ratelimit.New(nil)
	exec := fetch.NewExecutor(nopSink{}, limiter, logger.NewNop(), time.Second)
	return New(exec, fetchers, logger.NewNop(), workers, tier4)
}

func someTickers(n int) []contracts.Ticker {
	out := make([]contracts.Ticker, n)
	for i := range out {
		out[i] = contracts.Ticker{Code: "00000" + string(rune('0'+i%10))}
	}
	return out
}

func TestRunTierOrdering(t *testing.T) {
	tier1 := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}, delay: 5 * time.Millisecond}
	tier3 := &recordingFetcher{site: contracts.Site{ID: 2, Tier: contracts.TierScrape, Name: "naver_price"}, delay: 5 * time.Millisecond}

	o := newTestOrchestrator([]fetch.Fetcher{tier3, tier1}, 4, 1)
	summary, err := o.Run(context.Background(), someTickers(6))
	require.NoError(t, err)

	// tier 1이 전부 끝난 뒤 tier 3 시작
	_, tier1Last := tier1.window()
	tier3First, _ := tier3.window()
	assert.False(t, tier3First.Before(tier1Last), "tier 3 started before tier 1 finished")

	require.Len(t, summary.Tiers, 2)
	assert.Equal(t, contracts.TierLibrary, summary.Tiers[0].Tier)
	assert.Equal(t, contracts.TierScrape, summary.Tiers[1].Tier)
	assert.Equal(t, 6, summary.Tiers[0].OK)
}

func TestBrowserTierSerialised(t *testing.T) {
	tier4 := &recordingFetcher{site: contracts.Site{ID: 9, Tier: contracts.TierBrowser, Name: "naver_mobile"}, delay: 3 * time.Millisecond}

	o := newTestOrchestrator([]fetch.Fetcher{tier4}, 10, 1)
	_, err := o.Run(context.Background(), someTickers(5))
	require.NoError(t, err)

	assert.Equal(t, int32(1), tier4.maxActive, "browser tier must run one task at a time")
}

func TestRunSkipsDelisted(t *testing.T) {
	f := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}}

	o := newTestOrchestrator([]fetch.Fetcher{f}, 2, 1)
	tickers := []contracts.Ticker{
		{Code: "005930"},
		{Code: "000660", IsDelisted: true},
	}

	summary, err := o.Run(context.Background(), tickers)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Tiers[0].OK)
}

func TestOverlappingRunSkipped(t *testing.T) {
	f := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}, delay: 50 * time.Millisecond}
	o := newTestOrchestrator([]fetch.Fetcher{f}, 1, 1)

	done := make(chan Summary, 1)
	go func() {
		s, _ := o.Run(context.Background(), someTickers(2))
		done <- s
	}()

	time.Sleep(10 * time.Millisecond)
	second, err := o.Run(context.Background(), someTickers(2))
	require.NoError(t, err)
	assert.True(t, second.Skipped)

	first := <-done
	assert.False(t, first.Skipped)
}

func TestRunSiteTargetsOneFetcher(t *testing.T) {
	krx := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}}
	naver := &recordingFetcher{site: contracts.Site{ID: 2, Tier: contracts.TierScrape, Name: "naver_price"}}

	o := newTestOrchestrator([]fetch.Fetcher{krx, naver}, 2, 1)
	require.NoError(t, o.RunSite(context.Background(), 2, contracts.Ticker{Code: "005930"}))

	assert.Empty(t, krx.starts)
	require.Len(t, naver.starts, 1)

	assert.Error(t, o.RunSite(context.Background(), 99, contracts.Ticker{Code: "005930"}))
}

func TestScheduleRunsUntilCancelled(t *testing.T) {
	f := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}}
	o := newTestOrchestrator([]fetch.Fetcher{f}, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	err := o.Schedule(ctx, 10*time.Millisecond, someTickers(1), true)
	assert.ErrorIs(t, err, context.Canceled)

	f.mu.Lock()
	started := len(f.starts)
	f.mu.Unlock()
	// 즉시 1회 + 최소 1번의 주기 실행
	assert.GreaterOrEqual(t, started, 2)
}

func TestScheduleRejectsBadInterval(t *testing.T) {
	o := newTestOrchestrator(nil, 1, 1)
	assert.Error(t, o.Schedule(context.Background(), 0, nil, false))
}

func TestRunHonoursCancellation(t *testing.T) {
	f := &recordingFetcher{site: contracts.Site{ID: 1, Tier: contracts.TierLibrary, Name: "krx_chart"}, delay: 20 * time.Millisecond}
	o := newTestOrchestrator([]fetch.Fetcher{f}, 1, 1)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	_, _ = o.Run(ctx, someTickers(50))
	// 취소 후 남은 작업은 실행되지 않는다
	f.mu.Lock()
	started := len(f.starts)
	f.mu.Unlock()
	assert.Less(t, started, 50)
}

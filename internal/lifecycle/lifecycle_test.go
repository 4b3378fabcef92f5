package lifecycle

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/fusion"
	"github.com/wonny/aegis/v14/internal/orchestrator"
	"github.com/wonny/aegis/v14/internal/screener"
	"github.com/wonny/aegis/v14/internal/store"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

var testDate = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

// --- collector fakes ---

type fakeCollectorStore struct {
	fresh      bool
	priceBlob  *contracts.CollectedBlob
	flowBlob   *contracts.CollectedBlob
	savedBars  []contracts.OHLCV
	savedFlows []contracts.SupplyDemand
}

func (f *fakeCollectorStore) BlobFreshAt(ctx context.Context, code, dataType string, now time.Time, maxAge time.Duration) (bool, error) {
	return f.fresh, nil
}

func (f *fakeCollectorStore) GetLatestBlob(ctx context.Context, code, dataType string) (*contracts.CollectedBlob, error) {
	if dataType == "price_daily_v1" {
		return f.priceBlob, nil
	}
	return f.flowBlob, nil
}

func (f *fakeCollectorStore) SavePrices(ctx context.Context, bars []contracts.OHLCV) (int, error) {
	f.savedBars = append(f.savedBars, bars...)
	return len(bars), nil
}

func (f *fakeCollectorStore) SaveFlows(ctx context.Context, flows []contracts.SupplyDemand) (int, error) {
	f.savedFlows = append(f.savedFlows, flows...)
	return len(flows), nil
}

type fakeRunner struct{ runs int }

func (f *fakeRunner) RunSingle(ctx context.Context, t contracts.Ticker) (orchestrator.Summary, error) {
	f.runs++
	return orchestrator.Summary{}, nil
}

func TestCollectorSkipsFreshData(t *testing.T) {
	st := &fakeCollectorStore{fresh: true}
	runner := &fakeRunner{}
	c := NewCollector(st, runner, nil, logger.NewNop())

	err := c.Ensure(context.Background(), contracts.Ticker{Code: "005930"}, testDate)
	require.NoError(t, err)
	assert.Zero(t, runner.runs)
}

func TestCollectorRefreshesStaleData(t *testing.T) {
	st := &fakeCollectorStore{fresh: false}
	runner := &fakeRunner{}
	c := NewCollector(st, runner, nil, logger.NewNop())

	err := c.Ensure(context.Background(), contracts.Ticker{Code: "005930"}, testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.runs)
}

func TestCollectorMaterialisesBlobs(t *testing.T) {
	st := &fakeCollectorStore{
		fresh: true,
		priceBlob: &contracts.CollectedBlob{Content: map[string]any{
			"bars": []any{
				map[string]any{"date": "2025-05-30", "open": 1000.0, "high": 1010.0, "low": 990.0, "close": 1005.0, "volume": 50000.0},
				map[string]any{"open": 1.0}, // 날짜 없는 행은 버린다
			},
		}},
		flowBlob: &contracts.CollectedBlob{Content: map[string]any{
			"flows": []any{
				map[string]any{"date": "2025-05-30", "foreign_net": 1200.0, "institution_net": -300.0, "individual_net": -900.0},
			},
		}},
	}
	c := NewCollector(st, &fakeRunner{}, nil, logger.NewNop())

	require.NoError(t, c.Ensure(context.Background(), contracts.Ticker{Code: "005930"}, testDate))

	require.Len(t, st.savedBars, 1)
	assert.Equal(t, int64(1005), st.savedBars[0].Close)
	assert.Equal(t, "005930", st.savedBars[0].TickerCode)

	require.Len(t, st.savedFlows, 1)
	assert.Equal(t, int64(1200), st.savedFlows[0].ForeignNet)
	assert.Equal(t, int64(-900), st.savedFlows[0].IndividualNet)
}

// --- batch fakes ---

type fakeUniverse struct{ scored []screener.Scored }

func (f *fakeUniverse) Screen(ctx context.Context, asOf time.Time) ([]screener.Scored, error) {
	return f.scored, nil
}

type fakeEnsurer struct{}

func (fakeEnsurer) Ensure(ctx context.Context, t contracts.Ticker, now time.Time) error { return nil }

type fakeAnalyserEngine struct {
	results map[string]map[string]contracts.AnalyserResult
}

func (f *fakeAnalyserEngine) Run(ctx context.Context, code string, asOf time.Time) map[string]contracts.AnalyserResult {
	return f.results[code]
}

type fakeMarket struct{ mood contracts.MarketMood }

func (f *fakeMarket) Context(ctx context.Context, asOf time.Time) (contracts.MarketContext, error) {
	return contracts.MarketContext{Mood: f.mood, AsOf: asOf}, nil
}

type fakeBatchStore struct {
	indexBars []contracts.OHLCV
	saved     []contracts.Recommendation
}

func (f *fakeBatchStore) GetPrices(ctx context.Context, code string, asOf time.Time, limit int) ([]contracts.OHLCV, error) {
	return f.indexBars, nil
}

func (f *fakeBatchStore) GetClosePrice(ctx context.Context, code string, date time.Time) (int64, time.Time, error) {
	return 70_000, date, nil
}

func (f *fakeBatchStore) SaveRecommendation(ctx context.Context, r contracts.Recommendation) (int64, error) {
	f.saved = append(f.saved, r)
	return int64(len(f.saved)), nil
}

func analyserResults(score float64) map[string]contracts.AnalyserResult {
	out := make(map[string]contracts.AnalyserResult)
	for _, name := range []string{"technical", "disclosure", "supply", "fundamental", "news", "consensus", "market"} {
		r := contracts.AnalyserResult{Analyser: name, Score: score, PassFilter: true}
		r.Clamp()
		out[name] = r
	}
	return out
}

func testFusion() *fusion.Engine {
	return fusion.New(logger.NewNop(), config.Settings{
		StrongBuyThreshold: 0.66,
		BuyThreshold:       0.22,
		SellThreshold:      -0.66,
		MinTradedValue5D:   1_000_000_000,
	})
}

func TestBatchRunPersistsRecommendations(t *testing.T) {
	scored := []screener.Scored{
		{Candidate: store.Candidate{Ticker: contracts.Ticker{Code: "005930"}, TradedValue5D: 5e9}},
		{Candidate: store.Candidate{Ticker: contracts.Ticker{Code: "000660"}, TradedValue5D: 5e9}},
	}
	engine := &fakeAnalyserEngine{results: map[string]map[string]contracts.AnalyserResult{
		"005930": analyserResults(2),  // 만장일치 강매수
		"000660": analyserResults(-2), // 만장일치 강매도
	}}
	st := &fakeBatchStore{}

	b := NewBatch(&fakeUniverse{scored: scored}, fakeEnsurer{}, engine, &fakeMarket{mood: contracts.MoodNeutral}, testFusion(), st, logger.NewNop())
	result, err := b.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, NewBatchID(testDate), result.BatchID)
	assert.Equal(t, 2, result.Candidates)
	assert.Equal(t, 2, result.Saved)
	assert.Zero(t, result.Failed)
	assert.Equal(t, 1, result.Decisions[contracts.DecisionStrongBuy])
	assert.Equal(t, 1, result.Decisions[contracts.DecisionStrongSell])

	require.Len(t, st.saved, 2)
	assert.Equal(t, result.BatchID, st.saved[0].BatchID)
	assert.Equal(t, int64(70_000), st.saved[0].RecPrice)
	assert.Equal(t, contracts.RecGradeS, st.saved[0].Grade)
}

func TestBatchRegimeFromIndexBars(t *testing.T) {
	// 최신순 지수 봉: 최근 20일 1050, 그 이전 40일 975 → BULL
	bars := make([]contracts.OHLCV, 60)
	for i := range bars {
		c := int64(975)
		if i < 20 {
			c = 1050
		}
		bars[i] = contracts.OHLCV{Close: c, Open: c, High: c, Low: c, Volume: 1}
	}
	st := &fakeBatchStore{indexBars: bars}

	b := NewBatch(&fakeUniverse{}, fakeEnsurer{}, &fakeAnalyserEngine{}, &fakeMarket{mood: contracts.MoodNeutral}, testFusion(), st, logger.NewNop())
	result, err := b.Run(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeBull, result.Regime)
}

func TestBatchCandidateFailureNotFatal(t *testing.T) {
	scored := []screener.Scored{
		{Candidate: store.Candidate{Ticker: contracts.Ticker{Code: "005930"}, TradedValue5D: 5e9}},
	}
	// 분석 결과 없음 → 해당 종목만 실패 처리
	b := NewBatch(&fakeUniverse{scored: scored}, fakeEnsurer{}, &fakeAnalyserEngine{}, &fakeMarket{mood: contracts.MoodNeutral}, testFusion(), &fakeBatchStore{}, logger.NewNop())
	result, err := b.Run(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Failed)
	assert.Zero(t, result.Saved)
}

// --- tracker fakes ---

type fakeTrackerStore struct {
	due     map[int][]contracts.Recommendation
	close   int64
	closeBy map[string]int64
	lowest  int64
	saved   []contracts.Performance
}

func (f *fakeTrackerStore) ListDueForTracking(ctx context.Context, today time.Time, days int) ([]contracts.Recommendation, error) {
	return f.due[days], nil
}

func (f *fakeTrackerStore) GetClosePrice(ctx context.Context, code string, date time.Time) (int64, time.Time, error) {
	if v, ok := f.closeBy[code]; ok {
		return v, date, nil
	}
	return f.close, date, nil
}

func (f *fakeTrackerStore) GetLowestClose(ctx context.Context, code string, from, to time.Time) (int64, error) {
	return f.lowest, nil
}

func (f *fakeTrackerStore) SavePerformance(ctx context.Context, p contracts.Performance) error {
	f.saved = append(f.saved, p)
	return nil
}

func TestTrackerClassifiesHorizon(t *testing.T) {
	rec := contracts.Recommendation{ID: 1, TickerCode: "005930", RecDate: testDate.AddDate(0, 0, -7), RecPrice: 10_000}
	st := &fakeTrackerStore{
		due:    map[int][]contracts.Recommendation{7: {rec}},
		close:  10_800, // +8% → success
		lowest: 9_600,  // 최대 낙폭 4%
	}

	tr := NewTracker(st, logger.NewNop())
	result, err := tr.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Checked)
	assert.Equal(t, 1, result.ByStatus[contracts.PerfSuccess])

	require.Len(t, st.saved, 1)
	perf := st.saved[0]
	assert.Equal(t, 7, perf.DaysHeld)
	assert.InDelta(t, 0.08, perf.ReturnRate, 0.001)
	assert.InDelta(t, 0.04, perf.MaxDrawdown, 0.001)
	assert.Equal(t, contracts.PerfSuccess, perf.Status)
}

func TestTrackerHorizonOutcomes(t *testing.T) {
	// 추천가 10_000, 7/14/30일 종가 10_500/10_200/8_900
	mk := func(id int64, code string, daysAgo int) contracts.Recommendation {
		return contracts.Recommendation{ID: id, TickerCode: code, RecDate: testDate.AddDate(0, 0, -daysAgo), RecPrice: 10_000}
	}
	st := &fakeTrackerStore{
		due: map[int][]contracts.Recommendation{
			7:  {mk(1, "005930", 7)},
			14: {mk(2, "000660", 14)},
			30: {mk(3, "035420", 30)},
		},
		closeBy: map[string]int64{"005930": 10_500, "000660": 10_200, "035420": 8_900},
		lowest:  9_900,
	}

	tr := NewTracker(st, logger.NewNop())
	result, err := tr.Run(context.Background(), testDate)
	require.NoError(t, err)

	assert.Equal(t, 3, result.Checked)
	assert.Equal(t, 2, result.ByStatus[contracts.PerfActive])
	assert.Equal(t, 1, result.ByStatus[contracts.PerfFailed])

	require.Len(t, st.saved, 3)
	// 정확히 +5%는 success가 아니라 active
	assert.InDelta(t, 0.05, st.saved[0].ReturnRate, 1e-9)
	assert.Equal(t, contracts.PerfActive, st.saved[0].Status)
	assert.Equal(t, contracts.PerfActive, st.saved[1].Status)
	assert.InDelta(t, -0.11, st.saved[2].ReturnRate, 1e-9)
	assert.Equal(t, contracts.PerfFailed, st.saved[2].Status)
}

func TestTrackerFailedStatus(t *testing.T) {
	rec := contracts.Recommendation{ID: 2, TickerCode: "000660", RecDate: testDate.AddDate(0, 0, -30), RecPrice: 10_000}
	st := &fakeTrackerStore{
		due:    map[int][]contracts.Recommendation{30: {rec}},
		close:  8_800, // -12% → failed
		lowest: 8_500,
	}

	tr := NewTracker(st, logger.NewNop())
	result, err := tr.Run(context.Background(), testDate)
	require.NoError(t, err)
	assert.Equal(t, 1, result.ByStatus[contracts.PerfFailed])
}

// --- retrospective fakes ---

type fakeRetroStore struct {
	failed []contracts.Performance
	recs   map[int64]*contracts.Recommendation
	saved  []contracts.Retrospective
}

func (f *fakeRetroStore) ListFailedWithoutRetro(ctx context.Context, limit int) ([]contracts.Performance, error) {
	if len(f.failed) > limit {
		return f.failed[:limit], nil
	}
	return f.failed, nil
}

func (f *fakeRetroStore) GetRecommendation(ctx context.Context, id int64) (*contracts.Recommendation, error) {
	return f.recs[id], nil
}

func (f *fakeRetroStore) SaveRetrospective(ctx context.Context, r contracts.Retrospective) error {
	f.saved = append(f.saved, r)
	return nil
}

type fakeGenerator struct {
	response string
	err      error
	calls    int
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	f.calls++
	return f.response, f.err
}

const validRetroJSON = `{"missed_risks": ["반도체 업황 둔화"], "actual_cause": "실적 쇼크", "lesson": "컨센서스 하향 추세 확인", "improvement": "추정치 모멘텀 반영", "confidence_adjustment": -3}`

func TestRetroGeneratesAndSaves(t *testing.T) {
	st := &fakeRetroStore{
		failed: []contracts.Performance{{RecID: 1, DaysHeld: 14, Status: contracts.PerfFailed}},
		recs: map[int64]*contracts.Recommendation{
			1: {ID: 1, TickerCode: "005930", RecDate: testDate, RecPrice: 70_000, Decision: contracts.DecisionBuy},
		},
	}
	gen := &fakeGenerator{response: "```json\n" + validRetroJSON + "\n```"}

	r := NewRetro(st, gen, logger.NewNop())
	result, err := r.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, result.Generated)
	assert.Zero(t, result.Skipped)
	require.Len(t, st.saved, 1)
	assert.Equal(t, "실적 쇼크", st.saved[0].ActualCause)
	assert.InDelta(t, -3, st.saved[0].ConfidenceAdjustment, 0.001)
}

func TestRetroSkipsOnAIError(t *testing.T) {
	st := &fakeRetroStore{
		failed: []contracts.Performance{{RecID: 1, DaysHeld: 7}},
		recs:   map[int64]*contracts.Recommendation{1: {ID: 1}},
	}
	gen := &fakeGenerator{err: fmt.Errorf("quota exceeded")}

	r := NewRetro(st, gen, logger.NewNop())
	result, err := r.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Empty(t, st.saved)
}

func TestRetroRejectsMalformedPayload(t *testing.T) {
	cases := []string{
		`not json`,
		`{"actual_cause": ""}`,                                          // 필수 필드 누락
		`{"actual_cause": "x", "lesson": "y", "unknown_field": 1}`,      // 미지 필드
		`{"actual_cause": "x", "lesson": "y", "confidence_adjustment": 50}`, // 범위 초과는 저장 전 거부
	}
	for _, raw := range cases {
		st := &fakeRetroStore{
			failed: []contracts.Performance{{RecID: 1, DaysHeld: 7}},
			recs:   map[int64]*contracts.Recommendation{1: {ID: 1}},
		}
		r := NewRetro(st, &fakeGenerator{response: raw}, logger.NewNop())
		result, err := r.Run(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, result.Skipped, "payload: %s", raw)
		assert.Empty(t, st.saved)
	}
}

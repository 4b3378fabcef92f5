package screener

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/store"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

type fakeCandidateStore struct {
	candidates []store.Candidate
	history    map[string][]contracts.OHLCV
}

func (f *fakeCandidateStore) ScreenCandidates(_ context.Context, _ time.Time, filter store.ScreenFilter) ([]store.Candidate, error) {
	if filter.Limit > 0 && len(f.candidates) > filter.Limit {
		return f.candidates[:filter.Limit], nil
	}
	return f.candidates, nil
}

func (f *fakeCandidateStore) GetPricesBatch(_ context.Context, codes []string, _ time.Time, _ int) (map[string][]contracts.OHLCV, error) {
	out := map[string][]contracts.OHLCV{}
	for _, c := range codes {
		out[c] = append([]contracts.OHLCV(nil), f.history[c]...)
	}
	return out, nil
}

// trendingBars builds n days of steadily rising bars, newest first,
// matching the query ordering.
func trendingBars(code string, n int, base int64, dailyGain int64, volume int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, n)
	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	price := base + dailyGain*int64(n)
	for i := 0; i < n; i++ {
		c := price - dailyGain*int64(i)
		bars[i] = contracts.OHLCV{
			TickerCode: code,
			Date:       day.AddDate(0, 0, -i),
			Open:       c - 100,
			High:       c + 300,
			Low:        c - 400,
			Close:      c,
			Volume:     volume,
		}
	}
	return bars
}

// flatBars builds n days of motionless bars
func flatBars(code string, n int, price int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, n)
	day := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		bars[i] = contracts.OHLCV{
			TickerCode: code,
			Date:       day.AddDate(0, 0, -i),
			Open:       price, High: price, Low: price, Close: price,
			Volume: 100_000,
		}
	}
	return bars
}

func testSettings() config.Settings {
	return config.Settings{ScreenerStage1Limit: 300, ScreenerTopN: 100}
}

func TestScreenRanksTrendAboveFlat(t *testing.T) {
	st := &fakeCandidateStore{
		candidates: []store.Candidate{
			{Ticker: contracts.Ticker{Code: "005930"}, PBR: 1.1, PER: 12},
			{Ticker: contracts.Ticker{Code: "000660"}, PBR: 0.9, PER: 8},
		},
		history: map[string][]contracts.OHLCV{
			"005930": trendingBars("005930", 120, 60000, 150, 500_000),
			"000660": flatBars("000660", 120, 90000),
		},
	}

	s := New(st, logger.NewNop(), testSettings())
	scored, err := s.Screen(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, scored, 2)

	assert.Equal(t, "005930", scored[0].Ticker.Code)
	assert.Greater(t, scored[0].QuantScore, scored[1].QuantScore)
	assert.LessOrEqual(t, scored[0].QuantScore, 100.0)
}

func TestScreenSkipsShortHistory(t *testing.T) {
	st := &fakeCandidateStore{
		candidates: []store.Candidate{
			{Ticker: contracts.Ticker{Code: "005930"}, PBR: 1.1, PER: 12},
		},
		history: map[string][]contracts.OHLCV{
			"005930": trendingBars("005930", 20, 60000, 150, 500_000), // 상장 직후
		},
	}

	s := New(st, logger.NewNop(), testSettings())
	scored, err := s.Screen(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Empty(t, scored)
}

func TestScreenTieBreaksByValuation(t *testing.T) {
	// 동일 이력이면 동점: PBR 낮은 쪽이 먼저
	bars := trendingBars("X", 120, 60000, 150, 500_000)
	st := &fakeCandidateStore{
		candidates: []store.Candidate{
			{Ticker: contracts.Ticker{Code: "111111"}, PBR: 1.4, PER: 9},
			{Ticker: contracts.Ticker{Code: "222222"}, PBR: 0.7, PER: 15},
			{Ticker: contracts.Ticker{Code: "333333"}, PBR: 0.7, PER: 5},
		},
		history: map[string][]contracts.OHLCV{
			"111111": bars, "222222": bars, "333333": bars,
		},
	}

	s := New(st, logger.NewNop(), testSettings())
	scored, err := s.Screen(context.Background(), time.Now())
	require.NoError(t, err)
	require.Len(t, scored, 3)

	assert.Equal(t, "333333", scored[0].Ticker.Code) // PBR 0.7, PER 5
	assert.Equal(t, "222222", scored[1].Ticker.Code) // PBR 0.7, PER 15
	assert.Equal(t, "111111", scored[2].Ticker.Code)
}

func TestScreenCapsAtTopN(t *testing.T) {
	bars := trendingBars("X", 120, 60000, 150, 500_000)
	st := &fakeCandidateStore{history: map[string][]contracts.OHLCV{}}
	for i := 0; i < 150; i++ {
		code := testCode(i)
		st.candidates = append(st.candidates, store.Candidate{
			Ticker: contracts.Ticker{Code: code}, PBR: 1.0, PER: 10,
		})
		st.history[code] = bars
	}

	settings := testSettings()
	settings.ScreenerTopN = 100

	s := New(st, logger.NewNop(), settings)
	scored, err := s.Screen(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Len(t, scored, 100)
}

func testCode(i int) string {
	digits := "0123456789"
	code := make([]byte, 6)
	for p := 5; p >= 0; p-- {
		code[p] = digits[i%10]
		i /= 10
	}
	return string(code)
}

func TestQuantScoreComponents(t *testing.T) {
	total, vol, trend, vola := QuantScore(nil, config.DefaultQuantRamps())
	assert.Zero(t, total)
	assert.Zero(t, vol+trend+vola)

	bars := trendingBars("005930", 120, 60000, 150, 500_000)
	reverseInPlace(bars)
	total, vol, trend, vola = QuantScore(bars, config.DefaultQuantRamps())

	assert.InDelta(t, total, vol+trend+vola, 1e-9)
	assert.LessOrEqual(t, vol, 30.0)
	assert.LessOrEqual(t, trend, 40.0)
	assert.LessOrEqual(t, vola, 30.0)
	assert.Greater(t, trend, 20.0, "steady uptrend should score most trend points")
}

func TestQuantScoreBreakoutAndSurge(t *testing.T) {
	// 횡보하던 종목의 마지막 봉: 20일 고가 돌파 + 거래량 4배
	bars := flatBars("005930", 80, 10_000)
	reverseInPlace(bars)
	last := &bars[len(bars)-1]
	last.Close = 10_500
	last.High = 10_600
	last.Low = 10_300
	last.Volume = 400_000

	_, vol, trend, _ := QuantScore(bars, config.DefaultQuantRamps())

	// 급증 배율 = 400k / 5일 평균 160k = 2.5 → 20*0.75, 평균 상회 1일 → +2
	assert.InDelta(t, 17.0, vol, 1e-9)
	// 정배열 10 + 이격 ~9.7 + 돌파 10 + 3일 수익률 ~8.3
	assert.Greater(t, trend, 35.0)
}

func TestQuantScoreZeroRampsFallBack(t *testing.T) {
	bars := trendingBars("005930", 120, 60000, 150, 500_000)
	reverseInPlace(bars)

	total, _, _, _ := QuantScore(bars, config.QuantRamps{})
	withDefaults, _, _, _ := QuantScore(bars, config.DefaultQuantRamps())
	assert.InDelta(t, withDefaults, total, 1e-9)
}

package backtest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/strategy"
	"github.com/wonny/aegis/v14/pkg/logger"
)

func day(i int) time.Time {
	return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, i)
}

// risingBars climbs 10/day from base with a 15-point daily range
func risingBars(n int, base int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, n)
	for i := range bars {
		c := base + int64(i)*10
		bars[i] = contracts.OHLCV{
			TickerCode: "005930", Date: day(i),
			Open: c - 5, High: c + 5, Low: c - 10, Close: c, Volume: 100_000,
		}
	}
	return bars
}

func testEngine(cfg Config) *Engine {
	return New(
		strategy.NewEnsemble(logger.NewNop()),
		NewRiskManager(),
		NewCircuitBreaker(),
		logger.NewNop(),
		cfg,
	)
}

func TestRiskManagerPositionSize(t *testing.T) {
	r := NewRiskManager()

	// 리스크 예산 2%: (100M × 0.02) / 500 = 4000주 → 20% 상한 2000주
	assert.Equal(t, int64(2_000), r.PositionSize(100_000_000, 10_000, 9_500))

	// 타이트한 손절도 상한은 그대로
	assert.Equal(t, int64(2_000), r.PositionSize(100_000_000, 10_000, 9_900))

	// 손절가가 진입가 이상이면 0
	assert.Zero(t, r.PositionSize(100_000_000, 10_000, 10_000))
	assert.Zero(t, r.PositionSize(100_000_000, 0, 0))
}

func TestRiskManagerStopFallback(t *testing.T) {
	r := NewRiskManager()

	// 변동성 없는 봉은 ATR 0 → 고정 3% 손절
	flat := make([]contracts.OHLCV, 20)
	for i := range flat {
		flat[i] = contracts.OHLCV{Open: 10_000, High: 10_000, Low: 10_000, Close: 10_000, Volume: 1}
	}
	assert.InDelta(t, 9_700, r.StopFor(flat), 0.01)

	// 봉이 부족해도 fallback
	assert.InDelta(t, 9_700, r.StopFor(flat[:5]), 0.01)
}

func TestRiskManagerATRStop(t *testing.T) {
	r := NewRiskManager()
	bars := risingBars(30, 10_000)
	// TR이 일정(15)하므로 손절 = 종가 − 2×15
	lastClose := float64(bars[len(bars)-1].Close)
	assert.InDelta(t, lastClose-30, r.StopFor(bars), 0.5)
}

func TestCircuitBreakerDailyLoss(t *testing.T) {
	b := NewCircuitBreaker()
	b.NewDay(100_000_000)

	b.RecordTrade(-1_000_000) // -1%
	assert.True(t, b.AllowEntry())

	b.RecordTrade(-1_500_000) // 누적 -2.5%
	assert.False(t, b.AllowEntry())

	// 다음 날은 다시 허용
	b.NewDay(97_500_000)
	assert.True(t, b.AllowEntry())
}

func TestCircuitBreakerTradeCount(t *testing.T) {
	b := NewCircuitBreaker()
	b.NewDay(100_000_000)

	for i := 0; i < 9; i++ {
		b.RecordTrade(10_000)
	}
	assert.True(t, b.AllowEntry())

	b.RecordTrade(10_000) // 10번째
	assert.False(t, b.AllowEntry())
}

func TestEngineTrailingStopExit(t *testing.T) {
	bars := risingBars(72, 1_000)
	// 마지막 봉 급락: 저가가 트레일링 손절선 아래
	crash := bars[70].Close - 500
	bars[71] = contracts.OHLCV{
		TickerCode: "005930", Date: day(71),
		Open: bars[70].Close, High: bars[70].Close, Low: crash - 20, Close: crash, Volume: 100_000,
	}

	e := testEngine(Config{EntryThreshold: 0.5, ExitThreshold: -1.5})
	result, err := e.Run(context.Background(), map[string][]contracts.OHLCV{"005930": bars})
	require.NoError(t, err)

	require.NotEmpty(t, result.Trades)
	assert.Equal(t, 1, result.ExitCauses[ExitTrailingStop])
	assert.Len(t, result.EquityCurve, 72)
	assert.Positive(t, result.FinalCapital)
}

func TestEngineEndOfTestClose(t *testing.T) {
	e := testEngine(Config{EntryThreshold: 0.5, ExitThreshold: -1.5})
	result, err := e.Run(context.Background(), map[string][]contracts.OHLCV{"005930": risingBars(68, 1_000)})
	require.NoError(t, err)

	require.NotEmpty(t, result.Trades)
	assert.Equal(t, 1, result.ExitCauses[ExitEndOfTest])
	// 상승 추세 보유분 정리: 수익 거래
	assert.Positive(t, result.Trades[0].PnL)
	assert.InDelta(t, 1.0, result.WinRate, 0.001)
}

func TestEngineBreakerBlocksSameDayEntry(t *testing.T) {
	// "000001": 61일 상승 후 마지막 날 폭락. 진입 다음 날 2×ATR 손절로
	// 실현손실이 일일 -2% 한도를 넘어 서킷브레이커가 발동한다.
	crashed := make([]contracts.OHLCV, 62)
	for i := 0; i < 61; i++ {
		c := int64(1_000 + i*10)
		crashed[i] = contracts.OHLCV{
			TickerCode: "000001", Date: day(i),
			Open: c - 5, High: c + 50, Low: c - 50, Close: c, Volume: 100_000,
		}
	}
	crashed[61] = contracts.OHLCV{
		TickerCode: "000001", Date: day(61),
		Open: 1_600, High: 1_600, Low: 1_250, Close: 1_300, Volume: 100_000,
	}

	// "999999": 폭락 당일 워밍업이 끝나는 상승 종목. 브레이커가 아니면
	// 같은 날 진입했을 신호다.
	fresh := make([]contracts.OHLCV, 61)
	for i := range fresh {
		c := int64(1_000 + i*10)
		fresh[i] = contracts.OHLCV{
			TickerCode: "999999", Date: day(i + 1),
			Open: c - 5, High: c + 5, Low: c - 10, Close: c, Volume: 100_000,
		}
	}

	e := testEngine(Config{EntryThreshold: 0.5, ExitThreshold: -1.5})
	result, err := e.Run(context.Background(), map[string][]contracts.OHLCV{
		"000001": crashed,
		"999999": fresh,
	})
	require.NoError(t, err)

	require.Len(t, result.Trades, 1)
	assert.Equal(t, "000001", result.Trades[0].TickerCode)
	assert.Equal(t, 1, result.ExitCauses[ExitStopLoss])
	assert.Equal(t, 1, result.BreakerTrips)

	// 발동일의 신규 진입 차단: "999999"는 끝까지 미체결
	for _, trade := range result.Trades {
		assert.NotEqual(t, "999999", trade.TickerCode)
	}
}

func TestEngineNoEntryWithoutWarmup(t *testing.T) {
	e := testEngine(Config{EntryThreshold: 0.5})
	result, err := e.Run(context.Background(), map[string][]contracts.OHLCV{"005930": risingBars(30, 1_000)})
	require.NoError(t, err)

	assert.Empty(t, result.Trades)
	assert.Equal(t, result.InitialCapital, result.FinalCapital)
	assert.Zero(t, result.MaxDrawdown)
}

func TestEngineEmptySeries(t *testing.T) {
	e := testEngine(Config{})
	_, err := e.Run(context.Background(), map[string][]contracts.OHLCV{})
	assert.Error(t, err)
}

func TestEngineCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := testEngine(Config{EntryThreshold: 0.5})
	_, err := e.Run(ctx, map[string][]contracts.OHLCV{"005930": risingBars(68, 1_000)})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMaxDrawdown(t *testing.T) {
	curve := []EquityPoint{
		{Equity: 100}, {Equity: 120}, {Equity: 90}, {Equity: 110},
	}
	// 고점 120 → 저점 90: 25%
	assert.InDelta(t, 0.25, maxDrawdown(curve), 0.001)
}

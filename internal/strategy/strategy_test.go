package strategy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// risingBars builds n bars climbing steadily from base
func risingBars(n int, base int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, n)
	for i := range bars {
		c := base + int64(i)*10
		bars[i] = contracts.OHLCV{Open: c - 5, High: c + 5, Low: c - 10, Close: c, Volume: 100_000}
	}
	return bars
}

// fallingBars builds n bars declining steadily from base
func fallingBars(n int, base int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, n)
	for i := range bars {
		c := base - int64(i)*10
		bars[i] = contracts.OHLCV{Open: c + 5, High: c + 10, Low: c - 5, Close: c, Volume: 100_000}
	}
	return bars
}

func TestTrendFollowingDirection(t *testing.T) {
	s := NewTrendFollowing()

	up := s.Signal(risingBars(80, 10_000))
	down := s.Signal(fallingBars(80, 20_000))

	assert.Greater(t, up, 0.0)
	assert.Less(t, down, 0.0)
}

func TestTrendFollowingShortHistory(t *testing.T) {
	s := NewTrendFollowing()
	assert.Zero(t, s.Signal(risingBars(30, 10_000)))
}

func TestMeanReversionFadesExtremes(t *testing.T) {
	s := NewMeanReversion()

	// 급락으로 볼린저 하단 이탈: 역추세 매수
	bars := make([]contracts.OHLCV, 40)
	for i := range bars {
		c := int64(10_000)
		if i == 39 {
			c = 8_000 // 마지막 봉 급락
		}
		bars[i] = contracts.OHLCV{Open: c, High: c + 10, Low: c - 10, Close: c, Volume: 100_000}
	}
	assert.Greater(t, s.Signal(bars), 1.0)

	// 급등으로 상단 돌파: 역추세 매도
	for i := range bars {
		bars[i].Close = 10_000
	}
	bars[39].Close = 12_000
	assert.Less(t, s.Signal(bars), -1.0)
}

func TestSwingAboveVWAP(t *testing.T) {
	s := NewSwing()
	sig := s.Signal(risingBars(60, 10_000))
	// 상승 추세에서 현재가는 근사 VWAP 상회 + 단기 정배열
	assert.Greater(t, sig, 0.0)
}

func TestEnsembleRegimeBlending(t *testing.T) {
	e := NewEnsemble(logger.NewNop())
	bars := risingBars(80, 10_000)

	bull := e.Signal(bars, contracts.RegimeBull)
	sideway := e.Signal(bars, contracts.RegimeSideway)

	// 같은 상승 추세라도 추세추종 비중이 큰 BULL 쪽이 높다
	assert.Greater(t, bull, sideway)
	assert.LessOrEqual(t, bull, 2.0)
	assert.GreaterOrEqual(t, sideway, -2.0)
}

func TestEnsembleShortHistoryNeutral(t *testing.T) {
	e := NewEnsemble(logger.NewNop())
	assert.Zero(t, e.Signal(risingBars(10, 10_000), contracts.RegimeBull))
}

func TestEnsembleBreakdownNames(t *testing.T) {
	e := NewEnsemble(logger.NewNop())
	b := e.Breakdown(risingBars(80, 10_000))
	assert.Contains(t, b, "trend_following")
	assert.Contains(t, b, "mean_reversion")
	assert.Contains(t, b, "swing")
}

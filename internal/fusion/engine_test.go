package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

func testEngine() *Engine {
	return New(logger.NewNop(), config.Settings{
		StrongBuyThreshold: 0.66,
		BuyThreshold:       0.22,
		SellThreshold:      -0.66,
		MinTradedValue5D:   1_000_000_000,
	})
}

func results(scores map[string]float64) map[string]contracts.AnalyserResult {
	out := make(map[string]contracts.AnalyserResult, len(scores))
	for name, s := range scores {
		r := contracts.AnalyserResult{Analyser: name, Score: s, PassFilter: true}
		r.Clamp()
		out[name] = r
	}
	return out
}

func TestFuseAllPositiveBull(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Input{
		TickerCode: "005930",
		Regime:     contracts.RegimeBull,
		Results: results(map[string]float64{
			"technical": 2, "disclosure": 2, "supply": 2, "fundamental": 2,
			"market": 2, "news": 2, "consensus": 2,
		}),
		TradedValue5D: 5_000_000_000,
	})

	assert.InDelta(t, 1.0, out.FinalScore, 0.001)
	assert.Equal(t, contracts.DecisionStrongBuy, out.Decision)
	assert.Empty(t, out.Vetoes)
	assert.InDelta(t, 1.0, out.Confidence, 0.001)
}

func TestFuseRegimeWeightsDiffer(t *testing.T) {
	e := testEngine()
	// 펀더멘털만 강한 종목은 BEAR 국면에서 더 높게 평가된다
	scores := results(map[string]float64{
		"technical": 0, "disclosure": 0, "supply": 0, "fundamental": 2,
		"market": 0, "news": 0, "consensus": 0,
	})

	bull := e.Fuse(Input{TickerCode: "005930", Regime: contracts.RegimeBull, Results: scores, TradedValue5D: 5e9})
	bear := e.Fuse(Input{TickerCode: "005930", Regime: contracts.RegimeBear, Results: scores, TradedValue5D: 5e9})

	assert.InDelta(t, 0.05, bull.FinalScore, 0.001)
	assert.InDelta(t, 0.20, bear.FinalScore, 0.001)
	assert.Greater(t, bear.FinalScore, bull.FinalScore)
}

func TestFuseMissingAnalyserRenormalised(t *testing.T) {
	e := testEngine()
	// 기술 분석만 존재해도 가중치 재정규화로 만점이 나와야 한다
	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeBull,
		Results:       results(map[string]float64{"technical": 2}),
		TradedValue5D: 5e9,
	})

	assert.InDelta(t, 1.0, out.FinalScore, 0.001)
	// 커버리지 1/7이므로 확신도는 낮다
	assert.InDelta(t, 1.0/7.0, out.Confidence, 0.001)
}

func TestFuseTradingHaltForcesSell(t *testing.T) {
	e := testEngine()
	rs := results(map[string]float64{
		"technical": 2, "supply": 2, "news": 2, "disclosure": 2,
	})
	halted := rs["disclosure"]
	halted.TradingHalt = true
	rs["disclosure"] = halted

	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeSideway,
		Results:       rs,
		TradedValue5D: 5e9,
	})

	// 모든 점수가 만점이어도 거래정지는 강제 매도
	assert.Equal(t, contracts.DecisionForceSell, out.Decision)
	assert.Contains(t, out.Vetoes, contracts.VetoTradingHalt)
}

func TestFuseDangerGradeBlocksBuy(t *testing.T) {
	e := testEngine()
	rs := results(map[string]float64{
		"technical": 2, "supply": 2, "news": 2, "fundamental": 0,
	})
	fund := rs["fundamental"]
	fund.PassFilter = false
	rs["fundamental"] = fund

	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeBull,
		Results:       rs,
		TradedValue5D: 5e9,
	})

	assert.Contains(t, out.Vetoes, contracts.VetoDangerGrade)
	assert.Equal(t, contracts.DecisionHold, out.Decision)
}

func TestFuseStrongBearishBlocksNewBuy(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeBear,
		Results:       results(map[string]float64{"technical": 2, "supply": 2}),
		Market:        contracts.MarketContext{Mood: contracts.MoodStrongBearish},
		TradedValue5D: 5e9,
	})

	assert.Contains(t, out.Vetoes, contracts.VetoStrongBearish)
	assert.Equal(t, contracts.DecisionHold, out.Decision)
}

func TestFuseLowLiquidityBlocksBuy(t *testing.T) {
	e := testEngine()
	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeSideway,
		Results:       results(map[string]float64{"technical": 2}),
		TradedValue5D: 500_000_000, // 10억 미만
	})

	assert.Contains(t, out.Vetoes, contracts.VetoLowLiquidity)
	assert.Equal(t, contracts.DecisionHold, out.Decision)
}

func TestFuseSellNotBlockedByVeto(t *testing.T) {
	e := testEngine()
	// 매수 차단 베토는 매도 판정을 건드리지 않는다
	out := e.Fuse(Input{
		TickerCode:    "005930",
		Regime:        contracts.RegimeBear,
		Results:       results(map[string]float64{"technical": -2, "supply": -2, "news": -2}),
		Market:        contracts.MarketContext{Mood: contracts.MoodStrongBearish},
		TradedValue5D: 5e9,
	})

	assert.Contains(t, out.Vetoes, contracts.VetoStrongBearish)
	assert.Equal(t, contracts.DecisionStrongSell, out.Decision)
}

func TestDecisionThresholds(t *testing.T) {
	e := testEngine()
	cases := []struct {
		score float64
		want  contracts.Decision
	}{
		{0.80, contracts.DecisionStrongBuy},
		{0.66, contracts.DecisionStrongBuy},
		{0.40, contracts.DecisionBuy},
		{0.22, contracts.DecisionBuy},
		{0.0, contracts.DecisionHold},
		{-0.21, contracts.DecisionHold},
		{-0.40, contracts.DecisionSell},
		{-0.66, contracts.DecisionSell},
		{-0.80, contracts.DecisionStrongSell},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, e.decisionFor(tc.score), "score %.2f", tc.score)
	}
}

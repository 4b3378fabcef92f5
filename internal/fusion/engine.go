package fusion

import (
	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/config"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 국면별 분석기 가중치. 합계 1.0 기준 베이스라인.
// ⭐ SSOT: 융합 가중치는 이 테이블에서만
var regimeWeights = map[contracts.Regime]map[string]float64{
	contracts.RegimeBull: {
		"technical": 0.25, "disclosure": 0.10, "supply": 0.20, "fundamental": 0.05,
		"market": 0.15, "news": 0.15, "consensus": 0.10,
	},
	contracts.RegimeSideway: {
		"technical": 0.20, "disclosure": 0.15, "supply": 0.20, "fundamental": 0.10,
		"market": 0.10, "news": 0.15, "consensus": 0.10,
	},
	contracts.RegimeBear: {
		"technical": 0.15, "disclosure": 0.20, "supply": 0.15, "fundamental": 0.20,
		"market": 0.10, "news": 0.10, "consensus": 0.10,
	},
}

// Engine combines analyser results into one decision per ticker:
// regime-weighted sum of normalised scores, thresholds, then vetoes
// in fixed precedence (trading halt always first).
type Engine struct {
	logger           *logger.Logger
	strongBuy        float64
	buy              float64
	sell             float64
	minTradedValue5D float64
}

// New builds the fusion engine from the tunable snapshot
func New(log *logger.Logger, settings config.Settings) *Engine {
	return &Engine{
		logger:           log.WithComponent("fusion"),
		strongBuy:        settings.StrongBuyThreshold,
		buy:              settings.BuyThreshold,
		sell:             settings.SellThreshold,
		minTradedValue5D: settings.MinTradedValue5D,
	}
}

// Input carries everything fusion needs for one ticker
type Input struct {
	TickerCode    string
	Regime        contracts.Regime
	Results       map[string]contracts.AnalyserResult
	Market        contracts.MarketContext
	TradedValue5D float64 // 5일 평균 거래대금 (KRW)
}

// Fuse produces the final verdict. A missing analyser contributes
// weight zero; the remaining weights are renormalised so partial
// analysis still yields a full-range score.
func (e *Engine) Fuse(in Input) contracts.FusionResult {
	weights := regimeWeights[in.Regime]
	if weights == nil {
		weights = regimeWeights[contracts.RegimeSideway]
	}

	result := contracts.FusionResult{
		TickerCode: in.TickerCode,
		Regime:     in.Regime,
		Breakdown:  make(map[string]float64, len(in.Results)),
	}

	var weightSum float64
	for name := range weights {
		if _, ok := in.Results[name]; ok {
			weightSum += weights[name]
		}
	}

	if weightSum > 0 {
		for name, r := range in.Results {
			w, ok := weights[name]
			if !ok {
				continue
			}
			contribution := (w / weightSum) * normalise(r.Score)
			result.Breakdown[name] = contribution
			result.FinalScore += contribution
			result.Results = append(result.Results, r)
		}
	}

	result.Decision = e.decisionFor(result.FinalScore)
	result.Confidence = confidenceFor(result.FinalScore, len(result.Breakdown), len(weights))

	e.applyVetoes(&result, in)
	return result
}

// normalise maps an analyser score [-2,+2] onto [-1,+1]
func normalise(score float64) float64 {
	v := score / 2.0
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

func (e *Engine) decisionFor(score float64) contracts.Decision {
	switch {
	case score >= e.strongBuy:
		return contracts.DecisionStrongBuy
	case score >= e.buy:
		return contracts.DecisionBuy
	case score >= -e.buy:
		return contracts.DecisionHold
	case score >= e.sell:
		return contracts.DecisionSell
	default:
		return contracts.DecisionStrongSell
	}
}

// confidenceFor scales score magnitude by analyser coverage
func confidenceFor(score float64, present, total int) float64 {
	if total == 0 {
		return 0
	}
	conf := score
	if conf < 0 {
		conf = -conf
	}
	conf *= float64(present) / float64(total)
	if conf > 1 {
		conf = 1
	}
	return conf
}

// applyVetoes fires override rules in precedence order. The trading
// halt veto rewrites the decision to FORCE_SELL; the remaining vetoes
// only block buying and leave sell decisions intact.
func (e *Engine) applyVetoes(result *contracts.FusionResult, in Input) {
	for _, r := range in.Results {
		if r.TradingHalt {
			result.Vetoes = append(result.Vetoes, contracts.VetoTradingHalt)
			result.Decision = contracts.DecisionForceSell
			break
		}
	}

	if fund, ok := in.Results["fundamental"]; ok {
		if fund.Grade == contracts.GradeDanger || !fund.PassFilter {
			result.Vetoes = append(result.Vetoes, contracts.VetoDangerGrade)
		}
	}

	if in.Market.Mood == contracts.MoodStrongBearish {
		result.Vetoes = append(result.Vetoes, contracts.VetoStrongBearish)
	}

	if in.TradedValue5D > 0 && in.TradedValue5D < e.minTradedValue5D {
		result.Vetoes = append(result.Vetoes, contracts.VetoLowLiquidity)
	}

	// 매수 차단 베토는 매수 판정만 HOLD로 강등
	if result.Decision != contracts.DecisionForceSell && result.BuyBlocked() {
		if result.Decision == contracts.DecisionStrongBuy || result.Decision == contracts.DecisionBuy {
			result.Decision = contracts.DecisionHold
		}
	}

	if len(result.Vetoes) > 0 {
		e.logger.WithFields(map[string]interface{}{
			"ticker":   result.TickerCode,
			"vetoes":   result.Vetoes,
			"decision": string(result.Decision),
		}).Info("Veto applied")
	}
}

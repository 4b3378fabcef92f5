package strategy

import (
	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 국면별 전략 가중치: 상승장은 추세추종, 횡보장은 역추세 우위
var ensembleWeights = map[contracts.Regime]map[string]float64{
	contracts.RegimeBull: {
		"trend_following": 0.50, "swing": 0.35, "mean_reversion": 0.15,
	},
	contracts.RegimeSideway: {
		"trend_following": 0.15, "swing": 0.35, "mean_reversion": 0.50,
	},
	contracts.RegimeBear: {
		"trend_following": 0.25, "swing": 0.25, "mean_reversion": 0.50,
	},
}

// Ensemble blends the individual strategies by market regime into one
// signal in [-2, +2].
// ⭐ SSOT: 전략 앙상블 결합은 여기서만
type Ensemble struct {
	strategies []Strategy
	logger     *logger.Logger
}

// NewEnsemble wires the default strategy set
func NewEnsemble(log *logger.Logger) *Ensemble {
	return &Ensemble{
		strategies: []Strategy{NewTrendFollowing(), NewMeanReversion(), NewSwing()},
		logger:     log.WithComponent("strategy"),
	}
}

// MinBars is the longest warm-up among member strategies
func (e *Ensemble) MinBars() int {
	min := 0
	for _, s := range e.strategies {
		if s.MinBars() > min {
			min = s.MinBars()
		}
	}
	return min
}

// Signal combines member signals under the regime's weight table.
// Strategies without enough history contribute zero weight.
func (e *Ensemble) Signal(bars []contracts.OHLCV, regime contracts.Regime) float64 {
	weights := ensembleWeights[regime]
	if weights == nil {
		weights = ensembleWeights[contracts.RegimeSideway]
	}

	var sum, weightSum float64
	for _, s := range e.strategies {
		if len(bars) < s.MinBars() {
			continue
		}
		w := weights[s.Name()]
		sum += w * s.Signal(bars)
		weightSum += w
	}
	if weightSum == 0 {
		return 0
	}
	return clampSignal(sum / weightSum)
}

// Breakdown reports each member's raw signal, for trade logs
func (e *Ensemble) Breakdown(bars []contracts.OHLCV) map[string]float64 {
	out := make(map[string]float64, len(e.strategies))
	for _, s := range e.strategies {
		if len(bars) < s.MinBars() {
			continue
		}
		out[s.Name()] = s.Signal(bars)
	}
	return out
}

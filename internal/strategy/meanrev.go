package strategy

import (
	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// MeanReversion fades extremes: Bollinger(20, 2σ) band touches,
// strengthened by RSI confirmation. 횡보장에서 주력.
type MeanReversion struct{}

func NewMeanReversion() *MeanReversion { return &MeanReversion{} }

func (s *MeanReversion) Name() string { return "mean_reversion" }

func (s *MeanReversion) MinBars() int { return 40 }

func (s *MeanReversion) Signal(bars []contracts.OHLCV) float64 {
	if len(bars) < s.MinBars() {
		return 0
	}
	cs := closes(bars)
	price := cs[len(cs)-1]

	upper, middle, lower := talib.BBands(cs, 20, 2, 2, talib.SMA)
	u, m, l := last(upper), last(middle), last(lower)
	if u == 0 || m == 0 {
		return 0
	}

	rsi := rsiLast(cs, 14)

	var score float64
	switch {
	case price <= l:
		score = 1.5
		if rsi <= 30 {
			score = 2.0 // 밴드 하단 + 과매도 동시
		}
	case price >= u:
		score = -1.5
		if rsi >= 70 {
			score = -2.0
		}
	default:
		// 밴드 내부는 중심선 이격에 비례해 완만히 역추세
		score = -(price - m) / (u - m)
		if score > 1 {
			score = 1
		} else if score < -1 {
			score = -1
		}
	}

	return clampSignal(score)
}

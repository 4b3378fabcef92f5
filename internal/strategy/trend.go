package strategy

import (
	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// TrendFollowing rides established trends: MACD(12,26,9) crossovers
// confirmed by DMI direction with ADX strength.
// ⭐ SSOT: 추세추종 시그널은 여기서만
type TrendFollowing struct{}

func NewTrendFollowing() *TrendFollowing { return &TrendFollowing{} }

func (s *TrendFollowing) Name() string { return "trend_following" }

func (s *TrendFollowing) MinBars() int { return 60 }

func (s *TrendFollowing) Signal(bars []contracts.OHLCV) float64 {
	if len(bars) < s.MinBars() {
		return 0
	}
	cs := closes(bars)
	hs := highs(bars)
	ls := lows(bars)

	var score float64

	// MACD 히스토그램 부호와 전환 ±1
	_, _, hist := talib.Macd(cs, 12, 26, 9)
	h, hPrev := last(hist), prev(hist)
	switch {
	case h > 0 && hPrev <= 0:
		score += 1.0 // 골든크로스 직후
	case h > 0:
		score += 0.5
	case h < 0 && hPrev >= 0:
		score -= 1.0
	case h < 0:
		score -= 0.5
	}

	// DMI 방향 ±1, ADX 25 이상일 때만 신뢰
	adx := last(talib.Adx(hs, ls, cs, 14))
	plusDI := last(talib.PlusDI(hs, ls, cs, 14))
	minusDI := last(talib.MinusDI(hs, ls, cs, 14))
	if adx >= 25 {
		if plusDI > minusDI {
			score += 1.0
		} else if minusDI > plusDI {
			score -= 1.0
		}
	}

	return clampSignal(score)
}

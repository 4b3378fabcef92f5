package strategy

import (
	"github.com/wonny/aegis/v14/internal/contracts"
)

// Swing holds positions for days: entry when price reclaims the
// rolling VWAP with supportive RSI and short-term MA alignment.
type Swing struct{}

func NewSwing() *Swing { return &Swing{} }

func (s *Swing) Name() string { return "swing" }

func (s *Swing) MinBars() int { return 40 }

func (s *Swing) Signal(bars []contracts.OHLCV) float64 {
	if len(bars) < s.MinBars() {
		return 0
	}
	cs := closes(bars)
	price := cs[len(cs)-1]

	var score float64

	// 20일 근사 VWAP 상/하회 ±1
	if vwap := rollingVWAP(bars, 20); vwap > 0 {
		if price > vwap {
			score += 1.0
		} else if price < vwap {
			score -= 1.0
		}
	}

	// RSI 밴드: 스윙은 40~65 구간을 진입 적기로 본다
	rsi := rsiLast(cs, 14)
	switch {
	case rsi >= 40 && rsi <= 65:
		score += 0.5
	case rsi > 75:
		score -= 1.0
	case rsi < 30:
		score += 0.5 // 되돌림 매수 후보
	}

	// 단기 정배열 ±0.5
	ma5, ma20 := sma(cs, 5), sma(cs, 20)
	if ma5 > ma20 {
		score += 0.5
	} else if ma5 < ma20 {
		score -= 0.5
	}

	return clampSignal(score)
}

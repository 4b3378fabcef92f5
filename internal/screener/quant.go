package screener

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/config"
)

// Quant score bands. 총점 100 = 거래량 30 + 추세 40 + 변동성 30
const (
	volumeWeight     = 30.0
	trendWeight      = 40.0
	volatilityWeight = 30.0
)

// minBars is the minimum history for a meaningful score (MA60 + slack)
const minBars = 60

// QuantScore rates one candidate on [0,100] from its daily bars.
// Bars must be oldest-first. Too little history scores 0. A zero-value
// ramps falls back to the production defaults.
func QuantScore(bars []contracts.OHLCV, ramps config.QuantRamps) (total, volume, trend, volatility float64) {
	if len(bars) < minBars {
		return 0, 0, 0, 0
	}
	if ramps == (config.QuantRamps{}) {
		ramps = config.DefaultQuantRamps()
	}

	volume = scoreVolume(bars, ramps)
	trend = scoreTrend(bars, ramps)
	volatility = scoreVolatility(bars, ramps)
	return volume + trend + volatility, volume, trend, volatility
}

// scoreVolume rates recent participation: today's volume against its
// 5-day average plus how many of the last 5 sessions ran above the
// 20-day base.
func scoreVolume(bars []contracts.OHLCV, ramps config.QuantRamps) float64 {
	n := len(bars)
	avg5 := avgVolume(bars[n-5:])
	avg20 := avgVolume(bars[n-20:])
	if avg5 == 0 || avg20 == 0 {
		return 0
	}

	surge := float64(bars[n-1].Volume) / avg5
	score := 20.0 * ramp(surge, ramps.VolumeSurgeLo, ramps.VolumeSurgeHi)

	above := 0
	for _, b := range bars[n-5:] {
		if float64(b.Volume) > avg20 {
			above++
		}
	}
	score += float64(above) / 5.0 * 10.0

	return clampScore(score, volumeWeight)
}

// scoreTrend rates directional structure: price above the short moving
// averages, disparity to MA20 and MA60, a 20-day breakout with the
// 52-week band position as the non-breakout path, and short-term
// momentum.
func scoreTrend(bars []contracts.OHLCV, ramps config.QuantRamps) float64 {
	n := len(bars)
	closeP := float64(bars[n-1].Close)

	ma5 := avgClose(bars[n-5:])
	ma20 := avgClose(bars[n-20:])
	ma60 := avgClose(bars[n-60:])

	var score float64

	// 주가 기준 정배열 10점, 5일선 위는 5점
	switch {
	case closeP > ma5 && ma5 > ma20:
		score += 10
	case closeP > ma5:
		score += 5
	}

	if ma20 > 0 {
		score += 5 * ramp(closeP/ma20-1, ramps.DisparityLo, ramps.DisparityHi)
	}
	if ma60 > 0 {
		score += 5 * ramp(closeP/ma60-1, ramps.DisparityLo, ramps.DisparityHi)
	}

	// 전일까지의 20일 고가 돌파면 만점, 아니면 52주 밴드 내 위치
	prior20High, _ := rangeHighLow(bars[n-21 : n-1])
	if closeP > prior20High {
		score += 10
	} else {
		window := bars
		if n > 250 {
			window = bars[n-250:]
		}
		high52, low52 := rangeHighLow(window)
		if high52 > low52 {
			pos := (closeP - low52) / (high52 - low52)
			score += 10 * ramp(pos, ramps.Position52WLo, ramps.Position52WHi)
		}
	}

	// 3일 수익률
	close3 := float64(bars[n-4].Close)
	if close3 > 0 {
		score += 10 * ramp(closeP/close3-1, ramps.Return3DLo, ramps.Return3DHi)
	}

	return clampScore(score, trendWeight)
}

// scoreVolatility prefers tradeable motion over chop or mania: today's
// intraday range and the 5-day average range each in a healthy band,
// plus RSI(14) out of both extremes.
func scoreVolatility(bars []contracts.OHLCV, ramps config.QuantRamps) float64 {
	n := len(bars)

	var rangeSum float64
	for _, b := range bars[n-5:] {
		rangeSum += intradayRange(b)
	}

	score := 7.5 * band(intradayRange(bars[n-1]), ramps.DailyRangeBand)
	score += 7.5 * band(rangeSum/5.0, ramps.DailyRangeBand)
	score += 15.0 * band(rsi14(bars), ramps.RSIBand)

	return clampScore(score, volatilityWeight)
}

func intradayRange(b contracts.OHLCV) float64 {
	if b.Close <= 0 {
		return 0
	}
	return float64(b.High-b.Low) / float64(b.Close)
}

// rsi14 computes RSI(14) on closes, neutral 50 when undefined
func rsi14(bars []contracts.OHLCV) float64 {
	if len(bars) < 15 {
		return 50
	}
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[i] = float64(b.Close)
	}

	out := talib.Rsi(closes, 14)
	v := out[len(out)-1]
	if math.IsNaN(v) || v == 0 {
		return 50
	}
	return v
}

// ramp maps x linearly from 0 at lo to 1 at hi, clamped
func ramp(x, lo, hi float64) float64 {
	if x <= lo {
		return 0
	}
	if x >= hi {
		return 1
	}
	return (x - lo) / (hi - lo)
}

// band is a trapezoid over (a,b,c,d): 0 below a, rising a→b, flat b→c,
// falling c→d
func band(x float64, b [4]float64) float64 {
	switch {
	case x <= b[0] || x >= b[3]:
		return 0
	case x < b[1]:
		return (x - b[0]) / (b[1] - b[0])
	case x <= b[2]:
		return 1
	default:
		return (b[3] - x) / (b[3] - b[2])
	}
}

func clampScore(v, max float64) float64 {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}

func avgVolume(bars []contracts.OHLCV) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.Volume)
	}
	return sum / float64(len(bars))
}

func avgClose(bars []contracts.OHLCV) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.Close)
	}
	return sum / float64(len(bars))
}

func rangeHighLow(bars []contracts.OHLCV) (high, low float64) {
	if len(bars) == 0 {
		return 0, 0
	}
	high = float64(bars[0].High)
	low = float64(bars[0].Low)
	for _, b := range bars[1:] {
		if float64(b.High) > high {
			high = float64(b.High)
		}
		if float64(b.Low) < low {
			low = float64(b.Low)
		}
	}
	return high, low
}

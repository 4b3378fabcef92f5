package strategy

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// 지표 계산 입력은 과거→현재 순서의 일봉
func closes(bars []contracts.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Close)
	}
	return out
}

func highs(bars []contracts.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.High)
	}
	return out
}

func lows(bars []contracts.OHLCV) []float64 {
	out := make([]float64, len(bars))
	for i, b := range bars {
		out[i] = float64(b.Low)
	}
	return out
}

// last returns the final defined value of an indicator series
func last(xs []float64) float64 {
	for i := len(xs) - 1; i >= 0; i-- {
		if !math.IsNaN(xs[i]) {
			return xs[i]
		}
	}
	return 0
}

// prev returns the value one step before the final defined one
func prev(xs []float64) float64 {
	seen := false
	for i := len(xs) - 1; i >= 0; i-- {
		if math.IsNaN(xs[i]) {
			continue
		}
		if seen {
			return xs[i]
		}
		seen = true
	}
	return 0
}

// rsiLast computes RSI(period) on closing prices, neutral 50 when
// the series is too short or talib yields no value.
func rsiLast(cs []float64, period int) float64 {
	if len(cs) <= period {
		return 50
	}
	v := last(talib.Rsi(cs, period))
	if v == 0 || math.IsNaN(v) {
		return 50
	}
	return v
}

// atrLast computes ATR(period); zero means not computable
func atrLast(bars []contracts.OHLCV, period int) float64 {
	if len(bars) <= period {
		return 0
	}
	v := last(talib.Atr(highs(bars), lows(bars), closes(bars), period))
	if math.IsNaN(v) {
		return 0
	}
	return v
}

// rollingVWAP approximates intraday VWAP with typical price over the
// trailing window. 일봉 기반 근사치.
func rollingVWAP(bars []contracts.OHLCV, window int) float64 {
	if len(bars) < window {
		window = len(bars)
	}
	var pv, vol float64
	for _, b := range bars[len(bars)-window:] {
		typical := float64(b.High+b.Low+b.Close) / 3.0
		pv += typical * float64(b.Volume)
		vol += float64(b.Volume)
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

func sma(cs []float64, period int) float64 {
	if len(cs) < period {
		return 0
	}
	var sum float64
	for _, c := range cs[len(cs)-period:] {
		sum += c
	}
	return sum / float64(period)
}

// clampSignal bounds a strategy signal to [-2, +2]
func clampSignal(s float64) float64 {
	if s > 2 {
		return 2
	}
	if s < -2 {
		return -2
	}
	return s
}

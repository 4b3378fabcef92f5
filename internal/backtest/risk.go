package backtest

import (
	"math"

	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// RiskManager sizes positions and places stops.
// ⭐ SSOT: 포지션 사이징과 손절가 산출은 여기서만
type RiskManager struct {
	MaxPositionPct  float64 // 켈리 분할 상한: 계좌 대비 종목당 최대 비중
	RiskPerTradePct float64 // 1회 매매 허용 손실
	ATRMultiple     float64 // 손절 = 종가 − ATR×배수
	FallbackStopPct float64 // ATR 산출 불가 시 고정 손절폭
	ATRPeriod       int
}

// NewRiskManager returns the production defaults: 20% cap, 2% risk,
// 2×ATR(14) stop with a 3% fallback.
func NewRiskManager() *RiskManager {
	return &RiskManager{
		MaxPositionPct:  0.20,
		RiskPerTradePct: 0.02,
		ATRMultiple:     2.0,
		FallbackStopPct: 0.03,
		ATRPeriod:       14,
	}
}

// StopFor places the initial stop below the latest close
func (r *RiskManager) StopFor(bars []contracts.OHLCV) float64 {
	close := float64(bars[len(bars)-1].Close)
	if atr := atrLast(bars, r.ATRPeriod); atr > 0 {
		return close - r.ATRMultiple*atr
	}
	return close * (1 - r.FallbackStopPct)
}

// PositionSize converts account risk into shares: risk budget divided
// by per-share stop distance, then capped at the position limit.
// Returns zero when the stop distance is degenerate.
func (r *RiskManager) PositionSize(equity int64, price, stop float64) int64 {
	if price <= 0 || stop >= price {
		return 0
	}
	riskBudget := float64(equity) * r.RiskPerTradePct
	perShare := price - stop
	shares := int64(riskBudget / perShare)

	maxValue := float64(equity) * r.MaxPositionPct
	if maxShares := int64(maxValue / price); shares > maxShares {
		shares = maxShares
	}
	if shares < 0 {
		return 0
	}
	return shares
}

func atrLast(bars []contracts.OHLCV, period int) float64 {
	if len(bars) <= period {
		return 0
	}
	h := make([]float64, len(bars))
	l := make([]float64, len(bars))
	c := make([]float64, len(bars))
	for i, b := range bars {
		h[i], l[i], c[i] = float64(b.High), float64(b.Low), float64(b.Close)
	}
	out := talib.Atr(h, l, c, period)
	v := out[len(out)-1]
	if math.IsNaN(v) {
		return 0
	}
	return v
}

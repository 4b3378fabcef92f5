package analysis

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// TechnicalAnalyser scores price structure: moving-average trend,
// RSI momentum and position against the session VWAP.
// 부분 점수: 추세 ±1.0, RSI ±1.0, VWAP ±1.0 (합산 후 ±2 클램프)
type TechnicalAnalyser struct {
	source DataSource
	logger *logger.Logger
}

// NewTechnicalAnalyser builds the technical perspective
func NewTechnicalAnalyser(source DataSource, log *logger.Logger) *TechnicalAnalyser {
	return &TechnicalAnalyser{source: source, logger: log}
}

func (a *TechnicalAnalyser) Name() string { return "technical" }

// Analyse scores one ticker from its daily bars and session ticks
func (a *TechnicalAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	bars, err := a.source.GetPrices(ctx, code, asOf, 80)
	if err != nil {
		return contracts.AnalyserResult{}, err
	}
	if len(bars) < 60 {
		return contracts.AnalyserResult{}, fmt.Errorf("technical: insufficient history for %s (%d bars)", code, len(bars))
	}

	// 쿼리는 최신순
	closes := make([]float64, len(bars))
	for i, b := range bars {
		closes[len(bars)-1-i] = float64(b.Close)
	}
	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}

	// 이동평균 추세 ±1.0
	ma5 := mean(closes[len(closes)-5:])
	ma20 := mean(closes[len(closes)-20:])
	ma60 := mean(closes[len(closes)-60:])
	switch {
	case ma5 > ma20 && ma20 > ma60:
		result.Score += 1.0
		result.Notes = append(result.Notes, "정배열 (MA5 > MA20 > MA60)")
	case ma5 < ma20 && ma20 < ma60:
		result.Score -= 1.0
		result.Notes = append(result.Notes, "역배열 (MA5 < MA20 < MA60)")
	case ma5 > ma20:
		result.Score += 0.5
		result.Notes = append(result.Notes, "단기 상승 전환")
	}

	// RSI(14) ±1.0, 산출 불가 시 중립 50
	rsi := lastRSI(closes, 14)
	switch {
	case rsi <= 30:
		result.Score += 1.0
		result.Notes = append(result.Notes, fmt.Sprintf("RSI 과매도 (%.1f)", rsi))
	case rsi >= 70:
		result.Score -= 1.0
		result.Notes = append(result.Notes, fmt.Sprintf("RSI 과매수 (%.1f)", rsi))
	}

	// 세션 VWAP ±1.0. VWAP은 당일 0시에 리셋되고 틱이 없으면 중립.
	dayStart := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, asOf.Location())
	ticks, err := a.source.GetTicksSince(ctx, code, dayStart)
	if err != nil {
		a.logger.WithError(err).WithField("ticker", code).Debug("Session ticks unavailable, skipping VWAP")
	} else if vwap := sessionVWAP(ticks); vwap > 0 {
		price := float64(ticks[len(ticks)-1].Price)
		if price > vwap {
			result.Score += 1.0
			result.Notes = append(result.Notes, "현재가 VWAP 상회")
		} else if price < vwap {
			result.Score -= 1.0
			result.Notes = append(result.Notes, "현재가 VWAP 하회")
		}
	}

	result.Clamp()
	return result, nil
}

// sessionVWAP computes volume-weighted average price over one session
func sessionVWAP(ticks []contracts.Tick) float64 {
	var pv, vol float64
	for _, t := range ticks {
		pv += float64(t.Price) * float64(t.Volume)
		vol += float64(t.Volume)
	}
	if vol == 0 {
		return 0
	}
	return pv / vol
}

// lastRSI returns the final RSI value, neutral 50 when undefined
func lastRSI(closes []float64, period int) float64 {
	if len(closes) <= period {
		return 50
	}
	out := talib.Rsi(closes, period)
	v := out[len(out)-1]
	if math.IsNaN(v) || v == 0 {
		return 50
	}
	return v
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

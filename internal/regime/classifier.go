package regime

import (
	"fmt"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// MA20/MA60 이격 ±2%가 국면 전환 경계
const bandWidth = 0.02

// minBars is the history needed for a stable MA60
const minBars = 60

// Classification is the market phase with its strength
type Classification struct {
	Regime     contracts.Regime
	Confidence float64 // |MA20-MA60| / MA60, clamped to [0,1]
	MA20       float64
	MA60       float64
}

// Classify determines the market phase from index bars (oldest first).
// BULL when MA20 runs more than 2% above MA60, BEAR at 2% below or
// worse, SIDEWAY in the band between.
func Classify(bars []contracts.OHLCV) (Classification, error) {
	if len(bars) < minBars {
		return Classification{}, fmt.Errorf("regime: need %d bars, got %d", minBars, len(bars))
	}

	ma20 := avgCloses(bars[len(bars)-20:])
	ma60 := avgCloses(bars[len(bars)-60:])
	if ma60 == 0 {
		return Classification{}, fmt.Errorf("regime: zero MA60")
	}

	c := Classification{MA20: ma20, MA60: ma60}
	gap := (ma20 - ma60) / ma60

	// -2% 경계는 약세에 포함한다
	switch {
	case gap > bandWidth:
		c.Regime = contracts.RegimeBull
	case gap <= -bandWidth:
		c.Regime = contracts.RegimeBear
	default:
		c.Regime = contracts.RegimeSideway
	}

	c.Confidence = gap
	if c.Confidence < 0 {
		c.Confidence = -c.Confidence
	}
	if c.Confidence > 1 {
		c.Confidence = 1
	}

	return c, nil
}

func avgCloses(bars []contracts.OHLCV) float64 {
	if len(bars) == 0 {
		return 0
	}
	var sum float64
	for _, b := range bars {
		sum += float64(b.Close)
	}
	return sum / float64(len(bars))
}

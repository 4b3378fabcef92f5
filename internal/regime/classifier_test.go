package regime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/internal/contracts"
)

// barsWithMAs builds 60 bars whose last 20 close at recent and whose
// first 40 close at older, giving controlled MA20/MA60.
func barsWithMAs(older, recent int64) []contracts.OHLCV {
	bars := make([]contracts.OHLCV, 60)
	for i := range bars {
		c := older
		if i >= 40 {
			c = recent
		}
		bars[i] = contracts.OHLCV{Open: c, High: c, Low: c, Close: c, Volume: 1}
	}
	return bars
}

func TestClassifyBull(t *testing.T) {
	// MA20=105, MA60=(40*97.5+20*105)/60=100 → BULL, confidence 0.05
	c, err := Classify(barsWithMAs(975, 1050))
	require.NoError(t, err)

	assert.Equal(t, contracts.RegimeBull, c.Regime)
	assert.InDelta(t, 0.05, c.Confidence, 0.001)
}

func TestClassifyBear(t *testing.T) {
	// MA20=98 < MA60×0.98 근처가 되도록 과거를 높게
	c, err := Classify(barsWithMAs(1030, 950))
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeBear, c.Regime)
}

func TestClassifyBandBoundaries(t *testing.T) {
	// MA20=980, MA60=(40*1010+20*980)/60=1000: 정확히 -2% → BEAR
	c, err := Classify(barsWithMAs(1010, 980))
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeBear, c.Regime)
	assert.InDelta(t, 0.02, c.Confidence, 1e-9)

	// 정확히 +2%는 아직 SIDEWAY
	c, err = Classify(barsWithMAs(990, 1020))
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeSideway, c.Regime)
}

func TestClassifySideway(t *testing.T) {
	c, err := Classify(barsWithMAs(1000, 1000))
	require.NoError(t, err)
	assert.Equal(t, contracts.RegimeSideway, c.Regime)
	assert.Zero(t, c.Confidence)
}

func TestClassifyInsufficientBars(t *testing.T) {
	_, err := Classify(barsWithMAs(1000, 1000)[:30])
	assert.Error(t, err)
}

package contracts

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateCode(t *testing.T) {
	assert.NoError(t, ValidateCode("005930"))
	assert.NoError(t, ValidateCode("000660"))

	assert.Error(t, ValidateCode(""))
	assert.Error(t, ValidateCode("5930"))
	assert.Error(t, ValidateCode("0059301"))
	assert.Error(t, ValidateCode("00593A"))
}

func TestRecGradeForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  RecGrade
	}{
		{1.0, RecGradeS},
		{0.66, RecGradeS},
		{0.65, RecGradeA},
		{0.44, RecGradeA},
		{0.22, RecGradeB},
		{0.0, RecGradeC},
		{-0.01, RecGradeD},
		{-1.0, RecGradeD},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RecGradeForScore(tt.score), "score %.2f", tt.score)
	}
}

func TestClassifyPerformance(t *testing.T) {
	assert.Equal(t, PerfSuccess, ClassifyPerformance(0.06))
	assert.Equal(t, PerfActive, ClassifyPerformance(0.05)) // 정확히 +5%는 아직 보유
	assert.Equal(t, PerfActive, ClassifyPerformance(0.02))
	assert.Equal(t, PerfActive, ClassifyPerformance(-0.04))
	assert.Equal(t, PerfWarning, ClassifyPerformance(-0.05))
	assert.Equal(t, PerfFailed, ClassifyPerformance(-0.10))
	assert.Equal(t, PerfFailed, ClassifyPerformance(-0.30))
}

func TestAnalyserResultClamp(t *testing.T) {
	r := AnalyserResult{Score: 3.5}
	r.Clamp()
	assert.Equal(t, 2.0, r.Score)

	r = AnalyserResult{Score: -9}
	r.Clamp()
	assert.Equal(t, -2.0, r.Score)
}

func TestOHLCVValidate(t *testing.T) {
	ok := OHLCV{TickerCode: "005930", Open: 100, High: 110, Low: 95, Close: 105, Volume: 10}
	assert.NoError(t, ok.Validate())

	bad := ok
	bad.Low = 106 // low > close
	assert.Error(t, bad.Validate())

	bad = ok
	bad.Volume = -1
	assert.Error(t, bad.Validate())
}

func TestHoldingReturnRate(t *testing.T) {
	h := Holding{AvgBuyPrice: 10000, CurrentPrice: 10500}
	assert.InDelta(t, 0.05, h.ReturnRate(), 1e-9)

	assert.Zero(t, Holding{}.ReturnRate())
}

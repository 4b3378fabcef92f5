package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTradeMessage(t *testing.T) {
	raw := "0|H0STCNT0|001|005930^093015^71200^2^500^0.71^71150^71300^71100^71250^71200^1^350"

	tick, ok := ParseTradeMessage(raw)
	require.True(t, ok)
	assert.Equal(t, "005930", tick.TickerCode)
	assert.Equal(t, int64(71_200), tick.Price)
	assert.Equal(t, int64(350), tick.Volume)
	assert.InDelta(t, 0.71, tick.ChangeRate, 0.001)
}

func TestParseTradeMessageRejectsControlFrames(t *testing.T) {
	cases := []string{
		`{"header":{"tr_id":"PINGPONG"}}`,        // JSON 제어 프레임
		"0|H0STASP0|001|005930^093015^71200",     // 호가 프레임
		"0|H0STCNT0|001|005930^093015",           // 필드 부족
		"0|H0STCNT0|001|005930^093015^abc^^^^^^^^^^^1", // 가격 파싱 불가
	}
	for _, raw := range cases {
		_, ok := ParseTradeMessage(raw)
		assert.False(t, ok, "frame: %s", raw)
	}
}

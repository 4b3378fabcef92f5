package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/pkg/logger"
)

type fakeGenerator struct {
	response string
	err      error
}

func (f *fakeGenerator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	return f.response, f.err
}

func TestTradeParserParsesFencedJSON(t *testing.T) {
	gen := &fakeGenerator{response: "```json\n" +
		`{"action":"buy","ticker_code":"005930","quantity":10,"price":71000}` +
		"\n```"}
	parser := NewTradeParser(gen, logger.NewNop())

	order, err := parser.Parse(context.Background(), "삼성전자 10주 71,000원에 매수")
	require.NoError(t, err)
	assert.Equal(t, "buy", order.Action)
	assert.Equal(t, "005930", order.TickerCode)
	assert.Equal(t, int64(10), order.Quantity)
	assert.Equal(t, int64(71000), order.Price)
}

func TestTradeParserRejectsBadPayloads(t *testing.T) {
	tests := []struct {
		name     string
		response string
	}{
		{"not json", "10주 매수했습니다"},
		{"bad action", `{"action":"hold","ticker_code":"005930","quantity":10,"price":71000}`},
		{"bad ticker", `{"action":"buy","ticker_code":"93","quantity":10,"price":71000}`},
		{"zero quantity", `{"action":"sell","ticker_code":"005930","quantity":0,"price":71000}`},
		{"unknown field", `{"action":"buy","ticker_code":"005930","quantity":10,"price":71000,"note":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parser := NewTradeParser(&fakeGenerator{response: tt.response}, logger.NewNop())
			_, err := parser.Parse(context.Background(), "거래 텍스트")
			assert.Error(t, err)
		})
	}
}

func TestTradeParserPropagatesGeneratorError(t *testing.T) {
	parser := NewTradeParser(&fakeGenerator{err: fmt.Errorf("quota exceeded")}, logger.NewNop())
	_, err := parser.Parse(context.Background(), "삼성전자 매수")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestTradeParserRejectsEmptyText(t *testing.T) {
	parser := NewTradeParser(&fakeGenerator{}, logger.NewNop())
	_, err := parser.Parse(context.Background(), "   ")
	assert.Error(t, err)
}

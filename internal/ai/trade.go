package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// TradeOrder is a structured trade extracted from free text
type TradeOrder struct {
	Action     string `json:"action"` // buy | sell
	TickerCode string `json:"ticker_code"`
	Quantity   int64  `json:"quantity"`
	Price      int64  `json:"price"`
}

// TradeParser turns free-text trade descriptions ("삼성전자 10주
// 71,000원에 매수") into structured orders via the LLM.
// ⭐ SSOT: 자연어 거래 파싱은 여기서만
type TradeParser struct {
	generator Generator
	logger    *logger.Logger
}

// NewTradeParser wires the parser
func NewTradeParser(generator Generator, log *logger.Logger) *TradeParser {
	return &TradeParser{generator: generator, logger: log.WithComponent("trade-parser")}
}

// Parse extracts one order from the text. The model must answer with
// strict JSON; anything else is rejected rather than guessed at.
func (p *TradeParser) Parse(ctx context.Context, text string) (TradeOrder, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return TradeOrder{}, fmt.Errorf("empty trade text")
	}

	raw, err := p.generator.GenerateContent(ctx, buildTradePrompt(text))
	if err != nil {
		return TradeOrder{}, fmt.Errorf("parse trade: %w", err)
	}

	order, err := decodeTradeOrder(StripCodeFence(raw))
	if err != nil {
		p.logger.WithError(err).WithField("raw", raw).Warn("Trade parse rejected")
		return TradeOrder{}, err
	}
	return order, nil
}

func decodeTradeOrder(raw string) (TradeOrder, error) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.DisallowUnknownFields()

	var order TradeOrder
	if err := dec.Decode(&order); err != nil {
		return TradeOrder{}, fmt.Errorf("decode trade order: %w", err)
	}

	if order.Action != "buy" && order.Action != "sell" {
		return TradeOrder{}, fmt.Errorf("invalid action %q", order.Action)
	}
	if err := contracts.ValidateCode(order.TickerCode); err != nil {
		return TradeOrder{}, fmt.Errorf("invalid ticker: %w", err)
	}
	if order.Quantity <= 0 {
		return TradeOrder{}, fmt.Errorf("invalid quantity %d", order.Quantity)
	}
	if order.Price <= 0 {
		return TradeOrder{}, fmt.Errorf("invalid price %d", order.Price)
	}
	return order, nil
}

func buildTradePrompt(text string) string {
	var sb strings.Builder
	sb.WriteString("다음 자연어 거래 내역을 구조화된 주문으로 변환하세요.\n\n")
	sb.WriteString("## 거래 내역\n")
	sb.WriteString(text)
	sb.WriteString("\n\n")
	sb.WriteString("## 응답 형식 (반드시 이 JSON만, 다른 텍스트 금지)\n")
	sb.WriteString(`{
  "action": "buy 또는 sell",
  "ticker_code": "6자리 종목코드 (종목명이면 코드로 변환)",
  "quantity": 수량(정수),
  "price": 주당 가격(원, 정수)
}`)
	sb.WriteString("\n\n주의: ticker_code는 반드시 6자리 숫자. 가격에 쉼표 없이. 확실하지 않으면 가장 유력한 해석을 선택.")
	return sb.String()
}

package ai

import (
	"context"
	"fmt"
	"strconv"

	"github.com/wonny/aegis/v14/pkg/logger"
)

// SentimentScorer grades a single headline through the LLM. The reply
// is constrained to one number so the call stays cheap enough for
// per-headline use.
type SentimentScorer struct {
	generator Generator
	logger    *logger.Logger
}

// NewSentimentScorer wires the headline scorer
func NewSentimentScorer(generator Generator, log *logger.Logger) *SentimentScorer {
	return &SentimentScorer{
		generator: generator,
		logger:    log.WithComponent("sentiment"),
	}
}

// ScoreHeadline returns the headline polarity in [-1, +1]
func (s *SentimentScorer) ScoreHeadline(ctx context.Context, title string) (float64, error) {
	if title == "" {
		return 0, fmt.Errorf("empty headline")
	}

	raw, err := s.generator.GenerateContent(ctx, buildSentimentPrompt(title))
	if err != nil {
		return 0, fmt.Errorf("generate sentiment: %w", err)
	}

	v, err := strconv.ParseFloat(StripCodeFence(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("parse sentiment %q: %w", raw, err)
	}

	if v > 1 {
		v = 1
	}
	if v < -1 {
		v = -1
	}
	return v, nil
}

func buildSentimentPrompt(title string) string {
	return fmt.Sprintf(`다음 한국 증시 뉴스 제목이 해당 종목 주가에 미칠 영향을 판단하라.

제목: %s

-1.0(매우 부정)에서 1.0(매우 긍정) 사이의 숫자 하나만 출력하라. 다른 텍스트는 출력하지 마라.`, title)
}

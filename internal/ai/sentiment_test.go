package ai

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/aegis/v14/pkg/logger"
)

func TestSentimentScoreParsesNumber(t *testing.T) {
	s := NewSentimentScorer(&fakeGenerator{response: "0.6"}, logger.NewNop())

	v, err := s.ScoreHeadline(context.Background(), "대규모 수주 계약 체결")
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v, 1e-9)
}

func TestSentimentScoreStripsFence(t *testing.T) {
	s := NewSentimentScorer(&fakeGenerator{response: "```\n-0.4\n```"}, logger.NewNop())

	v, err := s.ScoreHeadline(context.Background(), "실적 부진 우려")
	require.NoError(t, err)
	assert.InDelta(t, -0.4, v, 1e-9)
}

func TestSentimentScoreClampsRange(t *testing.T) {
	s := NewSentimentScorer(&fakeGenerator{response: "1.5"}, logger.NewNop())

	v, err := s.ScoreHeadline(context.Background(), "사상 최대 실적")
	require.NoError(t, err)
	assert.Equal(t, 1.0, v)
}

func TestSentimentScoreRejectsNonNumeric(t *testing.T) {
	s := NewSentimentScorer(&fakeGenerator{response: "긍정적입니다"}, logger.NewNop())

	_, err := s.ScoreHeadline(context.Background(), "신제품 출시")
	assert.Error(t, err)
}

func TestSentimentScorePropagatesGeneratorError(t *testing.T) {
	s := NewSentimentScorer(&fakeGenerator{err: fmt.Errorf("quota exceeded")}, logger.NewNop())

	_, err := s.ScoreHeadline(context.Background(), "신제품 출시")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestSentimentScoreRejectsEmptyTitle(t *testing.T) {
	gen := &fakeGenerator{response: "0.5"}
	s := NewSentimentScorer(gen, logger.NewNop())

	_, err := s.ScoreHeadline(context.Background(), "")
	assert.Error(t, err)
}

package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// ConsensusAnalyser scores analyst coverage: upside to the consensus
// target price plus the opinion level (1~5, 4 = 매수).
type ConsensusAnalyser struct {
	source DataSource
	logger *logger.Logger
}

// NewConsensusAnalyser builds the consensus perspective
func NewConsensusAnalyser(source DataSource, log *logger.Logger) *ConsensusAnalyser {
	return &ConsensusAnalyser{source: source, logger: log}
}

func (a *ConsensusAnalyser) Name() string { return "consensus" }

// Analyse scores the latest consensus snapshot. No coverage is
// neutral, not an error.
func (a *ConsensusAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	blob, err := a.source.GetLatestBlob(ctx, code, "consensus_v1")
	if err != nil {
		return contracts.AnalyserResult{}, err
	}

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}
	if blob == nil {
		result.Notes = append(result.Notes, "애널리스트 커버리지 없음")
		return result, nil
	}

	target := contracts.ContentFloat(blob.Content, "target_price")
	current := contracts.ContentFloat(blob.Content, "current_price")
	opinion := contracts.ContentFloat(blob.Content, "opinion")

	if target > 0 && current > 0 {
		upside := target/current - 1
		switch {
		case upside >= 0.30:
			result.Score += 1.5
		case upside >= 0.15:
			result.Score += 1.0
		case upside >= 0.05:
			result.Score += 0.5
		case upside <= -0.10:
			result.Score -= 1.0
		}
		result.Notes = append(result.Notes, fmt.Sprintf("목표가 괴리율 %+.1f%%", upside*100))
	}

	switch {
	case opinion >= 4.0:
		result.Score += 0.5
	case opinion > 0 && opinion <= 2.5:
		result.Score -= 0.5
	}

	result.Clamp()
	return result, nil
}

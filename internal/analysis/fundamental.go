package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 부채비율 한계. 초과 시 매수 차단(PassFilter=false).
const debtRatioCutoff = 300.0

// FundamentalAnalyser scores the valuation snapshot. Missing fields
// read as zero and contribute nothing, so a thin snapshot degrades to
// a neutral score instead of an error.
type FundamentalAnalyser struct {
	source DataSource
	logger *logger.Logger
}

// NewFundamentalAnalyser builds the fundamental perspective
func NewFundamentalAnalyser(source DataSource, log *logger.Logger) *FundamentalAnalyser {
	return &FundamentalAnalyser{source: source, logger: log}
}

func (a *FundamentalAnalyser) Name() string { return "fundamental" }

// Analyse scores the latest fundamental snapshot
func (a *FundamentalAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	blob, err := a.source.GetLatestBlob(ctx, code, "fundamental_v1")
	if err != nil {
		return contracts.AnalyserResult{}, err
	}
	if blob == nil {
		return contracts.AnalyserResult{}, fmt.Errorf("fundamental: no snapshot for %s", code)
	}

	roe := contracts.ContentFloat(blob.Content, "roe")
	per := contracts.ContentFloat(blob.Content, "per")
	pbr := contracts.ContentFloat(blob.Content, "pbr")
	debtRatio := contracts.ContentFloat(blob.Content, "debt_ratio")

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}

	switch {
	case roe >= 15:
		result.Score += 0.5
		result.Notes = append(result.Notes, fmt.Sprintf("ROE %.1f%%", roe))
	case roe < 0:
		result.Score -= 0.5
		result.Notes = append(result.Notes, "적자 (ROE < 0)")
	case roe >= 10:
		result.Score += 0.2
	}

	if per > 0 && per < 10 {
		result.Score += 0.2
		result.Notes = append(result.Notes, fmt.Sprintf("PER %.1f", per))
	}
	if pbr > 0 && pbr < 1 {
		result.Score += 0.2
		result.Notes = append(result.Notes, fmt.Sprintf("PBR %.2f", pbr))
	}

	switch {
	case debtRatio > debtRatioCutoff:
		result.Score -= 1.0
		result.PassFilter = false
		result.KeyEvents = append(result.KeyEvents, fmt.Sprintf("부채비율 %.0f%% 초과", debtRatio))
	case debtRatio > 200:
		result.Score -= 0.3
		result.Notes = append(result.Notes, fmt.Sprintf("부채비율 %.0f%%", debtRatio))
	}

	result.Clamp()
	return result, nil
}

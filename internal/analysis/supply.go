package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// SupplyAnalyser scores investor flows. Foreigners and institutions
// buying together is the strongest signal in the Korean market.
// 쌍끌이 매수 +1.0, 3일 연속이면 +0.5 가산, 쌍끌이 매도 -1.0
type SupplyAnalyser struct {
	source DataSource
	logger *logger.Logger
}

// NewSupplyAnalyser builds the supply/demand perspective
func NewSupplyAnalyser(source DataSource, log *logger.Logger) *SupplyAnalyser {
	return &SupplyAnalyser{source: source, logger: log}
}

func (a *SupplyAnalyser) Name() string { return "supply" }

// Analyse scores the latest flows and the dual-flow streak
func (a *SupplyAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	flows, err := a.source.GetFlows(ctx, code, asOf, 10)
	if err != nil {
		return contracts.AnalyserResult{}, err
	}
	if len(flows) == 0 {
		return contracts.AnalyserResult{}, fmt.Errorf("supply: no flow data for %s", code)
	}

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}

	// 쿼리는 최신순
	latest := flows[0]
	dualBuy := latest.ForeignNet > 0 && latest.InstitutionNet > 0
	dualSell := latest.ForeignNet < 0 && latest.InstitutionNet < 0

	switch {
	case dualBuy:
		result.Score += 1.0
		result.Notes = append(result.Notes, "외국인/기관 쌍끌이 매수")
	case dualSell:
		result.Score -= 1.0
		result.Notes = append(result.Notes, "외국인/기관 쌍끌이 매도")
	case latest.ForeignNet > 0:
		result.Score += 0.3
		result.Notes = append(result.Notes, "외국인 순매수")
	case latest.InstitutionNet > 0:
		result.Score += 0.2
		result.Notes = append(result.Notes, "기관 순매수")
	}

	// 3일 이상 연속 쌍끌이면 가산
	if streak := dualStreak(flows); streak >= 3 {
		if dualBuy {
			result.Score += 0.5
			result.Notes = append(result.Notes, fmt.Sprintf("%d일 연속 쌍끌이 매수", streak))
		} else if dualSell {
			result.Score -= 0.5
			result.Notes = append(result.Notes, fmt.Sprintf("%d일 연속 쌍끌이 매도", streak))
		}
	}

	// 연기금 매수는 장기 신호
	if latest.PensionNet > 0 {
		result.Score += 0.2
		result.Notes = append(result.Notes, "연기금 순매수")
	}

	result.Clamp()
	return result, nil
}

// dualStreak counts consecutive days (from latest) of both parties on
// the same side.
func dualStreak(flows []contracts.SupplyDemand) int {
	if len(flows) == 0 {
		return 0
	}
	buying := flows[0].ForeignNet > 0 && flows[0].InstitutionNet > 0
	selling := flows[0].ForeignNet < 0 && flows[0].InstitutionNet < 0
	if !buying && !selling {
		return 0
	}

	streak := 0
	for _, f := range flows {
		if buying && (f.ForeignNet <= 0 || f.InstitutionNet <= 0) {
			break
		}
		if selling && (f.ForeignNet >= 0 || f.InstitutionNet >= 0) {
			break
		}
		streak++
	}
	return streak
}

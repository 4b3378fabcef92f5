package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 공시 키워드 가중치 테이블. 제목에 매칭된 가중치를 합산한다.
var disclosureWeights = []struct {
	keyword string
	weight  float64
}{
	{"단일판매", +2.0},
	{"공급계약", +2.0},
	{"자기주식취득", +1.5},
	{"현금배당", +1.0},
	{"무상증자", +0.5},
	{"신규시설투자", +0.3},
	{"자기주식처분", -0.3},
	{"소송", -0.3},
	{"전환사채", -0.4},
	{"신주인수권부사채", -0.4},
	{"유상증자", -0.5},
	{"불성실공시", -0.8},
	{"감자", -1.0},
	{"관리종목", -1.5},
	{"상장폐지", -1.5},
}

// 즉시 매도급 트리거. 하나라도 매칭되면 TradingHalt 베토.
var haltTriggers = []string{
	"거래정지",
	"횡령",
	"배임",
}

// DisclosureAnalyser scores the trailing month of regulatory filings
// with a keyword table. Halt-grade filings set the trading-halt veto
// carrier regardless of the summed score.
type DisclosureAnalyser struct {
	source DataSource
	logger *logger.Logger
	window time.Duration
}

// NewDisclosureAnalyser builds the disclosure perspective
func NewDisclosureAnalyser(source DataSource, log *logger.Logger) *DisclosureAnalyser {
	return &DisclosureAnalyser{
		source: source,
		logger: log,
		window: 30 * 24 * time.Hour,
	}
}

func (a *DisclosureAnalyser) Name() string { return "disclosure" }

// Analyse sums keyword weights over 30 days of filings
func (a *DisclosureAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	blobs, err := a.source.GetBlobsSince(ctx, code, "disclosure_v1", asOf.Add(-a.window))
	if err != nil {
		return contracts.AnalyserResult{}, err
	}

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}

	seen := map[string]bool{}
	for _, blob := range blobs {
		for _, item := range contracts.ContentList(blob.Content, "items") {
			title := contracts.ContentString(item, "title")
			if title == "" || seen[title] {
				continue
			}
			seen[title] = true

			for _, trigger := range haltTriggers {
				if strings.Contains(title, trigger) {
					result.TradingHalt = true
					result.Score -= 2.0
					result.KeyEvents = append(result.KeyEvents, title)
				}
			}

			for _, kw := range disclosureWeights {
				if strings.Contains(title, kw.keyword) {
					result.Score += kw.weight
					if kw.weight <= -0.5 || kw.weight >= 0.5 || contracts.ContentBool(item, "major") {
						result.KeyEvents = append(result.KeyEvents, title)
					}
					break // 키워드 하나만 반영
				}
			}
		}
	}

	result.Clamp()
	return result, nil
}

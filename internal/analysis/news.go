package analysis

import (
	"context"
	"strings"
	"time"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 제목 유사도가 이 값 이상이면 같은 기사로 본다 (재전송 중복 제거)
const dupSimilarity = 0.7

// SentimentModel scores one headline in [-1, +1]. Production wires the
// LLM adapter here; nil disables the model path and every headline
// falls back to keyword scoring.
type SentimentModel interface {
	ScoreHeadline(ctx context.Context, title string) (float64, error)
}

var newsPositive = []string{
	"수주", "호실적", "최대 실적", "사상 최대", "신고가", "상향",
	"흑자전환", "급등", "돌파", "계약 체결", "승인", "출시",
}

var newsNegative = []string{
	"하향", "적자", "급락", "소송", "리콜", "횡령", "배임",
	"하락", "부진", "중단", "연기", "철수", "압수수색",
}

// 시황 기사 등 종목과 무관한 보일러플레이트
var newsNoise = []string{
	"코스피", "코스닥 마감", "증시 마감", "특징주 모음", "오늘의 주요",
}

// 우선순위 키워드. 1순위가 가장 중대한 이벤트, 집계 가중치는 6-순위.
var newsPriorityKeywords = map[int][]string{
	1: {"상장폐지", "거래정지", "분식회계", "부도", "감리"},
	2: {"유상증자", "무상증자", "공개매수", "합병", "감자"},
	3: {"대규모 수주", "공급계약", "흑자전환", "적자전환"},
	4: {"신제품", "특허", "임상", "수출 계약"},
	5: {"자사주", "배당", "지분 변동"},
}

// A급 매체: 키워드에 걸리지 않은 제목도 감성 모델을 태운다
var newsTierASources = map[string]bool{
	"연합뉴스": true,
	"한국경제": true,
	"매일경제": true,
	"서울경제": true,
}

// NewsAnalyser scores recent headlines: de-duplicates near-identical
// titles, drops market-wide noise, then routes each headline through
// the smart filter. Priority-ranked or A-tier headlines go to the
// sentiment model, the rest get keyword scores, and everything is
// aggregated under the priority weights.
type NewsAnalyser struct {
	source DataSource
	model  SentimentModel
	logger *logger.Logger
}

// NewNewsAnalyser builds the news perspective. model may be nil.
func NewNewsAnalyser(source DataSource, model SentimentModel, log *logger.Logger) *NewsAnalyser {
	return &NewsAnalyser{source: source, model: model, logger: log}
}

func (a *NewsAnalyser) Name() string { return "news" }

// Analyse scores the latest headline batch
func (a *NewsAnalyser) Analyse(ctx context.Context, code string, asOf time.Time) (contracts.AnalyserResult, error) {
	blob, err := a.source.GetLatestBlob(ctx, code, "news_v1")
	if err != nil {
		return contracts.AnalyserResult{}, err
	}

	result := contracts.AnalyserResult{
		Analyser:   a.Name(),
		AsOf:       asOf,
		PassFilter: true,
	}
	if blob == nil {
		return result, nil // 뉴스 없음은 중립
	}

	items := dedupItems(contracts.ContentList(blob.Content, "items"))

	var weighted, weightTotal float64
	for _, item := range items {
		title := strings.TrimSpace(contracts.ContentString(item, "title"))
		if isNoise(title) {
			continue
		}

		rank := itemPriority(item, title)
		weight := 1.0
		if rank > 0 {
			weight = float64(6 - rank)
		}

		score, ok := itemSentiment(item)
		if !ok {
			score, ok = a.modelScore(ctx, item, title, rank)
		}
		if !ok {
			score = keywordScore(title)
		}
		if score == 0 {
			continue
		}

		weighted += weight * score
		weightTotal += weight
		if len(result.KeyEvents) < 3 {
			result.KeyEvents = append(result.KeyEvents, title)
		}
	}

	if weightTotal > 0 {
		result.Score = 2.0 * weighted / (weightTotal + 2) // 표본 적으면 완충
	}

	result.Clamp()
	return result, nil
}

// modelScore runs the external sentiment model, but only for headlines
// worth the call: priority-ranked or from an A-tier source. Model
// failures degrade to the keyword path.
func (a *NewsAnalyser) modelScore(ctx context.Context, item map[string]any, title string, rank int) (float64, bool) {
	if a.model == nil {
		return 0, false
	}
	if rank == 0 && !newsTierASources[contracts.ContentString(item, "source")] {
		return 0, false
	}

	v, err := a.model.ScoreHeadline(ctx, title)
	if err != nil {
		a.logger.WithError(err).Debug("Sentiment model failed, keyword fallback")
		return 0, false
	}
	return clampUnit(v), true
}

// itemSentiment reads the sentiment the fetcher may have attached
func itemSentiment(item map[string]any) (float64, bool) {
	if _, ok := item["sentiment"]; !ok {
		return 0, false
	}
	return clampUnit(contracts.ContentFloat(item, "sentiment")), true
}

// itemPriority resolves the headline rank 1~5: the fetcher's field
// wins, otherwise the first keyword-table hit. 0 means no priority.
func itemPriority(item map[string]any, title string) int {
	if p := int(contracts.ContentInt(item, "priority")); p >= 1 && p <= 5 {
		return p
	}
	for rank := 1; rank <= 5; rank++ {
		if containsAny(title, newsPriorityKeywords[rank]) {
			return rank
		}
	}
	return 0
}

// keywordScore is the model-free fallback: ±1 on keyword polarity
func keywordScore(title string) float64 {
	switch {
	case containsAny(title, newsPositive):
		return 1
	case containsAny(title, newsNegative):
		return -1
	}
	return 0
}

func clampUnit(v float64) float64 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// dedupItems removes near-duplicate headlines (wire re-runs), keeping
// the first occurrence. Items without a title are dropped.
func dedupItems(items []map[string]any) []map[string]any {
	var kept []map[string]any
	var titles []string
	for _, item := range items {
		title := strings.TrimSpace(contracts.ContentString(item, "title"))
		if title == "" {
			continue
		}
		dup := false
		for _, k := range titles {
			if titleSimilarity(title, k) >= dupSimilarity {
				dup = true
				break
			}
		}
		if !dup {
			kept = append(kept, item)
			titles = append(titles, title)
		}
	}
	return kept
}

// titleSimilarity is token-set Jaccard similarity
func titleSimilarity(a, b string) float64 {
	ta := strings.Fields(a)
	tb := strings.Fields(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	set := make(map[string]bool, len(ta))
	for _, t := range ta {
		set[t] = true
	}

	inter := 0
	union := len(set)
	seen := map[string]bool{}
	for _, t := range tb {
		if seen[t] {
			continue
		}
		seen[t] = true
		if set[t] {
			inter++
		} else {
			union++
		}
	}
	return float64(inter) / float64(union)
}

func isNoise(title string) bool {
	return containsAny(title, newsNoise)
}

func containsAny(s string, keywords []string) bool {
	for _, k := range keywords {
		if strings.Contains(s, k) {
			return true
		}
	}
	return false
}

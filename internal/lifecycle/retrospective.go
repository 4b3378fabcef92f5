package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/wonny/aegis/v14/internal/ai"
	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// 회고 배치 상한과 호출 간격
const (
	retroBatchLimit   = 10
	retroCallInterval = 2 * time.Second
)

// RetroStore is the persistence surface retrospectives need
type RetroStore interface {
	ListFailedWithoutRetro(ctx context.Context, limit int) ([]contracts.Performance, error)
	GetRecommendation(ctx context.Context, id int64) (*contracts.Recommendation, error)
	SaveRetrospective(ctx context.Context, r contracts.Retrospective) error
}

// RetroResult counts one retrospective pass
type RetroResult struct {
	Generated int
	Skipped   int
}

// retroPayload is the strict JSON contract the model must return
type retroPayload struct {
	MissedRisks          []string `json:"missed_risks"`
	ActualCause          string   `json:"actual_cause"`
	Lesson               string   `json:"lesson"`
	Improvement          string   `json:"improvement"`
	ConfidenceAdjustment float64  `json:"confidence_adjustment"`
}

// Retro generates LLM post-mortems for failed recommendations.
// ⭐ SSOT: 실패 회고 생성은 여기서만
type Retro struct {
	store     RetroStore
	generator ai.Generator
	limiter   *rate.Limiter
	logger    *logger.Logger
}

// NewRetro wires retrospective generation. Calls are spaced at least
// two seconds apart regardless of batch size.
func NewRetro(store RetroStore, generator ai.Generator, log *logger.Logger) *Retro {
	return &Retro{
		store:     store,
		generator: generator,
		limiter:   rate.NewLimiter(rate.Every(retroCallInterval), 1),
		logger:    log.WithComponent("retrospective"),
	}
}

// Run processes up to ten failed horizons without a retrospective.
// An LLM or parse failure skips that row; it stays eligible for the
// next pass.
func (r *Retro) Run(ctx context.Context) (RetroResult, error) {
	var result RetroResult

	failed, err := r.store.ListFailedWithoutRetro(ctx, retroBatchLimit)
	if err != nil {
		return result, fmt.Errorf("list failed horizons: %w", err)
	}

	for _, perf := range failed {
		if err := r.limiter.Wait(ctx); err != nil {
			return result, err
		}

		if err := r.generateOne(ctx, perf); err != nil {
			result.Skipped++
			r.logger.WithError(err).WithFields(map[string]interface{}{
				"rec_id": perf.RecID,
				"days":   perf.DaysHeld,
			}).Warn("Retrospective skipped")
			continue
		}
		result.Generated++
	}

	r.logger.WithFields(map[string]interface{}{
		"generated": result.Generated,
		"skipped":   result.Skipped,
	}).Info("Retrospective pass complete")
	return result, nil
}

func (r *Retro) generateOne(ctx context.Context, perf contracts.Performance) error {
	rec, err := r.store.GetRecommendation(ctx, perf.RecID)
	if err != nil {
		return fmt.Errorf("load recommendation %d: %w", perf.RecID, err)
	}
	if rec == nil {
		return fmt.Errorf("recommendation %d not found", perf.RecID)
	}

	raw, err := r.generator.GenerateContent(ctx, buildRetroPrompt(*rec, perf))
	if err != nil {
		return fmt.Errorf("ai_error: %w", err)
	}

	payload, err := parseRetroPayload(raw)
	if err != nil {
		return fmt.Errorf("parse retrospective for rec %d: %w", perf.RecID, err)
	}

	retro := contracts.Retrospective{
		RecID:                perf.RecID,
		DaysHeld:             perf.DaysHeld,
		MissedRisks:          payload.MissedRisks,
		ActualCause:          payload.ActualCause,
		Lesson:               payload.Lesson,
		Improvement:          payload.Improvement,
		ConfidenceAdjustment: payload.ConfidenceAdjustment,
	}
	if !retro.ValidAdjustment() {
		return fmt.Errorf("adjustment %.1f out of range", retro.ConfidenceAdjustment)
	}

	return r.store.SaveRetrospective(ctx, retro)
}

// parseRetroPayload enforces the strict response contract: JSON only,
// required fields present.
func parseRetroPayload(raw string) (retroPayload, error) {
	var payload retroPayload
	cleaned := ai.StripCodeFence(raw)

	dec := json.NewDecoder(strings.NewReader(cleaned))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&payload); err != nil {
		return payload, fmt.Errorf("invalid JSON: %w", err)
	}
	if payload.ActualCause == "" || payload.Lesson == "" {
		return payload, fmt.Errorf("missing required fields")
	}
	return payload, nil
}

func buildRetroPrompt(rec contracts.Recommendation, perf contracts.Performance) string {
	var sb strings.Builder
	sb.WriteString("당신은 한국 주식 추천 시스템의 회고 분석가입니다.\n")
	sb.WriteString("아래 실패한 추천을 분석해 주세요.\n\n")
	fmt.Fprintf(&sb, "종목: %s\n", rec.TickerCode)
	fmt.Fprintf(&sb, "추천일: %s, 추천가: %d\n", rec.RecDate.Format("2006-01-02"), rec.RecPrice)
	fmt.Fprintf(&sb, "판정: %s (점수 %.2f, 확신도 %.2f)\n", rec.Decision, rec.FinalScore, rec.Confidence)
	fmt.Fprintf(&sb, "근거: %s\n", rec.Rationale)
	fmt.Fprintf(&sb, "%d일 후 수익률: %.1f%%, 최대 낙폭: %.1f%%\n\n", perf.DaysHeld, perf.ReturnRate*100, perf.MaxDrawdown*100)
	sb.WriteString("다음 JSON 형식으로만 답하세요 (설명 문장 금지):\n")
	sb.WriteString(`{"missed_risks": ["놓친 리스크"], "actual_cause": "실패 원인", "lesson": "교훈", "improvement": "개선안", "confidence_adjustment": 0}`)
	sb.WriteString("\nconfidence_adjustment는 -10에서 +10 사이의 숫자입니다.")
	return sb.String()
}

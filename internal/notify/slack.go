// Package notify pushes batch and tracking summaries to Slack.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wonny/aegis/v14/internal/contracts"
	"github.com/wonny/aegis/v14/internal/lifecycle"
	"github.com/wonny/aegis/v14/pkg/httputil"
	"github.com/wonny/aegis/v14/pkg/logger"
)

// Notifier sends webhook messages. An empty webhook URL makes every
// send a silent no-op so local runs need no Slack setup.
type Notifier struct {
	webhookURL string
	http       *httputil.Client
	logger     *logger.Logger
}

// New builds the Slack notifier
func New(webhookURL string, client *httputil.Client, log *logger.Logger) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		http:       client,
		logger:     log.WithComponent("notify"),
	}
}

// Send posts one plain-text message
func (n *Notifier) Send(ctx context.Context, text string) error {
	if n.webhookURL == "" {
		return nil
	}

	resp, err := n.http.PostJSON(ctx, n.webhookURL, map[string]string{"text": text})
	if err != nil {
		return fmt.Errorf("slack post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned %d", resp.StatusCode)
	}
	return nil
}

// BatchSummary formats and sends one pipeline run summary
func (n *Notifier) BatchSummary(ctx context.Context, r lifecycle.BatchResult) error {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*일일 추천 배치 완료* `%s`\n", r.BatchID)
	fmt.Fprintf(&sb, "국면: %s | 후보 %d | 저장 %d | 실패 %d\n", r.Regime, r.Candidates, r.Saved, r.Failed)
	for _, d := range []contracts.Decision{
		contracts.DecisionStrongBuy, contracts.DecisionBuy, contracts.DecisionHold,
		contracts.DecisionSell, contracts.DecisionStrongSell, contracts.DecisionForceSell,
	} {
		if count := r.Decisions[d]; count > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", d, count)
		}
	}
	return n.Send(ctx, sb.String())
}

// TrackSummary formats and sends one tracking pass summary
func (n *Notifier) TrackSummary(ctx context.Context, r lifecycle.TrackResult) error {
	if r.Checked == 0 && r.Failed == 0 {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "*추천 성과 점검* 확인 %d | 오류 %d\n", r.Checked, r.Failed)
	for _, status := range []contracts.PerfStatus{
		contracts.PerfSuccess, contracts.PerfActive, contracts.PerfWarning, contracts.PerfFailed,
	} {
		if count := r.ByStatus[status]; count > 0 {
			fmt.Fprintf(&sb, "  %s: %d\n", status, count)
		}
	}
	return n.Send(ctx, sb.String())
}

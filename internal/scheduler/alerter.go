package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/domain"
	"github.com/hamed0406/turnprobe/internal/notify"
	"github.com/hamed0406/turnprobe/internal/repo"
)

// historyLines is how many recent cycles are quoted in a notification.
const historyLines = 5

// Alerter notifies on suppression transitions only: once when the snapshot
// is withdrawn and once on the first OK afterwards.
type Alerter struct {
	logger     *zap.Logger
	notifier   notify.Notifier
	history    repo.ResultStore
	target     string
	suppressed bool
}

func NewAlerter(logger *zap.Logger, n notify.Notifier, history repo.ResultStore, target string) *Alerter {
	return &Alerter{logger: logger, notifier: n, history: history, target: target}
}

// Observe is called once per completed cycle with the tracker's decision.
// It reports whether a notification was attempted.
func (a *Alerter) Observe(ctx context.Context, d domain.PublishDecision, failures int) bool {
	var title string
	switch {
	case d == domain.Suppress && !a.suppressed:
		a.suppressed = true
		title = "🔴 TURN probe indeterminate"
	case d == domain.PublishOk && a.suppressed:
		a.suppressed = false
		title = "🟢 TURN probe recovered"
	default:
		return false
	}

	text := fmt.Sprintf("Target: %s\nConsecutive failures: %d", a.target, failures)
	if recent := a.recent(ctx); recent != "" {
		text += "\nRecent probes:\n" + recent
	}

	// Best-effort send; a failed webhook never affects probing.
	if err := a.notifier.Send(ctx, title, text); err != nil {
		a.logger.Warn("alert_send_error", zap.String("title", title), zap.Error(err))
	}
	return true
}

func (a *Alerter) recent(ctx context.Context) string {
	if a.history == nil {
		return ""
	}
	rows, err := a.history.Recent(ctx, historyLines)
	if err != nil {
		a.logger.Warn("alert_history_error", zap.Error(err))
		return ""
	}
	var b strings.Builder
	for _, r := range rows {
		fmt.Fprintf(&b, "- %s %s (%.0f ms) -> %s\n",
			r.CheckedAt.Format(time.RFC3339), r.Outcome, r.ElapsedMS, r.Decision)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

package scheduler

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/domain"
	"github.com/hamed0406/turnprobe/internal/repo/memory"
)

type memNotifier struct {
	titles []string
	texts  []string
	err    error
}

func (m *memNotifier) Send(ctx context.Context, title, text string) error {
	m.titles = append(m.titles, title)
	m.texts = append(m.texts, text)
	return m.err
}

func TestAlerter_NotifiesOnTransitionsOnly(t *testing.T) {
	ctx := context.Background()
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nt, nil, "turn.example.com")

	seq := []domain.PublishDecision{
		domain.PublishOk, domain.PublishFailed, domain.Suppress, domain.Suppress,
		domain.Suppress, domain.PublishFailed, domain.PublishOk, domain.PublishOk,
	}
	for _, d := range seq {
		al.Observe(ctx, d, 0)
	}
	if len(nt.titles) != 2 {
		t.Fatalf("want 2 alerts (down + recovery), got %d: %v", len(nt.titles), nt.titles)
	}
	if !strings.Contains(nt.titles[0], "indeterminate") || !strings.Contains(nt.titles[1], "recovered") {
		t.Fatalf("unexpected titles: %v", nt.titles)
	}
}

func TestAlerter_IncludesRecentHistory(t *testing.T) {
	ctx := context.Background()
	store := memory.New(10)
	_ = store.Append(ctx, &domain.ProbeRecord{
		CycleID: "c1", Outcome: domain.OutcomeTimedOut, ElapsedMS: 60000,
		Decision: domain.Suppress, CheckedAt: time.Now().UTC(),
	})
	nt := &memNotifier{}
	al := NewAlerter(zap.NewNop(), nt, store, "turn.example.com")

	if !al.Observe(ctx, domain.Suppress, 5) {
		t.Fatalf("want alert on entering suppression")
	}
	if !strings.Contains(nt.texts[0], "timed_out") || !strings.Contains(nt.texts[0], "Consecutive failures: 5") {
		t.Fatalf("message missing details: %q", nt.texts[0])
	}
}

func TestAlerter_SendErrorIsNotFatal(t *testing.T) {
	nt := &memNotifier{err: errors.New("webhook down")}
	al := NewAlerter(zap.NewNop(), nt, nil, "t")
	if !al.Observe(context.Background(), domain.Suppress, 1) {
		t.Fatalf("want attempted alert")
	}
	// state still advanced, so the next suppress is quiet
	if al.Observe(context.Background(), domain.Suppress, 1) {
		t.Fatalf("repeated suppress should not alert")
	}
}

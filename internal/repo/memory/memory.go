package memory

import (
	"context"
	"sync"

	"github.com/hamed0406/turnprobe/internal/domain"
	"github.com/hamed0406/turnprobe/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

// Store is a fixed-capacity ring of the most recent probe records.
type Store struct {
	mu   sync.RWMutex
	buf  []domain.ProbeRecord
	next int
	full bool
}

func New(capacity int) *Store {
	if capacity < 1 {
		capacity = 1
	}
	return &Store{buf: make([]domain.ProbeRecord, capacity)}
}

func (m *Store) Append(ctx context.Context, r *domain.ProbeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.buf[m.next] = *r
	m.next = (m.next + 1) % len(m.buf)
	if m.next == 0 {
		m.full = true
	}
	return nil
}

func (m *Store) Recent(ctx context.Context, n int) ([]domain.ProbeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	size := m.next
	if m.full {
		size = len(m.buf)
	}
	if n > size {
		n = size
	}
	out := make([]domain.ProbeRecord, 0, n)
	for i := 1; i <= n; i++ {
		idx := (m.next - i + len(m.buf)) % len(m.buf)
		out = append(out, m.buf[idx])
	}
	return out, nil
}

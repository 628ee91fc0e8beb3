package repo

import (
	"context"

	"github.com/hamed0406/turnprobe/internal/domain"
)

// ResultStore keeps the probe history. Swap the in-memory ring for the
// Postgres adapter by setting DATABASE_URL.
type ResultStore interface {
	Append(ctx context.Context, r *domain.ProbeRecord) error
	// Recent returns up to n records, newest first.
	Recent(ctx context.Context, n int) ([]domain.ProbeRecord, error)
}

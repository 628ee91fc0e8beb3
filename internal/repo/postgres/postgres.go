package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/turnprobe/internal/domain"
	"github.com/hamed0406/turnprobe/internal/repo"
)

var _ repo.ResultStore = (*Store)(nil)

// Schema is applied on open so a fresh database works without migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS probe_results (
  cycle_id    TEXT PRIMARY KEY,
  target      TEXT NOT NULL,
  outcome     SMALLINT NOT NULL,
  exit_code   INTEGER NULL,
  signal      INTEGER NULL,
  elapsed_ms  DOUBLE PRECISION NOT NULL,
  decision    SMALLINT NOT NULL,
  checked_at  TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_probe_results_checked_at ON probe_results (checked_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, Schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	log.Info("postgres_history_ready")
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Append(ctx context.Context, r *domain.ProbeRecord) error {
	var exitPtr, sigPtr *int
	if r.Outcome == domain.OutcomeFailed {
		exitPtr = &r.ExitCode
	}
	if r.Outcome == domain.OutcomeKilled {
		sigPtr = &r.Signal
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO probe_results
		   (cycle_id, target, outcome, exit_code, signal, elapsed_ms, decision, checked_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8)`,
		r.CycleID, r.Target, int16(r.Outcome), exitPtr, sigPtr, r.ElapsedMS, int16(r.Decision), r.CheckedAt,
	)
	if err != nil {
		return fmt.Errorf("insert probe result: %w", err)
	}
	return nil
}

func (s *Store) Recent(ctx context.Context, n int) ([]domain.ProbeRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT cycle_id, target, outcome, exit_code, signal, elapsed_ms, decision, checked_at
		   FROM probe_results
		  ORDER BY checked_at DESC
		  LIMIT $1`, n)
	if err != nil {
		return nil, fmt.Errorf("recent: %w", err)
	}
	defer rows.Close()

	var out []domain.ProbeRecord
	for rows.Next() {
		var (
			r                 domain.ProbeRecord
			outcome, decision int16
			exitCode, sig     *int32
		)
		if err := rows.Scan(&r.CycleID, &r.Target, &outcome, &exitCode, &sig, &r.ElapsedMS, &decision, &r.CheckedAt); err != nil {
			return nil, fmt.Errorf("scan probe result: %w", err)
		}
		r.Outcome = domain.OutcomeKind(outcome)
		r.Decision = domain.PublishDecision(decision)
		if exitCode != nil {
			r.ExitCode = int(*exitCode)
		}
		if sig != nil {
			r.Signal = int(*sig)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

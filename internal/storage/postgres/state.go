package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

// LastRun читает маркер последнего sweep. Отсутствие строки означает «ещё не запускался».
func (s *Storage) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	const op = "storage.postgres.LastRun"

	var at time.Time
	err := s.db.QueryRow(ctx, `SELECT last_run_at FROM ingestion_state WHERE name = $1`, name).Scan(&at)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, wrap(op, err)
	}
	return at.UTC(), true, nil
}

func (s *Storage) SetLastRun(ctx context.Context, name string, at time.Time) error {
	const op = "storage.postgres.SetLastRun"

	_, err := s.db.Exec(ctx, `
		INSERT INTO ingestion_state (name, last_run_at) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET last_run_at = EXCLUDED.last_run_at
	`, name, at.UTC())
	if err != nil {
		return wrap(op, err)
	}
	return nil
}

package runlog

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/store"
)

// PostgresLog implements Log on the shared pgx pool.
type PostgresLog struct {
	pool store.Pool
}

// NewPostgres creates a run log backed by the given connection pool.
func NewPostgres(pool store.Pool) *PostgresLog {
	return &PostgresLog{pool: pool}
}

func (l *PostgresLog) Start(ctx context.Context, stage string) (int64, error) {
	var id int64
	err := l.pool.QueryRow(ctx,
		`INSERT INTO pipeline_runs (stage, status, started_at)
		 VALUES ($1, $2, now()) RETURNING id`,
		stage, StatusRunning,
	).Scan(&id)
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s", stage)
	}
	return id, nil
}

func (l *PostgresLog) Complete(ctx context.Context, runID int64, counts map[string]int64) error {
	var countsJSON []byte
	if counts != nil {
		var err error
		countsJSON, err = json.Marshal(counts)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal counts")
		}
	}
	_, err := l.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, completed_at = now(), counts = $2 WHERE id = $3`,
		StatusComplete, countsJSON, runID)
	return eris.Wrapf(err, "runlog: complete run %d", runID)
}

func (l *PostgresLog) Fail(ctx context.Context, runID int64, errMsg string) error {
	_, err := l.pool.Exec(ctx,
		`UPDATE pipeline_runs SET status = $1, completed_at = now(), error = $2 WHERE id = $3`,
		StatusFailed, errMsg, runID)
	return eris.Wrapf(err, "runlog: fail run %d", runID)
}

func (l *PostgresLog) LastSuccess(ctx context.Context, stage string) (*time.Time, error) {
	var t time.Time
	err := l.pool.QueryRow(ctx,
		`SELECT started_at FROM pipeline_runs
		 WHERE stage = $1 AND status = $2
		 ORDER BY started_at DESC LIMIT 1`,
		stage, StatusComplete,
	).Scan(&t)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", stage)
	}
	return &t, nil
}

func (l *PostgresLog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.pool.Query(ctx,
		`SELECT id, stage, status, started_at, completed_at, counts, error
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var errStr *string
		var countsJSON []byte
		if err := rows.Scan(&e.ID, &e.Stage, &e.Status, &e.StartedAt, &e.CompletedAt, &countsJSON, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if errStr != nil {
			e.Error = *errStr
		}
		if countsJSON != nil {
			_ = json.Unmarshal(countsJSON, &e.Counts)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: list iterate")
}

package runlog

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
)

// SQLiteLog implements Log on the shared database/sql handle.
type SQLiteLog struct {
	db *sql.DB
}

// NewSQLite creates a run log backed by the given SQLite handle.
func NewSQLite(db *sql.DB) *SQLiteLog {
	return &SQLiteLog{db: db}
}

func (l *SQLiteLog) Start(ctx context.Context, stage string) (int64, error) {
	res, err := l.db.ExecContext(ctx,
		`INSERT INTO pipeline_runs (stage, status, started_at) VALUES (?, ?, ?)`,
		stage, StatusRunning, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrapf(err, "runlog: start %s", stage)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, eris.Wrap(err, "runlog: last insert id")
	}
	return id, nil
}

func (l *SQLiteLog) Complete(ctx context.Context, runID int64, counts map[string]int64) error {
	var countsJSON sql.NullString
	if counts != nil {
		b, err := json.Marshal(counts)
		if err != nil {
			return eris.Wrap(err, "runlog: marshal counts")
		}
		countsJSON = sql.NullString{String: string(b), Valid: true}
	}
	_, err := l.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, completed_at = ?, counts = ? WHERE id = ?`,
		StatusComplete, time.Now().UTC(), countsJSON, runID)
	return eris.Wrapf(err, "runlog: complete run %d", runID)
}

func (l *SQLiteLog) Fail(ctx context.Context, runID int64, errMsg string) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE pipeline_runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		StatusFailed, time.Now().UTC(), errMsg, runID)
	return eris.Wrapf(err, "runlog: fail run %d", runID)
}

func (l *SQLiteLog) LastSuccess(ctx context.Context, stage string) (*time.Time, error) {
	var t time.Time
	err := l.db.QueryRowContext(ctx,
		`SELECT started_at FROM pipeline_runs
		 WHERE stage = ? AND status = ?
		 ORDER BY started_at DESC LIMIT 1`,
		stage, StatusComplete,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: last success for %s", stage)
	}
	return &t, nil
}

func (l *SQLiteLog) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx,
		`SELECT id, stage, status, started_at, completed_at, counts, error
		 FROM pipeline_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "runlog: list")
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var completedAt sql.NullTime
		var countsJSON, errStr sql.NullString
		if err := rows.Scan(&e.ID, &e.Stage, &e.Status, &e.StartedAt, &completedAt, &countsJSON, &errStr); err != nil {
			return nil, eris.Wrap(err, "runlog: scan entry")
		}
		if completedAt.Valid {
			t := completedAt.Time
			e.CompletedAt = &t
		}
		if errStr.Valid {
			e.Error = errStr.String
		}
		if countsJSON.Valid {
			_ = json.Unmarshal([]byte(countsJSON.String), &e.Counts)
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "runlog: list iterate")
}

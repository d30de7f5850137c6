package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/staffloop/intel-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. It is the
// single-operator deployment path; semantics match the Postgres backend
// exactly, with merge arithmetic done in Go inside transactions where
// Postgres uses ON CONFLICT expressions.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the underlying handle for collaborators that share the
// connection (run log).
func (s *SQLiteStore) DB() *sql.DB { return s.db }

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS mailboxes (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	address        TEXT NOT NULL UNIQUE,
	display_name   TEXT NOT NULL DEFAULT '',
	active         INTEGER NOT NULL DEFAULT 1,
	last_synced_at DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS raw_messages (
	id                  INTEGER PRIMARY KEY AUTOINCREMENT,
	mailbox_id          INTEGER NOT NULL REFERENCES mailboxes(id),
	provider_message_id TEXT NOT NULL,
	folder              TEXT NOT NULL DEFAULT '',
	from_address        TEXT NOT NULL,
	from_name           TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	body_excerpt        TEXT NOT NULL DEFAULT '',
	outbound            INTEGER NOT NULL DEFAULT 0,
	sent_at             DATETIME NOT NULL,
	category            TEXT,
	ingested_at         DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (mailbox_id, provider_message_id)
);
CREATE INDEX IF NOT EXISTS idx_raw_messages_category ON raw_messages(category);
CREATE INDEX IF NOT EXISTS idx_raw_messages_from ON raw_messages(from_address);

CREATE TABLE IF NOT EXISTS vendor_companies (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	domain      TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email_count INTEGER NOT NULL DEFAULT 0,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS vendor_contacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id  INTEGER NOT NULL REFERENCES vendor_companies(id),
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	email_count INTEGER NOT NULL DEFAULT 0,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS client_companies (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	domain      TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email_count INTEGER NOT NULL DEFAULT 0,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS client_contacts (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	company_id  INTEGER NOT NULL REFERENCES client_companies(id),
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	email_count INTEGER NOT NULL DEFAULT 0,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS consultants (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	alt_emails  TEXT NOT NULL DEFAULT '[]',
	skills      TEXT NOT NULL DEFAULT '[]',
	email_count INTEGER NOT NULL DEFAULT 0,
	first_seen  DATETIME NOT NULL,
	last_seen   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS requisition_signals (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	message_id        INTEGER NOT NULL UNIQUE REFERENCES raw_messages(id),
	vendor_company_id INTEGER REFERENCES vendor_companies(id),
	vendor_contact_id INTEGER REFERENCES vendor_contacts(id),
	title             TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	rate_text         TEXT NOT NULL DEFAULT '',
	employment_type   TEXT NOT NULL DEFAULT '',
	skills            TEXT NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT 'NEW',
	actionability     REAL,
	closure_score     REAL NOT NULL DEFAULT 0,
	closure_tier      TEXT NOT NULL DEFAULT '',
	received_at       DATETIME NOT NULL,
	created_at        DATETIME NOT NULL DEFAULT (datetime('now'))
);
CREATE INDEX IF NOT EXISTS idx_signals_unscored ON requisition_signals(id) WHERE actionability IS NULL;
CREATE INDEX IF NOT EXISTS idx_signals_received ON requisition_signals(received_at);
CREATE INDEX IF NOT EXISTS idx_signals_vendor ON requisition_signals(vendor_company_id);

CREATE TABLE IF NOT EXISTS vendor_trust_scores (
	vendor_company_id INTEGER PRIMARY KEY REFERENCES vendor_companies(id),
	score             REAL NOT NULL,
	tier              TEXT NOT NULL,
	breakdown         TEXT NOT NULL DEFAULT '{}',
	computed_at       DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS recruiters (
	id     INTEGER PRIMARY KEY AUTOINCREMENT,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL UNIQUE,
	active INTEGER NOT NULL DEFAULT 1
);

CREATE TABLE IF NOT EXISTS queue_assignments (
	id            TEXT PRIMARY KEY,
	recruiter_id  INTEGER NOT NULL REFERENCES recruiters(id),
	signal_id     INTEGER NOT NULL REFERENCES requisition_signals(id),
	assigned_date TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'ASSIGNED',
	closure_score REAL NOT NULL DEFAULT 0,
	created_at    DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (recruiter_id, signal_id, assigned_date)
);
CREATE INDEX IF NOT EXISTS idx_assignments_date ON queue_assignments(assigned_date);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	signal_id  INTEGER NOT NULL REFERENCES requisition_signals(id),
	title      TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	rate_text  TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	completed_at DATETIME,
	counts       TEXT,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_stage ON pipeline_runs(stage, started_at DESC);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Mailboxes

func (s *SQLiteStore) ListMailboxes(ctx context.Context, activeOnly bool) ([]model.Mailbox, error) {
	query := `SELECT id, address, display_name, active, last_synced_at, created_at FROM mailboxes`
	if activeOnly {
		query += ` WHERE active = 1`
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list mailboxes")
	}
	defer rows.Close()

	var out []model.Mailbox
	for rows.Next() {
		var m model.Mailbox
		var synced sql.NullTime
		if err := rows.Scan(&m.ID, &m.Address, &m.DisplayName, &m.Active, &synced, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan mailbox")
		}
		if synced.Valid {
			t := synced.Time
			m.LastSyncedAt = &t
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list mailboxes iterate")
}

func (s *SQLiteStore) CreateMailbox(ctx context.Context, address, displayName string) (*model.Mailbox, error) {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO mailboxes (address, display_name, created_at) VALUES (?, ?, ?)
		 ON CONFLICT (address) DO UPDATE SET display_name = excluded.display_name`,
		address, displayName, now)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: create mailbox %s", address)
	}

	var m model.Mailbox
	var synced sql.NullTime
	err = s.db.QueryRowContext(ctx,
		`SELECT id, address, display_name, active, last_synced_at, created_at FROM mailboxes WHERE address = ?`,
		address,
	).Scan(&m.ID, &m.Address, &m.DisplayName, &m.Active, &synced, &m.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: read back mailbox %s", address)
	}
	if synced.Valid {
		t := synced.Time
		m.LastSyncedAt = &t
	}
	return &m, nil
}

func (s *SQLiteStore) UpdateMailboxWatermark(ctx context.Context, mailboxID int64, syncedAt time.Time) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE mailboxes SET last_synced_at = ? WHERE id = ?`,
		syncedAt.UTC(), mailboxID)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update watermark for mailbox %d", mailboxID)
	}
	return checkRowsAffected(res, "mailbox", mailboxID)
}

// Raw messages

func (s *SQLiteStore) InsertMessage(ctx context.Context, m *model.RawMessage) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO raw_messages
		 (mailbox_id, provider_message_id, folder, from_address, from_name, subject, body_excerpt, outbound, sent_at, ingested_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (mailbox_id, provider_message_id) DO NOTHING`,
		m.MailboxID, m.ProviderMessageID, m.Folder, m.FromAddress, m.FromName,
		m.Subject, m.BodyExcerpt, m.Outbound, m.SentAt.UTC(), time.Now().UTC())
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert message %s", m.ProviderMessageID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return false, nil // duplicate: re-ingestion is a no-op
	}
	id, err := res.LastInsertId()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: last insert id")
	}
	m.ID = id
	return true, nil
}

func (s *SQLiteStore) ListMessages(ctx context.Context, f MessageFilter) ([]model.RawMessage, error) {
	var w whereBuilder
	if f.Unclassified {
		w.where("m.category IS NULL")
	}
	if f.Category != nil {
		w.where("m.category = %s", string(*f.Category))
	}
	if f.WithoutSignal {
		w.where("NOT EXISTS (SELECT 1 FROM requisition_signals rs WHERE rs.message_id = m.id)")
	}
	if f.AfterID > 0 {
		w.where("m.id > %s", f.AfterID)
	}

	clause, args := w.build(0)
	query := `SELECT m.id, m.mailbox_id, m.provider_message_id, m.folder, m.from_address, m.from_name,
	          m.subject, m.body_excerpt, m.outbound, m.sent_at, m.category, m.ingested_at
	          FROM raw_messages m` + clause + ` ORDER BY m.id LIMIT ?`
	args = append(args, clampLimit(f.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list messages")
	}
	defer rows.Close()

	var out []model.RawMessage
	for rows.Next() {
		var m model.RawMessage
		var cat sql.NullString
		if err := rows.Scan(&m.ID, &m.MailboxID, &m.ProviderMessageID, &m.Folder, &m.FromAddress,
			&m.FromName, &m.Subject, &m.BodyExcerpt, &m.Outbound, &m.SentAt, &cat, &m.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan message")
		}
		if cat.Valid {
			c := model.Category(cat.String)
			m.Category = &c
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list messages iterate")
}

func (s *SQLiteStore) SetMessageCategory(ctx context.Context, messageID int64, c model.Category) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE raw_messages SET category = ? WHERE id = ?`,
		string(c), messageID)
	return eris.Wrapf(err, "sqlite: set category for message %d", messageID)
}

func (s *SQLiteStore) CountMessagesByCategory(ctx context.Context) (map[model.Category]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM raw_messages WHERE category IS NOT NULL GROUP BY category`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by category")
	}
	defer rows.Close()

	out := make(map[model.Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan category count")
		}
		out[model.Category(cat)] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: count by category iterate")
}

// helpers

func checkRowsAffected(res sql.Result, entity string, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %d", entity, id)
	}
	return nil
}

package store

import (
	"context"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/staffloop/intel-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses. pgxmock satisfies
// it for unit tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store on a pgx connection pool.
type PostgresStore struct {
	pool Pool
}

// NewPostgres connects to Postgres and verifies the connection.
func NewPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

// NewPostgresFromPool wraps an existing pool (used by tests).
func NewPostgresFromPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// DB exposes the underlying pool for collaborators that share the
// connection (run log).
func (s *PostgresStore) DB() Pool { return s.pool }

const postgresMigration = `
CREATE TABLE IF NOT EXISTS mailboxes (
	id             BIGSERIAL PRIMARY KEY,
	address        TEXT NOT NULL UNIQUE,
	display_name   TEXT NOT NULL DEFAULT '',
	active         BOOLEAN NOT NULL DEFAULT TRUE,
	last_synced_at TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS raw_messages (
	id                  BIGSERIAL PRIMARY KEY,
	mailbox_id          BIGINT NOT NULL REFERENCES mailboxes(id),
	provider_message_id TEXT NOT NULL,
	folder              TEXT NOT NULL DEFAULT '',
	from_address        TEXT NOT NULL,
	from_name           TEXT NOT NULL DEFAULT '',
	subject             TEXT NOT NULL DEFAULT '',
	body_excerpt        TEXT NOT NULL DEFAULT '',
	outbound            BOOLEAN NOT NULL DEFAULT FALSE,
	sent_at             TIMESTAMPTZ NOT NULL,
	category            TEXT,
	ingested_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (mailbox_id, provider_message_id)
);
CREATE INDEX IF NOT EXISTS idx_raw_messages_category ON raw_messages(category);
CREATE INDEX IF NOT EXISTS idx_raw_messages_from ON raw_messages(from_address);

CREATE TABLE IF NOT EXISTS vendor_companies (
	id          BIGSERIAL PRIMARY KEY,
	domain      TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email_count BIGINT NOT NULL DEFAULT 0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS vendor_contacts (
	id          BIGSERIAL PRIMARY KEY,
	company_id  BIGINT NOT NULL REFERENCES vendor_companies(id),
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	email_count BIGINT NOT NULL DEFAULT 0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS client_companies (
	id          BIGSERIAL PRIMARY KEY,
	domain      TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL,
	email_count BIGINT NOT NULL DEFAULT 0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS client_contacts (
	id          BIGSERIAL PRIMARY KEY,
	company_id  BIGINT NOT NULL REFERENCES client_companies(id),
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	email_count BIGINT NOT NULL DEFAULT 0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS consultants (
	id          BIGSERIAL PRIMARY KEY,
	email       TEXT NOT NULL UNIQUE,
	name        TEXT NOT NULL DEFAULT '',
	phone       TEXT NOT NULL DEFAULT '',
	alt_emails  JSONB NOT NULL DEFAULT '[]',
	skills      JSONB NOT NULL DEFAULT '[]',
	email_count BIGINT NOT NULL DEFAULT 0,
	first_seen  TIMESTAMPTZ NOT NULL,
	last_seen   TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS requisition_signals (
	id                BIGSERIAL PRIMARY KEY,
	message_id        BIGINT NOT NULL UNIQUE REFERENCES raw_messages(id),
	vendor_company_id BIGINT REFERENCES vendor_companies(id),
	vendor_contact_id BIGINT REFERENCES vendor_contacts(id),
	title             TEXT NOT NULL DEFAULT '',
	location          TEXT NOT NULL DEFAULT '',
	rate_text         TEXT NOT NULL DEFAULT '',
	employment_type   TEXT NOT NULL DEFAULT '',
	skills            JSONB NOT NULL DEFAULT '[]',
	status            TEXT NOT NULL DEFAULT 'NEW',
	actionability     DOUBLE PRECISION,
	closure_score     DOUBLE PRECISION NOT NULL DEFAULT 0,
	closure_tier      TEXT NOT NULL DEFAULT '',
	received_at       TIMESTAMPTZ NOT NULL,
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_signals_unscored ON requisition_signals(id) WHERE actionability IS NULL;
CREATE INDEX IF NOT EXISTS idx_signals_received ON requisition_signals(received_at);
CREATE INDEX IF NOT EXISTS idx_signals_vendor ON requisition_signals(vendor_company_id);

CREATE TABLE IF NOT EXISTS vendor_trust_scores (
	vendor_company_id BIGINT PRIMARY KEY REFERENCES vendor_companies(id),
	score             DOUBLE PRECISION NOT NULL,
	tier              TEXT NOT NULL,
	breakdown         JSONB NOT NULL DEFAULT '{}',
	computed_at       TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recruiters (
	id     BIGSERIAL PRIMARY KEY,
	name   TEXT NOT NULL,
	email  TEXT NOT NULL UNIQUE,
	active BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE TABLE IF NOT EXISTS queue_assignments (
	id            TEXT PRIMARY KEY,
	recruiter_id  BIGINT NOT NULL REFERENCES recruiters(id),
	signal_id     BIGINT NOT NULL REFERENCES requisition_signals(id),
	assigned_date TEXT NOT NULL,
	status        TEXT NOT NULL DEFAULT 'ASSIGNED',
	closure_score DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (recruiter_id, signal_id, assigned_date)
);
CREATE INDEX IF NOT EXISTS idx_assignments_date ON queue_assignments(assigned_date);

CREATE TABLE IF NOT EXISTS jobs (
	id         TEXT PRIMARY KEY,
	tenant_id  TEXT NOT NULL,
	signal_id  BIGINT NOT NULL REFERENCES requisition_signals(id),
	title      TEXT NOT NULL,
	location   TEXT NOT NULL DEFAULT '',
	rate_text  TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS pipeline_runs (
	id           BIGSERIAL PRIMARY KEY,
	stage        TEXT NOT NULL,
	status       TEXT NOT NULL,
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	counts       JSONB,
	error        TEXT
);
CREATE INDEX IF NOT EXISTS idx_pipeline_runs_stage ON pipeline_runs(stage, started_at DESC);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Mailboxes

func (s *PostgresStore) ListMailboxes(ctx context.Context, activeOnly bool) ([]model.Mailbox, error) {
	query := `SELECT id, address, display_name, active, last_synced_at, created_at FROM mailboxes`
	if activeOnly {
		query += ` WHERE active`
	}
	query += ` ORDER BY id`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list mailboxes")
	}
	defer rows.Close()

	var out []model.Mailbox
	for rows.Next() {
		var m model.Mailbox
		if err := rows.Scan(&m.ID, &m.Address, &m.DisplayName, &m.Active, &m.LastSyncedAt, &m.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan mailbox")
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list mailboxes iterate")
}

func (s *PostgresStore) CreateMailbox(ctx context.Context, address, displayName string) (*model.Mailbox, error) {
	var m model.Mailbox
	err := s.pool.QueryRow(ctx,
		`INSERT INTO mailboxes (address, display_name) VALUES ($1, $2)
		 ON CONFLICT (address) DO UPDATE SET display_name = EXCLUDED.display_name
		 RETURNING id, address, display_name, active, last_synced_at, created_at`,
		address, displayName,
	).Scan(&m.ID, &m.Address, &m.DisplayName, &m.Active, &m.LastSyncedAt, &m.CreatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: create mailbox %s", address)
	}
	return &m, nil
}

func (s *PostgresStore) UpdateMailboxWatermark(ctx context.Context, mailboxID int64, syncedAt time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE mailboxes SET last_synced_at = $1 WHERE id = $2`,
		syncedAt, mailboxID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update watermark for mailbox %d", mailboxID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("mailbox not found: %d", mailboxID)
	}
	return nil
}

// Raw messages

func (s *PostgresStore) InsertMessage(ctx context.Context, m *model.RawMessage) (bool, error) {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO raw_messages
		 (mailbox_id, provider_message_id, folder, from_address, from_name, subject, body_excerpt, outbound, sent_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (mailbox_id, provider_message_id) DO NOTHING
		 RETURNING id`,
		m.MailboxID, m.ProviderMessageID, m.Folder, m.FromAddress, m.FromName,
		m.Subject, m.BodyExcerpt, m.Outbound, m.SentAt,
	).Scan(&m.ID)
	if err == pgx.ErrNoRows {
		return false, nil // duplicate: re-ingestion is a no-op
	}
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert message %s", m.ProviderMessageID)
	}
	return true, nil
}

func (s *PostgresStore) ListMessages(ctx context.Context, f MessageFilter) ([]model.RawMessage, error) {
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

	clause, args := w.build(1)
	limitIdx := w.next(1)
	query := `SELECT m.id, m.mailbox_id, m.provider_message_id, m.folder, m.from_address, m.from_name,
	          m.subject, m.body_excerpt, m.outbound, m.sent_at, m.category, m.ingested_at
	          FROM raw_messages m` + clause +
		` ORDER BY m.id LIMIT $` + itoa(limitIdx)
	args = append(args, clampLimit(f.Limit))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list messages")
	}
	defer rows.Close()

	var out []model.RawMessage
	for rows.Next() {
		var m model.RawMessage
		var cat *string
		if err := rows.Scan(&m.ID, &m.MailboxID, &m.ProviderMessageID, &m.Folder, &m.FromAddress,
			&m.FromName, &m.Subject, &m.BodyExcerpt, &m.Outbound, &m.SentAt, &cat, &m.IngestedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan message")
		}
		if cat != nil {
			c := model.Category(*cat)
			m.Category = &c
		}
		out = append(out, m)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list messages iterate")
}

func (s *PostgresStore) SetMessageCategory(ctx context.Context, messageID int64, c model.Category) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE raw_messages SET category = $1 WHERE id = $2`,
		string(c), messageID,
	)
	return eris.Wrapf(err, "postgres: set category for message %d", messageID)
}

func (s *PostgresStore) CountMessagesByCategory(ctx context.Context) (map[model.Category]int64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT category, COUNT(*) FROM raw_messages WHERE category IS NOT NULL GROUP BY category`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by category")
	}
	defer rows.Close()

	out := make(map[model.Category]int64)
	for rows.Next() {
		var cat string
		var n int64
		if err := rows.Scan(&cat, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan category count")
		}
		out[model.Category(cat)] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: count by category iterate")
}

func itoa(n int) string {
	return strconv.Itoa(n)
}

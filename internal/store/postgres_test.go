package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	return NewPostgresFromPool(mock), mock
}

func TestPostgresStore_InsertMessage_DuplicateIsNoop(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// ON CONFLICT DO NOTHING returns no row for a duplicate.
	mock.ExpectQuery(`INSERT INTO raw_messages`).
		WithArgs(int64(1), "AAMkAGI1", "Inbox", "r@vendor.com", "Rita",
			"Urgent requirement", "body", false, pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	m := &model.RawMessage{
		MailboxID:         1,
		ProviderMessageID: "AAMkAGI1",
		Folder:            "Inbox",
		FromAddress:       "r@vendor.com",
		FromName:          "Rita",
		Subject:           "Urgent requirement",
		BodyExcerpt:       "body",
		SentAt:            time.Now(),
	}
	inserted, err := s.InsertMessage(context.Background(), m)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertMessage_NewRow(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`INSERT INTO raw_messages`).
		WithArgs(int64(1), "x", "", "a@b.com", "", "", "", false, pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"id"}).AddRow(int64(42)))

	m := &model.RawMessage{MailboxID: 1, ProviderMessageID: "x", FromAddress: "a@b.com", SentAt: time.Now()}
	inserted, err := s.InsertMessage(context.Background(), m)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(42), m.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpsertVendorCompany_ReportsInsert(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	mock.ExpectQuery(`INSERT INTO vendor_companies`).
		WithArgs("vendor.com", "Vendor Inc", int64(3), now, now).
		WillReturnRows(pgxmock.NewRows(
			[]string{"id", "domain", "name", "email_count", "first_seen", "last_seen", "inserted"}).
			AddRow(int64(7), "vendor.com", "Vendor Inc", int64(3), now, now, true))

	c, inserted, err := s.UpsertVendorCompany(context.Background(), "vendor.com", "Vendor Inc", 3, now, now)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(7), c.ID)
	assert.Equal(t, int64(3), c.EmailCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetVendorCompanyByDomain_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, domain, name, email_count, first_seen, last_seen`).
		WithArgs("unknown.com").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetVendorCompanyByDomain(context.Background(), "unknown.com")
	require.NoError(t, err)
	assert.Nil(t, c)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateSignalActionability_Missing(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE requisition_signals SET actionability`).
		WithArgs(float64(35), int64(99)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateSignalActionability(context.Background(), 99, 35)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_MarkSignalConverted_AlreadyConverted(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE requisition_signals SET status`).
		WithArgs("CONVERTED", int64(5), "NEW").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.MarkSignalConverted(context.Background(), 5)
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_InsertAssignment_Duplicate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO queue_assignments`).
		WithArgs("qa-1", int64(2), int64(3), "2026-08-28", "ASSIGNED", float64(65)).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	inserted, err := s.InsertAssignment(context.Background(), &model.QueueAssignment{
		ID: "qa-1", RecruiterID: 2, SignalID: 3, AssignedDate: "2026-08-28",
		Status: model.AssignmentAssigned, ClosureScore: 65,
	})
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListUnscoredSignals(t *testing.T) {
	s, mock := newMockPostgresStore(t)
	now := time.Now()

	rows := pgxmock.NewRows([]string{
		"id", "message_id", "vendor_company_id", "vendor_contact_id", "title", "location",
		"rate_text", "employment_type", "skills", "status", "actionability", "closure_score",
		"closure_tier", "received_at", "created_at",
	}).AddRow(int64(1), int64(10), nil, nil, "Java Developer", "Austin, TX",
		"$60/hr", model.EmploymentType("C2C"), []byte(`["Java"]`),
		model.SignalStatus("NEW"), nil, float64(0), "", now, now)

	mock.ExpectQuery(`WHERE actionability IS NULL`).
		WithArgs(50).
		WillReturnRows(rows)

	out, err := s.ListUnscoredSignals(context.Background(), 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "Java Developer", out[0].Title)
	assert.Equal(t, []string{"Java"}, out[0].Skills)
	assert.Zero(t, out[0].Actionability)
	assert.NoError(t, mock.ExpectationsWereMet())
}

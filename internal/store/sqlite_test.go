package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedMailbox(t *testing.T, st *SQLiteStore) *model.Mailbox {
	t.Helper()
	mb, err := st.CreateMailbox(context.Background(), "sales@staffloop.io", "Sales")
	require.NoError(t, err)
	return mb
}

func seedMessage(t *testing.T, st *SQLiteStore, mb *model.Mailbox, providerID, from string) *model.RawMessage {
	t.Helper()
	m := &model.RawMessage{
		MailboxID:         mb.ID,
		ProviderMessageID: providerID,
		Folder:            "Inbox",
		FromAddress:       from,
		Subject:           "Urgent requirement: Java Developer",
		SentAt:            time.Now().UTC().Add(-time.Hour),
	}
	inserted, err := st.InsertMessage(context.Background(), m)
	require.NoError(t, err)
	require.True(t, inserted)
	return m
}

// --- Mailboxes ---

func TestSQLite_CreateMailbox_UpsertsOnAddress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	mb1, err := st.CreateMailbox(ctx, "sales@staffloop.io", "Sales")
	require.NoError(t, err)
	mb2, err := st.CreateMailbox(ctx, "sales@staffloop.io", "Sales Team")
	require.NoError(t, err)

	assert.Equal(t, mb1.ID, mb2.ID)
	assert.Equal(t, "Sales Team", mb2.DisplayName)

	boxes, err := st.ListMailboxes(ctx, true)
	require.NoError(t, err)
	assert.Len(t, boxes, 1)
}

func TestSQLite_UpdateMailboxWatermark(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, st.UpdateMailboxWatermark(ctx, mb.ID, now))

	boxes, err := st.ListMailboxes(ctx, false)
	require.NoError(t, err)
	require.Len(t, boxes, 1)
	require.NotNil(t, boxes[0].LastSyncedAt)
	assert.WithinDuration(t, now, *boxes[0].LastSyncedAt, time.Second)
}

func TestSQLite_UpdateMailboxWatermark_Missing(t *testing.T) {
	st := newTestSQLiteStore(t)
	err := st.UpdateMailboxWatermark(context.Background(), 999, time.Now())
	require.Error(t, err)
}

// --- Raw messages ---

func TestSQLite_InsertMessage_DeduplicatesByProviderID(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	m := &model.RawMessage{
		MailboxID:         mb.ID,
		ProviderMessageID: "AAMkAGI1",
		FromAddress:       "recruiter@vendor.com",
		SentAt:            time.Now().UTC(),
	}
	inserted, err := st.InsertMessage(ctx, m)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, m.ID)

	dup := &model.RawMessage{
		MailboxID:         mb.ID,
		ProviderMessageID: "AAMkAGI1",
		FromAddress:       "recruiter@vendor.com",
		SentAt:            time.Now().UTC(),
	}
	inserted, err = st.InsertMessage(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted, "re-ingesting the same provider message must be a no-op")

	msgs, err := st.ListMessages(ctx, MessageFilter{})
	require.NoError(t, err)
	assert.Len(t, msgs, 1)
}

func TestSQLite_ListMessages_UnclassifiedFilter(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	m1 := seedMessage(t, st, mb, "msg-1", "a@vendor.com")
	seedMessage(t, st, mb, "msg-2", "b@vendor.com")

	require.NoError(t, st.SetMessageCategory(ctx, m1.ID, model.CategoryVendorReq))

	unclassified, err := st.ListMessages(ctx, MessageFilter{Unclassified: true})
	require.NoError(t, err)
	require.Len(t, unclassified, 1)
	assert.Equal(t, "msg-2", unclassified[0].ProviderMessageID)

	cat := model.CategoryVendorReq
	classified, err := st.ListMessages(ctx, MessageFilter{Category: &cat})
	require.NoError(t, err)
	require.Len(t, classified, 1)
	assert.Equal(t, m1.ID, classified[0].ID)
}

func TestSQLite_ListMessages_KeysetPagination(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	for i := 0; i < 5; i++ {
		seedMessage(t, st, mb, "msg-"+string(rune('a'+i)), "x@vendor.com")
	}

	page1, err := st.ListMessages(ctx, MessageFilter{Limit: 2})
	require.NoError(t, err)
	require.Len(t, page1, 2)

	page2, err := st.ListMessages(ctx, MessageFilter{AfterID: page1[1].ID, Limit: 2})
	require.NoError(t, err)
	require.Len(t, page2, 2)
	assert.Greater(t, page2[0].ID, page1[1].ID)
}

func TestSQLite_CountMessagesByCategory(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	m1 := seedMessage(t, st, mb, "m1", "a@v.com")
	m2 := seedMessage(t, st, mb, "m2", "b@v.com")
	seedMessage(t, st, mb, "m3", "c@v.com") // stays unclassified

	require.NoError(t, st.SetMessageCategory(ctx, m1.ID, model.CategoryVendorReq))
	require.NoError(t, st.SetMessageCategory(ctx, m2.ID, model.CategoryPersonal))

	counts, err := st.CountMessagesByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[model.CategoryVendorReq])
	assert.Equal(t, int64(1), counts[model.CategoryPersonal])
	assert.Len(t, counts, 2)
}

// --- Entity merge invariants ---

func TestSQLite_UpsertVendorCompany_MergesMonotonically(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	early := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	late := time.Date(2026, 3, 5, 0, 0, 0, 0, time.UTC)

	c1, inserted, err := st.UpsertVendorCompany(ctx, "vendor.com", "Vendor Inc", 3, late, late)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, int64(3), c1.EmailCount)

	// The corpus grew: the recomputed aggregate moves the count up and
	// first_seen back, last_seen must not move back.
	c2, inserted, err := st.UpsertVendorCompany(ctx, "vendor.com", "Vendor Inc", 5, early, early)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, c1.ID, c2.ID)
	assert.Equal(t, int64(5), c2.EmailCount)
	assert.WithinDuration(t, early, c2.FirstSeen, time.Second)
	assert.WithinDuration(t, late, c2.LastSeen, time.Second)

	// Replaying the same aggregate changes nothing.
	c3, _, err := st.UpsertVendorCompany(ctx, "vendor.com", "Vendor Inc", 5, early, early)
	require.NoError(t, err)
	assert.Equal(t, int64(5), c3.EmailCount)
	assert.WithinDuration(t, early, c3.FirstSeen, time.Second)
	assert.WithinDuration(t, late, c3.LastSeen, time.Second)
}

func TestSQLite_UpsertVendorContact_KeepsOriginalCompany(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v1, _, err := st.UpsertVendorCompany(ctx, "first.com", "First", 1, now, now)
	require.NoError(t, err)
	v2, _, err := st.UpsertVendorCompany(ctx, "second.com", "Second", 1, now, now)
	require.NoError(t, err)

	ct, inserted, err := st.UpsertVendorContact(ctx, v1.ID, "r@first.com", "Rita", 1, now, now)
	require.NoError(t, err)
	assert.True(t, inserted)

	// Same contact observed again under a different company keeps its
	// original parent.
	ct2, inserted, err := st.UpsertVendorContact(ctx, v2.ID, "r@first.com", "Rita R", 2, now, now)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, ct.ID, ct2.ID)
	assert.Equal(t, v1.ID, ct2.CompanyID)
	assert.Equal(t, "Rita", ct2.Name, "a filled name is never overwritten")
	assert.Equal(t, int64(2), ct2.EmailCount)
}

func TestSQLite_ListVendorCompanies_ExcludesSystemRows(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, _, err := st.UpsertVendorCompany(ctx, "real.com", "Real Vendor", 5, now, now)
	require.NoError(t, err)
	_, _, err = st.UpsertVendorCompany(ctx, "noreply.internal", model.SystemPrefix+" Mailer Daemon", 50, now, now)
	require.NoError(t, err)

	out, err := st.ListVendorCompanies(ctx, CompanyFilter{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "real.com", out[0].Domain)
}

func TestSQLite_UpsertConsultant_UnionsSkills(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	c := &model.Consultant{
		Email:      "dev@gmail.com",
		Name:       "Dev Kumar",
		Skills:     []string{"Java", "Spring"},
		EmailCount: 1,
		FirstSeen:  now,
		LastSeen:   now,
	}
	inserted, err := st.UpsertConsultant(ctx, c)
	require.NoError(t, err)
	assert.True(t, inserted)

	again := &model.Consultant{
		Email:      "dev@gmail.com",
		Phone:      "(555) 123-4567",
		Skills:     []string{"java", "AWS"}, // "java" is a case-duplicate
		AltEmails:  []string{"dev.alt@gmail.com"},
		EmailCount: 2,
		FirstSeen:  now,
		LastSeen:   now.Add(time.Hour),
	}
	inserted, err = st.UpsertConsultant(ctx, again)
	require.NoError(t, err)
	assert.False(t, inserted)

	list, err := st.ListConsultants(ctx, ConsultantFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	got := list[0]
	assert.Equal(t, "Dev Kumar", got.Name, "existing name survives a blank update")
	assert.Equal(t, "(555) 123-4567", got.Phone)
	assert.ElementsMatch(t, []string{"AWS", "Java", "Spring"}, got.Skills)
	assert.Equal(t, []string{"dev.alt@gmail.com"}, got.AltEmails)
	assert.Equal(t, int64(2), got.EmailCount, "the recomputed aggregate replaces the count")
}

// --- Signals ---

func TestSQLite_InsertSignal_OnePerMessage(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)
	m := seedMessage(t, st, mb, "sig-msg", "r@vendor.com")

	sig := &model.RequisitionSignal{
		MessageID:  m.ID,
		Title:      "Java Developer",
		ReceivedAt: m.SentAt,
	}
	inserted, err := st.InsertSignal(ctx, sig)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, sig.ID)

	dup := &model.RequisitionSignal{MessageID: m.ID, Title: "Java Dev (retry)", ReceivedAt: m.SentAt}
	inserted, err = st.InsertSignal(ctx, dup)
	require.NoError(t, err)
	assert.False(t, inserted)
}

func TestSQLite_UnscoredSignals_ZeroScoreIsScored(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	m1 := seedMessage(t, st, mb, "u1", "a@v.com")
	m2 := seedMessage(t, st, mb, "u2", "b@v.com")

	s1 := &model.RequisitionSignal{MessageID: m1.ID, Title: "Dev", ReceivedAt: m1.SentAt}
	s2 := &model.RequisitionSignal{MessageID: m2.ID, Title: "QA", ReceivedAt: m2.SentAt}
	_, err := st.InsertSignal(ctx, s1)
	require.NoError(t, err)
	_, err = st.InsertSignal(ctx, s2)
	require.NoError(t, err)

	unscored, err := st.ListUnscoredSignals(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, unscored, 2)

	// A computed score of exactly zero still marks the signal scored.
	require.NoError(t, st.UpdateSignalActionability(ctx, s1.ID, 0))

	unscored, err = st.ListUnscoredSignals(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unscored, 1)
	assert.Equal(t, s2.ID, unscored[0].ID)
}

func TestSQLite_MarkSignalConverted_OnlyOnce(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)
	m := seedMessage(t, st, mb, "conv", "r@v.com")

	sig := &model.RequisitionSignal{MessageID: m.ID, Title: "Dev", ReceivedAt: m.SentAt}
	_, err := st.InsertSignal(ctx, sig)
	require.NoError(t, err)

	require.NoError(t, st.MarkSignalConverted(ctx, sig.ID))
	err = st.MarkSignalConverted(ctx, sig.ID)
	require.Error(t, err, "a converted signal cannot convert again")

	got, err := st.GetSignal(ctx, sig.ID)
	require.NoError(t, err)
	assert.Equal(t, model.SignalStatusConverted, got.Status)
}

func TestSQLite_ListRecentSignals_ExcludesConverted(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	m1 := seedMessage(t, st, mb, "r1", "a@v.com")
	m2 := seedMessage(t, st, mb, "r2", "b@v.com")
	s1 := &model.RequisitionSignal{MessageID: m1.ID, Title: "Dev", ReceivedAt: time.Now().UTC()}
	s2 := &model.RequisitionSignal{MessageID: m2.ID, Title: "QA", ReceivedAt: time.Now().UTC()}
	_, err := st.InsertSignal(ctx, s1)
	require.NoError(t, err)
	_, err = st.InsertSignal(ctx, s2)
	require.NoError(t, err)
	require.NoError(t, st.MarkSignalConverted(ctx, s2.ID))

	recent, err := st.ListRecentSignals(ctx, time.Now().Add(-time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, s1.ID, recent[0].ID)
}

func TestSQLite_VendorSignalStats(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)
	now := time.Now().UTC()

	v, _, err := st.UpsertVendorCompany(ctx, "vendor.com", "Vendor", 1, now, now)
	require.NoError(t, err)
	_, _, err = st.UpsertVendorContact(ctx, v.ID, "r@vendor.com", "Rita", 1, now, now)
	require.NoError(t, err)

	old := now.AddDate(0, -3, 0)
	specs := []struct {
		provider string
		title    string
		rate     string
		location string
		received time.Time
	}{
		{"s1", "Java Developer", "$60/hr", "Austin, TX", now},
		{"s2", "Java Developer", "", "", now},
		{"s3", "Data Engineer", "$70/hr", "", old},
	}
	for _, sp := range specs {
		m := seedMessage(t, st, mb, sp.provider, "r@vendor.com")
		sig := &model.RequisitionSignal{
			MessageID:       m.ID,
			VendorCompanyID: &v.ID,
			Title:           sp.title,
			RateText:        sp.rate,
			Location:        sp.location,
			ReceivedAt:      sp.received,
		}
		_, err := st.InsertSignal(ctx, sig)
		require.NoError(t, err)
	}

	stats, err := st.VendorSignalStats(ctx, v.ID, now.AddDate(0, -1, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.LifetimeSignals)
	assert.Equal(t, int64(2), stats.RecentSignals)
	assert.Equal(t, int64(2), stats.DistinctTitles)
	assert.Equal(t, int64(2), stats.RateDisclosed)
	assert.Equal(t, int64(1), stats.LocationGiven)
	assert.Equal(t, int64(1), stats.ContactCount)
}

// --- Trust scores ---

func TestSQLite_UpsertVendorTrustScore_Overwrites(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	v, _, err := st.UpsertVendorCompany(ctx, "vendor.com", "Vendor", 1, now, now)
	require.NoError(t, err)

	ts := &model.VendorTrustScore{
		VendorCompanyID: v.ID,
		Score:           40,
		Tier:            model.TrustTierLow,
		Breakdown:       model.TrustBreakdown{LifetimeVolume: 10},
		ComputedAt:      now,
	}
	require.NoError(t, st.UpsertVendorTrustScore(ctx, ts))

	ts.Score = 80
	ts.Tier = model.TrustTierHigh
	require.NoError(t, st.UpsertVendorTrustScore(ctx, ts))

	got, err := st.GetVendorTrustScore(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, float64(80), got.Score)
	assert.Equal(t, model.TrustTierHigh, got.Tier)
	assert.Equal(t, float64(10), got.Breakdown.LifetimeVolume)

	all, err := st.ListVendorTrustScores(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

// --- Queue ---

func TestSQLite_InsertAssignment_Unique(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)
	m := seedMessage(t, st, mb, "qa1", "r@v.com")

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO recruiters (name, email) VALUES ('Pat', 'pat@staffloop.io')`)
	require.NoError(t, err)
	recruiters, err := st.ListRecruiters(ctx, true)
	require.NoError(t, err)
	require.Len(t, recruiters, 1)

	sig := &model.RequisitionSignal{MessageID: m.ID, Title: "Dev", ReceivedAt: time.Now().UTC()}
	_, err = st.InsertSignal(ctx, sig)
	require.NoError(t, err)

	a := &model.QueueAssignment{
		ID:           "qa-test-1",
		RecruiterID:  recruiters[0].ID,
		SignalID:     sig.ID,
		AssignedDate: "2026-08-28",
		Status:       model.AssignmentAssigned,
		ClosureScore: 65,
	}
	inserted, err := st.InsertAssignment(ctx, a)
	require.NoError(t, err)
	assert.True(t, inserted)

	dup := *a
	dup.ID = "qa-test-2"
	inserted, err = st.InsertAssignment(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, inserted, "same recruiter, signal, and date is a duplicate")

	counts, err := st.CountAssignmentsByRecruiter(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[recruiters[0].ID])

	assigned, err := st.ListAssignedSignalIDs(ctx, "2026-08-28")
	require.NoError(t, err)
	assert.True(t, assigned[sig.ID])
}

func TestSQLite_RecruiterSkillProfiles_SubmittedOnly(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()
	mb := seedMailbox(t, st)

	_, err := st.db.ExecContext(ctx,
		`INSERT INTO recruiters (name, email) VALUES ('Pat', 'pat@staffloop.io')`)
	require.NoError(t, err)
	recruiters, err := st.ListRecruiters(ctx, true)
	require.NoError(t, err)
	rid := recruiters[0].ID

	m1 := seedMessage(t, st, mb, "sp1", "a@v.com")
	m2 := seedMessage(t, st, mb, "sp2", "b@v.com")
	s1 := &model.RequisitionSignal{MessageID: m1.ID, Title: "Dev", Skills: []string{"Java", "AWS"}, ReceivedAt: time.Now().UTC()}
	s2 := &model.RequisitionSignal{MessageID: m2.ID, Title: "QA", Skills: []string{"Selenium"}, ReceivedAt: time.Now().UTC()}
	_, err = st.InsertSignal(ctx, s1)
	require.NoError(t, err)
	_, err = st.InsertSignal(ctx, s2)
	require.NoError(t, err)

	_, err = st.InsertAssignment(ctx, &model.QueueAssignment{
		ID: "a1", RecruiterID: rid, SignalID: s1.ID, AssignedDate: "2026-08-27", Status: model.AssignmentAssigned})
	require.NoError(t, err)
	_, err = st.InsertAssignment(ctx, &model.QueueAssignment{
		ID: "a2", RecruiterID: rid, SignalID: s2.ID, AssignedDate: "2026-08-27", Status: model.AssignmentAssigned})
	require.NoError(t, err)

	// Only the submitted assignment contributes to the profile.
	_, err = st.db.ExecContext(ctx, `UPDATE queue_assignments SET status = 'SUBMITTED' WHERE id = 'a1'`)
	require.NoError(t, err)

	profiles, err := st.RecruiterSkillProfiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"AWS", "Java"}, profiles[rid])
}

// --- Migrate ---

func TestSQLite_Migrate_Idempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	require.NoError(t, st.Migrate(context.Background()))
}

package classify

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seed(t *testing.T, st *store.SQLiteStore, providerID, from, subject, body string) {
	t.Helper()
	mb, err := st.CreateMailbox(context.Background(), "sales@staffloop.io", "Sales")
	require.NoError(t, err)
	_, err = st.InsertMessage(context.Background(), &model.RawMessage{
		MailboxID:         mb.ID,
		ProviderMessageID: providerID,
		FromAddress:       from,
		Subject:           subject,
		BodyExcerpt:       body,
		SentAt:            time.Now().UTC(),
	})
	require.NoError(t, err)
}

func TestEngine_Incremental_SkipsClassified(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	e := NewEngine(st, New("staffloop.io"), 2)

	seed(t, st, "m1", "rita@vendor.com", "Urgent requirement: Java", "Rate: $60/hr")
	seed(t, st, "m2", "pat@staffloop.io", "Standup notes", "")
	seed(t, st, "m3", "friend@gmail.com", "Lunch?", "")

	res, err := e.Incremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Processed)
	assert.Equal(t, int64(1), res.ByCategory[model.CategoryVendorReq])
	assert.Equal(t, int64(1), res.ByCategory[model.CategoryInternal])
	assert.Equal(t, int64(1), res.ByCategory[model.CategoryPersonal])

	// A second incremental pass finds nothing left to do.
	res, err = e.Incremental(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Processed)
}

func TestEngine_FullAndIncrementalAgree(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	e := NewEngine(st, New("staffloop.io"), 500)

	seed(t, st, "m1", "rita@vendor.com", "Urgent requirement: Java", "Rate: $60/hr on C2C")
	seed(t, st, "m2", "dev@gmail.com", "Resume - Dev Kumar", "8 years of experience")

	incr, err := e.Incremental(ctx)
	require.NoError(t, err)

	full, err := e.Full(ctx)
	require.NoError(t, err)

	assert.Equal(t, incr.ByCategory, full.ByCategory,
		"reclassifying the same corpus yields the same distribution")
	assert.Equal(t, int64(2), full.Processed)
}

func TestEngine_BatchesThroughWholeBacklog(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	e := NewEngine(st, New("staffloop.io"), 3)

	for i := 0; i < 10; i++ {
		seed(t, st, "bulk-"+string(rune('a'+i)), "rita@vendor.com", "Urgent requirement", "Rate: $60/hr")
	}

	res, err := e.Incremental(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), res.Processed, "a batch size smaller than the backlog still drains it")

	counts, err := st.CountMessagesByCategory(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(10), counts[model.CategoryVendorReq])
}

func TestResult_Counts(t *testing.T) {
	r := &Result{
		Processed: 5,
		ByCategory: map[model.Category]int64{
			model.CategoryVendorReq: 3,
			model.CategoryPersonal:  2,
		},
	}
	counts := r.Counts()
	assert.Equal(t, int64(5), counts["processed"])
	assert.Equal(t, int64(3), counts["VENDOR_REQ"])
	assert.Equal(t, int64(2), counts["PERSONAL"])
}

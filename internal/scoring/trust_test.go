package scoring

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

// seedSignal inserts a signal backed by its own raw message.
func seedSignal(t *testing.T, st *store.SQLiteStore, providerID string, s *model.RequisitionSignal) int64 {
	t.Helper()
	ctx := context.Background()
	mb, err := st.CreateMailbox(ctx, "sales@staffloop.io", "Sales")
	require.NoError(t, err)
	m := &model.RawMessage{
		MailboxID:         mb.ID,
		ProviderMessageID: providerID,
		FromAddress:       "rita@talent-bridge.com",
		Subject:           s.Title,
		SentAt:            s.ReceivedAt,
	}
	_, err = st.InsertMessage(ctx, m)
	require.NoError(t, err)
	s.MessageID = m.ID
	inserted, err := st.InsertSignal(ctx, s)
	require.NoError(t, err)
	require.True(t, inserted)
	return s.ID
}

func TestTrustBreakdown_Factors(t *testing.T) {
	tests := []struct {
		name  string
		stats store.VendorStats
		want  model.TrustBreakdown
	}{
		{
			name:  "empty vendor floors out",
			stats: store.VendorStats{},
			want:  model.TrustBreakdown{LifetimeVolume: 2, ContactDepth: 2},
		},
		{
			name: "high-volume vendor maxes volume factors",
			stats: store.VendorStats{
				LifetimeSignals: 150, RecentSignals: 12, DistinctTitles: 25,
				RateDisclosed: 150, LocationGiven: 150, ContactCount: 6,
			},
			want: model.TrustBreakdown{
				LifetimeVolume: 25, RecentVolume: 25, TitleDiversity: 15,
				RateDisclosure: 15, LocationRate: 10, ContactDepth: 10,
			},
		},
		{
			name: "partial disclosure scales linearly",
			stats: store.VendorStats{
				LifetimeSignals: 10, RecentSignals: 1, DistinctTitles: 3,
				RateDisclosed: 5, LocationGiven: 2, ContactCount: 2,
			},
			want: model.TrustBreakdown{
				LifetimeVolume: 8, RecentVolume: 8, TitleDiversity: 5,
				RateDisclosure: 7.5, LocationRate: 2, ContactDepth: 6,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trustBreakdown(&tt.stats))
		})
	}
}

func TestTrustBreakdown_TotalNeverExceeds100(t *testing.T) {
	b := trustBreakdown(&store.VendorStats{
		LifetimeSignals: 1000, RecentSignals: 1000, DistinctTitles: 1000,
		RateDisclosed: 1000, LocationGiven: 1000, ContactCount: 1000,
	})
	assert.Equal(t, 100.0, breakdownTotal(b))
}

func TestTrustEngine_Run(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	vendor, _, err := st.UpsertVendorCompany(ctx, "talent-bridge.com", "Talent Bridge", 10, now.AddDate(0, -3, 0), now)
	require.NoError(t, err)
	_, _, err = st.UpsertVendorContact(ctx, vendor.ID, "rita@talent-bridge.com", "Rita", 10, now.AddDate(0, -3, 0), now)
	require.NoError(t, err)

	// Five lifetime signals, three inside the 30-day window, three
	// distinct titles, four with a rate, two with a location.
	mk := func(i int, title, rate, loc string, age time.Duration) *model.RequisitionSignal {
		return &model.RequisitionSignal{
			VendorCompanyID: &vendor.ID,
			Title:           title,
			RateText:        rate,
			Location:        loc,
			Status:          model.SignalStatusNew,
			ReceivedAt:      now.Add(-age),
		}
	}
	seedSignal(t, st, "s1", mk(1, "Java Developer", "$60/hr", "Austin", 24*time.Hour))
	seedSignal(t, st, "s2", mk(2, "Java Developer", "$65/hr", "", 48*time.Hour))
	seedSignal(t, st, "s3", mk(3, "Data Engineer", "$70/hr", "Dallas", 72*time.Hour))
	seedSignal(t, st, "s4", mk(4, "QA Engineer", "$55/hr", "", 60*24*time.Hour))
	seedSignal(t, st, "s5", mk(5, "QA Engineer", "", "", 90*24*time.Hour))

	e := NewTrustEngine(st, 30)
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Computed)

	ts, err := st.GetVendorTrustScore(ctx, vendor.ID)
	require.NoError(t, err)
	require.NotNil(t, ts)

	// 8 (5 lifetime) + 15 (3 recent) + 5 (3 titles) + 12 (80% rate)
	// + 4 (40% location) + 2 (1 contact) = 46.
	assert.InDelta(t, 46, ts.Score, 0.01)
	assert.Equal(t, model.TrustTierMedium, ts.Tier)
	assert.Equal(t, 8.0, ts.Breakdown.LifetimeVolume)
	assert.Equal(t, 15.0, ts.Breakdown.RecentVolume)

	// A second run overwrites rather than duplicates.
	res, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Computed)
	all, err := st.ListVendorTrustScores(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

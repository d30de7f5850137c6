package scoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/model"
)

func TestActionabilityEngine_Run(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	vendor, _, err := st.UpsertVendorCompany(ctx, "talent-bridge.com", "Talent Bridge", 1, now, now)
	require.NoError(t, err)
	contact, _, err := st.UpsertVendorContact(ctx, vendor.ID, "rita@talent-bridge.com", "Rita", 1, now, now)
	require.NoError(t, err)
	require.NoError(t, st.UpsertVendorTrustScore(ctx, &model.VendorTrustScore{
		VendorCompanyID: vendor.ID,
		Score:           72,
		Tier:            model.TrustTierMedium,
		ComputedAt:      now,
	}))

	full := &model.RequisitionSignal{
		VendorCompanyID: &vendor.ID,
		VendorContactID: &contact.ID,
		Title:           "Data Engineer",
		Location:        "Austin, TX",
		RateText:        "$65/hr",
		EmploymentType:  model.EmploymentC2C,
		Skills:          []string{"Spark"},
		Status:          model.SignalStatusNew,
		ReceivedAt:      now,
	}
	fullID := seedSignal(t, st, "a1", full)

	bare := &model.RequisitionSignal{
		Title:      "Java Developer",
		Status:     model.SignalStatusNew,
		ReceivedAt: now,
	}
	bareID := seedSignal(t, st, "a2", bare)

	excluded := &model.RequisitionSignal{
		Title:      "Java Developer - W2 only, no C2C",
		Status:     model.SignalStatusNew,
		ReceivedAt: now,
	}
	excludedID := seedSignal(t, st, "a3", excluded)

	e := NewActionabilityEngine(st, 2)
	res, err := e.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.Scored, "a batch size smaller than the backlog still drains it")

	// Title 20 + contact 20 + rate 15 + location 10 + skills 10 +
	// employment 10 + trusted vendor 5 = 90.
	got, err := st.GetSignal(ctx, fullID)
	require.NoError(t, err)
	assert.InDelta(t, 90, got.Actionability, 0.01)

	got, err = st.GetSignal(ctx, bareID)
	require.NoError(t, err)
	assert.InDelta(t, 20, got.Actionability, 0.01)

	// Title 20 - 30 exclusion clamps at zero.
	got, err = st.GetSignal(ctx, excludedID)
	require.NoError(t, err)
	assert.Zero(t, got.Actionability)

	// Every signal is now scored; zero is a score too.
	res, err = e.Run(ctx)
	require.NoError(t, err)
	assert.Zero(t, res.Scored)
}

func TestActionabilityEngine_UntrustedVendorNoBonus(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	vendor, _, err := st.UpsertVendorCompany(ctx, "unknown-staffing.com", "Unknown Staffing", 1, now, now)
	require.NoError(t, err)

	s := &model.RequisitionSignal{
		VendorCompanyID: &vendor.ID,
		Title:           "QA Engineer",
		RateText:        "$50/hr",
		Status:          model.SignalStatusNew,
		ReceivedAt:      now,
	}
	id := seedSignal(t, st, "u1", s)

	e := NewActionabilityEngine(st, 100)
	_, err = e.Run(ctx)
	require.NoError(t, err)

	got, err := st.GetSignal(ctx, id)
	require.NoError(t, err)
	assert.InDelta(t, 35, got.Actionability, 0.01, "no trust row means no bonus")
}

// Package scoring computes vendor trust scores and per-signal
// actionability. Trust is a full-population recompute; actionability
// fills in only signals that have never been scored.
package scoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// TrustResult summarizes one trust recompute.
type TrustResult struct {
	Computed int64
	ByTier   map[model.TrustTier]int64
}

// Counts converts the tally into run-log counts.
func (r *TrustResult) Counts() map[string]int64 {
	out := map[string]int64{"computed": r.Computed}
	for tier, n := range r.ByTier {
		out[string(tier)] = n
	}
	return out
}

// TrustEngine recomputes every vendor's trust score from its signal
// history. Each run overwrites the previous scores wholesale.
type TrustEngine struct {
	store      store.Store
	windowDays int
	pageSize   int
	nowFunc    func() time.Time
	log        *zap.Logger
}

// NewTrustEngine creates a trust engine with the given recent-activity
// window.
func NewTrustEngine(st store.Store, recentWindowDays int) *TrustEngine {
	if recentWindowDays <= 0 {
		recentWindowDays = 30
	}
	return &TrustEngine{
		store:      st,
		windowDays: recentWindowDays,
		pageSize:   200,
		nowFunc:    time.Now,
		log:        zap.L().Named("scoring"),
	}
}

// Run recomputes trust for the whole vendor population.
func (e *TrustEngine) Run(ctx context.Context) (*TrustResult, error) {
	res := &TrustResult{ByTier: make(map[model.TrustTier]int64)}
	now := e.nowFunc().UTC()
	since := now.AddDate(0, 0, -e.windowDays)

	offset := 0
	for {
		vendors, err := e.store.ListVendorCompanies(ctx, store.CompanyFilter{
			Limit:  e.pageSize,
			Offset: offset,
		})
		if err != nil {
			return res, eris.Wrap(err, "scoring: list vendors")
		}
		if len(vendors) == 0 {
			break
		}

		for _, v := range vendors {
			stats, err := e.store.VendorSignalStats(ctx, v.ID, since)
			if err != nil {
				return res, eris.Wrapf(err, "scoring: stats for vendor %d", v.ID)
			}
			score := &model.VendorTrustScore{
				VendorCompanyID: v.ID,
				Breakdown:       trustBreakdown(stats),
				ComputedAt:      now,
			}
			score.Score = breakdownTotal(score.Breakdown)
			score.Tier = model.TrustTierFor(score.Score)

			if err := e.store.UpsertVendorTrustScore(ctx, score); err != nil {
				return res, eris.Wrapf(err, "scoring: save trust for vendor %d", v.ID)
			}
			res.Computed++
			res.ByTier[score.Tier]++
		}

		offset += len(vendors)
		if len(vendors) < e.pageSize {
			break
		}
	}

	e.log.Info("trust recompute complete",
		zap.Int64("computed", res.Computed),
		zap.Int64("high", res.ByTier[model.TrustTierHigh]),
		zap.Int64("junk", res.ByTier[model.TrustTierJunk]),
	)
	return res, nil
}

// trustBreakdown maps raw vendor stats onto the six clamped factors.
// Volume and diversity use step functions; disclosure factors scale with
// the share of signals carrying the field.
func trustBreakdown(s *store.VendorStats) model.TrustBreakdown {
	b := model.TrustBreakdown{}

	switch {
	case s.LifetimeSignals >= 100:
		b.LifetimeVolume = 25
	case s.LifetimeSignals >= 20:
		b.LifetimeVolume = 15
	case s.LifetimeSignals >= 5:
		b.LifetimeVolume = 8
	default:
		b.LifetimeVolume = 2
	}

	switch {
	case s.RecentSignals >= 10:
		b.RecentVolume = 25
	case s.RecentSignals >= 3:
		b.RecentVolume = 15
	case s.RecentSignals >= 1:
		b.RecentVolume = 8
	}

	switch {
	case s.DistinctTitles >= 20:
		b.TitleDiversity = 15
	case s.DistinctTitles >= 5:
		b.TitleDiversity = 10
	case s.DistinctTitles >= 2:
		b.TitleDiversity = 5
	}

	if s.LifetimeSignals > 0 {
		b.RateDisclosure = pct(s.RateDisclosed, s.LifetimeSignals) * 0.15
		b.LocationRate = pct(s.LocationGiven, s.LifetimeSignals) * 0.10
	}

	switch {
	case s.ContactCount >= 5:
		b.ContactDepth = 10
	case s.ContactCount >= 2:
		b.ContactDepth = 6
	default:
		b.ContactDepth = 2
	}

	return b
}

func breakdownTotal(b model.TrustBreakdown) float64 {
	total := b.LifetimeVolume + b.RecentVolume + b.TitleDiversity +
		b.RateDisclosure + b.LocationRate + b.ContactDepth
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	return total
}

func pct(part, whole int64) float64 {
	return float64(part) / float64(whole) * 100
}

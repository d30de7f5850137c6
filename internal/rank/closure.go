// Package rank scores recent signals for likelihood of closure and
// allocates the best of them across the recruiter queue.
package rank

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// ClosureResult summarizes one ranking pass.
type ClosureResult struct {
	Ranked int64
	ByTier map[model.ClosureTier]int64
}

// Counts converts the tally into run-log counts.
func (r *ClosureResult) Counts() map[string]int64 {
	out := map[string]int64{"ranked": r.Ranked}
	for tier, n := range r.ByTier {
		out[string(tier)] = n
	}
	return out
}

// ClosureEngine scores every NEW signal inside the ranking window.
// Scores are recomputed on each run because freshness decays.
type ClosureEngine struct {
	store      store.Store
	windowDays int
	limit      int
	nowFunc    func() time.Time
	log        *zap.Logger
}

// NewClosureEngine creates a closure engine over the given window.
func NewClosureEngine(st store.Store, windowDays int) *ClosureEngine {
	if windowDays <= 0 {
		windowDays = 7
	}
	return &ClosureEngine{
		store:      st,
		windowDays: windowDays,
		limit:      1000,
		nowFunc:    time.Now,
		log:        zap.L().Named("rank"),
	}
}

// Run rescores the window and persists score and tier per signal.
func (e *ClosureEngine) Run(ctx context.Context) (*ClosureResult, error) {
	res := &ClosureResult{ByTier: make(map[model.ClosureTier]int64)}
	now := e.nowFunc().UTC()
	since := now.AddDate(0, 0, -e.windowDays)

	signals, err := e.store.ListRecentSignals(ctx, since, e.limit)
	if err != nil {
		return res, eris.Wrap(err, "rank: list window signals")
	}
	if len(signals) == 0 {
		return res, nil
	}

	inputs, err := e.loadInputs(ctx)
	if err != nil {
		return res, err
	}

	for i := range signals {
		s := &signals[i]
		score := e.closureScore(s, inputs, now)
		tier := model.ClosureTierFor(score)
		if err := e.store.UpdateSignalClosure(ctx, s.ID, score, tier); err != nil {
			return res, eris.Wrapf(err, "rank: save closure for signal %d", s.ID)
		}
		res.Ranked++
		res.ByTier[tier]++
	}

	e.log.Info("closure ranking complete",
		zap.Int64("ranked", res.Ranked),
		zap.Int64("hot", res.ByTier[model.ClosureTierHot]),
	)
	return res, nil
}

// closureInputs holds the population-level context a ranking pass needs:
// trust and volume per vendor, and the skill bench the agency can
// actually place.
type closureInputs struct {
	trust  map[int64]float64
	volume map[int64]int64
	bench  map[string]bool // lowercase skill names
}

func (e *ClosureEngine) loadInputs(ctx context.Context) (*closureInputs, error) {
	in := &closureInputs{
		trust:  make(map[int64]float64),
		volume: make(map[int64]int64),
		bench:  make(map[string]bool),
	}

	scores, err := e.store.ListVendorTrustScores(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "rank: load trust scores")
	}
	for _, ts := range scores {
		in.trust[ts.VendorCompanyID] = ts.Score
	}

	offset := 0
	for {
		vendors, err := e.store.ListVendorCompanies(ctx, store.CompanyFilter{Limit: 500, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "rank: load vendors")
		}
		for _, v := range vendors {
			in.volume[v.ID] = v.EmailCount
		}
		if len(vendors) < 500 {
			break
		}
		offset += len(vendors)
	}

	offset = 0
	for {
		consultants, err := e.store.ListConsultants(ctx, store.ConsultantFilter{Limit: 500, Offset: offset})
		if err != nil {
			return nil, eris.Wrap(err, "rank: load bench")
		}
		for _, c := range consultants {
			for _, sk := range c.Skills {
				in.bench[strings.ToLower(sk)] = true
			}
		}
		if len(consultants) < 500 {
			break
		}
		offset += len(consultants)
	}

	return in, nil
}

// closureScore combines seven components, each individually capped, into
// a 0-100 estimate of how likely the requisition is to close through us.
func (e *ClosureEngine) closureScore(s *model.RequisitionSignal, in *closureInputs, now time.Time) float64 {
	score := 0.0

	if s.VendorCompanyID != nil {
		t := in.trust[*s.VendorCompanyID] * 0.25
		if t > 25 {
			t = 25
		}
		score += t
	}

	if s.HasRate() {
		score += 20
	}

	score += employmentFit(s.EmploymentType)
	score += completeness(s)

	if s.VendorCompanyID != nil {
		v := math.Log1p(float64(in.volume[*s.VendorCompanyID])) * 2
		if v > 10 {
			v = 10
		}
		score += v
	}

	overlap := 0.0
	for _, sk := range s.Skills {
		if in.bench[strings.ToLower(sk)] {
			overlap += 3.3
		}
	}
	if overlap > 10 {
		overlap = 10
	}
	score += overlap

	score += freshness(now.Sub(s.ReceivedAt))

	if score > 100 {
		score = 100
	}
	return score
}

// employmentFit reflects how well each engagement model suits a staffing
// agency: C2C closes fastest, full-time conversions rarely do.
func employmentFit(t model.EmploymentType) float64 {
	switch t {
	case model.EmploymentC2C:
		return 15
	case model.EmploymentW2:
		return 12
	case model.EmploymentC2H:
		return 10
	case model.EmploymentContract:
		return 8
	case model.EmploymentFTE:
		return 3
	default:
		return 2
	}
}

func completeness(s *model.RequisitionSignal) float64 {
	c := 0.0
	if s.Title != "" {
		c += 3
	}
	if s.HasLocation() {
		c += 2.5
	}
	if len(s.Skills) > 0 {
		c += 2.5
	}
	if s.VendorContactID != nil {
		c += 2
	}
	if c > 10 {
		c = 10
	}
	return c
}

func freshness(age time.Duration) float64 {
	switch {
	case age <= 6*time.Hour:
		return 10
	case age <= 24*time.Hour:
		return 8
	case age <= 72*time.Hour:
		return 5
	case age <= 7*24*time.Hour:
		return 2
	default:
		return 0
	}
}

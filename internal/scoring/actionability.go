package scoring

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// thirdPartyExclusions in a title mean the vendor will not accept
// subcontracted candidates, which removes most of a signal's value to a
// staffing agency.
var thirdPartyExclusions = []string{
	"no third party",
	"no third-party",
	"no 3rd party",
	"no c2c",
	"no corp to corp",
	"no corp-to-corp",
	"w2 only",
	"citizens only",
}

// ActionabilityResult summarizes one actionability pass.
type ActionabilityResult struct {
	Scored int64
}

// Counts converts the tally into run-log counts.
func (r *ActionabilityResult) Counts() map[string]int64 {
	return map[string]int64{"scored": r.Scored}
}

// ActionabilityEngine scores signals that have never been scored. A
// score of zero is still a score; only NULL marks a signal as pending.
type ActionabilityEngine struct {
	store     store.Store
	batchSize int
	log       *zap.Logger
}

// NewActionabilityEngine creates an actionability engine.
func NewActionabilityEngine(st store.Store, batchSize int) *ActionabilityEngine {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &ActionabilityEngine{
		store:     st,
		batchSize: batchSize,
		log:       zap.L().Named("scoring"),
	}
}

// Run scores unscored signals in fixed-size batches until a short batch
// signals the backlog is drained.
func (e *ActionabilityEngine) Run(ctx context.Context) (*ActionabilityResult, error) {
	res := &ActionabilityResult{}
	trust := make(map[int64]float64) // vendor id -> score, per-run memo

	for {
		batch, err := e.store.ListUnscoredSignals(ctx, e.batchSize)
		if err != nil {
			return res, eris.Wrap(err, "scoring: list unscored")
		}
		if len(batch) == 0 {
			break
		}

		for i := range batch {
			s := &batch[i]
			score, err := e.scoreSignal(ctx, s, trust)
			if err != nil {
				return res, err
			}
			if err := e.store.UpdateSignalActionability(ctx, s.ID, score); err != nil {
				return res, eris.Wrapf(err, "scoring: save actionability for signal %d", s.ID)
			}
			res.Scored++
		}

		if len(batch) < e.batchSize {
			break
		}
	}

	e.log.Info("actionability pass complete", zap.Int64("scored", res.Scored))
	return res, nil
}

func (e *ActionabilityEngine) scoreSignal(ctx context.Context, s *model.RequisitionSignal, trust map[int64]float64) (float64, error) {
	score := 0.0
	if s.Title != "" {
		score += 20
	}
	if s.VendorContactID != nil {
		score += 20
	}
	if s.HasRate() {
		score += 15
	}
	if s.HasLocation() {
		score += 10
	}
	if len(s.Skills) > 0 {
		score += 10
	}
	if s.EmploymentType != model.EmploymentUnknown {
		score += 10
	}

	if s.VendorCompanyID != nil {
		t, err := e.vendorTrust(ctx, *s.VendorCompanyID, trust)
		if err != nil {
			return 0, err
		}
		if t >= 60 {
			score += 5
		}
	}

	title := strings.ToLower(s.Title)
	for _, p := range thirdPartyExclusions {
		if strings.Contains(title, p) {
			score -= 30
			break
		}
	}

	if score < 0 {
		score = 0
	}
	if score > 100 {
		score = 100
	}
	return score, nil
}

func (e *ActionabilityEngine) vendorTrust(ctx context.Context, vendorID int64, memo map[int64]float64) (float64, error) {
	if t, ok := memo[vendorID]; ok {
		return t, nil
	}
	ts, err := e.store.GetVendorTrustScore(ctx, vendorID)
	if err != nil {
		return 0, eris.Wrapf(err, "scoring: trust lookup for vendor %d", vendorID)
	}
	t := 0.0
	if ts != nil {
		t = ts.Score
	}
	memo[vendorID] = t
	return t, nil
}

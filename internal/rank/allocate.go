package rank

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// Allocation strategies.
const (
	StrategyRoundRobin = "round_robin"
	StrategySkillMatch = "skill_match"
)

// AllocateResult summarizes one allocation pass.
type AllocateResult struct {
	Considered int64
	Assigned   int64
	Skipped    int64 // already assigned today or every recruiter at cap
}

// Counts converts the tally into run-log counts.
func (r *AllocateResult) Counts() map[string]int64 {
	return map[string]int64{
		"considered": r.Considered,
		"assigned":   r.Assigned,
		"skipped":    r.Skipped,
	}
}

// Allocator distributes the day's best signals across active
// recruiters. Assignments are unique per (recruiter, signal, date), so
// a rerun only fills gaps left by new signals or freed capacity.
type Allocator struct {
	store      store.Store
	windowDays int
	topN       int
	dailyCap   int
	nowFunc    func() time.Time
	log        *zap.Logger
}

// NewAllocator creates an allocator with the queue limits.
func NewAllocator(st store.Store, windowDays, topN, dailyCap int) *Allocator {
	if windowDays <= 0 {
		windowDays = 7
	}
	if topN <= 0 {
		topN = 200
	}
	if dailyCap <= 0 {
		dailyCap = 30
	}
	return &Allocator{
		store:      st,
		windowDays: windowDays,
		topN:       topN,
		dailyCap:   dailyCap,
		nowFunc:    time.Now,
		log:        zap.L().Named("rank"),
	}
}

// Run assigns the top-ranked unassigned signals for today using the
// named strategy.
func (a *Allocator) Run(ctx context.Context, strategy string) (*AllocateResult, error) {
	res := &AllocateResult{}
	now := a.nowFunc().UTC()
	date := now.Format("2006-01-02")

	recruiters, err := a.store.ListRecruiters(ctx, true)
	if err != nil {
		return res, eris.Wrap(err, "rank: list recruiters")
	}
	if len(recruiters) == 0 {
		return res, eris.New("rank: no active recruiters to assign to")
	}

	loads, err := a.store.CountAssignmentsByRecruiter(ctx, date)
	if err != nil {
		return res, eris.Wrap(err, "rank: load assignment counts")
	}
	alreadyAssigned, err := a.store.ListAssignedSignalIDs(ctx, date)
	if err != nil {
		return res, eris.Wrap(err, "rank: load assigned signals")
	}

	var profiles map[int64][]string
	if strategy == StrategySkillMatch {
		profiles, err = a.store.RecruiterSkillProfiles(ctx)
		if err != nil {
			return res, eris.Wrap(err, "rank: load skill profiles")
		}
	}

	candidates, err := a.topSignals(ctx, now)
	if err != nil {
		return res, err
	}

	for i := range candidates {
		s := &candidates[i]
		res.Considered++
		if alreadyAssigned[s.ID] {
			res.Skipped++
			continue
		}

		recruiter := a.pick(strategy, recruiters, loads, profiles, s)
		if recruiter == nil {
			// Every recruiter is at the daily cap; nothing more to
			// hand out today.
			res.Skipped += int64(len(candidates) - i)
			break
		}

		inserted, err := a.store.InsertAssignment(ctx, &model.QueueAssignment{
			ID:           uuid.NewString(),
			RecruiterID:  recruiter.ID,
			SignalID:     s.ID,
			AssignedDate: date,
			Status:       model.AssignmentAssigned,
			ClosureScore: s.ClosureScore,
		})
		if err != nil {
			return res, eris.Wrapf(err, "rank: assign signal %d", s.ID)
		}
		if inserted {
			loads[recruiter.ID]++
			res.Assigned++
		} else {
			res.Skipped++
		}
	}

	a.log.Info("queue allocation complete",
		zap.String("strategy", strategy),
		zap.String("date", date),
		zap.Int64("assigned", res.Assigned),
		zap.Int64("skipped", res.Skipped),
	)
	return res, nil
}

// topSignals returns the window's NEW signals, best closure score
// first, truncated to the queue size.
func (a *Allocator) topSignals(ctx context.Context, now time.Time) ([]model.RequisitionSignal, error) {
	since := now.AddDate(0, 0, -a.windowDays)
	signals, err := a.store.ListRecentSignals(ctx, since, 1000)
	if err != nil {
		return nil, eris.Wrap(err, "rank: list window signals")
	}
	sort.SliceStable(signals, func(i, j int) bool {
		return signals[i].ClosureScore > signals[j].ClosureScore
	})
	if len(signals) > a.topN {
		signals = signals[:a.topN]
	}
	return signals, nil
}

// pick selects a recruiter with remaining capacity, or nil when
// everyone is full.
func (a *Allocator) pick(strategy string, recruiters []model.Recruiter, loads map[int64]int, profiles map[int64][]string, s *model.RequisitionSignal) *model.Recruiter {
	var best *model.Recruiter
	bestOverlap := -1
	bestCapacity := -1

	for i := range recruiters {
		r := &recruiters[i]
		capacity := a.dailyCap - loads[r.ID]
		if capacity <= 0 {
			continue
		}

		// Round robin leaves overlap at zero for everyone, which
		// reduces the choice to most remaining capacity, i.e. least
		// load.
		overlap := 0
		if strategy == StrategySkillMatch {
			overlap = skillOverlap(profiles[r.ID], s.Skills)
		}

		if overlap > bestOverlap || (overlap == bestOverlap && capacity > bestCapacity) {
			best = r
			bestOverlap = overlap
			bestCapacity = capacity
		}
	}
	return best
}

func skillOverlap(profile, skills []string) int {
	if len(profile) == 0 || len(skills) == 0 {
		return 0
	}
	have := make(map[string]bool, len(profile))
	for _, sk := range profile {
		have[strings.ToLower(sk)] = true
	}
	n := 0
	for _, sk := range skills {
		if have[strings.ToLower(sk)] {
			n++
		}
	}
	return n
}

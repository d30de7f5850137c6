package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/staffloop/intel-cli/internal/rank"
	"github.com/staffloop/intel-cli/internal/runlog"
)

var (
	rankStrategy  string
	rankSkipQueue bool
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Score signals for closure and fill the recruiter queue",
	Long: `Rescores every NEW signal in the ranking window for likelihood of
closure, then distributes today's top signals across active recruiters.
Freshness decays, so this is meant to run at least daily.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		runs, err := initRunLog(st)
		if err != nil {
			return err
		}

		strategy := rankStrategy
		if strategy == "" {
			strategy = cfg.Queue.Strategy
		}
		if strategy != rank.StrategyRoundRobin && strategy != rank.StrategySkillMatch {
			return eris.Errorf("unknown strategy %q (round_robin, skill_match)", strategy)
		}

		return recordRun(ctx, runs, runlog.StageRank, func() (map[string]int64, error) {
			counts := map[string]int64{}

			closure := rank.NewClosureEngine(st, cfg.Queue.WindowDays)
			cres, err := closure.Run(ctx)
			if err != nil {
				return nil, eris.Wrap(err, "closure ranking")
			}
			for k, v := range cres.Counts() {
				counts[k] = v
			}

			if rankSkipQueue {
				return counts, nil
			}

			alloc := rank.NewAllocator(st, cfg.Queue.WindowDays, cfg.Queue.TopN, cfg.Queue.DailyCap)
			ares, err := alloc.Run(ctx, strategy)
			if err != nil {
				return nil, eris.Wrap(err, "queue allocation")
			}
			for k, v := range ares.Counts() {
				counts["queue_"+k] = v
			}
			return counts, nil
		})
	},
}

func init() {
	rankCmd.Flags().StringVar(&rankStrategy, "strategy", "", "allocation strategy: round_robin or skill_match (default from config)")
	rankCmd.Flags().BoolVar(&rankSkipQueue, "skip-queue", false, "rank only, leave the queue untouched")
	rootCmd.AddCommand(rankCmd)
}

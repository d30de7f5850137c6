package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/staffloop/intel-cli/internal/runlog"
	"github.com/staffloop/intel-cli/internal/scoring"
)

var scoreSkipTrust bool

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Recompute vendor trust and score new signals",
	Long: `Recomputes the trust score of every vendor from its signal history,
then assigns an actionability score to each signal that has never been
scored. Trust runs first so fresh signals see current vendor standing.`,
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

		return recordRun(ctx, runs, runlog.StageScore, func() (map[string]int64, error) {
			counts := map[string]int64{}

			if !scoreSkipTrust {
				trust := scoring.NewTrustEngine(st, cfg.Scoring.RecentWindowDays)
				res, err := trust.Run(ctx)
				if err != nil {
					return nil, eris.Wrap(err, "trust recompute")
				}
				for k, v := range res.Counts() {
					counts["trust_"+k] = v
				}
			}

			action := scoring.NewActionabilityEngine(st, cfg.Scoring.ActionabilityBatchSize)
			res, err := action.Run(ctx)
			if err != nil {
				return nil, eris.Wrap(err, "actionability")
			}
			for k, v := range res.Counts() {
				counts[k] = v
			}
			return counts, nil
		})
	},
}

func init() {
	scoreCmd.Flags().BoolVar(&scoreSkipTrust, "skip-trust", false, "score actionability against existing trust scores")
	rootCmd.AddCommand(scoreCmd)
}

package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/staffloop/intel-cli/internal/classify"
	"github.com/staffloop/intel-cli/internal/runlog"
)

var classifyFull bool

var classifyCmd = &cobra.Command{
	Use:   "classify",
	Short: "Categorize synced messages",
	Long: `Runs the rule cascade over stored messages. The default pass only
touches messages without a category; --full reclassifies the whole
corpus, which is the right move after changing the own-domain setting.`,
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

		if cfg.Classify.OwnDomain == "" {
			return eris.New("classify.own_domain is required (INTEL_CLASSIFY_OWN_DOMAIN)")
		}

		engine := classify.NewEngine(st, classify.New(cfg.Classify.OwnDomain), cfg.Classify.BatchSize)

		return recordRun(ctx, runs, runlog.StageClassify, func() (map[string]int64, error) {
			var res *classify.Result
			var err error
			if classifyFull {
				res, err = engine.Full(ctx)
			} else {
				res, err = engine.Incremental(ctx)
			}
			if err != nil {
				return nil, eris.Wrap(err, "classify")
			}
			return res.Counts(), nil
		})
	},
}

func init() {
	classifyCmd.Flags().BoolVar(&classifyFull, "full", false, "reclassify every message, not just new ones")
	rootCmd.AddCommand(classifyCmd)
}

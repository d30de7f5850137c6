package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/staffloop/intel-cli/internal/extract"
	"github.com/staffloop/intel-cli/internal/runlog"
)

var extractOnly string

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Derive entities from classified messages",
	Long: `Builds vendor and client companies and contacts, consultant
profiles, and requisition signals from classified mail. All extractors
are idempotent; --only limits the pass to a single extractor.`,
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

		skills, err := extract.NewSkillMatcher()
		if err != nil {
			return err
		}
		engine := extract.NewEngine(st, skills, cfg.Classify.OwnDomain, cfg.Classify.BatchSize)

		var pass func(context.Context) (*extract.Result, error)
		switch extractOnly {
		case "":
			pass = engine.All
		case "vendors":
			pass = engine.Vendors
		case "clients":
			pass = engine.Clients
		case "consultants":
			pass = engine.Consultants
		case "signals":
			pass = engine.Signals
		default:
			return eris.Errorf("unknown extractor %q (vendors, clients, consultants, signals)", extractOnly)
		}

		return recordRun(ctx, runs, runlog.StageExtract, func() (map[string]int64, error) {
			res, err := pass(ctx)
			if err != nil {
				return nil, eris.Wrap(err, "extract")
			}
			return res.Counts(), nil
		})
	},
}

func init() {
	extractCmd.Flags().StringVar(&extractOnly, "only", "", "run a single extractor: vendors, clients, consultants, signals")
	rootCmd.AddCommand(extractCmd)
}

package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/mailsync"
	"github.com/staffloop/intel-cli/internal/runlog"
)

var syncDaemon bool

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Pull new mail from every active mailbox",
	Long: `Fetches messages newest-first from each active mailbox, skipping
folders on the skip list and stopping per folder once a run of pages
yields nothing new. With --daemon the sync repeats on the configured
interval until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()

		if err := st.Migrate(ctx); err != nil {
			return eris.Wrap(err, "migrate store")
		}

		runs, err := initRunLog(st)
		if err != nil {
			return err
		}

		provider := initProvider()
		if err := provider.Validate(ctx); err != nil {
			return eris.Wrap(err, "provider credential check")
		}

		engine := mailsync.New(st, provider, cfg.Sync)

		if syncDaemon {
			daemon := mailsync.NewDaemon(engine, runs,
				time.Duration(cfg.Sync.IntervalMins)*time.Minute)
			if err := daemon.Run(ctx); err != nil && ctx.Err() == nil {
				return eris.Wrap(err, "sync daemon")
			}
			return nil
		}

		runID, err := runs.Start(ctx, runlog.StageSync)
		if err != nil {
			zap.L().Warn("run log unavailable", zap.Error(err))
		}

		res, err := engine.SyncAll(ctx)
		if err != nil {
			if runID != 0 {
				_ = runs.Fail(ctx, runID, err.Error())
			}
			return eris.Wrap(err, "sync")
		}

		if runID != 0 {
			if err := runs.Complete(ctx, runID, map[string]int64{
				"mailboxes":      int64(res.Mailboxes),
				"folders":        int64(res.Folders),
				"failed_folders": int64(res.FailedFolders),
				"fetched":        res.Fetched,
				"inserted":       res.Inserted,
			}); err != nil {
				zap.L().Warn("run log complete failed", zap.Error(err))
			}
		}

		zap.L().Info("sync complete",
			zap.Int("mailboxes", res.Mailboxes),
			zap.Int("folders", res.Folders),
			zap.Int("failed_folders", res.FailedFolders),
			zap.Int64("fetched", res.Fetched),
			zap.Int64("inserted", res.Inserted),
		)
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncDaemon, "daemon", false, "keep syncing on the configured interval")
	rootCmd.AddCommand(syncCmd)
}

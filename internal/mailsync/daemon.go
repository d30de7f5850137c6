package mailsync

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/runlog"
)

// Daemon runs sync passes on a fixed interval until the context is
// canceled. Passes run sequentially; a tick that arrives while a pass
// is still in flight is dropped rather than queued.
type Daemon struct {
	engine   *Engine
	runs     runlog.Log
	interval time.Duration
	log      *zap.Logger
}

// NewDaemon wraps the engine in an interval scheduler.
func NewDaemon(engine *Engine, runs runlog.Log, interval time.Duration) *Daemon {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Daemon{
		engine:   engine,
		runs:     runs,
		interval: interval,
		log:      zap.L().Named("mailsync.daemon"),
	}
}

// Run blocks, executing one pass immediately and then one per interval,
// until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	d.log.Info("sync daemon started", zap.Duration("interval", d.interval))

	d.runOnce(ctx)

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			d.log.Info("sync daemon stopped")
			return ctx.Err()
		case <-ticker.C:
			d.runOnce(ctx)
		}
	}
}

func (d *Daemon) runOnce(ctx context.Context) {
	runID, err := d.runs.Start(ctx, runlog.StageSync)
	if err != nil {
		d.log.Error("run log start failed", zap.Error(err))
	}

	res, err := d.engine.SyncAll(ctx)
	if err != nil {
		d.log.Error("sync pass failed", zap.Error(err))
		if runID != 0 {
			if lerr := d.runs.Fail(ctx, runID, err.Error()); lerr != nil {
				d.log.Error("run log fail failed", zap.Error(lerr))
			}
		}
		return
	}

	if runID != 0 {
		counts := map[string]int64{
			"mailboxes":      int64(res.Mailboxes),
			"folders":        int64(res.Folders),
			"failed_folders": int64(res.FailedFolders),
			"fetched":        res.Fetched,
			"inserted":       res.Inserted,
		}
		if err := d.runs.Complete(ctx, runID, counts); err != nil {
			d.log.Error("run log complete failed", zap.Error(err))
		}
	}
}

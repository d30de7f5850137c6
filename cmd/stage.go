package main

import (
	"context"

	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/runlog"
)

// recordRun brackets one pipeline stage with run-log entries. A broken
// run log is logged but never blocks the stage itself.
func recordRun(ctx context.Context, runs runlog.Log, stage string, fn func() (map[string]int64, error)) error {
	runID, err := runs.Start(ctx, stage)
	if err != nil {
		zap.L().Warn("run log unavailable", zap.String("stage", stage), zap.Error(err))
	}

	counts, err := fn()
	if err != nil {
		if runID != 0 {
			_ = runs.Fail(ctx, runID, err.Error())
		}
		return err
	}

	if runID != 0 {
		if lerr := runs.Complete(ctx, runID, counts); lerr != nil {
			zap.L().Warn("run log complete failed", zap.String("stage", stage), zap.Error(lerr))
		}
	}
	return nil
}

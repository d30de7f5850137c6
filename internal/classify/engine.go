package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/store"
)

// Result summarizes one classification pass.
type Result struct {
	Processed  int64
	ByCategory map[model.Category]int64
}

// Engine applies the classifier to stored messages in batches.
type Engine struct {
	store      store.Store
	classifier *Classifier
	batchSize  int
	log        *zap.Logger
}

// NewEngine creates a classification engine.
func NewEngine(st store.Store, classifier *Classifier, batchSize int) *Engine {
	if batchSize <= 0 {
		batchSize = 500
	}
	return &Engine{
		store:      st,
		classifier: classifier,
		batchSize:  batchSize,
		log:        zap.L().Named("classify"),
	}
}

// Incremental classifies only messages that have no category yet. This
// is the steady-state path after each sync.
func (e *Engine) Incremental(ctx context.Context) (*Result, error) {
	return e.run(ctx, true)
}

// Full reclassifies every message, used for audits and after rule
// changes.
func (e *Engine) Full(ctx context.Context) (*Result, error) {
	return e.run(ctx, false)
}

func (e *Engine) run(ctx context.Context, unclassifiedOnly bool) (*Result, error) {
	res := &Result{ByCategory: make(map[model.Category]int64)}
	afterID := int64(0)

	for {
		batch, err := e.store.ListMessages(ctx, store.MessageFilter{
			Unclassified: unclassifiedOnly,
			AfterID:      afterID,
			Limit:        e.batchSize,
		})
		if err != nil {
			return res, err
		}
		if len(batch) == 0 {
			break
		}

		for _, m := range batch {
			cat := e.classifier.Classify(m.FromAddress, m.FromName, m.Subject, m.BodyExcerpt)
			if err := e.store.SetMessageCategory(ctx, m.ID, cat); err != nil {
				return res, err
			}
			res.Processed++
			res.ByCategory[cat]++
		}
		afterID = batch[len(batch)-1].ID

		if len(batch) < e.batchSize {
			break
		}
	}

	e.log.Info("classification pass complete",
		zap.Bool("incremental", unclassifiedOnly),
		zap.Int64("processed", res.Processed),
		zap.Int64("vendor_req", res.ByCategory[model.CategoryVendorReq]),
		zap.Int64("consultant", res.ByCategory[model.CategoryConsultant]),
	)
	return res, nil
}

// Counts converts the per-category tally into run-log counts.
func (r *Result) Counts() map[string]int64 {
	out := map[string]int64{"processed": r.Processed}
	for cat, n := range r.ByCategory {
		out[string(cat)] = n
	}
	return out
}

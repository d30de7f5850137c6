// Package mailsync pulls messages from the mail provider into the raw
// message table. Every write is conflict-ignored on the provider's
// natural key, so full re-scans are safe; an early-stop heuristic keeps
// them cheap once a folder is caught up.
package mailsync

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/staffloop/intel-cli/internal/config"
	"github.com/staffloop/intel-cli/internal/model"
	"github.com/staffloop/intel-cli/internal/resilience"
	"github.com/staffloop/intel-cli/internal/store"
	"github.com/staffloop/intel-cli/pkg/graphmail"
)

// Result summarizes one sync pass.
type Result struct {
	Mailboxes     int
	Folders       int
	FailedFolders int
	Fetched       int64
	Inserted      int64
}

// Engine syncs all active mailboxes from the provider.
type Engine struct {
	store    store.Store
	provider graphmail.Provider
	cfg      config.SyncConfig
	breaker  *resilience.CircuitBreaker
	retry    resilience.RetryConfig
	log      *zap.Logger
}

// New creates a sync engine.
func New(st store.Store, provider graphmail.Provider, cfg config.SyncConfig) *Engine {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.StopAfterStalePages <= 0 {
		cfg.StopAfterStalePages = 3
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("graphmail", "list_messages")
	return &Engine{
		store:    st,
		provider: provider,
		cfg:      cfg,
		breaker:  resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		retry:    retry,
		log:      zap.L().Named("mailsync"),
	}
}

// SyncAll syncs every active mailbox, bounded by the configured
// concurrency. A failed mailbox does not stop the others.
func (e *Engine) SyncAll(ctx context.Context) (*Result, error) {
	boxes, err := e.store.ListMailboxes(ctx, true)
	if err != nil {
		return nil, err
	}
	if len(boxes) == 0 {
		e.log.Info("no active mailboxes")
		return &Result{}, nil
	}

	var mu sync.Mutex
	total := &Result{Mailboxes: len(boxes)}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.MaxConcurrent)
	for _, mb := range boxes {
		mb := mb
		g.Go(func() error {
			res, err := e.syncMailbox(gctx, mb)
			if err != nil {
				e.log.Error("mailbox sync failed",
					zap.String("mailbox", mb.Address), zap.Error(err))
				mu.Lock()
				total.FailedFolders++ // counts the mailbox as one failed unit
				mu.Unlock()
				return nil // keep the other mailboxes going
			}
			mu.Lock()
			total.Folders += res.Folders
			total.FailedFolders += res.FailedFolders
			total.Fetched += res.Fetched
			total.Inserted += res.Inserted
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return total, err
	}

	e.log.Info("sync pass complete",
		zap.Int("mailboxes", total.Mailboxes),
		zap.Int("folders", total.Folders),
		zap.Int("failed_folders", total.FailedFolders),
		zap.Int64("fetched", total.Fetched),
		zap.Int64("inserted", total.Inserted),
	)
	return total, nil
}

// syncMailbox syncs every folder of one mailbox. The watermark advances
// only when the whole folder loop ran without a folder-level failure.
func (e *Engine) syncMailbox(ctx context.Context, mb model.Mailbox) (*Result, error) {
	folders, err := e.listFolders(ctx, mb.Address)
	if err != nil {
		return nil, eris.Wrapf(err, "mailsync: list folders for %s", mb.Address)
	}

	res := &Result{Mailboxes: 1}
	for _, f := range folders {
		if e.skipFolder(f.DisplayName) {
			continue
		}
		res.Folders++

		fetched, inserted, err := e.syncFolder(ctx, mb, f)
		res.Fetched += fetched
		res.Inserted += inserted
		if err != nil {
			if ctx.Err() != nil {
				return res, err
			}
			// One broken folder must not abort the mailbox.
			res.FailedFolders++
			e.log.Warn("folder sync failed, continuing",
				zap.String("mailbox", mb.Address),
				zap.String("folder", f.DisplayName),
				zap.Error(err))
			continue
		}
	}

	if res.FailedFolders == 0 {
		if err := e.store.UpdateMailboxWatermark(ctx, mb.ID, time.Now().UTC()); err != nil {
			return res, err
		}
	}

	e.log.Info("mailbox synced",
		zap.String("mailbox", mb.Address),
		zap.Int("folders", res.Folders),
		zap.Int("failed_folders", res.FailedFolders),
		zap.Int64("inserted", res.Inserted),
	)
	return res, nil
}

// syncFolder pages through one folder newest-first until the provider
// runs out of pages or enough consecutive pages yield nothing new.
func (e *Engine) syncFolder(ctx context.Context, mb model.Mailbox, f graphmail.Folder) (fetched, inserted int64, err error) {
	nextLink := ""
	stalePages := 0

	for {
		page, err := e.fetchPage(ctx, mb.Address, f.ID, nextLink)
		if err != nil {
			return fetched, inserted, err
		}

		pageInserts := 0
		for i := range page.Messages {
			m := &page.Messages[i]
			raw := &model.RawMessage{
				MailboxID:         mb.ID,
				ProviderMessageID: m.ID,
				Folder:            f.DisplayName,
				FromAddress:       strings.ToLower(m.From.EmailAddress.Address),
				FromName:          m.From.EmailAddress.Name,
				Subject:           m.Subject,
				BodyExcerpt:       m.BodyPreview,
				Outbound:          isOutboundFolder(f.DisplayName),
				SentAt:            m.ReceivedDateTime,
			}
			ok, err := e.store.InsertMessage(ctx, raw)
			if err != nil {
				return fetched, inserted, err
			}
			fetched++
			if ok {
				inserted++
				pageInserts++
			}
		}

		if pageInserts == 0 {
			stalePages++
			if stalePages >= e.cfg.StopAfterStalePages {
				e.log.Debug("folder caught up",
					zap.String("folder", f.DisplayName),
					zap.Int("stale_pages", stalePages))
				return fetched, inserted, nil
			}
		} else {
			stalePages = 0
		}

		if page.NextLink == "" {
			return fetched, inserted, nil
		}
		nextLink = page.NextLink
	}
}

// fetchPage retrieves one provider page through the circuit breaker and
// retry policy. An expired token is refreshed in place and the same
// page is retried; rate limiting waits out the provider's Retry-After.
func (e *Engine) fetchPage(ctx context.Context, mailbox, folderID, nextLink string) (*graphmail.MessagePage, error) {
	cfg := e.retry
	cfg.ShouldRetry = func(err error) bool {
		if resilience.IsAuthExpired(err) {
			e.log.Info("access token expired, refreshing", zap.String("mailbox", mailbox))
			e.provider.InvalidateToken()
			return true
		}
		return resilience.IsTransient(err)
	}

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) (*graphmail.MessagePage, error) {
		var page *graphmail.MessagePage
		err := e.breaker.Execute(ctx, func(ctx context.Context) error {
			var err error
			page, err = e.provider.ListMessages(ctx, mailbox, folderID, nextLink, e.cfg.PageSize)
			return err
		})
		return page, err
	})
}

func (e *Engine) listFolders(ctx context.Context, mailbox string) ([]graphmail.Folder, error) {
	cfg := e.retry
	cfg.ShouldRetry = func(err error) bool {
		if resilience.IsAuthExpired(err) {
			e.provider.InvalidateToken()
			return true
		}
		return resilience.IsTransient(err)
	}
	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]graphmail.Folder, error) {
		return e.provider.ListFolders(ctx, mailbox)
	})
}

func (e *Engine) skipFolder(name string) bool {
	for _, s := range e.cfg.SkipFolders {
		if strings.EqualFold(s, name) {
			return true
		}
	}
	return false
}

// isOutboundFolder marks messages from sent-item folders so the
// classifier can treat outbound mail differently.
func isOutboundFolder(name string) bool {
	n := strings.ToLower(name)
	return n == "sent items" || n == "sent"
}

package mailsync

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/staffloop/intel-cli/internal/config"
	"github.com/staffloop/intel-cli/internal/resilience"
	"github.com/staffloop/intel-cli/internal/store"
	"github.com/staffloop/intel-cli/pkg/graphmail"
)

// fakeProvider serves folders and messages from memory, with optional
// scripted errors per folder.
type fakeProvider struct {
	mu          sync.Mutex
	folders     []graphmail.Folder
	messages    map[string][]graphmail.Message // folderID -> newest-first
	failFolders map[string][]error             // folderID -> errors served before success
	invalidated int
	pageCalls   int
}

func (p *fakeProvider) ListFolders(ctx context.Context, mailbox string) ([]graphmail.Folder, error) {
	return p.folders, nil
}

func (p *fakeProvider) ListMessages(ctx context.Context, mailbox, folderID, nextLink string, pageSize int) (*graphmail.MessagePage, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pageCalls++

	if errs := p.failFolders[folderID]; len(errs) > 0 {
		err := errs[0]
		p.failFolders[folderID] = errs[1:]
		return nil, err
	}

	offset := 0
	if nextLink != "" {
		offset, _ = strconv.Atoi(strings.TrimPrefix(nextLink, "cursor:"))
	}
	msgs := p.messages[folderID]
	if offset >= len(msgs) {
		return &graphmail.MessagePage{}, nil
	}
	end := offset + pageSize
	if end > len(msgs) {
		end = len(msgs)
	}
	page := &graphmail.MessagePage{Messages: msgs[offset:end]}
	if end < len(msgs) {
		page.NextLink = "cursor:" + strconv.Itoa(end)
	}
	return page, nil
}

func (p *fakeProvider) InvalidateToken() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.invalidated++
}

func makeMessages(folderID string, n int) []graphmail.Message {
	out := make([]graphmail.Message, n)
	base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	for i := range out {
		out[i].ID = fmt.Sprintf("%s-msg-%03d", folderID, i)
		out[i].Subject = "Requirement " + strconv.Itoa(i)
		out[i].ReceivedDateTime = base.Add(-time.Duration(i) * time.Minute)
		out[i].From.EmailAddress = graphmail.Address{Name: "Rita", Address: "Rita@Vendor.com"}
	}
	return out
}

func newTestEngine(t *testing.T, p *fakeProvider, cfg config.SyncConfig) (*Engine, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	_, err = st.CreateMailbox(context.Background(), "sales@staffloop.io", "Sales")
	require.NoError(t, err)

	e := New(st, p, cfg)
	// Tight backoff keeps retry tests fast.
	e.retry.InitialBackoff = time.Millisecond
	e.retry.MaxBackoff = 5 * time.Millisecond
	return e, st
}

func TestEngine_SyncAll_InsertsAndNormalizesSender(t *testing.T) {
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 7},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 7),
		},
	}
	e, st := newTestEngine(t, p, config.SyncConfig{PageSize: 3})

	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), res.Inserted)
	assert.Equal(t, 0, res.FailedFolders)

	msgs, err := st.ListMessages(context.Background(), store.MessageFilter{Limit: 100})
	require.NoError(t, err)
	require.Len(t, msgs, 7)
	assert.Equal(t, "rita@vendor.com", msgs[0].FromAddress, "sender addresses are lowercased")
	assert.Equal(t, "Inbox", msgs[0].Folder)

	boxes, err := st.ListMailboxes(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, boxes[0].LastSyncedAt, "watermark advances on a clean pass")
}

func TestEngine_Rerun_StopsEarlyOnStalePages(t *testing.T) {
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 30},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 30),
		},
	}
	e, _ := newTestEngine(t, p, config.SyncConfig{PageSize: 5, StopAfterStalePages: 2})

	_, err := e.SyncAll(context.Background())
	require.NoError(t, err)

	p.mu.Lock()
	p.pageCalls = 0
	p.mu.Unlock()

	// Nothing new: the rerun must stop after two stale pages instead of
	// walking all six.
	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Inserted)

	p.mu.Lock()
	calls := p.pageCalls
	p.mu.Unlock()
	assert.Equal(t, 2, calls)
}

func TestEngine_SkipsConfiguredFolders(t *testing.T) {
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 2},
			{ID: "f-rss", DisplayName: "RSS Feeds", TotalItemCount: 99},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 2),
			"f-rss":   makeMessages("f-rss", 99),
		},
	}
	e, _ := newTestEngine(t, p, config.SyncConfig{
		PageSize:    10,
		SkipFolders: []string{"rss feeds"}, // matching is case-insensitive
	})

	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Folders)
	assert.Equal(t, int64(2), res.Inserted)
}

func TestEngine_AuthExpiry_RefreshesAndRetriesSamePage(t *testing.T) {
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 2},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 2),
		},
		failFolders: map[string][]error{
			"f-inbox": {&resilience.AuthExpiredError{Err: eris.New("token expired")}},
		},
	}
	e, _ := newTestEngine(t, p, config.SyncConfig{PageSize: 10})

	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), res.Inserted, "the failed page is retried, not skipped")
	assert.Equal(t, 1, p.invalidated)
	assert.Equal(t, 0, res.FailedFolders)
}

func TestEngine_RateLimit_WaitsAndRetries(t *testing.T) {
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 1},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 1),
		},
		failFolders: map[string][]error{
			"f-inbox": {resilience.NewRateLimitError(eris.New("throttled"), time.Millisecond)},
		},
	}
	e, _ := newTestEngine(t, p, config.SyncConfig{PageSize: 10})

	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), res.Inserted)
	assert.Zero(t, p.invalidated, "rate limiting does not touch the token")
}

func TestEngine_FolderFailure_ContinuesAndHoldsWatermark(t *testing.T) {
	persistent := make([]error, 10)
	for i := range persistent {
		persistent[i] = eris.New("malformed folder")
	}
	p := &fakeProvider{
		folders: []graphmail.Folder{
			{ID: "f-bad", DisplayName: "Broken", TotalItemCount: 5},
			{ID: "f-inbox", DisplayName: "Inbox", TotalItemCount: 3},
		},
		messages: map[string][]graphmail.Message{
			"f-inbox": makeMessages("f-inbox", 3),
		},
		failFolders: map[string][]error{"f-bad": persistent},
	}
	e, st := newTestEngine(t, p, config.SyncConfig{PageSize: 10})

	res, err := e.SyncAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.FailedFolders)
	assert.Equal(t, int64(3), res.Inserted, "healthy folders still sync")

	boxes, err := st.ListMailboxes(context.Background(), true)
	require.NoError(t, err)
	assert.Nil(t, boxes[0].LastSyncedAt, "watermark holds when any folder failed")
}

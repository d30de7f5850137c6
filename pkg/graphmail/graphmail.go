// Package graphmail is a client for a Microsoft-Graph-shaped mail API:
// OAuth2 client-credentials auth, per-mailbox folder discovery, and
// paginated newest-first message listing via opaque next links.
package graphmail

import (
	"context"
	"time"
)

// Folder is one mail folder in a mailbox.
type Folder struct {
	ID             string `json:"id"`
	DisplayName    string `json:"displayName"`
	TotalItemCount int64  `json:"totalItemCount"`
}

// Address is a sender or recipient.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Message is one email as returned by the provider.
type Message struct {
	ID               string    `json:"id"`
	Subject          string    `json:"subject"`
	BodyPreview      string    `json:"bodyPreview"`
	ReceivedDateTime time.Time `json:"receivedDateTime"`
	From             struct {
		EmailAddress Address `json:"emailAddress"`
	} `json:"from"`
}

// MessagePage is one page of a folder's message list. NextLink is the
// provider's opaque cursor; empty means the listing is exhausted.
type MessagePage struct {
	Messages []Message
	NextLink string
}

// Provider is the mail API surface the sync engine depends on.
type Provider interface {
	// ListFolders returns every folder in the mailbox with a nonzero
	// item count.
	ListFolders(ctx context.Context, mailbox string) ([]Folder, error)
	// ListMessages fetches one page of a folder's messages, newest
	// first. Pass an empty nextLink for the first page.
	ListMessages(ctx context.Context, mailbox, folderID, nextLink string, pageSize int) (*MessagePage, error)
	// InvalidateToken drops the cached access token so the next request
	// acquires a fresh one.
	InvalidateToken()
}

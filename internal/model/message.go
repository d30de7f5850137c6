package model

import "time"

// Category is the classification assigned to a raw message. Exactly one
// category is assigned per message; nil means not yet classified.
type Category string

const (
	CategoryInternal    Category = "INTERNAL"
	CategorySystem      Category = "SYSTEM"
	CategoryPersonal    Category = "PERSONAL"
	CategoryConsultant  Category = "CONSULTANT"
	CategoryClient      Category = "CLIENT"
	CategoryVendorReq   Category = "VENDOR_REQ"
	CategoryVendorOther Category = "VENDOR_OTHER"
	CategoryOther       Category = "OTHER"
)

// AllCategories lists every category in a stable order, used by
// distribution reports.
func AllCategories() []Category {
	return []Category{
		CategoryInternal,
		CategorySystem,
		CategoryPersonal,
		CategoryConsultant,
		CategoryClient,
		CategoryVendorReq,
		CategoryVendorOther,
		CategoryOther,
	}
}

// Mailbox is one monitored email account.
type Mailbox struct {
	ID           int64      `json:"id"`
	Address      string     `json:"address"`
	DisplayName  string     `json:"display_name,omitempty"`
	Active       bool       `json:"active"`
	LastSyncedAt *time.Time `json:"last_synced_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RawMessage is one ingested email. Unique per (mailbox_id,
// provider_message_id); immutable after insert except for Category,
// which classification sets once.
type RawMessage struct {
	ID                int64     `json:"id"`
	MailboxID         int64     `json:"mailbox_id"`
	ProviderMessageID string    `json:"provider_message_id"`
	Folder            string    `json:"folder"`
	FromAddress       string    `json:"from_address"`
	FromName          string    `json:"from_name,omitempty"`
	Subject           string    `json:"subject,omitempty"`
	BodyExcerpt       string    `json:"body_excerpt,omitempty"`
	Outbound          bool      `json:"outbound"`
	SentAt            time.Time `json:"sent_at"`
	Category          *Category `json:"category,omitempty"`
	IngestedAt        time.Time `json:"ingested_at"`
}

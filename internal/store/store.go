package store

import (
	"context"
	"time"

	"github.com/staffloop/intel-cli/internal/model"
)

// MessageFilter selects raw messages for classification and extraction
// passes. Keyset pagination via AfterID keeps full-corpus scans cheap.
type MessageFilter struct {
	Category      *model.Category
	Unclassified  bool // category IS NULL
	WithoutSignal bool // no requisition signal derived yet
	AfterID       int64
	Limit         int
}

// SignalFilter selects requisition signals for the read API.
type SignalFilter struct {
	Search   string // title substring, case-insensitive
	Status   model.SignalStatus
	From     *time.Time
	To       *time.Time
	MinScore *float64 // actionability floor
	Limit    int
	Offset   int
}

// CompanyFilter selects vendor or client companies.
type CompanyFilter struct {
	Search string // domain or name substring
	Limit  int
	Offset int
}

// ConsultantFilter selects consultants.
type ConsultantFilter struct {
	Search string // name, email, or skill substring
	Limit  int
	Offset int
}

// VendorStats aggregates the per-vendor inputs of the trust score.
type VendorStats struct {
	LifetimeSignals int64
	RecentSignals   int64
	DistinctTitles  int64
	RateDisclosed   int64 // signals with rate text
	LocationGiven   int64 // signals with location
	ContactCount    int64
}

// Store is the persistence interface for the intelligence pipeline.
// Both backends enforce the same natural-key constraints, which is what
// makes every pipeline stage safe to re-run.
type Store interface {
	// Mailboxes
	ListMailboxes(ctx context.Context, activeOnly bool) ([]model.Mailbox, error)
	CreateMailbox(ctx context.Context, address, displayName string) (*model.Mailbox, error)
	UpdateMailboxWatermark(ctx context.Context, mailboxID int64, syncedAt time.Time) error

	// Raw messages
	InsertMessage(ctx context.Context, m *model.RawMessage) (inserted bool, err error)
	ListMessages(ctx context.Context, f MessageFilter) ([]model.RawMessage, error)
	SetMessageCategory(ctx context.Context, messageID int64, c model.Category) error
	CountMessagesByCategory(ctx context.Context) (map[model.Category]int64, error)

	// Vendor entities (merge-upserts)
	UpsertVendorCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.VendorCompany, bool, error)
	UpsertVendorContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.VendorContact, bool, error)
	GetVendorCompanyByDomain(ctx context.Context, domain string) (*model.VendorCompany, error)
	GetVendorContactByEmail(ctx context.Context, email string) (*model.VendorContact, error)
	ListVendorCompanies(ctx context.Context, f CompanyFilter) ([]model.VendorCompany, error)
	ListVendorContacts(ctx context.Context, companyID int64) ([]model.VendorContact, error)

	// Client entities
	UpsertClientCompany(ctx context.Context, domain, name string, emails int64, first, last time.Time) (*model.ClientCompany, bool, error)
	UpsertClientContact(ctx context.Context, companyID int64, email, name string, emails int64, first, last time.Time) (*model.ClientContact, bool, error)
	ListClientCompanies(ctx context.Context, f CompanyFilter) ([]model.ClientCompany, error)

	// Consultants
	UpsertConsultant(ctx context.Context, c *model.Consultant) (inserted bool, err error)
	ListConsultants(ctx context.Context, f ConsultantFilter) ([]model.Consultant, error)

	// Requisition signals
	InsertSignal(ctx context.Context, s *model.RequisitionSignal) (inserted bool, err error)
	GetSignal(ctx context.Context, signalID int64) (*model.RequisitionSignal, error)
	ListSignals(ctx context.Context, f SignalFilter) ([]model.RequisitionSignal, error)
	ListUnscoredSignals(ctx context.Context, limit int) ([]model.RequisitionSignal, error)
	ListRecentSignals(ctx context.Context, since time.Time, limit int) ([]model.RequisitionSignal, error)
	UpdateSignalActionability(ctx context.Context, signalID int64, score float64) error
	UpdateSignalClosure(ctx context.Context, signalID int64, score float64, tier model.ClosureTier) error
	MarkSignalConverted(ctx context.Context, signalID int64) error

	// Trust scores
	VendorSignalStats(ctx context.Context, vendorID int64, recentSince time.Time) (*VendorStats, error)
	UpsertVendorTrustScore(ctx context.Context, s *model.VendorTrustScore) error
	GetVendorTrustScore(ctx context.Context, vendorID int64) (*model.VendorTrustScore, error)
	ListVendorTrustScores(ctx context.Context) ([]model.VendorTrustScore, error)

	// Recruiters and queue
	ListRecruiters(ctx context.Context, activeOnly bool) ([]model.Recruiter, error)
	CountAssignmentsByRecruiter(ctx context.Context, date string) (map[int64]int, error)
	ListAssignedSignalIDs(ctx context.Context, date string) (map[int64]bool, error)
	InsertAssignment(ctx context.Context, a *model.QueueAssignment) (inserted bool, err error)
	RecruiterSkillProfiles(ctx context.Context) (map[int64][]string, error)

	// Jobs (signal conversion)
	InsertJob(ctx context.Context, j *model.Job) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

package model

import "time"

// EmploymentType is the engagement model parsed from a requisition.
// Parsing uses an ordered keyword table; see extract.ParseEmploymentType.
type EmploymentType string

const (
	EmploymentC2C      EmploymentType = "C2C"
	EmploymentW2       EmploymentType = "W2"
	Employment1099     EmploymentType = "1099"
	EmploymentC2H      EmploymentType = "C2H"
	EmploymentFTE      EmploymentType = "FTE"
	EmploymentContract EmploymentType = "CONTRACT"
	EmploymentUnknown  EmploymentType = ""
)

// SignalStatus tracks the lifecycle of a requisition signal.
type SignalStatus string

const (
	SignalStatusNew       SignalStatus = "NEW"
	SignalStatusConverted SignalStatus = "CONVERTED"
)

// RequisitionSignal is a structured job-opening candidate extracted from
// exactly one raw message. A message is never signaled twice.
type RequisitionSignal struct {
	ID              int64          `json:"id"`
	MessageID       int64          `json:"message_id"`
	VendorCompanyID *int64         `json:"vendor_company_id,omitempty"`
	VendorContactID *int64         `json:"vendor_contact_id,omitempty"`
	Title           string         `json:"title"`
	Location        string         `json:"location,omitempty"`
	RateText        string         `json:"rate_text,omitempty"`
	EmploymentType  EmploymentType `json:"employment_type,omitempty"`
	Skills          []string       `json:"skills,omitempty"`
	Status          SignalStatus   `json:"status"`
	Actionability   float64        `json:"actionability"`
	ClosureScore    float64        `json:"closure_score"`
	ClosureTier     string         `json:"closure_tier,omitempty"`
	ReceivedAt      time.Time      `json:"received_at"`
	CreatedAt       time.Time      `json:"created_at"`
}

// HasRate reports whether a rate was disclosed.
func (s *RequisitionSignal) HasRate() bool { return s.RateText != "" }

// HasLocation reports whether a work location was disclosed.
func (s *RequisitionSignal) HasLocation() bool { return s.Location != "" }

// Job is the tenant-scoped record created when a signal is converted.
// The pipeline writes it once and never reads it back.
type Job struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	SignalID  int64     `json:"signal_id"`
	Title     string    `json:"title"`
	Location  string    `json:"location,omitempty"`
	RateText  string    `json:"rate_text,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

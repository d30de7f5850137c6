package model

import (
	"strings"
	"time"
)

// SystemPrefix marks synthetic rows excluded from reporting and scoring.
const SystemPrefix = "[SYSTEM]"

// IsSystemName reports whether an entity name denotes a synthetic row.
func IsSystemName(name string) bool {
	return strings.HasPrefix(name, SystemPrefix)
}

// VendorCompany is a staffing vendor keyed by email domain. Merge
// invariant: first_seen only moves down, last_seen only moves up,
// email_count never decreases.
type VendorCompany struct {
	ID         int64     `json:"id"`
	Domain     string    `json:"domain"`
	Name       string    `json:"name"`
	EmailCount int64     `json:"email_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// VendorContact is a person at a vendor, keyed by email address. The
// contact belongs to the first company it was seen under and is never
// re-parented.
type VendorContact struct {
	ID         int64     `json:"id"`
	CompanyID  int64     `json:"company_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	EmailCount int64     `json:"email_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// ClientCompany is an end client keyed by email domain. Same merge
// invariant as VendorCompany.
type ClientCompany struct {
	ID         int64     `json:"id"`
	Domain     string    `json:"domain"`
	Name       string    `json:"name"`
	EmailCount int64     `json:"email_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// ClientContact is a person at a client company, keyed by email address.
type ClientContact struct {
	ID         int64     `json:"id"`
	CompanyID  int64     `json:"company_id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	EmailCount int64     `json:"email_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

// Consultant is a candidate keyed by email address. Skills are a set
// union across merges; a skill once recorded is never removed by
// re-extraction.
type Consultant struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	Name       string    `json:"name,omitempty"`
	Phone      string    `json:"phone,omitempty"`
	AltEmails  []string  `json:"alt_emails,omitempty"`
	Skills     []string  `json:"skills,omitempty"`
	EmailCount int64     `json:"email_count"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
}

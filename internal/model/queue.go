package model

import "time"

// AssignmentStatus tracks a queue assignment's lifecycle. ASSIGNED is
// set by the allocator; the remaining transitions are written by
// downstream collaborators and only read here.
type AssignmentStatus string

const (
	AssignmentAssigned   AssignmentStatus = "ASSIGNED"
	AssignmentInProgress AssignmentStatus = "IN_PROGRESS"
	AssignmentSubmitted  AssignmentStatus = "SUBMITTED"
	AssignmentSkipped    AssignmentStatus = "SKIPPED"
)

// Recruiter is a human operator receiving daily queue assignments.
type Recruiter struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
	Active bool   `json:"active"`
}

// QueueAssignment links a recruiter to a requisition signal for one
// working day. Unique per (recruiter_id, signal_id, assigned_date);
// reruns of the allocator cannot double-assign.
type QueueAssignment struct {
	ID           string           `json:"id"`
	RecruiterID  int64            `json:"recruiter_id"`
	SignalID     int64            `json:"signal_id"`
	AssignedDate string           `json:"assigned_date"` // YYYY-MM-DD
	Status       AssignmentStatus `json:"status"`
	ClosureScore float64          `json:"closure_score"`
	CreatedAt    time.Time        `json:"created_at"`
}

package database

import (
	"time"
)

// Trainee represents an enrolled person.
type Trainee struct {
	ID           int64
	UniqueName   string
	Email        string // optional contact address, empty if not provided
	RegisteredBy string // "self" or "admin"
	CreatedAt    time.Time
}

// FaceTemplate is a reference embedding owned by exactly one trainee.
// Templates are created at enrollment (averaged over capture frames) and
// never mutated afterwards; a trainee may accumulate more than one.
type FaceTemplate struct {
	ID        int64
	TraineeID int64
	Embedding []float32
	Source    string // "camera" or "upload"
	Dim       int
	CreatedAt time.Time
}

// AttendanceStatus classifies a check-in relative to the workday start.
type AttendanceStatus string

const (
	StatusPresent AttendanceStatus = "present"
	StatusLate    AttendanceStatus = "late"
)

// AttendanceRecord is the per-trainee, per-day ledger row. At most one row
// exists per (trainee, day). CheckoutAt, when set, is never before CheckinAt.
// Status is fixed at check-in time and not recomputed at check-out.
type AttendanceRecord struct {
	ID            int64
	TraineeID     int64
	TraineeName   string // joined for listings, empty when not loaded
	Day           time.Time
	CheckinAt     *time.Time
	CheckoutAt    *time.Time
	Status        AttendanceStatus
	CheckinImage  string // optional audit image reference
	CheckoutImage string
}

// AttendanceFilter narrows attendance listings.
type AttendanceFilter struct {
	Day       *time.Time
	TraineeID *int64
	From      *time.Time
	To        *time.Time
}

// AttendancePatch carries an administrative direct edit. Nil fields are left
// unchanged. When CheckinAt is edited without an explicit Status, the caller
// recomputes the status against the edited time and current policy.
type AttendancePatch struct {
	CheckinAt  *time.Time
	CheckoutAt *time.Time
	Status     *AttendanceStatus
}

// Admin is an administrative account allowed to mutate policy and records.
type Admin struct {
	ID           int64
	Username     string
	PasswordHash string
	CreatedAt    time.Time
}

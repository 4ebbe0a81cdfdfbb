package database

import (
	"context"
	"errors"
	"time"
)

// Lookup and write failures shared by every storage backend.
var (
	// ErrTraineeNotFound is returned when a trainee lookup misses.
	ErrTraineeNotFound = errors.New("trainee not found")
	// ErrRecordNotFound is returned when an attendance record lookup misses.
	ErrRecordNotFound = errors.New("attendance record not found")
	// ErrDuplicateName is returned when enrolling a name that already exists.
	ErrDuplicateName = errors.New("name already registered")
	// ErrConflict signals a concurrent write to the same (trainee, day) row.
	// Callers retry once; a second conflict surfaces to the caller.
	ErrConflict = errors.New("conflicting attendance write")
)

// TraineeReader provides read access to enrolled trainees and their templates.
type TraineeReader interface {
	// Get retrieves a trainee by id.
	Get(ctx context.Context, id int64) (*Trainee, error)
	// GetByName retrieves a trainee by its unique name.
	GetByName(ctx context.Context, name string) (*Trainee, error)
	// List returns all trainees in enrollment order.
	List(ctx context.Context) ([]Trainee, error)
	// AllTemplates returns every stored template in enrollment order.
	// The order is stable and fixes the matcher's tie-break behavior.
	AllTemplates(ctx context.Context) ([]FaceTemplate, error)
	// TemplatesByTrainee returns the templates owned by one trainee.
	TemplatesByTrainee(ctx context.Context, traineeID int64) ([]FaceTemplate, error)
}

// TraineeWriter provides write access to trainee enrollment.
type TraineeWriter interface {
	TraineeReader

	// Create enrolls a trainee together with its first template, atomically.
	// Returns ErrDuplicateName if the unique name is taken.
	Create(ctx context.Context, trainee *Trainee, template *FaceTemplate) error
	// AddTemplate appends a reference template to an existing trainee.
	AddTemplate(ctx context.Context, template *FaceTemplate) error
	// Delete removes a trainee, cascading its templates and attendance rows.
	Delete(ctx context.Context, id int64) error
}

// AttendanceStore provides access to the per-trainee, per-day ledger rows.
type AttendanceStore interface {
	// GetDay returns the row for (traineeID, day), or nil when absent.
	GetDay(ctx context.Context, traineeID int64, day time.Time) (*AttendanceRecord, error)
	// GetByID retrieves a record by primary key, ErrRecordNotFound on miss.
	GetByID(ctx context.Context, id int64) (*AttendanceRecord, error)
	// CreateCheckin inserts a new check-in row. Returns ErrConflict when a
	// row for the same (trainee, day) was committed concurrently.
	CreateCheckin(ctx context.Context, rec *AttendanceRecord) error
	// SetCheckout stamps the check-out time on an open row.
	SetCheckout(ctx context.Context, id int64, at time.Time, image string) error
	// Update applies an administrative direct edit.
	Update(ctx context.Context, id int64, patch AttendancePatch) error
	// List returns records matching the filter, newest day first.
	List(ctx context.Context, filter AttendanceFilter) ([]AttendanceRecord, error)
	// AbsentNames returns the names of trainees with no row for the day.
	AbsentNames(ctx context.Context, day time.Time) ([]string, error)
}

// PolicyStore holds the single mutable scan policy row.
type PolicyStore interface {
	// Get reads the current policy. Called fresh on every scan.
	Get(ctx context.Context) (*ScanPolicy, error)
	// Put replaces the policy. Values are validated before they get here.
	Put(ctx context.Context, policy *ScanPolicy) error
}

// AdminStore holds administrative accounts.
type AdminStore interface {
	// GetByUsername retrieves an admin account, nil when missing.
	GetByUsername(ctx context.Context, username string) (*Admin, error)
	// Create inserts an admin account.
	Create(ctx context.Context, admin *Admin) error
}

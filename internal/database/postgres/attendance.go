package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/scanin/scanin/internal/database"
)

// AttendanceRepository provides PostgreSQL-backed ledger storage. The unique
// constraint on (trainee_id, day) is the cross-process backstop for the scan
// path; a violated insert surfaces database.ErrConflict.
type AttendanceRepository struct {
	pool *Pool
}

// NewAttendanceRepository creates a new PostgreSQL attendance repository
func NewAttendanceRepository(pool *Pool) *AttendanceRepository {
	return &AttendanceRepository{pool: pool}
}

const dayFormat = "2006-01-02"

// GetDay returns the row for (traineeID, day), or nil when absent.
func (r *AttendanceRepository) GetDay(ctx context.Context, traineeID int64, day time.Time) (*database.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.trainee_id, t.unique_name, a.day, a.checkin_at, a.checkout_at,
		       a.status, a.checkin_image, a.checkout_image
		FROM attendance a
		JOIN trainees t ON t.id = a.trainee_id
		WHERE a.trainee_id = $1 AND a.day = $2::date
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, traineeID, day.Format(dayFormat)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance day: %w", err)
	}
	return rec, nil
}

// GetByID retrieves a record by primary key.
func (r *AttendanceRepository) GetByID(ctx context.Context, id int64) (*database.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.trainee_id, t.unique_name, a.day, a.checkin_at, a.checkout_at,
		       a.status, a.checkin_image, a.checkout_image
		FROM attendance a
		JOIN trainees t ON t.id = a.trainee_id
		WHERE a.id = $1
	`

	rec, err := scanRecord(r.pool.QueryRow(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query attendance record: %w", err)
	}
	return rec, nil
}

// CreateCheckin inserts a new check-in row. A unique violation means another
// writer committed the same (trainee, day) first.
func (r *AttendanceRepository) CreateCheckin(ctx context.Context, rec *database.AttendanceRecord) error {
	err := r.pool.QueryRow(ctx, `
		INSERT INTO attendance (trainee_id, day, checkin_at, status, checkin_image)
		VALUES ($1, $2::date, $3, $4, $5)
		RETURNING id
	`, rec.TraineeID, rec.Day.Format(dayFormat), rec.CheckinAt, string(rec.Status), rec.CheckinImage).Scan(&rec.ID)
	if isUniqueViolation(err) {
		return database.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert checkin: %w", err)
	}
	return nil
}

// SetCheckout stamps the check-out time on an open row.
func (r *AttendanceRepository) SetCheckout(ctx context.Context, id int64, at time.Time, image string) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE attendance
		SET checkout_at = $2, checkout_image = $3
		WHERE id = $1
	`, id, at, image)
	if err != nil {
		return fmt.Errorf("update checkout: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update checkout: %w", err)
	}
	if affected == 0 {
		return database.ErrRecordNotFound
	}
	return nil
}

// Update applies an administrative direct edit. Only non-nil patch fields are
// written.
func (r *AttendanceRepository) Update(ctx context.Context, id int64, patch database.AttendancePatch) error {
	var sets []string
	var args []any
	args = append(args, id)

	if patch.CheckinAt != nil {
		args = append(args, *patch.CheckinAt)
		sets = append(sets, fmt.Sprintf("checkin_at = $%d", len(args)))
	}
	if patch.CheckoutAt != nil {
		args = append(args, *patch.CheckoutAt)
		sets = append(sets, fmt.Sprintf("checkout_at = $%d", len(args)))
	}
	if patch.Status != nil {
		args = append(args, string(*patch.Status))
		sets = append(sets, fmt.Sprintf("status = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE attendance SET %s WHERE id = $1", strings.Join(sets, ", "))
	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update attendance: %w", err)
	}
	if affected == 0 {
		return database.ErrRecordNotFound
	}
	return nil
}

// List returns records matching the filter, newest day first.
func (r *AttendanceRepository) List(ctx context.Context, filter database.AttendanceFilter) ([]database.AttendanceRecord, error) {
	query := `
		SELECT a.id, a.trainee_id, t.unique_name, a.day, a.checkin_at, a.checkout_at,
		       a.status, a.checkin_image, a.checkout_image
		FROM attendance a
		JOIN trainees t ON t.id = a.trainee_id
	`

	var conds []string
	var args []any
	if filter.Day != nil {
		args = append(args, filter.Day.Format(dayFormat))
		conds = append(conds, fmt.Sprintf("a.day = $%d::date", len(args)))
	}
	if filter.TraineeID != nil {
		args = append(args, *filter.TraineeID)
		conds = append(conds, fmt.Sprintf("a.trainee_id = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, filter.From.Format(dayFormat))
		conds = append(conds, fmt.Sprintf("a.day >= $%d::date", len(args)))
	}
	if filter.To != nil {
		args = append(args, filter.To.Format(dayFormat))
		conds = append(conds, fmt.Sprintf("a.day <= $%d::date", len(args)))
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY a.day DESC, a.id"

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var records []database.AttendanceRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan attendance record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendance records: %w", err)
	}
	return records, nil
}

// AbsentNames returns the names of trainees with no attendance row for the day.
func (r *AttendanceRepository) AbsentNames(ctx context.Context, day time.Time) ([]string, error) {
	query := `
		SELECT t.unique_name
		FROM trainees t
		WHERE NOT EXISTS (
			SELECT 1 FROM attendance a
			WHERE a.trainee_id = t.id AND a.day = $1::date
		)
		ORDER BY t.unique_name
	`

	rows, err := r.pool.Query(ctx, query, day.Format(dayFormat))
	if err != nil {
		return nil, fmt.Errorf("query absent trainees: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan trainee name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate absent trainees: %w", err)
	}
	return names, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*database.AttendanceRecord, error) {
	var rec database.AttendanceRecord
	var checkin, checkout sql.NullTime
	var status string

	if err := row.Scan(
		&rec.ID,
		&rec.TraineeID,
		&rec.TraineeName,
		&rec.Day,
		&checkin,
		&checkout,
		&status,
		&rec.CheckinImage,
		&rec.CheckoutImage,
	); err != nil {
		return nil, err
	}

	if checkin.Valid {
		rec.CheckinAt = &checkin.Time
	}
	if checkout.Valid {
		rec.CheckoutAt = &checkout.Time
	}
	rec.Status = database.AttendanceStatus(status)
	return &rec, nil
}

// Verify interface compliance
var _ database.AttendanceStore = (*AttendanceRepository)(nil)

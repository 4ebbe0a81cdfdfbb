// Package attendance owns the per-trainee, per-day check-in/check-out state
// machine and its concurrency discipline.
package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/scanin/scanin/internal/database"
	"github.com/scanin/scanin/internal/events"
)

var (
	// ErrAlreadyCompleted means the trainee already checked in and out today.
	ErrAlreadyCompleted = errors.New("already checked in and out today")
	// ErrNotCheckedIn means a checkout was attempted with no open check-in.
	ErrNotCheckedIn = errors.New("not checked in today")
	// ErrContention means two conflicting commits were detected in a row.
	ErrContention = errors.New("attendance record contention, try again")
	// ErrInvalidEdit rejects an administrative edit that would break the
	// checkout >= checkin invariant.
	ErrInvalidEdit = errors.New("checkout time before checkin time")
)

// Action names the transition a scan performed.
type Action string

const (
	ActionCheckin  Action = "checkin"
	ActionCheckout Action = "checkout"
)

// ScanResult reports a completed ledger transition.
type ScanResult struct {
	Action Action
	Record *database.AttendanceRecord
}

// Service applies ledger transitions. The read-decide-write sequence for one
// (trainee, day) runs under a per-key mutex; the store's unique constraint
// backstops writers in other processes, surfacing database.ErrConflict which
// is retried once.
type Service struct {
	store       database.AttendanceStore
	policies    database.PolicyStore
	broadcaster *events.Broadcaster
	locks       *keyedMutex
}

func NewService(store database.AttendanceStore, policies database.PolicyStore, broadcaster *events.Broadcaster) *Service {
	return &Service{
		store:       store,
		policies:    policies,
		broadcaster: broadcaster,
		locks:       newKeyedMutex(),
	}
}

// ComputeStatus classifies a check-in against the workday start. The grace
// boundary is inclusive: checking in at exactly start+grace is present.
func ComputeStatus(checkin time.Time, policy *database.ScanPolicy) database.AttendanceStatus {
	deadline := policy.WorkStart(checkin).Add(policy.GracePeriod())
	if checkin.After(deadline) {
		return database.StatusLate
	}
	return database.StatusPresent
}

// Day truncates t to its calendar date.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func lockKey(traineeID int64, day time.Time) string {
	return fmt.Sprintf("%d|%s", traineeID, day.Format("2006-01-02"))
}

// RecordScan performs the combined transition for a recognized trainee:
// first scan of the day checks in, second checks out, third fails with
// ErrAlreadyCompleted and no side effects. The event for a completed
// transition is published after the write commits and cannot fail the scan.
func (s *Service) RecordScan(ctx context.Context, trainee *database.Trainee, now time.Time, image string) (*ScanResult, error) {
	day := Day(now)
	unlock := s.locks.lock(lockKey(trainee.ID, day))
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		result, err := s.scanOnce(ctx, trainee, now, day, image)
		if errors.Is(err, database.ErrConflict) {
			// Another process committed this row first. Re-read once; the
			// second pass observes CheckedIn and performs the checkout.
			continue
		}
		return result, err
	}
	return nil, ErrContention
}

func (s *Service) scanOnce(ctx context.Context, trainee *database.Trainee, now time.Time, day time.Time, image string) (*ScanResult, error) {
	rec, err := s.store.GetDay(ctx, trainee.ID, day)
	if err != nil {
		return nil, fmt.Errorf("reading attendance: %w", err)
	}

	if rec == nil {
		return s.checkin(ctx, trainee, now, day, image)
	}
	if rec.CheckoutAt != nil {
		return nil, ErrAlreadyCompleted
	}
	return s.checkout(ctx, trainee, rec, now, image)
}

func (s *Service) checkin(ctx context.Context, trainee *database.Trainee, now time.Time, day time.Time, image string) (*ScanResult, error) {
	// Policy is read at the instant of the transition, never cached.
	policy, err := s.policies.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading scan policy: %w", err)
	}

	rec := &database.AttendanceRecord{
		TraineeID:    trainee.ID,
		TraineeName:  trainee.UniqueName,
		Day:          day,
		CheckinAt:    &now,
		Status:       ComputeStatus(now, policy),
		CheckinImage: image,
	}
	if err := s.store.CreateCheckin(ctx, rec); err != nil {
		return nil, err
	}

	s.broadcaster.Publish(events.Event{
		Type:        events.TypeCheckin,
		TraineeName: trainee.UniqueName,
		Time:        now,
		Status:      rec.Status,
	})
	return &ScanResult{Action: ActionCheckin, Record: rec}, nil
}

func (s *Service) checkout(ctx context.Context, trainee *database.Trainee, rec *database.AttendanceRecord, now time.Time, image string) (*ScanResult, error) {
	if rec.CheckinAt != nil && now.Before(*rec.CheckinAt) {
		// Clock skew between stations; clamp so checkout >= checkin holds.
		now = *rec.CheckinAt
	}

	if err := s.store.SetCheckout(ctx, rec.ID, now, image); err != nil {
		return nil, fmt.Errorf("writing checkout: %w", err)
	}
	rec.CheckoutAt = &now
	rec.CheckoutImage = image
	rec.TraineeName = trainee.UniqueName

	// Status echoes the stored check-in classification.
	s.broadcaster.Publish(events.Event{
		Type:        events.TypeCheckout,
		TraineeName: trainee.UniqueName,
		Time:        now,
		Status:      rec.Status,
	})
	return &ScanResult{Action: ActionCheckout, Record: rec}, nil
}

// RecordCheckout performs the explicit checkout operation. It fails with
// ErrNotCheckedIn when the trainee has no open check-in today and with
// ErrAlreadyCompleted when the day is already closed.
func (s *Service) RecordCheckout(ctx context.Context, trainee *database.Trainee, now time.Time, image string) (*ScanResult, error) {
	day := Day(now)
	unlock := s.locks.lock(lockKey(trainee.ID, day))
	defer unlock()

	rec, err := s.store.GetDay(ctx, trainee.ID, day)
	if err != nil {
		return nil, fmt.Errorf("reading attendance: %w", err)
	}
	if rec == nil || rec.CheckinAt == nil {
		return nil, ErrNotCheckedIn
	}
	if rec.CheckoutAt != nil {
		return nil, ErrAlreadyCompleted
	}
	return s.checkout(ctx, trainee, rec, now, image)
}

// Edit applies an administrative direct edit to an existing record. When the
// check-in time changes without an explicit status, the status is recomputed
// against the edited time and the policy current at the edit.
func (s *Service) Edit(ctx context.Context, id int64, patch database.AttendancePatch) (*database.AttendanceRecord, error) {
	rec, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if patch.CheckinAt != nil && patch.Status == nil {
		policy, err := s.policies.Get(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading scan policy: %w", err)
		}
		status := ComputeStatus(*patch.CheckinAt, policy)
		patch.Status = &status
	}

	checkin := rec.CheckinAt
	if patch.CheckinAt != nil {
		checkin = patch.CheckinAt
	}
	checkout := rec.CheckoutAt
	if patch.CheckoutAt != nil {
		checkout = patch.CheckoutAt
	}
	if checkin != nil && checkout != nil && checkout.Before(*checkin) {
		return nil, ErrInvalidEdit
	}

	if err := s.store.Update(ctx, id, patch); err != nil {
		return nil, fmt.Errorf("updating record: %w", err)
	}
	return s.store.GetByID(ctx, id)
}

// Absentees returns the names of trainees with no attendance row for the
// day. Read-only; used by the daily notification sweep.
func (s *Service) Absentees(ctx context.Context, day time.Time) ([]string, error) {
	names, err := s.store.AbsentNames(ctx, Day(day))
	if err != nil {
		return nil, fmt.Errorf("querying absentees: %w", err)
	}
	return names, nil
}

// Package scheduler runs the daily absence sweep in the background.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/scanin/scanin/internal/database"
)

// AbsenteeSource reports the trainees with no attendance for a day.
type AbsenteeSource interface {
	Absentees(ctx context.Context, day time.Time) ([]string, error)
}

// Notifier delivers the absence alert. Delivery failures are logged by the
// sweeper, never retried within the same day.
type Notifier interface {
	NotifyAbsentees(ctx context.Context, day time.Time, names []string) error
}

// AbsenceSweeper fires once per day, a configurable delay after the workday
// start plus grace period, and notifies about trainees who never checked in.
// The fire time is recomputed from the live policy before every wait, so
// policy edits take effect without a restart.
type AbsenceSweeper struct {
	policies database.PolicyStore
	source   AbsenteeSource
	notifier Notifier
	delay    time.Duration
	logger   *log.Logger
	cancel   context.CancelFunc
	done     chan struct{}

	now func() time.Time
}

// NewAbsenceSweeper creates a sweeper but does not start it.
// Call Start to begin the background loop.
func NewAbsenceSweeper(policies database.PolicyStore, source AbsenteeSource, notifier Notifier, delay time.Duration, logger *log.Logger) *AbsenceSweeper {
	if delay <= 0 {
		delay = time.Hour
	}
	return &AbsenceSweeper{
		policies: policies,
		source:   source,
		notifier: notifier,
		delay:    delay,
		logger:   logger,
		done:     make(chan struct{}),
		now:      time.Now,
	}
}

// Start begins the background loop. The loop exits when ctx is cancelled or
// Stop is called.
func (s *AbsenceSweeper) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	go s.loop(ctx)

	s.logger.Printf("absence sweeper started (delay=%s after work start + grace)", s.delay)
}

// Stop signals the sweeper to exit and waits for it to finish.
func (s *AbsenceSweeper) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	<-s.done
}

func (s *AbsenceSweeper) loop(ctx context.Context) {
	defer close(s.done)

	for {
		fireAt, err := s.nextFire(ctx)
		if err != nil {
			s.logger.Printf("absence sweep: reading policy: %v", err)
			fireAt = s.now().Add(time.Hour)
		}

		timer := time.NewTimer(time.Until(fireAt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			s.Sweep(ctx, fireAt)
		}
	}
}

// nextFire returns the next sweep time: today's work start plus grace plus
// the configured delay, or the same moment tomorrow when already past.
func (s *AbsenceSweeper) nextFire(ctx context.Context) (time.Time, error) {
	policy, err := s.policies.Get(ctx)
	if err != nil {
		return time.Time{}, err
	}

	now := s.now()
	fireAt := policy.WorkStart(now).Add(policy.GracePeriod()).Add(s.delay)
	if !fireAt.After(now) {
		tomorrow := now.AddDate(0, 0, 1)
		fireAt = policy.WorkStart(tomorrow).Add(policy.GracePeriod()).Add(s.delay)
	}
	return fireAt, nil
}

// Sweep queries absentees for the day and sends the alert. Errors are logged;
// the loop keeps running regardless.
func (s *AbsenceSweeper) Sweep(ctx context.Context, day time.Time) {
	names, err := s.source.Absentees(ctx, day)
	if err != nil {
		s.logger.Printf("absence sweep: %v", err)
		return
	}
	if len(names) == 0 {
		s.logger.Printf("absence sweep: everyone checked in on %s", day.Format("2006-01-02"))
		return
	}

	if err := s.notifier.NotifyAbsentees(ctx, day, names); err != nil {
		s.logger.Printf("absence sweep: %v", err)
		return
	}
	s.logger.Printf("absence sweep: notified about %d absentees on %s", len(names), day.Format("2006-01-02"))
}

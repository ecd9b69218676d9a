package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/example/lughat/pkg/models"
	"github.com/go-co-op/gocron"
)

// DefaultSpec runs the reminder check at the top of every hour
const DefaultSpec = "0 * * * *"

// Scheduler manages scheduled tasks for the application
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	source    ReminderSource
	spec      string
	clock     func() time.Time
	timeout   time.Duration
}

// Notifier interface for sending notifications
type Notifier interface {
	SendReminders(userID int64, count int) error
}

// ReminderSource finds who should be reminded and how much is waiting
type ReminderSource interface {
	ReminderCandidates(ctx context.Context, now time.Time) ([]models.GamificationProfile, error)
	CountDue(ctx context.Context, userID int64) (int, error)
}

// New creates a new scheduler instance. An empty spec means DefaultSpec.
func New(notifier Notifier, source ReminderSource, spec string) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		source:    source,
		spec:      spec,
		clock:     time.Now,
		timeout:   5 * time.Minute,
	}
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	// Schedule hourly check for users who need notifications
	_, err := s.scheduler.Cron(s.spec).Do(s.checkAndSendReminders)
	if err != nil {
		return err
	}

	// Start the scheduler in a non-blocking manner
	s.scheduler.StartAsync()
	slog.Info("reminder scheduler started", "spec", s.spec)
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) checkAndSendReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	sent, err := s.RunCheck(ctx, s.clock())
	if err != nil {
		slog.Error("reminder check failed", "error", err)
		return
	}
	slog.Info("reminder check finished", "sent", sent)
}

// RunCheck reminds every user whose reminder hour is now and who has due
// cards. It returns the number of reminders sent.
func (s *Scheduler) RunCheck(ctx context.Context, now time.Time) (int, error) {
	profiles, err := s.source.ReminderCandidates(ctx, now)
	if err != nil {
		return 0, err
	}

	sent := 0
	for _, p := range profiles {
		if ctx.Err() != nil {
			return sent, ctx.Err()
		}
		ok, err := s.remind(ctx, p.UserID)
		if err != nil {
			slog.Warn("failed to send reminder", "user_id", p.UserID, "error", err)
			continue
		}
		if ok {
			sent++
		}
	}
	return sent, nil
}

// RunManualCheck forces a check for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, userID int64) error {
	_, err := s.remind(ctx, userID)
	return err
}

func (s *Scheduler) remind(ctx context.Context, userID int64) (bool, error) {
	count, err := s.source.CountDue(ctx, userID)
	if err != nil {
		return false, err
	}
	// Нечего повторять
	if count == 0 {
		return false, nil
	}
	if err := s.notifier.SendReminders(userID, count); err != nil {
		return false, err
	}
	return true, nil
}

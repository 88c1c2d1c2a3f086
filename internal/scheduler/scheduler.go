package scheduler

import (
	"context"
	"fmt"
	"time"

	"bluegold-backend/internal/application/interest"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	DefaultDueDateCron = "0 0 * * * *"
	CleanupCron        = "0 30 3 * * *"
)

// DueDateRunner is the engine surface the hourly tick drives.
type DueDateRunner interface {
	ProcessAllDueDates(ctx context.Context) interest.BatchResult
	SendDueReminders(ctx context.Context) (int, error)
}

// Cleaner removes expired notifications.
type Cleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Scheduler runs the due-date tick and the notification cleanup.
type Scheduler struct {
	Cron    *cron.Cron
	Engine  DueDateRunner
	Cleaner Cleaner
	Timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
}

// cronLogger sends cron's reports to l: recovered panics at error level,
// schedule and skip chatter at debug.
type cronLogger struct {
	l zerolog.Logger
}

func newCronLogger(l zerolog.Logger) cronLogger {
	return cronLogger{l: l.With().Str("component", "scheduler").Logger()}
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug().Fields(keysAndValues).Msg(msg)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error().Err(err).Fields(keysAndValues).Msg(msg)
}

// New creates a scheduler whose jobs skip a run while the previous one is
// still going.
func New(engine DueDateRunner, cleaner Cleaner, timeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	logger := newCronLogger(log.Logger)
	return &Scheduler{
		Cron: cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger))),
		Engine:  engine,
		Cleaner: cleaner,
		Timeout: timeout,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// RegisterAll adds the due-date job at dueDateCron (hourly when empty) and
// the daily cleanup.
func (s *Scheduler) RegisterAll(dueDateCron string) error {
	if dueDateCron == "" {
		dueDateCron = DefaultDueDateCron
	}
	if _, err := s.Cron.AddFunc(dueDateCron, s.RunDueDates); err != nil {
		return fmt.Errorf("register due-date task: %w", err)
	}
	if s.Cleaner != nil {
		if _, err := s.Cron.AddFunc(CleanupCron, s.RunCleanup); err != nil {
			return fmt.Errorf("register cleanup task: %w", err)
		}
	}
	return nil
}

func (s *Scheduler) Start() {
	s.Cron.Start()
	log.Info().Int("jobs", len(s.Cron.Entries())).Msg("scheduler started")
}

// Stop cancels in-flight jobs and waits for them to return or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	s.cancel()
	done := s.Cron.Stop()
	select {
	case <-done.Done():
		log.Info().Msg("scheduler stopped")
	case <-ctx.Done():
		log.Warn().Msg("scheduler stop timed out")
	}
}

// RunDueDates processes every due investor then sends due-date reminders.
func (s *Scheduler) RunDueDates() {
	ctx, cancel := context.WithTimeout(s.ctx, s.Timeout)
	defer cancel()
	started := time.Now()
	res := s.Engine.ProcessAllDueDates(ctx)
	evt := log.Info()
	if !res.Success {
		evt = log.Warn()
	}
	evt.Int("processed", res.ProcessedCount).Int("credited_weeks", res.CreditedWeeks).
		Int("errors", len(res.Errors)).Dur("took", time.Since(started)).Msg("due-date tick finished")

	sent, err := s.Engine.SendDueReminders(ctx)
	if err != nil {
		log.Error().Err(err).Msg("due-date reminders failed")
		return
	}
	if sent > 0 {
		log.Info().Int("sent", sent).Msg("due-date reminders sent")
	}
}

// RunCleanup deletes expired notifications.
func (s *Scheduler) RunCleanup() {
	ctx, cancel := context.WithTimeout(s.ctx, s.Timeout)
	defer cancel()
	n, err := s.Cleaner.CleanupExpired(ctx)
	if err != nil {
		log.Error().Err(err).Msg("notification cleanup failed")
		return
	}
	log.Info().Int64("deleted", n).Msg("expired notifications cleaned up")
}

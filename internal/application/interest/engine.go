package interest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
)

const defaultWorkers = 4

// Limiter grants a key at most once per window. Release gives a claimed
// key back before its window ends.
type Limiter interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
	Release(ctx context.Context, key string) error
}

// Engine owns every mutation of an investor's interest clock and spending
// account. Each mutation runs in a database transaction holding the
// investor row lock.
type Engine struct {
	DB       *gorm.DB
	Rules    *portfolio.Rules
	Notifier notifications.Notifier
	Limiter  Limiter
	Tracer   trace.Tracer
	Workers  int
	Timeout  time.Duration
	Now      func() time.Time
}

// InvestorError is one failed investor in a batch run.
type InvestorError struct {
	InvestorID string `json:"investor_id"`
	Error      string `json:"error"`
}

// BatchResult is the outcome of ProcessAllDueDates.
type BatchResult struct {
	Success        bool            `json:"success"`
	ProcessedCount int             `json:"processed_count"`
	CreditedWeeks  int             `json:"credited_weeks"`
	Errors         []InvestorError `json:"errors"`
}

// Outcome describes what one advance did to an investor.
type Outcome struct {
	InvestorID      uuid.UUID       `json:"investor_id"`
	State           State           `json:"state"`
	CreditedWeeks   int             `json:"credited_weeks"`
	CreditedAmount  decimal.Decimal `json:"credited_amount"`
	CurrentWeek     int             `json:"current_week"`
	LastDueDate     *time.Time      `json:"last_due_date"`
	NextDueDate     *time.Time      `json:"next_due_date"`
	Matured         bool            `json:"matured"`
	SpendingBalance decimal.Decimal `json:"spending_balance"`
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now().UTC()
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer("bluegold-backend/interest")
}

func (e *Engine) notify(ctx context.Context, n domain.Notification) {
	if e.Notifier == nil {
		return
	}
	e.Notifier.Notify(ctx, n)
}

func interestKey(investorID uuid.UUID, start time.Time, week int) string {
	return fmt.Sprintf("interest:%s:%d:%d", investorID, start.Unix(), week)
}

// advance credits every week that has come due by now and normalizes the
// due-date pair to start + 7*current_week. Re-running it at the same
// instant is a no-op because each credit moves current_week under the lock.
func (e *Engine) advance(tx *gorm.DB, inv *domain.Investor, now time.Time) (Outcome, error) {
	out := Outcome{InvestorID: inv.ID, CreditedAmount: decimal.Zero}
	st, err := Derive(e.Rules, inv, now)
	if err != nil {
		return out, err
	}
	out.State = st.State
	if st.State != StateActive && st.State != StateMatured {
		out.CurrentWeek = inv.CurrentWeek
		out.SpendingBalance = inv.SpendingBalance
		return out, nil
	}
	start := *inv.InvestmentStartDate
	duration := st.Rule.DurationWeeks

	if inv.LastDueDate != nil && inv.LastDueDate.After(DueAt(start, inv.CurrentWeek)) {
		return out, ErrDatesAhead
	}

	weekly := st.Rule.WeeklyInterest(inv.InitialInvestment)
	dirty := false
	for inv.CurrentWeek < duration {
		week := inv.CurrentWeek + 1
		dueAt := DueAt(start, week)
		if dueAt.After(now) {
			break
		}
		inv.SpendingBalance = inv.SpendingBalance.Add(weekly)
		inv.CurrentWeek = week
		inv.LastDueDate = &dueAt
		if _, err := ledger.RecordInterest(tx, inv, week, weekly, interestKey(inv.ID, start, week), now); err != nil {
			return out, err
		}
		out.CreditedWeeks++
		out.CreditedAmount = out.CreditedAmount.Add(weekly)
		dirty = true
	}

	lastDue := DueAt(start, inv.CurrentWeek)
	var nextDue *time.Time
	if inv.CurrentWeek < duration {
		n := DueAt(start, inv.CurrentWeek+1)
		nextDue = &n
	} else {
		out.Matured = true
		out.State = StateMatured
	}
	if !sameInstant(inv.LastDueDate, &lastDue) || !sameInstant(inv.NextDueDate, nextDue) {
		dirty = true
	}
	inv.LastDueDate = &lastDue
	inv.NextDueDate = nextDue
	if inv.InvestmentExpiryDate == nil {
		exp := st.Rule.ExpiryFrom(start)
		inv.InvestmentExpiryDate = &exp
		dirty = true
	}

	if dirty {
		if err := tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
			"spending_balance":       inv.SpendingBalance,
			"current_week":           inv.CurrentWeek,
			"last_due_date":          inv.LastDueDate,
			"next_due_date":          inv.NextDueDate,
			"investment_expiry_date": inv.InvestmentExpiryDate,
		}).Error; err != nil {
			return out, err
		}
	}
	out.CurrentWeek = inv.CurrentWeek
	out.LastDueDate = inv.LastDueDate
	out.NextDueDate = inv.NextDueDate
	out.SpendingBalance = inv.SpendingBalance
	return out, nil
}

func sameInstant(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

// ProcessInvestor advances one investor under its row lock.
func (e *Engine) ProcessInvestor(ctx context.Context, investorID uuid.UUID) (Outcome, error) {
	return e.processInvestor(ctx, investorID, e.now())
}

func (e *Engine) processInvestor(ctx context.Context, investorID uuid.UUID, now time.Time) (Outcome, error) {
	ctx, span := e.tracer().Start(ctx, "interest.process_investor",
		trace.WithAttributes(attribute.String("investor_id", investorID.String())))
	defer span.End()

	tctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()

	var out Outcome
	err := e.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		out, err = e.advance(tx, inv, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return out, database.Classify(err)
	}
	span.SetAttributes(attribute.Int("credited_weeks", out.CreditedWeeks))
	if out.CreditedWeeks > 0 {
		e.notify(ctx, notifications.InterestPaid(investorID, out.CreditedAmount, out.CreditedWeeks, now))
	}
	return out, nil
}

// EnsureDueDatesUpToDate reconciles one investor on read. It performs the
// same advance as the scheduled batch, so both give identical results.
func (e *Engine) EnsureDueDatesUpToDate(ctx context.Context, investorID uuid.UUID) (Outcome, error) {
	return e.processInvestor(ctx, investorID, e.now())
}

func (e *Engine) dueInvestorIDs(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var ids []uuid.UUID
	err := e.DB.WithContext(ctx).Model(&domain.Investor{}).
		Where("investment_type IS NOT NULL AND investment_type <> ''").
		Where("next_due_date IS NOT NULL AND next_due_date <= ?", now).
		Order("next_due_date ASC").
		Pluck("id", &ids).Error
	return ids, database.Classify(err)
}

// ProcessAllDueDates is the scheduler entry point. Each due investor is
// advanced independently; failures are collected and never stop the batch.
func (e *Engine) ProcessAllDueDates(ctx context.Context) BatchResult {
	ctx, span := e.tracer().Start(ctx, "interest.process_all_due_dates")
	defer span.End()

	now := e.now()
	result := BatchResult{Errors: []InvestorError{}}
	ids, err := e.dueInvestorIDs(ctx, now)
	if err != nil {
		span.RecordError(err)
		log.Error().Err(err).Msg("due date batch: listing investors failed")
		result.Errors = append(result.Errors, InvestorError{Error: err.Error()})
		return result
	}

	workers := e.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, workers)
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()
			out, err := e.processInvestor(ctx, id, now)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				log.Warn().Err(err).Str("investor_id", id.String()).Msg("due date batch: investor failed")
				result.Errors = append(result.Errors, InvestorError{InvestorID: id.String(), Error: err.Error()})
				return
			}
			if out.CreditedWeeks > 0 || out.Matured {
				result.ProcessedCount++
				result.CreditedWeeks += out.CreditedWeeks
			}
		}()
	}
	wg.Wait()

	result.Success = true
	span.SetAttributes(
		attribute.Int("due_investors", len(ids)),
		attribute.Int("processed", result.ProcessedCount),
		attribute.Int("errors", len(result.Errors)),
	)
	log.Info().Int("due_investors", len(ids)).Int("processed", result.ProcessedCount).
		Int("credited_weeks", result.CreditedWeeks).Int("errors", len(result.Errors)).
		Msg("due date batch finished")
	return result
}

// SendDueReminders emits a due_date_reminder for investors whose next due
// date falls on the fourth day from now. Requires a Limiter so each due date
// is announced once.
func (e *Engine) SendDueReminders(ctx context.Context) (int, error) {
	if e.Limiter == nil || e.Notifier == nil {
		return 0, nil
	}
	now := e.now()
	qctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var invs []domain.Investor
	if err := e.DB.WithContext(qctx).
		Where("investment_type IS NOT NULL AND investment_type <> ''").
		Where("next_due_date > ? AND next_due_date <= ?", now.Add(3*24*time.Hour), now.Add(4*24*time.Hour)).
		Find(&invs).Error; err != nil {
		return 0, database.Classify(err)
	}
	sent := 0
	for i := range invs {
		inv := &invs[i]
		st, err := Derive(e.Rules, inv, now)
		if err != nil || st.State != StateActive {
			continue
		}
		key := fmt.Sprintf("reminder:%s:%d", inv.ID, inv.NextDueDate.Unix())
		ok, err := e.Limiter.Allow(ctx, key, 5*24*time.Hour)
		if err != nil {
			log.Warn().Err(err).Str("investor_id", inv.ID.String()).Msg("due reminder limiter failed")
			continue
		}
		if !ok {
			continue
		}
		days := int(inv.NextDueDate.Sub(now).Hours()/24 + 0.999)
		e.notify(ctx, notifications.DueDateReminder(inv.ID, st.Rule.WeeklyInterest(inv.InitialInvestment), days, now))
		sent++
	}
	return sent, nil
}

package interest

import (
	"context"
	"fmt"
	"time"

	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// CatchUpWindow is the minimum spacing between catch-ups of one investor.
const CatchUpWindow = 24 * time.Hour

// MissedPayments describes how far an investor's stored week lags time.
type MissedPayments struct {
	InvestorID      uuid.UUID       `json:"investor_id"`
	AccountNumber   string          `json:"account_number"`
	CurrentWeek     int             `json:"current_week"`
	CalculatedWeeks int             `json:"calculated_weeks"`
	MissedWeeks     int             `json:"missed_weeks"`
	WeeklyInterest  decimal.Decimal `json:"weekly_interest"`
	MissedAmount    decimal.Decimal `json:"missed_amount"`
}

// CalculateMissedPayments compares stored progress with elapsed weeks.
// A stored week ahead of elapsed time is an integrity error.
func CalculateMissedPayments(rules *portfolio.Rules, inv *domain.Investor, now time.Time) (MissedPayments, error) {
	mp := MissedPayments{
		InvestorID:     inv.ID,
		AccountNumber:  inv.AccountNumber,
		CurrentWeek:    inv.CurrentWeek,
		WeeklyInterest: decimal.Zero,
		MissedAmount:   decimal.Zero,
	}
	if inv.Investment() == "" {
		return mp, ErrNoInvestmentType
	}
	st, err := Derive(rules, inv, now)
	if err != nil {
		return mp, err
	}
	mp.CalculatedWeeks = st.ElapsedWeeks
	if inv.CurrentWeek > st.ElapsedWeeks && inv.CurrentWeek <= st.Rule.DurationWeeks {
		return mp, ErrWeekAhead
	}
	mp.WeeklyInterest = st.Rule.WeeklyInterest(inv.InitialInvestment)
	if st.ElapsedWeeks > inv.CurrentWeek {
		mp.MissedWeeks = st.ElapsedWeeks - inv.CurrentWeek
		mp.MissedAmount = mp.WeeklyInterest.Mul(decimal.NewFromInt(int64(mp.MissedWeeks)))
	}
	return mp, nil
}

// CatchUpMissedPayments applies every missed credit for one investor. It is
// rate limited per investor per day when a Limiter is configured; only a
// successful run keeps the day's slot.
func (e *Engine) CatchUpMissedPayments(ctx context.Context, investorID uuid.UUID) (Outcome, error) {
	now := e.now()
	if e.Limiter != nil {
		key := fmt.Sprintf("catchup:%s:%s", investorID, now.Format("2006-01-02"))
		ok, err := e.Limiter.Allow(ctx, key, CatchUpWindow)
		if err != nil {
			return Outcome{}, fmt.Errorf("catch-up limiter: %w", domain.ErrTransientStore)
		}
		if !ok {
			return Outcome{}, ErrCatchUpRateLimited
		}
		out, err := e.catchUp(ctx, investorID, now)
		if err != nil {
			if rerr := e.Limiter.Release(ctx, key); rerr != nil {
				log.Warn().Err(rerr).Str("investor_id", investorID.String()).Msg("catch-up limiter release failed")
			}
		}
		return out, err
	}
	return e.catchUp(ctx, investorID, now)
}

func (e *Engine) catchUp(ctx context.Context, investorID uuid.UUID, now time.Time) (Outcome, error) {
	inv, err := e.findInvestor(ctx, investorID)
	if err != nil {
		return Outcome{}, err
	}
	if _, err := CalculateMissedPayments(e.Rules, inv, now); err != nil {
		return Outcome{}, err
	}
	out, err := e.processInvestor(ctx, investorID, now)
	if err != nil {
		return out, err
	}
	log.Info().Str("investor_id", investorID.String()).Int("credited_weeks", out.CreditedWeeks).
		Msg("missed payments caught up")
	return out, nil
}

// MissedPaymentsSummary lists every running investor with missed weeks.
func (e *Engine) MissedPaymentsSummary(ctx context.Context) ([]MissedPayments, error) {
	now := e.now()
	qctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var invs []domain.Investor
	if err := e.DB.WithContext(qctx).
		Where("investment_type IS NOT NULL AND investment_type <> ''").
		Order("created_at ASC").
		Find(&invs).Error; err != nil {
		return nil, database.Classify(err)
	}
	out := []MissedPayments{}
	for i := range invs {
		mp, err := CalculateMissedPayments(e.Rules, &invs[i], now)
		if err != nil {
			log.Warn().Err(err).Str("investor_id", invs[i].ID.String()).Msg("missed payments: skipping investor")
			continue
		}
		if mp.MissedWeeks > 0 {
			out = append(out, mp)
		}
	}
	return out, nil
}

func (e *Engine) findInvestor(ctx context.Context, investorID uuid.UUID) (*domain.Investor, error) {
	ctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	inv, err := database.FindInvestor(e.DB.WithContext(ctx), investorID)
	if err != nil {
		return nil, database.Classify(err)
	}
	return inv, nil
}

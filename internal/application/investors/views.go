package investors

import (
	"context"
	"errors"
	"math"
	"time"

	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/cache"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const (
	recentTransactions  = 10
	recentNotifications = 10
)

type Totals struct {
	TotalBalance    decimal.Decimal `json:"total_balance"`
	SpendingBalance decimal.Decimal `json:"spending_balance"`
	TotalDue        decimal.Decimal `json:"total_due"`
}

type InvestmentSummary struct {
	InvestorID        uuid.UUID       `json:"investor_id"`
	AccountNumber     string          `json:"account_number"`
	PortfolioType     string          `json:"portfolio_type"`
	InvestmentType    *string         `json:"investment_type"`
	State             interest.State  `json:"state"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
	TotalInvestment   decimal.Decimal `json:"total_investment"`
	SpendingBalance   decimal.Decimal `json:"spending_balance"`
	WeeklyInterest    decimal.Decimal `json:"weekly_interest"`
	CurrentWeek       int             `json:"current_week"`
	NextDueDate       *time.Time      `json:"next_due_date"`
	ExpiryDate        *time.Time      `json:"investment_expiry_date"`
	BankName          string          `json:"bank_name"`
	BankAccountName   string          `json:"bank_account_name"`
	BankAccountNumber string          `json:"bank_account_number"`
	CreatedAt         time.Time       `json:"created_at"`
}

type Dashboard struct {
	Totals             Totals                `json:"totals"`
	Investments        []InvestmentSummary   `json:"investments"`
	RecentTransactions []domain.Transaction  `json:"recent_transactions"`
	Notifications      []domain.Notification `json:"notifications"`
	GeneratedAt        time.Time             `json:"generated_at"`
}

// Dashboard reconciles every investor of the user and returns the
// aggregate view. Results are cached per user.
func (s *Service) Dashboard(ctx context.Context, userID uuid.UUID) (*Dashboard, error) {
	key := dashboardKey(userID)
	if s.Cache != nil {
		var cached Dashboard
		err := cache.GetJSON(ctx, s.Cache, key, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrNotFound) {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("dashboard cache read failed")
		}
	}

	invs, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := &Dashboard{
		Totals:             Totals{TotalBalance: decimal.Zero, SpendingBalance: decimal.Zero, TotalDue: decimal.Zero},
		Investments:        make([]InvestmentSummary, 0, len(invs)),
		RecentTransactions: []domain.Transaction{},
		Notifications:      []domain.Notification{},
		GeneratedAt:        now,
	}
	ids := make([]uuid.UUID, 0, len(invs))
	for _, inv := range invs {
		res, err := s.Engine.EnsureDueDatesUpToDate(ctx, inv.ID)
		if err != nil {
			if errors.Is(err, domain.ErrDataIntegrity) || errors.Is(err, domain.ErrRuleNotFound) {
				log.Error().Err(err).Str("investor_id", inv.ID.String()).Msg("investor skipped on dashboard")
			} else {
				return nil, err
			}
		} else if res.State == interest.StateActive || res.State == interest.StateMatured {
			inv.SpendingBalance = res.SpendingBalance
			inv.CurrentWeek = res.CurrentWeek
			inv.LastDueDate = res.LastDueDate
			inv.NextDueDate = res.NextDueDate
		}
		state, _ := interest.DeriveState(s.Rules, &inv, now)
		summary := InvestmentSummary{
			InvestorID:        inv.ID,
			AccountNumber:     inv.AccountNumber,
			PortfolioType:     inv.PortfolioType,
			InvestmentType:    inv.InvestmentType,
			State:             state,
			InitialInvestment: inv.InitialInvestment,
			TotalInvestment:   inv.TotalInvestment,
			SpendingBalance:   inv.SpendingBalance,
			WeeklyInterest:    decimal.Zero,
			CurrentWeek:       inv.CurrentWeek,
			NextDueDate:       inv.NextDueDate,
			ExpiryDate:        inv.InvestmentExpiryDate,
			BankName:          inv.BankName,
			BankAccountName:   inv.BankAccountName,
			BankAccountNumber: inv.BankAccountNumber,
			CreatedAt:         inv.CreatedAt,
		}
		if rule, err := s.Rules.Requirements(inv.PortfolioType, inv.Investment()); err == nil {
			summary.WeeklyInterest = rule.WeeklyInterest(inv.InitialInvestment)
		}
		out.Investments = append(out.Investments, summary)
		out.Totals.TotalBalance = out.Totals.TotalBalance.Add(inv.TotalInvestment)
		out.Totals.SpendingBalance = out.Totals.SpendingBalance.Add(inv.SpendingBalance)
		due, err := s.Ledger.TotalAmountDue(ctx, inv.ID)
		if err != nil {
			return nil, err
		}
		out.Totals.TotalDue = out.Totals.TotalDue.Add(due)
		ids = append(ids, inv.ID)
	}

	if len(ids) > 0 {
		dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
		defer cancel()
		db := s.DB.WithContext(dbctx)
		if err := db.Where("investor_id IN ?", ids).Order("created_at DESC").Limit(recentTransactions).
			Find(&out.RecentTransactions).Error; err != nil {
			return nil, database.Classify(err)
		}
		if err := db.Where("investor_id IN ? AND expires_at > ?", ids, now).Order("created_at DESC").Limit(recentNotifications).
			Find(&out.Notifications).Error; err != nil {
			return nil, database.Classify(err)
		}
	}

	if s.Cache != nil {
		ttl := s.CacheTTL
		if ttl <= 0 {
			ttl = DefaultCacheTTL
		}
		if err := cache.SetJSON(ctx, s.Cache, key, out, ttl); err != nil {
			log.Warn().Err(err).Str("user_id", userID.String()).Msg("dashboard cache write failed")
		}
	}
	return out, nil
}

type DueDates struct {
	InvestorID          uuid.UUID       `json:"investor_id"`
	State               interest.State  `json:"state"`
	InvestmentStartDate *time.Time      `json:"investment_start_date"`
	LastDueDate         *time.Time      `json:"last_due_date"`
	NextDueDate         *time.Time      `json:"next_due_date"`
	CurrentWeek         int             `json:"current_week"`
	ExpiryDate          *time.Time      `json:"investment_expiry_date"`
	AmountDue           decimal.Decimal `json:"amount_due"`
	WeeklyInterest      decimal.Decimal `json:"weekly_interest"`
	DaysUntilDue        *int            `json:"days_until_due"`
}

// DueDates reconciles the investor and reports its billing clock.
// amount_due is the spending balance available to withdraw.
func (s *Service) DueDates(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*DueDates, error) {
	inv, err := s.reconcile(ctx, actor, investorID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	st, err := interest.Derive(s.Rules, inv, now)
	if err != nil {
		return nil, err
	}
	out := &DueDates{
		InvestorID:          inv.ID,
		State:               st.State,
		InvestmentStartDate: inv.InvestmentStartDate,
		LastDueDate:         inv.LastDueDate,
		NextDueDate:         inv.NextDueDate,
		CurrentWeek:         inv.CurrentWeek,
		ExpiryDate:          inv.InvestmentExpiryDate,
		AmountDue:           inv.SpendingBalance,
		WeeklyInterest:      decimal.Zero,
	}
	if st.State == interest.StateActive || st.State == interest.StateMatured {
		out.WeeklyInterest = st.Rule.WeeklyInterest(inv.InitialInvestment)
	}
	if inv.NextDueDate != nil {
		days := int(math.Ceil(inv.NextDueDate.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		out.DaysUntilDue = &days
	}
	return out, nil
}

type ScheduleEntry struct {
	Week   int             `json:"week"`
	Date   time.Time       `json:"date"`
	Amount decimal.Decimal `json:"amount"`
	Paid   bool            `json:"paid"`
}

// Schedule lists every payment of the current term.
func (s *Service) Schedule(ctx context.Context, actor domain.Actor, investorID uuid.UUID) ([]ScheduleEntry, error) {
	inv, err := s.reconcile(ctx, actor, investorID)
	if err != nil {
		return nil, err
	}
	st, err := s.runningTerm(inv)
	if err != nil {
		return nil, err
	}
	weekly := st.Rule.WeeklyInterest(inv.InitialInvestment)
	out := make([]ScheduleEntry, 0, st.Rule.DurationWeeks)
	for week := 1; week <= st.Rule.DurationWeeks; week++ {
		out = append(out, ScheduleEntry{
			Week:   week,
			Date:   interest.DueAt(*inv.InvestmentStartDate, week),
			Amount: weekly,
			Paid:   week <= inv.CurrentWeek,
		})
	}
	return out, nil
}

func (s *Service) runningTerm(inv *domain.Investor) (interest.Status, error) {
	st, err := interest.Derive(s.Rules, inv, s.now())
	if err != nil {
		return st, err
	}
	if st.State != interest.StateActive && st.State != interest.StateMatured {
		return st, interest.ErrNoInvestmentType
	}
	return st, nil
}

type GoalWeek struct {
	Week               int             `json:"week"`
	Date               time.Time       `json:"date"`
	IsCompleted        bool            `json:"is_completed"`
	IsCurrent          bool            `json:"is_current"`
	InterestEarned     decimal.Decimal `json:"interest_earned"`
	CumulativeInterest decimal.Decimal `json:"cumulative_interest"`
	IsRenewable        bool            `json:"is_renewable"`
	IsFinalWeek        bool            `json:"is_final_week"`
}

type Progress struct {
	WeeksElapsed          int             `json:"weeks_elapsed"`
	TotalWeeks            int             `json:"total_weeks"`
	CompletionPercentage  int             `json:"completion_percentage"`
	CumulativeInterest    decimal.Decimal `json:"cumulative_interest"`
	CumulativeWithdrawals decimal.Decimal `json:"cumulative_withdrawals"`
	RemainingBalance      decimal.Decimal `json:"remaining_balance"`
	IsRenewable           bool            `json:"is_renewable"`
}

type Goals struct {
	InvestorID     uuid.UUID       `json:"investor_id"`
	PortfolioType  string          `json:"portfolio_type"`
	InvestmentType string          `json:"investment_type"`
	Initial        decimal.Decimal `json:"initial_investment"`
	StartDate      time.Time       `json:"start_date"`
	WeeklyRatePct  decimal.Decimal `json:"weekly_interest_rate"`
	WeeklyInterest decimal.Decimal `json:"weekly_interest_amount"`
	Progress       Progress        `json:"progress"`
	Timeline       []GoalWeek      `json:"timeline"`
}

// CompletionPercentage is min(100, round(elapsed/duration*100)).
func CompletionPercentage(elapsed, duration int) int {
	if duration <= 0 {
		return 0
	}
	p := int(math.Round(float64(elapsed) / float64(duration) * 100))
	if p > 100 {
		return 100
	}
	return p
}

// Goals returns the term timeline from week 0 to maturity.
func (s *Service) Goals(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*Goals, error) {
	inv, err := s.reconcile(ctx, actor, investorID)
	if err != nil {
		return nil, err
	}
	st, err := s.runningTerm(inv)
	if err != nil {
		return nil, err
	}
	info, err := s.Engine.Maturity(ctx, inv)
	if err != nil {
		return nil, err
	}
	withdrawn, err := s.sumTransactions(ctx, inv.ID, domain.TxWithdrawal, domain.WithdrawSent)
	if err != nil {
		return nil, err
	}
	start := *inv.InvestmentStartDate
	weekly := st.Rule.WeeklyInterest(inv.InitialInvestment)
	duration := st.Rule.DurationWeeks
	timeline := make([]GoalWeek, 0, duration+1)
	cumulative := decimal.Zero
	for week := 0; week <= duration; week++ {
		earned := decimal.Zero
		if week > 0 {
			earned = weekly
			cumulative = cumulative.Add(weekly)
		}
		timeline = append(timeline, GoalWeek{
			Week:               week,
			Date:               interest.DueAt(start, week),
			IsCompleted:        week <= st.ElapsedWeeks,
			IsCurrent:          week == st.ElapsedWeeks,
			InterestEarned:     earned,
			CumulativeInterest: cumulative,
			IsRenewable:        cumulative.GreaterThanOrEqual(inv.InitialInvestment),
			IsFinalWeek:        week == duration,
		})
	}
	return &Goals{
		InvestorID:     inv.ID,
		PortfolioType:  inv.PortfolioType,
		InvestmentType: inv.Investment(),
		Initial:        inv.InitialInvestment,
		StartDate:      start,
		WeeklyRatePct:  st.Rule.WeeklyRatePct,
		WeeklyInterest: weekly,
		Progress: Progress{
			WeeksElapsed:          st.ElapsedWeeks,
			TotalWeeks:            duration,
			CompletionPercentage:  CompletionPercentage(st.ElapsedWeeks, duration),
			CumulativeInterest:    info.CumulativeInterest,
			CumulativeWithdrawals: withdrawn,
			RemainingBalance:      inv.InitialInvestment.Add(info.CumulativeInterest).Sub(withdrawn),
			IsRenewable:           info.Renewable,
		},
		Timeline: timeline,
	}, nil
}

type Analytics struct {
	InvestorID             uuid.UUID       `json:"investor_id"`
	State                  interest.State  `json:"state"`
	CompletionPercentage   int             `json:"completion_percentage"`
	WeeksElapsed           int             `json:"weeks_elapsed"`
	WeeksRemaining         int             `json:"weeks_remaining"`
	WeeklyInterest         decimal.Decimal `json:"weekly_interest"`
	TotalInterestEarned    decimal.Decimal `json:"total_interest_earned"`
	ProjectedTotalInterest decimal.Decimal `json:"projected_total_interest"`
	TotalWithdrawn         decimal.Decimal `json:"total_withdrawn"`
	TotalTopups            decimal.Decimal `json:"total_topups"`
	TotalInvestment        decimal.Decimal `json:"total_investment"`
	SpendingBalance        decimal.Decimal `json:"spending_balance"`
}

// Analytics reports progress and lifetime money movements.
func (s *Service) Analytics(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*Analytics, error) {
	inv, err := s.reconcile(ctx, actor, investorID)
	if err != nil {
		return nil, err
	}
	st, err := interest.Derive(s.Rules, inv, s.now())
	if err != nil {
		return nil, err
	}
	out := &Analytics{
		InvestorID:             inv.ID,
		State:                  st.State,
		WeeklyInterest:         decimal.Zero,
		ProjectedTotalInterest: decimal.Zero,
		TotalInvestment:        inv.TotalInvestment,
		SpendingBalance:        inv.SpendingBalance,
	}
	if st.State == interest.StateActive || st.State == interest.StateMatured {
		duration := st.Rule.DurationWeeks
		out.WeeksElapsed = st.ElapsedWeeks
		out.WeeksRemaining = max(0, duration-st.ElapsedWeeks)
		out.CompletionPercentage = CompletionPercentage(st.ElapsedWeeks, duration)
		out.WeeklyInterest = st.Rule.WeeklyInterest(inv.InitialInvestment)
		out.ProjectedTotalInterest = st.Rule.AmountDue(inv.InitialInvestment)
	}
	if out.TotalInterestEarned, err = s.sumTransactions(ctx, inv.ID, domain.TxInterestPayment, ""); err != nil {
		return nil, err
	}
	if out.TotalWithdrawn, err = s.sumTransactions(ctx, inv.ID, domain.TxWithdrawal, domain.WithdrawSent); err != nil {
		return nil, err
	}
	if out.TotalTopups, err = s.sumTransactions(ctx, inv.ID, domain.TxTopup, ""); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *Service) sumTransactions(ctx context.Context, investorID uuid.UUID, txType, withdrawStatus string) (decimal.Decimal, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	q := s.DB.WithContext(ctx).Model(&domain.Transaction{}).
		Where("investor_id = ? AND transaction_type = ?", investorID, txType)
	if withdrawStatus != "" {
		q = q.Where("withdraw_status = ?", withdrawStatus)
	}
	var amounts []decimal.Decimal
	if err := q.Pluck("amount", &amounts).Error; err != nil {
		return decimal.Zero, database.Classify(err)
	}
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total, nil
}

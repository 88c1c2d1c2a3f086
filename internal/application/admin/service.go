package admin

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/investors"
	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/application/withdrawals"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Integrity issue codes.
const (
	IssueTotalNotSet      = "total_investment_not_set"
	IssueTimelineMismatch = "timeline_mismatch"
	IssueMissingExpiry    = "missing_expiry_date"
	IssueMissingLastDue   = "missing_last_due_date"
)

var (
	ErrNoValidFields = domain.NewError(domain.ErrInvalidState, "No valid fields to update")
	ErrInvalidField  = domain.NewError(domain.ErrInvalidState, "Invalid value for investor field")
)

// updatableFields are the investor columns an admin may edit directly.
var updatableFields = map[string]bool{
	"first_name":          true,
	"surname":             true,
	"email":               true,
	"phone":               true,
	"address":             true,
	"bank_name":           true,
	"bank_account_name":   true,
	"bank_account_number": true,
	"portfolio_type":      true,
}

// Service is the back-office surface over investors and the engine.
type Service struct {
	DB          *gorm.DB
	Rules       *portfolio.Rules
	Engine      *interest.Engine
	Ledger      *ledger.Service
	Investors   *investors.Service
	Withdrawals *withdrawals.Service
	Notifier    notifications.Notifier
	Timeout     time.Duration
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) invalidate(ctx context.Context, investorID uuid.UUID) {
	if s.Investors != nil {
		s.Investors.Invalidate(ctx, investorID)
	}
}

type ListInput struct {
	Search string
	Page   int
	Limit  int
}

type InvestorPage struct {
	Investors []domain.Investor `json:"investors"`
	Total     int64             `json:"total"`
	Page      int               `json:"page"`
	Limit     int               `json:"limit"`
}

// ListInvestors pages through investors, optionally filtered by email.
func (s *Service) ListInvestors(ctx context.Context, in ListInput) (*InvestorPage, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit <= 0 {
		in.Limit = DefaultPageSize
	}
	if in.Limit > MaxPageSize {
		in.Limit = MaxPageSize
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	q := s.DB.WithContext(ctx).Model(&domain.Investor{})
	if search := strings.ToLower(strings.TrimSpace(in.Search)); search != "" {
		q = q.Where("LOWER(email) LIKE ?", "%"+search+"%")
	}
	out := &InvestorPage{Investors: []domain.Investor{}, Page: in.Page, Limit: in.Limit}
	if err := q.Count(&out.Total).Error; err != nil {
		return nil, database.Classify(err)
	}
	if err := q.Order("created_at DESC").Offset((in.Page - 1) * in.Limit).Limit(in.Limit).Find(&out.Investors).Error; err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}

type PaymentsSummary struct {
	ByType                  []ledger.TypeTotal `json:"by_type"`
	InvestorCount           int64              `json:"investor_count"`
	TotalInvestment         decimal.Decimal    `json:"total_investment"`
	TotalSpendingBalance    decimal.Decimal    `json:"total_spending_balance"`
	PendingWithdrawals      int                `json:"pending_withdrawals"`
	PendingWithdrawalAmount decimal.Decimal    `json:"pending_withdrawal_amount"`
}

// PaymentsSummary aggregates money movements across all investors.
func (s *Service) PaymentsSummary(ctx context.Context) (*PaymentsSummary, error) {
	byType, err := s.Ledger.TotalsByType(ctx)
	if err != nil {
		return nil, err
	}
	sort.Slice(byType, func(i, j int) bool { return byType[i].TransactionType < byType[j].TransactionType })
	out := &PaymentsSummary{
		ByType:                  byType,
		TotalInvestment:         decimal.Zero,
		TotalSpendingBalance:    decimal.Zero,
		PendingWithdrawalAmount: decimal.Zero,
	}
	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var invs []domain.Investor
	if err := s.DB.WithContext(dbctx).Select("id", "total_investment", "spending_balance").Find(&invs).Error; err != nil {
		return nil, database.Classify(err)
	}
	out.InvestorCount = int64(len(invs))
	for _, inv := range invs {
		out.TotalInvestment = out.TotalInvestment.Add(inv.TotalInvestment)
		out.TotalSpendingBalance = out.TotalSpendingBalance.Add(inv.SpendingBalance)
	}
	pending, err := s.Withdrawals.Pending(ctx)
	if err != nil {
		return nil, err
	}
	out.PendingWithdrawals = len(pending)
	for _, p := range pending {
		out.PendingWithdrawalAmount = out.PendingWithdrawalAmount.Add(p.Amount)
	}
	return out, nil
}

// UpdateInvestor applies the allowed subset of fields. A portfolio change
// is validated against the current investment type and reprices unsettled
// transactions.
func (s *Service) UpdateInvestor(ctx context.Context, investorID uuid.UUID, fields map[string]interface{}) (*domain.Investor, error) {
	if v, ok := fields["phone_number"]; ok {
		fields["phone"] = v
	}
	updates := map[string]interface{}{}
	for k, v := range fields {
		if !updatableFields[k] {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrInvalidField, k)
		}
		updates[k] = strings.TrimSpace(str)
	}
	if len(updates) == 0 {
		return nil, ErrNoValidFields
	}
	if e, ok := updates["email"]; ok {
		email := validation.NormalizeEmail(e.(string))
		if !validation.IsValidEmail(email) {
			return nil, fmt.Errorf("%w: email", ErrInvalidField)
		}
		updates["email"] = email
	}
	if p, ok := updates["phone"]; ok && p.(string) != "" {
		phone, valid := validation.NormalizePhone(p.(string))
		if !valid {
			return nil, fmt.Errorf("%w: phone", ErrInvalidField)
		}
		updates["phone"] = phone
	}

	ctx2, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var inv *domain.Investor
	err := s.DB.WithContext(ctx2).Transaction(func(tx *gorm.DB) error {
		var err error
		inv, err = database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		if p, ok := updates["portfolio_type"]; ok {
			pt, ok := s.Rules.NormalizePortfolio(p.(string))
			if !ok {
				return investors.ErrInvalidPortfolio
			}
			updates["portfolio_type"] = pt
			if inv.Investment() != "" {
				rule, err := s.Rules.ValidateInvestment(pt, inv.Investment(), inv.InitialInvestment)
				if err != nil {
					return err
				}
				inv.PortfolioType = pt
				if _, err := ledger.UpdateAmounts(tx, inv, rule.AmountDue); err != nil {
					return err
				}
			}
		}
		if err := tx.Model(&domain.Investor{}).Where("id = ?", investorID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", investorID).First(inv).Error
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	names := make([]string, 0, len(updates))
	for k := range updates {
		names = append(names, k)
	}
	sort.Strings(names)
	log.Info().Str("investor_id", investorID.String()).Strs("fields", names).Msg("investor updated by admin")
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, notifications.AccountUpdated(investorID, names, s.now()))
	}
	s.invalidate(ctx, investorID)
	return inv, nil
}

type Issue struct {
	InvestorID uuid.UUID `json:"investor_id"`
	Email      string    `json:"email"`
	Issue      string    `json:"issue"`
	Details    string    `json:"details"`
}

// IssuesFor lists integrity problems of one investor at now.
func IssuesFor(inv *domain.Investor, now time.Time) []Issue {
	var out []Issue
	add := func(code, details string) {
		out = append(out, Issue{InvestorID: inv.ID, Email: inv.Email, Issue: code, Details: details})
	}
	if inv.InitialInvestment.IsPositive() && !inv.TotalInvestment.IsPositive() {
		add(IssueTotalNotSet, fmt.Sprintf("Initial: %s, Total: %s", inv.InitialInvestment, inv.TotalInvestment))
		return out
	}
	if inv.Investment() == "" || inv.InvestmentStartDate == nil {
		return out
	}
	elapsed := 0
	if now.After(*inv.InvestmentStartDate) {
		elapsed = int(now.Sub(*inv.InvestmentStartDate) / interest.Week)
	}
	if elapsed > inv.CurrentWeek+1 {
		add(IssueTimelineMismatch, fmt.Sprintf("Calculated Weeks: %d, DB Week: %d", elapsed, inv.CurrentWeek))
	}
	if inv.InvestmentExpiryDate == nil {
		add(IssueMissingExpiry, "Investment expiry date is NULL")
	}
	if inv.CurrentWeek > 0 && inv.LastDueDate == nil {
		add(IssueMissingLastDue, fmt.Sprintf("Week is %d but last_due_date is NULL", inv.CurrentWeek))
	}
	return out
}

type IntegrityReport struct {
	IssuesFound int     `json:"issues_found"`
	Issues      []Issue `json:"issues"`
}

// CheckIntegrity scans every investor for data problems.
func (s *Service) CheckIntegrity(ctx context.Context) (*IntegrityReport, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var invs []domain.Investor
	if err := s.DB.WithContext(ctx).Order("created_at ASC").Find(&invs).Error; err != nil {
		return nil, database.Classify(err)
	}
	now := s.now()
	out := &IntegrityReport{Issues: []Issue{}}
	for i := range invs {
		out.Issues = append(out.Issues, IssuesFor(&invs[i], now)...)
	}
	out.IssuesFound = len(out.Issues)
	return out, nil
}

type FixResult struct {
	InvestorID uuid.UUID        `json:"investor_id"`
	Fixed      []string         `json:"fixed"`
	Outcome    interest.Outcome `json:"outcome"`
}

// FixIntegrity repairs stored fields from the term start, then lets the
// engine credit any weeks still owed. Missing weeks are paid, never skipped.
func (s *Service) FixIntegrity(ctx context.Context, investorID uuid.UUID) (*FixResult, error) {
	out := &FixResult{InvestorID: investorID, Fixed: []string{}}
	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	err := s.DB.WithContext(dbctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		updates := map[string]interface{}{}
		if inv.InitialInvestment.IsPositive() && !inv.TotalInvestment.IsPositive() {
			updates["total_investment"] = inv.InitialInvestment
			out.Fixed = append(out.Fixed, IssueTotalNotSet)
		}
		if inv.Investment() != "" && inv.InvestmentStartDate != nil {
			rule, err := s.Rules.Requirements(inv.PortfolioType, inv.Investment())
			if err != nil {
				return err
			}
			start := *inv.InvestmentStartDate
			if inv.InvestmentExpiryDate == nil {
				updates["investment_expiry_date"] = rule.ExpiryFrom(start)
				out.Fixed = append(out.Fixed, IssueMissingExpiry)
			}
			if inv.CurrentWeek > rule.DurationWeeks {
				updates["current_week"] = rule.DurationWeeks
				inv.CurrentWeek = rule.DurationWeeks
			}
			lastDue := interest.DueAt(start, inv.CurrentWeek)
			if inv.LastDueDate == nil || !inv.LastDueDate.Equal(lastDue) {
				updates["last_due_date"] = lastDue
				if inv.LastDueDate == nil {
					out.Fixed = append(out.Fixed, IssueMissingLastDue)
				}
			}
			var nextDue *time.Time
			if inv.CurrentWeek < rule.DurationWeeks {
				n := interest.DueAt(start, inv.CurrentWeek+1)
				nextDue = &n
			}
			if (inv.NextDueDate == nil) != (nextDue == nil) || (nextDue != nil && !inv.NextDueDate.Equal(*nextDue)) {
				updates["next_due_date"] = nextDue
			}
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.Model(&domain.Investor{}).Where("id = ?", investorID).Updates(updates).Error
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	res, err := s.Engine.ProcessInvestor(ctx, investorID)
	if err != nil {
		return nil, err
	}
	if res.CreditedWeeks > 0 {
		out.Fixed = append(out.Fixed, IssueTimelineMismatch)
	}
	out.Outcome = res
	log.Info().Str("investor_id", investorID.String()).Strs("fixed", out.Fixed).Int("credited_weeks", res.CreditedWeeks).Msg("investor integrity fixed")
	s.invalidate(ctx, investorID)
	return out, nil
}

// TriggerInterestJob runs the due-date batch now.
func (s *Service) TriggerInterestJob(ctx context.Context) interest.BatchResult {
	return s.Engine.ProcessAllDueDates(ctx)
}

// MissedPayments lists investors whose stored week lags the calendar.
func (s *Service) MissedPayments(ctx context.Context) ([]interest.MissedPayments, error) {
	return s.Engine.MissedPaymentsSummary(ctx)
}

// CatchUp credits an investor's missed weeks. Limited to once a day.
func (s *Service) CatchUp(ctx context.Context, investorID uuid.UUID) (interest.Outcome, error) {
	out, err := s.Engine.CatchUpMissedPayments(ctx, investorID)
	if err != nil {
		return out, err
	}
	s.invalidate(ctx, investorID)
	return out, nil
}

// ApproveWithdrawal marks a pending withdrawal sent.
func (s *Service) ApproveWithdrawal(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	t, err := s.Withdrawals.Approve(ctx, txID)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.InvestorID)
	return t, nil
}

// RejectWithdrawal refunds a pending withdrawal.
func (s *Service) RejectWithdrawal(ctx context.Context, txID uuid.UUID, reason string) (*domain.Transaction, error) {
	t, err := s.Withdrawals.Reject(ctx, txID, reason)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, t.InvestorID)
	return t, nil
}

// PendingWithdrawals lists withdrawals awaiting a decision, oldest first.
func (s *Service) PendingWithdrawals(ctx context.Context) ([]domain.Transaction, error) {
	return s.Withdrawals.Pending(ctx)
}

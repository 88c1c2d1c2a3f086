package interest

import (
	"context"
	"time"

	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TopupBlackout is the window before a due date in which top-ups are refused.
const TopupBlackout = 72 * time.Hour

// CreditSpending adds delta to the investor's spending balance inside tx.
func CreditSpending(tx *gorm.DB, inv *domain.Investor, delta decimal.Decimal) error {
	if !delta.IsPositive() {
		return ErrNonPositiveAmount
	}
	inv.SpendingBalance = inv.SpendingBalance.Add(delta)
	return tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).
		Update("spending_balance", inv.SpendingBalance).Error
}

// UpdateSpendingAccount credits a positive delta to spending.
func (e *Engine) UpdateSpendingAccount(ctx context.Context, investorID uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	if !delta.IsPositive() {
		return decimal.Zero, ErrNonPositiveAmount
	}
	ctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var balance decimal.Decimal
	err := e.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		if err := CreditSpending(tx, inv, delta); err != nil {
			return err
		}
		balance = inv.SpendingBalance
		return nil
	})
	return balance, database.Classify(err)
}

// Withdrawal is the result of a successful debit.
type Withdrawal struct {
	Transaction     *domain.Transaction `json:"transaction"`
	SpendingBalance decimal.Decimal     `json:"spending_balance"`
}

// WithdrawalChecks run against the locked investor row. Authorize runs
// before the balance check and Verify after it.
type WithdrawalChecks struct {
	Authorize func(*domain.Investor) error
	Verify    func(*domain.Investor) error
}

// ProcessUserWithdrawal debits spending and records a pending withdrawal.
// Checks share one locked snapshot with the debit.
func (e *Engine) ProcessUserWithdrawal(ctx context.Context, investorID uuid.UUID, amount decimal.Decimal, checks WithdrawalChecks) (*Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	ctx, span := e.tracer().Start(ctx, "interest.withdraw")
	defer span.End()

	now := e.now()
	tctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var out Withdrawal
	err := e.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		if checks.Authorize != nil {
			if err := checks.Authorize(inv); err != nil {
				return err
			}
		}
		if amount.GreaterThan(inv.SpendingBalance) {
			return ErrInsufficientBalance
		}
		if checks.Verify != nil {
			if err := checks.Verify(inv); err != nil {
				return err
			}
		}
		inv.SpendingBalance = inv.SpendingBalance.Sub(amount)
		if err := tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).
			Update("spending_balance", inv.SpendingBalance).Error; err != nil {
			return err
		}
		t, err := ledger.RecordWithdrawal(tx, inv, amount, now)
		if err != nil {
			return err
		}
		out = Withdrawal{Transaction: t, SpendingBalance: inv.SpendingBalance}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, database.Classify(err)
	}
	e.notify(ctx, notifications.WithdrawalRequested(investorID, amount, out.Transaction.ID, now))
	return &out, nil
}

// CheckTopupAllowed reports whether a top-up may be accepted at now.
func (e *Engine) CheckTopupAllowed(inv *domain.Investor, now time.Time) error {
	st, err := Derive(e.Rules, inv, now)
	if err != nil {
		return err
	}
	switch st.State {
	case StateMatured:
		return ErrTopupNotAllowed
	case StateUnselected, StateEnded:
		return ErrNoInvestmentType
	}
	if inv.NextDueDate != nil && inv.NextDueDate.Sub(now) <= TopupBlackout {
		return ErrTopupBlocked
	}
	return nil
}

// ApplyTopup raises principal inside tx after re-checking the blackout
// window. The next due date is first brought up to date so a stale row
// cannot slip past the check.
func (e *Engine) ApplyTopup(tx *gorm.DB, inv *domain.Investor, amount decimal.Decimal, reference string, now time.Time) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}
	if _, err := e.advance(tx, inv, now); err != nil {
		return nil, err
	}
	if err := e.CheckTopupAllowed(inv, now); err != nil {
		return nil, err
	}
	rule, err := e.Rules.Requirements(inv.PortfolioType, inv.Investment())
	if err != nil {
		return nil, err
	}
	inv.InitialInvestment = inv.InitialInvestment.Add(amount)
	inv.TotalInvestment = inv.TotalInvestment.Add(amount)
	if err := tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"initial_investment": inv.InitialInvestment,
		"total_investment":   inv.TotalInvestment,
	}).Error; err != nil {
		return nil, err
	}
	return ledger.RecordTopup(tx, inv, amount, rule.AmountDue(amount), reference, now)
}

package interest

import (
	"context"
	"fmt"
	"time"

	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// RestartClock starts a fresh term at now under rule.
func RestartClock(inv *domain.Investor, rule portfolio.Rule, now time.Time) {
	start := now
	next := DueAt(start, 1)
	expiry := rule.ExpiryFrom(start)
	it := rule.Investment
	inv.PortfolioType = rule.Portfolio
	inv.InvestmentType = &it
	inv.InvestmentStartDate = &start
	inv.CurrentWeek = 0
	inv.LastDueDate = &start
	inv.NextDueDate = &next
	inv.InvestmentExpiryDate = &expiry
	inv.EndedAt = nil
}

func saveClock(tx *gorm.DB, inv *domain.Investor) error {
	return tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
		"portfolio_type":         inv.PortfolioType,
		"investment_type":        inv.InvestmentType,
		"investment_start_date":  inv.InvestmentStartDate,
		"current_week":           inv.CurrentWeek,
		"last_due_date":          inv.LastDueDate,
		"next_due_date":          inv.NextDueDate,
		"investment_expiry_date": inv.InvestmentExpiryDate,
		"ended_at":               inv.EndedAt,
		"spending_balance":       inv.SpendingBalance,
		"initial_investment":     inv.InitialInvestment,
		"total_investment":       inv.TotalInvestment,
	}).Error
}

// Transition is the investor after a lifecycle change.
type Transition struct {
	Investor *domain.Investor    `json:"investor"`
	Rule     portfolio.Rule      `json:"rule"`
	Ledger   *domain.Transaction `json:"transaction,omitempty"`
	Updated  int                 `json:"updated_transactions"`
}

func (e *Engine) transition(ctx context.Context, investorID uuid.UUID, name string, fn func(tx *gorm.DB, inv *domain.Investor, now time.Time) (*Transition, error)) (*Transition, error) {
	ctx, span := e.tracer().Start(ctx, "interest."+name)
	defer span.End()
	now := e.now()
	tctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	var out *Transition
	err := e.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		out, err = fn(tx, inv, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return nil, database.Classify(err)
	}
	return out, nil
}

// SelectInvestmentType starts a term for the given investment type. An
// active investment is advanced first so weeks already due are paid at the
// old terms. After an investment has ended the new term is funded from the
// whole spending balance.
func (e *Engine) SelectInvestmentType(ctx context.Context, investorID uuid.UUID, investmentType string) (*Transition, error) {
	out, err := e.transition(ctx, investorID, "select_investment_type", func(tx *gorm.DB, inv *domain.Investor, now time.Time) (*Transition, error) {
		st, err := Derive(e.Rules, inv, now)
		if err != nil {
			return nil, err
		}
		principal := inv.InitialInvestment
		funded := false
		switch st.State {
		case StateMatured:
			return nil, ErrMaturedUseRenew
		case StateEnded:
			if !principal.IsPositive() {
				if !inv.SpendingBalance.IsPositive() {
					return nil, ErrNothingToReinvest
				}
				principal = inv.SpendingBalance
				funded = true
			}
		case StateActive:
			if _, err := e.advance(tx, inv, now); err != nil {
				return nil, err
			}
		}
		rule, err := e.Rules.ValidateInvestment(inv.PortfolioType, investmentType, principal)
		if err != nil {
			return nil, err
		}
		if funded {
			inv.SpendingBalance = decimal.Zero
			inv.InitialInvestment = principal
			inv.TotalInvestment = principal
		}
		RestartClock(inv, rule, now)
		if err := saveClock(tx, inv); err != nil {
			return nil, err
		}
		n, err := ledger.UpdateAmounts(tx, inv, rule.AmountDue)
		if err != nil {
			return nil, err
		}
		out := &Transition{Investor: inv, Rule: rule, Updated: n}
		if funded {
			if out.Ledger, err = ledger.RecordInitial(tx, inv, rule.AmountDue(principal), now); err != nil {
				return nil, err
			}
		}
		return out, nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notifications.InvestmentSelected(investorID, out.Rule.Portfolio, out.Rule.Investment, *out.Investor.NextDueDate, e.now()))
	return out, nil
}

// EndInvestment pays any due weeks, returns principal to spending and
// clears the term. The returned principal settles the term's principal
// transactions. The account is then in the ended state until a new type
// is selected.
func (e *Engine) EndInvestment(ctx context.Context, investorID uuid.UUID) (*Transition, error) {
	var returned decimal.Decimal
	out, err := e.transition(ctx, investorID, "end_investment", func(tx *gorm.DB, inv *domain.Investor, now time.Time) (*Transition, error) {
		st, err := Derive(e.Rules, inv, now)
		if err != nil {
			return nil, err
		}
		if st.State != StateActive && st.State != StateMatured {
			return nil, ErrNothingToEnd
		}
		if _, err := e.advance(tx, inv, now); err != nil {
			return nil, err
		}
		returned = inv.TotalInvestment
		ended := now
		inv.SpendingBalance = inv.SpendingBalance.Add(returned)
		inv.InvestmentType = nil
		inv.InitialInvestment = decimal.Zero
		inv.TotalInvestment = decimal.Zero
		inv.NextDueDate = nil
		inv.EndedAt = &ended
		if err := tx.Model(&domain.Investor{}).Where("id = ?", inv.ID).Updates(map[string]interface{}{
			"investment_type":    nil,
			"initial_investment": inv.InitialInvestment,
			"total_investment":   inv.TotalInvestment,
			"spending_balance":   inv.SpendingBalance,
			"next_due_date":      nil,
			"ended_at":           inv.EndedAt,
		}).Error; err != nil {
			return nil, err
		}
		if _, err := ledger.SettlePrincipal(tx, inv.ID); err != nil {
			return nil, err
		}
		t, err := ledger.RecordEndInvestment(tx, inv, returned, now)
		if err != nil {
			return nil, err
		}
		return &Transition{Investor: inv, Rule: st.Rule, Ledger: t}, nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notifications.InvestmentEnded(investorID, returned, e.now()))
	return out, nil
}

// RenewInvestment restarts a matured term, optionally under a different
// investment type. An empty investmentType keeps the current one.
func (e *Engine) RenewInvestment(ctx context.Context, investorID uuid.UUID, investmentType string) (*Transition, error) {
	out, err := e.transition(ctx, investorID, "renew_investment", func(tx *gorm.DB, inv *domain.Investor, now time.Time) (*Transition, error) {
		if _, err := e.advance(tx, inv, now); err != nil {
			return nil, err
		}
		st, err := Derive(e.Rules, inv, now)
		if err != nil {
			return nil, err
		}
		if st.State != StateMatured {
			return nil, ErrNotMatured
		}
		if investmentType == "" {
			investmentType = inv.Investment()
		}
		rule, err := e.Rules.ValidateInvestment(inv.PortfolioType, investmentType, inv.InitialInvestment)
		if err != nil {
			return nil, err
		}
		RestartClock(inv, rule, now)
		if err := saveClock(tx, inv); err != nil {
			return nil, err
		}
		t, err := ledger.RecordRenewInvestment(tx, inv, rule.AmountDue(inv.InitialInvestment), now)
		if err != nil {
			return nil, err
		}
		n, err := ledger.UpdateAmounts(tx, inv, rule.AmountDue)
		if err != nil {
			return nil, err
		}
		return &Transition{Investor: inv, Rule: rule, Ledger: t, Updated: n}, nil
	})
	if err != nil {
		return nil, err
	}
	e.notify(ctx, notifications.InvestmentRenewed(investorID, out.Rule.Investment, e.now()))
	return out, nil
}

// MaturityInfo summarizes the current term's progress toward maturity.
type MaturityInfo struct {
	State              State           `json:"state"`
	Matured            bool            `json:"matured"`
	CumulativeInterest decimal.Decimal `json:"cumulative_interest"`
	Renewable          bool            `json:"is_renewable"`
	ExpiryDate         *time.Time      `json:"expiry_date"`
}

// Maturity reports cumulative interest paid in the current term. Renewable
// is informational: interest has at least matched the principal.
func (e *Engine) Maturity(ctx context.Context, inv *domain.Investor) (MaturityInfo, error) {
	info := MaturityInfo{CumulativeInterest: decimal.Zero, ExpiryDate: inv.InvestmentExpiryDate}
	st, err := Derive(e.Rules, inv, e.now())
	if err != nil {
		return info, err
	}
	info.State = st.State
	info.Matured = st.State == StateMatured
	if inv.InvestmentStartDate == nil {
		return info, nil
	}
	ctx, cancel := database.WithTimeout(ctx, e.Timeout)
	defer cancel()
	prefix := fmt.Sprintf("interest:%s:%d:", inv.ID, inv.InvestmentStartDate.Unix())
	var amounts []decimal.Decimal
	if err := e.DB.WithContext(ctx).Model(&domain.Transaction{}).
		Where("investor_id = ? AND transaction_type = ? AND idempotency_key LIKE ?", inv.ID, domain.TxInterestPayment, prefix+"%").
		Pluck("amount", &amounts).Error; err != nil {
		return info, database.Classify(err)
	}
	for _, a := range amounts {
		info.CumulativeInterest = info.CumulativeInterest.Add(a)
	}
	info.Renewable = info.CumulativeInterest.GreaterThanOrEqual(inv.InitialInvestment) && inv.InitialInvestment.IsPositive()
	return info, nil
}

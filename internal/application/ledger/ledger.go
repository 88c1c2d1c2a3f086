package ledger

import (
	"encoding/json"
	"time"

	"bluegold-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes a transaction to append for an investor.
type Entry struct {
	Type                string
	Amount              decimal.Decimal
	AmountDue           decimal.Decimal
	Reference           string
	Description         string
	Week                int
	IdempotencyKey      string
	WithdrawalRequested bool
	WithdrawStatus      string
	// At is the caller's clock reading stamped into the snapshot.
	At time.Time
}

// Snapshot captures investor state at the moment a transaction is written.
func Snapshot(inv *domain.Investor, at time.Time) datatypes.JSON {
	b, _ := json.Marshal(map[string]interface{}{
		"investor_id":        inv.ID.String(),
		"account_number":     inv.AccountNumber,
		"portfolio_type":     inv.PortfolioType,
		"investment_type":    inv.InvestmentType,
		"initial_investment": inv.InitialInvestment.String(),
		"total_investment":   inv.TotalInvestment.String(),
		"spending_balance":   inv.SpendingBalance.String(),
		"current_week":       inv.CurrentWeek,
		"last_due_date":      inv.LastDueDate,
		"next_due_date":      inv.NextDueDate,
		"recorded_at":        at.UTC(),
	})
	return datatypes.JSON(b)
}

// Record appends e for inv using tx. Callers hold the investor row lock and
// pass inv after their own mutation so the snapshot reflects the new state.
func Record(tx *gorm.DB, inv *domain.Investor, e Entry) (*domain.Transaction, error) {
	t := &domain.Transaction{
		InvestorID:          inv.ID,
		TransactionType:     e.Type,
		Reference:           e.Reference,
		Amount:              e.Amount,
		AmountDue:           e.AmountDue,
		WithdrawalRequested: e.WithdrawalRequested,
		WithdrawStatus:      e.WithdrawStatus,
		Week:                e.Week,
		Description:         e.Description,
		Snapshot:            Snapshot(inv, e.At),
	}
	if e.IdempotencyKey != "" {
		key := e.IdempotencyKey
		t.IdempotencyKey = &key
	}
	if err := tx.Create(t).Error; err != nil {
		return nil, err
	}
	return t, nil
}

func RecordInitial(tx *gorm.DB, inv *domain.Investor, amountDue decimal.Decimal, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:        domain.TxInitial,
		Amount:      inv.InitialInvestment,
		AmountDue:   amountDue,
		Description: "Initial investment",
		At:          at,
	})
}

func RecordInterest(tx *gorm.DB, inv *domain.Investor, week int, amount decimal.Decimal, key string, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:           domain.TxInterestPayment,
		Amount:         amount,
		AmountDue:      decimal.Zero,
		Week:           week,
		IdempotencyKey: key,
		Description:    "Weekly interest payment",
		At:             at,
	})
}

func RecordWithdrawal(tx *gorm.DB, inv *domain.Investor, amount decimal.Decimal, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:                domain.TxWithdrawal,
		Amount:              amount,
		AmountDue:           decimal.Zero,
		WithdrawalRequested: true,
		WithdrawStatus:      domain.WithdrawPending,
		Description:         "Withdrawal request",
		At:                  at,
	})
}

func RecordTopup(tx *gorm.DB, inv *domain.Investor, amount, amountDue decimal.Decimal, reference string, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:        domain.TxTopup,
		Amount:      amount,
		AmountDue:   amountDue,
		Reference:   reference,
		Description: "Investment top-up",
		At:          at,
	})
}

func RecordPointsRedemption(tx *gorm.DB, inv *domain.Investor, amount decimal.Decimal, description string, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:        domain.TxPointsRedemption,
		Amount:      amount,
		AmountDue:   decimal.Zero,
		Description: description,
		At:          at,
	})
}

func RecordEndInvestment(tx *gorm.DB, inv *domain.Investor, returned decimal.Decimal, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:        domain.TxEndInvestment,
		Amount:      returned,
		AmountDue:   decimal.Zero,
		Description: "Investment ended, principal returned to spending account",
		At:          at,
	})
}

func RecordRenewInvestment(tx *gorm.DB, inv *domain.Investor, amountDue decimal.Decimal, at time.Time) (*domain.Transaction, error) {
	return Record(tx, inv, Entry{
		Type:        domain.TxRenewInvestment,
		Amount:      inv.InitialInvestment,
		AmountDue:   amountDue,
		Description: "Investment renewed",
		At:          at,
	})
}

// unsettled restricts a query to transactions that still count towards amount due.
func unsettled(db *gorm.DB) *gorm.DB {
	return db.Where("withdrawal_requested = ?", false).
		Where("transaction_type NOT IN ?", []string{domain.TxEndInvestment, domain.TxRenewInvestment})
}

// UpdateAmounts recomputes amount_due on unsettled principal transactions
// using dueFor. Settled transactions are never touched.
func UpdateAmounts(tx *gorm.DB, inv *domain.Investor, dueFor func(principal decimal.Decimal) decimal.Decimal) (int, error) {
	var txs []domain.Transaction
	if err := unsettled(tx.Where("investor_id = ?", inv.ID)).
		Where("transaction_type IN ?", []string{domain.TxInitial, domain.TxTopup}).
		Find(&txs).Error; err != nil {
		return 0, err
	}
	n := 0
	for _, t := range txs {
		due := dueFor(t.Amount)
		if due.Equal(t.AmountDue) {
			continue
		}
		if err := tx.Model(&domain.Transaction{}).Where("id = ?", t.ID).Update("amount_due", due).Error; err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// SettlePrincipal settles every open principal transaction of the investor.
// It runs when the principal goes back to the spending account.
func SettlePrincipal(tx *gorm.DB, investorID uuid.UUID) (int64, error) {
	res := unsettled(tx.Model(&domain.Transaction{}).Where("investor_id = ?", investorID)).
		Where("transaction_type IN ?", []string{domain.TxInitial, domain.TxTopup}).
		Updates(map[string]interface{}{
			"amount_due":           decimal.Zero,
			"withdrawal_requested": true,
		})
	return res.RowsAffected, res.Error
}

// SettleWithdrawn zeroes amount_due on the oldest unsettled interest-bearing
// transactions fully covered by amount. Partially covered ones are left as is.
func SettleWithdrawn(tx *gorm.DB, investorID uuid.UUID, amount decimal.Decimal) error {
	var txs []domain.Transaction
	if err := unsettled(tx.Where("investor_id = ?", investorID)).
		Where("amount_due > ?", 0).
		Order("created_at ASC").
		Find(&txs).Error; err != nil {
		return err
	}
	remaining := amount
	for _, t := range txs {
		if t.AmountDue.GreaterThan(remaining) {
			break
		}
		remaining = remaining.Sub(t.AmountDue)
		if err := tx.Model(&domain.Transaction{}).Where("id = ?", t.ID).Updates(map[string]interface{}{
			"amount_due":           decimal.Zero,
			"withdrawal_requested": true,
		}).Error; err != nil {
			return err
		}
	}
	return nil
}

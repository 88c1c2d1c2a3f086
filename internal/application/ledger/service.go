package ledger

import (
	"context"
	"errors"
	"time"

	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = domain.NewError(domain.ErrNotFound, "Transaction not found")

// Service exposes ledger reads and the amount_due recompute.
type Service struct {
	DB      *gorm.DB
	Rules   *portfolio.Rules
	Timeout time.Duration
}

// History returns an investor's transactions, most recent first. limit <= 0 means all.
func (s *Service) History(ctx context.Context, investorID uuid.UUID, limit int) ([]domain.Transaction, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	q := s.DB.WithContext(ctx).Where("investor_id = ?", investorID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var txs []domain.Transaction
	if err := q.Find(&txs).Error; err != nil {
		return nil, database.Classify(err)
	}
	return txs, nil
}

// Get returns a single transaction.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*domain.Transaction, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var t domain.Transaction
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, database.Classify(err)
	}
	return &t, nil
}

// TotalAmountDue sums amount_due over unsettled transactions.
func (s *Service) TotalAmountDue(ctx context.Context, investorID uuid.UUID) (decimal.Decimal, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var txs []domain.Transaction
	if err := unsettled(s.DB.WithContext(ctx).Where("investor_id = ?", investorID)).
		Where("amount_due > ?", 0).
		Find(&txs).Error; err != nil {
		return decimal.Zero, database.Classify(err)
	}
	total := decimal.Zero
	for _, t := range txs {
		total = total.Add(t.AmountDue)
	}
	return total, nil
}

// UpdateTransactionAmounts recomputes amount_due on unsettled principal
// transactions for the given investment type. An empty investment type
// clears amount_due.
func (s *Service) UpdateTransactionAmounts(ctx context.Context, investorID uuid.UUID, investmentType string) (int, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var updated int
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inv, err := database.LockInvestor(tx, investorID)
		if err != nil {
			return err
		}
		dueFor, err := DueFunc(s.Rules, inv.PortfolioType, investmentType)
		if err != nil {
			return err
		}
		updated, err = UpdateAmounts(tx, inv, dueFor)
		return err
	})
	return updated, database.Classify(err)
}

// DueFunc returns the amount_due calculator for a portfolio/investment pair.
func DueFunc(rules *portfolio.Rules, portfolioType, investmentType string) (func(decimal.Decimal) decimal.Decimal, error) {
	if investmentType == "" {
		return func(decimal.Decimal) decimal.Decimal { return decimal.Zero }, nil
	}
	rule, err := rules.Requirements(portfolioType, investmentType)
	if err != nil {
		return nil, err
	}
	return rule.AmountDue, nil
}

// TypeTotal aggregates transactions of one type.
type TypeTotal struct {
	TransactionType string          `json:"transaction_type"`
	Count           int             `json:"count"`
	Amount          decimal.Decimal `json:"amount"`
}

// TotalsByType aggregates all transactions by type for reporting.
func (s *Service) TotalsByType(ctx context.Context) ([]TypeTotal, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var txs []domain.Transaction
	if err := s.DB.WithContext(ctx).Select("transaction_type", "amount").Find(&txs).Error; err != nil {
		return nil, database.Classify(err)
	}
	idx := map[string]int{}
	var out []TypeTotal
	for _, t := range txs {
		i, ok := idx[t.TransactionType]
		if !ok {
			i = len(out)
			idx[t.TransactionType] = i
			out = append(out, TypeTotal{TransactionType: t.TransactionType, Amount: decimal.Zero})
		}
		out[i].Count++
		out[i].Amount = out[i].Amount.Add(t.Amount)
	}
	return out, nil
}

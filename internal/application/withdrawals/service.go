package withdrawals

import (
	"context"
	"errors"
	"strings"
	"time"

	"bluegold-backend/internal/application/credentials"
	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotOwner            = domain.NewError(domain.ErrForbidden, "You do not have access to this investor account")
	ErrBankDetailsMissing  = domain.NewError(domain.ErrInvalidState, "Bank details are required before requesting a withdrawal")
	ErrWithdrawalNotFound  = domain.NewError(domain.ErrNotFound, "Withdrawal not found")
	ErrNotPending          = domain.NewError(domain.ErrInvalidState, "Withdrawal is not pending approval")
	ErrRejectReasonMissing = domain.NewError(domain.ErrInvalidState, "A rejection reason is required")
)

// Service runs the withdrawal approval workflow on top of the engine.
type Service struct {
	DB       *gorm.DB
	Engine   *interest.Engine
	Notifier notifications.Notifier
	Timeout  time.Duration
	Now      func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, n)
	}
}

type RequestInput struct {
	InvestorID uuid.UUID       `json:"investor_id"`
	Amount     decimal.Decimal `json:"amount"`
	Pin        string          `json:"pin"`
}

// Request debits the spending account and records a pending withdrawal.
// Ownership is checked on the locked row before the balance; bank details
// and PIN after it.
func (s *Service) Request(ctx context.Context, actor domain.Actor, in RequestInput) (*interest.Withdrawal, error) {
	if !in.Amount.IsPositive() {
		return nil, interest.ErrNonPositiveAmount
	}
	return s.Engine.ProcessUserWithdrawal(ctx, in.InvestorID, in.Amount, interest.WithdrawalChecks{
		Authorize: func(inv *domain.Investor) error {
			if !actor.Owns(inv) {
				return ErrNotOwner
			}
			return nil
		},
		Verify: func(inv *domain.Investor) error {
			return verifyWithdrawal(inv, in.Pin)
		},
	})
}

func verifyWithdrawal(inv *domain.Investor, pin string) error {
	if strings.TrimSpace(inv.BankName) == "" || strings.TrimSpace(inv.BankAccountNumber) == "" || strings.TrimSpace(inv.BankAccountName) == "" {
		return ErrBankDetailsMissing
	}
	if err := credentials.VerifyPin(inv.PinHash, pin); err != nil {
		if errors.Is(err, credentials.ErrLegacyPin) {
			log.Warn().Str("investor_id", inv.ID.String()).Msg("legacy plaintext PIN refused; flagged for re-hash")
		}
		return err
	}
	return nil
}

func lockWithdrawal(tx *gorm.DB, id uuid.UUID) (*domain.Transaction, error) {
	var t domain.Transaction
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND transaction_type = ?", id, domain.TxWithdrawal).First(&t).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &t, nil
}

// Approve marks a pending withdrawal as sent and settles the principal
// transactions it covers. Sent is terminal.
func (s *Service) Approve(ctx context.Context, txID uuid.UUID) (*domain.Transaction, error) {
	tctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var out *domain.Transaction
	err := s.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockWithdrawal(tx, txID)
		if err != nil {
			return err
		}
		if t.WithdrawStatus != domain.WithdrawPending {
			return ErrNotPending
		}
		if err := tx.Model(&domain.Transaction{}).Where("id = ?", t.ID).
			Update("withdraw_status", domain.WithdrawSent).Error; err != nil {
			return err
		}
		if err := ledger.SettleWithdrawn(tx, t.InvestorID, t.Amount); err != nil {
			return err
		}
		t.WithdrawStatus = domain.WithdrawSent
		out = t
		return nil
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("transaction_id", txID.String()).Str("amount", out.Amount.String()).Msg("withdrawal approved")
	s.notify(ctx, notifications.WithdrawalCompleted(out.InvestorID, out.Amount, s.now()))
	return out, nil
}

// Reject marks a pending withdrawal as rejected and refunds the amount to
// the spending account in the same transaction.
func (s *Service) Reject(ctx context.Context, txID uuid.UUID, reason string) (*domain.Transaction, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrRejectReasonMissing
	}
	tctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var out *domain.Transaction
	err := s.DB.WithContext(tctx).Transaction(func(tx *gorm.DB) error {
		t, err := lockWithdrawal(tx, txID)
		if err != nil {
			return err
		}
		if t.WithdrawStatus != domain.WithdrawPending {
			return ErrNotPending
		}
		inv, err := database.LockInvestor(tx, t.InvestorID)
		if err != nil {
			return err
		}
		if err := interest.CreditSpending(tx, inv, t.Amount); err != nil {
			return err
		}
		if err := tx.Model(&domain.Transaction{}).Where("id = ?", t.ID).
			Update("withdraw_status", domain.WithdrawRejected).Error; err != nil {
			return err
		}
		t.WithdrawStatus = domain.WithdrawRejected
		out = t
		return nil
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("transaction_id", txID.String()).Str("reason", reason).Msg("withdrawal rejected")
	s.notify(ctx, notifications.WithdrawalFailed(out.InvestorID, out.Amount, reason, s.now()))
	return out, nil
}

// Status returns a withdrawal visible to the actor.
func (s *Service) Status(ctx context.Context, actor domain.Actor, txID uuid.UUID) (*domain.Transaction, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var t domain.Transaction
	if err := s.DB.WithContext(ctx).Where("id = ? AND transaction_type = ?", txID, domain.TxWithdrawal).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, database.Classify(err)
	}
	inv, err := database.FindInvestor(s.DB.WithContext(ctx), t.InvestorID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(inv) {
		return nil, ErrNotOwner
	}
	return &t, nil
}

// Pending lists withdrawals awaiting approval, oldest first.
func (s *Service) Pending(ctx context.Context) ([]domain.Transaction, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var out []domain.Transaction
	err := s.DB.WithContext(ctx).
		Where("transaction_type = ? AND withdraw_status = ?", domain.TxWithdrawal, domain.WithdrawPending).
		Order("created_at ASC").Find(&out).Error
	return out, database.Classify(err)
}

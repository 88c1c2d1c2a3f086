package topups

import (
	"context"
	"errors"
	"strings"
	"time"

	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/infrastructure/paystack"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrNotOwner           = domain.NewError(domain.ErrForbidden, "You do not have access to this investor account")
	ErrTopupNotFound      = domain.NewError(domain.ErrNotFound, "Top-up not found")
	ErrReferenceRequired  = domain.NewError(domain.ErrInvalidState, "Payment reference is required")
	ErrGatewayUnavailable = domain.NewError(domain.ErrTransientStore, "Payment gateway is unavailable, please try again")
	ErrPaymentFailed      = domain.NewError(domain.ErrInvalidState, "Payment was not successful")
	ErrAmountMismatch     = domain.NewError(domain.ErrDataIntegrity, "Paid amount does not match the top-up amount")
)

// Service takes card payments through the gateway and applies them as
// principal top-ups through the engine.
type Service struct {
	DB          *gorm.DB
	Engine      *interest.Engine
	Gateway     paystack.Gateway
	Notifier    notifications.Notifier
	CallbackURL string
	Timeout     time.Duration
	Now         func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// NewReference returns TOPUP-<12 upper hex>.
func NewReference() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TOPUP-" + strings.ToUpper(hex[:12])
}

// ToKobo converts naira to the gateway's minor unit.
func ToKobo(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

type InitiateInput struct {
	InvestorID uuid.UUID       `json:"investor_id"`
	Amount     decimal.Decimal `json:"amount"`
	Email      string          `json:"email"`
}

// Initiate creates a pending top-up and returns it with the checkout URL.
func (s *Service) Initiate(ctx context.Context, actor domain.Actor, in InitiateInput) (*domain.Topup, error) {
	if !in.Amount.IsPositive() {
		return nil, interest.ErrNonPositiveAmount
	}
	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	inv, err := database.FindInvestor(s.DB.WithContext(dbctx), in.InvestorID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(inv) {
		return nil, ErrNotOwner
	}
	out, err := s.Engine.EnsureDueDatesUpToDate(ctx, in.InvestorID)
	if err != nil {
		return nil, err
	}
	inv.CurrentWeek = out.CurrentWeek
	inv.LastDueDate = out.LastDueDate
	inv.NextDueDate = out.NextDueDate
	if err := s.Engine.CheckTopupAllowed(inv, s.now()); err != nil {
		return nil, err
	}
	email := strings.TrimSpace(in.Email)
	if email == "" {
		email = inv.Email
	}
	t := &domain.Topup{
		InvestorID: inv.ID,
		Reference:  NewReference(),
		Amount:     in.Amount,
		Email:      email,
		Status:     domain.TopupPending,
	}
	if err := s.DB.WithContext(dbctx).Create(t).Error; err != nil {
		return nil, database.Classify(err)
	}

	auth, err := s.Gateway.Initialize(ctx, paystack.InitializeRequest{
		Email:       email,
		Amount:      ToKobo(in.Amount),
		Reference:   t.Reference,
		CallbackURL: s.CallbackURL,
		Metadata: map[string]interface{}{
			"investor_id": inv.ID.String(),
			"topup_id":    t.ID.String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("reference", t.Reference).Msg("gateway initialize failed")
		s.markFailed(ctx, t, nil)
		return nil, ErrGatewayUnavailable
	}
	t.AuthorizationURL = auth.AuthorizationURL
	if err := s.DB.WithContext(dbctx).Model(&domain.Topup{}).Where("id = ?", t.ID).
		Update("authorization_url", t.AuthorizationURL).Error; err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("investor_id", inv.ID.String()).Str("reference", t.Reference).Str("amount", in.Amount.String()).Msg("top-up initiated")
	return t, nil
}

func (s *Service) markFailed(ctx context.Context, t *domain.Topup, raw []byte) {
	updates := map[string]interface{}{"status": domain.TopupFailed}
	if len(raw) > 0 {
		updates["gateway_response"] = datatypes.JSON(raw)
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	if err := s.DB.WithContext(ctx).Model(&domain.Topup{}).Where("id = ? AND status = ?", t.ID, domain.TopupPending).
		Updates(updates).Error; err != nil {
		log.Warn().Err(err).Str("reference", t.Reference).Msg("failed to mark top-up failed")
		return
	}
	t.Status = domain.TopupFailed
}

// CallbackResult is the outcome of a gateway callback.
type CallbackResult struct {
	Topup            *domain.Topup       `json:"topup"`
	Transaction      *domain.Transaction `json:"transaction,omitempty"`
	AlreadyProcessed bool                `json:"already_processed"`
}

func findTopup(db *gorm.DB, reference string) (*domain.Topup, error) {
	var t domain.Topup
	if err := db.Where("reference = ?", reference).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTopupNotFound
		}
		return nil, err
	}
	return &t, nil
}

func findTopupTransaction(db *gorm.DB, reference string) (*domain.Transaction, error) {
	var t domain.Transaction
	err := db.Where("transaction_type = ? AND reference = ?", domain.TxTopup, reference).First(&t).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ProcessCallback verifies a reference with the gateway and applies the
// top-up. Replays of an applied reference return the existing transaction.
func (s *Service) ProcessCallback(ctx context.Context, reference string) (*CallbackResult, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrReferenceRequired
	}
	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	t, err := findTopup(s.DB.WithContext(dbctx), reference)
	if err != nil {
		return nil, database.Classify(err)
	}
	existing, err := findTopupTransaction(s.DB.WithContext(dbctx), reference)
	if err != nil {
		return nil, database.Classify(err)
	}
	if existing != nil {
		return &CallbackResult{Topup: t, Transaction: existing, AlreadyProcessed: true}, nil
	}
	if t.Status == domain.TopupFailed {
		return nil, ErrPaymentFailed
	}

	v, err := s.Gateway.Verify(ctx, reference)
	if err != nil {
		log.Error().Err(err).Str("reference", reference).Msg("gateway verify failed")
		return nil, ErrGatewayUnavailable
	}
	if !v.Succeeded() {
		log.Warn().Str("reference", reference).Str("status", v.Status).Msg("top-up payment not successful")
		s.markFailed(ctx, t, v.Raw)
		return nil, ErrPaymentFailed
	}
	if v.Amount != ToKobo(t.Amount) {
		log.Error().Str("reference", reference).Int64("paid_kobo", v.Amount).Int64("expected_kobo", ToKobo(t.Amount)).Msg("top-up amount mismatch")
		s.markFailed(ctx, t, v.Raw)
		return nil, ErrAmountMismatch
	}

	now := s.now()
	out := &CallbackResult{Topup: t}
	var inv *domain.Investor
	err = s.DB.WithContext(dbctx).Transaction(func(tx *gorm.DB) error {
		var locked domain.Topup
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", t.ID).First(&locked).Error; err != nil {
			return err
		}
		prior, err := findTopupTransaction(tx, reference)
		if err != nil {
			return err
		}
		if prior != nil {
			out.Transaction = prior
			out.AlreadyProcessed = true
			return nil
		}
		inv, err = database.LockInvestor(tx, t.InvestorID)
		if err != nil {
			return err
		}
		txn, err := s.Engine.ApplyTopup(tx, inv, t.Amount, reference, now)
		if err != nil {
			return err
		}
		paidAt := now
		if v.PaidAt != nil {
			paidAt = v.PaidAt.UTC()
		}
		updates := map[string]interface{}{"status": domain.TopupSuccess, "paid_at": paidAt}
		if len(v.Raw) > 0 {
			updates["gateway_response"] = datatypes.JSON(v.Raw)
		}
		if err := tx.Model(&domain.Topup{}).Where("id = ?", t.ID).Updates(updates).Error; err != nil {
			return err
		}
		t.Status = domain.TopupSuccess
		t.PaidAt = &paidAt
		out.Transaction = txn
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidState) {
			log.Error().Err(err).Str("reference", reference).Msg("paid top-up rejected by engine; needs manual refund")
			s.markFailed(ctx, t, v.Raw)
		}
		return nil, database.Classify(err)
	}
	if out.AlreadyProcessed {
		return out, nil
	}
	log.Info().Str("investor_id", inv.ID.String()).Str("reference", reference).Str("amount", t.Amount.String()).Msg("top-up applied")
	if s.Notifier != nil {
		s.Notifier.Notify(ctx, notifications.TopupCompleted(inv.ID, t.Amount, inv.TotalInvestment, reference, now))
	}
	return out, nil
}

// History lists an investor's top-ups, newest first.
func (s *Service) History(ctx context.Context, actor domain.Actor, investorID uuid.UUID) ([]domain.Topup, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	inv, err := database.FindInvestor(s.DB.WithContext(ctx), investorID)
	if err != nil {
		return nil, database.Classify(err)
	}
	if !actor.Owns(inv) {
		return nil, ErrNotOwner
	}
	var out []domain.Topup
	err = s.DB.WithContext(ctx).Where("investor_id = ?", investorID).Order("created_at DESC").Find(&out).Error
	return out, database.Classify(err)
}

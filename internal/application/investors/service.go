package investors

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"bluegold-backend/internal/application/credentials"
	"bluegold-backend/internal/application/interest"
	"bluegold-backend/internal/application/ledger"
	"bluegold-backend/internal/application/notifications"
	"bluegold-backend/internal/application/portfolio"
	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/cache"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/pkg/validation"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	DefaultCacheTTL    = 60 * time.Second
	accountNumberTries = 5
)

var (
	ErrNotOwner            = domain.NewError(domain.ErrForbidden, "You do not have access to this investor account")
	ErrNameRequired        = domain.NewError(domain.ErrInvalidState, "First name and surname are required")
	ErrInvalidEmail        = domain.NewError(domain.ErrInvalidState, "Invalid email address")
	ErrInvalidPhone        = domain.NewError(domain.ErrInvalidState, "Invalid phone number")
	ErrInvalidPortfolio    = domain.NewError(domain.ErrRuleNotFound, "Invalid portfolio type")
	ErrAccountNumberFailed = domain.NewError(domain.ErrTransientStore, "Could not allocate an account number, please try again")
)

// Service owns investor accounts and their read models.
type Service struct {
	DB       *gorm.DB
	Rules    *portfolio.Rules
	Engine   *interest.Engine
	Ledger   *ledger.Service
	Notifier notifications.Notifier
	Cache    cache.Cache
	CacheTTL time.Duration
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

func dashboardKey(userID uuid.UUID) string {
	return "dashboard:" + userID.String()
}

// InvalidateUser drops the cached dashboard of a user.
func (s *Service) InvalidateUser(ctx context.Context, userID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Delete(ctx, dashboardKey(userID)); err != nil {
		log.Warn().Err(err).Str("user_id", userID.String()).Msg("dashboard cache invalidation failed")
	}
}

// Invalidate drops the cached dashboard of the investor's owner.
func (s *Service) Invalidate(ctx context.Context, investorID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	inv, err := database.FindInvestor(s.DB.WithContext(ctx), investorID)
	if err != nil || inv.UserID == nil {
		return
	}
	s.InvalidateUser(ctx, *inv.UserID)
}

type invalidatingNotifier struct {
	svc  *Service
	next notifications.Notifier
}

func (n invalidatingNotifier) Notify(ctx context.Context, note domain.Notification) {
	n.svc.Invalidate(context.WithoutCancel(ctx), note.InvestorID)
	if n.next != nil {
		n.next.Notify(ctx, note)
	}
}

// InvalidatingNotifier wraps next so that every notification also drops the
// cached dashboard of the investor's owner. Every balance change emits one.
func (s *Service) InvalidatingNotifier(next notifications.Notifier) notifications.Notifier {
	return invalidatingNotifier{svc: s, next: next}
}

// authorize loads an investor visible to actor.
func (s *Service) authorize(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*domain.Investor, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	inv, err := database.FindInvestor(s.DB.WithContext(ctx), investorID)
	if err != nil {
		return nil, err
	}
	if !actor.Owns(inv) {
		return nil, ErrNotOwner
	}
	return inv, nil
}

// reconcile brings the investor's due dates up to date and returns the
// fresh row.
func (s *Service) reconcile(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*domain.Investor, error) {
	if _, err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	if _, err := s.Engine.EnsureDueDatesUpToDate(ctx, investorID); err != nil {
		return nil, err
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	return database.FindInvestor(s.DB.WithContext(ctx), investorID)
}

type CreateInput struct {
	FirstName         string          `json:"first_name"`
	Surname           string          `json:"surname"`
	Email             string          `json:"email"`
	Phone             string          `json:"phone"`
	Address           string          `json:"address"`
	BankName          string          `json:"bank_name"`
	BankAccountName   string          `json:"bank_account_name"`
	BankAccountNumber string          `json:"bank_account_number"`
	Pin               string          `json:"pin"`
	PortfolioType     string          `json:"portfolio_type"`
	InvestmentType    string          `json:"investment_type"`
	InitialInvestment decimal.Decimal `json:"initial_investment"`
}

// NewAccountNumber returns INV followed by 8 digits.
func NewAccountNumber() string {
	return fmt.Sprintf("INV%08d", rand.Intn(100000000))
}

func (s *Service) allocateAccountNumber(tx *gorm.DB) (string, error) {
	for i := 0; i < accountNumberTries; i++ {
		n := NewAccountNumber()
		var count int64
		if err := tx.Model(&domain.Investor{}).Where("account_number = ?", n).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return n, nil
		}
	}
	return "", ErrAccountNumberFailed
}

// CreateInvestor opens an investor account for the actor. When an
// investment type is given the term starts immediately.
func (s *Service) CreateInvestor(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Investor, error) {
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.Surname = strings.TrimSpace(in.Surname)
	in.Email = validation.NormalizeEmail(in.Email)
	if in.FirstName == "" || in.Surname == "" {
		return nil, ErrNameRequired
	}
	if !validation.IsValidEmail(in.Email) {
		return nil, ErrInvalidEmail
	}
	if strings.TrimSpace(in.Phone) != "" {
		phone, ok := validation.NormalizePhone(in.Phone)
		if !ok {
			return nil, ErrInvalidPhone
		}
		in.Phone = phone
	} else {
		in.Phone = ""
	}
	if !validation.IsValidPin(in.Pin) {
		return nil, credentials.ErrInvalidPinFormat
	}
	pt, ok := s.Rules.NormalizePortfolio(in.PortfolioType)
	if !ok {
		return nil, ErrInvalidPortfolio
	}
	if !in.InitialInvestment.IsPositive() {
		return nil, interest.ErrNonPositiveAmount
	}
	var rule *portfolio.Rule
	if it := strings.TrimSpace(in.InvestmentType); it != "" {
		r, err := s.Rules.ValidateInvestment(pt, it, in.InitialInvestment)
		if err != nil {
			return nil, err
		}
		rule = &r
	}
	pinHash, err := credentials.HashPin(in.Pin)
	if err != nil {
		return nil, err
	}

	now := s.now()
	userID := actor.UserID
	inv := &domain.Investor{
		UserID:            &userID,
		FirstName:         in.FirstName,
		Surname:           in.Surname,
		Email:             in.Email,
		Phone:             in.Phone,
		Address:           strings.TrimSpace(in.Address),
		BankName:          strings.TrimSpace(in.BankName),
		BankAccountName:   strings.TrimSpace(in.BankAccountName),
		BankAccountNumber: strings.TrimSpace(in.BankAccountNumber),
		PinHash:           pinHash,
		PortfolioType:     pt,
		InitialInvestment: in.InitialInvestment,
		TotalInvestment:   in.InitialInvestment,
		SpendingBalance:   decimal.Zero,
		PaymentStatus:     "completed",
	}
	amountDue := decimal.Zero
	if rule != nil {
		interest.RestartClock(inv, *rule, now)
		amountDue = rule.AmountDue(in.InitialInvestment)
	}

	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	err = s.DB.WithContext(dbctx).Transaction(func(tx *gorm.DB) error {
		n, err := s.allocateAccountNumber(tx)
		if err != nil {
			return err
		}
		inv.AccountNumber = n
		if err := tx.Create(inv).Error; err != nil {
			return err
		}
		_, err = ledger.RecordInitial(tx, inv, amountDue, now)
		return err
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("investor_id", inv.ID.String()).Str("account_number", inv.AccountNumber).Str("portfolio_type", pt).Msg("investor created")
	s.notify(ctx, notifications.AccountCreated(inv.ID, inv.Email, now))
	if rule != nil {
		s.notify(ctx, notifications.InvestmentSelected(inv.ID, rule.Portfolio, rule.Investment, *inv.NextDueDate, now))
	}
	s.InvalidateUser(ctx, userID)
	return inv, nil
}

// SelectInvestmentType starts a term on an owned investor.
func (s *Service) SelectInvestmentType(ctx context.Context, actor domain.Actor, investorID uuid.UUID, investmentType string) (*interest.Transition, error) {
	if strings.TrimSpace(investmentType) == "" {
		return nil, interest.ErrNoInvestmentType
	}
	if _, err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	out, err := s.Engine.SelectInvestmentType(ctx, investorID, investmentType)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, investorID)
	return out, nil
}

// EndInvestment ends an owned investor's running term.
func (s *Service) EndInvestment(ctx context.Context, actor domain.Actor, investorID uuid.UUID) (*interest.Transition, error) {
	if _, err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	out, err := s.Engine.EndInvestment(ctx, investorID)
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, investorID)
	return out, nil
}

// RenewInvestment restarts an owned investor's matured term.
func (s *Service) RenewInvestment(ctx context.Context, actor domain.Actor, investorID uuid.UUID, investmentType string) (*interest.Transition, error) {
	if _, err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	out, err := s.Engine.RenewInvestment(ctx, investorID, strings.TrimSpace(investmentType))
	if err != nil {
		return nil, err
	}
	s.Invalidate(ctx, investorID)
	return out, nil
}

// Transactions lists an owned investor's ledger, most recent first.
func (s *Service) Transactions(ctx context.Context, actor domain.Actor, investorID uuid.UUID, limit int) ([]domain.Transaction, error) {
	if _, err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	return s.Ledger.History(ctx, investorID, limit)
}

// ListForUser returns the user's investor accounts, oldest first.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID) ([]domain.Investor, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var out []domain.Investor
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&out).Error
	return out, database.Classify(err)
}

package referrals

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

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

const (
	PointsPerReferral     = 10
	NairaPerPoint         = 500
	MinRedemptionPoints   = 20
	MaxMonthlyRedemptions = 1
	redemptionMonthLayout = "2006-01-02"
)

var (
	ErrCodeRequired       = domain.NewError(domain.ErrInvalidState, "Referral code is required")
	ErrInvalidCode        = domain.NewError(domain.ErrNotFound, "Invalid referral code")
	ErrSelfReferral       = domain.NewError(domain.ErrInvalidState, "You cannot use your own referral code")
	ErrAlreadyReferred    = domain.NewError(domain.ErrInvalidState, "A referral code has already been applied to this account")
	ErrUserNotFound       = domain.NewError(domain.ErrNotFound, "User not found")
	ErrMinimumPoints      = domain.NewError(domain.ErrInvalidState, fmt.Sprintf("Minimum redemption is %d points", MinRedemptionPoints))
	ErrInsufficientPoints = domain.NewError(domain.ErrInsufficientBalance, "Insufficient points balance")
	ErrMonthlyLimit       = domain.NewError(domain.ErrInvalidState, "Monthly redemption limit reached. Try again next month.")
	ErrNoInvestorAccount  = domain.NewError(domain.ErrInvalidState, "Open an investor account before redeeming points")
)

// Service runs the referral and points programme.
type Service struct {
	DB       *gorm.DB
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

func monthKey(t time.Time) string {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Format(redemptionMonthLayout)
}

// Downline is a user who signed up with the caller's code.
type Downline struct {
	UserID        uuid.UUID `json:"user_id"`
	Fullname      string    `json:"fullname"`
	Email         string    `json:"email"`
	PointsAwarded int       `json:"points_awarded"`
	JoinedAt      time.Time `json:"joined_at"`
}

type Summary struct {
	ReferralCode           string     `json:"referral_code"`
	PointsBalance          int        `json:"points_balance"`
	TotalPointsEarned      int        `json:"total_points_earned"`
	TotalPointsRedeemed    int        `json:"total_points_redeemed"`
	NairaValue             int64      `json:"naira_value"`
	TotalReferrals         int        `json:"total_referrals"`
	CanRedeem              bool       `json:"can_redeem"`
	MonthlyRedemptionCount int        `json:"monthly_redemption_count"`
	LastRedemptionDate     *time.Time `json:"last_redemption_date"`
	Downlines              []Downline `json:"downlines"`
}

func findPoints(db *gorm.DB, userID uuid.UUID) (domain.UserPoints, error) {
	var p domain.UserPoints
	err := db.Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.UserPoints{UserID: userID}, nil
	}
	return p, err
}

func lockPoints(tx *gorm.DB, userID uuid.UUID) (*domain.UserPoints, error) {
	var p domain.UserPoints
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		p = domain.UserPoints{UserID: userID}
		if err := tx.Create(&p).Error; err != nil {
			return nil, err
		}
		return &p, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// canRedeem reports the monthly limit check for p at now.
func canRedeem(p domain.UserPoints, now time.Time) bool {
	if p.LastRedemptionMonth == monthKey(now) && p.MonthlyRedemptionCount >= MaxMonthlyRedemptions {
		return false
	}
	return true
}

// Me returns the caller's referral code, points wallet and downlines.
func (s *Service) Me(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	db := s.DB.WithContext(ctx)
	var user domain.User
	if err := db.Where("user_id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, database.Classify(err)
	}
	p, err := findPoints(db, userID)
	if err != nil {
		return nil, database.Classify(err)
	}
	var refs []domain.Referral
	if err := db.Where("referrer_id = ?", userID).Order("created_at DESC").Find(&refs).Error; err != nil {
		return nil, database.Classify(err)
	}
	downlines := make([]Downline, 0, len(refs))
	if len(refs) > 0 {
		ids := make([]uuid.UUID, len(refs))
		for i, r := range refs {
			ids[i] = r.ReferredID
		}
		var users []domain.User
		if err := db.Where("user_id IN ?", ids).Find(&users).Error; err != nil {
			return nil, database.Classify(err)
		}
		byID := make(map[uuid.UUID]domain.User, len(users))
		for _, u := range users {
			byID[u.UserID] = u
		}
		for _, r := range refs {
			u := byID[r.ReferredID]
			downlines = append(downlines, Downline{
				UserID:        r.ReferredID,
				Fullname:      u.Fullname,
				Email:         u.Email,
				PointsAwarded: r.PointsAwarded,
				JoinedAt:      r.CreatedAt,
			})
		}
	}
	return &Summary{
		ReferralCode:           user.ReferralCode,
		PointsBalance:          p.PointsBalance,
		TotalPointsEarned:      p.TotalPointsEarned,
		TotalPointsRedeemed:    p.TotalPointsRedeemed,
		NairaValue:             int64(p.PointsBalance) * NairaPerPoint,
		TotalReferrals:         len(refs),
		CanRedeem:              p.PointsBalance >= MinRedemptionPoints && canRedeem(p, s.now()),
		MonthlyRedemptionCount: p.MonthlyRedemptionCount,
		LastRedemptionDate:     p.LastRedemptionDate,
		Downlines:              downlines,
	}, nil
}

func firstInvestor(db *gorm.DB, userID uuid.UUID) (*domain.Investor, error) {
	var inv domain.Investor
	err := db.Where("user_id = ?", userID).Order("created_at ASC").First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// Applied is the result of applying a referral code.
type Applied struct {
	ReferrerID    uuid.UUID `json:"referrer_id"`
	PointsAwarded int       `json:"points_awarded"`
}

// ApplyReferralCode links userID to the owner of code and awards the
// referrer. A user can be referred once.
func (s *Service) ApplyReferralCode(ctx context.Context, userID uuid.UUID, code string) (*Applied, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if code == "" {
		return nil, ErrCodeRequired
	}
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var referrer domain.User
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("referral_code = ?", code).First(&referrer).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrInvalidCode
			}
			return err
		}
		if referrer.UserID == userID {
			return ErrSelfReferral
		}
		var user domain.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&user).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrUserNotFound
			}
			return err
		}
		if user.ReferredBy != nil {
			return ErrAlreadyReferred
		}
		var existing int64
		if err := tx.Model(&domain.Referral{}).Where("referred_id = ?", userID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrAlreadyReferred
		}
		if err := tx.Model(&domain.User{}).Where("user_id = ?", userID).Update("referred_by", referrer.UserID).Error; err != nil {
			return err
		}
		if err := tx.Create(&domain.Referral{
			ReferrerID:    referrer.UserID,
			ReferredID:    userID,
			PointsAwarded: PointsPerReferral,
		}).Error; err != nil {
			return err
		}
		p, err := lockPoints(tx, referrer.UserID)
		if err != nil {
			return err
		}
		return tx.Model(&domain.UserPoints{}).Where("user_id = ?", referrer.UserID).Updates(map[string]interface{}{
			"points_balance":      p.PointsBalance + PointsPerReferral,
			"total_points_earned": p.TotalPointsEarned + PointsPerReferral,
		}).Error
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("user_id", userID.String()).Str("referrer_id", referrer.UserID.String()).Msg("referral code applied")

	now := s.now()
	db := s.DB.WithContext(ctx)
	if inv, err := firstInvestor(db, referrer.UserID); err == nil && inv != nil {
		s.notify(ctx, notifications.ReferralPointsEarned(inv.ID, PointsPerReferral, now))
	}
	if inv, err := firstInvestor(db, userID); err == nil && inv != nil {
		s.notify(ctx, notifications.ReferralCodeUsed(inv.ID, code, now))
	}
	return &Applied{ReferrerID: referrer.UserID, PointsAwarded: PointsPerReferral}, nil
}

// Redemption is the result of a points redemption.
type Redemption struct {
	PointsRedeemed  int                 `json:"points_redeemed"`
	Amount          decimal.Decimal     `json:"amount"`
	PointsBalance   int                 `json:"points_balance"`
	InvestorID      uuid.UUID           `json:"investor_id"`
	SpendingBalance decimal.Decimal     `json:"spending_balance"`
	Transaction     *domain.Transaction `json:"transaction"`
}

// RedeemPoints converts points to naira on the spending account of the
// user's first investor account. The wallet debit, the credit and the
// ledger entry commit together.
func (s *Service) RedeemPoints(ctx context.Context, userID uuid.UUID, points int) (*Redemption, error) {
	if points < MinRedemptionPoints {
		return nil, ErrMinimumPoints
	}
	now := s.now()
	month := monthKey(now)
	amount := decimal.NewFromInt(int64(points) * NairaPerPoint)

	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var out Redemption
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := lockPoints(tx, userID)
		if err != nil {
			return err
		}
		if p.PointsBalance < points {
			return ErrInsufficientPoints
		}
		if !canRedeem(*p, now) {
			return ErrMonthlyLimit
		}
		first, err := firstInvestor(tx, userID)
		if err != nil {
			return err
		}
		if first == nil {
			return ErrNoInvestorAccount
		}
		inv, err := database.LockInvestor(tx, first.ID)
		if err != nil {
			return err
		}
		if err := interest.CreditSpending(tx, inv, amount); err != nil {
			return err
		}
		txn, err := ledger.RecordPointsRedemption(tx, inv, amount, fmt.Sprintf("Redeemed %d referral points", points), now)
		if err != nil {
			return err
		}
		count := 1
		if p.LastRedemptionMonth == month {
			count = p.MonthlyRedemptionCount + 1
		}
		if err := tx.Model(&domain.UserPoints{}).Where("user_id = ?", userID).Updates(map[string]interface{}{
			"points_balance":           p.PointsBalance - points,
			"total_points_redeemed":    p.TotalPointsRedeemed + points,
			"monthly_redemption_count": count,
			"last_redemption_month":    month,
			"last_redemption_date":     now,
		}).Error; err != nil {
			return err
		}
		out = Redemption{
			PointsRedeemed:  points,
			Amount:          amount,
			PointsBalance:   p.PointsBalance - points,
			InvestorID:      inv.ID,
			SpendingBalance: inv.SpendingBalance,
			Transaction:     txn,
		}
		return nil
	})
	if err != nil {
		return nil, database.Classify(err)
	}
	log.Info().Str("user_id", userID.String()).Int("points", points).Str("amount", amount.String()).Msg("points redeemed")
	s.notify(ctx, notifications.PointsRedeemed(out.InvestorID, points, amount, now))
	return &out, nil
}

package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// UserPoints is the referral points wallet of a user.
type UserPoints struct {
	UserID                 uuid.UUID  `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	PointsBalance          int        `gorm:"column:points_balance;not null;default:0" json:"points_balance"`
	TotalPointsEarned      int        `gorm:"column:total_points_earned;not null;default:0" json:"total_points_earned"`
	TotalPointsRedeemed    int        `gorm:"column:total_points_redeemed;not null;default:0" json:"total_points_redeemed"`
	MonthlyRedemptionCount int        `gorm:"column:monthly_redemption_count;not null;default:0" json:"monthly_redemption_count"`
	LastRedemptionMonth    string     `gorm:"column:last_redemption_month;type:varchar(10)" json:"last_redemption_month"`
	LastRedemptionDate     *time.Time `gorm:"column:last_redemption_date" json:"last_redemption_date"`
	CreatedAt              time.Time  `gorm:"column:created_at" json:"created_at"`
	UpdatedAt              time.Time  `gorm:"column:updated_at" json:"updated_at"`
}

func (UserPoints) TableName() string {
	return "user_points"
}

// Referral links a referred user to the user whose code they used.
type Referral struct {
	ID            uuid.UUID `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ReferrerID    uuid.UUID `gorm:"column:referrer_id;type:uuid;not null;index" json:"referrer_id"`
	ReferredID    uuid.UUID `gorm:"column:referred_id;type:uuid;not null;uniqueIndex" json:"referred_id"`
	PointsAwarded int       `gorm:"column:points_awarded;not null" json:"points_awarded"`
	CreatedAt     time.Time `gorm:"column:created_at" json:"created_at"`
}

func (Referral) TableName() string {
	return "referrals"
}

func (r *Referral) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}

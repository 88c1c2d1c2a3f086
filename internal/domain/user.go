package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a login account. Investors hang off it by user_id.
type User struct {
	UserID       uuid.UUID      `gorm:"column:user_id;type:uuid;primaryKey" json:"user_id"`
	Fullname     string         `gorm:"column:fullname;not null" json:"fullname"`
	Email        string         `gorm:"column:email;not null;uniqueIndex" json:"email"`
	PasswordHash string         `gorm:"column:password_hash;not null" json:"-"`
	Role         string         `gorm:"column:role;not null;default:investor" json:"role"`
	ReferralCode string         `gorm:"column:referral_code;uniqueIndex" json:"referral_code"`
	ReferredBy   *uuid.UUID     `gorm:"column:referred_by;type:uuid" json:"referred_by"`
	CreatedAt    time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt    time.Time      `gorm:"column:updated_at" json:"updatedAt"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.UserID == uuid.Nil {
		u.UserID = uuid.New()
	}
	return nil
}

// Actor is the authenticated caller of an investor-scoped operation.
type Actor struct {
	UserID  uuid.UUID
	IsAdmin bool
}

// Owns reports whether the actor may act on inv.
func (a Actor) Owns(inv *Investor) bool {
	if a.IsAdmin {
		return true
	}
	return inv.UserID != nil && *inv.UserID == a.UserID
}

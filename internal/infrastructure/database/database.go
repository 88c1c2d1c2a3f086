package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"bluegold-backend/internal/domain"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DefaultTimeout bounds a single store round trip when the caller sets none.
const DefaultTimeout = 10 * time.Second

// Open opens a GORM DB from DSN (Postgres pooler URL).
// PreferSimpleProtocol disables prepared statement caching to avoid 42P05
// ("prepared statement already exists") behind PgBouncer style poolers.
func Open(dsn string) (*gorm.DB, error) {
	return gorm.Open(postgres.New(postgres.Config{
		DSN:                  dsn,
		PreferSimpleProtocol: true,
	}), &gorm.Config{})
}

// Models lists every persisted model in migration order.
func Models() []interface{} {
	return []interface{}{
		&domain.User{},
		&domain.Investor{},
		&domain.Transaction{},
		&domain.Topup{},
		&domain.Notification{},
		&domain.UserPoints{},
		&domain.Referral{},
	}
}

// AutoMigrate runs migrations for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(Models()...)
}

// WithTimeout returns ctx bounded by d (DefaultTimeout when d <= 0).
func WithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultTimeout
	}
	return context.WithTimeout(ctx, d)
}

// Classify maps deadline and cancellation failures onto ErrTransientStore.
// Other errors are returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", domain.ErrTransientStore, err)
	}
	return err
}

// LockInvestor reads an investor row with SELECT ... FOR UPDATE. It must be
// called with the *gorm.DB of an open transaction.
func LockInvestor(tx *gorm.DB, id uuid.UUID) (*domain.Investor, error) {
	var inv domain.Investor
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&inv).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvestorNotFound
		}
		return nil, err
	}
	return &inv, nil
}

// ErrInvestorNotFound is returned by LockInvestor and FindInvestor.
var ErrInvestorNotFound = domain.NewError(domain.ErrNotFound, "Investor not found")

// FindInvestor reads an investor without locking.
func FindInvestor(db *gorm.DB, id uuid.UUID) (*domain.Investor, error) {
	var inv domain.Investor
	if err := db.Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvestorNotFound
		}
		return nil, Classify(err)
	}
	return &inv, nil
}

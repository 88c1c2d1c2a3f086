package notifications

import (
	"context"
	"errors"
	"time"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

var (
	ErrNotificationNotFound = domain.NewError(domain.ErrNotFound, "Notification not found")
	ErrNotOwner             = domain.NewError(domain.ErrForbidden, "You do not have access to these notifications")
)

// Notifier accepts notifications on a best-effort basis. Implementations
// never report failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, n domain.Notification)
}

// Publisher fans a notification out to an external channel. Nil = no-op.
type Publisher interface {
	Publish(ctx context.Context, n domain.Notification) error
}

// Service persists notifications and serves the notification feed.
type Service struct {
	DB        *gorm.DB
	Publisher Publisher
	Timeout   time.Duration
	Now       func() time.Time
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// Notify stores n and publishes it. Failures are logged and swallowed so a
// delivery problem never undoes the money movement that produced n.
func (s *Service) Notify(ctx context.Context, n domain.Notification) {
	if s == nil {
		return
	}
	ctx, cancel := database.WithTimeout(context.WithoutCancel(ctx), s.Timeout)
	defer cancel()
	if s.DB != nil {
		if err := s.DB.WithContext(ctx).Create(&n).Error; err != nil {
			log.Warn().Err(err).Str("notification_id", n.ID).Str("event_type", n.EventType).Msg("notification persist failed")
		}
	}
	if s.Publisher != nil {
		if err := s.Publisher.Publish(ctx, n); err != nil {
			log.Warn().Err(err).Str("notification_id", n.ID).Str("event_type", n.EventType).Msg("notification publish failed")
		}
	}
}

// List returns unexpired notifications for an investor, newest first.
func (s *Service) List(ctx context.Context, investorID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	q := s.DB.WithContext(ctx).
		Where("investor_id = ? AND expires_at > ?", investorID, s.now()).
		Order("created_at DESC")
	if unreadOnly {
		q = q.Where("read = ?", false)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}
	var out []domain.Notification
	if err := q.Find(&out).Error; err != nil {
		return nil, database.Classify(err)
	}
	return out, nil
}

// MarkRead flags a notification as read. The investor must own it.
func (s *Service) MarkRead(ctx context.Context, investorID uuid.UUID, id string) error {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var n domain.Notification
	if err := s.DB.WithContext(ctx).Where("id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return database.Classify(err)
	}
	if n.InvestorID != investorID {
		return ErrNotificationNotFound
	}
	return database.Classify(s.DB.WithContext(ctx).Model(&domain.Notification{}).Where("id = ?", id).Update("read", true).Error)
}

// ListFor is List for a caller who must own the investor.
func (s *Service) ListFor(ctx context.Context, actor domain.Actor, investorID uuid.UUID, unreadOnly bool, limit int) ([]domain.Notification, error) {
	if err := s.authorize(ctx, actor, investorID); err != nil {
		return nil, err
	}
	return s.List(ctx, investorID, unreadOnly, limit)
}

// MarkReadFor flags a notification as read on behalf of the caller.
func (s *Service) MarkReadFor(ctx context.Context, actor domain.Actor, id string) error {
	dbctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	var n domain.Notification
	if err := s.DB.WithContext(dbctx).Where("id = ?", id).First(&n).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotificationNotFound
		}
		return database.Classify(err)
	}
	if err := s.authorize(ctx, actor, n.InvestorID); err != nil {
		return err
	}
	return s.MarkRead(ctx, n.InvestorID, id)
}

func (s *Service) authorize(ctx context.Context, actor domain.Actor, investorID uuid.UUID) error {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	inv, err := database.FindInvestor(s.DB.WithContext(ctx), investorID)
	if err != nil {
		return database.Classify(err)
	}
	if !actor.Owns(inv) {
		return ErrNotOwner
	}
	return nil
}

// CleanupExpired deletes notifications past their expiry and returns the count.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	ctx, cancel := database.WithTimeout(ctx, s.Timeout)
	defer cancel()
	res := s.DB.WithContext(ctx).Where("expires_at <= ?", s.now()).Delete(&domain.Notification{})
	if res.Error != nil {
		return 0, database.Classify(res.Error)
	}
	if res.RowsAffected > 0 {
		log.Info().Int64("deleted", res.RowsAffected).Msg("expired notifications cleaned up")
	}
	return res.RowsAffected, nil
}

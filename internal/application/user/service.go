package user

import (
	"context"
	"crypto/rand"
	"errors"
	"strings"
	"unicode"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/infrastructure/database"
	"bluegold-backend/internal/pkg/constants"
	"bluegold-backend/internal/pkg/validation"
	"bluegold-backend/internal/user/policies"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var (
	ErrInvalidEmail       = domain.NewError(domain.ErrInvalidState, "Invalid email format")
	ErrInvalidPassword    = domain.NewError(domain.ErrInvalidState, "Invalid password format")
	ErrFullnameRequired   = domain.NewError(domain.ErrInvalidState, "Full name is required and must be a non-empty string")
	ErrInvalidFullname    = domain.NewError(domain.ErrInvalidState, "Full name contains invalid characters (only letters, spaces, hyphens, and apostrophes allowed)")
	ErrEmailRegistered    = domain.NewError(domain.ErrInvalidState, "Email already registered")
	ErrMissingUserID      = domain.NewError(domain.ErrInvalidState, "Missing user ID")
	ErrNoValidFields      = domain.NewError(domain.ErrInvalidState, "No valid update fields provided")
	ErrUserNotFound       = domain.NewError(domain.ErrNotFound, "User not found")
	ErrReferralCodeFailed = errors.New("could not allocate a unique referral code")
)

const (
	bcryptCost         = 10
	referralCodeLength = 8
	referralAlphabet   = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	maxCodeAttempts    = 5
)

// Service holds DB and Redis for user operations.
type Service struct {
	DB  *gorm.DB
	Rdb *redis.Client
}

type CreateUserInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Fullname string `json:"fullname"`
}

// CreateUser registers an investor-role user with a fresh referral code.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*domain.User, error) {
	email := validation.NormalizeEmail(in.Email)
	if email == "" || !validation.IsValidEmail(email) {
		return nil, ErrInvalidEmail
	}
	if !validation.IsValidPassword(in.Password) {
		return nil, ErrInvalidPassword
	}
	trimmed := strings.TrimSpace(in.Fullname)
	if trimmed == "" {
		return nil, ErrFullnameRequired
	}
	if !validation.IsValidFullname(trimmed) {
		return nil, ErrInvalidFullname
	}

	var existing domain.User
	if err := s.DB.WithContext(ctx).Where("email = ?", email).First(&existing).Error; err == nil {
		return nil, ErrEmailRegistered
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, database.Classify(err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcryptCost)
	if err != nil {
		return nil, err
	}
	code, err := s.uniqueReferralCode(ctx)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Fullname:     titleCaseAndNormalize(trimmed),
		Role:         constants.Investor,
		ReferralCode: code,
	}
	if err := s.DB.WithContext(ctx).Create(u).Error; err != nil {
		return nil, database.Classify(err)
	}
	return u, nil
}

func (s *Service) uniqueReferralCode(ctx context.Context) (string, error) {
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := NewReferralCode()
		if err != nil {
			return "", err
		}
		var n int64
		if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("referral_code = ?", code).Count(&n).Error; err != nil {
			return "", database.Classify(err)
		}
		if n == 0 {
			return code, nil
		}
	}
	return "", ErrReferralCodeFailed
}

// NewReferralCode returns "BG" followed by random unambiguous characters.
func NewReferralCode() (string, error) {
	buf := make([]byte, referralCodeLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	out := make([]byte, referralCodeLength)
	for i, b := range buf {
		out[i] = referralAlphabet[int(b)%len(referralAlphabet)]
	}
	return "BG" + string(out), nil
}

// UpdateUser updates allowed fields: email, password, fullname.
func (s *Service) UpdateUser(ctx context.Context, userID string, fields map[string]interface{}) (*domain.User, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrUserNotFound
	}
	upd := make(map[string]interface{})
	for _, k := range []string{"email", "password", "fullname"} {
		if v, ok := fields[k].(string); ok {
			upd[k] = v
		}
	}
	if len(upd) == 0 {
		return nil, ErrNoValidFields
	}

	if e, ok := upd["email"].(string); ok {
		e = validation.NormalizeEmail(e)
		if !validation.IsValidEmail(e) {
			return nil, ErrInvalidEmail
		}
		var dup domain.User
		if err := s.DB.WithContext(ctx).Where("email = ? AND user_id != ?", e, userID).First(&dup).Error; err == nil {
			return nil, ErrEmailRegistered
		}
		upd["email"] = e
	}
	if p, ok := upd["password"].(string); ok {
		if !validation.IsValidPassword(p) {
			return nil, ErrInvalidPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(p), bcryptCost)
		if err != nil {
			return nil, err
		}
		upd["password_hash"] = string(hash)
		delete(upd, "password")
	}
	if fn, ok := upd["fullname"].(string); ok {
		trimmed := strings.TrimSpace(fn)
		if trimmed == "" {
			return nil, ErrFullnameRequired
		}
		if !validation.IsValidFullname(trimmed) {
			return nil, ErrInvalidFullname
		}
		upd["fullname"] = titleCaseAndNormalize(trimmed)
	}

	result := s.DB.WithContext(ctx).Model(&domain.User{}).Where("user_id = ?", userID).Updates(upd)
	if result.Error != nil {
		return nil, database.Classify(result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, ErrUserNotFound
	}
	return s.ViewUser(ctx, userID)
}

// ViewUser returns user by ID.
func (s *Service) ViewUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrMissingUserID
	}
	var u domain.User
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, database.Classify(err)
	}
	return &u, nil
}

type UpdateUserRoleInput struct {
	ActorUserID  string
	ActorRole    string
	TargetUserID string
	TargetRole   string
}

// UpdateUserRole changes a user's role after the policy check and destroys
// the target's sessions so the new role applies on next login.
func (s *Service) UpdateUserRole(ctx context.Context, in UpdateUserRoleInput) (*domain.User, error) {
	if err := policies.ValidateRoleAssignment(s.DB.WithContext(ctx), policies.ValidateRoleAssignmentParams{
		ActorRole:    in.ActorRole,
		TargetRole:   in.TargetRole,
		ActorUserID:  in.ActorUserID,
		TargetUserID: in.TargetUserID,
	}); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).Model(&domain.User{}).Where("user_id = ?", in.TargetUserID).
		Update("role", in.TargetRole).Error; err != nil {
		return nil, database.Classify(err)
	}
	n := policies.DestroyUserSessions(ctx, s.Rdb, in.TargetUserID)
	log.Info().Str("user_id", in.TargetUserID).Str("role", in.TargetRole).Int("sessions_dropped", n).Msg("user role changed")
	return s.ViewUser(ctx, in.TargetUserID)
}

func titleCaseAndNormalize(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	capitalize := true
	for _, r := range s {
		if unicode.IsSpace(r) {
			if !capitalize {
				b.WriteRune(' ')
				capitalize = true
			}
			continue
		}
		if capitalize {
			b.WriteRune(unicode.ToUpper(r))
			capitalize = false
		} else {
			b.WriteRune(r)
		}
	}
	return strings.TrimSpace(b.String())
}

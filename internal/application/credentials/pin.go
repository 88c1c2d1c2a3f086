package credentials

import (
	"errors"
	"strings"

	"bluegold-backend/internal/domain"
	"bluegold-backend/internal/pkg/validation"

	"golang.org/x/crypto/bcrypt"
)

const pinCost = 10

var (
	ErrInvalidPinFormat = domain.NewError(domain.ErrInvalidState, "PIN must be exactly 4 digits")
	// ErrMalformedPin is returned when a submitted PIN cannot match any
	// stored PIN.
	ErrMalformedPin = domain.NewError(domain.ErrInvalidCredential, "Invalid PIN")
	ErrPinNotSet        = domain.NewError(domain.ErrInvalidCredential, "Withdrawal PIN has not been set")
	ErrInvalidPin       = domain.NewError(domain.ErrInvalidCredential, "Invalid PIN")
	// ErrLegacyPin marks a stored PIN that is not a bcrypt hash. Such PINs
	// are refused until the investor resets them.
	ErrLegacyPin = domain.NewError(domain.ErrInvalidCredential, "PIN must be reset before withdrawals can be made")
)

// HashPin validates and hashes a 4-digit PIN.
func HashPin(pin string) (string, error) {
	if !validation.IsValidPin(pin) {
		return "", ErrInvalidPinFormat
	}
	b, err := bcrypt.GenerateFromPassword([]byte(pin), pinCost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// IsBcrypt reports whether stored looks like a bcrypt hash.
func IsBcrypt(stored string) bool {
	return strings.HasPrefix(stored, "$2a$") || strings.HasPrefix(stored, "$2b$") || strings.HasPrefix(stored, "$2y$")
}

// VerifyPin checks pin against the stored hash.
func VerifyPin(stored, pin string) error {
	if !validation.IsValidPin(pin) {
		return ErrMalformedPin
	}
	if stored == "" {
		return ErrPinNotSet
	}
	if !IsBcrypt(stored) {
		return ErrLegacyPin
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored), []byte(pin)); err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrInvalidPin
		}
		return err
	}
	return nil
}

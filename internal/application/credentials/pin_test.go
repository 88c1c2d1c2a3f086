package credentials

import (
	"testing"

	"bluegold-backend/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPin(t *testing.T) {
	hash, err := HashPin("1234")
	require.NoError(t, err)
	assert.True(t, IsBcrypt(hash))

	assert.NoError(t, VerifyPin(hash, "1234"))
	assert.ErrorIs(t, VerifyPin(hash, "4321"), ErrInvalidPin)
	assert.ErrorIs(t, VerifyPin(hash, "12a4"), ErrMalformedPin)
	assert.ErrorIs(t, VerifyPin(hash, "12a4"), domain.ErrInvalidCredential)
}

func TestHashPin_RejectsBadFormat(t *testing.T) {
	for _, pin := range []string{"", "123", "12345", "abcd"} {
		_, err := HashPin(pin)
		assert.ErrorIs(t, err, domain.ErrInvalidState, pin)
	}
}

func TestVerifyPin_LegacyAndUnset(t *testing.T) {
	assert.ErrorIs(t, VerifyPin("1234", "1234"), ErrLegacyPin)
	assert.ErrorIs(t, VerifyPin("", "1234"), ErrPinNotSet)
	assert.ErrorIs(t, VerifyPin("1234", "1234"), domain.ErrInvalidCredential)
}

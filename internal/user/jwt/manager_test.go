package jwt_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinichq/clinic-backend/internal/user/jwt"
	"github.com/clinichq/clinic-backend/pkg/config"
)

func newManager(expiry time.Duration) *jwt.Manager {
	return jwt.NewManager(&config.JWTConfig{
		Secret:       "test-secret-do-not-use-in-production",
		AccessExpiry: expiry,
		Issuer:       "clinic-backend",
	})
}

func TestGenerateAndValidate(t *testing.T) {
	m := newManager(time.Hour)

	token, err := m.Generate(&jwt.UserInfo{
		ID:     "user-1",
		Email:  "nina@clinic.edu",
		Name:   "Nina Nurse",
		Role:   "nurse",
		Campus: "THS",
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", token.TokenType)
	assert.True(t, token.ExpiresAt.After(time.Now()))

	claims, err := m.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "nurse", claims.Role)
	assert.Equal(t, "THS", claims.Campus)
	assert.Equal(t, "clinic-backend", claims.Issuer)
}

func TestValidateExpiredToken(t *testing.T) {
	m := newManager(-time.Minute)

	token, err := m.Generate(&jwt.UserInfo{ID: "user-1", Role: "nurse", Campus: "THS"})
	require.NoError(t, err)

	_, err = m.Validate(token.AccessToken)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expired")
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := newManager(time.Hour).Generate(&jwt.UserInfo{ID: "user-1"})
	require.NoError(t, err)

	other := jwt.NewManager(&config.JWTConfig{
		Secret:       "a-different-secret",
		AccessExpiry: time.Hour,
		Issuer:       "clinic-backend",
	})
	_, err = other.Validate(token.AccessToken)
	require.Error(t, err)
}

func TestValidateGarbage(t *testing.T) {
	_, err := newManager(time.Hour).Validate("not.a.token")
	require.Error(t, err)
}

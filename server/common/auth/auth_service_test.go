package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	svc := NewService("secret", 5)
	token, err := svc.GenerateToken("u-1", " Alice@Example.com ")
	require.NoError(t, err)

	userID, email, err := svc.ParseAuthContext(token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", userID)
	assert.Equal(t, "alice@example.com", email)
}

func TestParseRejectsForeignSecret(t *testing.T) {
	token, err := NewService("one", 5).GenerateToken("u-1", "a@x.com")
	require.NoError(t, err)

	_, _, err = NewService("two", 5).ParseAuthContext(token)
	assert.Error(t, err)
}

func TestParseRejectsExpired(t *testing.T) {
	svc := NewService("secret", 5)
	claims := Claims{
		UserID: "u-1",
		Email:  "a@x.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = svc.ParseToken(token)
	assert.Error(t, err)
}

func TestParseRejectsMissingEmail(t *testing.T) {
	svc := NewService("secret", 5)
	token, err := svc.GenerateToken("u-1", "")
	require.NoError(t, err)

	_, _, err = svc.ParseAuthContext(token)
	assert.ErrorIs(t, err, ErrIncompleteIdentity)
}

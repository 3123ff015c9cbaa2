package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "0123456789abcdef0123456789abcdef"

func TestVerify(t *testing.T) {
	v := NewVerifier(secret)

	token, err := Sign(secret, "user-1", time.Hour)
	require.NoError(t, err)

	sub, err := v.Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", sub)
}

func TestVerify_Rejects(t *testing.T) {
	v := NewVerifier(secret)

	expired, err := Sign(secret, "user-1", -time.Minute)
	require.NoError(t, err)
	wrongKey, err := Sign("another-secret-another-secret-xx", "user-1", time.Hour)
	require.NoError(t, err)
	noSubject, err := Sign(secret, "", time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "user-1"}).
		SignedString([]byte(secret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":      expired,
		"wrong key":    wrongKey,
		"no subject":   noSubject,
		"other method": hs512,
		"garbage":      "not.a.token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestVerify_Issuer(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject: "user-1",
		Issuer:  "carteira",
	}).SignedString([]byte(secret))
	require.NoError(t, err)

	_, err = NewVerifier(secret, WithIssuer("carteira")).Verify(token)
	assert.NoError(t, err)
	_, err = NewVerifier(secret, WithIssuer("someone-else")).Verify(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromHeader(t *testing.T) {
	v := NewVerifier(secret)
	token, err := Sign(secret, "user-9", time.Hour)
	require.NoError(t, err)

	sub, err := v.FromHeader("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", sub)

	sub, err = v.FromHeader("bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", sub)

	for _, h := range []string{"", "Bearer", "Bearer   ", "Basic dXNlcjpwYXNz", token} {
		_, err := v.FromHeader(h)
		assert.ErrorIs(t, err, ErrMissingToken, "header %q", h)
	}
}

func TestUserIDContext(t *testing.T) {
	assert.Empty(t, UserID(context.Background()))
	ctx := WithUserID(context.Background(), "user-1")
	assert.Equal(t, "user-1", UserID(ctx))
}

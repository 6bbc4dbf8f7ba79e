package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims Claims, secret string) string {
	t.Helper()
	claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(time.Hour))
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func TestSessionAddressStudent(t *testing.T) {
	t.Parallel()

	v := NewValidator(testSecret)
	token := signToken(t, Claims{
		Role:             "student",
		RegisteredClaims: jwt.RegisteredClaims{Subject: "anon-7f3a"},
	}, testSecret)

	addr, err := v.SessionAddress(token)
	require.NoError(t, err)
	assert.Equal(t, identity.Student("anon-7f3a"), addr)
}

func TestSessionAddressCounselor(t *testing.T) {
	t.Parallel()

	v := NewValidator(testSecret)
	token := signToken(t, Claims{Role: "counselor", Email: "c@uplift.org"}, testSecret)

	addr, err := v.SessionAddress(token)
	require.NoError(t, err)
	assert.Equal(t, identity.Counselor("c@uplift.org"), addr)
}

func TestSessionAddressRejectsBadSignature(t *testing.T) {
	t.Parallel()

	v := NewValidator(testSecret)
	token := signToken(t, Claims{Role: "student", RegisteredClaims: jwt.RegisteredClaims{Subject: "anon-1"}}, "other-secret")

	_, err := v.SessionAddress(token)
	assert.Error(t, err)
}

func TestSessionAddressRejectsUnresolvedRole(t *testing.T) {
	t.Parallel()

	v := NewValidator(testSecret)
	token := signToken(t, Claims{Role: "admin"}, testSecret)

	_, err := v.SessionAddress(token)
	assert.ErrorIs(t, err, identity.ErrUnresolvedIdentity)
}

func TestParseBearerToken(t *testing.T) {
	t.Parallel()

	tok, err := ParseBearerToken("Bearer abc")
	require.NoError(t, err)
	assert.Equal(t, "abc", tok)

	_, err = ParseBearerToken("")
	assert.Error(t, err)

	_, err = ParseBearerToken("Basic abc")
	assert.Error(t, err)
}

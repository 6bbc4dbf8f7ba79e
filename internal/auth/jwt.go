package auth

import (
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Shadan-Jamal/uplift-messaging/internal/identity"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims is the session token payload issued by the auth service. Student
// sessions carry their opaque id in Subject; counselor sessions carry the
// verified email.
type Claims struct {
	Role  string `json:"role"`
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks HS256 session tokens.
type Validator struct {
	secret []byte
}

func NewValidator(secret string) *Validator {
	return &Validator{secret: []byte(secret)}
}

func (v *Validator) Validate(tokenStr string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return nil, err
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// SessionAddress validates a token and resolves the address it speaks for.
// This is the gateway's view of the session collaborator's
// currentSessionAddress.
func (v *Validator) SessionAddress(tokenStr string) (identity.Address, error) {
	claims, err := v.Validate(tokenStr)
	if err != nil {
		return identity.Address{}, err
	}
	return identity.Resolve(identity.SessionContext{
		Role:      claims.Role,
		StudentID: claims.Subject,
		Email:     claims.Email,
	})
}

// ParseBearerToken extracts the token from an Authorization header.
func ParseBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("authorization header empty")
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}

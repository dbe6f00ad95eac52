// Package jwt validates Supabase-issued access tokens. The backend never
// mints tokens itself; identity is fully external and the session tokens are
// only propagated into cookies by the refresh endpoint.
package jwt

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Claims is the slice of a Supabase access token this backend reads. The
// registered subject carries the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID returns the token subject, a Supabase user UUID.
func (c *Claims) UserID() string {
	return c.Subject
}

var ErrInvalidToken = errors.New("invalid access token")

// ValidateToken parses and verifies a Supabase access token against the
// project's JWT secret. Supabase signs with HS256; any other algorithm is
// rejected outright. The subject must be a UUID since it is written into
// billing rows as the owning identity.
func ValidateToken(tokenString, secret string) (*Claims, error) {
	claims := new(Claims)
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

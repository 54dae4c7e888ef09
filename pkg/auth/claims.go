package auth

import (
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokenClaims represents the typed JWT the hosted auth provider issues
// to clients. Subject carries the provider's user id.
type AccessTokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

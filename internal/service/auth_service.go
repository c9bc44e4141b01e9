// internal/service/auth_service.go
package service

import (
	"errors"
	"os"
	"time"

	"wapair/internal/helper"

	"github.com/golang-jwt/jwt/v5"
)

// JWT configuration
var (
	jwtSecret         []byte
	accessTokenExpiry time.Duration
)

var ErrInvalidCredentials = errors.New("invalid credentials")

// InitAuthConfig initializes authentication configuration from environment variables.
// An empty secret leaves the admin routes unprotected.
func InitAuthConfig(secret string) {
	jwtSecret = []byte(secret)

	// Access token expiry (default: 1 hour)
	accessExp := os.Getenv("JWT_ACCESS_TOKEN_EXPIRY")
	if accessExp == "" {
		accessExp = "1h"
	}
	accessTokenExpiry, _ = time.ParseDuration(accessExp)
}

// AuthConfigured reports whether a JWT secret was provided.
func AuthConfigured() bool {
	return len(jwtSecret) > 0
}

// Claims represents JWT claims
type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// AuthenticateAdmin validates the admin credentials against the configured
// username and bcrypt password hash.
func AuthenticateAdmin(username, password, wantUsername, passwordHash string) error {
	if username != wantUsername {
		return ErrInvalidCredentials
	}
	if passwordHash == "" {
		return errors.New("no admin password hash configured")
	}
	if err := helper.VerifyPassword(passwordHash, password); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// GenerateAccessToken generates a JWT access token for the admin user
func GenerateAccessToken(username string) (string, error) {
	expirationTime := time.Now().Add(accessTokenExpiry)

	claims := &Claims{
		Username: username,
		Role:     "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateAccessToken validates JWT access token and returns claims
func ValidateAccessToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return jwtSecret, nil
	})

	if err != nil {
		return nil, err
	}

	if !token.Valid {
		return nil, errors.New("invalid token")
	}

	return claims, nil
}

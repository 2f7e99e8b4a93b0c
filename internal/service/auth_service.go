package service

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Domain errors for auth flows.
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrSigningKeyNotSet = errors.New("auth signing key is not configured")
)

// AuthService verifies bearer tokens issued by the dashboard's auth service.
type AuthService struct {
	signingKey []byte
}

func NewAuthService(signingKey string) *AuthService {
	return &AuthService{signingKey: []byte(signingKey)}
}

// Claims defines JWT claims
type Claims struct {
	jwt.RegisteredClaims
	Username string `json:"username,omitempty"`
}

// ParseToken verifies an HS256 token and returns who it was issued to.
func (s *AuthService) ParseToken(accessToken string) (string, error) {
	if len(s.signingKey) == 0 {
		return "", ErrSigningKeyNotSet
	}
	token, err := jwt.ParseWithClaims(accessToken, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Ensure HMAC signing is used
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})
	if err != nil {
		return "", err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Username != "" {
		return claims.Username, nil
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}

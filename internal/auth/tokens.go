// Package auth issues and verifies the access and refresh tokens used by
// the HTTP middleware and the websocket handshake.
package auth

import (
	"errors"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenService signs and validates JWTs with a shared HMAC secret.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenService constructs a TokenService.
func NewTokenService(secret string, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), accessTTL: accessTTL, refreshTTL: refreshTTL}
}

type claims struct {
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// IssuePair returns a fresh access/refresh token pair for the user.
func (s *TokenService) IssuePair(userID int) (access string, refresh string, err error) {
	access, err = s.sign(userID, "access", s.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = s.sign(userID, "refresh", s.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (s *TokenService) sign(userID int, use string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.Itoa(userID),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			Issuer:    "chat-backend",
		},
	})
	return token.SignedString(s.secret)
}

// VerifyAccess validates an access token and returns the user id.
func (s *TokenService) VerifyAccess(token string) (int, error) {
	return s.verify(token, "access")
}

// VerifyRefresh validates a refresh token and returns the user id.
func (s *TokenService) VerifyRefresh(token string) (int, error) {
	return s.verify(token, "refresh")
}

func (s *TokenService) verify(tokenString, use string) (int, error) {
	token, err := jwt.ParseWithClaims(tokenString, &claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return 0, err
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid || c.TokenUse != use {
		return 0, ErrInvalidToken
	}
	userID, err := strconv.Atoi(c.Subject)
	if err != nil || userID == 0 {
		return 0, ErrInvalidToken
	}
	return userID, nil
}

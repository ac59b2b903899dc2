package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"parqueo/internal/platform/middleware"
)

// TokenIssuer signs and validates HS256 session tokens. The restricted
// claim survives into every request so the boundary layer can limit a
// suspended-but-pending session.
type TokenIssuer struct {
	signingKey []byte
	ttl        time.Duration
}

func NewTokenIssuer(signingKey []byte, ttl time.Duration) *TokenIssuer {
	if ttl <= 0 {
		ttl = 8 * time.Hour
	}
	return &TokenIssuer{signingKey: signingKey, ttl: ttl}
}

type sessionClaims struct {
	Restricted bool `json:"restricted,omitempty"`
	jwt.RegisteredClaims
}

// Issue signs a session token for a user.
func (i *TokenIssuer) Issue(userID string, restricted bool, now time.Time) (string, error) {
	claims := sessionClaims{
		Restricted: restricted,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.signingKey)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// ValidateToken implements middleware.JWTValidator.
func (i *TokenIssuer) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.signingKey, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse session token: %w", err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("session token has no subject")
	}
	return &middleware.JWTClaims{UserID: claims.Subject, Restricted: claims.Restricted}, nil
}

// TTL reports how long issued sessions live.
func (i *TokenIssuer) TTL() time.Duration { return i.ttl }

// Package auth provides the access-token issuer and the password verifier
// the session engine delegates to.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/antecipa/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims carries the identity bound into an access token.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// JWTIssuer mints and parses HS256 access tokens.
type JWTIssuer struct {
	secret   []byte
	validity time.Duration
	now      func() time.Time
}

func NewJWTIssuer(secret string, validity time.Duration) *JWTIssuer {
	return &JWTIssuer{secret: []byte(secret), validity: validity, now: time.Now}
}

// Mint returns a signed access token for userID with the given role.
func (i *JWTIssuer) Mint(userID, role string) (string, error) {
	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.validity)),
		},
		UserID: userID,
		Role:   role,
	})

	s, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("error signing access token: %w", err)
	}
	return s, nil
}

// ParseToken validates tokenString and returns its claims. Expired tokens
// yield common.ErrTokenExpired, anything else common.ErrInvalidToken.
func (i *JWTIssuer) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return i.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, common.ErrTokenExpired
		}
		return nil, common.ErrInvalidToken
	}
	if !token.Valid || claims.UserID == "" {
		return nil, common.ErrInvalidToken
	}
	return claims, nil
}

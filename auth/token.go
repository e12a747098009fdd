package auth

import (
	"errors"
	"fmt"
	"time"

	"restaurant-ordering/models"

	"github.com/golang-jwt/jwt/v5"
)

// Claims are the access token claims issued by the auth service.
type Claims struct {
	Hasura map[string]any `json:"https://hasura.io/jwt/claims,omitempty"`
	jwt.RegisteredClaims
}

// User derives the account from the token claims.
func (c *Claims) User() *models.User {
	u := &models.User{ID: c.Subject}
	if id, ok := c.Hasura["x-hasura-user-id"].(string); ok && u.ID == "" {
		u.ID = id
	}
	if email, ok := c.Hasura["x-hasura-user-email"].(string); ok {
		u.Email = email
	}
	return u
}

// TokenParser checks access tokens. With a secret the HS256 signature is
// verified; without one only the claims and expiry are checked.
type TokenParser struct {
	secret []byte
	now    func() time.Time
}

func NewTokenParser(secret string) *TokenParser {
	p := &TokenParser{now: time.Now}
	if secret != "" {
		p.secret = []byte(secret)
	}
	return p
}

// Parse returns the claims of a non-expired token.
func (p *TokenParser) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	if p.secret != nil {
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
			return p.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(p.now), jwt.WithExpirationRequired())
		if err != nil {
			return nil, fmt.Errorf("invalid access token: %w", err)
		}
		return claims, nil
	}

	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if claims.ExpiresAt == nil || !p.now().Before(claims.ExpiresAt.Time) {
		return nil, fmt.Errorf("invalid access token: %w", jwt.ErrTokenExpired)
	}
	return claims, nil
}

// IsExpired reports whether err was caused by an expired token.
func IsExpired(err error) bool {
	return errors.Is(err, jwt.ErrTokenExpired)
}

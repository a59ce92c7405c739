// Package jwt authenticates bearer tokens signed with a shared HS256 secret.
package jwt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tjfontaine/polyglot-itinerary/internal/core/ports"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims carried by gateway tokens. The subject is the user ID.
type Claims struct {
	Email string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

// Provider implements ports.AuthProvider for HS256 tokens.
type Provider struct {
	secret []byte
	issuer string
	now    func() time.Time
}

var _ ports.AuthProvider = (*Provider)(nil)

// NewProvider creates a provider. An empty issuer accepts any issuer.
func NewProvider(secret, issuer string) (*Provider, error) {
	if secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &Provider{secret: []byte(secret), issuer: issuer, now: time.Now}, nil
}

// Authenticate validates the token and returns the caller identity.
func (p *Provider) Authenticate(ctx context.Context, token string) (*ports.AuthContext, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(p.now),
	}
	if p.issuer != "" {
		opts = append(opts, jwt.WithIssuer(p.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		return p.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &ports.AuthContext{
		UserID: claims.Subject,
		Email:  claims.Email,
		Metadata: map[string]string{
			"auth_method": "jwt",
		},
	}, nil
}

// Issue signs a token for userID valid for ttl.
func (p *Provider) Issue(userID, email string, ttl time.Duration) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("user id required")
	}
	now := p.now()
	claims := Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    p.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(p.secret)
}

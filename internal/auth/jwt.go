package auth

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ivanreeve/poop-tracker/internal"
)

// Claims is the access token shape issued by the hosted auth service.
type Claims struct {
	Email        string         `json:"email"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
	jwt.RegisteredClaims
}

// JWTAuthProvider verifies HS256 access tokens locally with the shared secret.
type JWTAuthProvider struct {
	secret []byte
	logger internal.Logger
}

func NewJWTAuthProvider(secret string, logger internal.Logger) *JWTAuthProvider {
	return &JWTAuthProvider{secret: []byte(secret), logger: logger}
}

func (a *JWTAuthProvider) Validate(_ context.Context, token string) (*internal.Identity, error) {
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		a.logger.Warnf("auth: failed to parse token: %v", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &internal.Identity{
		ID:       claims.Subject,
		Email:    claims.Email,
		Metadata: claims.UserMetadata,
	}, nil
}

// Sign issues a token for id. Used by tests and local tooling.
func (a *JWTAuthProvider) Sign(id internal.Identity, claims jwt.RegisteredClaims) (string, error) {
	claims.Subject = id.ID
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email:            id.Email,
		UserMetadata:     id.Metadata,
		RegisteredClaims: claims,
	})
	return t.SignedString(a.secret)
}

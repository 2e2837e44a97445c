package auth

import (
	"context"

	"github.com/ivanreeve/poop-tracker/internal"
)

// LocalAuthProvider accepts one static token and maps it to a demo user.
type LocalAuthProvider struct {
	Token    string
	Identity internal.Identity
	logger   internal.Logger
}

func (a *LocalAuthProvider) Validate(_ context.Context, token string) (*internal.Identity, error) {
	if token == a.Token {
		id := a.Identity
		return &id, nil
	}
	a.logger.Warnf("auth: invalid local token")
	return nil, ErrInvalidToken
}

func NewLocalAuthProvider(token string, logger internal.Logger) *LocalAuthProvider {
	return &LocalAuthProvider{
		Token: token,
		Identity: internal.Identity{
			ID:       "00000000-0000-0000-0000-000000000001",
			Email:    "demo@example.com",
			Metadata: map[string]any{"full_name": "Demo User"},
		},
		logger: logger,
	}
}

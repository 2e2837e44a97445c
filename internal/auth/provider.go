package auth

import (
	"context"
	"errors"

	"github.com/ivanreeve/poop-tracker/internal"
)

var ErrInvalidToken = errors.New("invalid token")

// Provider turns a bearer token into the signed-in identity.
type Provider interface {
	Validate(ctx context.Context, token string) (*internal.Identity, error)
}

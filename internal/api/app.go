package api

import (
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/session"
)

type App interface {
	Logger() internal.Logger
	Sessions() *session.Manager
	Now() time.Time
}

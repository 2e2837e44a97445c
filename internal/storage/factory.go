package storage

import (
	"context"
	"fmt"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/config"
)

func NewFileRepositories(cfg *config.Config, logger internal.Logger) (Store, error) {
	return NewFileStorage(cfg.LogsFile, cfg.FriendshipsFile, cfg.ProfilesFile, logger)
}

func NewPostgresRepositories(ctx context.Context, cfg *config.Config, logger internal.Logger) (Store, error) {
	s, err := NewPostgresStorage(ctx, cfg.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

// New picks the backend named by STORAGE_BACKEND.
func New(ctx context.Context, cfg *config.Config, logger internal.Logger) (Store, error) {
	switch cfg.StorageBackend {
	case "file":
		return NewFileRepositories(cfg, logger)
	case "postgres":
		return NewPostgresRepositories(ctx, cfg, logger)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", cfg.StorageBackend)
	}
}

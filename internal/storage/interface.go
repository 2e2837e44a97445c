package storage

import (
	"context"
	"errors"
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
)

var (
	ErrNotFound = errors.New("storage: record not found")
	ErrConflict = errors.New("storage: record already exists")
)

type LogRepository interface {
	// ListLogs returns one user's entries, newest first.
	ListLogs(ctx context.Context, userID string) ([]internal.LogEntry, error)
	ListLogsForUsers(ctx context.Context, userIDs []string) ([]internal.LogEntry, error)
	// CreateLog assigns the id.
	CreateLog(ctx context.Context, userID string, typ int, notes string, occurredAt time.Time) (*internal.LogEntry, error)
	// RecreateLog inserts the entry with its existing id and fails with
	// ErrConflict when the id is taken.
	RecreateLog(ctx context.Context, log internal.LogEntry) (*internal.LogEntry, error)
	DeleteLog(ctx context.Context, id string) error
}

type FriendshipRepository interface {
	// ListFriendships returns every record where userID is either side.
	ListFriendships(ctx context.Context, userID string) ([]internal.Friendship, error)
	CreateFriendship(ctx context.Context, userID, friendID string) (*internal.Friendship, error)
	UpdateFriendshipStatus(ctx context.Context, id string, status internal.FriendshipStatus) error
	DeleteFriendship(ctx context.Context, id string) error
}

type ProfileRepository interface {
	// FindProfileByEmail matches case-insensitively; (nil, nil) when absent.
	FindProfileByEmail(ctx context.Context, email string) (*internal.Profile, error)
	ListProfiles(ctx context.Context, ids []string) ([]internal.Profile, error)
	UpsertProfile(ctx context.Context, p internal.Profile) (*internal.Profile, error)
}

type Store interface {
	LogRepository
	FriendshipRepository
	ProfileRepository
	Close() error
}

package internal

import "time"

// Identity is the signed-in user as reported by the auth provider.
type Identity struct {
	ID       string         `json:"id"`
	Email    string         `json:"email"`
	Metadata map[string]any `json:"user_metadata,omitempty"`
}

type Profile struct {
	ID        string  `json:"id"`
	Email     *string `json:"email"`
	FullName  *string `json:"full_name"`
	AvatarURL *string `json:"avatar_url"`
}

type LogEntry struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Type       int       `json:"type"` // Bristol 1–7
	Notes      *string   `json:"notes"`
	OccurredAt time.Time `json:"occurred_at"`
}

type FriendshipStatus string

const (
	FriendshipPending  FriendshipStatus = "pending"
	FriendshipAccepted FriendshipStatus = "accepted"
)

// Friendship is a directed edge: UserID requested, FriendID received.
type Friendship struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	FriendID  string           `json:"friend_id"`
	Status    FriendshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

const (
	MinStoolType = 1
	MaxStoolType = 7
)

func ValidStoolType(t int) bool {
	return t >= MinStoolType && t <= MaxStoolType
}

func StringPtr(s string) *string { return &s }

func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

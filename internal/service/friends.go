package service

import (
	"context"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/friends"
)

type FriendRequest struct {
	Email string `json:"email" validate:"required,email"`
}

func ValidateFriendRequest(body *FriendRequest) error {
	return validate.Struct(body)
}

// FriendView is one friendship as seen by the current user.
type FriendView struct {
	internal.Friendship
	OtherID   string  `json:"other_id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatar_url"`
}

type FriendsView struct {
	Accepted []FriendView `json:"accepted"`
	Incoming []FriendView `json:"incoming"`
	Outgoing []FriendView `json:"outgoing"`
	Error    string       `json:"error,omitempty"`
}

// FeedEntry is an accepted friend's entry with the friend's name attached.
type FeedEntry struct {
	LogView
	FriendName string `json:"friend_name"`
}

func SendFriendRequest(ctx context.Context, f *friends.Sync, body *FriendRequest) (*internal.Friendship, error) {
	if err := ValidateFriendRequest(body); err != nil {
		return nil, err
	}
	return f.AddFriend(ctx, body.Email)
}

func BuildFriendsView(st friends.State, me string) FriendsView {
	views := func(records []internal.Friendship) []FriendView {
		out := make([]FriendView, 0, len(records))
		for _, r := range records {
			other := friends.OtherParty(r, me)
			v := FriendView{Friendship: r, OtherID: other}
			if p, ok := st.Profiles[other]; ok {
				v.Name = friends.DisplayName(&p)
				v.AvatarURL = p.AvatarURL
			} else {
				v.Name = friends.DisplayName(nil)
			}
			out = append(out, v)
		}
		return out
	}
	return FriendsView{
		Accepted: views(st.Partition.Accepted),
		Incoming: views(st.Partition.Incoming),
		Outgoing: views(st.Partition.Outgoing),
		Error:    st.Error,
	}
}

func BuildFeed(st friends.State) []FeedEntry {
	out := make([]FeedEntry, 0, len(st.FriendLogs))
	for _, l := range st.FriendLogs {
		var name string
		if p, ok := st.Profiles[l.UserID]; ok {
			name = friends.DisplayName(&p)
		} else {
			name = friends.DisplayName(nil)
		}
		out = append(out, FeedEntry{LogView: NewLogView(l), FriendName: name})
	}
	return out
}

// Package friends holds the request/accept friendship graph for one user.
package friends

import (
	"errors"
	"strings"

	"github.com/ivanreeve/poop-tracker/internal"
)

var (
	ErrEmailRequired    = errors.New("enter an email address")
	ErrSelfRequest      = errors.New("you cannot add yourself")
	ErrDuplicateRequest = errors.New("you already have a pending or accepted request with this user")
	ErrProfileNotFound  = errors.New("no user found with that email")
	ErrRequestNotFound  = errors.New("friend request not found")
	ErrNotRecipient     = errors.New("only the recipient can accept a request")
	ErrNotPending       = errors.New("friend request is no longer pending")
	ErrNotFriend        = errors.New("not an accepted friend")
)

type Partition struct {
	Accepted []internal.Friendship `json:"accepted"`
	Incoming []internal.Friendship `json:"incoming"`
	Outgoing []internal.Friendship `json:"outgoing"`
}

// Split sorts records into accepted friendships and pending requests in each
// direction relative to me.
func Split(records []internal.Friendship, me string) Partition {
	p := Partition{
		Accepted: []internal.Friendship{},
		Incoming: []internal.Friendship{},
		Outgoing: []internal.Friendship{},
	}
	for _, f := range records {
		switch {
		case f.Status == internal.FriendshipAccepted:
			p.Accepted = append(p.Accepted, f)
		case f.Status == internal.FriendshipPending && f.FriendID == me:
			p.Incoming = append(p.Incoming, f)
		case f.Status == internal.FriendshipPending && f.UserID == me:
			p.Outgoing = append(p.Outgoing, f)
		}
	}
	return p
}

// OtherParty returns the id on the far side of f from me.
func OtherParty(f internal.Friendship, me string) string {
	if f.UserID == me {
		return f.FriendID
	}
	return f.UserID
}

// Counterparts returns the distinct other-party ids, in record order.
func Counterparts(records []internal.Friendship, me string) []string {
	seen := make(map[string]struct{}, len(records))
	var out []string
	for _, f := range records {
		id := OtherParty(f, me)
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func AcceptedFriendIDs(records []internal.Friendship, me string) []string {
	var accepted []internal.Friendship
	for _, f := range records {
		if f.Status == internal.FriendshipAccepted {
			accepted = append(accepted, f)
		}
	}
	return Counterparts(accepted, me)
}

// Related reports whether any record links a and b, in either direction and
// any status.
func Related(records []internal.Friendship, a, b string) bool {
	for _, f := range records {
		if (f.UserID == a && f.FriendID == b) || (f.UserID == b && f.FriendID == a) {
			return true
		}
	}
	return false
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateRequest runs the checks that need no store round trip: the target
// must not be me, and must not already be a counterpart whose profile is
// known. profiles is keyed by user id.
func ValidateRequest(me internal.Identity, email string, records []internal.Friendship, profiles map[string]internal.Profile) error {
	email = NormalizeEmail(email)
	if email == "" {
		return ErrEmailRequired
	}
	if email == NormalizeEmail(me.Email) {
		return ErrSelfRequest
	}
	for _, id := range Counterparts(records, me.ID) {
		p, ok := profiles[id]
		if ok && p.Email != nil && NormalizeEmail(*p.Email) == email {
			return ErrDuplicateRequest
		}
	}
	return nil
}

// DisplayName is how a counterpart is shown: full name, else email.
func DisplayName(p *internal.Profile) string {
	if p != nil {
		if n := strings.TrimSpace(internal.StringValue(p.FullName)); n != "" {
			return n
		}
		if e := strings.TrimSpace(internal.StringValue(p.Email)); e != "" {
			return e
		}
	}
	return "Friend"
}

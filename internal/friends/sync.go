package friends

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/stats"
	"github.com/ivanreeve/poop-tracker/internal/storage"
)

var ErrTimeout = errors.New("network timeout, please try again")

type Repositories struct {
	Friendships storage.FriendshipRepository
	Profiles    storage.ProfileRepository
	Logs        storage.LogRepository
}

type State struct {
	Friendships []internal.Friendship       `json:"friendships"`
	Partition   Partition                   `json:"partition"`
	Profiles    map[string]internal.Profile `json:"profiles"`
	FriendLogs  []internal.LogEntry         `json:"friend_logs"`
	Loading     bool                        `json:"loading"`
	Saving      bool                        `json:"saving"`
	Error       string                      `json:"error,omitempty"`
}

// Sync mirrors one user's friendships, the counterparts' profiles and the
// accepted friends' logs. Its error is independent of the log sync's.
type Sync struct {
	repos   Repositories
	me      internal.Identity
	timeout time.Duration
	logger  internal.Logger

	mu         sync.Mutex
	records    []internal.Friendship
	profiles   map[string]internal.Profile
	friendLogs []internal.LogEntry
	loading    bool
	saving     bool
	err        string
	loadFailed bool
}

func New(repos Repositories, me internal.Identity, timeout time.Duration, logger internal.Logger) *Sync {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = internal.NopLogger()
	}
	return &Sync{
		repos:    repos,
		me:       me,
		timeout:  timeout,
		logger:   logger,
		profiles: map[string]internal.Profile{},
	}
}

func (s *Sync) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	profiles := make(map[string]internal.Profile, len(s.profiles))
	for k, v := range s.profiles {
		profiles[k] = v
	}
	return State{
		Friendships: slices.Clone(s.records),
		Partition:   Split(s.records, s.me.ID),
		Profiles:    profiles,
		FriendLogs:  slices.Clone(s.friendLogs),
		Loading:     s.loading,
		Saving:      s.saving,
		Error:       s.err,
	}
}

func (s *Sync) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stale reports whether the last Load failed in any part.
func (s *Sync) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

func (s *Sync) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.profiles = map[string]internal.Profile{}
	s.friendLogs = nil
	s.loading = false
	s.saving = false
	s.err = ""
	s.loadFailed = false
}

// Load fetches the friendships, then the counterparts' profiles and the
// accepted friends' logs in parallel. A failed friendship fetch keeps all
// previous state; a failed profile or log fetch keeps the friendships that
// loaded and only that part's previous value.
func (s *Sync) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	records, err := s.repos.Friendships.ListFriendships(ctx, s.me.ID)
	if err != nil {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.loadFailed = true
		return s.failLocked("load friendships", err)
	}

	everyone := Counterparts(records, s.me.ID)
	accepted := AcceptedFriendIDs(records, s.me.ID)

	var (
		g        errgroup.Group
		profiles []internal.Profile
		logs     []internal.LogEntry
		profErr  error
		logsErr  error
	)
	if len(everyone) > 0 {
		g.Go(func() error {
			profiles, profErr = s.repos.Profiles.ListProfiles(ctx, everyone)
			return profErr
		})
	}
	if len(accepted) > 0 {
		g.Go(func() error {
			logs, logsErr = s.repos.Logs.ListLogsForUsers(ctx, accepted)
			return logsErr
		})
	}
	firstErr := g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = records
	if profErr == nil {
		byID := make(map[string]internal.Profile, len(profiles))
		for _, p := range profiles {
			byID[p.ID] = p
		}
		s.profiles = byID
	}
	if logsErr == nil {
		slices.SortStableFunc(logs, func(a, b internal.LogEntry) int {
			return b.OccurredAt.Compare(a.OccurredAt)
		})
		s.friendLogs = logs
	}
	if firstErr != nil {
		s.loadFailed = true
		return s.failLocked("load friend data", firstErr)
	}
	s.loadFailed = false
	s.err = ""
	return nil
}

// AddFriend sends a pending request to the user registered under email.
func (s *Sync) AddFriend(ctx context.Context, email string) (*internal.Friendship, error) {
	s.mu.Lock()
	err := ValidateRequest(s.me, email, s.records, s.profiles)
	if err != nil {
		s.err = err.Error()
		s.mu.Unlock()
		return nil, err
	}
	s.saving = true
	s.mu.Unlock()
	defer s.doneSaving()

	created, err := s.request(ctx, NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	// The request exists either way; a failed reload only sets the error.
	_ = s.Load(ctx)
	return created, nil
}

func (s *Sync) request(ctx context.Context, email string) (*internal.Friendship, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target, err := s.repos.Profiles.FindProfileByEmail(ctx, email)
	if err != nil {
		return nil, s.fail("find profile", err)
	}
	if target == nil {
		return nil, s.reject(ErrProfileNotFound)
	}
	if target.ID == s.me.ID {
		return nil, s.reject(ErrSelfRequest)
	}

	// The other side may have sent a request since the last load.
	current, err := s.repos.Friendships.ListFriendships(ctx, s.me.ID)
	if err != nil {
		return nil, s.fail("check existing requests", err)
	}
	if Related(current, s.me.ID, target.ID) {
		return nil, s.reject(ErrDuplicateRequest)
	}

	created, err := s.repos.Friendships.CreateFriendship(ctx, s.me.ID, target.ID)
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return nil, s.reject(ErrDuplicateRequest)
		}
		return nil, s.fail("create friendship", err)
	}
	return created, nil
}

// Accept moves an incoming pending request to accepted.
func (s *Sync) Accept(ctx context.Context, id string) error {
	f, err := s.pendingFresh(ctx, id)
	if err != nil {
		return s.reject(err)
	}
	if f.FriendID != s.me.ID {
		return s.reject(ErrNotRecipient)
	}
	return s.mutate(ctx, "accept request", func(ctx context.Context) error {
		return s.repos.Friendships.UpdateFriendshipStatus(ctx, id, internal.FriendshipAccepted)
	})
}

// Decline removes a pending request. Either party may do so, which also
// covers the requester cancelling.
func (s *Sync) Decline(ctx context.Context, id string) error {
	if _, err := s.pendingFresh(ctx, id); err != nil {
		return s.reject(err)
	}
	return s.mutate(ctx, "decline request", func(ctx context.Context) error {
		return s.repos.Friendships.DeleteFriendship(ctx, id)
	})
}

// FriendStats summarizes one accepted friend's logs.
func (s *Sync) FriendStats(friendID string, now time.Time) (stats.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !slices.Contains(AcceptedFriendIDs(s.records, s.me.ID), friendID) {
		return stats.Summary{}, ErrNotFriend
	}
	var logs []internal.LogEntry
	for _, l := range s.friendLogs {
		if l.UserID == friendID {
			logs = append(logs, l)
		}
	}
	return stats.Summarize(logs, now), nil
}

func (s *Sync) pending(id string) (internal.Friendship, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, f := range s.records {
		if f.ID != id {
			continue
		}
		if f.Status != internal.FriendshipPending {
			return f, ErrNotPending
		}
		return f, nil
	}
	return internal.Friendship{}, ErrRequestNotFound
}

// pendingFresh reloads once when id is unknown, since the request may have
// been sent after the last load.
func (s *Sync) pendingFresh(ctx context.Context, id string) (internal.Friendship, error) {
	f, err := s.pending(id)
	if !errors.Is(err, ErrRequestNotFound) {
		return f, err
	}
	if err := s.Load(ctx); err != nil {
		return f, err
	}
	return s.pending(id)
}

func (s *Sync) mutate(ctx context.Context, what string, fn func(ctx context.Context) error) error {
	s.mu.Lock()
	s.saving = true
	s.mu.Unlock()
	defer s.doneSaving()

	mctx, cancel := context.WithTimeout(ctx, s.timeout)
	err := fn(mctx)
	cancel()
	if err != nil {
		return s.fail(what, err)
	}
	_ = s.Load(ctx)
	return nil
}

func (s *Sync) doneSaving() {
	s.mu.Lock()
	s.saving = false
	s.mu.Unlock()
}

func (s *Sync) reject(err error) error {
	s.mu.Lock()
	s.err = err.Error()
	s.mu.Unlock()
	return err
}

func (s *Sync) fail(what string, err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failLocked(what, err)
}

func (s *Sync) failLocked(what string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}
	s.logger.Errorf("friends: %s failed for user %s: %v", what, s.me.ID, err)
	s.err = err.Error()
	return err
}

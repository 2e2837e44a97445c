// Package session owns the per-user sync state between sign-in and sign-out.
package session

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/friends"
	"github.com/ivanreeve/poop-tracker/internal/logsync"
	"github.com/ivanreeve/poop-tracker/internal/observability"
	"github.com/ivanreeve/poop-tracker/internal/storage"
)

type Repositories struct {
	Logs        storage.LogRepository
	Friendships storage.FriendshipRepository
	Profiles    storage.ProfileRepository
}

type Options struct {
	Timeout    time.Duration
	UndoWindow time.Duration
	IdleTTL    time.Duration // zero uses DefaultIdleTTL
	Now        func() time.Time
	Logger     internal.Logger
	Observer   logsync.Observer
	OnSweep    func(active int) // live session count after each sweep
}

const DefaultIdleTTL = 30 * time.Minute

type Session struct {
	Identity internal.Identity
	Logs     *logsync.Sync
	Friends  *friends.Sync

	mu         sync.Mutex
	profile    *internal.Profile
	profileErr string

	lastSeen time.Time // guarded by Manager.mu
}

func (s *Session) Profile() (*internal.Profile, string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.profile == nil {
		return nil, s.profileErr
	}
	p := *s.profile
	return &p, s.profileErr
}

// GreetingName picks the name shown to the signed-in user.
func (s *Session) GreetingName() string {
	p, _ := s.Profile()
	if p != nil {
		if n := strings.TrimSpace(internal.StringValue(p.FullName)); n != "" {
			return n
		}
	}
	for _, key := range []string{"full_name", "name"} {
		if v := metaString(s.Identity.Metadata, key); v != "" {
			return v
		}
	}
	if local := emailLocalPart(s.Identity.Email); local != "" {
		return local
	}
	return "Friend"
}

type Manager struct {
	repos  Repositories
	opts   Options
	logger internal.Logger
	now    func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewManager(repos Repositories, opts Options) *Manager {
	if opts.Logger == nil {
		opts.Logger = internal.NopLogger()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		repos:    repos,
		opts:     opts,
		logger:   opts.Logger,
		now:      now,
		sessions: make(map[string]*Session),
	}
}

// SignIn returns the user's session, creating it on first use. A new session
// upserts the profile and loads logs and friendships; their failures are kept
// on the session rather than failing the sign-in.
func (m *Manager) SignIn(ctx context.Context, id internal.Identity) *Session {
	m.mu.Lock()
	if s, ok := m.sessions[id.ID]; ok {
		s.lastSeen = m.now()
		m.mu.Unlock()
		return s
	}
	s := &Session{
		Identity: id,
		lastSeen: m.now(),
		Logs: logsync.New(m.repos.Logs, id.ID, logsync.Options{
			Timeout:    m.opts.Timeout,
			UndoWindow: m.opts.UndoWindow,
			Now:        m.opts.Now,
			Logger:     m.logger,
			Observer:   m.opts.Observer,
		}),
		Friends: friends.New(friends.Repositories{
			Friendships: m.repos.Friendships,
			Profiles:    m.repos.Profiles,
			Logs:        m.repos.Logs,
		}, id, m.opts.Timeout, m.logger),
	}
	m.sessions[id.ID] = s
	m.mu.Unlock()

	m.logger.Infof("session: signed in %s", id.ID)

	ctx, span := observability.Tracer().Start(ctx, "session.SignIn",
		trace.WithAttributes(attribute.String("user.id", id.ID)))
	defer span.End()

	var g errgroup.Group
	g.Go(func() error {
		m.upsertProfile(ctx, s)
		return nil
	})
	g.Go(func() error { return s.Logs.Load(ctx) })
	g.Go(func() error { return s.Friends.Load(ctx) })
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		m.logger.Warnf("session: initial load for %s incomplete: %v", id.ID, err)
	}
	return s
}

func (m *Manager) upsertProfile(ctx context.Context, s *Session) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.Timeout)
	defer cancel()

	p, err := m.repos.Profiles.UpsertProfile(ctx, ProfileFromIdentity(s.Identity))
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		m.logger.Errorf("session: profile upsert failed for %s: %v", s.Identity.ID, err)
		s.profileErr = err.Error()
		return
	}
	s.profile = p
	s.profileErr = ""
}

func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// SignOut clears and forgets the user's session. Unknown users are ignored.
func (m *Manager) SignOut(userID string) {
	m.mu.Lock()
	s, ok := m.sessions[userID]
	delete(m.sessions, userID)
	m.mu.Unlock()
	if !ok {
		return
	}
	s.Logs.Clear()
	s.Friends.Clear()
	m.logger.Infof("session: signed out %s", userID)
}

// Sweep clears and drops every session idle for longer than the idle TTL
// and returns how many were dropped.
func (m *Manager) Sweep() int {
	cutoff := m.now().Add(-m.opts.IdleTTL)

	m.mu.Lock()
	var idle []*Session
	for id, s := range m.sessions {
		if s.lastSeen.Before(cutoff) {
			idle = append(idle, s)
			delete(m.sessions, id)
		}
	}
	active := len(m.sessions)
	m.mu.Unlock()

	for _, s := range idle {
		s.Logs.Clear()
		s.Friends.Clear()
		m.logger.Infof("session: expired idle session for %s", s.Identity.ID)
	}
	if m.opts.OnSweep != nil {
		m.opts.OnSweep(active)
	}
	return len(idle)
}

// Run sweeps on every tick until ctx is done.
func (m *Manager) Run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep()
		}
	}
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ProfileFromIdentity derives the profile written on sign-in.
func ProfileFromIdentity(id internal.Identity) internal.Profile {
	name := ""
	for _, key := range []string{"full_name", "name", "preferred_username"} {
		if name = metaString(id.Metadata, key); name != "" {
			break
		}
	}
	if name == "" {
		name = emailLocalPart(id.Email)
	}
	if name == "" {
		name = "Friend"
	}

	p := internal.Profile{ID: id.ID, FullName: internal.StringPtr(name)}
	if id.Email != "" {
		p.Email = internal.StringPtr(id.Email)
	}
	for _, key := range []string{"avatar_url", "picture"} {
		if v := metaString(id.Metadata, key); v != "" {
			p.AvatarURL = internal.StringPtr(v)
			break
		}
	}
	return p
}

func metaString(meta map[string]any, key string) string {
	v, ok := meta[key].(string)
	if !ok {
		return ""
	}
	return strings.TrimSpace(v)
}

func emailLocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return strings.TrimSpace(local)
}

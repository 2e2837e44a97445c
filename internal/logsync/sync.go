// Package logsync keeps one user's log entries in memory in step with the
// log store. Deletes and restores are applied locally first and rolled back
// when the store refuses them.
package logsync

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/storage"
)

var (
	ErrInvalidType = errors.New("type must be between 1 and 7")
	ErrNotFound    = errors.New("log entry not found")
	ErrUndoExpired = errors.New("nothing to undo")
	ErrTimeout     = errors.New("network timeout, please try again")
)

const maxHistory = 32

// Observer receives one call per settled mutation.
type Observer interface {
	LogMutation(op string, outcome string)
}

type Options struct {
	Timeout    time.Duration
	UndoWindow time.Duration
	Now        func() time.Time
	Logger     internal.Logger
	Observer   Observer
}

type State struct {
	Logs    []internal.LogEntry `json:"logs"`
	Loading bool                `json:"loading"`
	Saving  bool                `json:"saving"`
	Error   string              `json:"error,omitempty"`
}

type deletion struct {
	log *internal.LogEntry
	at  time.Time
}

type Sync struct {
	repo    storage.LogRepository
	userID  string
	timeout time.Duration
	undo    time.Duration
	now     func() time.Time
	logger  internal.Logger
	obs     Observer
	ids     *keyLock

	mu          sync.Mutex
	logs        []*internal.LogEntry // newest first
	loading     bool
	saving      bool
	err         string
	loadFailed  bool
	lastDeleted *deletion
	history     []*Operation
}

func New(repo storage.LogRepository, userID string, opts Options) *Sync {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.UndoWindow <= 0 {
		opts.UndoWindow = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = internal.NopLogger()
	}
	return &Sync{
		repo:    repo,
		userID:  userID,
		timeout: opts.Timeout,
		undo:    opts.UndoWindow,
		now:     opts.Now,
		logger:  opts.Logger,
		obs:     opts.Observer,
		ids:     newKeyLock(),
	}
}

func (s *Sync) UserID() string { return s.userID }

// Snapshot copies the current state.
func (s *Sync) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Logs:    s.copyLogsLocked(),
		Loading: s.loading,
		Saving:  s.saving,
		Error:   s.err,
	}
}

func (s *Sync) Logs() []internal.LogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyLogsLocked()
}

func (s *Sync) Err() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Stale reports whether the last Load failed, leaving the collection behind
// the store.
func (s *Sync) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadFailed
}

// Operations returns the most recent optimistic operations, oldest first.
func (s *Sync) Operations() []Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Operation, len(s.history))
	for i, op := range s.history {
		out[i] = *op
	}
	return out
}

// Clear drops all state. Used on sign-out.
func (s *Sync) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logs = nil
	s.loading = false
	s.saving = false
	s.err = ""
	s.loadFailed = false
	s.lastDeleted = nil
	s.history = nil
}

func (s *Sync) copyLogsLocked() []internal.LogEntry {
	out := make([]internal.LogEntry, len(s.logs))
	for i, l := range s.logs {
		out[i] = *l
	}
	return out
}

// Load replaces the collection with the store's. A failed load keeps the
// previous collection.
func (s *Sync) Load(ctx context.Context) error {
	s.mu.Lock()
	s.loading = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	fetched, err := s.repo.ListLogs(ctx, s.userID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = false
	if err != nil {
		s.loadFailed = true
		err = s.failLocked("load", err)
		return err
	}
	logs := make([]*internal.LogEntry, len(fetched))
	for i := range fetched {
		l := fetched[i]
		logs[i] = &l
	}
	s.logs = logs
	s.loadFailed = false
	s.err = ""
	return nil
}

// AddLog creates an entry stamped now and prepends it.
func (s *Sync) AddLog(ctx context.Context, typ int) (*internal.LogEntry, error) {
	if !internal.ValidStoolType(typ) {
		s.mu.Lock()
		s.err = ErrInvalidType.Error()
		s.mu.Unlock()
		return nil, ErrInvalidType
	}

	s.mu.Lock()
	s.saving = true
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	created, err := s.repo.CreateLog(ctx, s.userID, typ, "", s.now())

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saving = false
	if err != nil {
		err = s.failLocked("add", err)
		s.observe("add", "failed")
		return nil, err
	}
	l := *created
	s.logs = append([]*internal.LogEntry{&l}, s.logs...)
	s.err = ""
	s.observe("add", "committed")
	out := l
	return &out, nil
}

// DeleteLog removes the entry locally, then from the store. When the store
// refuses, the same record is put back. A successful delete becomes the
// undo candidate and replaces any earlier one.
func (s *Sync) DeleteLog(ctx context.Context, id string) error {
	release := s.ids.Lock(id)
	defer release()

	s.mu.Lock()
	idx := s.indexLocked(id)
	if idx < 0 {
		s.mu.Unlock()
		return ErrNotFound
	}
	removed := s.logs[idx]
	s.logs = append(s.logs[:idx:idx], s.logs[idx+1:]...)
	op := s.beginLocked(OpDelete, id)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	err := s.repo.DeleteLog(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		// Already gone from the store; the local removal matches it.
		err = nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.insertLocked(removed)
		_ = op.rollBack(err, s.now())
		err = s.failLocked("delete", err)
		s.observe("delete", "rolled_back")
		return err
	}
	_ = op.commit(s.now())
	s.lastDeleted = &deletion{log: removed, at: s.now()}
	s.err = ""
	s.observe("delete", "committed")
	return nil
}

// RestoreLog puts a deleted entry back. The store is first asked to recreate
// it under its original id; if that is refused a fresh entry with the same
// fields is created and replaces the placeholder.
func (s *Sync) RestoreLog(ctx context.Context, log internal.LogEntry) (*internal.LogEntry, error) {
	release := s.ids.Lock(log.ID)
	defer release()
	return s.restore(ctx, log)
}

// Undo restores the most recent deletion while it is still within the undo
// window.
func (s *Sync) Undo(ctx context.Context, id string) (*internal.LogEntry, error) {
	release := s.ids.Lock(id)
	defer release()

	s.mu.Lock()
	d := s.lastDeleted
	if d == nil || d.log.ID != id || s.now().Sub(d.at) > s.undo {
		s.mu.Unlock()
		return nil, ErrUndoExpired
	}
	log := *d.log
	s.mu.Unlock()

	return s.restore(ctx, log)
}

func (s *Sync) restore(ctx context.Context, log internal.LogEntry) (*internal.LogEntry, error) {
	log.UserID = s.userID

	s.mu.Lock()
	if idx := s.indexLocked(log.ID); idx >= 0 {
		out := *s.logs[idx]
		s.mu.Unlock()
		return &out, nil
	}
	placeholder := &log
	s.insertLocked(placeholder)
	op := s.beginLocked(OpRestore, log.ID)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	restored, err := s.repo.RecreateLog(ctx, log)
	if err != nil {
		s.logger.Warnf("logsync: recreate of %s refused, creating a new entry: %v", log.ID, err)
		restored, err = s.repo.CreateLog(ctx, log.UserID, log.Type, internal.StringValue(log.Notes), log.OccurredAt)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.removePtrLocked(placeholder)
		_ = op.rollBack(err, s.now())
		err = s.failLocked("restore", err)
		s.observe("restore", "rolled_back")
		return nil, err
	}
	if restored.ID != placeholder.ID {
		authoritative := *restored
		s.swapPtrLocked(placeholder, &authoritative)
	}
	_ = op.commit(s.now())
	if s.lastDeleted != nil && s.lastDeleted.log.ID == log.ID {
		s.lastDeleted = nil
	}
	s.err = ""
	s.observe("restore", "committed")
	out := *restored
	return &out, nil
}

func (s *Sync) beginLocked(kind OpKind, id string) *Operation {
	op := newOperation(kind, id, s.now())
	s.history = append(s.history, op)
	if len(s.history) > maxHistory {
		s.history = s.history[len(s.history)-maxHistory:]
	}
	return op
}

func (s *Sync) failLocked(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		err = ErrTimeout
	}
	s.logger.Errorf("logsync: %s failed for user %s: %v", op, s.userID, err)
	s.err = err.Error()
	return err
}

func (s *Sync) observe(op, outcome string) {
	if s.obs != nil {
		s.obs.LogMutation(op, outcome)
	}
}

func (s *Sync) indexLocked(id string) int {
	for i, l := range s.logs {
		if l.ID == id {
			return i
		}
	}
	return -1
}

// insertLocked places l at its newest-first position.
func (s *Sync) insertLocked(l *internal.LogEntry) {
	i := 0
	for i < len(s.logs) && !s.logs[i].OccurredAt.Before(l.OccurredAt) {
		i++
	}
	s.logs = append(s.logs, nil)
	copy(s.logs[i+1:], s.logs[i:])
	s.logs[i] = l
}

func (s *Sync) removePtrLocked(p *internal.LogEntry) {
	for i, l := range s.logs {
		if l == p {
			s.logs = append(s.logs[:i:i], s.logs[i+1:]...)
			return
		}
	}
}

func (s *Sync) swapPtrLocked(old, replacement *internal.LogEntry) {
	for i, l := range s.logs {
		if l == old {
			s.logs[i] = replacement
			return
		}
	}
}

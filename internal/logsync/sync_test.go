package logsync

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ivanreeve/poop-tracker/internal"
	"github.com/ivanreeve/poop-tracker/internal/storage"
)

type fakeLogs struct {
	mu          sync.Mutex
	logs        map[string]internal.LogEntry
	seq         int
	listErr     error
	createErr   error
	recreateErr error
	deleteErr   error
	deleteHook  func(ctx context.Context) error
	creates     int
	recreates   int
}

func newFakeLogs(entries ...internal.LogEntry) *fakeLogs {
	f := &fakeLogs{logs: map[string]internal.LogEntry{}}
	for _, e := range entries {
		f.logs[e.ID] = e
	}
	return f
}

func (f *fakeLogs) ListLogs(_ context.Context, userID string) ([]internal.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []internal.LogEntry
	for _, l := range f.logs {
		if l.UserID == userID {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.After(out[j].OccurredAt) })
	return out, nil
}

func (f *fakeLogs) ListLogsForUsers(ctx context.Context, userIDs []string) ([]internal.LogEntry, error) {
	var out []internal.LogEntry
	for _, id := range userIDs {
		logs, err := f.ListLogs(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, logs...)
	}
	return out, nil
}

func (f *fakeLogs) CreateLog(_ context.Context, userID string, typ int, notes string, occurredAt time.Time) (*internal.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.seq++
	l := internal.LogEntry{ID: fmt.Sprintf("new-%d", f.seq), UserID: userID, Type: typ, OccurredAt: occurredAt}
	if notes != "" {
		l.Notes = internal.StringPtr(notes)
	}
	f.logs[l.ID] = l
	return &l, nil
}

func (f *fakeLogs) RecreateLog(_ context.Context, log internal.LogEntry) (*internal.LogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recreates++
	if f.recreateErr != nil {
		return nil, f.recreateErr
	}
	if _, ok := f.logs[log.ID]; ok {
		return nil, storage.ErrConflict
	}
	f.logs[log.ID] = log
	return &log, nil
}

func (f *fakeLogs) DeleteLog(ctx context.Context, id string) error {
	if f.deleteHook != nil {
		if err := f.deleteHook(ctx); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if _, ok := f.logs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(f.logs, id)
	return nil
}

type countingObserver struct {
	mu    sync.Mutex
	calls []string
}

func (o *countingObserver) LogMutation(op, outcome string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls = append(o.calls, op+":"+outcome)
}

var base = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) Now() time.Time          { return c.t }
func (c *clock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func seed() []internal.LogEntry {
	return []internal.LogEntry{
		{ID: "a", UserID: "u1", Type: 4, OccurredAt: base.Add(-1 * time.Hour)},
		{ID: "b", UserID: "u1", Type: 3, OccurredAt: base.Add(-2 * time.Hour)},
		{ID: "c", UserID: "u1", Type: 5, OccurredAt: base.Add(-3 * time.Hour)},
		{ID: "z", UserID: "u2", Type: 1, OccurredAt: base},
	}
}

func newLoadedSync(t *testing.T, repo *fakeLogs) (*Sync, *clock, *countingObserver) {
	t.Helper()
	c := &clock{t: base}
	obs := &countingObserver{}
	s := New(repo, "u1", Options{Now: c.Now, Observer: obs, Timeout: time.Second, UndoWindow: 5 * time.Second})
	require.NoError(t, s.Load(context.Background()))
	return s, c, obs
}

func ids(logs []internal.LogEntry) []string {
	out := make([]string, len(logs))
	for i, l := range logs {
		out[i] = l.ID
	}
	return out
}

func TestLoadScopesToUser(t *testing.T) {
	s, _, _ := newLoadedSync(t, newFakeLogs(seed()...))
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Logs()))
	st := s.Snapshot()
	assert.False(t, st.Loading)
	assert.Empty(t, st.Error)
}

func TestLoadFailureKeepsPreviousLogs(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	repo.listErr = errors.New("connection refused")

	err := s.Load(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Logs()))
	assert.Equal(t, "connection refused", s.Err())
}

func TestStaleUntilLoadSucceeds(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	assert.False(t, s.Stale())

	repo.deleteErr = errors.New("delete refused")
	require.Error(t, s.DeleteLog(context.Background(), "a"))
	assert.False(t, s.Stale())

	repo.listErr = errors.New("connection refused")
	require.Error(t, s.Load(context.Background()))
	assert.True(t, s.Stale())

	repo.listErr = nil
	require.NoError(t, s.Load(context.Background()))
	assert.False(t, s.Stale())
	assert.Empty(t, s.Err())
}

func TestAddLog(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, c, obs := newLoadedSync(t, repo)
	c.Advance(time.Minute)

	l, err := s.AddLog(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, "new-1", l.ID)
	assert.Equal(t, base.Add(time.Minute), l.OccurredAt)
	assert.Nil(t, l.Notes)
	assert.Equal(t, []string{"new-1", "a", "b", "c"}, ids(s.Logs()))
	assert.Equal(t, []string{"add:committed"}, obs.calls)
}

func TestAddLogRejectsInvalidType(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)

	for _, typ := range []int{0, 8, -1} {
		_, err := s.AddLog(context.Background(), typ)
		assert.ErrorIs(t, err, ErrInvalidType)
	}
	assert.Equal(t, 0, repo.creates)
	assert.Equal(t, ErrInvalidType.Error(), s.Err())
}

func TestAddLogFailureLeavesCollection(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, obs := newLoadedSync(t, repo)
	repo.createErr = errors.New("insert failed")

	_, err := s.AddLog(context.Background(), 2)
	require.Error(t, err)
	assert.Len(t, s.Logs(), 3)
	assert.False(t, s.Snapshot().Saving)
	assert.Equal(t, []string{"add:failed"}, obs.calls)
}

func TestDeleteCommits(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, obs := newLoadedSync(t, repo)

	require.NoError(t, s.DeleteLog(context.Background(), "b"))
	assert.Equal(t, []string{"a", "c"}, ids(s.Logs()))
	_, stillThere := repo.logs["b"]
	assert.False(t, stillThere)

	ops := s.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, OpDelete, ops[0].Kind)
	assert.Equal(t, Committed, ops[0].State)
	assert.Equal(t, []string{"delete:committed"}, obs.calls)
}

func TestDeleteUnknownIDIsNotSentToStore(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)

	assert.ErrorIs(t, s.DeleteLog(context.Background(), "z"), ErrNotFound)
	_, ok := repo.logs["z"]
	assert.True(t, ok)
	assert.Empty(t, s.Operations())
}

func TestDeleteRollbackRestoresSameRecordAndPosition(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, obs := newLoadedSync(t, repo)
	before := s.logs[1]
	repo.deleteErr = errors.New("permission denied")

	err := s.DeleteLog(context.Background(), "b")
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Logs()))
	assert.Same(t, before, s.logs[1])
	assert.Equal(t, "permission denied", s.Err())

	ops := s.Operations()
	require.Len(t, ops, 1)
	assert.Equal(t, RolledBack, ops[0].State)
	assert.Equal(t, "permission denied", ops[0].Err)
	assert.Equal(t, []string{"delete:rolled_back"}, obs.calls)
}

func TestDeleteAlreadyGoneInStoreCommits(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	delete(repo.logs, "a")

	require.NoError(t, s.DeleteLog(context.Background(), "a"))
	assert.Equal(t, []string{"b", "c"}, ids(s.Logs()))
}

func TestDeleteTimeout(t *testing.T) {
	repo := newFakeLogs(seed()...)
	c := &clock{t: base}
	s := New(repo, "u1", Options{Now: c.Now, Timeout: 10 * time.Millisecond})
	require.NoError(t, s.Load(context.Background()))
	repo.deleteHook = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	err := s.DeleteLog(context.Background(), "a")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Logs()))
	assert.Equal(t, ErrTimeout.Error(), s.Err())
}

func TestRestoreKeepsOriginalID(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, obs := newLoadedSync(t, repo)
	deleted := s.Logs()[1]
	require.NoError(t, s.DeleteLog(context.Background(), deleted.ID))

	restored, err := s.RestoreLog(context.Background(), deleted)
	require.NoError(t, err)
	assert.Equal(t, "b", restored.ID)
	assert.Equal(t, []string{"a", "b", "c"}, ids(s.Logs()))
	assert.Equal(t, 0, repo.creates)
	assert.Equal(t, []string{"delete:committed", "restore:committed"}, obs.calls)
}

func TestRestoreFallsBackToCreate(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	deleted := s.Logs()[0]
	deleted.Notes = internal.StringPtr("after lunch")
	require.NoError(t, s.DeleteLog(context.Background(), deleted.ID))
	repo.recreateErr = errors.New("explicit ids are not allowed")

	restored, err := s.RestoreLog(context.Background(), deleted)
	require.NoError(t, err)
	assert.Equal(t, "new-1", restored.ID)
	assert.Equal(t, deleted.Type, restored.Type)
	assert.Equal(t, deleted.OccurredAt, restored.OccurredAt)
	assert.Equal(t, "after lunch", internal.StringValue(restored.Notes))
	assert.Equal(t, []string{"new-1", "b", "c"}, ids(s.Logs()))
}

func TestRestoreRollback(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, obs := newLoadedSync(t, repo)
	deleted := s.Logs()[2]
	require.NoError(t, s.DeleteLog(context.Background(), deleted.ID))
	repo.recreateErr = errors.New("down")
	repo.createErr = errors.New("still down")

	_, err := s.RestoreLog(context.Background(), deleted)
	require.Error(t, err)
	assert.Equal(t, []string{"a", "b"}, ids(s.Logs()))
	assert.Equal(t, "still down", s.Err())

	ops := s.Operations()
	require.Len(t, ops, 2)
	assert.Equal(t, OpRestore, ops[1].Kind)
	assert.Equal(t, RolledBack, ops[1].State)
	assert.Equal(t, []string{"delete:committed", "restore:rolled_back"}, obs.calls)
}

func TestRestorePresentIDIsNoop(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)

	got, err := s.RestoreLog(context.Background(), s.Logs()[0])
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)
	assert.Len(t, s.Logs(), 3)
	assert.Equal(t, 0, repo.recreates)
}

func TestUndoWindow(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, c, _ := newLoadedSync(t, repo)
	require.NoError(t, s.DeleteLog(context.Background(), "a"))

	c.Advance(4 * time.Second)
	got, err := s.Undo(context.Background(), "a")
	require.NoError(t, err)
	assert.Equal(t, "a", got.ID)

	_, err = s.Undo(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUndoExpired)

	require.NoError(t, s.DeleteLog(context.Background(), "b"))
	c.Advance(6 * time.Second)
	_, err = s.Undo(context.Background(), "b")
	assert.ErrorIs(t, err, ErrUndoExpired)
}

func TestUndoOnlyMostRecentDeletion(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	require.NoError(t, s.DeleteLog(context.Background(), "a"))
	require.NoError(t, s.DeleteLog(context.Background(), "b"))

	_, err := s.Undo(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUndoExpired)
	_, err = s.Undo(context.Background(), "b")
	assert.NoError(t, err)
}

func TestSuccessClearsError(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	repo.deleteErr = errors.New("boom")
	require.Error(t, s.DeleteLog(context.Background(), "a"))
	require.NotEmpty(t, s.Err())

	repo.deleteErr = nil
	require.NoError(t, s.DeleteLog(context.Background(), "a"))
	assert.Empty(t, s.Err())
}

func TestConcurrentDeletesOfSameID(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.DeleteLog(context.Background(), "a")
		}(i)
	}
	wg.Wait()

	var ok, missing int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, ErrNotFound):
			missing++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, missing)
	assert.Equal(t, []string{"b", "c"}, ids(s.Logs()))
}

func TestClear(t *testing.T) {
	repo := newFakeLogs(seed()...)
	s, _, _ := newLoadedSync(t, repo)
	require.NoError(t, s.DeleteLog(context.Background(), "a"))

	s.Clear()
	assert.Empty(t, s.Logs())
	assert.Empty(t, s.Operations())
	_, err := s.Undo(context.Background(), "a")
	assert.ErrorIs(t, err, ErrUndoExpired)
}

func TestOperationSettlesOnce(t *testing.T) {
	op := newOperation(OpDelete, "x", base)
	require.NoError(t, op.commit(base))
	assert.Error(t, op.rollBack(errors.New("late"), base))
	assert.Equal(t, Committed, op.State)
	assert.Equal(t, "committed", op.State.String())
}

func TestKeyLockReleasesEntries(t *testing.T) {
	k := newKeyLock()
	unlock := k.Lock("a")
	assert.Len(t, k.locks, 1)
	unlock()
	assert.Empty(t, k.locks)
}

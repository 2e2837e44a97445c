package storage

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ivanreeve/poop-tracker/internal"
)

// FileStorage keeps everything in memory and flushes each collection to its
// own JSON file shortly after the last write.
type FileStorage struct {
	logs        map[string]*internal.LogEntry   // id -> entry
	userIndex   map[string][]*internal.LogEntry // userID -> entries (sorted descending)
	friendships map[string]*internal.Friendship // id -> record
	profiles    map[string]*internal.Profile    // id -> profile
	mu          sync.RWMutex

	logSaver        *debouncedSaver
	friendshipSaver *debouncedSaver
	profileSaver    *debouncedSaver
	shutdownChan    chan struct{}
	closeOnce       sync.Once
	logger          internal.Logger
	now             func() time.Time
}

type debouncedSaver struct {
	name   string
	delay  time.Duration
	signal chan struct{}
	save   func() error
}

func (d *debouncedSaver) notify() {
	select {
	case d.signal <- struct{}{}:
	default:
	}
}

func (d *debouncedSaver) run(shutdown <-chan struct{}, logger internal.Logger) {
	timer := time.NewTimer(d.delay)
	defer timer.Stop()

	for {
		select {
		case <-d.signal:
			timer.Reset(d.delay)
		case <-timer.C:
			if err := d.save(); err != nil {
				logger.Errorf("storage: error saving %s: %v", d.name, err)
			}
		case <-shutdown:
			return
		}
	}
}

func NewFileStorage(logsFile, friendshipsFile, profilesFile string, logger internal.Logger) (*FileStorage, error) {
	s := &FileStorage{
		logs:         make(map[string]*internal.LogEntry),
		userIndex:    make(map[string][]*internal.LogEntry),
		friendships:  make(map[string]*internal.Friendship),
		profiles:     make(map[string]*internal.Profile),
		shutdownChan: make(chan struct{}),
		logger:       logger,
		now:          time.Now,
	}
	s.logSaver = s.newSaver("logs", func() error { return atomicWriteFileJSON(logsFile, s.snapshotLogs()) })
	s.friendshipSaver = s.newSaver("friendships", func() error { return atomicWriteFileJSON(friendshipsFile, s.snapshotFriendships()) })
	s.profileSaver = s.newSaver("profiles", func() error { return atomicWriteFileJSON(profilesFile, s.snapshotProfiles()) })

	var logs []*internal.LogEntry
	if err := readFileJSON(logsFile, &logs); err != nil {
		logger.Errorf("storage: failed to load logs: %v", err)
		return nil, err
	}
	var friendships []*internal.Friendship
	if err := readFileJSON(friendshipsFile, &friendships); err != nil {
		logger.Errorf("storage: failed to load friendships: %v", err)
		return nil, err
	}
	var profiles []*internal.Profile
	if err := readFileJSON(profilesFile, &profiles); err != nil {
		logger.Errorf("storage: failed to load profiles: %v", err)
		return nil, err
	}

	for _, l := range logs {
		s.logs[l.ID] = l
		s.userIndex[l.UserID] = append(s.userIndex[l.UserID], l)
	}
	for userID := range s.userIndex {
		sortDescending(s.userIndex[userID])
	}
	for _, f := range friendships {
		s.friendships[f.ID] = f
	}
	for _, p := range profiles {
		s.profiles[p.ID] = p
	}

	go s.logSaver.run(s.shutdownChan, logger)
	go s.friendshipSaver.run(s.shutdownChan, logger)
	go s.profileSaver.run(s.shutdownChan, logger)

	return s, nil
}

func (s *FileStorage) newSaver(name string, save func() error) *debouncedSaver {
	return &debouncedSaver{
		name:   name,
		delay:  500 * time.Millisecond,
		signal: make(chan struct{}, 1),
		save:   save,
	}
}

func readFileJSON(path string, dest interface{}) error {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(dest); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return err
	}
	return nil
}

func atomicWriteFileJSON(filePath string, data interface{}) error {
	tempFile := filePath + ".tmp"
	f, err := os.Create(tempFile)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tempFile)
		return err
	}

	if err := f.Close(); err != nil {
		os.Remove(tempFile)
		return err
	}

	return os.Rename(tempFile, filePath)
}

func sortDescending(logs []*internal.LogEntry) {
	sort.SliceStable(logs, func(i, j int) bool {
		return logs[i].OccurredAt.After(logs[j].OccurredAt)
	})
}

func (s *FileStorage) snapshotLogs() []*internal.LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*internal.LogEntry, 0, len(s.logs))
	for _, l := range s.logs {
		out = append(out, l)
	}
	return out
}

func (s *FileStorage) snapshotFriendships() []*internal.Friendship {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*internal.Friendship, 0, len(s.friendships))
	for _, f := range s.friendships {
		out = append(out, f)
	}
	return out
}

func (s *FileStorage) snapshotProfiles() []*internal.Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*internal.Profile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	return out
}

// Close stops the save workers and flushes every collection synchronously.
func (s *FileStorage) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.shutdownChan)
		for _, saver := range []*debouncedSaver{s.logSaver, s.friendshipSaver, s.profileSaver} {
			if saveErr := saver.save(); saveErr != nil && err == nil {
				err = saveErr
			}
		}
	})
	return err
}

// --- LogRepository ---

// insertLocked keeps the user index sorted newest first. Caller holds mu.
func (s *FileStorage) insertLocked(log *internal.LogEntry) {
	s.logs[log.ID] = log
	logs := s.userIndex[log.UserID]
	inserted := false
	for i, existing := range logs {
		if existing.OccurredAt.Before(log.OccurredAt) {
			logs = append(logs[:i], append([]*internal.LogEntry{log}, logs[i:]...)...)
			inserted = true
			break
		}
	}
	if !inserted {
		logs = append(logs, log)
	}
	s.userIndex[log.UserID] = logs
	s.logSaver.notify()
}

func (s *FileStorage) CreateLog(ctx context.Context, userID string, typ int, notes string, occurredAt time.Time) (*internal.LogEntry, error) {
	log := &internal.LogEntry{
		ID:         uuid.NewString(),
		UserID:     userID,
		Type:       typ,
		Notes:      internal.StringPtr(notes),
		OccurredAt: occurredAt,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(log)
	out := *log
	return &out, nil
}

func (s *FileStorage) RecreateLog(ctx context.Context, log internal.LogEntry) (*internal.LogEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.logs[log.ID]; exists {
		return nil, ErrConflict
	}
	stored := log
	s.insertLocked(&stored)
	out := stored
	return &out, nil
}

func (s *FileStorage) DeleteLog(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log, ok := s.logs[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.logs, id)
	logs := s.userIndex[log.UserID]
	for i, l := range logs {
		if l.ID == id {
			s.userIndex[log.UserID] = append(logs[:i], logs[i+1:]...)
			break
		}
	}
	s.logSaver.notify()
	return nil
}

func (s *FileStorage) ListLogs(ctx context.Context, userID string) ([]internal.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	logsPtr := s.userIndex[userID]
	logs := make([]internal.LogEntry, len(logsPtr))
	for i, l := range logsPtr {
		logs[i] = *l
	}
	return logs, nil
}

func (s *FileStorage) ListLogsForUsers(ctx context.Context, userIDs []string) ([]internal.LogEntry, error) {
	s.mu.RLock()
	var ptrs []*internal.LogEntry
	for _, id := range userIDs {
		ptrs = append(ptrs, s.userIndex[id]...)
	}
	s.mu.RUnlock()

	sortDescending(ptrs)
	logs := make([]internal.LogEntry, len(ptrs))
	for i, l := range ptrs {
		logs[i] = *l
	}
	return logs, nil
}

// --- FriendshipRepository ---

func (s *FileStorage) ListFriendships(ctx context.Context, userID string) ([]internal.Friendship, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []internal.Friendship{}
	for _, f := range s.friendships {
		if f.UserID == userID || f.FriendID == userID {
			out = append(out, *f)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *FileStorage) CreateFriendship(ctx context.Context, userID, friendID string) (*internal.Friendship, error) {
	f := &internal.Friendship{
		ID:        uuid.NewString(),
		UserID:    userID,
		FriendID:  friendID,
		Status:    internal.FriendshipPending,
		CreatedAt: s.now(),
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	// One record per unordered pair, whatever its status.
	for _, existing := range s.friendships {
		if (existing.UserID == userID && existing.FriendID == friendID) ||
			(existing.UserID == friendID && existing.FriendID == userID) {
			return nil, ErrConflict
		}
	}
	s.friendships[f.ID] = f
	s.friendshipSaver.notify()
	out := *f
	return &out, nil
}

func (s *FileStorage) UpdateFriendshipStatus(ctx context.Context, id string, status internal.FriendshipStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.friendships[id]
	if !ok {
		return ErrNotFound
	}
	updated := *f
	updated.Status = status
	s.friendships[id] = &updated
	s.friendshipSaver.notify()
	return nil
}

func (s *FileStorage) DeleteFriendship(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.friendships[id]; !ok {
		return ErrNotFound
	}
	delete(s.friendships, id)
	s.friendshipSaver.notify()
	return nil
}

// --- ProfileRepository ---

func (s *FileStorage) FindProfileByEmail(ctx context.Context, email string) (*internal.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	// Lowest id wins when several profiles share an address.
	var match *internal.Profile
	for _, p := range s.profiles {
		if p.Email == nil || !strings.EqualFold(*p.Email, email) {
			continue
		}
		if match == nil || p.ID < match.ID {
			match = p
		}
	}
	if match == nil {
		return nil, nil
	}
	out := *match
	return &out, nil
}

func (s *FileStorage) ListProfiles(ctx context.Context, ids []string) ([]internal.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]internal.Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[id]; ok {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *FileStorage) UpsertProfile(ctx context.Context, p internal.Profile) (*internal.Profile, error) {
	stored := p
	s.mu.Lock()
	s.profiles[p.ID] = &stored
	s.mu.Unlock()
	s.profileSaver.notify()
	out := stored
	return &out, nil
}

// --- Compile-time assertions ---
var _ Store = (*FileStorage)(nil)

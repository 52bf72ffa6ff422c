package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

// ErrNoState signals that no usable session state exists on disk. A corrupt
// or unreadable file is reported the same way so the caller falls back to a
// fresh bootstrap instead of aborting.
var ErrNoState = errors.New("no session state")

// Store persists one State as a JSON document. A sibling <path>.lock file
// serializes access across independent process invocations; the lock is held
// only for the duration of a single read or write.
type Store struct {
	path   string
	lock   *flock.Flock
	logger *slog.Logger
}

func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:   path,
		lock:   flock.New(path + ".lock"),
		logger: logger.With("component", "session-store"),
	}
}

// Path returns the location of the backing file.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted state. Missing, unreadable, or unparseable files
// all yield ErrNoState.
func (s *Store) Load() (*State, error) {
	if err := s.lock.Lock(); err != nil {
		return nil, fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		s.logger.Warn("session state unreadable, treating as absent", "path", s.path, "error", err)
		return nil, ErrNoState
	}

	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		s.logger.Warn("session state corrupt, treating as absent", "path", s.path, "error", err)
		return nil, ErrNoState
	}

	return &state, nil
}

// Save replaces the persisted state atomically.
func (s *Store) Save(state *State) error {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session state: %w", err)
	}

	if err := s.lock.Lock(); err != nil {
		return fmt.Errorf("failed to acquire session lock: %w", err)
	}
	defer s.lock.Unlock()

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session state: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session state: %w", err)
	}

	s.logger.Info("session state saved", "path", s.path, "cookies", len(state.Cookies))
	return nil
}

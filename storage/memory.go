package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

// MemoryStore is an in-memory RequestStore for tests and development. It
// mirrors the SQLite backend's semantics, including the terminal-status
// guard on updates.
type MemoryStore struct {
	mu       sync.RWMutex
	requests map[interfaces.RequestID]interfaces.ValidatorRequest
	keys     map[interfaces.RequestID][]interfaces.GeneratedKey
	closed   bool
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		requests: make(map[interfaces.RequestID]interfaces.ValidatorRequest),
		keys:     make(map[interfaces.RequestID][]interfaces.GeneratedKey),
	}
}

// CreateRequest stores a copy of the request.
func (s *MemoryStore) CreateRequest(ctx context.Context, req *interfaces.ValidatorRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.requests[req.ID]; ok {
		return fmt.Errorf("%w: %s", interfaces.ErrRequestExists, req.ID)
	}
	s.requests[req.ID] = *req
	return nil
}

// GetRequest returns a copy of the stored request.
func (s *MemoryStore) GetRequest(ctx context.Context, id interfaces.RequestID) (*interfaces.ValidatorRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	req, ok := s.requests[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}
	return &req, nil
}

// UpdateStatus transitions a request, refusing to leave a terminal status.
func (s *MemoryStore) UpdateStatus(ctx context.Context, id interfaces.RequestID, status interfaces.RequestStatus, errorMessage string) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", interfaces.ErrInvalidArgument, status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	req, ok := s.requests[id]
	if !ok {
		return fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}
	if req.Status.Terminal() {
		return fmt.Errorf("%w: %s", interfaces.ErrAlreadyTerminal, id)
	}

	req.Status = status
	req.ErrorMessage = errorMessage
	req.UpdatedAt = time.Now().UTC()
	s.requests[id] = req
	return nil
}

// AppendKey stores a copy of the generated key.
func (s *MemoryStore) AppendKey(ctx context.Context, key *interfaces.GeneratedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := *key
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now().UTC()
	}
	s.keys[key.RequestID] = append(s.keys[key.RequestID], stored)
	return nil
}

// ListKeys returns copies of all keys for a request ordered by sequence index.
func (s *MemoryStore) ListKeys(ctx context.Context, id interfaces.RequestID) ([]interfaces.GeneratedKey, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.requests[id]; !ok {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrRequestNotFound, id)
	}

	keys := make([]interfaces.GeneratedKey, len(s.keys[id]))
	copy(keys, s.keys[id])
	sort.Slice(keys, func(i, j int) bool { return keys[i].SequenceIndex < keys[j].SequenceIndex })
	return keys, nil
}

// Ping reports whether the store is open.
func (s *MemoryStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return errors.New("memory store closed")
	}
	return nil
}

// Close marks the store closed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

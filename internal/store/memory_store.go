package store

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// MemoryStore is an in-memory implementation of Store for tests and local
// development. Values are kept as serialized JSON so reads never alias the
// caller's data.
type MemoryStore struct {
	mu     sync.RWMutex
	groups map[string]map[string][]byte
}

// NewMemoryStore creates a new in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		groups: make(map[string]map[string][]byte),
	}
}

// Get reads the value at (group, key) into dest
func (s *MemoryStore) Get(ctx context.Context, group, key string, dest any) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[group]
	if !ok {
		return ErrKeyNotFound
	}
	data, ok := g[key]
	if !ok {
		return ErrKeyNotFound
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("failed to unmarshal value at %s/%s: %w", group, key, err)
	}
	return nil
}

// Set writes the value at (group, key)
func (s *MemoryStore) Set(ctx context.Context, group, key string, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		g = make(map[string][]byte)
		s.groups[group] = g
	}
	g[key] = data
	return nil
}

// SetIfAbsent writes the value only if (group, key) does not exist
func (s *MemoryStore) SetIfAbsent(ctx context.Context, group, key string, value any) (bool, error) {
	data, err := marshalValue(value)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		g = make(map[string][]byte)
		s.groups[group] = g
	}
	if _, exists := g[key]; exists {
		return false, nil
	}
	g[key] = data
	return true, nil
}

// CompareAndSwap writes the value only if the stored bytes still equal old
func (s *MemoryStore) CompareAndSwap(ctx context.Context, group, key string, old json.RawMessage, value any) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	g, ok := s.groups[group]
	if !ok {
		return ErrCASMismatch
	}
	current, ok := g[key]
	if !ok || !bytes.Equal(current, old) {
		return ErrCASMismatch
	}
	g[key] = data
	return nil
}

// Delete removes (group, key)
func (s *MemoryStore) Delete(ctx context.Context, group, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.groups[group]; ok {
		delete(g, key)
	}
	return nil
}

// GetGroup returns the raw values of all keys in a group
func (s *MemoryStore) GetGroup(ctx context.Context, group string) ([]json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[group]
	if !ok {
		return nil, nil
	}
	out := make([]json.RawMessage, 0, len(g))
	for _, data := range g {
		copied := make([]byte, len(data))
		copy(copied, data)
		out = append(out, json.RawMessage(copied))
	}
	return out, nil
}

// Close is a no-op for the memory store
func (s *MemoryStore) Close() error {
	return nil
}

// Clear removes all groups (for testing)
func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups = make(map[string]map[string][]byte)
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)

// Package store provides the grouped key-value state store the booking flow
// persists into. Records are namespaced by group; a group can be listed as a
// whole. No transactional cross-key guarantees are made by the interface.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrKeyNotFound is returned when a key does not exist in a group
var ErrKeyNotFound = errors.New("key not found")

// ErrCASMismatch is returned by CompareAndSwap when the stored value no
// longer matches the expected one. Callers re-read and retry.
var ErrCASMismatch = errors.New("value changed concurrently")

// Store is the grouped key-value persistence interface. It is opened once
// per process and injected into every component that needs state.
type Store interface {
	// Get reads the value at (group, key) into dest. Returns ErrKeyNotFound
	// if the key is absent.
	Get(ctx context.Context, group, key string, dest any) error

	// Set writes the value at (group, key), overwriting any existing value
	Set(ctx context.Context, group, key string, value any) error

	// SetIfAbsent writes the value only if (group, key) does not exist.
	// Returns true if the write happened.
	SetIfAbsent(ctx context.Context, group, key string, value any) (bool, error)

	// CompareAndSwap writes the value only if the stored value at
	// (group, key) still equals old, as returned by a prior Get into a
	// json.RawMessage. Returns ErrCASMismatch when the value changed or
	// the key is absent. This is the only write that is safe for
	// read-modify-write cycles spanning multiple processes.
	CompareAndSwap(ctx context.Context, group, key string, old json.RawMessage, value any) error

	// Delete removes (group, key). Deleting an absent key is a no-op.
	Delete(ctx context.Context, group, key string) error

	// GetGroup returns the raw values of all keys in a group
	GetGroup(ctx context.Context, group string) ([]json.RawMessage, error)

	// Close releases the underlying connections
	Close() error
}

// DecodeGroup unmarshals every raw value returned by GetGroup into T.
// Values that fail to decode are skipped rather than failing the whole read.
func DecodeGroup[T any](raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	return out
}

func marshalValue(value any) ([]byte, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal value: %w", err)
	}
	return data, nil
}

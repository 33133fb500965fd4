// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"context"
	"sync"
	"time"
)

// RecordStore persists and retrieves topic records. The production
// implementation lives in internal/store; MemoryRecordStore backs tests.
type RecordStore interface {
	// Insert persists a record, assigning its ID and creation timestamp.
	// The returned record is the stored shape, echoed back to the writer
	// and broadcast to subscribers.
	Insert(ctx context.Context, record Record) (Record, error)

	// Recent returns up to limit of the most recently created records for
	// a topic, in ascending creation order. A topic with no records yields
	// an empty slice, not an error.
	Recent(ctx context.Context, topic string, limit int) ([]Record, error)
}

// MemoryRecordStore is an in-memory RecordStore for testing.
type MemoryRecordStore struct {
	mu     sync.RWMutex
	nextID int64
	topics map[string][]Record
}

// NewMemoryRecordStore creates a new in-memory record store.
func NewMemoryRecordStore() *MemoryRecordStore {
	return &MemoryRecordStore{
		nextID: 1,
		topics: make(map[string][]Record),
	}
}

// Insert persists a record in memory with the next sequential ID.
func (s *MemoryRecordStore) Insert(_ context.Context, record Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record.ID = s.nextID
	s.nextID++
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	s.topics[record.Topic] = append(s.topics[record.Topic], record)
	return record, nil
}

// Recent returns the last limit records for a topic in ascending ID order.
func (s *MemoryRecordStore) Recent(_ context.Context, topic string, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records := s.topics[topic]
	if len(records) == 0 || limit <= 0 {
		return nil, nil
	}

	start := len(records) - limit
	if start < 0 {
		start = 0
	}
	result := make([]Record, len(records)-start)
	copy(result, records[start:])
	return result, nil
}

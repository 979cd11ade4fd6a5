package mocks

import (
	"encoding/binary"
	"sync"

	"github.com/google/uuid"

	"github.com/mcoot/echorelay/internal/dependencies/random"
)

// MockRandom is a mock implementation of Random for testing
type MockRandom struct {
	mu sync.Mutex

	// UUIDResults is a queue of results to return from UUID
	UUIDResults []uuid.UUID
	uuidIndex   int

	// counter seeds deterministic UUIDs once the queue is exhausted
	counter uint64
}

// Ensure MockRandom implements Random
var _ random.Random = (*MockRandom)(nil)

// NewMockRandom creates a new MockRandom
func NewMockRandom() *MockRandom {
	return &MockRandom{}
}

// UUID returns the next queued result, or a deterministic sequential UUID if none remaining
func (r *MockRandom) UUID() uuid.UUID {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.uuidIndex < len(r.UUIDResults) {
		result := r.UUIDResults[r.uuidIndex]
		r.uuidIndex++
		return result
	}
	r.counter++
	var id uuid.UUID
	binary.BigEndian.PutUint64(id[8:], r.counter)
	return id
}

// QueueUUID adds values to the UUID result queue
func (r *MockRandom) QueueUUID(values ...uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UUIDResults = append(r.UUIDResults, values...)
}

// Reset clears all queued results
func (r *MockRandom) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.UUIDResults = nil
	r.uuidIndex = 0
	r.counter = 0
}

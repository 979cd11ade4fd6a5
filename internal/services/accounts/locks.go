package accounts

import (
	"sync"

	"github.com/mcoot/echorelay/internal/model"
)

// keyedMutex serializes work per identity. Entries are reference counted and
// dropped once no goroutine holds or waits on them.
type keyedMutex struct {
	mu      sync.Mutex
	entries map[model.XPlatformID]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{entries: make(map[model.XPlatformID]*keyedEntry)}
}

// Lock acquires the lock for id and returns the function that releases it
func (k *keyedMutex) Lock(id model.XPlatformID) func() {
	k.mu.Lock()
	entry, ok := k.entries[id]
	if !ok {
		entry = &keyedEntry{}
		k.entries[id] = entry
	}
	entry.refs++
	k.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()

		k.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(k.entries, id)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.entries)
}

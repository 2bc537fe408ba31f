package store

import (
	"sync"
	"sync/atomic"
	"time"
)

// subscriberBuffer is the channel buffer given to each subscriber.
const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// The current snapshot is swapped atomically, so readers never block the
// publisher. Subscribers receive snapshots via buffered channels; if a
// subscriber's buffer is full the snapshot is dropped for that subscriber.
// Every snapshot is complete, so a dropped one is superseded by the next.
type MemoryStore struct {
	publishMu   sync.Mutex
	sequence    uint64
	current     atomic.Pointer[Snapshot]
	subscribers map[chan Snapshot]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		subscribers: make(map[chan Snapshot]struct{}),
	}
}

// Publish makes snap current and notifies all subscribers.
//
// The returned snapshot carries the assigned Sequence and PublishedAt.
func (m *MemoryStore) Publish(snap Snapshot) Snapshot {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	m.sequence++
	snap.Sequence = m.sequence
	snap.PublishedAt = time.Now()
	m.current.Store(&snap)

	m.notifySubscribers(snap)
	return snap
}

// Current returns the latest published snapshot.
func (m *MemoryStore) Current() (Snapshot, bool) {
	snap := m.current.Load()
	if snap == nil {
		return Snapshot{}, false
	}
	return *snap, true
}

// Subscribe creates a new subscription and returns a channel for receiving
// snapshots.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Snapshot {
	ch := make(chan Snapshot, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Snapshot) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// SubscriberCount returns the number of active subscriptions.
func (m *MemoryStore) SubscriberCount() int {
	m.subMu.RLock()
	defer m.subMu.RUnlock()
	return len(m.subscribers)
}

func (m *MemoryStore) notifySubscribers(snap Snapshot) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- snap:
		default:
			// subscriber is slow, drop the snapshot
		}
	}
}

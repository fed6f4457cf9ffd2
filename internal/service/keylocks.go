package service

import (
	"sync"

	"github.com/brokerledger/reconciliation-backend/internal/model"
)

// keyLocks serializes lot matching per instrument key. FIFO ordering and
// current-quantity mutation are not commutative, so concurrent matchers on
// the same key must queue behind one another; different keys and different
// users proceed fully in parallel.
//
// Locks are never held across network calls; quote resolution happens in the
// snapshotter from already-committed position state.
type keyLocks struct {
	mu    sync.Mutex
	locks map[model.InstrumentKey]*sync.Mutex
}

func newKeyLocks() *keyLocks {
	return &keyLocks{locks: make(map[model.InstrumentKey]*sync.Mutex)}
}

// acquire returns the mutex for an instrument key, creating it on first use.
// Lock entries are retained for the process lifetime; the key space is
// bounded by the set of instruments a user has ever traded.
func (k *keyLocks) acquire(key model.InstrumentKey) *sync.Mutex {
	k.mu.Lock()
	defer k.mu.Unlock()

	lock, ok := k.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		k.locks[key] = lock
	}
	return lock
}

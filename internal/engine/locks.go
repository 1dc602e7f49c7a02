package engine

import "sync"

// keyedLocks serializes all mutations for one order id while leaving distinct
// orders fully parallel. Striping keeps the lock table bounded.
type keyedLocks struct {
	shards [64]sync.Mutex
}

func (k *keyedLocks) lock(orderID int64) func() {
	m := &k.shards[uint64(orderID)%uint64(len(k.shards))]
	m.Lock()
	return m.Unlock
}

package konference

import "sync"

// elfHash is the classic ELF symbol hash used to pick registry buckets.
func elfHash(s string) uint32 {
	var h uint32
	for i := 0; i < len(s); i++ {
		h = (h << 4) + uint32(s[i])
		g := h & 0xF0000000
		if g != 0 {
			h ^= g >> 24
		}
		h &^= g
	}
	return h
}

type hashEntry[T comparable] struct {
	key   string
	value T
}

type hashBucket[T comparable] struct {
	mu      sync.Mutex
	entries []hashEntry[T]
}

// hashTable is a fixed size table of independently locked buckets. Bucket
// locks are never held while taking another registry lock.
type hashTable[T comparable] struct {
	buckets []hashBucket[T]
}

func newHashTable[T comparable](size int) *hashTable[T] {
	return &hashTable[T]{buckets: make([]hashBucket[T], max(size, 1))}
}

func (t *hashTable[T]) bucket(key string) *hashBucket[T] {
	return &t.buckets[elfHash(key)%uint32(len(t.buckets))]
}

// insert adds value under key. Newer entries shadow older ones.
func (t *hashTable[T]) insert(key string, value T) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = append([]hashEntry[T]{{key: key, value: value}}, b.entries...)
}

// remove deletes the entry holding exactly value under key.
func (t *hashTable[T]) remove(key string, value T) bool {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, e := range b.entries {
		if e.key == key && e.value == value {
			b.entries = append(b.entries[:i], b.entries[i+1:]...)
			return true
		}
	}
	return false
}

// lookup returns the newest value stored under key. If fn is not nil it
// runs on the value while the bucket is still locked and can veto the hit.
func (t *hashTable[T]) lookup(key string, fn func(T) bool) (T, bool) {
	b := t.bucket(key)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, e := range b.entries {
		if e.key != key {
			continue
		}
		if fn != nil && !fn(e.value) {
			break
		}
		return e.value, true
	}
	var zero T
	return zero, false
}

// len counts entries across all buckets.
func (t *hashTable[T]) len() int {
	n := 0
	for i := range t.buckets {
		b := &t.buckets[i]
		b.mu.Lock()
		n += len(b.entries)
		b.mu.Unlock()
	}
	return n
}

// Package dedupe tracks which work items already reached the output so that
// every item is written at most once.
package dedupe

import (
	"context"
	"sync"
	"sync/atomic"
)

// Deduper records seen item indexes.
type Deduper interface {
	// SeenAndRecord atomically checks if id was seen and records it if not.
	// Returns true if id was already seen, false if it was newly recorded.
	SeenAndRecord(ctx context.Context, id int) bool

	// Unrecord removes an id, allowing it to be recorded again.
	Unrecord(ctx context.Context, id int)

	Size() int64
}

// inMemoryDeduper implements Deduper.
// For bounded mode (capacity > 0): ids in [0, capacity) live in a bitset,
// anything outside spills to the map.
// For unbounded mode (capacity <= 0): uses a map only.
type inMemoryDeduper struct {
	mu       sync.Mutex
	bits     []uint64
	seen     map[int]struct{}
	capacity int
	size     atomic.Int64
}

// NewInMemoryDeduper creates a new in-memory deduper with configuration options.
func NewInMemoryDeduper(opts ...Option) Deduper {
	d := &inMemoryDeduper{}

	// Apply all options
	for _, opt := range opts {
		opt(d)
	}

	d.seen = make(map[int]struct{})
	if d.capacity > 0 {
		d.bits = make([]uint64, (d.capacity+63)/64)
	}

	return d
}

func (d *inMemoryDeduper) inBits(id int) bool {
	return id >= 0 && id < d.capacity
}

// SeenAndRecord atomically checks if id was seen and records it if not.
func (d *inMemoryDeduper) SeenAndRecord(_ context.Context, id int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inBits(id) {
		word, mask := id/64, uint64(1)<<(uint(id)%64)
		if d.bits[word]&mask != 0 {
			return true
		}
		d.bits[word] |= mask
	} else {
		if _, exists := d.seen[id]; exists {
			return true
		}
		d.seen[id] = struct{}{}
	}

	d.size.Add(1)
	return false
}

// Unrecord removes an id from the seen set.
func (d *inMemoryDeduper) Unrecord(_ context.Context, id int) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.inBits(id) {
		word, mask := id/64, uint64(1)<<(uint(id)%64)
		if d.bits[word]&mask != 0 {
			d.bits[word] &^= mask
			d.size.Add(-1)
		}
		return
	}

	if _, exists := d.seen[id]; exists {
		delete(d.seen, id)
		d.size.Add(-1)
	}
}

// Size returns the current number of recorded ids.
func (d *inMemoryDeduper) Size() int64 {
	return d.size.Load()
}

package dedupe

// Option applies a configuration option to the InMemoryDeduper.
type Option func(*inMemoryDeduper)

// WithCapacity sizes the bitset for ids in [0, capacity).
// If capacity <= 0 every id is tracked in a map.
func WithCapacity(capacity int) Option {
	return func(d *inMemoryDeduper) {
		d.capacity = capacity
	}
}

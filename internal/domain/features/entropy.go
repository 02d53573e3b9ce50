package features

import (
	"math"
	"slices"
)

// Accumulator counts occurrences of comparable keys and reports the Shannon
// entropy (base 2) of the resulting frequency distribution.
type Accumulator[K comparable] struct {
	counts map[K]int
	total  int
}

// NewAccumulator creates an empty accumulator. sizeHint pre-sizes the key map.
func NewAccumulator[K comparable](sizeHint int) *Accumulator[K] {
	return &Accumulator[K]{counts: make(map[K]int, sizeHint)}
}

// Add records one occurrence of k.
func (a *Accumulator[K]) Add(k K) {
	a.counts[k]++
	a.total++
}

// Total returns the number of recorded occurrences.
func (a *Accumulator[K]) Total() int { return a.total }

// Distinct returns the number of distinct keys seen.
func (a *Accumulator[K]) Distinct() int { return len(a.counts) }

// Entropy returns -sum(p*log2(p)) over all keys. An empty accumulator has
// entropy 0. Counts are summed in sorted order so the result does not depend
// on map iteration order.
func (a *Accumulator[K]) Entropy() float64 {
	if a.total == 0 {
		return 0
	}

	counts := make([]int, 0, len(a.counts))
	for _, c := range a.counts {
		counts = append(counts, c)
	}
	slices.Sort(counts)

	n := float64(a.total)
	h := 0.0
	for _, c := range counts {
		p := float64(c) / n
		h -= p * math.Log2(p)
	}
	return h
}

// Package sample draws reproducible random subsets.
//
// Every randomized pipeline step gets its own stream derived from the run
// seed, so changing how many values one step consumes never shifts another
// step's draws.
package sample

import (
	"math/rand/v2"
)

// Stream identifies an independent random stream
type Stream uint64

const (
	StreamSample Stream = iota + 1
	StreamBalance
	StreamShuffle
)

func (s Stream) String() string {
	switch s {
	case StreamSample:
		return "sample"
	case StreamBalance:
		return "balance"
	case StreamShuffle:
		return "shuffle"
	default:
		return "unknown"
	}
}

// Sources derives per-stream generators from one seed
type Sources struct {
	seed uint64
}

// NewSources creates sources for seed
func NewSources(seed int64) Sources {
	return Sources{seed: uint64(seed)}
}

// Rand returns a fresh generator for stream. Two calls with the same stream
// return generators producing the same sequence.
func (s Sources) Rand(stream Stream) *rand.Rand {
	return rand.New(rand.NewPCG(s.seed, uint64(stream)))
}

// Sampler draws without replacement from a fixed pool. Successive Draw calls
// continue one partial Fisher-Yates permutation, so a later draw never
// repeats an earlier one and the whole sequence depends only on the seed.
type Sampler[T any] struct {
	pool []T
	perm []int
	next int
	rng  *rand.Rand
}

// NewSampler creates a sampler over pool. The pool slice is not modified.
func NewSampler[T any](pool []T, rng *rand.Rand) *Sampler[T] {
	perm := make([]int, len(pool))
	for i := range perm {
		perm[i] = i
	}
	return &Sampler[T]{pool: pool, perm: perm, rng: rng}
}

// Draw returns up to k items not returned before, in draw order.
// Fewer than k are returned once the pool runs out.
func (s *Sampler[T]) Draw(k int) []T {
	if k > s.Remaining() {
		k = s.Remaining()
	}
	if k <= 0 {
		return nil
	}

	out := make([]T, 0, k)
	n := len(s.perm)
	for range k {
		j := s.next + s.rng.IntN(n-s.next)
		s.perm[s.next], s.perm[j] = s.perm[j], s.perm[s.next]
		out = append(out, s.pool[s.perm[s.next]])
		s.next++
	}
	return out
}

// Remaining returns how many items have not been drawn yet
func (s *Sampler[T]) Remaining() int {
	return len(s.perm) - s.next
}

// Drawn returns how many items have been drawn so far
func (s *Sampler[T]) Drawn() int {
	return s.next
}

// Downsample returns k items chosen uniformly without replacement.
// When k covers the whole input a copy is returned in original order.
func Downsample[T any](items []T, k int, rng *rand.Rand) []T {
	if k >= len(items) {
		return append([]T(nil), items...)
	}
	return NewSampler(items, rng).Draw(k)
}

// Shuffle permutes items in place
func Shuffle[T any](items []T, rng *rand.Rand) {
	rng.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})
}

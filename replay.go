package anyddpg

import (
	"errors"
	"math/rand"
)

// ErrInsufficientData is returned when a replay memory is
// sampled before it has reached its minimum size.
var ErrInsufficientData = errors.New("replay memory below minimum size")

// A ReplayMemory is a fixed-capacity circular store of
// transitions for a single task.
//
// Once the stored count reaches the minimum size, the
// memory becomes initialized and stays initialized for
// the rest of its life.
type ReplayMemory struct {
	minSize  int
	capacity int

	entries     []Transition
	writeIdx    int
	initialized bool
}

// NewReplayMemory creates an empty replay memory.
//
// It fails if the sizes are non-positive or if minSize
// exceeds capacity, since such a memory could never
// become initialized.
func NewReplayMemory(minSize, capacity int) (*ReplayMemory, error) {
	if minSize <= 0 || capacity <= 0 {
		return nil, errors.New("create replay memory: sizes must be positive")
	}
	if minSize > capacity {
		return nil, errors.New("create replay memory: minimum size exceeds capacity")
	}
	return &ReplayMemory{
		minSize:  minSize,
		capacity: capacity,
		entries:  make([]Transition, 0, capacity),
	}, nil
}

// Add appends transitions, overwriting the oldest entries
// once the capacity is exceeded.
func (r *ReplayMemory) Add(ts []Transition) {
	for _, t := range ts {
		if len(r.entries) < r.capacity {
			r.entries = append(r.entries, t)
		} else {
			r.entries[r.writeIdx] = t
			r.writeIdx = (r.writeIdx + 1) % r.capacity
		}
	}
	if len(r.entries) >= r.minSize {
		r.initialized = true
	}
}

// Sample returns n transitions drawn uniformly with
// replacement.
//
// It fails with ErrInsufficientData if the memory is not
// initialized yet.
func (r *ReplayMemory) Sample(n int) ([]Transition, error) {
	if !r.initialized {
		return nil, ErrInsufficientData
	}
	res := make([]Transition, n)
	for i := range res {
		res[i] = r.entries[rand.Intn(len(r.entries))]
	}
	return res, nil
}

// Len returns the number of stored transitions.
func (r *ReplayMemory) Len() int {
	return len(r.entries)
}

// Initialized reports whether the memory has ever reached
// its minimum size.
func (r *ReplayMemory) Initialized() bool {
	return r.initialized
}

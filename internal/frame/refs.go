package frame

import (
	"sync"

	"github.com/deepteams/blockvid/internal/dsp"
)

// Reference is a reconstructed plane published for prediction. Its samples
// are never written again, so it may be shared by concurrent readers; the
// half-pixel grid is built on first use.
type Reference struct {
	plane *Plane

	once       sync.Once
	grid       []uint8
	gridStride int
}

// NewReference takes ownership of p.
func NewReference(p *Plane) *Reference {
	return &Reference{plane: p}
}

// Plane returns the reference samples. Callers must not modify them.
func (r *Reference) Plane() *Plane { return r.plane }

// HalfPel returns the (2w-1)*(2h-1) interpolated grid of the padded plane
// and its stride.
func (r *Reference) HalfPel() ([]uint8, int) {
	r.once.Do(func() {
		p := r.plane
		r.grid, r.gridStride = dsp.HalfPelGrid(p.Pix, p.PadWidth, p.PadHeight, p.Stride)
	})
	return r.grid, r.gridStride
}

// RefSet is the bounded history of reconstructed frames. Index 0 is the
// most recent frame.
type RefSet struct {
	capacity int
	refs     []*Reference // oldest first
}

// NewRefSet returns an empty set holding at most capacity frames.
func NewRefSet(capacity int) *RefSet {
	if capacity < 1 {
		capacity = 1
	}
	return &RefSet{capacity: capacity, refs: make([]*Reference, 0, capacity)}
}

// Len returns the number of frames in the set.
func (s *RefSet) Len() int { return len(s.refs) }

// Cap returns the maximum number of frames.
func (s *RefSet) Cap() int { return s.capacity }

// Get returns the i-th most recent reference, 0 being the newest.
func (s *RefSet) Get(i int) *Reference {
	return s.refs[len(s.refs)-1-i]
}

// Push publishes p as the newest reference, evicting the oldest frame when
// the set is full. The set takes ownership of p.
func (s *RefSet) Push(p *Plane) *Reference {
	if len(s.refs) == s.capacity {
		copy(s.refs, s.refs[1:])
		s.refs = s.refs[:len(s.refs)-1]
	}
	r := NewReference(p)
	s.refs = append(s.refs, r)
	return r
}

// Reset removes every frame.
func (s *RefSet) Reset() {
	clear(s.refs)
	s.refs = s.refs[:0]
}

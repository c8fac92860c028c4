// Package motion implements block motion estimation against the reference
// set: exhaustive full search, cross-pattern fast search, and half-pixel
// refinement over the interpolated reference grid.
//
// Vectors are expressed in half-pixel units. With fractional estimation
// disabled every component is even.
package motion

import (
	"errors"
	"fmt"

	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/frame"
)

var (
	// ErrNoFastLimit reports fast search configured without a limit.
	ErrNoFastLimit = errors.New("motion: fast search requires a displacement limit")

	// ErrOutOfBounds reports a vector pointing outside the reference.
	ErrOutOfBounds = errors.New("motion: vector out of bounds")
)

// Vector is a displacement in half-pixel units.
type Vector struct {
	Row, Col int
}

// FullPel returns the vector for a whole-pixel displacement.
func FullPel(row, col int) Vector { return Vector{2 * row, 2 * col} }

// Add returns v+w.
func (v Vector) Add(w Vector) Vector { return Vector{v.Row + w.Row, v.Col + w.Col} }

// Sub returns v-w.
func (v Vector) Sub(w Vector) Vector { return Vector{v.Row - w.Row, v.Col - w.Col} }

// IsFullPel reports whether both components are whole pixels.
func (v Vector) IsFullPel() bool { return v.Row&1 == 0 && v.Col&1 == 0 }

func (v Vector) String() string {
	return fmt.Sprintf("(%g,%g)", float64(v.Row)/2, float64(v.Col)/2)
}

// Fractional selects how fast search handles half-pixel positions.
type Fractional int

const (
	// FractionalGrid runs the cross descent in half-pixel steps on the
	// interpolated grid.
	FractionalGrid Fractional = iota
	// FractionalRefine runs the descent in whole pixels and then tries one
	// half-pixel cross step around the winner.
	FractionalRefine
)

func (f Fractional) String() string {
	switch f {
	case FractionalGrid:
		return "grid"
	case FractionalRefine:
		return "refine"
	}
	return fmt.Sprintf("Fractional(%d)", int(f))
}

// ParseFractional maps a configuration name to a Fractional mode. The empty
// string selects FractionalGrid.
func ParseFractional(s string) (Fractional, error) {
	switch s {
	case "", "grid":
		return FractionalGrid, nil
	case "refine":
		return FractionalRefine, nil
	}
	return 0, fmt.Errorf("motion: unknown fractional mode %q", s)
}

// Params configures an Estimator.
type Params struct {
	Range      int  // search radius in whole pixels
	HalfPel    bool // fractional motion estimation
	Fast       bool
	FastLimit  int // maximal Chebyshev displacement from the fast search start, whole pixels; < 0 means unset
	Fractional Fractional
}

// Block is the block being matched.
type Block struct {
	Samples  []int32 // size*size source samples
	Row, Col int     // top-left position in whole pixels
	Size     int
	Pred     Vector // predicted vector, the fast search start
}

// Result is the winning match.
type Result struct {
	MV  Vector
	Ref int // reference index, 0 = most recent
	SAD int
}

// Estimator finds the best matching reference block.
type Estimator interface {
	Search(b Block, refs *frame.RefSet) Result
}

// New returns the estimator selected by p.
func New(p Params) (Estimator, error) {
	if p.Range < 0 {
		return nil, fmt.Errorf("motion: negative search range %d", p.Range)
	}
	if p.Fast {
		if p.FastLimit < 0 {
			return nil, ErrNoFastLimit
		}
		return &FastSearch{halfPel: p.HalfPel, limit: p.FastLimit, fractional: p.Fractional}, nil
	}
	return &FullSearch{rng: p.Range, halfPel: p.HalfPel}, nil
}

// area is the set of valid absolute half-pixel positions of a block.
type area struct {
	maxRow, maxCol int
}

func areaOf(p *frame.Plane, size int) area {
	return area{maxRow: 2 * (p.PadHeight - size), maxCol: 2 * (p.PadWidth - size)}
}

func (a area) contains(r, c int) bool {
	return r >= 0 && c >= 0 && r <= a.maxRow && c <= a.maxCol
}

// sadAt returns the SAD of cur against ref at absolute half-pixel position
// (r, c).
func sadAt(cur []int32, ref *frame.Reference, r, c, size int) int {
	if r&1 == 0 && c&1 == 0 {
		p := ref.Plane()
		return dsp.SADBlock(cur, p.Pix, p.Stride, r>>1, c>>1, size, 1)
	}
	g, gs := ref.HalfPel()
	return dsp.SADBlock(cur, g, gs, r, c, size, 2)
}

// Predict writes the size*size prediction of the block at (row, col)
// displaced by mv in ref into dst.
func Predict(dst []int32, ref *frame.Reference, row, col, size int, mv Vector) error {
	p := ref.Plane()
	r, c := 2*row+mv.Row, 2*col+mv.Col
	if !areaOf(p, size).contains(r, c) {
		return fmt.Errorf("%w: %v at (%d,%d) size %d", ErrOutOfBounds, mv, row, col, size)
	}
	if mv.IsFullPel() {
		p.Load(dst, r>>1, c>>1, size)
		return nil
	}
	g, gs := ref.HalfPel()
	dsp.LoadHalfPelBlock(dst, g, gs, r, c, size)
	return nil
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package motion

import "github.com/deepteams/blockvid/internal/frame"

// FastSearch descends from the predicted vector along a cross pattern,
// moving to the best strictly improving neighbour until none improves.
type FastSearch struct {
	halfPel    bool
	limit      int
	fractional Fractional
}

// cross lists neighbour directions in evaluation order: up, down, left,
// right.
var cross = [4]Vector{{-1, 0}, {1, 0}, {0, -1}, {0, 1}}

type descent struct {
	cur     []int32
	ref     *frame.Reference
	size    int
	area    area
	startR  int
	startC  int
	reach   int // max Chebyshev distance from the start, half-pixel units; < 0 unbounded
	bestR   int
	bestC   int
	bestSAD int
}

// step tries the four neighbours at distance unit once and moves to the
// best strict improvement. It reports whether the position changed.
func (d *descent) step(unit int) bool {
	nr, nc, nsad := d.bestR, d.bestC, d.bestSAD
	for _, dir := range cross {
		r, c := d.bestR+dir.Row*unit, d.bestC+dir.Col*unit
		if !d.area.contains(r, c) {
			continue
		}
		if d.reach >= 0 && max(abs(r-d.startR), abs(c-d.startC)) > d.reach {
			continue
		}
		if sad := sadAt(d.cur, d.ref, r, c, d.size); sad < nsad {
			nr, nc, nsad = r, c, sad
		}
	}
	if nr == d.bestR && nc == d.bestC {
		return false
	}
	d.bestR, d.bestC, d.bestSAD = nr, nc, nsad
	return true
}

func clamp(v, lo, hi int) int {
	return min(max(v, lo), hi)
}

// Search implements Estimator.
func (s *FastSearch) Search(b Block, refs *frame.RefSet) Result {
	unit := 2
	if s.halfPel && s.fractional == FractionalGrid {
		unit = 1
	}
	best := Result{SAD: -1}
	for ri := 0; ri < refs.Len(); ri++ {
		ref := refs.Get(ri)
		a := areaOf(ref.Plane(), b.Size)
		r0 := clamp(2*b.Row+b.Pred.Row, 0, a.maxRow)
		c0 := clamp(2*b.Col+b.Pred.Col, 0, a.maxCol)
		if unit == 2 {
			// Whole-pixel descent starts on the whole-pixel lattice.
			r0, c0 = r0&^1, c0&^1
		}
		d := descent{
			cur: b.Samples, ref: ref, size: b.Size, area: a,
			startR: r0, startC: c0, reach: 2 * s.limit,
			bestR: r0, bestC: c0,
			bestSAD: sadAt(b.Samples, ref, r0, c0, b.Size),
		}
		for d.step(unit) {
		}
		if s.halfPel && s.fractional == FractionalRefine {
			d.reach = -1
			d.step(1)
		}
		if best.SAD < 0 || d.bestSAD < best.SAD {
			best = Result{
				MV:  Vector{d.bestR - 2*b.Row, d.bestC - 2*b.Col},
				Ref: ri,
				SAD: d.bestSAD,
			}
		}
	}
	return best
}

package motion

import "github.com/deepteams/blockvid/internal/frame"

// FullSearch evaluates every displacement within the search range of every
// reference.
type FullSearch struct {
	rng     int
	halfPel bool
}

// better orders candidates by SAD, then distance from the zero vector,
// then row displacement, then column displacement. Complete ties keep the
// candidate found first.
func better(sad int, mv Vector, best Result) bool {
	if sad != best.SAD {
		return sad < best.SAD
	}
	d, bd := abs(mv.Row)+abs(mv.Col), abs(best.MV.Row)+abs(best.MV.Col)
	if d != bd {
		return d < bd
	}
	if mv.Row != best.MV.Row {
		return mv.Row < best.MV.Row
	}
	return mv.Col < best.MV.Col
}

// Search implements Estimator.
func (s *FullSearch) Search(b Block, refs *frame.RefSet) Result {
	step := 2
	if s.halfPel {
		step = 1
	}
	reach := 2 * s.rng
	best := Result{SAD: -1}
	for ri := 0; ri < refs.Len(); ri++ {
		ref := refs.Get(ri)
		a := areaOf(ref.Plane(), b.Size)
		for dr := -reach; dr <= reach; dr += step {
			r := 2*b.Row + dr
			if r < 0 || r > a.maxRow {
				continue
			}
			for dc := -reach; dc <= reach; dc += step {
				c := 2*b.Col + dc
				if c < 0 || c > a.maxCol {
					continue
				}
				mv := Vector{dr, dc}
				sad := sadAt(b.Samples, ref, r, c, b.Size)
				if best.SAD < 0 || better(sad, mv, best) {
					best = Result{MV: mv, Ref: ri, SAD: sad}
				}
			}
		}
	}
	return best
}

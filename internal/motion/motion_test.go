package motion

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/blockvid/internal/frame"
)

func planeOf(w, h, bs int, f func(r, c int) uint8) *frame.Plane {
	p := frame.NewPlane(w, h, bs)
	for r := 0; r < p.PadHeight; r++ {
		for c := 0; c < p.PadWidth; c++ {
			p.Pix[r*p.Stride+c] = f(r, c)
		}
	}
	return p
}

func refsOf(planes ...*frame.Plane) *frame.RefSet {
	s := frame.NewRefSet(len(planes))
	for _, p := range planes {
		s.Push(p)
	}
	return s
}

func mustNew(t *testing.T, p Params) Estimator {
	t.Helper()
	e, err := New(p)
	require.NoError(t, err)
	return e
}

func TestFullSearch_TieBreak(t *testing.T) {
	match := func(cells ...[2]int) *frame.Plane {
		return planeOf(6, 6, 1, func(r, c int) uint8 {
			for _, m := range cells {
				if m[0] == r && m[1] == c {
					return 50
				}
			}
			return 200
		})
	}
	tests := []struct {
		name string
		ref  *frame.Plane
		want Vector
	}{
		{"flat", planeOf(6, 6, 1, func(int, int) uint8 { return 50 }), Vector{}},
		{"smaller row first", match([2]int{3, 2}, [2]int{1, 2}, [2]int{2, 1}, [2]int{2, 3}), FullPel(-1, 0)},
		{"smaller col", match([2]int{2, 3}, [2]int{2, 1}), FullPel(0, -1)},
		{"closer wins", match([2]int{0, 0}, [2]int{3, 3}), FullPel(1, 1)},
	}
	e := mustNew(t, Params{Range: 2})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.Search(Block{Samples: []int32{50}, Row: 2, Col: 2, Size: 1}, refsOf(tt.ref))
			assert.Equal(t, tt.want, res.MV)
			assert.Equal(t, 0, res.SAD)
			assert.Equal(t, 0, res.Ref)
		})
	}
}

func TestFullSearch_IdenticalFrames(t *testing.T) {
	rng := rand.New(rand.NewSource(9))
	p := planeOf(16, 16, 4, func(int, int) uint8 { return uint8(rng.Intn(256)) })
	refs := refsOf(p.Clone())
	for _, halfPel := range []bool{false, true} {
		for _, radius := range []int{0, 1, 3} {
			e := mustNew(t, Params{Range: radius, HalfPel: halfPel})
			blk := make([]int32, 16)
			for r := 0; r < 16; r += 4 {
				for c := 0; c < 16; c += 4 {
					p.Load(blk, r, c, 4)
					res := e.Search(Block{Samples: blk, Row: r, Col: c, Size: 4}, refs)
					require.Equal(t, Vector{}, res.MV, "block (%d,%d) range %d", r, c, radius)
					require.Zero(t, res.SAD)
				}
			}
		}
	}
}

func TestFullSearch_MultiRef(t *testing.T) {
	older := planeOf(6, 6, 1, func(r, c int) uint8 {
		if r == 2 && c == 2 {
			return 50
		}
		return 0
	})
	newer := planeOf(6, 6, 1, func(r, c int) uint8 {
		if r == 2 && c == 3 {
			return 50
		}
		return 0
	})
	e := mustNew(t, Params{Range: 1})
	blk := Block{Samples: []int32{50}, Row: 2, Col: 2, Size: 1}

	res := e.Search(blk, refsOf(older, newer))
	assert.Equal(t, 1, res.Ref, "zero vector in the older frame beats a displaced match")
	assert.Equal(t, Vector{}, res.MV)

	res = e.Search(blk, refsOf(older, older.Clone()))
	assert.Equal(t, 0, res.Ref, "complete tie keeps the most recent frame")
}

// bowl has a unique zero at (6, 5) rising with Manhattan distance.
func bowl() *frame.Plane {
	return planeOf(12, 12, 1, func(r, c int) uint8 {
		return uint8(20 * (abs(r-6) + abs(c-5)))
	})
}

func TestFastSearch_Descent(t *testing.T) {
	refs := refsOf(bowl())
	blk := Block{Samples: []int32{0}, Row: 4, Col: 4, Size: 1}

	res := mustNew(t, Params{Fast: true, FastLimit: 5}).Search(blk, refs)
	assert.Equal(t, FullPel(2, 1), res.MV)
	assert.Zero(t, res.SAD)

	res = mustNew(t, Params{Fast: true, FastLimit: 1}).Search(blk, refs)
	assert.Equal(t, FullPel(1, 1), res.MV)
	assert.Equal(t, 20, res.SAD)

	res = mustNew(t, Params{Fast: true, FastLimit: 0}).Search(blk, refs)
	assert.Equal(t, Vector{}, res.MV)
}

func TestFastSearch_PredictedStart(t *testing.T) {
	refs := refsOf(bowl())
	e := mustNew(t, Params{Fast: true, FastLimit: 0})

	res := e.Search(Block{Samples: []int32{0}, Row: 4, Col: 4, Size: 1, Pred: FullPel(2, 1)}, refs)
	assert.Equal(t, FullPel(2, 1), res.MV)

	res = e.Search(Block{Samples: []int32{0}, Row: 4, Col: 4, Size: 1, Pred: FullPel(100, -100)}, refs)
	assert.Equal(t, FullPel(7, -4), res.MV, "start is clamped into the plane")
}

func TestFastSearch_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	p := planeOf(32, 32, 8, func(int, int) uint8 { return uint8(rng.Intn(256)) })
	cur := make([]int32, 64)
	p.Load(cur, 9, 13, 8)
	refs := refsOf(p)
	e := mustNew(t, Params{Fast: true, FastLimit: 4, HalfPel: true})
	b := Block{Samples: cur, Row: 8, Col: 8, Size: 8, Pred: FullPel(1, 1)}
	first := e.Search(b, refs)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, e.Search(b, refs))
	}
}

// stripes alternates 0 and 10 by column so half-pixel columns hold 5.
func stripes() *frame.Plane {
	return planeOf(6, 6, 1, func(r, c int) uint8 {
		if c%2 == 1 {
			return 10
		}
		return 0
	})
}

func TestHalfPel(t *testing.T) {
	refs := refsOf(stripes())
	blk := Block{Samples: []int32{5}, Row: 2, Col: 2, Size: 1}

	full := mustNew(t, Params{Range: 1, HalfPel: true}).Search(blk, refs)
	assert.Equal(t, Vector{0, -1}, full.MV)
	assert.Zero(t, full.SAD)

	grid := mustNew(t, Params{Fast: true, FastLimit: 2, HalfPel: true}).Search(blk, refs)
	assert.Equal(t, Vector{0, -1}, grid.MV)

	refine := mustNew(t, Params{Fast: true, FastLimit: 2, HalfPel: true, Fractional: FractionalRefine}).Search(blk, refs)
	assert.Equal(t, Vector{0, -1}, refine.MV)

	noFME := mustNew(t, Params{Range: 1}).Search(blk, refs)
	assert.True(t, noFME.MV.IsFullPel())
	assert.Equal(t, 5, noFME.SAD)

	pred := make([]int32, 1)
	require.NoError(t, Predict(pred, refs.Get(0), 2, 2, 1, full.MV))
	assert.Equal(t, []int32{5}, pred)
}

func TestPredict(t *testing.T) {
	p := planeOf(4, 4, 2, func(r, c int) uint8 { return uint8(r*4 + c) })
	ref := frame.NewReference(p)
	dst := make([]int32, 4)

	require.NoError(t, Predict(dst, ref, 0, 0, 2, FullPel(2, 2)))
	assert.Equal(t, []int32{10, 11, 14, 15}, dst)

	err := Predict(dst, ref, 2, 2, 2, FullPel(1, 0))
	assert.ErrorIs(t, err, ErrOutOfBounds)
	err = Predict(dst, ref, 0, 0, 2, Vector{-1, 0})
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestNew(t *testing.T) {
	_, err := New(Params{Fast: true, FastLimit: -1})
	assert.ErrorIs(t, err, ErrNoFastLimit)
	_, err = New(Params{Range: -1})
	assert.Error(t, err)

	e, err := New(Params{Fast: true, FastLimit: 3})
	require.NoError(t, err)
	assert.IsType(t, &FastSearch{}, e)
	e, err = New(Params{Range: 2})
	require.NoError(t, err)
	assert.IsType(t, &FullSearch{}, e)
}

func TestParseFractional(t *testing.T) {
	f, err := ParseFractional("")
	require.NoError(t, err)
	assert.Equal(t, FractionalGrid, f)
	f, err = ParseFractional("refine")
	require.NoError(t, err)
	assert.Equal(t, FractionalRefine, f)
	assert.Equal(t, "refine", f.String())
	_, err = ParseFractional("quarter")
	assert.Error(t, err)
}

func TestVector(t *testing.T) {
	v := FullPel(1, -2)
	assert.Equal(t, Vector{2, -4}, v)
	assert.Equal(t, Vector{3, -3}, v.Add(Vector{1, 1}))
	assert.Equal(t, Vector{1, -5}, v.Sub(Vector{1, 1}))
	assert.True(t, v.IsFullPel())
	assert.False(t, Vector{1, 0}.IsFullPel())
	assert.Equal(t, "(0.5,-1)", Vector{1, -2}.String())
}

func BenchmarkFullSearch(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	p := planeOf(64, 64, 8, func(int, int) uint8 { return uint8(rng.Intn(256)) })
	refs := refsOf(p)
	cur := make([]int32, 64)
	p.Load(cur, 24, 24, 8)
	e, _ := New(Params{Range: 4})
	for i := 0; i < b.N; i++ {
		e.Search(Block{Samples: cur, Row: 24, Col: 24, Size: 8}, refs)
	}
}

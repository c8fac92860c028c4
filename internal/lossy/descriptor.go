package lossy

import (
	"fmt"

	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/motion"
)

// Descriptor values per block or sub-block, in stream order:
//
//	intra: mode [sub]
//	inter: drow dcol [sub] ref
//
// sub is present only with variable block size. Vector deltas are taken
// against the previous vector of the same block row, which starts at
// (0,0) in column 0, and are in half pixels with fractional motion
// estimation and whole pixels without.

func flag(b bool) int32 {
	if b {
		return 1
	}
	return 0
}

func appendIntra(dst []int32, d Descriptor, vbs bool) []int32 {
	dst = append(dst, int32(d.Mode))
	if vbs {
		dst = append(dst, flag(d.Sub))
	}
	return dst
}

func appendInter(dst []int32, d Descriptor, prev motion.Vector, vbs, fme bool) []int32 {
	delta := d.MV.Sub(prev)
	if !fme {
		delta.Row /= 2
		delta.Col /= 2
	}
	dst = append(dst, int32(delta.Row), int32(delta.Col))
	if vbs {
		dst = append(dst, flag(d.Sub))
	}
	return append(dst, int32(d.Ref))
}

// descriptorReader parses descriptors back from a frame's descriptor
// sequence.
type descriptorReader struct {
	x        *entropy.Expander
	vbs, fme bool
}

func (r *descriptorReader) next() (int, error) {
	v, err := r.x.Next()
	if err != nil {
		return 0, fmt.Errorf("%w: descriptors: %w", ErrCorrupt, err)
	}
	return int(v), nil
}

func (r *descriptorReader) sub() (bool, error) {
	if !r.vbs {
		return false, nil
	}
	v, err := r.next()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, fmt.Errorf("%w: sub-block flag %d", ErrCorrupt, v)
}

func (r *descriptorReader) intra() (Descriptor, error) {
	m, err := r.next()
	if err != nil {
		return Descriptor{}, err
	}
	if m != int(dsp.IntraVertical) && m != int(dsp.IntraHorizontal) {
		return Descriptor{}, fmt.Errorf("%w: intra mode %d", ErrCorrupt, m)
	}
	sub, err := r.sub()
	if err != nil {
		return Descriptor{}, err
	}
	return Descriptor{Intra: true, Mode: dsp.IntraMode(m), Sub: sub}, nil
}

func (r *descriptorReader) inter(prev motion.Vector, nrefs int) (Descriptor, error) {
	dr, err := r.next()
	if err != nil {
		return Descriptor{}, err
	}
	dc, err := r.next()
	if err != nil {
		return Descriptor{}, err
	}
	sub, err := r.sub()
	if err != nil {
		return Descriptor{}, err
	}
	ref, err := r.next()
	if err != nil {
		return Descriptor{}, err
	}
	if ref < 0 || ref >= nrefs {
		return Descriptor{}, fmt.Errorf("%w: reference %d of %d", ErrCorrupt, ref, nrefs)
	}
	delta := motion.Vector{Row: dr, Col: dc}
	if !r.fme {
		delta = motion.FullPel(dr, dc)
	}
	return Descriptor{MV: prev.Add(delta), Ref: ref, Sub: sub}, nil
}

package lossy

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid/internal/dsp"
	"github.com/deepteams/blockvid/internal/entropy"
	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/motion"
)

// Decoder reconstructs frames from their records. Decoding is sequential.
type Decoder struct {
	cfg      Config
	shape    dsp.Shape
	residual *ResidualCoder
	s        *scratch
	log      logrus.FieldLogger
}

// NewDecoder returns a Decoder for cfg. Only BlockSize, VBS and FME
// affect decoding.
func NewDecoder(cfg Config) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	shape := dsp.NewShape(cfg.BlockSize)
	return &Decoder{
		cfg:      cfg,
		shape:    shape,
		residual: NewResidualCoder(shape, 0),
		s:        newScratch(cfg.BlockSize),
		log:      cfg.logger(),
	}, nil
}

// DecodeFrame reconstructs the width x height frame rec against refs.
// refs is not modified.
func (d *Decoder) DecodeFrame(rec *Record, refs *frame.RefSet, width, height int) (*frame.Plane, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("lossy: invalid frame size %dx%d", width, height)
	}
	work := frame.NewPlane(width, height, d.shape.BlockSize)
	rows := work.PadHeight / d.shape.BlockSize
	cols := work.PadWidth / d.shape.BlockSize
	switch {
	case rec.Type != FrameI && rec.Type != FrameP:
		return nil, fmt.Errorf("%w: frame type %d", ErrCorrupt, rec.Type)
	case rec.Type == FrameP && refs.Len() == 0:
		return nil, fmt.Errorf("%w: P-frame without reference", ErrCorrupt)
	case len(rec.RowQP) != rows:
		return nil, fmt.Errorf("%w: %d row QPs for %d rows", ErrCorrupt, len(rec.RowQP), rows)
	}

	res := entropy.NewBlockDecoder(rec.Residual)
	dr := &descriptorReader{x: entropy.NewExpander(rec.Descriptors), vbs: d.cfg.VBS, fme: d.cfg.FME}
	for y := 0; y < rows; y++ {
		qp := rec.RowQP[y]
		if qp < 0 || qp > dsp.MaxQP {
			return nil, fmt.Errorf("%w: row %d qp %d", ErrCorrupt, y, qp)
		}
		var prev motion.Vector
		for x := 0; x < cols; x++ {
			last, err := d.decodeBlock(work, refs, res, dr, rec.Type, y*d.shape.BlockSize, x*d.shape.BlockSize, qp, prev)
			if err != nil {
				return nil, fmt.Errorf("lossy: block (%d,%d): %w", y, x, err)
			}
			prev = last
		}
	}
	if err := res.Close(); err != nil {
		return nil, fmt.Errorf("%w: residual: %w", ErrCorrupt, err)
	}
	if err := dr.x.Close(); err != nil {
		return nil, fmt.Errorf("%w: descriptors: %w", ErrCorrupt, err)
	}
	d.log.WithFields(logrus.Fields{
		"function": "DecodeFrame",
		"type":     rec.Type,
	}).Debug("frame decoded")
	return work, nil
}

// decodeBlock reads and reconstructs one block, returning the last motion
// vector of its row chain.
func (d *Decoder) decodeBlock(work *frame.Plane, refs *frame.RefSet, res *entropy.BlockDecoder, dr *descriptorReader, typ FrameType, row, col, qp int, prev motion.Vector) (motion.Vector, error) {
	read := func() (Descriptor, error) {
		if typ == FrameI {
			return dr.intra()
		}
		return dr.inter(prev, refs.Len())
	}
	first, err := read()
	if err != nil {
		return prev, err
	}
	for i, q := range quadrants(d.shape, row, col, first.Sub) {
		desc := first
		if i > 0 {
			if desc, err = read(); err != nil {
				return prev, err
			}
			if !desc.Sub {
				return prev, fmt.Errorf("%w: sub-block %d without sub-block flag", ErrCorrupt, i)
			}
		}
		if err := d.reconstruct(work, refs, res, desc, q[0], q[1], d.shape.Side(first.Sub), qp); err != nil {
			return prev, err
		}
		prev = desc.MV
	}
	return prev, nil
}

// reconstruct predicts the block at (row, col) from desc, reads its
// residual and writes the reconstruction into work.
func (d *Decoder) reconstruct(work *frame.Plane, refs *frame.RefSet, res *entropy.BlockDecoder, desc Descriptor, row, col, size, qp int) error {
	s := d.s
	n := size * size
	if desc.Intra {
		dsp.Predict(desc.Mode, s.pred[:n], work.Pix, work.Stride, row, col, size)
	} else if err := motion.Predict(s.pred[:n], refs.Get(desc.Ref), row, col, size, desc.MV); err != nil {
		if errors.Is(err, motion.ErrOutOfBounds) {
			return fmt.Errorf("%w: %w", ErrCorrupt, err)
		}
		return err
	}
	if err := res.ReadBlock(s.seq[:n]); err != nil {
		return fmt.Errorf("%w: residual: %w", ErrCorrupt, err)
	}
	entropy.Unscan(s.res[:n], s.seq[:n], size)
	return d.residual.Apply(work, row, col, size, s.pred, s.res, qp, s.recon)
}

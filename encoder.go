package blockvid

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/lossy"
	"github.com/deepteams/blockvid/internal/ratectl"
)

// Encoder codes a sequence of frames of one size. It keeps the reference
// frames and the rate-control state between calls and is not safe for
// concurrent use.
type Encoder struct {
	cfg           Config
	width, height int
	log           logrus.FieldLogger

	workers *lossy.Workers
	enc     *lossy.Encoder
	rc      *ratectl.Controller
	refs    *frame.RefSet
	n       int
	closed  bool
}

// NewEncoder returns an Encoder for width x height frames.
func NewEncoder(cfg Config, width, height int) (*Encoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameSize, width, height)
	}
	rows := (height + cfg.BlockSize - 1) / cfg.BlockSize
	rc, err := ratectl.New(cfg.rateParams(rows))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	workers := lossy.NewWorkers(cfg.ParallelWorkers, cfg.BlockSize)
	enc, err := lossy.NewEncoder(cfg.lossyConfig(), workers)
	if err != nil {
		workers.Close()
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	e := &Encoder{
		cfg:     cfg,
		width:   width,
		height:  height,
		log:     cfg.logger(),
		workers: workers,
		enc:     enc,
		rc:      rc,
		refs:    frame.NewRefSet(cfg.RefFrames),
	}
	e.log.WithFields(logrus.Fields{
		"function":   "NewEncoder",
		"width":      width,
		"height":     height,
		"block_size": cfg.BlockSize,
		"rc_mode":    rc.Mode(),
		"workers":    workers.Size(),
	}).Info("encoder created")
	return e, nil
}

// Encode codes the next frame of the sequence.
func (e *Encoder) Encode(ctx context.Context, in Frame) (*CompressedFrame, error) {
	if e.closed {
		return nil, ErrClosed
	}
	src, err := in.plane(e.width, e.height, e.cfg.BlockSize)
	if err != nil {
		return nil, err
	}
	typ := e.cfg.frameType(e.n)
	e.rc.RefreshFrame()

	sceneCut := false
	if e.rc.Mode().TwoPass() {
		stats, err := e.statistics(ctx, src, typ)
		if err != nil {
			return nil, err
		}
		if typ == FrameP && e.rc.IsSceneCut(stats.Bits) {
			typ, sceneCut = FrameI, true
			if stats, err = e.statistics(ctx, src, typ); err != nil {
				return nil, err
			}
		}
		e.rc.Rescale(typ == FrameI, stats.Bits)
		weights := make([]float64, len(stats.RowBits))
		for i, b := range stats.RowBits {
			weights[i] = float64(b)
		}
		e.rc.SetRowWeights(weights)
	}

	f, err := e.enc.EncodeFrame(ctx, src, e.refs, typ, e.rc)
	if err != nil {
		return nil, fmt.Errorf("blockvid: frame %d: %w", e.n, err)
	}
	if typ == FrameI {
		e.refs.Reset()
	}
	e.refs.Push(f.Recon)

	cf := &CompressedFrame{
		Type:        typ,
		RowQP:       f.RowQP,
		Residual:    f.Residual,
		Descriptors: f.Descriptors,
		Bits:        f.Bits,
		Digest:      f.Recon.Digest(),
		SceneCut:    sceneCut,
		Blocks:      len(f.Blocks) - 3*f.SubBlocks,
		SubBlocks:   f.SubBlocks,
	}
	e.log.WithFields(logrus.Fields{
		"function":  "Encode",
		"frame":     e.n,
		"type":      typ,
		"bits":      cf.Bits,
		"scene_cut": sceneCut,
	}).Debug("frame encoded")
	e.n++
	return cf, nil
}

// statistics codes src at the reference QP without committing any state.
func (e *Encoder) statistics(ctx context.Context, src *frame.Plane, typ FrameType) (*lossy.Frame, error) {
	f, err := e.enc.EncodeFrame(ctx, src, e.refs, typ, lossy.FixedQP(e.rc.ReferenceQP()))
	if err != nil {
		return nil, fmt.Errorf("blockvid: frame %d statistics pass: %w", e.n, err)
	}
	return f, nil
}

// Frames returns the number of frames encoded so far.
func (e *Encoder) Frames() int { return e.n }

// Close releases the encoder's workers.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	return e.workers.Close()
}

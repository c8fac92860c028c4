package blockvid

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/lossy"
)

// Decoder reconstructs frames coded by an Encoder with the same
// BlockSize, VBS and FME settings. It is not safe for concurrent use.
type Decoder struct {
	cfg           Config
	width, height int
	log           logrus.FieldLogger

	dec  *lossy.Decoder
	refs *frame.RefSet
	n    int
}

// NewDecoder returns a Decoder for width x height frames.
func NewDecoder(cfg Config, width, height int) (*Decoder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrFrameSize, width, height)
	}
	dec, err := lossy.NewDecoder(cfg.lossyConfig())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return &Decoder{
		cfg:    cfg,
		width:  width,
		height: height,
		log:    cfg.logger(),
		dec:    dec,
		refs:   frame.NewRefSet(cfg.RefFrames),
	}, nil
}

// Decode reconstructs the next frame. With VerifyDigest the result must
// match cf.Digest; on any error the reference state is left unchanged.
func (d *Decoder) Decode(cf *CompressedFrame) (Frame, error) {
	p, err := d.dec.DecodeFrame(cf.record(), d.refs, d.width, d.height)
	if err != nil {
		return Frame{}, fmt.Errorf("blockvid: frame %d: %w", d.n, err)
	}
	if d.cfg.VerifyDigest && p.Digest() != cf.Digest {
		d.log.WithFields(logrus.Fields{
			"function": "Decode",
			"frame":    d.n,
			"type":     cf.Type,
		}).Warn("reconstruction does not match encoder digest")
		return Frame{}, fmt.Errorf("%w: frame %d", ErrDigestMismatch, d.n)
	}
	if cf.Type == FrameI {
		d.refs.Reset()
	}
	d.refs.Push(p)
	d.n++
	return Frame{Width: d.width, Height: d.height, Y: p.Visible()}, nil
}

// Frames returns the number of frames decoded so far.
func (d *Decoder) Frames() int { return d.n }

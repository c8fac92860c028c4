package blockvid

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/deepteams/blockvid/internal/frame"
)

// FrameStats describes one frame coded by a Session.
type FrameStats struct {
	Index     int
	Type      FrameType
	Bits      int
	RowQP     []int
	Blocks    int
	SubBlocks int
	SceneCut  bool
	PSNR      float64 // dB, decoded against source
	SSIM      float64
}

// Stats summarizes a Session.
type Stats struct {
	Frames []FrameStats
	FPS    float64
}

// TotalBits returns the bits of all frames.
func (s *Stats) TotalBits() int {
	n := 0
	for _, f := range s.Frames {
		n += f.Bits
	}
	return n
}

// Bitrate returns the average bitrate in bits per second.
func (s *Stats) Bitrate() float64 {
	if len(s.Frames) == 0 || s.FPS <= 0 {
		return 0
	}
	return float64(s.TotalBits()) / float64(len(s.Frames)) * s.FPS
}

// MeanPSNR returns the average PSNR over all frames.
func (s *Stats) MeanPSNR() float64 {
	if len(s.Frames) == 0 {
		return 0
	}
	var sum float64
	for _, f := range s.Frames {
		sum += f.PSNR
	}
	return sum / float64(len(s.Frames))
}

// SubBlockRatio returns the fraction of blocks coded as four sub-blocks.
func (s *Stats) SubBlockRatio() float64 {
	blocks, subs := 0, 0
	for _, f := range s.Frames {
		blocks += f.Blocks
		subs += f.SubBlocks
	}
	if blocks == 0 {
		return 0
	}
	return float64(subs) / float64(blocks)
}

// Session runs an Encoder and a Decoder side by side, decoding every
// frame right after it is encoded and recording its quality.
type Session struct {
	enc   *Encoder
	dec   *Decoder
	stats Stats
	log   logrus.FieldLogger
}

// NewSession returns a Session for width x height frames.
func NewSession(cfg Config, width, height int) (*Session, error) {
	enc, err := NewEncoder(cfg, width, height)
	if err != nil {
		return nil, err
	}
	dec, err := NewDecoder(cfg, width, height)
	if err != nil {
		enc.Close()
		return nil, err
	}
	return &Session{enc: enc, dec: dec, stats: Stats{FPS: cfg.FPS}, log: cfg.logger()}, nil
}

// Process encodes in, decodes the result and returns both.
func (s *Session) Process(ctx context.Context, in Frame) (*CompressedFrame, Frame, error) {
	cf, err := s.enc.Encode(ctx, in)
	if err != nil {
		return nil, Frame{}, err
	}
	out, err := s.dec.Decode(cf)
	if err != nil {
		return nil, Frame{}, err
	}
	src, err := frame.FromSamples(in.Y, in.Width, in.Height, in.Width, s.enc.cfg.BlockSize)
	if err != nil {
		return nil, Frame{}, fmt.Errorf("%w: %w", ErrFrameSize, err)
	}
	got, err := frame.FromSamples(out.Y, out.Width, out.Height, out.Width, s.enc.cfg.BlockSize)
	if err != nil {
		return nil, Frame{}, err
	}
	fs := FrameStats{
		Index:     len(s.stats.Frames),
		Type:      cf.Type,
		Bits:      cf.Bits,
		RowQP:     cf.RowQP,
		Blocks:    cf.Blocks,
		SubBlocks: cf.SubBlocks,
		SceneCut:  cf.SceneCut,
		PSNR:      frame.PSNR(got, src),
		SSIM:      frame.SSIM(got, src),
	}
	s.stats.Frames = append(s.stats.Frames, fs)
	s.log.WithFields(logrus.Fields{
		"function": "Process",
		"frame":    fs.Index,
		"type":     fs.Type,
		"bits":     fs.Bits,
		"psnr":     fs.PSNR,
	}).Debug("frame processed")
	return cf, out, nil
}

// Stats returns the statistics gathered so far.
func (s *Session) Stats() Stats {
	st := s.stats
	st.Frames = append([]FrameStats(nil), s.stats.Frames...)
	return st
}

// Close releases the encoder.
func (s *Session) Close() error {
	return s.enc.Close()
}

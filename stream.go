package blockvid

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/deepteams/blockvid/internal/container"
	"github.com/deepteams/blockvid/internal/entropy"
)

// StreamInfo describes a stream from its header.
type StreamInfo struct {
	Width, Height int
	BlockSize     int
	VBS, FME      bool
	Digest        bool // frames carry reconstruction digests
	FPS           float64
	Frames        int
}

// StreamWriter writes compressed frames to a GVID stream. Nothing reaches
// the underlying writer before Close.
type StreamWriter struct {
	w      *container.Writer
	digest bool
}

// NewStreamWriter returns a StreamWriter for frames encoded with cfg.
func NewStreamWriter(w io.Writer, cfg Config, width, height int) (*StreamWriter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if !cfg.Entropy {
		return nil, ErrRawPayload
	}
	cw, err := container.NewWriter(w, container.Header{
		Width:     width,
		Height:    height,
		BlockSize: cfg.BlockSize,
		Flags:     cfg.flags(),
		FPS:       cfg.FPS,
	})
	if err != nil {
		return nil, fmt.Errorf("blockvid: %w", err)
	}
	return &StreamWriter{w: cw, digest: cfg.VerifyDigest}, nil
}

// WriteFrame appends cf to the stream.
func (s *StreamWriter) WriteFrame(cf *CompressedFrame) error {
	if !cf.Residual.Entropy || !cf.Descriptors.Entropy {
		return ErrRawPayload
	}
	f := &container.Frame{
		Type:        uint8(cf.Type),
		RowQP:       cf.RowQP,
		Residual:    cf.Residual.Stream,
		Descriptors: cf.Descriptors.Stream,
	}
	if s.digest {
		f.Digest = cf.Digest
	}
	if err := s.w.WriteFrame(f); err != nil {
		return fmt.Errorf("blockvid: %w", err)
	}
	return nil
}

// Close writes the stream out.
func (s *StreamWriter) Close() error {
	return s.w.Close()
}

// StreamReader reads compressed frames from a GVID stream.
type StreamReader struct {
	r    *container.Reader
	info StreamInfo
}

// NewStreamReader reads the stream header from r.
func NewStreamReader(r io.Reader) (*StreamReader, error) {
	cr, err := container.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("blockvid: %w", err)
	}
	h := cr.Header()
	return &StreamReader{
		r: cr,
		info: StreamInfo{
			Width:     h.Width,
			Height:    h.Height,
			BlockSize: h.BlockSize,
			VBS:       h.Flags&container.FlagVBS != 0,
			FME:       h.Flags&container.FlagFME != 0,
			Digest:    h.Flags&container.FlagDigest != 0,
			FPS:       h.FPS,
			Frames:    h.Frames,
		},
	}, nil
}

// Info returns the stream header.
func (s *StreamReader) Info() StreamInfo { return s.info }

// Config returns base with the settings the stream was coded with.
func (s *StreamReader) Config(base Config) Config {
	base.BlockSize = s.info.BlockSize
	base.VBS = s.info.VBS
	base.FME = s.info.FME
	base.VerifyDigest = s.info.Digest
	base.Entropy = true
	if s.info.FPS > 0 {
		base.FPS = s.info.FPS
	}
	return base
}

// Next returns the next frame, or io.EOF after the last one.
func (s *StreamReader) Next() (*CompressedFrame, error) {
	f, err := s.r.Next()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("blockvid: %w", err)
	}
	cf := &CompressedFrame{
		Type:        FrameType(f.Type),
		RowQP:       f.RowQP,
		Residual:    entropy.Payload{Entropy: true, Stream: f.Residual},
		Descriptors: entropy.Payload{Entropy: true, Stream: f.Descriptors},
		Digest:      f.Digest,
	}
	cf.Bits = cf.Residual.Bits() + cf.Descriptors.Bits()
	return cf, nil
}

// EncodeVideo encodes frames with cfg and writes them to w as a stream.
func EncodeVideo(ctx context.Context, w io.Writer, frames []Frame, cfg Config) (Stats, error) {
	if len(frames) == 0 {
		return Stats{}, fmt.Errorf("%w: no frames", ErrFrameSize)
	}
	width, height := frames[0].Width, frames[0].Height
	s, err := NewSession(cfg, width, height)
	if err != nil {
		return Stats{}, err
	}
	defer s.Close()
	sw, err := NewStreamWriter(w, cfg, width, height)
	if err != nil {
		return Stats{}, err
	}
	for _, f := range frames {
		cf, _, err := s.Process(ctx, f)
		if err != nil {
			return Stats{}, err
		}
		if err := sw.WriteFrame(cf); err != nil {
			return Stats{}, err
		}
	}
	if err := sw.Close(); err != nil {
		return Stats{}, err
	}
	return s.Stats(), nil
}

// DecodeVideo decodes every frame of the stream in r. base supplies the
// settings a stream does not record, such as RefFrames and Logger.
func DecodeVideo(r io.Reader, base Config) ([]Frame, error) {
	sr, err := NewStreamReader(r)
	if err != nil {
		return nil, err
	}
	info := sr.Info()
	dec, err := NewDecoder(sr.Config(base), info.Width, info.Height)
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, info.Frames)
	for {
		cf, err := sr.Next()
		if err == io.EOF {
			return frames, nil
		}
		if err != nil {
			return nil, err
		}
		f, err := dec.Decode(cf)
		if err != nil {
			return nil, err
		}
		frames = append(frames, f)
	}
}

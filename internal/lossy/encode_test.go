package lossy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/blockvid/internal/frame"
	"github.com/deepteams/blockvid/internal/motion"
	"github.com/deepteams/blockvid/internal/ratectl"
)

// sequence returns n frames of a pattern drifting down and to the right.
func sequence(w, h, bs, n int) []*frame.Plane {
	out := make([]*frame.Plane, n)
	for i := range out {
		out[i] = texture(w, h, bs, -i, -2*i, int64(10+i))
	}
	return out
}

// codec encodes and decodes frames through separate reference sets.
type codec struct {
	t       *testing.T
	enc     *Encoder
	dec     *Decoder
	encRefs *frame.RefSet
	decRefs *frame.RefSet
}

func newCodec(t *testing.T, cfg Config, nrefs, workers int) *codec {
	t.Helper()
	w := NewWorkers(workers, cfg.BlockSize)
	t.Cleanup(func() { w.Close() })
	enc, err := NewEncoder(cfg, w)
	require.NoError(t, err)
	dec, err := NewDecoder(cfg)
	require.NoError(t, err)
	return &codec{
		t: t, enc: enc, dec: dec,
		encRefs: frame.NewRefSet(nrefs),
		decRefs: frame.NewRefSet(nrefs),
	}
}

// step codes src, checks the decoder reproduces the encoder's
// reconstruction and publishes it.
func (c *codec) step(src *frame.Plane, typ FrameType, rc RowController) *Frame {
	c.t.Helper()
	f, err := c.enc.EncodeFrame(context.Background(), src, c.encRefs, typ, rc)
	require.NoError(c.t, err)
	got, err := c.dec.DecodeFrame(&f.Record, c.decRefs, src.Width, src.Height)
	require.NoError(c.t, err)
	require.True(c.t, got.Equal(f.Recon), "decoder drifted from encoder on %v frame", typ)
	if typ == FrameI {
		c.encRefs.Reset()
		c.decRefs.Reset()
	}
	c.encRefs.Push(f.Recon)
	c.decRefs.Push(got)
	return f
}

func TestEncodeDecode_Equivalence(t *testing.T) {
	tests := []struct {
		name  string
		nrefs int
		mut   func(*Config)
	}{
		{"base", 1, func(*Config) {}},
		{"raw", 1, func(c *Config) { c.Entropy = false }},
		{"vbs", 1, func(c *Config) { c.VBS = true; c.Lambda = 0.1 }},
		{"fme", 1, func(c *Config) { c.FME = true }},
		{"approx", 1, func(c *Config) { c.Approximate = 2 }},
		{"multiref", 3, func(*Config) {}},
		{"fast", 1, func(c *Config) { c.Motion.Fast = true; c.Motion.FastLimit = 2 }},
		{"fast fme grid", 2, func(c *Config) {
			c.FME = true
			c.Motion.Fast = true
			c.Motion.FastLimit = 3
		}},
		{"fast fme refine", 2, func(c *Config) {
			c.FME = true
			c.Motion.Fast = true
			c.Motion.FastLimit = 3
			c.Motion.Fractional = motion.FractionalRefine
		}},
		{"everything", 2, func(c *Config) {
			c.VBS = true
			c.FME = true
			c.Approximate = 1
			c.Lambda = 0.2
		}},
		{"everything raw", 2, func(c *Config) {
			c.VBS = true
			c.FME = true
			c.Entropy = false
		}},
	}
	frames := sequence(37, 29, 8, 5)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := baseConfig()
			tt.mut(&cfg)
			c := newCodec(t, cfg, tt.nrefs, 1)
			for i, src := range frames {
				typ := FrameP
				if i == 0 || i == 3 {
					typ = FrameI
				}
				f := c.step(src, typ, FixedQP(2))
				assert.Equal(t, f.Bits, f.Residual.Bits()+f.Descriptors.Bits())
				assert.Len(t, f.RowQP, 4)
				assert.Len(t, f.RowBits, 4)
				if !cfg.VBS {
					assert.Zero(t, f.SubBlocks)
				}
			}
		})
	}
}

func TestEncodeFrame_FlatBlockLossless(t *testing.T) {
	src := frame.NewPlane(8, 8, 8)
	for i := range src.Pix {
		src.Pix[i] = 77
	}
	cfg := baseConfig()
	c := newCodec(t, cfg, 1, 1)
	f := c.step(src, FrameI, FixedQP(0))
	assert.True(t, f.Recon.Equal(src))
	require.Len(t, f.Blocks, 1)
	assert.Equal(t, Descriptor{Intra: true}, f.Blocks[0], "ties go to the vertical predictor")
}

func TestEncodeFrame_IdenticalFrames(t *testing.T) {
	src := texture(32, 24, 8, 0, 0, 5)
	cfg := baseConfig()
	cfg.Entropy = false
	w := NewWorkers(1, cfg.BlockSize)
	defer w.Close()
	enc, err := NewEncoder(cfg, w)
	require.NoError(t, err)
	refs := frame.NewRefSet(1)
	refs.Push(src.Clone())

	f, err := enc.EncodeFrame(context.Background(), src, refs, FrameP, FixedQP(3))
	require.NoError(t, err)
	require.Len(t, f.Blocks, 12)
	for _, d := range f.Blocks {
		assert.Equal(t, motion.Vector{}, d.MV)
		assert.Zero(t, d.Ref)
	}
	assert.Equal(t, make([]int32, 12), f.Residual.Tokens, "one terminal token per empty block")
	assert.True(t, f.Recon.Equal(src))
}

func TestEncodeFrame_DoesNotTouchInputs(t *testing.T) {
	frames := sequence(24, 24, 8, 2)
	src := frames[1].Clone()
	cfg := baseConfig()
	cfg.VBS = true
	w := NewWorkers(2, cfg.BlockSize)
	defer w.Close()
	enc, err := NewEncoder(cfg, w)
	require.NoError(t, err)
	refs := frame.NewRefSet(1)
	ref := frames[0].Clone()
	refs.Push(ref)

	_, err = enc.EncodeFrame(context.Background(), src, refs, FrameP, FixedQP(1))
	require.NoError(t, err)
	assert.True(t, src.Equal(frames[1]))
	assert.True(t, ref.Equal(frames[0]))
	assert.Equal(t, 1, refs.Len())
}

func TestEncodeFrame_PWithoutReference(t *testing.T) {
	cfg := baseConfig()
	w := NewWorkers(1, cfg.BlockSize)
	defer w.Close()
	enc, err := NewEncoder(cfg, w)
	require.NoError(t, err)
	_, err = enc.EncodeFrame(context.Background(), texture(8, 8, 8, 0, 0, 1), frame.NewRefSet(1), FrameP, FixedQP(1))
	assert.Error(t, err)
}

func TestEncodeFrame_Cancelled(t *testing.T) {
	cfg := baseConfig()
	for _, n := range []int{1, 3} {
		w := NewWorkers(n, cfg.BlockSize)
		enc, err := NewEncoder(cfg, w)
		require.NoError(t, err)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err = enc.EncodeFrame(ctx, texture(32, 32, 8, 0, 0, 1), frame.NewRefSet(1), FrameI, FixedQP(1))
		assert.ErrorIs(t, err, context.Canceled, "workers=%d", n)
		w.Close()
	}
}

func linearTables() ratectl.Tables {
	i, p := ratectl.Table{}, ratectl.Table{}
	for qp := 0; qp <= 8; qp++ {
		i[qp] = float64(int(4000) >> qp)
		p[qp] = float64(int(2000) >> qp)
	}
	return ratectl.Tables{I: i, P: p}
}

func TestEncodeFrame_ParallelMatchesSequential(t *testing.T) {
	frames := sequence(48, 40, 8, 4)
	controllers := map[string]func() RowController{
		"fixed": func() RowController { return FixedQP(2) },
		"per-row": func() RowController {
			c, err := ratectl.New(ratectl.Params{
				Mode: ratectl.PerRow, QP: 2, Tables: linearTables(),
				TargetBitrate: 30 * 6000, FPS: 30, Rows: 5,
			})
			require.NoError(t, err)
			return c
		},
	}
	for name, newRC := range controllers {
		t.Run(name, func(t *testing.T) {
			cfg := baseConfig()
			cfg.VBS = true
			cfg.FME = true
			seq := newCodec(t, cfg, 2, 1)
			par := newCodec(t, cfg, 2, 4)
			seqRC, parRC := newRC(), newRC()
			for i, src := range frames {
				typ := FrameP
				if i == 0 {
					typ = FrameI
				}
				if c, ok := seqRC.(*ratectl.Controller); ok {
					c.RefreshFrame()
					parRC.(*ratectl.Controller).RefreshFrame()
				}
				a := seq.step(src, typ, seqRC)
				b := par.step(src, typ, parRC)
				assert.Equal(t, a.Record, b.Record, "frame %d", i)
				assert.Equal(t, a.RowBits, b.RowBits, "frame %d", i)
				assert.Equal(t, a.Blocks, b.Blocks, "frame %d", i)
				assert.True(t, a.Recon.Equal(b.Recon), "frame %d", i)
			}
		})
	}
}

func TestEncodeFrame_ChargesController(t *testing.T) {
	rc, err := ratectl.New(ratectl.Params{
		Mode: ratectl.PerRow, QP: 2, Tables: linearTables(),
		TargetBitrate: 30 * 2500, FPS: 30, Rows: 5,
	})
	require.NoError(t, err)
	c := newCodec(t, baseConfig(), 1, 1)
	rc.RefreshFrame()
	f := c.step(texture(48, 40, 8, 0, 0, 9), FrameI, rc)
	assert.Equal(t, 5-len(f.RowQP), rc.RemainingRows())
	total := 0
	for _, b := range f.RowBits {
		total += b
	}
	assert.InDelta(t, 2500-float64(total), rc.Remaining(), 1e-9)
}

func BenchmarkEncodeFrameP(b *testing.B) {
	frames := sequence(64, 64, 8, 2)
	cfg := baseConfig()
	cfg.VBS = true
	w := NewWorkers(1, cfg.BlockSize)
	defer w.Close()
	enc, err := NewEncoder(cfg, w)
	if err != nil {
		b.Fatal(err)
	}
	refs := frame.NewRefSet(1)
	refs.Push(frames[0])
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := enc.EncodeFrame(context.Background(), frames[1], refs, FrameP, FixedQP(2)); err != nil {
			b.Fatal(err)
		}
	}
}

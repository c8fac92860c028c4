// Package blockvid implements an experimental block-based video codec for
// 8-bit luma frames.
//
// Each frame is split into square blocks coded in raster order. I-frames
// predict every block from its already reconstructed neighbours
// (vertical or horizontal); P-frames predict from up to RefFrames earlier
// reconstructions using full or fast motion search, optionally at half
// pixel precision. Residuals go through an orthonormal DCT, quantization,
// a diagonal scan and run-length plus Exp-Golomb coding. Blocks may be
// split into four sub-blocks when that lowers the rate-distortion cost,
// and a rate controller can pick a QP per block row to meet a bitrate.
//
// The package supports:
//   - Constant QP, per-row budget and two-pass rate control
//   - Scene-cut I-frame insertion in two-pass mode
//   - Row-wavefront parallel encoding with output identical to sequential
//   - A RIFF stream container with per-frame reconstruction digests
//
// Basic usage:
//
//	cfg := blockvid.DefaultConfig(8)
//	enc, err := blockvid.NewEncoder(cfg, width, height)
//	cf, err := enc.Encode(ctx, blockvid.Frame{Width: width, Height: height, Y: luma})
//
//	dec, err := blockvid.NewDecoder(cfg, width, height)
//	frame, err := dec.Decode(cf)
package blockvid

package dsp

import "math"

// Picture quality metrics reported per decoded frame.

// PerfectPSNR is reported for identical pictures.
const PerfectPSNR = 99.0

// SSE returns the sum of squared errors between two width*height regions.
func SSE(pix, ref []byte, width, height, pixStride, refStride int) uint64 {
	var sse uint64
	for y := 0; y < height; y++ {
		p := pix[y*pixStride : y*pixStride+width]
		r := ref[y*refStride : y*refStride+width]
		for x, v := range p {
			d := int(v) - int(r[x])
			sse += uint64(d * d)
		}
	}
	return sse
}

// PSNRFromSSE converts an SSE over count samples to PSNR in dB.
func PSNRFromSSE(sse uint64, count int) float64 {
	if sse == 0 || count == 0 {
		return PerfectPSNR
	}
	mse := float64(sse) / float64(count)
	return 10.0 * math.Log10(255.0*255.0/mse)
}

// ssimStats accumulates the weighted moments of a window.
type ssimStats struct {
	w             uint32
	xm, ym        uint32
	xxm, xym, yym uint32
}

func (s *ssimStats) add(x, y uint8, w uint32) {
	s.w += w
	s.xm += w * uint32(x)
	s.ym += w * uint32(y)
	s.xxm += w * uint32(x) * uint32(x)
	s.xym += w * uint32(x) * uint32(y)
	s.yym += w * uint32(y) * uint32(y)
}

// ssim evaluates the structural similarity of the accumulated window in
// fixed point. Very dark windows count as identical.
func (s *ssimStats) ssim() float64 {
	n := uint64(s.w)
	if n == 0 {
		return 0
	}
	w2 := n * n
	c1 := 20 * w2
	c2 := 60 * w2
	c3 := 8 * 8 * w2

	xmxm := uint64(s.xm) * uint64(s.xm)
	ymym := uint64(s.ym) * uint64(s.ym)
	if xmxm+ymym < c3 {
		return 1.0
	}
	xmym := uint64(s.xm) * uint64(s.ym)
	sxy := int64(uint64(s.xym)*n) - int64(xmym)
	sxx := uint64(s.xxm)*n - xmxm
	syy := uint64(s.yym)*n - ymym
	var sxyPos uint64
	if sxy > 0 {
		sxyPos = uint64(sxy)
	}
	// Descale by 8 bits so the products below stay in range.
	numS := (2*sxyPos + c2) >> 8
	denS := (sxx + syy + c2) >> 8
	fnum := (2*xmym + c1) * numS
	fden := (xmxm + ymym + c1) * denS
	if fden == 0 {
		return 1.0
	}
	return float64(fnum) / float64(fden)
}

const ssimKernel = 3

var ssimWeight = [2*ssimKernel + 1]uint32{1, 2, 3, 4, 3, 2, 1}

// SSIM returns the mean structural similarity of two width*height planes,
// using a 7x7 hat-weighted window clipped at the picture edges.
func SSIM(pix, ref []byte, width, height, pixStride, refStride int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}
	var sum float64
	for yo := 0; yo < height; yo++ {
		ymin, ymax := max(yo-ssimKernel, 0), min(yo+ssimKernel, height-1)
		for xo := 0; xo < width; xo++ {
			xmin, xmax := max(xo-ssimKernel, 0), min(xo+ssimKernel, width-1)
			var s ssimStats
			for y := ymin; y <= ymax; y++ {
				wy := ssimWeight[ssimKernel+y-yo]
				for x := xmin; x <= xmax; x++ {
					s.add(pix[y*pixStride+x], ref[y*refStride+x], wy*ssimWeight[ssimKernel+x-xo])
				}
			}
			sum += s.ssim()
		}
	}
	return sum / float64(width*height)
}

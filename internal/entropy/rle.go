package entropy

import (
	"errors"
	"fmt"
)

// ErrCorrupt reports a token sequence that cannot come from RunLength:
// runs overflowing the expected length, zero literals, or a terminal zero
// that is not the last token.
var ErrCorrupt = errors.New("entropy: corrupt token stream")

// RunLength converts seq into tokens. Maximal runs of zeros become their
// length; maximal runs of k nonzero values become -k followed by the values
// in order. A run of zeros reaching the end of seq (including a sequence
// that is entirely zero) is written as the single token 0, which is always
// the last token.
func RunLength(seq []int32) []int32 {
	return AppendRunLength(nil, seq)
}

// AppendRunLength appends the tokens of seq to dst.
func AppendRunLength(dst, seq []int32) []int32 {
	end := len(seq)
	for end > 0 && seq[end-1] == 0 {
		end--
	}
	for i := 0; i < end; {
		j := i
		if seq[i] == 0 {
			for j < end && seq[j] == 0 {
				j++
			}
			dst = append(dst, int32(j-i))
		} else {
			for j < end && seq[j] != 0 {
				j++
			}
			dst = append(dst, int32(i-j))
			dst = append(dst, seq[i:j]...)
		}
		i = j
	}
	if end < len(seq) {
		dst = append(dst, 0)
	}
	return dst
}

// InverseRunLength expands tokens into a sequence of n values, zero-padding
// after the terminal token. Every token must be consumed.
func InverseRunLength(tokens []int32, n int) ([]int32, error) {
	src := &sliceSource{tokens: tokens}
	out := make([]int32, n)
	if err := expandBlock(src, out); err != nil {
		return nil, err
	}
	if src.More() {
		return nil, fmt.Errorf("%w: %d tokens after a complete block", ErrCorrupt, len(tokens)-src.pos)
	}
	return out, nil
}

// expandBlock reads the tokens of one block from src into dst. The block
// ends once len(dst) values are produced or at the terminal 0 token.
func expandBlock(src tokenSource, dst []int32) error {
	n := len(dst)
	pos := 0
	for pos < n {
		t, err := src.Next()
		if err != nil {
			return err
		}
		switch {
		case t == 0:
			clear(dst[pos:])
			return nil
		case t > 0:
			if int(t) > n-pos {
				return fmt.Errorf("%w: zero run %d overflows block at %d/%d", ErrCorrupt, t, pos, n)
			}
			clear(dst[pos : pos+int(t)])
			pos += int(t)
		default:
			k := -int(t)
			if k > n-pos {
				return fmt.Errorf("%w: literal run %d overflows block at %d/%d", ErrCorrupt, k, pos, n)
			}
			for i := 0; i < k; i++ {
				v, err := src.Next()
				if err != nil {
					return err
				}
				if v == 0 {
					return fmt.Errorf("%w: zero literal", ErrCorrupt)
				}
				dst[pos] = v
				pos++
			}
		}
	}
	return nil
}

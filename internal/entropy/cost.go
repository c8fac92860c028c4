package entropy

import "github.com/deepteams/blockvid/internal/bitio"

// TokenBits returns the Exp-Golomb length of token v: 1 for 0 and
// 3 + 2*floor(log2|v|) otherwise. The bit writer emits exactly this many
// bits for v.
func TokenBits(v int32) int {
	return bitio.SELen(int(v))
}

// Cost returns the total coded length of tokens.
func Cost(tokens []int32) int {
	n := 0
	for _, t := range tokens {
		n += TokenBits(t)
	}
	return n
}

// SequenceCost returns the coded length of seq after run-length coding.
func SequenceCost(seq []int32) int {
	n := 0
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
			n += TokenBits(int32(j - i))
		} else {
			for j < end && seq[j] != 0 {
				n += TokenBits(seq[j])
				j++
			}
			n += TokenBits(int32(i - j))
		}
		i = j
	}
	if end < len(seq) {
		n += TokenBits(0)
	}
	return n
}

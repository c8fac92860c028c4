package entropy

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepteams/blockvid/internal/bitio"
)

func TestScanOrder(t *testing.T) {
	// 0  1  3  6
	// 2  4  7 10
	// 5  8 11 13
	// 9 12 14 15   (position in scan)
	want := []int{0, 1, 4, 2, 5, 8, 3, 6, 9, 12, 7, 10, 13, 11, 14, 15}
	assert.Equal(t, want, ScanOrder(4))
	assert.Equal(t, []int{0}, ScanOrder(1))
}

func TestScanUnscan(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	for _, n := range []int{2, 4, 8, 16} {
		block := make([]int32, n*n)
		for i := range block {
			block[i] = int32(rng.Intn(41) - 20)
		}
		seq := make([]int32, n*n)
		Scan(seq, block, n)
		back := make([]int32, n*n)
		Unscan(back, seq, n)
		assert.Equal(t, block, back, "n=%d", n)
	}
}

func TestRunLength(t *testing.T) {
	tests := []struct {
		name string
		seq  []int32
		want []int32
	}{
		{"all zero", []int32{0, 0, 0, 0}, []int32{0}},
		{"mixed", []int32{5, 0, 0, 3, 4, 0, 0}, []int32{-1, 5, 2, -2, 3, 4, 0}},
		{"no zeros", []int32{1, 2}, []int32{-2, 1, 2}},
		{"leading zeros", []int32{0, 0, 7}, []int32{2, -1, 7}},
		{"single zero", []int32{0}, []int32{0}},
		{"negatives", []int32{-3, 0, -1}, []int32{-1, -3, 1, -1, -1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RunLength(tt.seq)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, Cost(got), SequenceCost(tt.seq))
			back, err := InverseRunLength(got, len(tt.seq))
			require.NoError(t, err)
			assert.Equal(t, tt.seq, back)
		})
	}
	assert.Empty(t, RunLength(nil))
}

func TestInverseRunLength_Errors(t *testing.T) {
	tests := []struct {
		name   string
		tokens []int32
		n      int
	}{
		{"zero run overflow", []int32{5}, 4},
		{"literal overflow", []int32{-3, 1, 2, 3}, 2},
		{"terminal not last", []int32{-1, 4, 0, 1}, 8},
		{"zero literal", []int32{-2, 1, 0}, 4},
		{"extra tokens", []int32{-2, 1, 2, 3}, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := InverseRunLength(tt.tokens, tt.n)
			assert.ErrorIs(t, err, ErrCorrupt)
		})
	}

	_, err := InverseRunLength([]int32{-3, 1}, 8)
	assert.ErrorIs(t, err, bitio.ErrTruncated)
}

func TestInverseRunLength_Pads(t *testing.T) {
	got, err := InverseRunLength([]int32{-1, 9, 0}, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{9, 0, 0, 0, 0}, got)
}

func TestTokenBits(t *testing.T) {
	assert.Equal(t, 1, TokenBits(0))
	assert.Equal(t, 3, TokenBits(1))
	assert.Equal(t, 3, TokenBits(-1))
	assert.Equal(t, 5, TokenBits(-3))
	assert.Equal(t, 7, TokenBits(4))
	assert.Equal(t, 3+2*9, TokenBits(1023))
}

// sparseBlock mimics quantized coefficients: mostly zero, energy near DC.
func sparseBlock(rng *rand.Rand, n int) []int32 {
	b := make([]int32, n*n)
	for i := range b {
		if rng.Intn(4) == 0 {
			b[i] = int32(rng.Intn(61) - 30)
		}
	}
	if rng.Intn(5) == 0 {
		clear(b)
	}
	return b
}

func TestFrameStreamRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for _, entropy := range []bool{true, false} {
		for _, n := range []int{2, 4, 8, 16} {
			var blocks [][]int32
			enc := NewEncoder(entropy)
			want := 0
			for i := 0; i < 40; i++ {
				blk := sparseBlock(rng, n)
				blocks = append(blocks, blk)
				seq := make([]int32, n*n)
				Scan(seq, blk, n)
				bits := enc.WriteSequence(seq)
				require.Equal(t, SequenceCost(seq), bits)
				want += bits
			}
			p := enc.Finish()
			assert.Equal(t, want, p.Bits(), "entropy=%v n=%d", entropy, n)
			assert.Equal(t, entropy, p.Entropy)

			dec := NewBlockDecoder(p)
			seq := make([]int32, n*n)
			for i, blk := range blocks {
				require.NoError(t, dec.ReadBlock(seq), "block %d", i)
				got := make([]int32, n*n)
				Unscan(got, seq, n)
				require.Equal(t, blk, got, "entropy=%v n=%d block %d", entropy, n, i)
			}
			assert.NoError(t, dec.Close())
		}
	}
}

func TestBlockDecoder_TrailingTokens(t *testing.T) {
	enc := NewEncoder(true)
	enc.WriteSequence([]int32{1, 0})
	enc.WriteSequence([]int32{2, 0})
	dec := NewBlockDecoder(enc.Finish())
	blk := make([]int32, 2)
	require.NoError(t, dec.ReadBlock(blk))
	assert.ErrorIs(t, dec.Close(), ErrCorrupt)
}

func TestExpander(t *testing.T) {
	for _, entropy := range []bool{true, false} {
		seq := []int32{0, 0, 3, -1, 0, 2, 0, 0}
		enc := NewEncoder(entropy)
		enc.WriteSequence(seq)
		x := NewExpander(enc.Finish())
		for i, v := range seq {
			got, err := x.Next()
			require.NoError(t, err)
			require.Equal(t, v, got, "value %d", i)
		}
		for i := 0; i < 3; i++ {
			got, err := x.Next()
			require.NoError(t, err)
			assert.Zero(t, got)
		}
		assert.NoError(t, x.Close())
	}
}

func TestExpander_Unconsumed(t *testing.T) {
	x := NewExpander(Payload{Tokens: RunLength([]int32{4, 5, 6})})
	_, err := x.Next()
	require.NoError(t, err)
	assert.ErrorIs(t, x.Close(), ErrCorrupt)

	x = NewExpander(Payload{Tokens: []int32{-2, 4}})
	_, err = x.Next()
	require.NoError(t, err)
	_, err = x.Next()
	assert.ErrorIs(t, err, bitio.ErrTruncated)
}

func BenchmarkWriteSequence(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	blk := sparseBlock(rng, 8)
	seq := make([]int32, 64)
	Scan(seq, blk, 8)
	for i := 0; i < b.N; i++ {
		enc := NewEncoder(true)
		enc.WriteSequence(seq)
		_ = enc.Finish()
	}
}

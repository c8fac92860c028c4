package pool

import (
	"sync"
	"testing"
)

func TestGetPutFloat64_ExactSize(t *testing.T) {
	tests := []struct {
		name string
		n    int
	}{
		{"4x4", 16},
		{"8x8", 64},
		{"16x16", 256},
		{"32x32", 1024},
		{"64x64", 4096},
		{"odd", 37},
		{"large", 10000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := GetFloat64(tt.n)
			if len(b) != tt.n {
				t.Errorf("GetFloat64(%d): len = %d, want %d", tt.n, len(b), tt.n)
			}
			PutFloat64(b)
		})
	}
}

func TestGetFloat64_ZeroedSameBucket(t *testing.T) {
	b := GetFloat64(64)
	for i := range b {
		b[i] = float64(i + 1)
	}
	PutFloat64(b)
	for i := 0; i < 8; i++ {
		b2 := GetFloat64(64)
		for j, v := range b2 {
			if v != 0 {
				t.Fatalf("GetFloat64 after reuse: b[%d] = %v, want 0", j, v)
			}
		}
		PutFloat64(b2)
	}
}

func TestGetFloat64_Zeroed(t *testing.T) {
	b := GetFloat64(256)
	for i := range b {
		b[i] = 1.5
	}
	PutFloat64(b)
	b2 := GetFloat64(200)
	if len(b2) != 200 {
		t.Fatalf("GetFloat64(200): len = %d", len(b2))
	}
	for j, v := range b2 {
		if v != 0 {
			t.Fatalf("GetFloat64 after reuse: b[%d] = %v, want 0", j, v)
		}
	}
	PutFloat64(b2)
}

func TestPut_SmallSlice(t *testing.T) {
	PutFloat64(make([]float64, 4))
	PutFloat64(nil)
	b := GetFloat64(16)
	if len(b) != 16 {
		t.Errorf("GetFloat64(16) after small Put: len = %d", len(b))
	}
}

func TestBucketIndex(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{1, 0}, {16, 0}, {17, 1}, {64, 1}, {65, 2}, {256, 2},
		{257, 3}, {1024, 3}, {1025, 4}, {4096, 4}, {9999, 4},
	}
	for _, tt := range tests {
		if got := bucketIndex(tt.n); got != tt.want {
			t.Errorf("bucketIndex(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestConcurrency(t *testing.T) {
	const goroutines = 16
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for g := 0; g < goroutines; g++ {
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				for _, n := range []int{16, 64, 256, 1024} {
					b := GetFloat64(n)
					if len(b) != n {
						t.Errorf("concurrent GetFloat64(%d): len = %d", n, len(b))
						return
					}
					for j := range b {
						b[j] = float64(j)
					}
					PutFloat64(b)
				}
			}
		}()
	}
	wg.Wait()
}

func BenchmarkGetFloat64(b *testing.B) {
	for i := 0; i < b.N; i++ {
		buf := GetFloat64(256)
		PutFloat64(buf)
	}
}

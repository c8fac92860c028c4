package lossy

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrWorkersClosed is returned by Run after Close.
var ErrWorkersClosed = errors.New("lossy: workers closed")

// Workers runs block rows on a bounded number of goroutines. It owns one
// scratch buffer set per goroutine. A Workers is created once per stream
// and shared by every frame of it.
type Workers struct {
	n         int
	blockSize int
	free      chan *scratch

	mu     sync.RWMutex
	closed bool
}

// NewWorkers returns a Workers running up to n rows at a time; n < 1 means
// one.
func NewWorkers(n, blockSize int) *Workers {
	n = max(n, 1)
	w := &Workers{n: n, blockSize: blockSize, free: make(chan *scratch, n)}
	for i := 0; i < n; i++ {
		w.free <- newScratch(blockSize)
	}
	return w
}

// Size returns the number of rows run concurrently.
func (w *Workers) Size() int { return w.n }

func (w *Workers) acquire() *scratch { return <-w.free }

func (w *Workers) release(s *scratch) { w.free <- s }

// Run calls fn for i in [0, count) in increasing order of start, at most
// Size calls at a time, and returns the first error. Each call gets a
// scratch set of its own. fn is called for every i even after the context
// is cancelled.
func (w *Workers) Run(ctx context.Context, count int, fn func(ctx context.Context, i int, s *scratch) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkersClosed
	}
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(w.n)
	for i := 0; i < count; i++ {
		g.Go(func() error {
			s := w.acquire()
			defer w.release(s)
			return fn(ctx, i, s)
		})
	}
	return g.Wait()
}

// do runs fn on a single scratch set on the calling goroutine.
func (w *Workers) do(fn func(s *scratch) error) error {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return ErrWorkersClosed
	}
	s := w.acquire()
	defer w.release(s)
	return fn(s)
}

// Close releases the scratch buffers. It waits for running calls to
// return and is safe to call more than once.
func (w *Workers) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	for i := 0; i < w.n; i++ {
		<-w.free
	}
	return nil
}

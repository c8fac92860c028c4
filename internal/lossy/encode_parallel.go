package lossy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errAborted = errors.New("lossy: row aborted")

// rowSync provides per-row progress for the wavefront encoder.
// Uses an atomic fast path on the wait side to avoid Lock when data is
// ready.
type rowSync struct {
	rows    []rowState
	aborted atomic.Bool
}

// rowState is padded to a full cache line (64 bytes) to prevent false sharing.
type rowState struct {
	done    atomic.Int32
	waiters atomic.Int32
	mu      sync.Mutex
	cond    *sync.Cond
	_       [8]byte
}

func newRowSync(rows int) *rowSync {
	rs := &rowSync{rows: make([]rowState, rows)}
	for i := range rs.rows {
		rs.rows[i].cond = sync.NewCond(&rs.rows[i].mu)
	}
	return rs
}

// waitFor blocks until row y has completed at least needed steps. It
// returns false if the frame was aborted.
func (rs *rowSync) waitFor(y int, needed int32) bool {
	r := &rs.rows[y]
	if r.done.Load() >= needed {
		return !rs.aborted.Load()
	}
	r.waiters.Add(1)
	r.mu.Lock()
	for r.done.Load() < needed && !rs.aborted.Load() {
		r.cond.Wait()
	}
	r.mu.Unlock()
	r.waiters.Add(-1)
	return !rs.aborted.Load()
}

// signal marks that row y has completed done steps and wakes all waiters.
func (rs *rowSync) signal(y int, done int32) {
	r := &rs.rows[y]
	r.done.Store(done)
	if r.waiters.Load() > 0 {
		r.mu.Lock()
		r.mu.Unlock()
		r.cond.Broadcast()
	}
}

// abort releases every waiter; their waitFor returns false.
func (rs *rowSync) abort() {
	rs.aborted.Store(true)
	for i := range rs.rows {
		r := &rs.rows[i]
		r.mu.Lock()
		r.mu.Unlock()
		r.cond.Broadcast()
	}
}

// encodeParallel codes the rows of st as a wavefront: block x of row y
// starts once row y-1 has finished block x. Every row reports progress in
// blocks; cols+1 additionally means the row has been charged to the rate
// controller. With an adaptive controller a row reads its QP only after
// the previous row reached cols+1, so QPs match sequential coding.
func (e *Encoder) encodeParallel(ctx context.Context, st *frameState) error {
	rs := newRowSync(st.rows)
	cols := int32(st.cols)
	adaptive := st.rc.Adaptive()

	var (
		once  sync.Once
		cause error
	)
	err := e.workers.Run(ctx, st.rows, func(ctx context.Context, y int, s *scratch) (err error) {
		defer func() {
			if err != nil && !errors.Is(err, errAborted) {
				once.Do(func() { cause = err })
				rs.abort()
			}
		}()
		if adaptive && y > 0 && !rs.waitFor(y-1, cols+1) {
			return errAborted
		}
		qp := st.rc.QP(st.typ == FrameI)
		wait := func(x int) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if y > 0 && !rs.waitFor(y-1, int32(x)+1) {
				return errAborted
			}
			return nil
		}
		done := func(x int) { rs.signal(y, int32(x)+1) }
		if err := e.encodeRow(s, st, y, qp, wait, done); err != nil {
			return err
		}
		if adaptive {
			st.rc.UseBits(st.out[y].bits)
			st.rc.UpdateUsedRows()
		}
		rs.signal(y, cols+1)
		return nil
	})
	if cause != nil {
		return cause
	}
	return err
}

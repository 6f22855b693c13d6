package heap

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brn/yatsc-sub001/internal/crash"
)

var nodeDestroyed atomic.Int64

type node struct {
	value uint64
}

func (n *node) Destroy() { nodeDestroyed.Add(1) }

func TestHandleRefCount(t *testing.T) {
	h := openHeap(t, nil)
	nodeDestroyed.Store(0)

	a := NewHandle[node](h)
	require.False(t, a.IsNull())
	assert.Equal(t, int32(1), a.Count())
	a.Get().value = 7

	b := a.Clone()
	c := b.Clone()
	assert.Equal(t, int32(3), a.Count())
	assert.Same(t, a.Get(), c.Get())

	a.Release()
	assert.True(t, a.IsNull())
	assert.Equal(t, int32(2), b.Count())
	b.Release()
	assert.Zero(t, nodeDestroyed.Load(), "still referenced")
	assert.Equal(t, uint64(7), c.Get().value)

	c.Release()
	assert.Equal(t, int64(1), nodeDestroyed.Load())

	st := h.Stats()
	assert.Equal(t, st.SmallAllocs, st.SmallFrees, "memory returned with the last reference")

	// Releasing a null handle is harmless.
	c.Release()
	var zero Handle[node]
	zero.Release()
	assert.Equal(t, int32(0), zero.Count())
	assert.Equal(t, int64(1), nodeDestroyed.Load())
}

func TestHandleMove(t *testing.T) {
	h := openHeap(t, nil)
	nodeDestroyed.Store(0)

	a := NewHandle[node](h)
	b := a.Move()
	assert.True(t, a.IsNull())
	assert.Equal(t, int32(1), b.Count(), "moving does not change the count")
	b.Release()
	assert.Equal(t, int64(1), nodeDestroyed.Load())
}

func TestWeakHandleOutlivesStrong(t *testing.T) {
	h := openHeap(t, nil)
	nodeDestroyed.Store(0)

	strong := NewHandle[node](h)
	weak := strong.Weak()
	assert.Equal(t, int32(2), weak.Count())

	strong.Release()
	assert.Equal(t, int64(1), nodeDestroyed.Load(), "destroyed with the last strong handle")
	assert.Equal(t, uint64(0), h.Stats().SmallFrees, "memory stays mapped for the weak reference")
	assert.False(t, weak.IsNull())

	weak.Release()
	assert.True(t, weak.IsNull())
	assert.Equal(t, int64(1), nodeDestroyed.Load(), "no second destroy")
	assert.Equal(t, uint64(1), h.Stats().SmallFrees)

	var none Handle[node]
	assert.True(t, none.Weak().IsNull())
}

func TestWeakHandleReleasedFirst(t *testing.T) {
	tests := []struct {
		name   string
		strong int
		weak   int
	}{
		{"one strong one weak", 1, 1},
		{"two strong one weak", 2, 1},
		{"one strong two weak", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := openHeap(t, nil)
			nodeDestroyed.Store(0)

			first := NewHandle[node](h)
			strong := []Handle[node]{first}
			for range tt.strong - 1 {
				strong = append(strong, first.Clone())
			}
			var weak []WeakHandle[node]
			for range tt.weak {
				weak = append(weak, first.Weak())
			}

			for i := range weak {
				weak[i].Release()
			}
			assert.Zero(t, nodeDestroyed.Load(), "weak release must not destroy")
			assert.Equal(t, int32(tt.strong), strong[0].Count())

			for i := range strong {
				require.Zero(t, nodeDestroyed.Load())
				strong[i].Release()
			}
			assert.Equal(t, int64(1), nodeDestroyed.Load())
			st := h.Stats()
			assert.Equal(t, st.SmallAllocs, st.SmallFrees)
		})
	}
}

func TestHandleConcurrentCloneRelease(t *testing.T) {
	h := openHeap(t, nil)
	nodeDestroyed.Store(0)

	root := NewHandle[node](h)
	var wg sync.WaitGroup
	for range 8 {
		c := root.Clone()
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 1000 {
				x := c.Clone()
				x.Release()
			}
			c.Release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), root.Count())
	assert.Zero(t, nodeDestroyed.Load())
	root.Release()
	assert.Equal(t, int64(1), nodeDestroyed.Load())
}

func TestNullHandleGetAsserts(t *testing.T) {
	prevDebug := crash.Debug()
	prevAbort := crash.SetAbortHandler(func(error) {})
	t.Cleanup(func() {
		crash.SetDebug(prevDebug)
		crash.SetAbortHandler(prevAbort)
	})
	crash.SetDebug(true)

	var null Handle[node]
	assert.Panics(t, func() { null.Get() })
}

func TestLiveHandleDestroyedOnClose(t *testing.T) {
	nodeDestroyed.Store(0)
	h := Open(nil)
	a := NewHandle[node](h)
	_ = a.Clone()
	gone := NewHandle[node](h)
	gone.Release()
	require.Equal(t, int64(1), nodeDestroyed.Load())

	h.Close()
	assert.Equal(t, int64(2), nodeDestroyed.Load())
}

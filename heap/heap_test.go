package heap

import (
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brn/yatsc-sub001/heap/chunk"
	"github.com/brn/yatsc-sub001/internal/vmem"
)

func openHeap(t *testing.T, cfg *Config) *Heap {
	t.Helper()
	h := Open(cfg)
	t.Cleanup(h.Close)
	return h
}

var smallDestroyed atomic.Int64

type small struct {
	a, b uint64
}

func (s *small) Destroy() { smallDestroyed.Add(1) }

// Three object shapes of different size classes.
var (
	test1Destroyed atomic.Int64
	test2Destroyed atomic.Int64
	test3Destroyed atomic.Int64
	hugeDestroyed  atomic.Int64
)

type test1 struct {
	id  uint64
	pad [16]byte
}

func (t *test1) Destroy() { test1Destroyed.Add(1) }

type test2 struct {
	id  uint64
	pad [120]byte
}

func (t *test2) Destroy() { test2Destroyed.Add(1) }

type test3 struct {
	id  uint64
	pad [1000]byte
}

func (t *test3) Destroy() { test3Destroyed.Add(1) }

type huge struct {
	id  uint64
	pad [20000]byte
}

func (t *huge) Destroy() { hugeDestroyed.Add(1) }

type plain struct {
	x, y int64
}

func TestManySmallObjects(t *testing.T) {
	h := openHeap(t, nil)
	smallDestroyed.Store(0)

	const n = 10000
	objs := make([]*small, 0, n)
	seen := make(map[uintptr]bool, n)
	for i := range n {
		p := New[small](h)
		require.NotNil(t, p)
		addr := uintptr(unsafe.Pointer(p))
		require.Zero(t, addr%8)
		require.False(t, seen[addr])
		seen[addr] = true
		assert.Zero(t, *p, "objects start zeroed")
		p.a, p.b = uint64(i), ^uint64(i)
		objs = append(objs, p)
	}
	for i, p := range objs {
		require.Equal(t, uint64(i), p.a)
		require.Equal(t, ^uint64(i), p.b)
		Destruct(h, p)
	}
	assert.Equal(t, int64(n), smallDestroyed.Load())

	st := h.Stats()
	assert.Equal(t, st.SmallAllocs, st.SmallFrees)
}

func TestConcurrentMixedObjects(t *testing.T) {
	h := openHeap(t, nil)
	test1Destroyed.Store(0)
	test2Destroyed.Store(0)
	test3Destroyed.Store(0)

	const workers = 4
	perWorker := 100000
	if testing.Short() {
		perWorker = 10000
	}

	var created [3]atomic.Int64
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := h.Bind()
			defer l.Close()
			rng := rand.New(rand.NewSource(int64(w) + 1))

			type obj struct {
				kind int
				p    unsafe.Pointer
			}
			live := make([]obj, 0, perWorker)
			destruct := func(o obj) {
				switch o.kind {
				case 0:
					Destruct(l, (*test1)(o.p))
				case 1:
					Destruct(l, (*test2)(o.p))
				default:
					Destruct(l, (*test3)(o.p))
				}
			}
			for i := range perWorker {
				kind := rng.Intn(3)
				var p unsafe.Pointer
				switch kind {
				case 0:
					o := New[test1](l)
					o.id = uint64(i)
					p = unsafe.Pointer(o)
				case 1:
					o := New[test2](l)
					o.id = uint64(i)
					p = unsafe.Pointer(o)
				default:
					o := New[test3](l)
					o.id = uint64(i)
					p = unsafe.Pointer(o)
				}
				created[kind].Add(1)
				live = append(live, obj{kind, p})

				if rng.Intn(2) == 0 {
					j := rng.Intn(len(live))
					destruct(live[j])
					live[j] = live[len(live)-1]
					live = live[:len(live)-1]
				}
			}
			for _, o := range live {
				destruct(o)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, created[0].Load(), test1Destroyed.Load())
	assert.Equal(t, created[1].Load(), test2Destroyed.Load())
	assert.Equal(t, created[2].Load(), test3Destroyed.Load())
	st := h.Stats()
	assert.LessOrEqual(t, st.Arenas, workers)
	assert.Equal(t, st.SmallAllocs, st.SmallFrees)
}

func TestLargeObject(t *testing.T) {
	h := openHeap(t, nil)
	hugeDestroyed.Store(0)

	p := New[huge](h)
	require.NotNil(t, p)
	obj := uintptr(unsafe.Pointer(p))
	b := blockOf(h, obj, unsafe.Sizeof(*p))
	assert.True(t, b.IsLarge())
	assert.Equal(t, uintptr(1), uintptr(b)&1)
	assert.Zero(t, b.Addr()%vmem.PageSize())
	assert.Equal(t, obj, b.Addr()+prefixSize)

	p.pad[len(p.pad)-1] = 0xEE
	Destruct(h, p)
	assert.Equal(t, int64(1), hugeDestroyed.Load())

	st := h.Stats()
	assert.Equal(t, uint64(1), st.LargeAllocs)
	assert.Equal(t, uint64(1), st.LargeFrees)
}

func TestAllocateRoundTrip(t *testing.T) {
	h := openHeap(t, nil)
	sizes := []uintptr{8, 9, 16, 100, 256, 4000, 16384, 16385, 100_000, 1 << 20, 3<<20 + 5}
	for _, size := range sizes {
		t.Run(fmt.Sprint(size), func(t *testing.T) {
			b := h.Allocate(size)
			require.False(t, b.IsNil())
			assert.Equal(t, size > h.MaxSmall(), b.IsLarge())
			assert.Zero(t, b.Addr()%8)

			mem := unsafe.Slice((*byte)(b.Pointer()), size)
			for i := range mem {
				mem[i] = byte(i * 31)
			}
			for i := range mem {
				if mem[i] != byte(i*31) {
					t.Fatalf("byte %d corrupted", i)
				}
			}
			h.Deallocate(b)
		})
	}
}

func TestAllocateAfterDeallocateReusesBlock(t *testing.T) {
	h := openHeap(t, nil)
	l := h.Bind()
	defer l.Close()

	for _, size := range []uintptr{8, 48, 4000, 16384, 20000, 1 << 20} {
		first := l.Allocate(size)
		l.Deallocate(first)
		again := l.Allocate(size)
		assert.Equal(t, first, again, "size %d", size)
		l.Deallocate(again)
	}
}

func TestSteadyStateMappingIsBounded(t *testing.T) {
	h := openHeap(t, nil)
	l := h.Bind()
	defer l.Close()

	sizes := []uintptr{8, 9, 16, 100, 256, 4000, 16384, 16385, 100_000, 1 << 20, 3<<20 + 5}
	blocks := make([]Block, len(sizes))
	cycle := func(round int) {
		for i, size := range sizes {
			blocks[i] = l.Allocate(size)
			mem := unsafe.Slice((*byte)(blocks[i].Pointer()), size)
			mem[0], mem[size-1] = byte(round), byte(round)
		}
		for i, size := range sizes {
			mem := unsafe.Slice((*byte)(blocks[i].Pointer()), size)
			require.Equal(t, byte(round), mem[0])
			require.Equal(t, byte(round), mem[size-1])
			l.Deallocate(blocks[i])
		}
	}

	cycle(0)
	warm := h.Stats()
	const rounds = 200
	for round := 1; round <= rounds; round++ {
		cycle(round)
	}
	st := h.Stats()

	assert.Equal(t, warm.MappedBlocks, st.MappedBlocks, "no new mappings after warm-up")
	assert.Equal(t, warm.MappedBytes, st.MappedBytes)
	assert.Equal(t, warm.Pools, st.Pools)
	assert.Equal(t, st.SmallAllocs, st.SmallFrees)
	assert.Equal(t, st.LargeAllocs, st.LargeFrees)
	assert.Zero(t, st.LargeLive)
	assert.Equal(t, warm.LargeBinHits+uint64(rounds*4), st.LargeBinHits, "every large request reused a binned block")
}

func TestNoOverlapAcrossClasses(t *testing.T) {
	h := openHeap(t, nil)
	l := h.Bind()
	defer l.Close()

	rng := rand.New(rand.NewSource(3))
	type span struct{ lo, hi uintptr }
	var spans []span
	var blocks []Block
	for range 2000 {
		size := uintptr(rng.Intn(30000) + 1)
		b := l.Allocate(size)
		spans = append(spans, span{b.Addr(), b.Addr() + size})
		blocks = append(blocks, b)
	}
	for i := range spans {
		for j := i + 1; j < len(spans); j++ {
			a, b := spans[i], spans[j]
			require.False(t, a.lo < b.hi && b.lo < a.hi, "blocks %d and %d overlap", i, j)
		}
	}
	for _, b := range blocks {
		l.Deallocate(b)
	}
}

func TestPlainTypeHasNoDestructor(t *testing.T) {
	h := openHeap(t, nil)
	p := New[plain](h)
	p.x, p.y = 1, 2
	assert.Zero(t, prefixAt(uintptr(unsafe.Pointer(p))-prefixSize).dtor)
	Destruct(h, p)
	Destruct[plain](h, nil)
}

func TestCloseRunsLiveDestructors(t *testing.T) {
	smallDestroyed.Store(0)
	hugeDestroyed.Store(0)

	h := Open(nil)
	for range 10 {
		New[small](h)
	}
	dead := New[small](h)
	Destruct(h, dead)
	New[huge](h)
	New[plain](h)
	require.Equal(t, int64(1), smallDestroyed.Load())

	h.Close()
	assert.Equal(t, int64(11), smallDestroyed.Load())
	assert.Equal(t, int64(1), hugeDestroyed.Load())

	h.Close()
	assert.Equal(t, int64(11), smallDestroyed.Load(), "second close is a no-op")
}

func TestBindReusesArena(t *testing.T) {
	h := openHeap(t, nil)
	l := h.Bind()
	a := l.Arena()
	require.NotNil(t, a)
	b := l.Allocate(64)
	l.Deallocate(b)
	l.Close()
	assert.Nil(t, l.Arena())
	l.Close()

	l2 := h.Bind()
	defer l2.Close()
	assert.Same(t, a, l2.Arena())
	assert.Equal(t, 1, h.Stats().Arenas)
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
	p := New[plain](Default())
	Destruct(Default(), p)
}

func TestCustomConfig(t *testing.T) {
	cfg := chunk.ConfigCoarse
	h := openHeap(t, &Config{SizeClasses: &cfg, MaxLargeBinBytes: 1 << 20})
	assert.Equal(t, uintptr(16384), h.MaxSmall())
	b := h.Allocate(2 << 20)
	h.Deallocate(b)
	assert.Equal(t, uint64(1), h.Stats().LargeBinTrims)
}

func BenchmarkNewDestruct(b *testing.B) {
	h := Open(nil)
	defer h.Close()
	l := h.Bind()
	defer l.Close()
	b.ReportAllocs()
	for b.Loop() {
		Destruct(l, New[small](l))
	}
}

func BenchmarkGoNew(b *testing.B) {
	b.ReportAllocs()
	var sink *small
	for b.Loop() {
		sink = new(small)
	}
	_ = sink
}

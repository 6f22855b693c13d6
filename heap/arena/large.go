package arena

import (
	"fmt"
	"sync/atomic"
	"unsafe"

	"github.com/brn/yatsc-sub001/heap/aligned"
	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/logger"
	"github.com/brn/yatsc-sub001/internal/spin"
	"github.com/brn/yatsc-sub001/internal/vmem"
	"github.com/brn/yatsc-sub001/pkg/rbtree"
)

const largeMagic = 0x4c524745 // "LRGE"

// largeMeta occupies the header page in front of every large payload.
type largeMeta struct {
	magic uint32
	ref   rbtree.Ref
}

func metaOf(payload uintptr) *largeMeta {
	return (*largeMeta)(unsafe.Pointer(payload - vmem.PageSize())) //nolint:govet // mapped memory
}

// largeHeader describes one large mapping, live or sitting in the bin.
// Binned headers of the same size hang off the tree node through next.
type largeHeader struct {
	rbtree.Link[uintptr]

	base  uintptr
	size  uintptr // payload bytes, page rounded
	next  rbtree.Ref
	live  bool
	typed bool
}

func (h *largeHeader) payload() uintptr { return h.base + vmem.PageSize() }

type largeBin struct {
	mu     spin.Lock
	slab   *rbtree.Slab[largeHeader]
	tree   *rbtree.Tree[uintptr, largeHeader, *largeHeader]
	bytes  uint64
	blocks int
	max    uint64

	allocs atomic.Uint64
	frees  atomic.Uint64
	hits   atomic.Uint64
	trims  atomic.Uint64
	live   atomic.Int64
}

func (b *largeBin) init(limit uint64) {
	b.slab = rbtree.NewSlab[largeHeader](64)
	b.tree = rbtree.New[uintptr, largeHeader](b.slab)
	b.max = limit
}

// AllocateLarge serves size bytes from the large bin, mapping a new region
// when no freed block of exactly the page-rounded size is available.
func (c *CentralArena) AllocateLarge(size uintptr) Block {
	c.checkOpen()
	return LargeBlock(c.large.acquire(size))
}

func (b *largeBin) acquire(size uintptr) uintptr {
	span, ok := vmem.SpanSize(vmem.PageSize(), max(size, 1))
	if !ok {
		crash.Fatal(fmt.Errorf("arena: large allocation of %d bytes: %w", size, vmem.ErrOutOfMemory))
		return 0
	}
	size = span - vmem.PageSize()
	b.allocs.Add(1)
	b.live.Add(1)

	b.mu.Lock()
	if r := b.take(size); r != rbtree.Nil {
		h := b.slab.At(r)
		h.live = true
		b.mu.Unlock()
		b.hits.Add(1)
		logger.Debug("arena: large bin hit", "size", size)
		return h.payload()
	}
	b.mu.Unlock()

	base := aligned.Allocate(span, vmem.PageSize())

	b.mu.Lock()
	r, h := b.slab.New()
	h.base = base
	h.size = size
	h.next = rbtree.Nil
	h.live = true
	b.mu.Unlock()

	m := metaOf(h.payload())
	m.magic = largeMagic
	m.ref = r
	logger.Debug("arena: large map", "size", size, "base", base)
	return base + vmem.PageSize()
}

// take removes one binned header of exactly size. b.mu must be held.
func (b *largeBin) take(size uintptr) rbtree.Ref {
	r := b.tree.Find(size)
	if r == rbtree.Nil {
		return rbtree.Nil
	}
	head := b.slab.At(r)
	if head.next != rbtree.Nil {
		r = head.next
		head.next = b.slab.At(r).next
	} else {
		b.tree.DeleteNode(r)
	}
	b.slab.At(r).next = rbtree.Nil
	b.bytes -= uint64(size)
	b.blocks--
	return r
}

func (b *largeBin) header(payload uintptr) (rbtree.Ref, *largeHeader) {
	m := metaOf(payload)
	if m.magic != largeMagic {
		crash.Fatalf("arena: %#x is not a large block", payload)
		return rbtree.Nil, nil
	}
	r := m.ref
	if !b.slab.Live(r) {
		crash.Fatalf("arena: large block %#x has a stale header", payload)
		return rbtree.Nil, nil
	}
	h := b.slab.At(r)
	if !h.live {
		crash.Fatalf("arena: double free of large block %#x", payload)
		return rbtree.Nil, nil
	}
	return r, h
}

func (b *largeBin) release(payload uintptr) {
	b.mu.Lock()
	r, h := b.header(payload)
	h.live = false
	h.typed = false
	b.live.Add(-1)
	b.frees.Add(1)

	if b.max > 0 && b.bytes+uint64(h.size) > b.max {
		base, size := h.base, h.size
		b.slab.Free(r)
		b.mu.Unlock()
		b.trims.Add(1)
		logger.Debug("arena: large bin full, unmapping", "size", size)
		aligned.Deallocate(base, vmem.PageSize()+size)
		return
	}

	if existing := b.tree.Find(h.size); existing != rbtree.Nil {
		e := b.slab.At(existing)
		h.next = e.next
		e.next = r
	} else {
		h.next = rbtree.Nil
		b.tree.Insert(h.size, r)
	}
	b.bytes += uint64(h.size)
	b.blocks++
	b.mu.Unlock()
}

func (b *largeBin) markTyped(payload uintptr) {
	b.mu.Lock()
	_, h := b.header(payload)
	h.typed = true
	b.mu.Unlock()
}

// sweep calls destroy for every live typed block. Destructors run without
// the bin lock held and may free other blocks.
func (b *largeBin) sweep(destroy func(uintptr)) {
	b.mu.Lock()
	var refs []rbtree.Ref
	b.slab.Each(func(r rbtree.Ref, h *largeHeader) bool {
		if h.live && h.typed {
			refs = append(refs, r)
		}
		return true
	})
	b.mu.Unlock()

	for _, r := range refs {
		b.mu.Lock()
		h := b.slab.At(r)
		run := b.slab.Live(r) && h.live && h.typed
		h.typed = false
		payload := h.payload()
		b.mu.Unlock()
		if run {
			destroy(payload)
		}
	}
}

func (b *largeBin) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.slab.Each(func(_ rbtree.Ref, h *largeHeader) bool {
		aligned.Deallocate(h.base, vmem.PageSize()+h.size)
		return true
	})
	b.slab = rbtree.NewSlab[largeHeader](64)
	b.tree = rbtree.New[uintptr, largeHeader](b.slab)
	b.bytes, b.blocks = 0, 0
}

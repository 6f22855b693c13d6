package chunk

import (
	"math/bits"
	"sync/atomic"
	"unsafe"

	"github.com/brn/yatsc-sub001/heap/aligned"
	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/logger"
	"github.com/brn/yatsc-sub001/pkg/rbtree"
)

const (
	// SlabSize is the size and alignment of every slab.
	SlabSize = 1 << 20
	slabMask = SlabSize - 1
)

// slabHeader sits at the start of every slab. The typed-slot bitmap
// (words uint64s) follows it directly.
type slabHeader struct {
	pool  uint32
	words uint32
	next  uintptr
	live  atomic.Int64
}

const slabHeaderSize = unsafe.Sizeof(slabHeader{})

func headerAt(slab uintptr) *slabHeader {
	return (*slabHeader)(unsafe.Pointer(slab)) //nolint:govet // slab is mapped memory
}

func (h *slabHeader) bitmap() []atomic.Uint64 {
	return unsafe.Slice((*atomic.Uint64)(unsafe.Add(unsafe.Pointer(h), slabHeaderSize)), h.words)
}

// Pool distributes slots of one size class. The zero value must be set up
// with Init before use and must not be copied afterwards.
type Pool struct {
	rbtree.Link[uintptr]

	id      uint32
	size    uintptr
	words   uintptr
	dataOff uintptr
	perSlab uintptr

	first   uintptr // newest slab, head of the slab list
	brk     uintptr
	end     uintptr
	nslabs  atomic.Int32
	free    atomic.Uintptr
	live    atomic.Int64
	dist    atomic.Uint64
	reused  atomic.Uint64
	freed   atomic.Uint64
	running bool
}

// Stats is a snapshot of a pool's counters.
type Stats struct {
	SlotSize     uintptr
	Slabs        int
	SlotsPerSlab int
	Live         int64
	Distributed  uint64 // Total slots handed out
	Reused       uint64 // Of which came from the free list
	Freed        uint64
}

// Init prepares p for slots of size bytes and maps its first slab. size must
// be a non-zero multiple of Alignment and small enough for a slab to hold
// at least one slot.
func (p *Pool) Init(size uintptr) {
	if size == 0 || size%Alignment != 0 {
		crash.Fatalf("chunk: invalid slot size %d", size)
		return
	}
	slots := (SlabSize - slabHeaderSize) / size
	words := (slots + 63) / 64
	dataOff := alignUp(slabHeaderSize + words*8)
	perSlab := (SlabSize - dataOff) / size
	if perSlab == 0 {
		crash.Fatalf("chunk: slot size %d does not fit a slab", size)
		return
	}

	p.size = size
	p.words = words
	p.dataOff = dataOff
	p.perSlab = perSlab
	p.running = true
	p.id = register(p)
	p.grow()
}

// SlotSize returns the size of every slot in the pool.
func (p *Pool) SlotSize() uintptr { return p.size }

// Distribute returns a free slot. Contents are unspecified.
func (p *Pool) Distribute() uintptr {
	slot := p.pop()
	if slot != 0 {
		p.reused.Add(1)
	} else {
		if p.brk+p.size > p.end {
			p.grow()
		}
		slot = p.brk
		p.brk += p.size
	}
	headerAt(slot &^ slabMask).live.Add(1)
	p.live.Add(1)
	p.dist.Add(1)
	return slot
}

// Dealloc returns slot to the pool. It is safe to call from any goroutine.
func (p *Pool) Dealloc(slot uintptr) {
	h := headerAt(slot &^ slabMask)
	crash.Assert(h.pool == p.id, "chunk: slot returned to the wrong pool")
	idx := (slot - (slot &^ slabMask) - p.dataOff) / p.size
	h.bitmap()[idx/64].And(^(uint64(1) << (idx % 64)))
	h.live.Add(-1)
	p.live.Add(-1)
	p.freed.Add(1)
	p.push(slot)
}

// MarkTyped records that slot holds an object whose destructor must run if
// the pool is closed while the slot is live.
func (p *Pool) MarkTyped(slot uintptr) {
	h := headerAt(slot &^ slabMask)
	idx := (slot - (slot &^ slabMask) - p.dataOff) / p.size
	h.bitmap()[idx/64].Or(uint64(1) << (idx % 64))
}

// Sweep calls destroy for every live typed slot. A slot's typed mark is
// cleared before its destructor runs, so destructors may free other slots.
func (p *Pool) Sweep(destroy func(slot uintptr)) {
	for slab := p.first; slab != 0; slab = headerAt(slab).next {
		bm := headerAt(slab).bitmap()
		for w := range bm {
			word := &bm[w]
			for {
				set := word.Load()
				if set == 0 {
					break
				}
				bit := uint64(1) << bits.TrailingZeros64(set)
				if !word.CompareAndSwap(set, set&^bit) {
					continue
				}
				idx := uintptr(w*64 + bits.TrailingZeros64(bit))
				destroy(slab + p.dataOff + idx*p.size)
			}
		}
	}
}

// Close unmaps all slabs. Slots still live become invalid.
func (p *Pool) Close() {
	if !p.running {
		return
	}
	for slab := p.first; slab != 0; {
		next := headerAt(slab).next
		aligned.Deallocate(slab, SlabSize)
		slab = next
	}
	logger.Debug("chunk: pool closed", "size", p.size, "slabs", p.nslabs.Load(), "live", p.live.Load())
	unregister(p.id)
	p.first, p.brk, p.end = 0, 0, 0
	p.free.Store(0)
	p.nslabs.Store(0)
	p.running = false
}

// Stats returns the pool counters.
func (p *Pool) Stats() Stats {
	return Stats{
		SlotSize:     p.size,
		Slabs:        int(p.nslabs.Load()),
		SlotsPerSlab: int(p.perSlab),
		Live:         p.live.Load(),
		Distributed:  p.dist.Load(),
		Reused:       p.reused.Load(),
		Freed:        p.freed.Load(),
	}
}

// OwnerOf returns the pool that distributed slot, or nil if the pool has
// been closed.
func OwnerOf(slot uintptr) *Pool {
	return lookup(headerAt(slot &^ slabMask).pool)
}

func (p *Pool) grow() {
	slab := aligned.Allocate(SlabSize, SlabSize)
	h := headerAt(slab)
	h.pool = p.id
	h.words = uint32(p.words)
	h.next = p.first
	p.first = slab
	p.brk = slab + p.dataOff
	p.end = p.brk + p.perSlab*p.size
	n := p.nslabs.Add(1)
	logger.Debug("chunk: new slab", "size", p.size, "slab", slab, "slabs", n)
}

func (p *Pool) push(slot uintptr) {
	next := (*uintptr)(unsafe.Pointer(slot)) //nolint:govet // slot is mapped memory
	for {
		head := p.free.Load()
		*next = head
		if p.free.CompareAndSwap(head, slot) {
			return
		}
	}
}

func (p *Pool) pop() uintptr {
	for {
		head := p.free.Load()
		if head == 0 {
			return 0
		}
		next := *(*uintptr)(unsafe.Pointer(head)) //nolint:govet // slot is mapped memory
		if p.free.CompareAndSwap(head, next) {
			return head
		}
	}
}

package heap

import (
	"errors"
	"sync"

	"github.com/brn/yatsc-sub001/heap/arena"
	"github.com/brn/yatsc-sub001/heap/chunk"
	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/logger"
)

// ErrClosed is reported when a closed Heap is used.
var ErrClosed = errors.New("heap: use of closed heap")

// Block is a raw allocation. See arena.Block.
type Block = arena.Block

// Stats is a snapshot of allocator counters.
type Stats = arena.Stats

// Config configures a Heap.
type Config struct {
	// SizeClasses selects the small-object size classes.
	// Default: chunk.DefaultConfig (8-byte steps up to 256, then x1.5 up to 16 KiB)
	SizeClasses *chunk.SizeClassConfig

	// MaxLargeBinBytes caps the freed large-object bytes kept for reuse.
	// Default: 0 (unlimited)
	MaxLargeBinBytes uint64

	// Debug enables contract assertions such as null-handle checks.
	// Default: false, or true when YATSC_HEAP_DEBUG is set
	Debug bool
}

// Allocator is implemented by Heap and Local.
type Allocator interface {
	Allocate(size uintptr) Block
	Deallocate(b Block)
	owner() *Heap
}

// Heap is an allocation root. It is safe for concurrent use.
type Heap struct {
	central *arena.CentralArena
}

var _ Allocator = (*Heap)(nil)

// Open creates a Heap. A nil cfg uses defaults.
func Open(cfg *Config) *Heap {
	var acfg arena.Config
	if cfg != nil {
		acfg.SizeClasses = cfg.SizeClasses
		acfg.MaxLargeBinBytes = cfg.MaxLargeBinBytes
		if cfg.Debug {
			crash.SetDebug(true)
		}
	}
	h := &Heap{central: arena.New(&acfg)}
	logger.Debug("heap: open", "classes", h.central.Table().NumClasses(), "max_small", h.central.MaxSmall())
	return h
}

// Default returns the process-wide Heap, creating it on first use. It is
// never closed.
var Default = sync.OnceValue(func() *Heap { return Open(nil) })

// Allocate returns a block of at least size bytes, 8-byte aligned. Blocks
// above MaxSmall are page aligned and tagged large.
func (h *Heap) Allocate(size uintptr) Block {
	h.checkOpen()
	return h.central.Allocate(size)
}

// Deallocate frees a block returned by Allocate. It may be called from any
// goroutine.
func (h *Heap) Deallocate(b Block) {
	h.central.Deallocate(b)
}

func (h *Heap) owner() *Heap { return h }

// MaxSmall returns the largest request served from size-class pools.
func (h *Heap) MaxSmall() uintptr { return h.central.MaxSmall() }

// Bind acquires an arena for the calling goroutine. Close the Local to hand
// the arena back.
func (h *Heap) Bind() *Local {
	h.checkOpen()
	return &Local{heap: h, la: h.central.Acquire()}
}

// Stats returns a snapshot of the heap counters.
func (h *Heap) Stats() Stats { return h.central.Stats() }

// Close runs the destructors of live typed objects and unmaps all memory.
// Every Local must be closed first. Closing twice is a no-op.
func (h *Heap) Close() {
	if h.central.Closed() {
		return
	}
	h.central.Close(destroyTyped)
	logger.Debug("heap: closed")
}

func (h *Heap) checkOpen() {
	if h.central.Closed() {
		crash.Fatal(ErrClosed)
	}
}

// Local is a Heap bound to one arena. It must only be used by the goroutine
// that called Bind.
type Local struct {
	heap *Heap
	la   *arena.LocalArena
}

var _ Allocator = (*Local)(nil)

// Allocate is Heap.Allocate without the arena handoff.
func (l *Local) Allocate(size uintptr) Block {
	crash.Assert(l.la != nil, "heap: allocate on closed Local")
	return l.heap.central.AllocateIn(l.la, size)
}

// Deallocate frees b.
func (l *Local) Deallocate(b Block) { l.heap.Deallocate(b) }

func (l *Local) owner() *Heap { return l.heap }

// Arena returns the bound arena, or nil after Close.
func (l *Local) Arena() *arena.LocalArena { return l.la }

// Close releases the arena for reuse by other goroutines.
func (l *Local) Close() {
	if l.la == nil {
		return
	}
	l.heap.central.Release(l.la)
	l.la = nil
}

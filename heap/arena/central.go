package arena

import (
	"errors"
	"sync/atomic"

	"github.com/brn/yatsc-sub001/heap/chunk"
	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/logger"
)

// ErrClosed is the fatal error for allocating from a closed CentralArena.
var ErrClosed = errors.New("arena: allocation from closed arena")

// Config configures a CentralArena.
type Config struct {
	// SizeClasses selects the small-object size classes.
	// Default: chunk.DefaultConfig
	SizeClasses *chunk.SizeClassConfig

	// MaxLargeBinBytes caps the bytes kept in the large bin for reuse.
	// Freed large blocks that would exceed it are unmapped instead.
	// Default: 0 (unlimited)
	MaxLargeBinBytes uint64
}

// CentralArena is the process-level allocation root.
type CentralArena struct {
	table *chunk.Table

	head     atomic.Pointer[LocalArena]
	arenas   atomic.Int32
	released atomic.Int64
	pools    atomic.Int64

	smallAllocs atomic.Uint64
	smallFrees  atomic.Uint64

	large  largeBin
	closed atomic.Bool
}

// New returns a CentralArena with no local arenas. A nil cfg uses defaults.
func New(cfg *Config) *CentralArena {
	sc := chunk.DefaultConfig
	var maxBin uint64
	if cfg != nil {
		if cfg.SizeClasses != nil {
			sc = *cfg.SizeClasses
		}
		maxBin = cfg.MaxLargeBinBytes
	}
	c := &CentralArena{table: chunk.NewTable(sc)}
	c.large.init(maxBin)
	return c
}

// Table returns the size-class table.
func (c *CentralArena) Table() *chunk.Table { return c.table }

// MaxSmall returns the largest request served by a local arena.
func (c *CentralArena) MaxSmall() uintptr { return c.table.Max() }

// Acquire returns a local arena locked for the caller. Released arenas are
// reused before a new one is created.
func (c *CentralArena) Acquire() *LocalArena {
	c.checkOpen()
	if la := c.findUnlockedArena(); la != nil {
		return la
	}
	return c.newArena()
}

// Release hands la back for reuse. It is the counterpart of Acquire.
func (c *CentralArena) Release(la *LocalArena) {
	if la != nil {
		la.ReleaseLock()
	}
}

func (c *CentralArena) findUnlockedArena() *LocalArena {
	// Nothing was ever released: every arena is busy.
	if c.released.Load() <= 0 {
		return nil
	}
	for la := c.head.Load(); la != nil; la = la.next {
		if la.AcquireLock() {
			c.released.Add(-1)
			return la
		}
	}
	return nil
}

func (c *CentralArena) newArena() *LocalArena {
	la := newLocalArena(c, c.arenas.Add(1)-1)
	la.locked.Store(true)
	for {
		old := c.head.Load()
		la.next = old
		if c.head.CompareAndSwap(old, la) {
			break
		}
	}
	logger.Debug("arena: new local arena", "id", la.id)
	return la
}

// Arenas calls fn for every local arena, newest first, until fn returns
// false.
func (c *CentralArena) Arenas(fn func(*LocalArena) bool) {
	for la := c.head.Load(); la != nil; la = la.next {
		if !fn(la) {
			return
		}
	}
}

// Allocate serves size bytes using a temporarily acquired arena.
func (c *CentralArena) Allocate(size uintptr) Block {
	if size > c.table.Max() {
		return c.AllocateLarge(size)
	}
	la := c.Acquire()
	b := c.AllocateIn(la, size)
	la.ReleaseLock()
	return b
}

// AllocateIn serves size bytes from la, which the caller holds, falling
// back to the large bin above the small-object ceiling.
func (c *CentralArena) AllocateIn(la *LocalArena, size uintptr) Block {
	c.checkOpen()
	if size == 0 {
		size = 1
	}
	if p := la.Allocate(size); p != 0 {
		c.smallAllocs.Add(1)
		return Block(p)
	}
	return c.AllocateLarge(size)
}

// Deallocate returns b to wherever it came from. Deallocating the zero
// block is a no-op.
func (c *CentralArena) Deallocate(b Block) {
	if b.IsNil() {
		return
	}
	if b.IsLarge() {
		c.large.release(b.Addr())
		return
	}
	p := chunk.OwnerOf(b.Addr())
	if p == nil {
		crash.Fatalf("arena: deallocate %s: no owning pool", b)
		return
	}
	p.Dealloc(b.Addr())
	c.smallFrees.Add(1)
}

// MarkTyped records that b holds an object whose destructor must run if the
// arena is closed while b is live.
func (c *CentralArena) MarkTyped(b Block) {
	if b.IsLarge() {
		c.large.markTyped(b.Addr())
		return
	}
	if p := chunk.OwnerOf(b.Addr()); p != nil {
		p.MarkTyped(b.Addr())
	}
}

// Close calls destroy for every live typed allocation and unmaps all
// memory. No goroutine may hold an arena. destroy may be nil.
func (c *CentralArena) Close(destroy func(addr uintptr)) {
	if !c.closed.CompareAndSwap(false, true) {
		return
	}
	if destroy != nil {
		c.Arenas(func(la *LocalArena) bool {
			la.sweep(destroy)
			return true
		})
		c.large.sweep(destroy)
	}
	c.Arenas(func(la *LocalArena) bool {
		crash.Assert(!la.Locked(), "arena: close while a local arena is held")
		la.close()
		return true
	})
	c.large.close()
	logger.Debug("arena: closed", "arenas", c.arenas.Load())
}

// Closed reports whether Close has run.
func (c *CentralArena) Closed() bool { return c.closed.Load() }

// Pools of a closed arena are unregistered, so a slab grown afterwards
// could not be traced back to its pool.
func (c *CentralArena) checkOpen() {
	if c.closed.Load() {
		crash.Fatal(ErrClosed)
	}
}

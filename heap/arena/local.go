package arena

import (
	"sync/atomic"

	"github.com/brn/yatsc-sub001/heap/chunk"
	"github.com/brn/yatsc-sub001/internal/logger"
	"github.com/brn/yatsc-sub001/pkg/rbtree"
)

// PoolsPerPage is how many pool records a local arena allocates at a time.
const PoolsPerPage = 70

// LocalArena is a single goroutine's allocation context.
type LocalArena struct {
	id      int32
	central *CentralArena
	next    *LocalArena // immutable once published
	locked  atomic.Bool

	slab  *rbtree.Slab[chunk.Pool]
	pools *rbtree.Tree[uintptr, chunk.Pool, *chunk.Pool]
}

func newLocalArena(c *CentralArena, id int32) *LocalArena {
	slab := rbtree.NewSlab[chunk.Pool](PoolsPerPage)
	return &LocalArena{
		id:      id,
		central: c,
		slab:    slab,
		pools:   rbtree.New[uintptr, chunk.Pool](slab),
	}
}

// ID returns the arena's creation index.
func (la *LocalArena) ID() int32 { return la.id }

// AcquireLock takes the arena without blocking and reports success.
func (la *LocalArena) AcquireLock() bool {
	return la.locked.CompareAndSwap(false, true)
}

// ReleaseLock hands the arena back for reuse by any goroutine.
func (la *LocalArena) ReleaseLock() {
	if la.locked.CompareAndSwap(true, false) {
		la.central.released.Add(1)
	}
}

// Locked reports whether some goroutine holds the arena.
func (la *LocalArena) Locked() bool { return la.locked.Load() }

// Allocate returns a slot of at least size bytes, or 0 when size is above
// the small-object ceiling. The caller must hold the arena.
func (la *LocalArena) Allocate(size uintptr) uintptr {
	class := la.central.table.Class(size)
	if class == 0 {
		return 0
	}
	return la.pool(class).Distribute()
}

func (la *LocalArena) pool(class uintptr) *chunk.Pool {
	if r := la.pools.Find(class); r != rbtree.Nil {
		return la.pools.At(r)
	}
	r, p := la.slab.New()
	p.Init(class)
	la.pools.Insert(class, r)
	la.central.pools.Add(1)
	logger.Debug("arena: new pool", "arena", la.id, "class", class)
	return p
}

// Pools returns the counters of every pool in class order. The caller must
// hold the arena.
func (la *LocalArena) Pools() []chunk.Stats {
	out := make([]chunk.Stats, 0, la.pools.Len())
	la.pools.Ascend(func(_ rbtree.Ref, p *chunk.Pool) bool {
		out = append(out, p.Stats())
		return true
	})
	return out
}

func (la *LocalArena) sweep(destroy func(uintptr)) {
	la.pools.Ascend(func(_ rbtree.Ref, p *chunk.Pool) bool {
		p.Sweep(destroy)
		return true
	})
}

func (la *LocalArena) close() {
	la.pools.Ascend(func(_ rbtree.Ref, p *chunk.Pool) bool {
		p.Close()
		return true
	})
}

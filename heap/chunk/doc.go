// Package chunk implements size-class pools: the per-class slot allocators
// each arena keeps.
//
// # Overview
//
// A Pool hands out fixed-size slots carved from 1 MB slabs. Every slab is
// aligned to its own size, so the slab header of any slot is found by
// masking the slot address:
//
//	slab (1 MB aligned)
//	+-------------+--------+--------+--------+-----+
//	| slab header | slot 0 | slot 1 | slot 2 | ... |
//	+-------------+--------+--------+--------+-----+
//
// The header records the owning pool, the next slab of the same pool, a
// live-slot counter and a bitmap of slots that hold typed objects (objects
// whose destructor must run if the pool is torn down while they are live).
//
// Slots are distributed from, in order: the free list, the bump cursor of
// the newest slab, a freshly mapped slab. Freed slots go back on the free
// list (LIFO, no coalescing).
//
// # Concurrency
//
// Distribute, MarkTyped, Sweep and Close must only be called by the goroutine that
// currently holds the owning arena. Dealloc may be called from any
// goroutine: it pushes onto a lock-free stack. Because only the owner pops,
// the stack cannot suffer ABA.
//
// # Size Classes
//
// Table maps request sizes to slot sizes: linear steps for small sizes, then
// geometric growth up to the small-object ceiling (16 KiB by default).
// Anything larger is a large object and never reaches a Pool.
package chunk

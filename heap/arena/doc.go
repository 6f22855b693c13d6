// Package arena routes allocations to per-goroutine local arenas and to the
// shared large-object bin.
//
// # Overview
//
// A CentralArena owns every LocalArena ever created, in an append-only list
// published with compare-and-swap. A LocalArena is used by one goroutine at
// a time: the goroutine takes it with AcquireLock (a non-blocking
// test-and-set) and gives it back with ReleaseLock. Each LocalArena keeps a
// red-black tree of chunk.Pool values keyed by slot size and creates pools
// on first use.
//
// Requests above the small-object ceiling skip the local arenas. They are
// served from the large bin, a red-black tree of freed large mappings keyed
// by page-rounded size and guarded by a spinlock. A miss maps a new region:
//
//	+-------------+------------------------------+
//	| header page | payload (page aligned)       |
//	+-------------+------------------------------+
//
// The header page records which bin entry describes the mapping, so
// Deallocate can find it from the payload address alone.
//
// # Blocks
//
// Allocate returns a Block. The low bit of a Block marks a large object;
// Addr strips it. Deallocate dispatches on that bit.
//
// # Lifetime
//
// Arenas are never removed from the list. A LocalArena that is released is
// picked up by the next goroutine that needs one. Close tears everything
// down and must only be called when no goroutine holds an arena.
package arena

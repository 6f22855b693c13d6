package arena

import "github.com/brn/yatsc-sub001/heap/aligned"

// Stats is a snapshot of allocator activity. Counters are read without
// stopping allocation, so they are only mutually consistent when the heap
// is idle.
type Stats struct {
	Arenas         int
	ReleasedArenas int64
	Pools          int64

	SmallAllocs uint64
	SmallFrees  uint64

	LargeAllocs    uint64
	LargeFrees     uint64
	LargeLive      int64
	LargeBinHits   uint64
	LargeBinTrims  uint64
	LargeBinBlocks int
	LargeBinBytes  uint64

	// Process-wide mapping counters from the aligned allocator.
	MappedBlocks   int64
	MappedBytes    int64
	AlignedRetries int64
}

// Stats returns a snapshot of the arena counters.
func (c *CentralArena) Stats() Stats {
	c.large.mu.Lock()
	binBlocks, binBytes := c.large.blocks, c.large.bytes
	c.large.mu.Unlock()

	al := aligned.Snapshot()
	return Stats{
		Arenas:         int(c.arenas.Load()),
		ReleasedArenas: c.released.Load(),
		Pools:          c.pools.Load(),
		SmallAllocs:    c.smallAllocs.Load(),
		SmallFrees:     c.smallFrees.Load(),
		LargeAllocs:    c.large.allocs.Load(),
		LargeFrees:     c.large.frees.Load(),
		LargeLive:      c.large.live.Load(),
		LargeBinHits:   c.large.hits.Load(),
		LargeBinTrims:  c.large.trims.Load(),
		LargeBinBlocks: binBlocks,
		LargeBinBytes:  binBytes,
		MappedBlocks:   al.Blocks,
		MappedBytes:    al.Bytes,
		AlignedRetries: al.Retries,
	}
}

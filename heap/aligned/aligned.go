// Package aligned maps memory blocks whose start address is a multiple of a
// caller-chosen power-of-two alignment.
//
// # Overview
//
// The system only guarantees page (POSIX) or allocation-granularity (Windows)
// alignment for fresh mappings. For anything coarser the allocator reserves
// an oversized inaccessible region, rounds its start up to the alignment and
// commits exactly the aligned range:
//
//	base                 aligned                     aligned+size      base+total
//	|------ head ------->|=========== block ==========|------ tail ------|
//
// On POSIX the head and tail are unmapped and the block is committed in
// place with a fixed mapping. Windows cannot partially release a
// reservation, so the whole reservation is released and the aligned range is
// mapped again at the same address. Another thread can grab that address in
// between; the allocator then starts over with a new reservation. After
// MaxRetry failed attempts the process aborts through internal/crash.
package aligned

import (
	"fmt"
	"sync/atomic"

	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/logger"
	"github.com/brn/yatsc-sub001/internal/vmem"
)

// MaxRetry bounds the reserve-trim-commit loop.
const MaxRetry = 10

// Swapped by tests to force failures.
var (
	mapFn   = vmem.Map
	unmapFn = vmem.Unmap
)

// Stats is a snapshot of the aligned allocator counters.
type Stats struct {
	Blocks  int64 // Live blocks
	Bytes   int64 // Live committed bytes
	Retries int64 // Attempts beyond the first, summed over all calls
}

var (
	liveBlocks atomic.Int64
	liveBytes  atomic.Int64
	retries    atomic.Int64
)

// Snapshot returns the current counters.
func Snapshot() Stats {
	return Stats{
		Blocks:  liveBlocks.Load(),
		Bytes:   liveBytes.Load(),
		Retries: retries.Load(),
	}
}

// Allocate returns a committed, zeroed, read-write block of at least size
// bytes starting at a multiple of alignment. The size is rounded up to the
// page size. alignment must be a power of two. Failure is fatal.
func Allocate(size, alignment uintptr) uintptr {
	if size == 0 {
		crash.Fatalf("aligned: zero-size allocation")
		return 0
	}
	if !vmem.IsPowerOfTwo(alignment) {
		crash.Fatalf("aligned: alignment %d is not a power of two", alignment)
		return 0
	}
	size, ok := vmem.RoundUpSafe(size, vmem.PageSize())
	if !ok {
		crash.Fatal(fmt.Errorf("aligned: size overflows: %w", vmem.ErrOutOfMemory))
		return 0
	}

	gran := vmem.Granularity()
	if alignment <= gran {
		addr, err := mapFn(0, size, vmem.ProtReadWrite, vmem.FlagAnonPrivate, vmem.Commit)
		if err != nil {
			crash.Fatal(fmt.Errorf("aligned: map %d bytes: %w", size, err))
			return 0
		}
		account(size)
		return addr
	}

	total, ok := vmem.AddOverflowSafe(size, alignment-gran)
	if !ok {
		crash.Fatal(fmt.Errorf("aligned: %d bytes at alignment %d overflows: %w", size, alignment, vmem.ErrOutOfMemory))
		return 0
	}
	var lastErr error
	for attempt := range MaxRetry {
		if attempt > 0 {
			retries.Add(1)
			logger.Debug("aligned: retry", "attempt", attempt, "size", size, "alignment", alignment, "err", lastErr)
		}

		base, err := mapFn(0, total, vmem.ProtNone, vmem.FlagAnonPrivate, vmem.Reserve)
		if err != nil {
			lastErr = err
			continue
		}
		aligned := vmem.RoundUp(base, alignment)

		addr, err := carve(base, total, aligned, size)
		if err != nil {
			lastErr = err
			continue
		}
		if addr != aligned {
			_ = unmapFn(addr, size, vmem.Release)
			lastErr = fmt.Errorf("aligned: commit landed at %#x, want %#x", addr, aligned)
			continue
		}
		account(size)
		return aligned
	}

	crash.Fatal(fmt.Errorf("aligned: %d bytes at alignment %d failed after %d attempts: %w",
		size, alignment, MaxRetry, lastErr))
	return 0
}

// Deallocate unmaps a block returned by Allocate with the same size.
func Deallocate(addr, size uintptr) {
	if addr == 0 {
		return
	}
	size = vmem.RoundUp(size, vmem.PageSize())
	if err := unmapFn(addr, size, vmem.Release); err != nil {
		crash.Fatal(fmt.Errorf("aligned: unmap %#x: %w", addr, err))
		return
	}
	liveBlocks.Add(-1)
	liveBytes.Add(-int64(size))
}

func account(size uintptr) {
	liveBlocks.Add(1)
	liveBytes.Add(int64(size))
}

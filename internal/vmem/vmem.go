// Package vmem maps and unmaps raw virtual memory.
//
// It is the lowest layer of the heap: every slab, every large object and
// every aligned block ultimately comes from Map and goes back through Unmap.
// Nothing here retries. Callers decide whether a failure is fatal.
//
// The platform split follows the usual build-tag layout:
//
//   - vmem_unix.go: mmap/munmap/madvise via golang.org/x/sys/unix
//   - vmem_windows.go: VirtualAlloc/VirtualFree via golang.org/x/sys/windows
//   - vmem_other.go: reports ErrUnsupported
package vmem

import (
	"errors"
	"fmt"
)

// Prot is a bit set of page protections.
type Prot uint8

const (
	ProtNone  Prot = 0
	ProtRead  Prot = 1 << 0
	ProtWrite Prot = 1 << 1
	ProtExec  Prot = 1 << 2

	// ProtReadWrite is what every committed heap region uses.
	ProtReadWrite = ProtRead | ProtWrite
)

// Flags is a bit set of mapping flags.
type Flags uint8

const (
	FlagNone      Flags = 0
	FlagAnonymous Flags = 1 << 0
	FlagShared    Flags = 1 << 1
	FlagPrivate   Flags = 1 << 2
	// FlagFixed places the mapping exactly at the hint address.
	FlagFixed Flags = 1 << 3

	// FlagAnonPrivate is the usual flag set for heap memory.
	FlagAnonPrivate = FlagAnonymous | FlagPrivate
)

// Kind selects what a Map or Unmap call does to the address range.
type Kind uint8

const (
	// Commit reserves (if needed) and backs the range with accessible pages.
	Commit Kind = iota
	// Reserve claims address space without backing it.
	Reserve
	// Decommit drops the backing pages but keeps the address range.
	Decommit
	// Release returns the address range to the system.
	Release
)

func (k Kind) String() string {
	switch k {
	case Commit:
		return "commit"
	case Reserve:
		return "reserve"
	case Decommit:
		return "decommit"
	case Release:
		return "release"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

var (
	// ErrOutOfMemory indicates the system could not provide the mapping.
	ErrOutOfMemory = errors.New("vmem: out of memory")

	// ErrPermissionDenied indicates the requested protection was refused.
	ErrPermissionDenied = errors.New("vmem: permission denied")

	// ErrInvalid indicates a zero size, a misaligned address or a bad kind.
	ErrInvalid = errors.New("vmem: invalid argument")

	// ErrUnsupported is returned on platforms without a mapping primitive.
	ErrUnsupported = errors.New("vmem: unsupported platform")
)

// Map maps size bytes of memory. A non-zero hint together with FlagFixed
// requests that exact address; otherwise the system chooses. The returned
// region must later be released with Unmap of the same range.
func Map(hint, size uintptr, prot Prot, flags Flags, kind Kind) (uintptr, error) {
	if size == 0 {
		return 0, fmt.Errorf("vmem: map of zero bytes: %w", ErrInvalid)
	}
	if kind != Commit && kind != Reserve {
		return 0, fmt.Errorf("vmem: map with kind %s: %w", kind, ErrInvalid)
	}
	return sysMap(hint, size, prot, flags, kind)
}

// Unmap releases or decommits a range previously obtained from Map.
// Only Release and Decommit are valid kinds.
func Unmap(addr, size uintptr, kind Kind) error {
	if addr == 0 || size == 0 {
		return fmt.Errorf("vmem: unmap %#x+%d: %w", addr, size, ErrInvalid)
	}
	if kind != Release && kind != Decommit {
		return fmt.Errorf("vmem: unmap with kind %s: %w", kind, ErrInvalid)
	}
	return sysUnmap(addr, size, kind)
}

// RoundUp rounds n up to a multiple of align, which must be a power of two.
func RoundUp(n, align uintptr) uintptr {
	return (n + align - 1) &^ (align - 1)
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uintptr) bool {
	return n != 0 && n&(n-1) == 0
}

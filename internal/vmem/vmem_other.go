//go:build !unix && !windows

package vmem

import "fmt"

// PageSize returns a nominal page size.
func PageSize() uintptr { return 4096 }

// Granularity returns a nominal mapping granularity.
func Granularity() uintptr { return 4096 }

func sysMap(hint, size uintptr, _ Prot, _ Flags, _ Kind) (uintptr, error) {
	return 0, fmt.Errorf("vmem: map %#x+%d: %w", hint, size, ErrUnsupported)
}

func sysUnmap(addr, size uintptr, _ Kind) error {
	return fmt.Errorf("vmem: unmap %#x+%d: %w", addr, size, ErrUnsupported)
}

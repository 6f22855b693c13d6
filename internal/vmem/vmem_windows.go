//go:build windows

package vmem

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
)

const (
	winPageSize    = 4096
	winGranularity = 64 << 10
)

// PageSize returns the system page size.
func PageSize() uintptr { return winPageSize }

// Granularity returns the alignment every fresh mapping is guaranteed to have.
// VirtualAlloc reservations are aligned to the 64 KiB allocation granularity.
func Granularity() uintptr { return winGranularity }

func sysMap(hint, size uintptr, prot Prot, flags Flags, kind Kind) (uintptr, error) {
	if flags&FlagFixed == 0 {
		hint = 0
	}
	var allocType uint32 = windows.MEM_RESERVE
	protect := uint32(windows.PAGE_NOACCESS)
	if kind == Commit {
		allocType |= windows.MEM_COMMIT
		protect = toWinProt(prot)
	}
	addr, err := windows.VirtualAlloc(hint, size, allocType, protect)
	if err != nil {
		return 0, translate("map", hint, size, err)
	}
	if addr == 0 {
		return 0, fmt.Errorf("vmem: map %#x+%d: %w", hint, size, ErrOutOfMemory)
	}
	return addr, nil
}

func sysUnmap(addr, size uintptr, kind Kind) error {
	var err error
	if kind == Decommit {
		err = windows.VirtualFree(addr, size, windows.MEM_DECOMMIT)
	} else {
		// MEM_RELEASE frees the whole reservation and requires size 0.
		err = windows.VirtualFree(addr, 0, windows.MEM_RELEASE)
	}
	if err != nil {
		return translate(kind.String(), addr, size, err)
	}
	return nil
}

func toWinProt(p Prot) uint32 {
	switch {
	case p == ProtNone:
		return windows.PAGE_NOACCESS
	case p&ProtExec != 0 && p&ProtWrite != 0:
		return windows.PAGE_EXECUTE_READWRITE
	case p&ProtExec != 0 && p&ProtRead != 0:
		return windows.PAGE_EXECUTE_READ
	case p&ProtExec != 0:
		return windows.PAGE_EXECUTE
	case p&ProtWrite != 0:
		return windows.PAGE_READWRITE
	default:
		return windows.PAGE_READONLY
	}
}

func translate(op string, addr, size uintptr, err error) error {
	var sentinel error
	switch {
	case errors.Is(err, windows.ERROR_NOT_ENOUGH_MEMORY), errors.Is(err, windows.ERROR_COMMITMENT_LIMIT):
		sentinel = ErrOutOfMemory
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		sentinel = ErrPermissionDenied
	case errors.Is(err, windows.ERROR_INVALID_ADDRESS), errors.Is(err, windows.ERROR_INVALID_PARAMETER):
		sentinel = ErrInvalid
	default:
		return fmt.Errorf("vmem: %s %#x+%d: %w", op, addr, size, err)
	}
	return fmt.Errorf("vmem: %s %#x+%d: %w (%w)", op, addr, size, sentinel, err)
}

//go:build unix

package vmem

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/unix"
)

var pageSize = uintptr(unix.Getpagesize())

// PageSize returns the system page size.
func PageSize() uintptr { return pageSize }

// Granularity returns the alignment every fresh mapping is guaranteed to have.
// On POSIX systems this is the page size.
func Granularity() uintptr { return pageSize }

func sysMap(hint, size uintptr, prot Prot, flags Flags, kind Kind) (uintptr, error) {
	mprot := unix.PROT_NONE
	if kind == Commit {
		mprot = toUnixProt(prot)
	}

	mflags := 0
	if flags&FlagAnonymous != 0 {
		mflags |= unix.MAP_ANON
	}
	if flags&FlagShared != 0 {
		mflags |= unix.MAP_SHARED
	}
	if flags&FlagPrivate != 0 {
		mflags |= unix.MAP_PRIVATE
	}
	if hint != 0 && flags&FlagFixed != 0 {
		mflags |= unix.MAP_FIXED
	}

	p, err := unix.MmapPtr(-1, 0, unsafe.Pointer(hint), size, mprot, mflags) //nolint:govet // hint is an address, not a Go pointer
	if err != nil {
		return 0, translate("map", hint, size, err)
	}
	return uintptr(p), nil
}

func sysUnmap(addr, size uintptr, kind Kind) error {
	if kind == Decommit {
		b := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size) //nolint:govet // mapped region
		if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
			return translate("decommit", addr, size, err)
		}
		return nil
	}
	if err := unix.MunmapPtr(unsafe.Pointer(addr), size); err != nil { //nolint:govet // mapped region
		return translate("unmap", addr, size, err)
	}
	return nil
}

func toUnixProt(p Prot) int {
	if p == ProtNone {
		return unix.PROT_NONE
	}
	out := 0
	if p&ProtRead != 0 {
		out |= unix.PROT_READ
	}
	if p&ProtWrite != 0 {
		out |= unix.PROT_WRITE
	}
	if p&ProtExec != 0 {
		out |= unix.PROT_EXEC
	}
	return out
}

func translate(op string, addr, size uintptr, err error) error {
	var sentinel error
	switch {
	case errors.Is(err, unix.ENOMEM):
		sentinel = ErrOutOfMemory
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		sentinel = ErrPermissionDenied
	case errors.Is(err, unix.EINVAL):
		sentinel = ErrInvalid
	default:
		return fmt.Errorf("vmem: %s %#x+%d: %w", op, addr, size, err)
	}
	return fmt.Errorf("vmem: %s %#x+%d: %w (%w)", op, addr, size, sentinel, err)
}

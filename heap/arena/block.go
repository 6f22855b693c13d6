package arena

import (
	"fmt"
	"unsafe"
)

const largeTag = 1

// Block is an allocation returned by CentralArena. The low bit marks a large
// object; all other bits are the address.
type Block uintptr

// IsLarge reports whether b was served by the large-object path.
func (b Block) IsLarge() bool { return b&largeTag != 0 }

// IsNil reports whether b is the zero block.
func (b Block) IsNil() bool { return b == 0 }

// Addr returns the usable address with the tag removed.
func (b Block) Addr() uintptr { return uintptr(b &^ largeTag) }

// Pointer returns Addr as an unsafe.Pointer.
func (b Block) Pointer() unsafe.Pointer {
	return unsafe.Pointer(b.Addr()) //nolint:govet // mapped memory
}

func (b Block) String() string {
	if b.IsLarge() {
		return fmt.Sprintf("large@%#x", b.Addr())
	}
	return fmt.Sprintf("small@%#x", b.Addr())
}

// LargeBlock tags addr as a large block.
func LargeBlock(addr uintptr) Block { return Block(addr | largeTag) }

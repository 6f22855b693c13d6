package heap

import (
	"reflect"
	"sync"
	"unsafe"

	"github.com/brn/yatsc-sub001/heap/arena"
	"github.com/brn/yatsc-sub001/internal/crash"
	"github.com/brn/yatsc-sub001/internal/vmem"
)

// Destroyer is implemented by types that need cleanup before their memory
// is returned.
type Destroyer interface {
	Destroy()
}

// prefixSize is the header in front of every typed object. It holds the
// destructor id, or 0 when there is nothing to run.
const prefixSize = 8

type prefix struct {
	dtor uint32
	_    uint32
}

func prefixAt(addr uintptr) *prefix {
	return (*prefix)(unsafe.Pointer(addr)) //nolint:govet // heap memory
}

var (
	dtorMu    sync.RWMutex
	dtorIDs   = map[reflect.Type]uint32{}
	dtorFuncs = []func(unsafe.Pointer){nil} // id 0 is reserved
)

// dtorID returns the destructor id for T, registering it on first use.
func dtorID[T any]() uint32 {
	if _, ok := any((*T)(nil)).(Destroyer); !ok {
		return 0
	}
	typ := reflect.TypeFor[T]()

	dtorMu.RLock()
	id, ok := dtorIDs[typ]
	dtorMu.RUnlock()
	if ok {
		return id
	}

	dtorMu.Lock()
	defer dtorMu.Unlock()
	if id, ok := dtorIDs[typ]; ok {
		return id
	}
	id = uint32(len(dtorFuncs))
	dtorFuncs = append(dtorFuncs, func(p unsafe.Pointer) {
		any((*T)(p)).(Destroyer).Destroy()
	})
	dtorIDs[typ] = id
	return id
}

// runDtor calls the destructor recorded at addr once and clears the record.
func runDtor(addr uintptr) {
	pf := prefixAt(addr)
	id := pf.dtor
	if id == 0 {
		return
	}
	pf.dtor = 0
	dtorMu.RLock()
	fn := dtorFuncs[id]
	dtorMu.RUnlock()
	fn(unsafe.Pointer(addr + prefixSize)) //nolint:govet // heap memory
}

// destroyTyped is the teardown callback for live typed blocks.
func destroyTyped(addr uintptr) { runDtor(addr) }

// typedBlock allocates prefix + size bytes, zeroes them and records the
// destructor of T. It returns the block and the object address.
func typedBlock[T any](a Allocator, size uintptr) (Block, uintptr) {
	b := a.Allocate(prefixSize + size)
	addr := b.Addr()
	clear(unsafe.Slice((*byte)(b.Pointer()), prefixSize+size))
	if id := dtorID[T](); id != 0 {
		prefixAt(addr).dtor = id
		a.owner().central.MarkTyped(b)
	}
	return b, addr + prefixSize
}

// blockOf recovers the block of an object of total size bytes (prefix
// excluded) whose address is obj.
func blockOf(h *Heap, obj, size uintptr) Block {
	addr := obj - prefixSize
	if prefixSize+size > h.central.MaxSmall() {
		crash.Assert(addr%vmem.PageSize() == 0, "heap: large object is not page aligned")
		return arena.LargeBlock(addr)
	}
	return arena.Block(addr)
}

// New allocates a zero T.
func New[T any](a Allocator) *T {
	_, obj := typedBlock[T](a, unsafe.Sizeof(*new(T)))
	return (*T)(unsafe.Pointer(obj)) //nolint:govet // heap memory
}

// Destruct runs T's destructor, if any, and frees p. p must come from New
// on the same heap. A nil p is ignored.
func Destruct[T any](a Allocator, p *T) {
	if p == nil {
		return
	}
	obj := uintptr(unsafe.Pointer(p))
	runDtor(obj - prefixSize)
	h := a.owner()
	h.Deallocate(blockOf(h, obj, unsafe.Sizeof(*p)))
}

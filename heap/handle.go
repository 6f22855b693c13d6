package heap

import (
	"sync/atomic"
	"unsafe"

	"github.com/brn/yatsc-sub001/internal/crash"
)

// refCounter is stored right after the object it counts. count covers every
// reference, strong only the Handles. The destructor runs when strong
// reaches zero and the block is freed when count does.
type refCounter struct {
	count  atomic.Int32
	strong atomic.Int32
}

const counterSize = unsafe.Sizeof(refCounter{})

// Handle is an intrusive reference-counted owner of a T in heap memory.
// The zero Handle is null.
//
// Copying a Handle value moves ownership; use Clone for a new reference and
// Release to drop one. The destructor runs when the last Handle is released,
// and the memory is freed once no WeakHandle remains either.
type Handle[T any] struct {
	ptr  *T
	rc   *refCounter
	heap *Heap
}

// NewHandle allocates a zero T with a reference count of one.
func NewHandle[T any](a Allocator) Handle[T] {
	size := counterOffset[T]() + counterSize
	_, obj := typedBlock[T](a, size)
	rc := (*refCounter)(unsafe.Pointer(obj + counterOffset[T]())) //nolint:govet // heap memory
	rc.count.Store(1)
	rc.strong.Store(1)
	return Handle[T]{
		ptr:  (*T)(unsafe.Pointer(obj)), //nolint:govet // heap memory
		rc:   rc,
		heap: a.owner(),
	}
}

func counterOffset[T any]() uintptr {
	var zero T
	return (unsafe.Sizeof(zero) + 7) &^ 7
}

// Get returns the object. With assertions enabled a null handle aborts.
func (h Handle[T]) Get() *T {
	crash.Assert(h.ptr != nil, "heap: dereference of null handle")
	return h.ptr
}

// IsNull reports whether h owns nothing.
func (h Handle[T]) IsNull() bool { return h.ptr == nil }

// Count returns the current reference count, or 0 for a null handle.
func (h Handle[T]) Count() int32 {
	if h.rc == nil {
		return 0
	}
	return h.rc.count.Load()
}

// Clone returns a new reference to the same object.
func (h Handle[T]) Clone() Handle[T] {
	if h.rc != nil {
		h.rc.count.Add(1)
		h.rc.strong.Add(1)
	}
	return h
}

// Move returns h's reference and leaves h null.
func (h *Handle[T]) Move() Handle[T] {
	out := *h
	*h = Handle[T]{}
	return out
}

// Weak returns a reference that keeps the memory mapped but never keeps the
// object alive: the destructor still runs with the last Handle.
func (h Handle[T]) Weak() WeakHandle[T] {
	if h.rc == nil {
		return WeakHandle[T]{}
	}
	h.rc.count.Add(1)
	return WeakHandle[T]{h: h}
}

// Release drops this reference and leaves h null.
func (h *Handle[T]) Release() { h.release(true) }

func (h *Handle[T]) release(strong bool) {
	if h.rc == nil {
		return
	}
	rc, ptr, hp := h.rc, h.ptr, h.heap
	*h = Handle[T]{}

	// The destructor runs before this reference leaves count, so the block
	// is still mapped.
	if strong && rc.strong.Add(-1) == 0 {
		runDtor(uintptr(unsafe.Pointer(ptr)) - prefixSize)
	}
	if rc.count.Add(-1) == 0 {
		hp.Deallocate(blockOf(hp, uintptr(unsafe.Pointer(ptr)), counterOffset[T]()+counterSize))
	}
}

// WeakHandle is a Handle created by Handle.Weak. It keeps the memory of a
// destroyed object mapped until it is released. There is no upgrade to a
// strong Handle.
type WeakHandle[T any] struct {
	h Handle[T]
}

// Get returns the object, which may already be destroyed.
func (w WeakHandle[T]) Get() *T { return w.h.Get() }

// IsNull reports whether w owns nothing.
func (w WeakHandle[T]) IsNull() bool { return w.h.IsNull() }

// Count returns the shared reference count.
func (w WeakHandle[T]) Count() int32 { return w.h.Count() }

// Release drops the weak reference. It never runs the destructor.
func (w *WeakHandle[T]) Release() { w.h.release(false) }

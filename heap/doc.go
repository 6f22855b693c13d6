// Package heap provides a size-class segregated allocator for off-heap
// objects with explicit lifetimes.
//
// # Overview
//
// Memory comes straight from the operating system in 1 MB slabs (small
// objects) or dedicated mappings (large objects) and is never scanned by the
// Go garbage collector. Objects placed here live until they are explicitly
// destroyed, either with Destruct or by dropping the last Handle.
//
// # Key Types
//
//   - Heap: the allocation root. Default returns the process-wide instance.
//   - Local: a Heap bound to one goroutine's arena (see Binding below)
//   - Block: a raw allocation; the low bit marks a large object
//   - Handle, WeakHandle: intrusive reference-counted owners
//
// # Typed Objects
//
//	h := heap.Default()
//	p := heap.New[Node](h)
//	defer heap.Destruct(h, p)
//
//	n := heap.NewHandle[Node](h)
//	m := n.Clone()
//	n.Release()
//	m.Release() // Destroy runs here and the memory is returned
//
// If *T implements Destroyer, Destroy is called when the object dies and,
// for objects still alive when the Heap is closed, during Close.
//
// # Binding
//
// Calls on a Heap acquire an arena for the duration of the call. A goroutine
// that allocates in a loop should bind once instead:
//
//	l := h.Bind()
//	defer l.Close()
//	for ... {
//	    heap.New[Node](l)
//	}
//
// A Local must not be shared between goroutines. Blocks may be freed from
// any goroutine.
//
// # Restrictions
//
// The collector does not see pointers stored in heap memory. An object
// allocated here must not hold the only reference to memory owned by the
// Go runtime.
package heap

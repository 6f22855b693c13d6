package rbtree

// Ref addresses a node inside a Slab.
type Ref int32

// Nil is the absent node.
const Nil Ref = -1

// Slab stores values of type T in fixed-size pages. A value's address never
// changes while it is allocated, and freed slots are reused first.
type Slab[T any] struct {
	pageSize int
	pages    [][]T
	used     []bool
	free     []Ref
	live     int
}

// NewSlab returns a Slab that grows pageSize values at a time.
func NewSlab[T any](pageSize int) *Slab[T] {
	if pageSize <= 0 {
		pageSize = 64
	}
	return &Slab[T]{pageSize: pageSize}
}

// New allocates a zeroed value and returns its Ref and address.
func (s *Slab[T]) New() (Ref, *T) {
	var r Ref
	if n := len(s.free); n > 0 {
		r = s.free[n-1]
		s.free = s.free[:n-1]
	} else {
		if len(s.used) == len(s.pages)*s.pageSize {
			s.pages = append(s.pages, make([]T, s.pageSize))
		}
		r = Ref(len(s.used))
		s.used = append(s.used, false)
	}
	s.used[r] = true
	s.live++
	p := s.At(r)
	var zero T
	*p = zero
	if l, ok := any(p).(interface{ reset() }); ok {
		l.reset()
	}
	return r, p
}

// At returns the value addressed by r. It panics if r was never allocated.
func (s *Slab[T]) At(r Ref) *T {
	return &s.pages[int(r)/s.pageSize][int(r)%s.pageSize]
}

// Free releases r for reuse. Freeing Nil or an already free Ref is a no-op.
func (s *Slab[T]) Free(r Ref) {
	if r == Nil || int(r) >= len(s.used) || !s.used[r] {
		return
	}
	s.used[r] = false
	s.live--
	var zero T
	*s.At(r) = zero
	s.free = append(s.free, r)
}

// Live reports whether r is currently allocated.
func (s *Slab[T]) Live(r Ref) bool {
	return r >= 0 && int(r) < len(s.used) && s.used[r]
}

// Len returns the number of allocated values.
func (s *Slab[T]) Len() int { return s.live }

// Pages returns the number of pages backing the slab.
func (s *Slab[T]) Pages() int { return len(s.pages) }

// Each calls fn for every allocated value in Ref order until fn returns false.
func (s *Slab[T]) Each(fn func(Ref, *T) bool) {
	for i, ok := range s.used {
		if ok && !fn(Ref(i), s.At(Ref(i))) {
			return
		}
	}
}

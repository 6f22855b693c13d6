package chunk

import (
	"sync"
	"sync/atomic"
)

// Slab headers live in mapped memory the Go collector does not scan, so
// they refer to their pool by id. Pools themselves are owned by arena
// storage on the Go heap.
var (
	regMu   sync.Mutex
	regFree []uint32
	regTab  atomic.Pointer[[]*Pool]
)

func register(p *Pool) uint32 {
	regMu.Lock()
	defer regMu.Unlock()

	var tab []*Pool
	if cur := regTab.Load(); cur != nil {
		tab = *cur
	}
	next := make([]*Pool, len(tab), max(len(tab)+1, 2*len(tab)))
	copy(next, tab)

	var id uint32
	if n := len(regFree); n > 0 {
		id = regFree[n-1]
		regFree = regFree[:n-1]
		next[id] = p
	} else {
		id = uint32(len(next))
		next = append(next, p)
	}
	regTab.Store(&next)
	return id
}

func unregister(id uint32) {
	regMu.Lock()
	defer regMu.Unlock()

	tab := *regTab.Load()
	next := make([]*Pool, len(tab))
	copy(next, tab)
	next[id] = nil
	regTab.Store(&next)
	regFree = append(regFree, id)
}

func lookup(id uint32) *Pool {
	tab := regTab.Load()
	if tab == nil || int(id) >= len(*tab) {
		return nil
	}
	return (*tab)[id]
}

//go:build windows

package aligned

import (
	"github.com/brn/yatsc-sub001/internal/spin"
	"github.com/brn/yatsc-sub001/internal/vmem"
)

// Serializes release and re-map so two allocators in this process do not
// race for the same freed address.
var carveLock spin.Lock

// carve releases the reservation and maps [aligned, aligned+size) again at
// the same address.
func carve(base, total, aligned, size uintptr) (uintptr, error) {
	carveLock.Lock()
	defer carveLock.Unlock()
	if err := unmapFn(base, total, vmem.Release); err != nil {
		return 0, err
	}
	return mapFn(aligned, size, vmem.ProtReadWrite, vmem.FlagAnonPrivate|vmem.FlagFixed, vmem.Commit)
}

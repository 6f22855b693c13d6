//go:build !windows

package aligned

import "github.com/brn/yatsc-sub001/internal/vmem"

// carve trims the reservation [base, base+total) down to [aligned,
// aligned+size) and commits it in place.
func carve(base, total, aligned, size uintptr) (uintptr, error) {
	head := aligned - base
	tail := total - head - size
	if head > 0 {
		if err := unmapFn(base, head, vmem.Release); err != nil {
			_ = unmapFn(base, total, vmem.Release)
			return 0, err
		}
	}
	if tail > 0 {
		if err := unmapFn(aligned+size, tail, vmem.Release); err != nil {
			_ = unmapFn(aligned, total-head, vmem.Release)
			return 0, err
		}
	}
	addr, err := mapFn(aligned, size, vmem.ProtReadWrite, vmem.FlagAnonPrivate|vmem.FlagFixed, vmem.Commit)
	if err != nil {
		_ = unmapFn(aligned, size, vmem.Release)
		return 0, err
	}
	return addr, nil
}

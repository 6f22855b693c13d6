package chunk

import "math"

// Alignment is the granularity of every small slot.
const Alignment = 8

// SizeClassConfig defines the allocation size class strategy.
// Different configurations trade internal fragmentation against the number
// of pools each arena keeps.
type SizeClassConfig struct {
	// Name for this configuration (for benchmarking)
	Name string

	// Small allocation settings (linear increments)
	SmallMin       uintptr // Smallest class (typically 8)
	SmallMax       uintptr // Last class reached by linear steps (typically 256-512)
	SmallIncrement uintptr // Step between linear classes (8, 16, or 32)

	// Medium allocation settings (logarithmic growth)
	MediumMax    uintptr // Largest small class; anything bigger is a large object
	GrowthFactor float64 // Exponential growth factor (1.25, 1.5, 2.0, ...)
}

// Predefined configurations.
var (
	// FineGrained: 8-256 step 8 (32 classes) + 256-16K log growth (~11 classes).
	ConfigFineGrained = SizeClassConfig{
		Name:           "FineGrained",
		SmallMin:       8,
		SmallMax:       256,
		SmallIncrement: 8,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// Balanced: 16-512 step 16 (32 classes) + 512-16K log growth (~9 classes).
	ConfigBalanced = SizeClassConfig{
		Name:           "Balanced",
		SmallMin:       16,
		SmallMax:       512,
		SmallIncrement: 16,
		MediumMax:      16384,
		GrowthFactor:   1.5,
	}

	// Coarse: 32-512 step 32 (16 classes) + 512-16K doubling (5 classes).
	ConfigCoarse = SizeClassConfig{
		Name:           "Coarse",
		SmallMin:       32,
		SmallMax:       512,
		SmallIncrement: 32,
		MediumMax:      16384,
		GrowthFactor:   2.0,
	}

	// DefaultConfig is used when none is specified.
	DefaultConfig = ConfigFineGrained
)

// Table holds the computed slot sizes of a configuration in ascending order.
type Table struct {
	config  SizeClassConfig
	classes []uintptr
}

// NewTable computes the slot sizes for config. Every class is a multiple of
// Alignment and the last class is MediumMax rounded up to Alignment.
func NewTable(config SizeClassConfig) *Table {
	t := &Table{
		config:  config,
		classes: make([]uintptr, 0, 64),
	}
	step := alignUp(max(config.SmallIncrement, Alignment))
	top := alignUp(max(config.MediumMax, Alignment))

	// Phase 1: linear classes
	size := alignUp(max(config.SmallMin, Alignment))
	for ; size <= config.SmallMax && size <= top; size += step {
		t.classes = append(t.classes, size)
	}

	// Phase 2: logarithmic growth up to the ceiling
	size = t.last()
	for size < top {
		next := alignUp(uintptr(math.Ceil(float64(size) * config.GrowthFactor)))
		if next <= size {
			next = size + Alignment // Ensure progress
		}
		if next > top {
			next = top
		}
		t.classes = append(t.classes, next)
		size = next
	}
	return t
}

func (t *Table) last() uintptr {
	if len(t.classes) == 0 {
		return 0
	}
	return t.classes[len(t.classes)-1]
}

// Index returns the class index for size, or NumClasses() when size is above
// the small-object ceiling.
func (t *Table) Index(size uintptr) int {
	lo, hi := 0, len(t.classes)-1
	for lo <= hi {
		mid := (lo + hi) / 2
		if size <= t.classes[mid] {
			if mid == 0 || size > t.classes[mid-1] {
				return mid
			}
			hi = mid - 1
		} else {
			lo = mid + 1
		}
	}
	return len(t.classes)
}

// Class returns the slot size that serves size, or 0 when size must be
// served as a large object.
func (t *Table) Class(size uintptr) uintptr {
	i := t.Index(size)
	if i == len(t.classes) {
		return 0
	}
	return t.classes[i]
}

// Max returns the small-object ceiling.
func (t *Table) Max() uintptr { return t.last() }

// Classes returns a copy of all slot sizes.
func (t *Table) Classes() []uintptr { return append([]uintptr(nil), t.classes...) }

// NumClasses returns the number of size classes.
func (t *Table) NumClasses() int { return len(t.classes) }

// String returns the configuration name.
func (t *Table) String() string { return t.config.Name }

func alignUp(n uintptr) uintptr {
	return (n + Alignment - 1) &^ (Alignment - 1)
}

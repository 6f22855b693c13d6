//go:build unix

package vmem

import (
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapCommitReadWrite(t *testing.T) {
	size := 4 * PageSize()
	addr, err := Map(0, size, ProtReadWrite, FlagAnonPrivate, Commit)
	require.NoError(t, err)
	require.NotZero(t, addr)
	assert.Zero(t, addr%Granularity(), "fresh mapping must be granularity aligned")

	mem := unsafe.Slice((*byte)(unsafe.Pointer(addr)), size)
	for i := range mem {
		require.Zero(t, mem[i], "anonymous memory must be zero filled")
	}
	mem[0] = 0xAA
	mem[size-1] = 0x55
	assert.Equal(t, byte(0xAA), mem[0])
	assert.Equal(t, byte(0x55), mem[size-1])

	require.NoError(t, Unmap(addr, size, Release))
}

func TestMapReserveThenFixedCommit(t *testing.T) {
	size := 8 * PageSize()
	base, err := Map(0, size, ProtNone, FlagAnonPrivate, Reserve)
	require.NoError(t, err)

	target := base + 2*PageSize()
	got, err := Map(target, 2*PageSize(), ProtReadWrite, FlagAnonPrivate|FlagFixed, Commit)
	require.NoError(t, err)
	require.Equal(t, target, got, "fixed mapping must land on the hint")

	*(*uint64)(unsafe.Pointer(got)) = 42
	assert.Equal(t, uint64(42), *(*uint64)(unsafe.Pointer(got)))

	require.NoError(t, Unmap(base, size, Release))
}

func TestDecommitZeroesPages(t *testing.T) {
	size := PageSize()
	addr, err := Map(0, size, ProtReadWrite, FlagAnonPrivate, Commit)
	require.NoError(t, err)
	defer func() { require.NoError(t, Unmap(addr, size, Release)) }()

	p := (*uint64)(unsafe.Pointer(addr))
	*p = 7
	require.NoError(t, Unmap(addr, size, Decommit))
	// Private anonymous pages read back as zero after MADV_DONTNEED.
	assert.Equal(t, uint64(0), *p)
}

func TestInvalidArguments(t *testing.T) {
	_, err := Map(0, 0, ProtReadWrite, FlagAnonPrivate, Commit)
	require.ErrorIs(t, err, ErrInvalid)

	_, err = Map(0, PageSize(), ProtReadWrite, FlagAnonPrivate, Release)
	require.ErrorIs(t, err, ErrInvalid)

	require.ErrorIs(t, Unmap(0, PageSize(), Release), ErrInvalid)
	require.ErrorIs(t, Unmap(PageSize(), PageSize(), Commit), ErrInvalid)
}

func TestHelpers(t *testing.T) {
	assert.Equal(t, uintptr(16), RoundUp(9, 8))
	assert.Equal(t, uintptr(8), RoundUp(8, 8))
	assert.Equal(t, uintptr(0), RoundUp(0, 8))
	assert.True(t, IsPowerOfTwo(1))
	assert.True(t, IsPowerOfTwo(1<<20))
	assert.False(t, IsPowerOfTwo(0))
	assert.False(t, IsPowerOfTwo(24))
	assert.Equal(t, "decommit", Decommit.String())
}

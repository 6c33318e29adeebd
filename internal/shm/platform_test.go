package shm

import (
	"context"
	"math"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapRegion_TwoMappingsShareBytes(t *testing.T) {
	ctx := context.Background()
	opts := MapOptions{Name: "region-share", Dir: t.TempDir(), Size: 4096, Create: true}
	r1, err := MapRegion(ctx, opts)
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, r1) }()

	r2, err := MapRegion(ctx, MapOptions{Name: opts.Name, Dir: opts.Dir})
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, r2) }()

	assert.Equal(t, 4096, len(r2.Addr))
	r1.Addr[100] = 42
	assert.Equal(t, byte(42), r2.Addr[100])

	AtomicStoreUint64(unsafe.Pointer(&r2.Addr[64]), 7)
	assert.Equal(t, uint64(7), AtomicLoadUint64(unsafe.Pointer(&r1.Addr[64])))
	assert.NoError(t, RemoveRegion(ctx, opts))
}

func TestMapRegion_CreateRejectsExisting(t *testing.T) {
	ctx := context.Background()
	opts := MapOptions{Name: "region-exists", Dir: t.TempDir(), Size: 128, Create: true}
	r, err := MapRegion(ctx, opts)
	require.NoError(t, err)
	defer func() { _ = UnmapRegion(ctx, r) }()

	_, err = MapRegion(ctx, opts)
	assert.ErrorIs(t, err, ErrRegionExists)
}

func TestMapRegion_InvalidSize(t *testing.T) {
	_, err := MapRegion(context.Background(), MapOptions{Name: "x", Dir: t.TempDir(), Create: true})
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestAtomicWordHelpers(t *testing.T) {
	var w uint32
	p := unsafe.Pointer(&w)
	assert.True(t, AtomicCompareAndSwapUint32(p, 0, 5))
	assert.False(t, AtomicCompareAndSwapUint32(p, 0, 6))
	assert.Equal(t, uint32(6), AtomicAddUint32(p, 1))
	AtomicStoreUint32(p, 1)
	assert.Equal(t, uint32(1), AtomicLoadUint32(p))

	var d uint64
	assert.True(t, AtomicCompareAndSwapUint64(unsafe.Pointer(&d), 0, 9))
	assert.Equal(t, uint64(9), d)
}

func TestCanCreate(t *testing.T) {
	dir := t.TempDir()
	assert.True(t, CanCreate(1, dir))
	assert.False(t, CanCreate(math.MaxUint64, dir))
}

//go:build !linux

package shm

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
)

// Without a portable mmap, regions live in this process only. Every MapRegion
// for the same path returns the same backing bytes.
var (
	regionsMu sync.Mutex
	regions   = map[string][]byte{}
)

// MapRegion maps or creates a shared memory region (in-process implementation).
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.Size < 0 || (opts.Create && opts.Size == 0) {
		return nil, ErrInvalidSize
	}
	shmPath := filepath.Join(opts.dir(), opts.Name)
	regionsMu.Lock()
	defer regionsMu.Unlock()
	mem, ok := regions[shmPath]
	switch {
	case opts.Create && ok:
		return nil, fmt.Errorf("%w: %s", ErrRegionExists, shmPath)
	case opts.Create:
		mem = make([]byte, opts.Size)
		regions[shmPath] = mem
	case !ok:
		return nil, fmt.Errorf("open %s: no such region", shmPath)
	}
	if opts.Size > 0 && opts.Size < len(mem) {
		mem = mem[:opts.Size]
	}
	return &MappedRegion{Addr: mem, Path: shmPath, fd: -1}, nil
}

// UnmapRegion drops this mapping.
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region != nil {
		region.Addr = nil
	}
	return nil
}

// RemoveRegion forgets the backing bytes. Existing mappings stay valid.
func RemoveRegion(ctx context.Context, opts MapOptions) error {
	regionsMu.Lock()
	delete(regions, filepath.Join(opts.dir(), opts.Name))
	regionsMu.Unlock()
	return nil
}

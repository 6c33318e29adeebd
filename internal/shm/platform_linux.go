//go:build linux

package shm

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// MapRegion maps or creates a shared memory region (Linux implementation).
// Creating fails with ErrRegionExists if a stale backing file is in the way.
func MapRegion(ctx context.Context, opts MapOptions) (*MappedRegion, error) {
	if opts.Size < 0 || (opts.Create && opts.Size == 0) {
		return nil, ErrInvalidSize
	}
	flags := unix.O_RDWR | unix.O_CLOEXEC
	if opts.Create {
		flags |= unix.O_CREAT | unix.O_EXCL
	}
	shmPath := filepath.Join(opts.dir(), opts.Name)
	fd, err := unix.Open(shmPath, flags, 0600)
	if err != nil {
		if errors.Is(err, unix.EEXIST) {
			return nil, fmt.Errorf("%w: %s", ErrRegionExists, shmPath)
		}
		return nil, fmt.Errorf("open %s: %w", shmPath, err)
	}
	size := opts.Size
	if opts.Create {
		if err := unix.Ftruncate(fd, int64(size)); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("ftruncate: %w", err)
		}
	} else if size == 0 {
		var st unix.Stat_t
		if err := unix.Fstat(fd, &st); err != nil {
			_ = unix.Close(fd)
			return nil, fmt.Errorf("fstat: %w", err)
		}
		size = int(st.Size)
		if size == 0 {
			_ = unix.Close(fd)
			return nil, ErrInvalidSize
		}
	}
	addr, err := unix.Mmap(fd, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = unix.Close(fd)
		return nil, fmt.Errorf("mmap: %w", err)
	}
	return &MappedRegion{
		Addr: addr,
		Path: shmPath,
		fd:   fd,
	}, nil
}

// UnmapRegion unmaps and closes the shared memory region (Linux implementation).
func UnmapRegion(ctx context.Context, region *MappedRegion) error {
	if region == nil || region.Addr == nil {
		return nil
	}
	if err := unix.Munmap(region.Addr); err != nil {
		return fmt.Errorf("munmap: %w", err)
	}
	region.Addr = nil
	if err := unix.Close(region.fd); err != nil {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}

// RemoveRegion unlinks the backing file. Existing mappings stay valid.
func RemoveRegion(ctx context.Context, opts MapOptions) error {
	shmPath := filepath.Join(opts.dir(), opts.Name)
	if err := unix.Unlink(shmPath); err != nil && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("unlink %s: %w", shmPath, err)
	}
	return nil
}

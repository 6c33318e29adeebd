package shm

import (
	"github.com/shirou/gopsutil/v3/disk"
)

// CanCreate reports whether dir has room for a region of size bytes.
// Only tmpfs-style directories are checked; when usage can't be read the
// answer is optimistic and mmap gets the final word.
func CanCreate(size uint64, dir string) bool {
	if dir == "" {
		dir = DefaultDir
	}
	stat, err := disk.Usage(dir)
	if err != nil {
		return true
	}
	return size <= stat.Free
}

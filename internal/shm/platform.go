// Package shm contains the platform helpers that map the host's shared memory segment.
package shm

import "errors"

// DefaultDir is where segments are created when MapOptions.Dir is empty.
const DefaultDir = "/dev/shm"

var (
	// ErrInvalidSize is returned when a region would have no usable bytes.
	ErrInvalidSize = errors.New("shm: invalid region size")
	// ErrRegionExists is returned when Create is set and the backing file is already present.
	ErrRegionExists = errors.New("shm: region already exists")
)

// MappedRegion represents a memory-mapped shared region.
type MappedRegion struct {
	Addr []byte
	Path string
	fd   int
}

// MapOptions defines options for mapping shared memory.
type MapOptions struct {
	Name string
	Dir  string
	// Size is required when Create is set. When opening an existing region a
	// zero Size maps the whole backing file.
	Size   int
	Create bool
}

func (o MapOptions) dir() string {
	if o.Dir == "" {
		return DefaultDir
	}
	return o.Dir
}

// Function implementations are provided in platform-specific files (platform_linux.go, platform_other.go).

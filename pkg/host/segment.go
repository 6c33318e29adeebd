/*
 * Copyright 2025 SREDiag Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package host

import (
	"context"
	"fmt"
	"unsafe"

	"github.com/srediag/plugin-shmem/api"
	"github.com/srediag/plugin-shmem/internal/shm"
)

const (
	segmentMagic    = 0x53484d45 // "SHME"
	segmentVersion  = 1
	indexKeySize    = api.MaxNameLen + 1
	maxIndexEntries = 256
	maxTranches     = 64
	cacheLineSize   = 64

	// AddinShmemInitLockName names the well-known initialization lock.
	AddinShmemInitLockName = "AddinShmemInitLock"
	shmemIndexLockName     = "ShmemIndexLock"
)

type indexEntry struct {
	key    [indexKeySize]byte
	offset uint64
	size   uint64
}

type trancheEntry struct {
	name   [indexKeySize]byte
	count  uint32
	_      uint32
	offset uint64
}

// segmentHeader sits at offset zero of every segment. magic is written last
// when the segment is created.
type segmentHeader struct {
	magic     uint32
	version   uint32
	size      uint64
	freeOff   uint64
	indexLock uint32
	initLock  uint32
	nIndex    uint32
	nTranche  uint32
	index     [maxIndexEntries]indexEntry
	tranches  [maxTranches]trancheEntry
}

const headerSize = unsafe.Sizeof(segmentHeader{})

// Segment is one process's mapping of the shared memory segment.
type Segment struct {
	region *shm.MappedRegion
	hdr    *segmentHeader
	base   unsafe.Pointer
}

// IndexEntry describes a named slot.
type IndexEntry struct {
	Name   string
	Offset uint64
	Size   uint64
}

// TrancheInfo describes a named lock tranche.
type TrancheInfo struct {
	Name   string
	Count  int
	Offset uint64
}

func createSegment(ctx context.Context, opts shm.MapOptions, plan *Plan) (*Segment, error) {
	if len(plan.Tranches) > maxTranches {
		return nil, ErrTooManyTranches
	}
	region, err := shm.MapRegion(ctx, opts)
	if err != nil {
		return nil, err
	}
	s := newSegment(region)
	h := s.hdr
	shm.AtomicStoreUint64(unsafe.Pointer(&h.size), uint64(len(region.Addr)))
	shm.AtomicStoreUint64(unsafe.Pointer(&h.freeOff), uint64(headerSize))
	h.version = segmentVersion
	for i, t := range plan.Tranches {
		off, err := s.alloc(uint64(t.count) * lockWordSize)
		if err != nil {
			_ = shm.UnmapRegion(ctx, region)
			return nil, err
		}
		e := &h.tranches[i]
		putKey(&e.name, t.name)
		e.count = uint32(t.count)
		e.offset = off
	}
	h.nTranche = uint32(len(plan.Tranches))
	shm.AtomicStoreUint32(unsafe.Pointer(&h.magic), segmentMagic)
	return s, nil
}

func openSegment(ctx context.Context, opts shm.MapOptions) (*Segment, error) {
	opts.Create = false
	opts.Size = 0
	region, err := shm.MapRegion(ctx, opts)
	if err != nil {
		return nil, err
	}
	if len(region.Addr) < int(headerSize) {
		_ = shm.UnmapRegion(ctx, region)
		return nil, fmt.Errorf("%w: %d bytes is smaller than the header", ErrBadSegment, len(region.Addr))
	}
	s := newSegment(region)
	if err := s.check(); err != nil {
		_ = shm.UnmapRegion(ctx, region)
		return nil, err
	}
	return s, nil
}

func newSegment(region *shm.MappedRegion) *Segment {
	base := unsafe.Pointer(&region.Addr[0])
	return &Segment{
		region: region,
		hdr:    (*segmentHeader)(base),
		base:   base,
	}
}

func (s *Segment) check() error {
	if magic := shm.AtomicLoadUint32(unsafe.Pointer(&s.hdr.magic)); magic != segmentMagic {
		return fmt.Errorf("%w: bad magic %#x", ErrBadSegment, magic)
	}
	if s.hdr.version != segmentVersion {
		return fmt.Errorf("%w: version %d, want %d", ErrBadSegment, s.hdr.version, segmentVersion)
	}
	if size := s.Size(); size != uint64(len(s.region.Addr)) {
		return fmt.Errorf("%w: header says %d bytes, mapped %d", ErrBadSegment, size, len(s.region.Addr))
	}
	return nil
}

// Path returns the backing file path.
func (s *Segment) Path() string { return s.region.Path }

// Size returns the mapped size in bytes.
func (s *Segment) Size() uint64 { return shm.AtomicLoadUint64(unsafe.Pointer(&s.hdr.size)) }

// Free returns the bytes still available to new slots. It does not take the
// index lock.
func (s *Segment) Free() uint64 {
	size := s.Size()
	used := alignUp(shm.AtomicLoadUint64(unsafe.Pointer(&s.hdr.freeOff)), cacheLineSize)
	if used >= size {
		return 0
	}
	return size - used
}

// InitStruct finds the named slot or allocates it. found reports whether the
// slot already existed; a new slot's bytes are zero.
func (s *Segment) InitStruct(name string, size uintptr) (unsafe.Pointer, bool, error) {
	if err := api.ValidateName(name); err != nil {
		return nil, false, err
	}
	lock := s.indexLock()
	lock.Acquire(api.LockExclusive)
	defer lock.Release()

	h := s.hdr
	n := int(h.nIndex)
	for i := 0; i < n; i++ {
		e := &h.index[i]
		if keyString(&e.key) != name {
			continue
		}
		if e.size != uint64(size) {
			return nil, false, fmt.Errorf("%w %q: expected %d, actual %d", ErrSlotSizeMismatch, name, e.size, size)
		}
		return s.at(e.offset), true, nil
	}
	if n >= maxIndexEntries {
		return nil, false, fmt.Errorf("%w for data structure %q", ErrIndexFull, name)
	}
	off, err := s.alloc(uint64(size))
	if err != nil {
		return nil, false, fmt.Errorf("%w: data structure %q (%d bytes requested)", err, name, size)
	}
	e := &h.index[n]
	putKey(&e.key, name)
	e.offset = off
	e.size = uint64(size)
	h.nIndex = uint32(n + 1)
	return s.at(off), false, nil
}

// alloc bumps the free offset. Callers hold the index lock, or own the
// segment exclusively during creation; the offset is still swapped
// atomically because Free reads it without the lock.
func (s *Segment) alloc(size uint64) (uint64, error) {
	if size == 0 {
		size = 1
	}
	total := s.Size()
	addr := unsafe.Pointer(&s.hdr.freeOff)
	for {
		cur := shm.AtomicLoadUint64(addr)
		off := alignUp(cur, cacheLineSize)
		end := off + size
		if off < cur || end < off || end > total {
			return 0, ErrOutOfSharedMemory
		}
		if shm.AtomicCompareAndSwapUint64(addr, cur, end) {
			return off, nil
		}
	}
}

func (s *Segment) at(off uint64) unsafe.Pointer {
	return unsafe.Add(s.base, off)
}

func (s *Segment) indexLock() *LWLock {
	return newLWLock(shmemIndexLockName, unsafe.Pointer(&s.hdr.indexLock))
}

func (s *Segment) initLock() *LWLock {
	return newLWLock(AddinShmemInitLockName, unsafe.Pointer(&s.hdr.initLock))
}

// tranche returns a handle on the first lock of a named tranche. The table is
// written once at creation and read without locking.
func (s *Segment) tranche(name string) (*LWLock, error) {
	for i := 0; i < int(s.hdr.nTranche); i++ {
		e := &s.hdr.tranches[i]
		if keyString(&e.name) == name {
			return newLWLock(name, s.at(e.offset)), nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTrancheNotFound, name)
}

// Entries lists the named slots in creation order.
func (s *Segment) Entries() []IndexEntry {
	lock := s.indexLock()
	lock.Acquire(api.LockShared)
	defer lock.Release()
	out := make([]IndexEntry, 0, s.hdr.nIndex)
	for i := 0; i < int(s.hdr.nIndex); i++ {
		e := &s.hdr.index[i]
		out = append(out, IndexEntry{Name: keyString(&e.key), Offset: e.offset, Size: e.size})
	}
	return out
}

// Tranches lists the lock tranches reserved at creation.
func (s *Segment) Tranches() []TrancheInfo {
	out := make([]TrancheInfo, 0, s.hdr.nTranche)
	for i := 0; i < int(s.hdr.nTranche); i++ {
		e := &s.hdr.tranches[i]
		out = append(out, TrancheInfo{Name: keyString(&e.name), Count: int(e.count), Offset: e.offset})
	}
	return out
}

func (s *Segment) close(ctx context.Context) error {
	return shm.UnmapRegion(ctx, s.region)
}

func putKey(dst *[indexKeySize]byte, name string) {
	*dst = [indexKeySize]byte{}
	copy(dst[:indexKeySize-1], name)
}

func keyString(k *[indexKeySize]byte) string {
	for i, c := range k {
		if c == 0 {
			return string(k[:i])
		}
	}
	return string(k[:])
}

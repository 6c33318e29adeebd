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

package shmem

import (
	"fmt"
	"strconv"
	"sync/atomic"
	"unsafe"

	"github.com/srediag/plugin-shmem/api"
)

// AtomicValue lists the sync/atomic types an Atomic can hold.
type AtomicValue interface {
	atomic.Bool | atomic.Int32 | atomic.Int64 | atomic.Uint32 | atomic.Uint64 | atomic.Uintptr
}

// AtomicSlot is a declaration whose slot needs no lock. Only Atomic implements it.
type AtomicSlot interface {
	Attached() bool
	slotKey() string
	slotSize() uintptr
	initDefault(p unsafe.Pointer)
	bind(p unsafe.Pointer)
}

var atomicIDs atomic.Uint64

// Atomic binds a sync/atomic value to an anonymous slot. The first process to
// attach mints the slot's name; every other process finds it through a
// record published under the atomic's request order.
type Atomic[T AtomicValue] struct {
	id  uint64
	ptr *T
}

var _ AtomicSlot = (*Atomic[atomic.Bool])(nil)

// NewAtomic declares an atomic.
func NewAtomic[T AtomicValue]() *Atomic[T] {
	return &Atomic[T]{id: atomicIDs.Add(1)}
}

// Get returns the value living in shared memory. Use its own methods
// (Load, Store, CompareAndSwap, ...) to access it.
func (a *Atomic[T]) Get() *T {
	if a.ptr == nil {
		panic(fmt.Errorf("%w: atomic #%d", ErrNotAttached, a.id))
	}
	return a.ptr
}

// Attached reports whether the attach phase bound this atomic.
func (a *Atomic[T]) Attached() bool { return a.ptr != nil }

// ShmemRequest implements Declaration.
func (a *Atomic[T]) ShmemRequest(r *Registrar, h api.Host) error { return r.RequestAtomic(h, a) }

// ShmemInit implements Declaration.
func (a *Atomic[T]) ShmemInit(r *Registrar, h api.Host) error { return r.AttachAtomic(h, a) }

func (a *Atomic[T]) slotKey() string { return strconv.FormatUint(a.id, 10) }

func (a *Atomic[T]) slotSize() uintptr { return unsafe.Sizeof(*new(T)) }

// initDefault copies a locally built zero value into the slot byte by byte.
func (a *Atomic[T]) initDefault(p unsafe.Pointer) {
	var v T
	n := a.slotSize()
	copy(unsafe.Slice((*byte)(p), n), unsafe.Slice((*byte)(unsafe.Pointer(&v)), n))
}

func (a *Atomic[T]) bind(p unsafe.Pointer) {
	if a.ptr != nil {
		panic(fmt.Errorf("%w: atomic #%d", ErrAlreadyAttached, a.id))
	}
	a.ptr = (*T)(p)
}

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
	"unsafe"

	"github.com/srediag/plugin-shmem/api"
)

// LockedSlot is a declaration whose slot is guarded by a named lock tranche.
// Only Cell implements it.
type LockedSlot interface {
	Name() string
	Attached() bool
	slotSize() uintptr
	initDefault(p unsafe.Pointer)
	bind(p unsafe.Pointer, lock api.Lock)
}

// Cell binds a value of type T to a named, lock-protected slot. The slot and
// a lock tranche share the cell's name.
//
// A Cell belongs to one process. Reads and writes go through Share and
// Exclusive, which hold the tranche lock for the lifetime of the guard.
type Cell[T any] struct {
	name string
	ptr  *T
	lock api.Lock
}

var _ LockedSlot = (*Cell[int32])(nil)

// NewCell declares a cell. It panics if T is not eligible for shared memory,
// so declarations fail when the package is initialized.
func NewCell[T any](name string) *Cell[T] {
	if err := CheckEligible[T](); err != nil {
		panic(err)
	}
	return &Cell[T]{name: name}
}

// Name returns the slot and tranche name.
func (c *Cell[T]) Name() string { return c.name }

// Attached reports whether the attach phase bound this cell.
func (c *Cell[T]) Attached() bool { return c.ptr != nil }

// ShmemRequest implements Declaration.
func (c *Cell[T]) ShmemRequest(r *Registrar, h api.Host) error { return r.RequestLocked(h, c) }

// ShmemInit implements Declaration.
func (c *Cell[T]) ShmemInit(r *Registrar, h api.Host) error { return r.AttachLocked(h, c) }

func (c *Cell[T]) slotSize() uintptr {
	var zero T
	return unsafe.Sizeof(zero)
}

func (c *Cell[T]) initDefault(p unsafe.Pointer) {
	v := (*T)(p)
	var zero T
	*v = zero
	if d, ok := any(v).(Defaulter); ok {
		d.SetDefaults()
	}
}

func (c *Cell[T]) bind(p unsafe.Pointer, lock api.Lock) {
	if c.ptr != nil {
		panic(fmt.Errorf("%w: %q", ErrAlreadyAttached, c.name))
	}
	c.ptr = (*T)(p)
	c.lock = lock
}

func (c *Cell[T]) mustAttached() {
	if c.ptr == nil {
		panic(fmt.Errorf("%w: %q", ErrNotAttached, c.name))
	}
}

// Share acquires the cell's lock in shared mode.
func (c *Cell[T]) Share() *ReadGuard[T] {
	c.mustAttached()
	c.lock.Acquire(api.LockShared)
	return &ReadGuard[T]{ptr: c.ptr, lock: c.lock}
}

// Exclusive acquires the cell's lock in exclusive mode.
func (c *Cell[T]) Exclusive() *WriteGuard[T] {
	c.mustAttached()
	c.lock.Acquire(api.LockExclusive)
	return &WriteGuard[T]{ptr: c.ptr, lock: c.lock}
}

// Load returns a copy of the value under a shared lock.
func (c *Cell[T]) Load() T {
	g := c.Share()
	defer g.Release()
	return g.Get()
}

// Store replaces the value under an exclusive lock.
func (c *Cell[T]) Store(v T) {
	g := c.Exclusive()
	defer g.Release()
	g.Set(v)
}

// Update runs fn on the value in place under an exclusive lock.
// fn must not keep v after it returns.
func (c *Cell[T]) Update(fn func(v *T)) {
	g := c.Exclusive()
	defer g.Release()
	fn(g.Get())
}

// ReadGuard is a shared hold on a cell's lock.
type ReadGuard[T any] struct {
	ptr  *T
	lock api.Lock
}

// Get copies the value out of shared memory.
func (g *ReadGuard[T]) Get() T {
	if g.ptr == nil {
		panic(ErrGuardReleased)
	}
	return *g.ptr
}

// Release drops the shared hold.
func (g *ReadGuard[T]) Release() {
	if g.ptr == nil {
		panic(ErrGuardReleased)
	}
	g.ptr = nil
	g.lock.Release()
}

// WriteGuard is an exclusive hold on a cell's lock.
type WriteGuard[T any] struct {
	ptr  *T
	lock api.Lock
}

// Get returns a pointer into shared memory, valid until Release.
func (g *WriteGuard[T]) Get() *T {
	if g.ptr == nil {
		panic(ErrGuardReleased)
	}
	return g.ptr
}

// Set overwrites the value.
func (g *WriteGuard[T]) Set(v T) {
	*g.Get() = v
}

// Release drops the exclusive hold.
func (g *WriteGuard[T]) Release() {
	if g.ptr == nil {
		panic(ErrGuardReleased)
	}
	g.ptr = nil
	g.lock.Release()
}

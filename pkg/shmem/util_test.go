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
	"errors"
	"fmt"
	"io"
	"sync"
	"unsafe"

	"github.com/srediag/plugin-shmem/api"
)

// memLock is an in-process api.Lock that remembers how it is held.
type memLock struct {
	mu       sync.RWMutex
	mode     api.LockMode
	held     bool
	acquired int
}

func (l *memLock) Acquire(mode api.LockMode) {
	if mode == api.LockExclusive {
		l.mu.Lock()
	} else {
		l.mu.RLock()
	}
	l.mode, l.held = mode, true
	l.acquired++
}

func (l *memLock) Release() {
	l.held = false
	if l.mode == api.LockExclusive {
		l.mu.Unlock()
	} else {
		l.mu.RUnlock()
	}
}

// memHost is an api.Host backed by Go memory. Slots are word aligned.
type memHost struct {
	bytes    uintptr
	tranches map[string]int
	slots    map[string][]uint64
	initLock memLock
	locks    map[string]*memLock

	// initHeld records, for each ShmemInitStruct call, whether the init lock
	// was held exclusively.
	initHeld []bool
}

var _ api.Host = (*memHost)(nil)

func newMemHost() *memHost {
	return &memHost{
		tranches: make(map[string]int),
		slots:    make(map[string][]uint64),
		locks:    make(map[string]*memLock),
	}
}

func (h *memHost) RequestAddinShmemSpace(size uintptr) error {
	h.bytes += size
	return nil
}

func (h *memHost) RequestNamedLWLockTranche(name string, count int) error {
	h.tranches[name] = count
	return nil
}

func (h *memHost) ShmemInitStruct(name string, size uintptr) (unsafe.Pointer, bool, error) {
	h.initHeld = append(h.initHeld, h.initLock.held && h.initLock.mode == api.LockExclusive)
	if s, ok := h.slots[name]; ok {
		return unsafe.Pointer(&s[0]), true, nil
	}
	s := make([]uint64, (size+7)/8+1)
	for i := range s {
		s[i] = 0xdeadbeefdeadbeef
	}
	h.slots[name] = s
	return unsafe.Pointer(&s[0]), false, nil
}

func (h *memHost) AddinShmemInitLock() api.Lock { return &h.initLock }

func (h *memHost) NamedLWLockTranche(name string) (api.Lock, error) {
	if _, ok := h.tranches[name]; !ok {
		return nil, errors.New("tranche not requested: " + name)
	}
	l, ok := h.locks[name]
	if !ok {
		l = &memLock{}
		h.locks[name] = l
	}
	return l, nil
}

func testRegistrar(mut ...func(*Config)) *Registrar {
	cfg := DefaultConfig()
	cfg.LogOutput = io.Discard
	for _, m := range mut {
		m(cfg)
	}
	r, err := NewRegistrar(cfg)
	if err != nil {
		panic(err)
	}
	return r
}

// recoverError runs f and returns the error it panicked with, if any.
func recoverError(f func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			e, ok := r.(error)
			if !ok {
				e = fmt.Errorf("%v", r)
			}
			err = e
		}
	}()
	f()
	return nil
}

// memProcess adds hook slots to memHost.
type memProcess struct {
	*memHost
	request api.Hook
	startup api.Hook
}

func newMemProcess() *memProcess { return &memProcess{memHost: newMemHost()} }

func (p *memProcess) SwapShmemRequestHook(h api.Hook) api.Hook {
	prev := p.request
	p.request = h
	return prev
}

func (p *memProcess) SwapShmemStartupHook(h api.Hook) api.Hook {
	prev := p.startup
	p.startup = h
	return prev
}

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
	"fmt"
	"unsafe"

	"github.com/srediag/plugin-shmem/api"
	"github.com/srediag/plugin-shmem/internal/logging"
)

// Process is one simulated backend: its own hook slots, its own lock handles
// and its own mapping of the segment. The postmaster's Process also owns the
// size ledger.
type Process struct {
	pid    int
	ledger *Ledger
	seg    *Segment
	log    *logging.Logger

	requestHook api.Hook
	startupHook api.Hook

	initLock *LWLock
	tranches map[string]*LWLock
}

var _ api.Process = (*Process)(nil)

func newProcess(pid int, log *logging.Logger) *Process {
	return &Process{
		pid:      pid,
		log:      log,
		tranches: make(map[string]*LWLock),
	}
}

// PID identifies the process within its postmaster.
func (p *Process) PID() int { return p.pid }

// IsPostmaster reports whether this process sized and created the segment.
func (p *Process) IsPostmaster() bool { return p.ledger != nil }

// Segment returns the attached segment, or nil before attach.
func (p *Process) Segment() *Segment { return p.seg }

func (p *Process) attach(seg *Segment) {
	p.seg = seg
	p.initLock = seg.initLock()
}

// RequestAddinShmemSpace adds size bytes to the postmaster's ledger.
func (p *Process) RequestAddinShmemSpace(size uintptr) error {
	l, err := p.requestLedger()
	if err != nil || l == nil {
		return err
	}
	return l.addSize(size)
}

// RequestNamedLWLockTranche reserves count locks under name.
func (p *Process) RequestNamedLWLockTranche(name string, count int) error {
	l, err := p.requestLedger()
	if err != nil || l == nil {
		return err
	}
	return l.addTranche(name, count)
}

// ShmemInitStruct finds or allocates a named slot in the attached segment.
func (p *Process) ShmemInitStruct(name string, size uintptr) (unsafe.Pointer, bool, error) {
	if p.seg == nil {
		return nil, false, ErrNoSegment
	}
	addr, found, err := p.seg.InitStruct(name, size)
	if err != nil {
		return nil, false, err
	}
	p.log.Debugf("pid %d: ShmemInitStruct %q size=%d found=%t", p.pid, name, size, found)
	return addr, found, nil
}

// AddinShmemInitLock returns this process's handle on the init lock.
// It panics before the segment is attached.
func (p *Process) AddinShmemInitLock() api.Lock {
	if p.initLock == nil {
		panic(fmt.Errorf("%w: %s", ErrNoSegment, AddinShmemInitLockName))
	}
	return p.initLock
}

// NamedLWLockTranche returns this process's handle on the first lock of a tranche.
func (p *Process) NamedLWLockTranche(name string) (api.Lock, error) {
	if l, ok := p.tranches[name]; ok {
		return l, nil
	}
	if p.seg == nil {
		return nil, ErrNoSegment
	}
	l, err := p.seg.tranche(name)
	if err != nil {
		return nil, err
	}
	p.tranches[name] = l
	return l, nil
}

// SwapShmemStartupHook installs h and returns the previous startup hook.
func (p *Process) SwapShmemStartupHook(h api.Hook) api.Hook {
	prev := p.startupHook
	p.startupHook = h
	return prev
}

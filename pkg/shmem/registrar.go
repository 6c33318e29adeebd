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
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"unsafe"

	cmap "github.com/orcaman/concurrent-map/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/srediag/plugin-shmem/api"
	"github.com/srediag/plugin-shmem/internal/logging"
)

type phase int

const (
	phaseRequested phase = iota + 1
	phaseAttached
)

// publicationSize is the size of the record that maps an atomic's key to the
// slot name minted for it. It holds one NUL-terminated index name.
const publicationSize = uintptr(api.MaxNameLen + 1)

type declState struct {
	phase phase
	// published is the index key of an atomic's publication record.
	published string
}

// Registrar drives the two-phase protocol for one process. It remembers which
// declarations finished each phase so that duplicates and out-of-order
// attaches are caught.
type Registrar struct {
	cfg       *Config
	decls     cmap.ConcurrentMap[string, declState]
	atomicSeq atomic.Int64
	log       *logging.Logger
	metrics   *metrics
}

// NewRegistrar returns a registrar; a nil cfg uses DefaultConfig.
func NewRegistrar(cfg *Config) (*Registrar, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	m, err := newMetrics(cfg)
	if err != nil {
		return nil, fmt.Errorf("shmem metrics: %w", err)
	}
	return &Registrar{
		cfg:     cfg,
		decls:   cmap.New[declState](),
		log:     logging.New("shmem", cfg.LogOutput),
		metrics: m,
	}, nil
}

func lockedKey(name string) string { return "lwlock/" + name }
func atomicKey(id string) string   { return "atomic/" + id }

// RequestLocked is the request phase of a Cell: reserve its bytes and a lock
// tranche of one under its name.
func (r *Registrar) RequestLocked(h api.Host, s LockedSlot) error {
	name := s.Name()
	if err := api.ValidateName(name); err != nil {
		return err
	}
	if !r.decls.SetIfAbsent(lockedKey(name), declState{phase: phaseRequested}) {
		return fmt.Errorf("%w: %q", ErrDuplicateDeclaration, name)
	}
	size := s.slotSize()
	if err := h.RequestAddinShmemSpace(size); err != nil {
		return fmt.Errorf("request %d bytes for %q: %w", size, name, err)
	}
	if err := h.RequestNamedLWLockTranche(name, 1); err != nil {
		return fmt.Errorf("request lock tranche %q: %w", name, err)
	}
	r.metrics.requested(kindLocked, size)
	r.log.Debugf("requested %d bytes and tranche %q", size, name)
	return nil
}

// RequestAtomic is the request phase of an Atomic: reserve its bytes and its
// publication record. Atomics are numbered in request order, which every
// process loading the same modules repeats, so the n-th atomic of one process
// resolves to the n-th atomic of every other.
func (r *Registrar) RequestAtomic(h api.Host, s AtomicSlot) error {
	key := atomicKey(s.slotKey())
	if r.decls.Has(key) {
		return fmt.Errorf("%w: atomic #%s", ErrDuplicateDeclaration, s.slotKey())
	}
	published := "shmem.atomic/" + r.cfg.Namespace + "/" + strconv.FormatInt(r.atomicSeq.Add(1), 10)
	if err := api.ValidateName(published); err != nil {
		return fmt.Errorf("namespace %q: %w", r.cfg.Namespace, err)
	}
	if !r.decls.SetIfAbsent(key, declState{phase: phaseRequested, published: published}) {
		return fmt.Errorf("%w: atomic #%s", ErrDuplicateDeclaration, s.slotKey())
	}
	for _, n := range []uintptr{s.slotSize(), publicationSize} {
		if err := h.RequestAddinShmemSpace(n); err != nil {
			return fmt.Errorf("request %d bytes for atomic #%s: %w", n, s.slotKey(), err)
		}
	}
	size := s.slotSize() + publicationSize
	r.metrics.requested(kindAtomic, size)
	r.log.Debugf("requested %d bytes for atomic #%s as %q", size, s.slotKey(), published)
	return nil
}

// AttachLocked is the attach phase of a Cell. Under the host's init lock it
// finds or creates the named slot, initializes it if this process created it
// (or always, with ReinitializeOnAttach), and binds the cell to the slot and
// its tranche lock. A cell that an earlier process in the same address space
// already bound keeps that binding.
func (r *Registrar) AttachLocked(h api.Host, s LockedSlot) (err error) {
	name := s.Name()
	key := lockedKey(name)
	if _, err := r.checkAttach(key); err != nil {
		return fmt.Errorf("%w: %q", err, name)
	}
	ctx, span := r.cfg.Tracer.Start(context.Background(), "shmem.attach", trace.WithAttributes(
		attribute.String("shmem.kind", kindLocked),
		attribute.String("shmem.name", name),
	))
	defer func() { endSpan(span, err) }()

	initLock := h.AddinShmemInitLock()
	initLock.Acquire(api.LockExclusive)
	defer initLock.Release()

	addr, found, err := h.ShmemInitStruct(name, s.slotSize())
	if err != nil {
		return fmt.Errorf("attach %q: %w", name, err)
	}
	lock, err := h.NamedLWLockTranche(name)
	if err != nil {
		return fmt.Errorf("attach %q: %w", name, err)
	}
	if !found || r.cfg.ReinitializeOnAttach {
		s.initDefault(addr)
	}
	if !s.Attached() {
		s.bind(addr, lock)
	}
	r.decls.Set(key, declState{phase: phaseAttached})
	r.metrics.attached(ctx, kindLocked, found)
	r.log.Debugf("attached %q found=%t", name, found)
	return nil
}

// AttachAtomic is the attach phase of an Atomic. The first process to attach
// mints a slot name, creates and initializes the slot, and publishes the name
// under the atomic's key. Later processes resolve the published name and
// attach to the same slot.
func (r *Registrar) AttachAtomic(h api.Host, s AtomicSlot) (err error) {
	key := atomicKey(s.slotKey())
	st, err := r.checkAttach(key)
	if err != nil {
		return fmt.Errorf("%w: atomic #%s", err, s.slotKey())
	}
	ctx, span := r.cfg.Tracer.Start(context.Background(), "shmem.attach", trace.WithAttributes(
		attribute.String("shmem.kind", kindAtomic),
		attribute.String("shmem.key", st.published),
	))
	defer func() { endSpan(span, err) }()

	initLock := h.AddinShmemInitLock()
	initLock.Acquire(api.LockExclusive)
	defer initLock.Release()

	rec, found, err := h.ShmemInitStruct(st.published, publicationSize)
	if err != nil {
		return fmt.Errorf("attach atomic #%s: %w", s.slotKey(), err)
	}
	var addr unsafe.Pointer
	if found {
		name := readPublication(rec)
		if name == "" {
			return fmt.Errorf("%w: %q", ErrNotPublished, st.published)
		}
		var slotFound bool
		if addr, slotFound, err = h.ShmemInitStruct(name, s.slotSize()); err != nil {
			return fmt.Errorf("attach atomic #%s: %w", s.slotKey(), err)
		}
		if !slotFound {
			return fmt.Errorf("%w: %q names missing slot %q", ErrNotPublished, st.published, name)
		}
	} else {
		name := r.mintSlotName()
		var slotFound bool
		if addr, slotFound, err = h.ShmemInitStruct(name, s.slotSize()); err != nil {
			return fmt.Errorf("attach atomic #%s: %w", s.slotKey(), err)
		}
		if slotFound {
			return fmt.Errorf("%w: %q", ErrSlotNameCollision, name)
		}
		s.initDefault(addr)
		writePublication(rec, name)
		span.SetAttributes(attribute.String("shmem.name", name))
	}
	if !s.Attached() {
		s.bind(addr)
	}
	r.decls.Set(key, declState{phase: phaseAttached, published: st.published})
	r.metrics.attached(ctx, kindAtomic, found)
	r.log.Debugf("attached atomic #%s via %q found=%t", s.slotKey(), st.published, found)
	return nil
}

func (r *Registrar) mintSlotName() string { return r.cfg.SlotName() }

func (r *Registrar) checkAttach(key string) (declState, error) {
	st, ok := r.decls.Get(key)
	switch {
	case !ok:
		return st, ErrNotRequested
	case st.phase == phaseAttached:
		return st, ErrAlreadyAttached
	}
	return st, nil
}

func readPublication(rec unsafe.Pointer) string {
	b := unsafe.Slice((*byte)(rec), publicationSize)
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}

func writePublication(rec unsafe.Pointer, name string) {
	b := unsafe.Slice((*byte)(rec), publicationSize)
	n := copy(b[:publicationSize-1], name)
	clear(b[n:])
}

// Pending lists declarations that were requested but not attached yet.
func (r *Registrar) Pending() []string {
	var out []string
	for item := range r.decls.IterBuffered() {
		if item.Val.phase == phaseRequested {
			out = append(out, item.Key)
		}
	}
	sort.Strings(out)
	return out
}

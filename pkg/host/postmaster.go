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
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/srediag/plugin-shmem/api"
	"github.com/srediag/plugin-shmem/internal/logging"
	"github.com/srediag/plugin-shmem/internal/shm"
)

// Module is an extension's module-load callback. It runs once in the
// postmaster and once in every backend.
type Module func(p *Process) error

const (
	stateInit int32 = iota
	stateRunning
	stateStopped
)

// Postmaster drives host start-up: load modules, size the segment from the
// ledger, create it, run the startup hook, then start backends that map the
// same segment.
type Postmaster struct {
	cfg     *Config
	modules []Module
	log     *logging.Logger

	state   atomic.Int32
	nextPID atomic.Int64

	mu       sync.Mutex
	proc     *Process
	backends map[int]*Process
}

// NewPostmaster validates cfg and remembers the preload modules.
func NewPostmaster(cfg *Config, modules ...Module) (*Postmaster, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := VerifyConfig(cfg); err != nil {
		return nil, err
	}
	return &Postmaster{
		cfg:      cfg,
		modules:  modules,
		log:      logging.New("postmaster", cfg.LogOutput),
		backends: make(map[int]*Process),
	}, nil
}

// Start runs the start-up sequence. Any module or hook failure is fatal and
// leaves no segment behind.
func (pm *Postmaster) Start(ctx context.Context) (err error) {
	if !pm.state.CompareAndSwap(stateInit, stateRunning) {
		return ErrAlreadyStarted
	}
	defer func() {
		if err != nil {
			pm.state.Store(stateStopped)
		}
	}()

	p := newProcess(int(pm.nextPID.Add(1)), pm.log)
	p.ledger = newLedger()
	if err := pm.loadWindow(p, func() error { return pm.load(p, pm.modules) }); err != nil {
		return err
	}
	if err := pm.runRequestHooks(p); err != nil {
		return err
	}
	plan, err := p.ledger.consume()
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	size, err := plan.SegmentSize(pm.cfg.SlackBytes)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFatal, err)
	}
	if !shm.CanCreate(size, pm.cfg.Dir) {
		return fmt.Errorf("%w: %w: %d bytes do not fit in %s", ErrFatal, ErrOutOfSharedMemory, size, pm.cfg.Dir)
	}
	opts := pm.cfg.mapOptions()
	opts.Size = int(size)
	opts.Create = true
	seg, err := createSegment(ctx, opts, plan)
	if err != nil {
		return fmt.Errorf("%w: create segment: %w", ErrFatal, err)
	}
	p.attach(seg)
	pm.log.Infof("segment %s created: %d bytes, %d requests, %d tranches",
		seg.Path(), size, plan.Requests, len(plan.Tranches))

	if err := guard("shmem_startup", p.startupHook); err != nil {
		_ = seg.close(ctx)
		_ = shm.RemoveRegion(ctx, pm.cfg.mapOptions())
		return err
	}
	pm.mu.Lock()
	pm.proc = p
	pm.mu.Unlock()
	return nil
}

// StartBackend maps the segment in a new process, runs the module loads and
// then the startup hook. With no modules given the preload modules are used.
func (pm *Postmaster) StartBackend(ctx context.Context, modules ...Module) (*Process, error) {
	if !pm.Running() {
		return nil, ErrNotRunning
	}
	if len(modules) == 0 {
		modules = pm.modules
	}
	pm.mu.Lock()
	if len(pm.backends) >= pm.cfg.MaxBackends {
		pm.mu.Unlock()
		return nil, ErrTooManyBackends
	}
	p := newProcess(int(pm.nextPID.Add(1)), pm.log)
	pm.backends[p.pid] = p
	pm.mu.Unlock()

	err := func() error {
		seg, err := openSegment(ctx, pm.cfg.mapOptions())
		if err != nil {
			return fmt.Errorf("%w: attach segment: %w", ErrFatal, err)
		}
		p.attach(seg)
		if err := pm.load(p, modules); err != nil {
			return err
		}
		if err := pm.replayRequestHooks(p); err != nil {
			return err
		}
		return guard("shmem_startup", p.startupHook)
	}()
	if err != nil {
		_ = pm.StopBackend(ctx, p)
		return nil, err
	}
	pm.log.Debugf("backend %d attached", p.pid)
	return p, nil
}

// StopBackend unmaps the backend's segment. Its handles must not be used afterwards.
func (pm *Postmaster) StopBackend(ctx context.Context, p *Process) error {
	pm.mu.Lock()
	delete(pm.backends, p.pid)
	pm.mu.Unlock()
	if p.seg == nil {
		return nil
	}
	err := p.seg.close(ctx)
	p.seg = nil
	return err
}

// Shutdown stops every backend, unmaps the postmaster and unlinks the segment.
func (pm *Postmaster) Shutdown(ctx context.Context) error {
	if !pm.state.CompareAndSwap(stateRunning, stateStopped) {
		return ErrNotRunning
	}
	var errs []error
	for _, b := range pm.Backends() {
		errs = append(errs, pm.StopBackend(ctx, b))
	}
	pm.mu.Lock()
	p := pm.proc
	pm.proc = nil
	pm.mu.Unlock()
	if p != nil && p.seg != nil {
		errs = append(errs, p.seg.close(ctx))
		p.seg = nil
	}
	errs = append(errs, shm.RemoveRegion(ctx, pm.cfg.mapOptions()))
	return errors.Join(errs...)
}

// Running reports whether start-up completed and Shutdown has not run.
func (pm *Postmaster) Running() bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.state.Load() == stateRunning && pm.proc != nil
}

// Process returns the postmaster's own process, nil before Start completes.
func (pm *Postmaster) Process() *Process {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.proc
}

// Backends returns the attached backends.
func (pm *Postmaster) Backends() []*Process {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	out := make([]*Process, 0, len(pm.backends))
	for _, b := range pm.backends {
		out = append(out, b)
	}
	return out
}

func (pm *Postmaster) load(p *Process, modules []Module) error {
	for i, m := range modules {
		if m == nil {
			continue
		}
		if err := guard(fmt.Sprintf("module %d load", i), func() error { return m(p) }); err != nil {
			return err
		}
	}
	return nil
}

// guard runs a hook the way the host runs extension code: errors and panics
// both become fatal errors.
func guard(name string, h api.Hook) (err error) {
	if h == nil {
		return nil
	}
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("%w: %s: %w", ErrFatal, name, e)
			} else {
				err = fmt.Errorf("%w: %s: %v", ErrFatal, name, r)
			}
		}
	}()
	if err := h(); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrFatal, name, err)
	}
	return nil
}

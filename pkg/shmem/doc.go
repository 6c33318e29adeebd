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
// Package shmem registers typed state in the host's shared memory segment.
//
// Shared state is declared as package-level values and handed to Init from
// the extension's module-load callback:
//
//	var (
//	  counter = shmem.NewCell[int32]("counter")
//	  ready   = shmem.NewAtomic[atomic.Bool]()
//	)
//
//	func Load(p api.Process) error {
//	  return shmem.Init(p, counter, ready)
//	}
//
// Init chains onto the host's hooks. The request phase reserves space (and,
// for a Cell, a lock tranche of the same name) before the host sizes the
// segment; the attach phase binds each handle to its slot under the host's
// init lock once the segment exists. Accessing a handle before it is attached
// panics with ErrNotAttached.
//
// Each process gets its own registrar (see For), so every backend that
// re-runs the module-load callback requests and attaches on its own. A handle
// that an earlier process in the same address space already bound keeps its
// binding, the way a forked backend inherits it. Atomics are shared too: the
// first attach mints and publishes the slot name, later attaches resolve it.
//
// Hosts built with the shmem_legacy tag have no pre-sizing hook; the request
// phase then runs inside Init itself.
package shmem

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
	"sync"

	"github.com/srediag/plugin-shmem/api"
)

// Declaration is anything that takes part in the two phases. Cell and Atomic
// implement it; custom types may too, calling back into the Registrar.
type Declaration interface {
	// ShmemRequest runs in the request phase.
	ShmemRequest(r *Registrar, h api.Host) error
	// ShmemInit runs in the attach phase.
	ShmemInit(r *Registrar, h api.Host) error
}

var (
	defaultConfig = sync.OnceValue(DefaultConfig)
	registrars    sync.Map // api.Process -> *Registrar
)

// For returns p's default registrar, creating it on first use. Default
// registrars share one Config, and with it one Prometheus registry.
func For(p api.Process) *Registrar {
	if r, ok := registrars.Load(p); ok {
		return r.(*Registrar)
	}
	r, err := NewRegistrar(defaultConfig())
	if err != nil {
		panic(err)
	}
	actual, _ := registrars.LoadOrStore(p, r)
	return actual.(*Registrar)
}

// Release drops p's default registrar once the process has exited.
func Release(p api.Process) { registrars.Delete(p) }

// Init registers decls with p's default registrar. Call it once per
// declaration, from the module-load callback.
func Init(p api.Process, decls ...Declaration) error {
	return For(p).Init(p, decls...)
}

// Init chains one request and one startup hook per declaration onto p. Each
// link runs the hook it replaced first, so declarations attach in the order
// they were registered and hooks of other extensions keep running.
func (r *Registrar) Init(p api.Process, decls ...Declaration) error {
	for _, d := range decls {
		if err := r.installHooks(p, d); err != nil {
			return err
		}
	}
	return nil
}

// chain returns a hook that runs prev, if any, then next.
func chain(prev api.Hook, next func() error) api.Hook {
	return func() error {
		if prev != nil {
			if err := prev(); err != nil {
				return err
			}
		}
		return next()
	}
}

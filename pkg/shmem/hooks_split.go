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

//go:build !shmem_legacy

package shmem

import "github.com/srediag/plugin-shmem/api"

// installHooks chains the request phase onto the pre-sizing hook and the
// attach phase onto the startup hook. The saved previous hooks are written
// here, at module load, and only read when the host fires the hooks.
func (r *Registrar) installHooks(p api.Process, d Declaration) error {
	prevRequest := p.SwapShmemRequestHook(nil)
	p.SwapShmemRequestHook(chain(prevRequest, func() error { return d.ShmemRequest(r, p) }))
	prevStartup := p.SwapShmemStartupHook(nil)
	p.SwapShmemStartupHook(chain(prevStartup, func() error { return d.ShmemInit(r, p) }))
	return nil
}

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

package host

import "github.com/srediag/plugin-shmem/api"

// SwapShmemRequestHook installs h and returns the previous request hook.
func (p *Process) SwapShmemRequestHook(h api.Hook) api.Hook {
	prev := p.requestHook
	p.requestHook = h
	return prev
}

// requestLedger: requests are only legal inside the postmaster's request hook.
func (p *Process) requestLedger() (*Ledger, error) {
	if p.ledger == nil || !p.ledger.open {
		return nil, ErrRequestOutsideWindow
	}
	return p.ledger, nil
}

// Module load happens with the ledger closed; sizing runs the request hook.
func (pm *Postmaster) loadWindow(p *Process, load func() error) error {
	return load()
}

func (pm *Postmaster) runRequestHooks(p *Process) error {
	p.ledger.openWindow()
	defer p.ledger.closeWindow()
	return guard("shmem_request", p.requestHook)
}

// Backends run the request hook too, so extensions see the same call
// sequence in every process. What they request is discarded.
func (pm *Postmaster) replayRequestHooks(p *Process) error {
	p.ledger = newLedger()
	defer func() { p.ledger = nil }()
	return pm.runRequestHooks(p)
}

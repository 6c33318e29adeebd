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

//go:build shmem_legacy

package host

// requestLedger: backends re-run module load after the segment exists and
// their requests are ignored, as older hosts do.
func (p *Process) requestLedger() (*Ledger, error) {
	if p.ledger == nil {
		p.log.Debugf("pid %d: ignoring shared memory request from backend", p.pid)
		return nil, nil
	}
	if !p.ledger.open {
		return nil, ErrRequestOutsideWindow
	}
	return p.ledger, nil
}

// Requests are accepted while the postmaster loads modules.
func (pm *Postmaster) loadWindow(p *Process, load func() error) error {
	if p.ledger != nil {
		p.ledger.openWindow()
		defer p.ledger.closeWindow()
	}
	return load()
}

func (pm *Postmaster) runRequestHooks(p *Process) error { return nil }

func (pm *Postmaster) replayRequestHooks(p *Process) error { return nil }

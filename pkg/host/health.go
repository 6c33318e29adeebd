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

	"github.com/heptiolabs/healthcheck"
)

// HealthHandler exposes /live and /ready for the postmaster. Liveness checks
// the segment header; readiness checks that start-up finished and backend
// slots remain.
func (pm *Postmaster) HealthHandler() healthcheck.Handler {
	h := healthcheck.NewHandler()
	h.AddLivenessCheck("segment-header", func() error {
		p := pm.Process()
		if p == nil || p.seg == nil {
			return ErrNoSegment
		}
		return p.seg.check()
	})
	h.AddReadinessCheck("startup-complete", func() error {
		if !pm.Running() {
			return ErrNotRunning
		}
		return nil
	})
	h.AddReadinessCheck("backend-slots", func() error {
		if n := len(pm.Backends()); n >= pm.cfg.MaxBackends {
			return fmt.Errorf("%w: %d of %d", ErrTooManyBackends, n, pm.cfg.MaxBackends)
		}
		return nil
	})
	return h
}

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
	"sort"
	"sync"

	"github.com/panjf2000/ants/v2"
)

// Cluster starts backends concurrently on a bounded worker pool, so their
// startup hooks race for the init lock the way real backends do.
type Cluster struct {
	pm   *Postmaster
	pool *ants.Pool
}

// NewCluster creates a pool of workers goroutines; workers <= 0 uses Config.Workers.
func NewCluster(pm *Postmaster, workers int) (*Cluster, error) {
	if workers <= 0 {
		workers = pm.cfg.Workers
	}
	pool, err := ants.NewPool(workers, ants.WithPreAlloc(true))
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Cluster{pm: pm, pool: pool}, nil
}

// StartBackends starts n backends. modules(i) supplies the module loads for
// the i-th backend; a nil func uses the preload modules. The returned slice is
// ordered by PID and holds only the backends that started.
func (c *Cluster) StartBackends(ctx context.Context, n int, modules func(i int) []Module) ([]*Process, error) {
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		procs []*Process
		errs  []error
	)
	for i := 0; i < n; i++ {
		i := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			var mods []Module
			if modules != nil {
				mods = modules(i)
			}
			p, err := c.pm.StartBackend(ctx, mods...)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("backend %d: %w", i, err))
				return
			}
			procs = append(procs, p)
		}
		if err := c.pool.Submit(task); err != nil {
			wg.Done()
			mu.Lock()
			errs = append(errs, fmt.Errorf("backend %d: submit: %w", i, err))
			mu.Unlock()
		}
	}
	wg.Wait()
	sort.Slice(procs, func(a, b int) bool { return procs[a].pid < procs[b].pid })
	return procs, errors.Join(errs...)
}

// Release stops the worker pool.
func (c *Cluster) Release() {
	c.pool.Release()
}

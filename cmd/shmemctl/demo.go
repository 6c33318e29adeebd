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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/srediag/plugin-shmem/pkg/host"
	"github.com/srediag/plugin-shmem/pkg/shmem"
)

// demoExt is the demo extension as loaded into one process.
type demoExt struct {
	reg     *shmem.Registrar
	counter *shmem.Cell[int64]
	ready   *shmem.Atomic[atomic.Bool]
}

func newDemoExt(cfg *shmem.Config) (*demoExt, error) {
	reg, err := shmem.NewRegistrar(cfg)
	if err != nil {
		return nil, err
	}
	return &demoExt{
		reg:     reg,
		counter: shmem.NewCell[int64]("counter"),
		ready:   shmem.NewAtomic[atomic.Bool](),
	}, nil
}

func (e *demoExt) load(p *host.Process) error {
	return e.reg.Init(p, e.counter, e.ready)
}

func newDemoCmd(root *rootOptions) *cobra.Command {
	var (
		backends   int
		increments int
		listen     string
		reinit     bool
	)
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Start a host whose backends share a counter",
		Long: `The demo command starts a postmaster with a "counter" cell and a "ready"
atomic, starts backends concurrently and has each of them increment the
counter under its lock. With --listen it then serves /live, /ready and
/metrics until interrupted.

Example:
  shmemctl demo --dir /tmp --backends 8 --increments 100
  shmemctl demo -c demo.hcl --listen :9187`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("backends") {
				cfg.Demo.Backends = backends
			}
			if flags.Changed("increments") {
				cfg.Demo.Increments = increments
			}
			if flags.Changed("listen") {
				cfg.Demo.Listen = listen
			}
			if flags.Changed("reinitialize") {
				cfg.Demo.ReinitializeOnAttach = reinit
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runDemo(ctx, cmd.OutOrStdout(), cfg)
		},
	}
	cmd.Flags().IntVarP(&backends, "backends", "n", 4, "number of backends to start")
	cmd.Flags().IntVar(&increments, "increments", 1000, "increments per backend")
	cmd.Flags().StringVar(&listen, "listen", "", "serve health and metrics on this address")
	cmd.Flags().BoolVar(&reinit, "reinitialize", false, "reset the counter on every attach")
	return cmd
}

func runDemo(ctx context.Context, out io.Writer, cfg *cliConfig) (err error) {
	if cfg.Demo.Backends > cfg.Host.MaxBackends {
		return fmt.Errorf("%d backends requested, max_backends is %d", cfg.Demo.Backends, cfg.Host.MaxBackends)
	}
	registry := prometheus.NewRegistry()
	scfg := shmem.DefaultConfig()
	scfg.Registerer = registry
	scfg.ReinitializeOnAttach = cfg.Demo.ReinitializeOnAttach

	pmExt, err := newDemoExt(scfg)
	if err != nil {
		return err
	}
	pm, err := host.NewPostmaster(cfg.Host, pmExt.load)
	if err != nil {
		return err
	}
	if err := pm.Start(ctx); err != nil {
		return err
	}
	defer func() { err = errors.Join(err, pm.Shutdown(context.Background())) }()

	exts := make([]*demoExt, cfg.Demo.Backends)
	for i := range exts {
		if exts[i], err = newDemoExt(scfg); err != nil {
			return err
		}
	}
	cluster, err := host.NewCluster(pm, 0)
	if err != nil {
		return err
	}
	defer cluster.Release()
	if _, err := cluster.StartBackends(ctx, len(exts), func(i int) []host.Module {
		return []host.Module{exts[i].load}
	}); err != nil {
		return err
	}

	start := time.Now()
	var wg sync.WaitGroup
	for _, e := range exts {
		wg.Add(1)
		go func(e *demoExt) {
			defer wg.Done()
			for i := 0; i < cfg.Demo.Increments; i++ {
				e.counter.Update(func(v *int64) { *v++ })
			}
		}(e)
	}
	wg.Wait()
	pmExt.ready.Get().Store(true)

	fmt.Fprintf(out, "counter:%d ready:%t backends:%d elapsed:%s\n",
		pmExt.counter.Load(), pmExt.ready.Get().Load(), len(pm.Backends()), time.Since(start).Round(time.Millisecond))
	if err := host.DumpSegment(out, pm.Process().Segment()); err != nil {
		return err
	}

	if cfg.Demo.Listen == "" {
		return nil
	}
	return serve(ctx, cfg.Demo.Listen, pm, registry)
}

func serve(ctx context.Context, addr string, pm *host.Postmaster, registry *prometheus.Registry) error {
	health := pm.HealthHandler()
	mux := http.NewServeMux()
	mux.Handle("/live", health)
	mux.Handle("/ready", health)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

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

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"unsafe"

	"github.com/stretchr/testify/suite"

	"github.com/srediag/plugin-shmem/api"
)

type PostmasterTestSuite struct {
	suite.Suite
	cfg *Config
	ctx context.Context
}

func (s *PostmasterTestSuite) SetupTest() {
	s.cfg = DefaultConfig()
	s.cfg.Dir = s.T().TempDir()
	s.cfg.SlackBytes = 4096
	s.cfg.MaxBackends = 4
	s.ctx = context.Background()
}

// counterModule requests a 4-byte slot and a tranche in the request hook and
// binds it in the startup hook, recording the address it got.
func counterModule(addr *unsafe.Pointer, found *bool) Module {
	return func(p *Process) error {
		prevReq := p.SwapShmemRequestHook(nil)
		p.SwapShmemRequestHook(func() error {
			if prevReq != nil {
				if err := prevReq(); err != nil {
					return err
				}
			}
			if err := p.RequestAddinShmemSpace(4); err != nil {
				return err
			}
			return p.RequestNamedLWLockTranche("counter", 1)
		})
		prevStart := p.SwapShmemStartupHook(nil)
		p.SwapShmemStartupHook(func() error {
			if prevStart != nil {
				if err := prevStart(); err != nil {
					return err
				}
			}
			lock := p.AddinShmemInitLock()
			lock.Acquire(api.LockExclusive)
			defer lock.Release()
			ptr, f, err := p.ShmemInitStruct("counter", 4)
			if err != nil {
				return err
			}
			if _, err := p.NamedLWLockTranche("counter"); err != nil {
				return err
			}
			*addr, *found = ptr, f
			return nil
		})
		return nil
	}
}

func (s *PostmasterTestSuite) TestStartAndBackends() {
	var pmAddr, bAddr unsafe.Pointer
	var pmFound, bFound bool
	pm, err := NewPostmaster(s.cfg, counterModule(&pmAddr, &pmFound))
	s.Require().NoError(err)
	s.Require().NoError(pm.Start(s.ctx))
	defer func() { s.Require().NoError(pm.Shutdown(s.ctx)) }()

	s.True(pm.Running())
	s.False(pmFound)
	s.NotNil(pmAddr)
	s.True(pm.Process().IsPostmaster())

	b, err := pm.StartBackend(s.ctx, counterModule(&bAddr, &bFound))
	s.Require().NoError(err)
	s.True(bFound, "backend attaches to the slot the postmaster created")
	s.False(b.IsPostmaster())
	s.Len(pm.Backends(), 1)

	*(*int32)(pmAddr) = 11
	s.Equal(int32(11), *(*int32)(bAddr))
}

func (s *PostmasterTestSuite) TestRequestDuringModuleLoadIsFatal() {
	pm, err := NewPostmaster(s.cfg, func(p *Process) error {
		return p.RequestAddinShmemSpace(8)
	})
	s.Require().NoError(err)
	err = pm.Start(s.ctx)
	s.ErrorIs(err, ErrFatal)
	s.ErrorIs(err, ErrRequestOutsideWindow)
	s.False(pm.Running())
}

func (s *PostmasterTestSuite) TestBackendRequestIsRejected() {
	var addr unsafe.Pointer
	var found bool
	pm, err := NewPostmaster(s.cfg, counterModule(&addr, &found))
	s.Require().NoError(err)
	s.Require().NoError(pm.Start(s.ctx))
	defer func() { _ = pm.Shutdown(s.ctx) }()

	_, err = pm.StartBackend(s.ctx, func(p *Process) error {
		return p.RequestNamedLWLockTranche("late", 1)
	})
	s.ErrorIs(err, ErrRequestOutsideWindow)
	s.Empty(pm.Backends())
}

func (s *PostmasterTestSuite) TestStartupHookPanicIsFatal() {
	pm, err := NewPostmaster(s.cfg, func(p *Process) error {
		p.SwapShmemStartupHook(func() error { panic(errors.New("boom")) })
		return nil
	})
	s.Require().NoError(err)
	err = pm.Start(s.ctx)
	s.ErrorIs(err, ErrFatal)
	s.Contains(err.Error(), "boom")

	// the segment was removed, so a new postmaster can start on the same name
	pm2, err := NewPostmaster(s.cfg)
	s.Require().NoError(err)
	s.Require().NoError(pm2.Start(s.ctx))
	s.Require().NoError(pm2.Shutdown(s.ctx))
}

func (s *PostmasterTestSuite) TestLifecycleErrors() {
	pm, err := NewPostmaster(s.cfg)
	s.Require().NoError(err)
	_, err = pm.StartBackend(s.ctx)
	s.ErrorIs(err, ErrNotRunning)
	s.ErrorIs(pm.Shutdown(s.ctx), ErrNotRunning)

	s.Require().NoError(pm.Start(s.ctx))
	s.ErrorIs(pm.Start(s.ctx), ErrAlreadyStarted)
	for i := 0; i < s.cfg.MaxBackends; i++ {
		_, err := pm.StartBackend(s.ctx)
		s.Require().NoError(err)
	}
	_, err = pm.StartBackend(s.ctx)
	s.ErrorIs(err, ErrTooManyBackends)
	s.Require().NoError(pm.Shutdown(s.ctx))
	s.False(pm.Running())
}

func (s *PostmasterTestSuite) TestClusterStartsBackendsConcurrently() {
	var addr unsafe.Pointer
	var found bool
	pm, err := NewPostmaster(s.cfg, counterModule(&addr, &found))
	s.Require().NoError(err)
	s.Require().NoError(pm.Start(s.ctx))
	defer func() { _ = pm.Shutdown(s.ctx) }()

	c, err := NewCluster(pm, 2)
	s.Require().NoError(err)
	defer c.Release()

	addrs := make([]unsafe.Pointer, s.cfg.MaxBackends)
	founds := make([]bool, s.cfg.MaxBackends)
	procs, err := c.StartBackends(s.ctx, s.cfg.MaxBackends, func(i int) []Module {
		return []Module{counterModule(&addrs[i], &founds[i])}
	})
	s.Require().NoError(err)
	s.Len(procs, s.cfg.MaxBackends)
	for i := range founds {
		s.True(founds[i], "backend %d", i)
	}

	_, err = c.StartBackends(s.ctx, 1, nil)
	s.ErrorIs(err, ErrTooManyBackends)
}

func (s *PostmasterTestSuite) TestHealthHandler() {
	pm, err := NewPostmaster(s.cfg)
	s.Require().NoError(err)
	h := pm.HealthHandler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	s.Equal(http.StatusServiceUnavailable, rec.Code)

	s.Require().NoError(pm.Start(s.ctx))
	defer func() { _ = pm.Shutdown(s.ctx) }()
	for _, path := range []string{"/live", "/ready"} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		s.Equal(http.StatusOK, rec.Code, path)
	}
}

func (s *PostmasterTestSuite) TestDebugSegmentDetail() {
	var addr unsafe.Pointer
	var found bool
	pm, err := NewPostmaster(s.cfg, counterModule(&addr, &found))
	s.Require().NoError(err)
	s.Require().NoError(pm.Start(s.ctx))
	defer func() { _ = pm.Shutdown(s.ctx) }()

	var out bytes.Buffer
	s.Require().NoError(DebugSegmentDetail(s.ctx, &out, s.cfg.Dir, s.cfg.SegmentName))
	s.Contains(out.String(), "slot name:counter")
}

func TestPostmasterTestSuite(t *testing.T) {
	suite.Run(t, new(PostmasterTestSuite))
}

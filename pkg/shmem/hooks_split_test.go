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

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_ChainsBothHooks(t *testing.T) {
	p := newMemProcess()
	counter := NewCell[int32]("counter")
	ready := NewAtomic[atomic.Bool]()

	var calls []string
	p.request = func() error {
		calls = append(calls, "other request")
		return nil
	}
	p.startup = func() error {
		assert.False(t, counter.Attached(), "previous startup hook runs first")
		calls = append(calls, "other startup")
		return nil
	}

	r := testRegistrar()
	require.NoError(t, r.Init(p, counter, ready))
	assert.Zero(t, p.bytes, "nothing is requested at module load")
	assert.Empty(t, calls)

	require.NoError(t, p.request())
	assert.Equal(t, []string{"other request"}, calls)
	assert.Equal(t, 8+publicationSize, p.bytes)
	assert.Contains(t, p.tranches, "counter")

	require.NoError(t, p.startup())
	assert.Equal(t, []string{"other request", "other startup"}, calls)
	assert.True(t, counter.Attached())
	assert.True(t, ready.Attached())
}

func TestInit_PreviousHookErrorStopsChain(t *testing.T) {
	p := newMemProcess()
	boom := errors.New("boom")
	p.request = func() error { return boom }
	counter := NewCell[int32]("counter")

	r := testRegistrar()
	require.NoError(t, r.Init(p, counter))
	assert.ErrorIs(t, p.request(), boom)
	assert.Zero(t, p.bytes)
}

func TestInit_DuplicateSurfacesInRequestHook(t *testing.T) {
	p := newMemProcess()
	counter := NewCell[int32]("counter")
	r := testRegistrar()
	require.NoError(t, r.Init(p, counter, NewCell[int64]("counter")))
	assert.ErrorIs(t, p.request(), ErrDuplicateDeclaration)
}

func TestInit_StartupBeforeRequestIsDetected(t *testing.T) {
	p := newMemProcess()
	counter := NewCell[int32]("counter")
	ready := NewAtomic[atomic.Bool]()
	r := testRegistrar()
	require.NoError(t, r.Init(p, counter, ready))

	// the host fires the startup hook without running the request hook first
	assert.ErrorIs(t, p.startup(), ErrNotRequested)
	assert.False(t, counter.Attached())
	assert.Empty(t, p.slots, "nothing was allocated")

	require.NoError(t, p.request())
	require.NoError(t, p.startup())
	assert.True(t, counter.Attached())
	assert.True(t, ready.Attached())
}

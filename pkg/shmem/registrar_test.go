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
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistrar_RequestLocked(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	c := NewCell[int32]("counter")

	require.NoError(t, c.ShmemRequest(r, h))
	assert.Equal(t, uintptr(4), h.bytes)
	assert.Equal(t, map[string]int{"counter": 1}, h.tranches)
	assert.Equal(t, []string{"lwlock/counter"}, r.Pending())

	err := c.ShmemRequest(r, h)
	assert.ErrorIs(t, err, ErrDuplicateDeclaration)
	assert.Equal(t, uintptr(4), h.bytes, "a rejected request reserves nothing")

	// a second cell with the same name is the same declaration
	err = NewCell[int64]("counter").ShmemRequest(r, h)
	assert.ErrorIs(t, err, ErrDuplicateDeclaration)
}

func TestRegistrar_InvalidName(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	for _, name := range []string{"", strings.Repeat("x", 48), "a\x00b"} {
		err := NewCell[int32](name).ShmemRequest(r, h)
		assert.ErrorIs(t, err, ErrInvalidName, "%q", name)
	}
	assert.Zero(t, h.bytes)
}

func TestRegistrar_AttachLocked(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	c := NewCell[int32]("counter")

	err := c.ShmemInit(r, h)
	assert.ErrorIs(t, err, ErrNotRequested)
	assert.False(t, c.Attached())

	require.NoError(t, c.ShmemRequest(r, h))
	require.NoError(t, c.ShmemInit(r, h))
	assert.True(t, c.Attached())
	assert.Equal(t, int32(0), c.Load(), "slot is initialized to the default value")
	assert.Equal(t, []bool{true}, h.initHeld, "slot is located under the exclusive init lock")
	assert.False(t, h.initLock.held)
	assert.Empty(t, r.Pending())

	err = c.ShmemInit(r, h)
	assert.ErrorIs(t, err, ErrAlreadyAttached)
}

func TestRegistrar_FoundSlotKeepsValue(t *testing.T) {
	h := newMemHost()
	first := NewCell[int32]("counter")
	r1 := testRegistrar()
	require.NoError(t, first.ShmemRequest(r1, h))
	require.NoError(t, first.ShmemInit(r1, h))
	first.Store(7)

	second := NewCell[int32]("counter")
	r2 := testRegistrar()
	require.NoError(t, second.ShmemRequest(r2, h))
	require.NoError(t, second.ShmemInit(r2, h))
	assert.Equal(t, int32(7), second.Load())

	third := NewCell[int32]("counter")
	r3 := testRegistrar(func(c *Config) { c.ReinitializeOnAttach = true })
	require.NoError(t, third.ShmemRequest(r3, h))
	require.NoError(t, third.ShmemInit(r3, h))
	assert.Equal(t, int32(0), first.Load(), "reinitialize resets the shared value")
}

type limits struct {
	Max   int64
	Burst [4]uint16
}

func (l *limits) SetDefaults() { l.Max = 10 }

func TestRegistrar_Defaulter(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	c := NewCell[limits]("limits")
	require.NoError(t, c.ShmemRequest(r, h))
	require.NoError(t, c.ShmemInit(r, h))
	assert.Equal(t, limits{Max: 10}, c.Load())

	c.Update(func(v *limits) { v.Burst[2] = 3 })
	assert.Equal(t, uint16(3), c.Load().Burst[2])
}

func TestRegistrar_AttachAtomic(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	ready := NewAtomic[atomic.Bool]()

	assert.ErrorIs(t, ready.ShmemInit(r, h), ErrNotRequested)
	require.NoError(t, ready.ShmemRequest(r, h))
	assert.ErrorIs(t, ready.ShmemRequest(r, h), ErrDuplicateDeclaration)
	assert.Equal(t, 4+publicationSize, h.bytes)
	assert.Empty(t, h.tranches, "atomics need no lock")

	require.NoError(t, ready.ShmemInit(r, h))
	assert.False(t, ready.Get().Load())
	ready.Get().Store(true)
	assert.True(t, ready.Get().Load())
	assert.Equal(t, 1, h.initLock.acquired)
	assert.ErrorIs(t, ready.ShmemInit(r, h), ErrAlreadyAttached)
}

func TestRegistrar_AtomicSlotNameCollision(t *testing.T) {
	h := newMemHost()
	r := testRegistrar(func(c *Config) { c.SlotName = func() string { return "fixed" } })
	a, b := NewAtomic[atomic.Int64](), NewAtomic[atomic.Int64]()
	require.NoError(t, a.ShmemRequest(r, h))
	require.NoError(t, b.ShmemRequest(r, h))
	require.NoError(t, a.ShmemInit(r, h))
	assert.ErrorIs(t, b.ShmemInit(r, h), ErrSlotNameCollision)
	assert.False(t, b.Attached())
}

func TestRegistrar_AtomicSlotNamesAreUnique(t *testing.T) {
	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		seen[uuid.NewString()] = struct{}{}
	}
	assert.Len(t, seen, n)

	minted := make(map[string]struct{}, n)
	h := newMemHost()
	r := testRegistrar(func(c *Config) {
		c.SlotName = func() string {
			name := uuid.NewString()
			minted[name] = struct{}{}
			return name
		}
	})
	for i := 0; i < n; i++ {
		a := NewAtomic[atomic.Uint32]()
		require.NoError(t, a.ShmemRequest(r, h))
		require.NoError(t, a.ShmemInit(r, h))
	}
	assert.Len(t, minted, n)
	assert.Len(t, h.slots, 2*n, "one slot and one publication record per atomic")
}

func TestRegistrar_AtomicResolvedByLaterProcess(t *testing.T) {
	h := newMemHost()
	var minted int
	mint := func(c *Config) {
		c.SlotName = func() string {
			minted++
			return uuid.NewString()
		}
	}

	first, second := testRegistrar(mint), testRegistrar(mint)
	a1, a2 := NewAtomic[atomic.Bool](), NewAtomic[atomic.Bool]()
	require.NoError(t, a1.ShmemRequest(first, h))
	require.NoError(t, a1.ShmemInit(first, h))
	a1.Get().Store(true)

	require.NoError(t, a2.ShmemRequest(second, h))
	require.NoError(t, a2.ShmemInit(second, h))
	assert.True(t, a2.Get().Load(), "the second process attaches to the published slot")
	assert.Equal(t, a1.Get(), a2.Get())
	assert.Equal(t, 1, minted)
	assert.Len(t, h.slots, 2)

	// another namespace gets its own slot
	other := testRegistrar(mint, func(c *Config) { c.Namespace = "other" })
	a3 := NewAtomic[atomic.Bool]()
	require.NoError(t, a3.ShmemRequest(other, h))
	require.NoError(t, a3.ShmemInit(other, h))
	assert.False(t, a3.Get().Load())
	assert.Equal(t, 2, minted)
}

func TestRegistrar_AtomicUnpublishedRecord(t *testing.T) {
	h := newMemHost()
	r := testRegistrar()
	a := NewAtomic[atomic.Int32]()
	require.NoError(t, a.ShmemRequest(r, h))
	// a record that exists but was never written
	_, _, err := h.ShmemInitStruct("shmem.atomic/default/1", publicationSize)
	require.NoError(t, err)
	h.slots["shmem.atomic/default/1"][0] = 0

	assert.ErrorIs(t, a.ShmemInit(r, h), ErrNotPublished)
	assert.False(t, a.Attached())
}

func TestRegistrar_InvalidNamespace(t *testing.T) {
	h := newMemHost()
	r := testRegistrar(func(c *Config) { c.Namespace = strings.Repeat("n", 40) })
	err := NewAtomic[atomic.Bool]().ShmemRequest(r, h)
	assert.ErrorIs(t, err, ErrInvalidName)
	assert.Zero(t, h.bytes)
}

func TestRegistrar_InheritedCell(t *testing.T) {
	h := newMemHost()
	c := NewCell[int32]("counter")
	first := testRegistrar()
	require.NoError(t, c.ShmemRequest(first, h))
	require.NoError(t, c.ShmemInit(first, h))
	c.Store(4)

	// a second process in the same address space re-runs the same declaration
	second := testRegistrar()
	require.NoError(t, c.ShmemRequest(second, h))
	require.NoError(t, c.ShmemInit(second, h))
	assert.Equal(t, int32(4), c.Load())
	assert.Empty(t, second.Pending())
	assert.ErrorIs(t, c.ShmemInit(second, h), ErrAlreadyAttached)
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, f := range families {
		if f.GetName() != name {
			continue
		}
		for _, m := range f.GetMetric() {
			if labelsMatch(m, labels) {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(m *dto.Metric, labels map[string]string) bool {
	got := make(map[string]string, len(m.GetLabel()))
	for _, l := range m.GetLabel() {
		got[l.GetName()] = l.GetValue()
	}
	for k, v := range labels {
		if got[k] != v {
			return false
		}
	}
	return true
}

func TestRegistrar_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	h := newMemHost()
	r := testRegistrar(func(c *Config) { c.Registerer = reg })
	c := NewCell[[8]int64]("table")
	a := NewAtomic[atomic.Uint64]()
	for _, d := range []Declaration{c, a} {
		require.NoError(t, d.ShmemRequest(r, h))
	}
	for _, d := range []Declaration{c, a} {
		require.NoError(t, d.ShmemInit(r, h))
	}

	assert.Equal(t, 1.0, counterValue(t, reg, "shmem_requests_total", map[string]string{"kind": kindLocked}))
	assert.Equal(t, 1.0, counterValue(t, reg, "shmem_requests_total", map[string]string{"kind": kindAtomic}))
	assert.Equal(t, float64(72+publicationSize), counterValue(t, reg, "shmem_reserved_bytes_total", nil))
	assert.Equal(t, 1.0, counterValue(t, reg, "shmem_attaches_total",
		map[string]string{"kind": kindLocked, "found": "false"}))

	// a second registrar on the same registry shares the collectors
	r2 := testRegistrar(func(c *Config) { c.Registerer = reg })
	require.NoError(t, NewCell[int32]("other").ShmemRequest(r2, h))
	assert.Equal(t, 2.0, counterValue(t, reg, "shmem_requests_total", map[string]string{"kind": kindLocked}))
}

func TestNewRegistrar_Config(t *testing.T) {
	_, err := NewRegistrar(&Config{})
	assert.Error(t, err)

	r, err := NewRegistrar(nil)
	require.NoError(t, err)
	assert.NotNil(t, r)

	_, err = NewRegistrar(&Config{
		Registerer: prometheus.NewRegistry(),
		Meter:      DefaultConfig().Meter,
		Tracer:     DefaultConfig().Tracer,
		SlotName:   uuid.NewString,
	})
	assert.ErrorContains(t, err, "Namespace")
}

func TestNewRegistrar_MetricsConflict(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "shmem_requests_total",
		Help: "something else",
	}))
	_, err := NewRegistrar(func() *Config {
		c := DefaultConfig()
		c.Registerer = reg
		return c
	}())
	assert.Error(t, err)
}

func TestFor(t *testing.T) {
	p1, p2 := newMemProcess(), newMemProcess()
	t.Cleanup(func() {
		Release(p1)
		Release(p2)
	})
	assert.Same(t, For(p1), For(p1))
	assert.NotSame(t, For(p1), For(p2))

	r := For(p1)
	Release(p1)
	assert.NotSame(t, r, For(p1))
}

func ExampleCheckEligible() {
	type entry struct {
		Key  [16]byte
		Hits uint64
	}
	type bad struct {
		Name string
	}
	fmt.Println(CheckEligible[entry]())
	fmt.Println(CheckEligible[bad]())
	// Output:
	// <nil>
	// type cannot be placed in shared memory: shmem.bad.Name is a string
}

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
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	kindLocked = "locked"
	kindAtomic = "atomic"
)

type metrics struct {
	requests      *prometheus.CounterVec
	reservedBytes prometheus.Counter
	attaches      *prometheus.CounterVec
	attachCount   metric.Int64Counter
}

func newMetrics(cfg *Config) (*metrics, error) {
	requests, err := register(cfg.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmem",
		Name:      "requests_total",
		Help:      "Shared memory declarations that completed the request phase.",
	}, []string{"kind"}))
	if err != nil {
		return nil, err
	}
	reservedBytes, err := register(cfg.Registerer, prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "shmem",
		Name:      "reserved_bytes_total",
		Help:      "Bytes requested from the host size ledger.",
	}))
	if err != nil {
		return nil, err
	}
	attaches, err := register(cfg.Registerer, prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "shmem",
		Name:      "attaches_total",
		Help:      "Shared memory declarations bound to their slot, by whether the slot already existed.",
	}, []string{"kind", "found"}))
	if err != nil {
		return nil, err
	}
	attachCount, err := cfg.Meter.Int64Counter("shmem.attach",
		metric.WithDescription("Shared memory declarations bound to their slot."))
	if err != nil {
		return nil, err
	}
	return &metrics{
		requests:      requests,
		reservedBytes: reservedBytes,
		attaches:      attaches,
		attachCount:   attachCount,
	}, nil
}

// register adds c to reg, or returns the collector already registered under
// the same descriptor.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	var zero C
	return zero, err
}

func (m *metrics) requested(kind string, size uintptr) {
	m.requests.WithLabelValues(kind).Inc()
	m.reservedBytes.Add(float64(size))
}

func (m *metrics) attached(ctx context.Context, kind string, found bool) {
	m.attaches.WithLabelValues(kind, strconv.FormatBool(found)).Inc()
	m.attachCount.Add(ctx, 1, metric.WithAttributes(
		attribute.String("shmem.kind", kind),
		attribute.Bool("shmem.found", found),
	))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

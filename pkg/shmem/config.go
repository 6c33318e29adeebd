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
	"errors"
	"io"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/srediag/plugin-shmem/pkg/shmem"

// Config holds Registrar parameters.
type Config struct {
	// ReinitializeOnAttach writes the default value into a Cell's slot on every
	// attach, even when another process already initialized it. Off by default:
	// only the process that creates the slot initializes it.
	ReinitializeOnAttach bool
	// Registerer receives the registrar's Prometheus collectors.
	Registerer prometheus.Registerer
	Meter      metric.Meter
	Tracer     trace.Tracer
	// LogOutput receives registrar log lines; stdout when nil.
	LogOutput io.Writer
	// SlotName mints the slot name of an atomic, once per segment.
	SlotName func() string
	// Namespace separates the atomics of registrars that share one process.
	Namespace string
}

// DefaultConfig returns a config with a private Prometheus registry and noop
// OpenTelemetry providers.
func DefaultConfig() *Config {
	return &Config{
		Registerer: prometheus.NewRegistry(),
		Meter:      metricnoop.NewMeterProvider().Meter(instrumentationName),
		Tracer:     tracenoop.NewTracerProvider().Tracer(instrumentationName),
		SlotName:   uuid.NewString,
		Namespace:  "default",
	}
}

// VerifyConfig is used to check whether the config is legal.
func VerifyConfig(config *Config) error {
	switch {
	case config == nil:
		return errors.New("shmem config is nil")
	case config.Registerer == nil:
		return errors.New("Registerer is required")
	case config.Meter == nil:
		return errors.New("Meter is required")
	case config.Tracer == nil:
		return errors.New("Tracer is required")
	case config.SlotName == nil:
		return errors.New("SlotName is required")
	case config.Namespace == "":
		return errors.New("Namespace is required")
	}
	return nil
}

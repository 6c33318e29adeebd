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
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/srediag/plugin-shmem/internal/shm"
)

const (
	defaultSegmentName = "plugin-shmem"
	defaultSlackBytes  = 100 << 10
	defaultMaxBackends = 64
	defaultWorkers     = 8
)

// Config controls the simulated host engine.
type Config struct {
	// SegmentName is the backing file name under Dir.
	SegmentName string
	// Dir holds the backing file, /dev/shm by default.
	Dir string
	// SlackBytes is added to the requested size, for slots created without a request.
	SlackBytes uint64
	// MaxBackends bounds the number of concurrently attached backends.
	MaxBackends int
	// Workers is the default pool size used by Cluster.
	Workers int
	// LogOutput receives host log lines; stdout when nil.
	LogOutput io.Writer
}

// DefaultConfig returns the default host configuration.
func DefaultConfig() *Config {
	return &Config{
		SegmentName: defaultSegmentName,
		Dir:         shm.DefaultDir,
		SlackBytes:  defaultSlackBytes,
		MaxBackends: defaultMaxBackends,
		Workers:     defaultWorkers,
	}
}

// VerifyConfig is used to check whether the config is legal.
func VerifyConfig(config *Config) error {
	if config == nil {
		return errors.New("host config is nil")
	}
	if config.SegmentName == "" || strings.ContainsAny(config.SegmentName, "/\x00") {
		return fmt.Errorf("SegmentName %q is not a valid file name", config.SegmentName)
	}
	if config.MaxBackends <= 0 {
		return fmt.Errorf("MaxBackends must be positive, got %d", config.MaxBackends)
	}
	if config.Workers <= 0 {
		return fmt.Errorf("Workers must be positive, got %d", config.Workers)
	}
	return nil
}

func (c *Config) mapOptions() shm.MapOptions {
	return shm.MapOptions{Name: c.SegmentName, Dir: c.Dir}
}

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
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"

	"github.com/srediag/plugin-shmem/pkg/host"
)

// cliConfig is the decoded config file merged onto the defaults.
type cliConfig struct {
	Host *host.Config
	Demo demoSettings
}

type demoSettings struct {
	Backends             int
	Increments           int
	ReinitializeOnAttach bool
	Listen               string
}

// hclFile is the layout of a config file:
//
//	segment {
//	  name         = "plugin-shmem"
//	  dir          = "/dev/shm"
//	  slack_bytes  = 102400
//	  max_backends = 64
//	  workers      = 8
//	}
//
//	demo {
//	  backends   = 4
//	  increments = 1000
//	  listen     = ":9187"
//	}
type hclFile struct {
	Segment *hclSegment `hcl:"segment,block"`
	Demo    *hclDemo    `hcl:"demo,block"`
}

type hclSegment struct {
	Name        string `hcl:"name,optional"`
	Dir         string `hcl:"dir,optional"`
	SlackBytes  int64  `hcl:"slack_bytes,optional"`
	MaxBackends int    `hcl:"max_backends,optional"`
	Workers     int    `hcl:"workers,optional"`
}

type hclDemo struct {
	Backends             int    `hcl:"backends,optional"`
	Increments           int    `hcl:"increments,optional"`
	ReinitializeOnAttach bool   `hcl:"reinitialize_on_attach,optional"`
	Listen               string `hcl:"listen,optional"`
}

func defaultCLIConfig() *cliConfig {
	return &cliConfig{
		Host: host.DefaultConfig(),
		Demo: demoSettings{Backends: 4, Increments: 1000},
	}
}

// loadConfig decodes path onto the defaults. An empty path returns the defaults.
func loadConfig(path string) (*cliConfig, error) {
	cfg := defaultCLIConfig()
	if path == "" {
		return cfg, nil
	}

	file, diags := hclparse.NewParser().ParseHCLFile(path)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
	}
	var parsed hclFile
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
	}

	if s := parsed.Segment; s != nil {
		if s.Name != "" {
			cfg.Host.SegmentName = s.Name
		}
		if s.Dir != "" {
			cfg.Host.Dir = s.Dir
		}
		if s.SlackBytes < 0 {
			return nil, fmt.Errorf("config file %s: slack_bytes must not be negative", path)
		}
		if s.SlackBytes > 0 {
			cfg.Host.SlackBytes = uint64(s.SlackBytes)
		}
		if s.MaxBackends != 0 {
			cfg.Host.MaxBackends = s.MaxBackends
		}
		if s.Workers != 0 {
			cfg.Host.Workers = s.Workers
		}
	}
	if d := parsed.Demo; d != nil {
		if d.Backends != 0 {
			cfg.Demo.Backends = d.Backends
		}
		if d.Increments != 0 {
			cfg.Demo.Increments = d.Increments
		}
		cfg.Demo.ReinitializeOnAttach = d.ReinitializeOnAttach
		cfg.Demo.Listen = d.Listen
	}
	if err := host.VerifyConfig(cfg.Host); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

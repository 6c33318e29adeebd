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
	"os"

	"github.com/spf13/cobra"

	"github.com/srediag/plugin-shmem/internal/logging"
)

var (
	version = "dev"
	commit  = "none"
)

type rootOptions struct {
	configPath string
	logLevel   string
	dir        string
	name       string
	noColor    bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "shmemctl",
		Short: "Run and inspect simulated shared memory segments",
		Long: `shmemctl drives the simulated host engine: it starts a postmaster and
backends that register typed state in a shared segment, and dumps the
segment index of a running host.`,
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if opts.noColor {
				logging.DisableColor(true)
			}
			if opts.logLevel == "" {
				return nil
			}
			l, ok := logging.ParseLevel(opts.logLevel)
			if !ok {
				return fmt.Errorf("unknown log level %q", opts.logLevel)
			}
			logging.SetLevel(l)
			return nil
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "HCL config file")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "trace, debug, info, warn, error or none (default from $"+logging.EnvLevel+")")
	cmd.PersistentFlags().StringVar(&opts.dir, "dir", "", "directory holding the segment file")
	cmd.PersistentFlags().StringVar(&opts.name, "name", "", "segment file name")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "Disable colored log output")

	cmd.AddCommand(newDemoCmd(opts), newInspectCmd(opts))
	return cmd
}

// load reads the config file, then applies the global flags.
func (o *rootOptions) load() (*cliConfig, error) {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.dir != "" {
		cfg.Host.Dir = o.dir
	}
	if o.name != "" {
		cfg.Host.SegmentName = o.name
	}
	return cfg, nil
}

func execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

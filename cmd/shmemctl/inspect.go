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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/srediag/plugin-shmem/pkg/host"
)

func newInspectCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect [path]",
		Short: "Dump the tranche table and index of a segment",
		Long: `The inspect command maps an existing segment and prints its tranche
table and shmem index. Without a path it uses the configured segment.

Example:
  shmemctl inspect /dev/shm/plugin-shmem
  shmemctl inspect --name plugin-shmem`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			dir, name := cfg.Host.Dir, cfg.Host.SegmentName
			if len(args) == 1 {
				dir, name = filepath.Split(args[0])
			}
			return host.DebugSegmentDetail(cmd.Context(), cmd.OutOrStdout(), dir, name)
		},
	}
}

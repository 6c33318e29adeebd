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

	"github.com/srediag/plugin-shmem/api"
)

var (
	// ErrInvalidName is returned for names the host index cannot store.
	ErrInvalidName = api.ErrInvalidName
	// ErrDuplicateDeclaration is returned when the same declaration is requested twice.
	ErrDuplicateDeclaration = errors.New("shared memory declaration already requested")
	// ErrNotRequested is returned when the attach phase runs for a declaration
	// whose request phase never ran in this process.
	ErrNotRequested = errors.New("shared memory declaration attached before request")
	// ErrAlreadyAttached is returned when a declaration is attached twice.
	ErrAlreadyAttached = errors.New("shared memory declaration already attached")
	// ErrSlotNameCollision is returned when a freshly minted atomic slot name already exists.
	ErrSlotNameCollision = errors.New("atomic slot name already in use")
	// ErrNotPublished is returned when an atomic's publication record exists
	// but names no usable slot.
	ErrNotPublished = errors.New("atomic slot not published")
	// ErrNotAttached is the panic value for access through an unattached handle.
	ErrNotAttached = errors.New("shared memory handle used before attach")
	// ErrGuardReleased is the panic value for access through a released guard.
	ErrGuardReleased = errors.New("shared memory guard used after release")
	// ErrIneligibleType is returned for value types that cannot live in shared memory.
	ErrIneligibleType = errors.New("type cannot be placed in shared memory")
)

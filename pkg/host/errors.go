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

import "errors"

var (
	// ErrRequestOutsideWindow is returned when size or tranche requests arrive
	// after the ledger stopped accepting them.
	ErrRequestOutsideWindow = errors.New("cannot request additional shared memory outside the request window")
	// ErrLedgerConsumed is returned when the ledger was already used to size the segment.
	ErrLedgerConsumed = errors.New("shared memory size ledger already consumed")
	// ErrDuplicateTranche is returned when a lock tranche name is requested twice.
	ErrDuplicateTranche = errors.New("lock tranche already requested")
	// ErrInvalidTrancheCount is returned for tranches of fewer than one lock or more than maxTrancheLocks.
	ErrInvalidTrancheCount = errors.New("invalid lock tranche size")
	// ErrTooManyTranches is returned when the tranche table is full.
	ErrTooManyTranches = errors.New("too many lock tranches")
	// ErrSizeOverflow is returned when the requested segment size overflows.
	ErrSizeOverflow = errors.New("requested shared memory size overflows")

	// ErrNoSegment is returned when the process has not attached the segment yet.
	ErrNoSegment = errors.New("shared memory segment not attached")
	// ErrBadSegment is returned when a mapped file does not carry a valid segment header.
	ErrBadSegment = errors.New("invalid shared memory segment")
	// ErrSlotSizeMismatch is returned when a named slot exists with another size.
	ErrSlotSizeMismatch = errors.New("shmem index entry size is wrong for data structure")
	// ErrIndexFull is returned when no more named slots fit in the shmem index.
	ErrIndexFull = errors.New("could not create shmem index entry")
	// ErrOutOfSharedMemory is returned when the segment has no room left.
	ErrOutOfSharedMemory = errors.New("out of shared memory")
	// ErrTrancheNotFound is returned when a tranche was never requested.
	ErrTrancheNotFound = errors.New("requested lock tranche is not registered")

	// ErrLockHeld is raised when a process re-acquires a lock handle it holds.
	ErrLockHeld = errors.New("lock already held by this process")
	// ErrLockNotHeld is raised when a process releases a lock it does not hold.
	ErrLockNotHeld = errors.New("lock is not held")

	// ErrFatal wraps every failure that aborts host start-up or a backend.
	ErrFatal = errors.New("fatal")
	// ErrNotRunning is returned when backends are started before the postmaster.
	ErrNotRunning = errors.New("postmaster is not running")
	// ErrAlreadyStarted is returned when Start runs twice.
	ErrAlreadyStarted = errors.New("postmaster already started")
	// ErrTooManyBackends is returned when MaxBackends are already running.
	ErrTooManyBackends = errors.New("sorry, too many backends already")
)

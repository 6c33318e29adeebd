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
	"fmt"
	"time"
	"unsafe"

	"github.com/cenkalti/backoff/v4"

	"github.com/srediag/plugin-shmem/api"
	"github.com/srediag/plugin-shmem/internal/shm"
)

// lock word layout: exclusive flag in the top bit, shared holder count below.
const (
	lwExclusive  uint32 = 1 << 31
	lockWordSize        = 4
)

// LWLock is one process's handle on a lock word living in the segment.
// A handle is owned by a single backend and must not be shared between goroutines.
type LWLock struct {
	name string
	word unsafe.Pointer
	mode api.LockMode
	held bool
}

var _ api.Lock = (*LWLock)(nil)

func newLWLock(name string, word unsafe.Pointer) *LWLock {
	return &LWLock{name: name, word: word}
}

// Name returns the tranche or well-known name of the lock.
func (l *LWLock) Name() string { return l.name }

// Acquire blocks until the lock is granted in mode. Waiting backs off
// exponentially up to a couple of milliseconds between attempts.
func (l *LWLock) Acquire(mode api.LockMode) {
	if l.held {
		panic(fmt.Errorf("%w: %s", ErrLockHeld, l.name))
	}
	if !l.try(mode) {
		b := newLockBackOff()
		for !l.try(mode) {
			time.Sleep(b.NextBackOff())
		}
	}
	l.mode, l.held = mode, true
}

// TryAcquire grants the lock only if it is immediately available.
func (l *LWLock) TryAcquire(mode api.LockMode) bool {
	if l.held {
		panic(fmt.Errorf("%w: %s", ErrLockHeld, l.name))
	}
	if !l.try(mode) {
		return false
	}
	l.mode, l.held = mode, true
	return true
}

// Release gives the lock back.
func (l *LWLock) Release() {
	if !l.held {
		panic(fmt.Errorf("%w: %s", ErrLockNotHeld, l.name))
	}
	if l.mode == api.LockExclusive {
		for {
			old := shm.AtomicLoadUint32(l.word)
			if shm.AtomicCompareAndSwapUint32(l.word, old, old&^lwExclusive) {
				break
			}
		}
	} else {
		shm.AtomicAddUint32(l.word, ^uint32(0))
	}
	l.held = false
}

// Held reports whether this handle holds the lock and in which mode.
func (l *LWLock) Held() (api.LockMode, bool) { return l.mode, l.held }

func (l *LWLock) try(mode api.LockMode) bool {
	if mode == api.LockExclusive {
		return shm.AtomicCompareAndSwapUint32(l.word, 0, lwExclusive)
	}
	for {
		old := shm.AtomicLoadUint32(l.word)
		if old&lwExclusive != 0 {
			return false
		}
		if shm.AtomicCompareAndSwapUint32(l.word, old, old+1) {
			return true
		}
	}
}

func newLockBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 5 * time.Microsecond
	b.MaxInterval = 2 * time.Millisecond
	b.MaxElapsedTime = 0
	b.Reset()
	return b
}

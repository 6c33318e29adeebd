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
	"math"

	"github.com/Workiva/go-datastructures/queue"

	"github.com/srediag/plugin-shmem/api"
)

const maxTrancheLocks = 64

type sizeRequest struct {
	size uintptr
}

type trancheRequest struct {
	name  string
	count int
}

// Ledger accumulates shared memory requests until the segment is sized.
// It accepts requests only while its window is open and can be consumed once.
type Ledger struct {
	requests *queue.Queue
	tranches map[string]struct{}
	open     bool
}

func newLedger() *Ledger {
	return &Ledger{
		requests: queue.New(16),
		tranches: make(map[string]struct{}),
	}
}

func (l *Ledger) openWindow()  { l.open = true }
func (l *Ledger) closeWindow() { l.open = false }

func (l *Ledger) addSize(size uintptr) error {
	if !l.open {
		return ErrRequestOutsideWindow
	}
	return l.put(sizeRequest{size: size})
}

func (l *Ledger) addTranche(name string, count int) error {
	if !l.open {
		return ErrRequestOutsideWindow
	}
	if err := api.ValidateName(name); err != nil {
		return err
	}
	if count < 1 || count > maxTrancheLocks {
		return fmt.Errorf("%w: %q asks for %d locks", ErrInvalidTrancheCount, name, count)
	}
	if _, ok := l.tranches[name]; ok {
		return fmt.Errorf("%w: %q", ErrDuplicateTranche, name)
	}
	if len(l.tranches) >= maxTranches {
		return fmt.Errorf("%w: limit is %d", ErrTooManyTranches, maxTranches)
	}
	if err := l.put(trancheRequest{name: name, count: count}); err != nil {
		return err
	}
	l.tranches[name] = struct{}{}
	return nil
}

func (l *Ledger) put(item interface{}) error {
	if err := l.requests.Put(item); err != nil {
		if errors.Is(err, queue.ErrDisposed) {
			return ErrLedgerConsumed
		}
		return err
	}
	return nil
}

// Plan is what the ledger hands to segment creation.
type Plan struct {
	// Bytes is the sum of all cache-line aligned size requests.
	Bytes    uint64
	Requests int
	Tranches []trancheRequest
}

// consume drains the ledger. Later requests fail with ErrLedgerConsumed.
func (l *Ledger) consume() (*Plan, error) {
	if l.requests.Disposed() {
		return nil, ErrLedgerConsumed
	}
	l.open = false
	plan := &Plan{}
	for _, item := range l.requests.Dispose() {
		switch r := item.(type) {
		case sizeRequest:
			aligned, ok := alignSize(uint64(r.size))
			if !ok {
				return nil, ErrSizeOverflow
			}
			n, ok := addSize(plan.Bytes, aligned)
			if !ok {
				return nil, ErrSizeOverflow
			}
			plan.Bytes = n
			plan.Requests++
		case trancheRequest:
			plan.Tranches = append(plan.Tranches, r)
		}
	}
	return plan, nil
}

// SegmentSize is the total mapping size: header, tranche lock words,
// requested bytes and slack.
func (p *Plan) SegmentSize(slack uint64) (uint64, error) {
	total := alignUp(uint64(headerSize), cacheLineSize)
	for _, t := range p.Tranches {
		var ok bool
		if total, ok = addSize(total, alignUp(uint64(t.count)*lockWordSize, cacheLineSize)); !ok {
			return 0, ErrSizeOverflow
		}
	}
	total, ok := addSize(total, p.Bytes)
	if !ok {
		return 0, ErrSizeOverflow
	}
	if total, ok = addSize(total, slack); !ok || total > math.MaxInt {
		return 0, ErrSizeOverflow
	}
	return total, nil
}

func addSize(a, b uint64) (uint64, bool) {
	s := a + b
	return s, s >= a
}

func alignSize(n uint64) (uint64, bool) {
	if n > math.MaxUint64-(cacheLineSize-1) {
		return 0, false
	}
	return alignUp(n, cacheLineSize), true
}

func alignUp(n, align uint64) uint64 {
	return (n + align - 1) &^ (align - 1)
}

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

package fixed

// Deque is a bounded double-ended queue of T stored in A, an array type such
// as [16]T. It is a ring buffer.
type Deque[T, A any] struct {
	head int
	n    int
	buf  A
}

// Len returns the number of queued elements.
func (d *Deque[T, A]) Len() int { return d.n }

// Cap returns the length of A.
func (d *Deque[T, A]) Cap() int { return len(items[T](&d.buf)) }

// PushBack appends x at the back, or returns ErrFull.
func (d *Deque[T, A]) PushBack(x T) error {
	s := items[T](&d.buf)
	if d.n == len(s) {
		return ErrFull
	}
	s[(d.head+d.n)%len(s)] = x
	d.n++
	return nil
}

// PushFront prepends x at the front, or returns ErrFull.
func (d *Deque[T, A]) PushFront(x T) error {
	s := items[T](&d.buf)
	if d.n == len(s) {
		return ErrFull
	}
	d.head = (d.head - 1 + len(s)) % len(s)
	s[d.head] = x
	d.n++
	return nil
}

// PopFront removes and returns the front element.
func (d *Deque[T, A]) PopFront() (T, bool) {
	var zero T
	if d.n == 0 {
		return zero, false
	}
	s := items[T](&d.buf)
	x := s[d.head]
	s[d.head] = zero
	d.head = (d.head + 1) % len(s)
	d.n--
	return x, true
}

// PopBack removes and returns the back element.
func (d *Deque[T, A]) PopBack() (T, bool) {
	var zero T
	if d.n == 0 {
		return zero, false
	}
	s := items[T](&d.buf)
	i := (d.head + d.n - 1) % len(s)
	x := s[i]
	s[i] = zero
	d.n--
	return x, true
}

// At returns the i-th element from the front. It panics if i is out of range.
func (d *Deque[T, A]) At(i int) T {
	if i < 0 || i >= d.n {
		panic("fixed: deque index out of range")
	}
	s := items[T](&d.buf)
	return s[(d.head+i)%len(s)]
}

// Clear removes every element.
func (d *Deque[T, A]) Clear() {
	clear(items[T](&d.buf))
	d.head, d.n = 0, 0
}

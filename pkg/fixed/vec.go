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

// Vec is a bounded vector of T stored in A, an array type such as [16]T.
type Vec[T, A any] struct {
	n   int
	buf A
}

// Len returns the number of elements.
func (v *Vec[T, A]) Len() int { return v.n }

// Cap returns the length of A.
func (v *Vec[T, A]) Cap() int { return len(items[T](&v.buf)) }

// Push appends x, or returns ErrFull.
func (v *Vec[T, A]) Push(x T) error {
	s := items[T](&v.buf)
	if v.n == len(s) {
		return ErrFull
	}
	s[v.n] = x
	v.n++
	return nil
}

// Pop removes and returns the last element.
func (v *Vec[T, A]) Pop() (T, bool) {
	var zero T
	if v.n == 0 {
		return zero, false
	}
	s := items[T](&v.buf)
	v.n--
	x := s[v.n]
	s[v.n] = zero
	return x, true
}

// At returns element i. It panics if i is out of range.
func (v *Vec[T, A]) At(i int) T { return v.Slice()[i] }

// Set replaces element i. It panics if i is out of range.
func (v *Vec[T, A]) Set(i int, x T) { v.Slice()[i] = x }

// Slice returns the elements in place. The slice aliases the vector's storage.
func (v *Vec[T, A]) Slice() []T { return items[T](&v.buf)[:v.n] }

// Truncate drops every element past the first n.
func (v *Vec[T, A]) Truncate(n int) {
	if n >= v.n {
		return
	}
	clear(items[T](&v.buf)[n:v.n])
	v.n = n
}

// Clear removes every element.
func (v *Vec[T, A]) Clear() { v.Truncate(0) }

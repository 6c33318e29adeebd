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

// Entry is one key/value pair of an IndexMap.
type Entry[K comparable, V any] struct {
	Key   K
	Value V
}

// IndexMap is a bounded map that keeps insertion order. A is the backing
// array type, such as [32]Entry[K, V]. Lookups scan, so keep it small.
type IndexMap[K comparable, V any, A any] struct {
	n   int
	buf A
}

func (m *IndexMap[K, V, A]) entries() []Entry[K, V] {
	return items[Entry[K, V]](&m.buf)
}

// Len returns the number of entries.
func (m *IndexMap[K, V, A]) Len() int { return m.n }

// Cap returns the number of entries A holds.
func (m *IndexMap[K, V, A]) Cap() int { return len(m.entries()) }

func (m *IndexMap[K, V, A]) find(k K) int {
	for i, e := range m.entries()[:m.n] {
		if e.Key == k {
			return i
		}
	}
	return -1
}

// Get returns the value stored under k.
func (m *IndexMap[K, V, A]) Get(k K) (V, bool) {
	if i := m.find(k); i >= 0 {
		return m.entries()[i].Value, true
	}
	var zero V
	return zero, false
}

// Insert stores v under k. An existing key keeps its position and its old
// value is returned; a new key goes last, or ErrFull is returned.
func (m *IndexMap[K, V, A]) Insert(k K, v V) (old V, replaced bool, err error) {
	es := m.entries()
	if i := m.find(k); i >= 0 {
		old = es[i].Value
		es[i].Value = v
		return old, true, nil
	}
	if m.n == len(es) {
		return old, false, ErrFull
	}
	es[m.n] = Entry[K, V]{Key: k, Value: v}
	m.n++
	return old, false, nil
}

// Remove deletes k and returns its value. Later entries move up one place.
func (m *IndexMap[K, V, A]) Remove(k K) (V, bool) {
	var zero V
	i := m.find(k)
	if i < 0 {
		return zero, false
	}
	es := m.entries()
	v := es[i].Value
	copy(es[i:m.n], es[i+1:m.n])
	m.n--
	es[m.n] = Entry[K, V]{}
	return v, true
}

// Entries returns the entries in insertion order. The slice aliases the map's storage.
func (m *IndexMap[K, V, A]) Entries() []Entry[K, V] { return m.entries()[:m.n] }

// Range calls fn for each entry in insertion order until fn returns false.
func (m *IndexMap[K, V, A]) Range(fn func(k K, v V) bool) {
	for _, e := range m.Entries() {
		if !fn(e.Key, e.Value) {
			return
		}
	}
}

// Clear removes every entry.
func (m *IndexMap[K, V, A]) Clear() {
	clear(m.entries())
	m.n = 0
}

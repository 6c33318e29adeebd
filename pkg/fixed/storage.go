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

import (
	"errors"
	"fmt"
	"reflect"
	"unsafe"
)

// ErrFull is returned when an insert would exceed the container's capacity.
var ErrFull = errors.New("fixed container is full")

// items views the array *a as a slice of T. A must be an array type with
// element type T.
func items[T, A any](a *A) []T {
	at, et := reflect.TypeOf((*A)(nil)).Elem(), reflect.TypeOf((*T)(nil)).Elem()
	if at.Kind() != reflect.Array || at.Elem() != et {
		panic(fmt.Sprintf("fixed: backing type %s is not an array of %s", at, et))
	}
	return unsafe.Slice((*T)(unsafe.Pointer(a)), at.Len())
}

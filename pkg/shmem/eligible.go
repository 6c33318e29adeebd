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
	"fmt"
	"reflect"
)

// Defaulter lets a value type choose its initial state. SetDefaults runs on
// the zeroed slot, once, when the slot is initialized.
type Defaulter interface {
	SetDefaults()
}

// CheckEligible reports whether T is flat enough to share between processes
// that map the segment at different addresses: booleans, numbers, and arrays
// and structs built only from those. Pointers, slices, maps, strings,
// channels, funcs, interfaces and unsafe.Pointer are rejected.
func CheckEligible[T any]() error {
	t := reflect.TypeOf((*T)(nil)).Elem()
	return checkType(t, t.String())
}

func checkType(t reflect.Type, path string) error {
	switch t.Kind() {
	case reflect.Bool,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return nil
	case reflect.Array:
		return checkType(t.Elem(), path+"[]")
	case reflect.Struct:
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			if err := checkType(f.Type, path+"."+f.Name); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("%w: %s is a %s", ErrIneligibleType, path, t.Kind())
	}
}

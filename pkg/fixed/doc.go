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
// Package fixed provides bounded containers with inline storage, so they can
// live in a shmem.Cell. Capacity comes from the backing array type:
//
//	var jobs = shmem.NewCell[fixed.Vec[int64, [32]int64]]("jobs")
//
// The zero value of every container is empty and ready to use. None of them
// allocate, and none of them are safe for concurrent use without the cell's lock.
package fixed

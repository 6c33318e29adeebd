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
	"context"
	"fmt"
	"io"

	"github.com/valyala/bytebufferpool"

	"github.com/srediag/plugin-shmem/internal/shm"
)

// DumpSegment writes the segment's size, tranche table and shmem index to w.
func DumpSegment(w io.Writer, s *Segment) error {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	fmt.Fprintf(buf, "segment:%s size:%d free:%d\n", s.Path(), s.Size(), s.Free())
	tranches := s.Tranches()
	fmt.Fprintf(buf, "tranches:%d\n", len(tranches))
	for _, t := range tranches {
		fmt.Fprintf(buf, "  tranche name:%s count:%d offset:%d\n", t.Name, t.Count, t.Offset)
	}
	entries := s.Entries()
	fmt.Fprintf(buf, "index:%d\n", len(entries))
	for _, e := range entries {
		fmt.Fprintf(buf, "  slot name:%s offset:%d size:%d\n", e.Name, e.Offset, e.Size)
	}
	_, err := buf.WriteTo(w)
	return err
}

// DebugSegmentDetail maps the segment at dir/name and dumps it to w.
func DebugSegmentDetail(ctx context.Context, w io.Writer, dir, name string) error {
	s, err := openSegment(ctx, shm.MapOptions{Name: name, Dir: dir})
	if err != nil {
		return err
	}
	defer func() { _ = s.close(ctx) }()
	return DumpSegment(w, s)
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package placement holds the arrangement of source images on the raster: an
// ordered list of sources, each with an ordered list of placement rectangles.
// Snapshots are values; every edit yields a new snapshot and leaves the old
// one untouched. Later sources and later placements paint on top.
package placement

import "slices"

// Source is one image (identified by its URL) and where it is placed.
type Source struct {
	URL        string
	Placements []Rect
}

// Snapshot is an immutable arrangement plus the release flag.
type Snapshot struct {
	Sources  []Source
	Released bool
}

// Ref addresses a placement by source URL and index within that source.
type Ref struct {
	URL   string
	Index int
}

// Visible is a placement inside the raster window, in drawing order.
type Visible struct {
	Ref
	SourceIndex int
	Rect        Rect
}

// IndexOf returns the position of the source with url, or -1.
func (s Snapshot) IndexOf(url string) int {
	for i, src := range s.Sources {
		if src.URL == url {
			return i
		}
	}
	return -1
}

// URLs lists source URLs in order.
func (s Snapshot) URLs() []string {
	out := make([]string, len(s.Sources))
	for i, src := range s.Sources {
		out[i] = src.URL
	}
	return out
}

// Lookup returns the rect a ref points at.
func (s Snapshot) Lookup(ref Ref) (Rect, bool) {
	i := s.IndexOf(ref.URL)
	if i < 0 || ref.Index < 0 || ref.Index >= len(s.Sources[i].Placements) {
		return Rect{}, false
	}
	return s.Sources[i].Placements[ref.Index], true
}

// Count returns the total number of placements.
func (s Snapshot) Count() int {
	n := 0
	for _, src := range s.Sources {
		n += len(src.Placements)
	}
	return n
}

// WithSource appends a source without placements. An URL that is already
// present leaves the snapshot unchanged.
func (s Snapshot) WithSource(url string) Snapshot {
	if s.IndexOf(url) >= 0 {
		return s
	}
	out := s
	out.Sources = append(slices.Clip(s.Sources), Source{URL: url})
	return out
}

// WithReplacedSource swaps the URL of the source old for url and keeps its
// placements. When old is not present url is appended as a new source. An url
// already used by another source leaves the snapshot unchanged.
func (s Snapshot) WithReplacedSource(url, old string) Snapshot {
	i := s.IndexOf(old)
	if i < 0 {
		return s.WithSource(url)
	}
	if j := s.IndexOf(url); j >= 0 && j != i {
		return s
	}
	out := s
	out.Sources = slices.Clone(s.Sources)
	out.Sources[i].URL = url
	return out
}

// WithPlacement appends r to the placements of url.
func (s Snapshot) WithPlacement(url string, r Rect) (Snapshot, int, bool) {
	i := s.IndexOf(url)
	if i < 0 {
		return s, -1, false
	}
	out := s.editSource(i, func(ps []Rect) []Rect { return append(slices.Clip(ps), r) })
	return out, len(out.Sources[i].Placements) - 1, true
}

// WithoutPlacement removes one placement; indices after it shift down.
func (s Snapshot) WithoutPlacement(ref Ref) (Snapshot, bool) {
	if _, ok := s.Lookup(ref); !ok {
		return s, false
	}
	i := s.IndexOf(ref.URL)
	return s.editSource(i, func(ps []Rect) []Rect {
		return slices.Delete(slices.Clone(ps), ref.Index, ref.Index+1)
	}), true
}

// WithPlacementAt overwrites one placement.
func (s Snapshot) WithPlacementAt(ref Ref, r Rect) (Snapshot, bool) {
	cur, ok := s.Lookup(ref)
	if !ok {
		return s, false
	}
	if cur == r {
		return s, true
	}
	i := s.IndexOf(ref.URL)
	return s.editSource(i, func(ps []Rect) []Rect {
		ps = slices.Clone(ps)
		ps[ref.Index] = r
		return ps
	}), true
}

// WithReleased sets the release flag.
func (s Snapshot) WithReleased(released bool) Snapshot {
	out := s
	out.Released = released
	return out
}

// editSource copies the source list and replaces the placements of source i.
func (s Snapshot) editSource(i int, edit func([]Rect) []Rect) Snapshot {
	out := s
	out.Sources = slices.Clone(s.Sources)
	out.Sources[i].Placements = edit(s.Sources[i].Placements)
	return out
}

// HitTest returns the topmost placement containing the raster point: sources
// from last to first, placements from last to first within each source.
func (s Snapshot) HitTest(x, y float64) (Ref, bool) {
	for i := len(s.Sources) - 1; i >= 0; i-- {
		ps := s.Sources[i].Placements
		for j := len(ps) - 1; j >= 0; j-- {
			if ps[j].Contains(x, y) {
				return Ref{URL: s.Sources[i].URL, Index: j}, true
			}
		}
	}
	return Ref{}, false
}

// VisibleIn lists the placements overlapping the raster window at (offX, offY)
// with edge size, in drawing order.
func (s Snapshot) VisibleIn(offX, offY, size float64) []Visible {
	var out []Visible
	for i, src := range s.Sources {
		for j, r := range src.Placements {
			if r.Overlaps(offX, offY, size) {
				out = append(out, Visible{Ref: Ref{URL: src.URL, Index: j}, SourceIndex: i, Rect: r})
			}
		}
	}
	return out
}

// Bounds returns the extent covered by all placements. ok is false when
// nothing is placed.
func (s Snapshot) Bounds() (Rect, bool) {
	var b Rect
	found := false
	for _, src := range s.Sources {
		for _, r := range src.Placements {
			if !found {
				b, found = r, true
				continue
			}
			b = b.Union(r)
		}
	}
	return b, found
}

// Equal compares two snapshots by value; nil and empty placement lists are equal.
func (s Snapshot) Equal(o Snapshot) bool {
	if s.Released != o.Released || len(s.Sources) != len(o.Sources) {
		return false
	}
	for i := range s.Sources {
		if s.Sources[i].URL != o.Sources[i].URL || !slices.Equal(s.Sources[i].Placements, o.Sources[i].Placements) {
			return false
		}
	}
	return true
}

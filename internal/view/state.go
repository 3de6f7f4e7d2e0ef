/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package view holds the ephemeral view state: where the raster window sits
// and which placement is selected. None of it is part of the share token.
package view

import (
	"sync"
	"sync/atomic"

	"littleplanet/internal/placement"
)

// Snapshot is one immutable view state. OffsetX/OffsetY are the raster
// coordinates of the window's top-left corner.
type Snapshot struct {
	OffsetX, OffsetY float64
	Selection        placement.Ref
	HasSelection     bool
}

// Selected returns the selection, if any.
func (s Snapshot) Selected() (placement.Ref, bool) { return s.Selection, s.HasSelection }

// State publishes view snapshots and notifies subscribers on change.
type State struct {
	cur atomic.Pointer[Snapshot]

	mu     sync.Mutex
	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
}

// New returns a state at offset (0,0) with nothing selected.
func New() *State {
	s := &State{subs: map[int]func(Snapshot){}}
	s.cur.Store(&Snapshot{})
	return s
}

// Read returns the current view snapshot.
func (s *State) Read() Snapshot { return *s.cur.Load() }

// Subscribe registers fn for every change and returns a cancel func.
func (s *State) Subscribe(fn func(Snapshot)) (cancel func()) {
	s.subsMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.subsMu.Unlock()
	return func() {
		s.subsMu.Lock()
		delete(s.subs, id)
		s.subsMu.Unlock()
	}
}

func (s *State) update(edit func(Snapshot) Snapshot) Snapshot {
	s.mu.Lock()
	cur := s.Read()
	next := edit(cur)
	if next == cur {
		s.mu.Unlock()
		return cur
	}
	s.cur.Store(&next)
	s.mu.Unlock()

	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(next)
	}
	return next
}

// SetOffset moves the raster window.
func (s *State) SetOffset(x, y float64) Snapshot {
	return s.update(func(v Snapshot) Snapshot {
		v.OffsetX, v.OffsetY = x, y
		return v
	})
}

// Reset moves the raster window back to the origin.
func (s *State) Reset() Snapshot { return s.SetOffset(0, 0) }

// Select marks one placement as selected.
func (s *State) Select(ref placement.Ref) Snapshot {
	return s.update(func(v Snapshot) Snapshot {
		v.Selection, v.HasSelection = ref, true
		return v
	})
}

// ClearSelection drops the selection.
func (s *State) ClearSelection() Snapshot {
	return s.update(func(v Snapshot) Snapshot {
		v.Selection, v.HasSelection = placement.Ref{}, false
		return v
	})
}

// Reconcile clears the selection when it no longer names a placement in snap.
func (s *State) Reconcile(snap placement.Snapshot) Snapshot {
	return s.update(func(v Snapshot) Snapshot {
		if !v.HasSelection {
			return v
		}
		if _, ok := snap.Lookup(v.Selection); !ok {
			v.Selection, v.HasSelection = placement.Ref{}, false
		}
		return v
	})
}

// SelectedRect resolves the selection against snap.
func (s Snapshot) SelectedRect(snap placement.Snapshot) (placement.Ref, placement.Rect, bool) {
	if !s.HasSelection {
		return placement.Ref{}, placement.Rect{}, false
	}
	r, ok := snap.Lookup(s.Selection)
	return s.Selection, r, ok
}

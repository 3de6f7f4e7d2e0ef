/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package placement

import (
	"log/slog"
	"sync"
	"sync/atomic"

	applog "littleplanet/internal/log"
)

// Store publishes the current Snapshot. Readers always see a complete
// snapshot; writers are serialized and subscribers are notified after each
// published change, on the writer's goroutine.
type Store struct {
	cur atomic.Pointer[Snapshot]

	mu     sync.Mutex // serializes writers
	subsMu sync.Mutex
	subs   map[int]func(Snapshot)
	nextID int
	log    *slog.Logger
}

// NewStore returns a store holding initial.
func NewStore(initial Snapshot) *Store {
	s := &Store{subs: map[int]func(Snapshot){}, log: applog.WithComponent("placement")}
	s.cur.Store(&initial)
	return s
}

// Read returns the current snapshot.
func (s *Store) Read() Snapshot { return *s.cur.Load() }

// Subscribe registers fn for every published change and returns a cancel func.
func (s *Store) Subscribe(fn func(Snapshot)) (cancel func()) {
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

// update applies edit to the current snapshot and publishes the result when
// edit reports a change.
func (s *Store) update(edit func(Snapshot) (Snapshot, bool)) Snapshot {
	s.mu.Lock()
	next, changed := edit(s.Read())
	if !changed {
		s.mu.Unlock()
		return s.Read()
	}
	s.cur.Store(&next)
	s.mu.Unlock()
	s.notify(next)
	return next
}

func (s *Store) notify(snap Snapshot) {
	s.subsMu.Lock()
	fns := make([]func(Snapshot), 0, len(s.subs))
	for id := 0; id < s.nextID; id++ {
		if fn, ok := s.subs[id]; ok {
			fns = append(fns, fn)
		}
	}
	s.subsMu.Unlock()
	for _, fn := range fns {
		fn(snap)
	}
}

// Replace publishes snap wholesale (rehydration, undo).
func (s *Store) Replace(snap Snapshot) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) { return snap, !cur.Equal(snap) })
}

// AddSource appends a new source.
func (s *Store) AddSource(url string) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) {
		if cur.IndexOf(url) >= 0 {
			s.log.Debug("source already present", slog.String("url", url))
			return cur, false
		}
		return cur.WithSource(url), true
	})
}

// ReplaceSource substitutes url for the source old, keeping its placements;
// when old is absent url is appended.
func (s *Store) ReplaceSource(url, old string) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) {
		next := cur.WithReplacedSource(url, old)
		return next, !next.Equal(cur)
	})
}

// AddPlacement places a w x h copy of url centered on the raster point (cx, cy).
func (s *Store) AddPlacement(url string, w, h int, cx, cy float64) (Ref, bool) {
	ref := Ref{Index: -1}
	r := Rect{X: Round(cx - float64(w)/2), Y: Round(cy - float64(h)/2), W: w, H: h}
	s.update(func(cur Snapshot) (Snapshot, bool) {
		next, idx, ok := cur.WithPlacement(url, r)
		if !ok {
			s.log.Warn("add placement for unknown source", slog.String("url", url))
			return cur, false
		}
		ref = Ref{URL: url, Index: idx}
		return next, true
	})
	return ref, ref.Index >= 0
}

// DeletePlacement removes one placement; unknown refs are ignored.
func (s *Store) DeletePlacement(ref Ref) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) { return cur.WithoutPlacement(ref) })
}

// SetPlacement overwrites one placement; unknown refs are ignored.
func (s *Store) SetPlacement(ref Ref, r Rect) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) {
		prev, ok := cur.Lookup(ref)
		if !ok || prev == r {
			return cur, false
		}
		next, _ := cur.WithPlacementAt(ref, r)
		return next, true
	})
}

// SetReleased sets the release flag.
func (s *Store) SetReleased(released bool) Snapshot {
	return s.update(func(cur Snapshot) (Snapshot, bool) {
		return cur.WithReleased(released), cur.Released != released
	})
}

// HitTest runs Snapshot.HitTest on the current snapshot.
func (s *Store) HitTest(x, y float64) (Ref, bool) { return s.Read().HitTest(x, y) }

// Lookup runs Snapshot.Lookup on the current snapshot.
func (s *Store) Lookup(ref Ref) (Rect, bool) { return s.Read().Lookup(ref) }

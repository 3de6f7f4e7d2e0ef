/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package undo

import (
	"testing"
	"time"
)

func TestUndoRedoSequence(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	t0 := time.Unix(1000, 0)
	m.Record(Entry{Blob: []byte("s0"), TS: t0})
	m.Record(Entry{Blob: []byte("s1"), TS: t0.Add(time.Second)})

	prev, ok := m.Undo([]byte("s2"))
	if !ok || string(prev) != "s1" {
		t.Fatalf("undo = %q, %v", prev, ok)
	}
	prev, ok = m.Undo(prev)
	if !ok || string(prev) != "s0" {
		t.Fatalf("second undo = %q, %v", prev, ok)
	}
	if _, ok := m.Undo(prev); ok {
		t.Fatalf("history should be exhausted")
	}
	next, ok := m.Redo([]byte("s0"))
	if !ok || string(next) != "s1" {
		t.Fatalf("redo = %q, %v", next, ok)
	}
	next, ok = m.Redo(next)
	if !ok || string(next) != "s2" {
		t.Fatalf("second redo = %q, %v", next, ok)
	}
}

func TestBurstCoalescesToFirstState(t *testing.T) {
	m := NewManager(Config{MinInterval: 100 * time.Millisecond})
	t0 := time.Unix(1000, 0)
	for i := 0; i < 20; i++ {
		// a drag: one edit every 16ms, each step extends the burst
		m.Record(Entry{Blob: []byte{byte('a' + i)}, TS: t0.Add(time.Duration(i) * 16 * time.Millisecond)})
	}
	if _, steps, _ := m.Stats(); steps != 1 {
		t.Fatalf("undo steps = %d, want 1", steps)
	}
	prev, _ := m.Undo([]byte("z"))
	if string(prev) != "a" {
		t.Fatalf("undo = %q, want the state before the drag", prev)
	}
}

func TestRecordClearsRedo(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond})
	t0 := time.Unix(1000, 0)
	m.Record(Entry{Blob: []byte("a"), TS: t0})
	m.Undo([]byte("b"))
	if !m.CanRedo() {
		t.Fatalf("redo expected")
	}
	m.Record(Entry{Blob: []byte("a"), TS: t0.Add(time.Second)})
	if m.CanRedo() {
		t.Fatalf("new edit must clear redo")
	}
}

func TestCaps(t *testing.T) {
	m := NewManager(Config{MinInterval: time.Millisecond, MaxDepth: 3})
	t0 := time.Unix(1000, 0)
	for i := 0; i < 10; i++ {
		m.Record(Entry{Blob: []byte("xx"), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if total, steps, _ := m.Stats(); steps != 3 || total != 6 {
		t.Fatalf("depth cap: steps=%d total=%d", steps, total)
	}

	m = NewManager(Config{MinInterval: time.Millisecond, MaxBytes: 10})
	for i := 0; i < 10; i++ {
		m.Record(Entry{Blob: []byte("1234"), TS: t0.Add(time.Duration(i) * time.Second)})
	}
	if total, steps, _ := m.Stats(); total > 10 || steps != 2 {
		t.Fatalf("byte cap: steps=%d total=%d", steps, total)
	}
	m.Clear()
	if m.CanUndo() {
		t.Fatalf("clear kept history")
	}
}

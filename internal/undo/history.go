/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package undo keeps a bounded undo/redo history of arrangement states.
// States are opaque blobs (encoded share tokens); the manager only measures
// their length for the memory cap.
package undo

import (
	"sync"
	"time"
)

// Entry is one recorded state and when it was captured.
type Entry struct {
	Blob []byte
	TS   time.Time
}

// Config controls caps and coalescing.
type Config struct {
	// MaxBytes is a soft cap over the undo stack; oldest entries go first.
	MaxBytes int
	// MaxDepth limits the number of undo steps (0 means unlimited).
	MaxDepth int
	// MinInterval merges edits closer together than this into one step, so a
	// whole drag undoes at once. The earliest state of the burst is kept.
	MinInterval time.Duration
}

// Manager is an undo/redo stack. It is safe for concurrent use.
type Manager struct {
	cfg        Config
	mu         sync.Mutex
	undo       []Entry
	redo       []Entry
	lastRecord time.Time
	totalBytes int
}

func NewManager(cfg Config) *Manager {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = 4 * 1024 * 1024
	}
	if cfg.MinInterval <= 0 {
		cfg.MinInterval = 250 * time.Millisecond
	}
	return &Manager{cfg: cfg}
}

// Record stores the state as it was before an edit made at e.TS. Any new
// edit invalidates the redo stack.
func (m *Manager) Record(e Entry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.redo = nil
	if n := len(m.undo); n > 0 && e.TS.Sub(m.lastRecord) < m.cfg.MinInterval {
		m.lastRecord = e.TS
		return
	}
	m.lastRecord = e.TS
	m.undo = append(m.undo, e)
	m.totalBytes += len(e.Blob)
	m.enforceCapsLocked()
}

// Undo returns the previous state and remembers current for Redo.
func (m *Manager) Undo(current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.undo)
	if n == 0 {
		return nil, false
	}
	e := m.undo[n-1]
	m.undo = m.undo[:n-1]
	m.totalBytes -= len(e.Blob)
	m.redo = append(m.redo, Entry{Blob: current, TS: time.Now()})
	m.lastRecord = time.Time{}
	return e.Blob, true
}

// Redo returns the state undone last and remembers current for Undo.
func (m *Manager) Redo(current []byte) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.redo)
	if n == 0 {
		return nil, false
	}
	e := m.redo[n-1]
	m.redo = m.redo[:n-1]
	m.undo = append(m.undo, Entry{Blob: current, TS: time.Now()})
	m.totalBytes += len(current)
	m.lastRecord = time.Time{}
	m.enforceCapsLocked()
	return e.Blob, true
}

// CanUndo and CanRedo report whether a step is available.
func (m *Manager) CanUndo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool { m.mu.Lock(); defer m.mu.Unlock(); return len(m.redo) > 0 }

// Clear drops all history.
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.undo, m.redo, m.totalBytes = nil, nil, 0
	m.lastRecord = time.Time{}
}

// Stats returns current sizes for diagnostics.
func (m *Manager) Stats() (totalBytes, undoSteps, redoSteps int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalBytes, len(m.undo), len(m.redo)
}

func (m *Manager) enforceCapsLocked() {
	if m.cfg.MaxDepth > 0 && len(m.undo) > m.cfg.MaxDepth {
		drop := len(m.undo) - m.cfg.MaxDepth
		for _, e := range m.undo[:drop] {
			m.totalBytes -= len(e.Blob)
		}
		m.undo = append([]Entry(nil), m.undo[drop:]...)
	}
	for len(m.undo) > 1 && m.totalBytes > m.cfg.MaxBytes {
		m.totalBytes -= len(m.undo[0].Blob)
		m.undo = m.undo[1:]
	}
}

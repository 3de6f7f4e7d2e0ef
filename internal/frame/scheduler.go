/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package frame

import (
	"context"
	"log/slog"
	"sync"
	"time"

	applog "littleplanet/internal/log"
)

// ManualScheduler queues frame callbacks until Tick. Callbacks requested
// while a tick is running wait for the next tick.
type ManualScheduler struct {
	mu    sync.Mutex
	queue []func()
}

func (m *ManualScheduler) RequestFrame(fn func()) {
	m.mu.Lock()
	m.queue = append(m.queue, fn)
	m.mu.Unlock()
}

// Tick runs the callbacks queued before the call and returns how many ran.
func (m *ManualScheduler) Tick() int {
	m.mu.Lock()
	batch := m.queue
	m.queue = nil
	m.mu.Unlock()
	for _, fn := range batch {
		fn()
	}
	return len(batch)
}

// Drain ticks until no callbacks remain or limit ticks have run.
func (m *ManualScheduler) Drain(limit int) int {
	ticks := 0
	for ticks < limit && m.Pending() > 0 {
		m.Tick()
		ticks++
	}
	return ticks
}

// Pending returns the number of queued callbacks.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// Loop is a single-goroutine event loop. Posted work runs in order as soon
// as possible; frame callbacks run together on each ticker beat. Everything
// runs on the goroutine that called Run.
type Loop struct {
	interval time.Duration
	posts    chan func()
	frames   ManualScheduler
	log      *slog.Logger
}

// NewLoop creates a loop beating every interval.
func NewLoop(interval time.Duration) *Loop {
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Loop{interval: interval, posts: make(chan func(), 256), log: applog.WithComponent("frame")}
}

// RequestFrame schedules fn for the next beat. Safe from any goroutine.
func (l *Loop) RequestFrame(fn func()) { l.frames.RequestFrame(fn) }

// Post schedules fn to run on the loop goroutine. It blocks when the queue
// is full and gives up when ctx is done.
func (l *Loop) Post(ctx context.Context, fn func()) bool {
	select {
	case l.posts <- fn:
		return true
	case <-ctx.Done():
		return false
	}
}

// Run processes posts and frames until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	t := time.NewTicker(l.interval)
	defer t.Stop()
	l.log.Debug("loop started", slog.Duration("interval", l.interval))
	for {
		select {
		case <-ctx.Done():
			l.log.Debug("loop stopped")
			return ctx.Err()
		case fn := <-l.posts:
			fn()
		case <-t.C:
			l.frames.Tick()
		}
	}
}

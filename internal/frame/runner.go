/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package frame coalesces redraw requests so that at most one redraw runs per
// animation frame, and provides the single-goroutine loop those frames run on.
package frame

// State is the runner's only state tag.
type State int

const (
	Idle State = iota
	Running
	Pending
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Pending:
		return "pending"
	default:
		return "unknown"
	}
}

// Scheduler runs fn once on the next animation frame.
type Scheduler interface {
	RequestFrame(fn func())
}

// Runner invokes handler at most once per frame no matter how many times
// Request is called. Requests arriving while a run is scheduled or executing
// collapse into exactly one follow-up run on the next frame.
//
// A Runner is not safe for concurrent use; call it from the loop goroutine.
type Runner struct {
	sched   Scheduler
	handler func()
	state   State
	runs    uint64
}

// NewRunner binds handler to a scheduler.
func NewRunner(sched Scheduler, handler func()) *Runner {
	return &Runner{sched: sched, handler: handler}
}

// Request asks for handler to run on an upcoming frame.
func (r *Runner) Request() {
	if r.state != Idle {
		r.state = Pending
		return
	}
	r.state = Running
	r.sched.RequestFrame(r.run)
}

func (r *Runner) run() {
	r.runs++
	r.handler()
	switch r.state {
	case Running:
		r.state = Idle
	case Pending:
		r.state = Running
		r.sched.RequestFrame(r.run)
	}
}

// State reports the current tag.
func (r *Runner) State() State { return r.state }

// Runs counts handler invocations.
func (r *Runner) Runs() uint64 { return r.runs }

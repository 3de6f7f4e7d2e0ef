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
	"errors"
	"testing"
	"time"
)

func TestBurstOfRequestsRunsTwice(t *testing.T) {
	var sched ManualScheduler
	calls := 0
	r := NewRunner(&sched, func() { calls++ })
	for i := 0; i < 5; i++ {
		r.Request()
	}
	if r.State() != Pending {
		t.Fatalf("state = %v, want pending", r.State())
	}
	sched.Drain(10)
	if calls != 2 {
		t.Fatalf("handler calls = %d, want 2", calls)
	}
	if r.State() != Idle {
		t.Fatalf("state = %v, want idle", r.State())
	}
}

func TestSingleRequestRunsOnce(t *testing.T) {
	var sched ManualScheduler
	calls := 0
	r := NewRunner(&sched, func() { calls++ })
	r.Request()
	if r.State() != Running {
		t.Fatalf("state = %v, want running", r.State())
	}
	if n := sched.Tick(); n != 1 {
		t.Fatalf("tick ran %d callbacks", n)
	}
	if calls != 1 || r.State() != Idle || sched.Pending() != 0 {
		t.Fatalf("calls=%d state=%v pending=%d", calls, r.State(), sched.Pending())
	}
}

func TestRequestDuringRunSchedulesNextFrame(t *testing.T) {
	var sched ManualScheduler
	calls := 0
	var r *Runner
	r = NewRunner(&sched, func() {
		calls++
		if calls == 1 {
			r.Request()
			r.Request()
		}
	})
	r.Request()
	sched.Tick()
	if calls != 1 || r.State() != Running || sched.Pending() != 1 {
		t.Fatalf("after first frame: calls=%d state=%v pending=%d", calls, r.State(), sched.Pending())
	}
	sched.Tick()
	if calls != 2 || r.State() != Idle {
		t.Fatalf("after second frame: calls=%d state=%v", calls, r.State())
	}
	if r.Runs() != 2 {
		t.Fatalf("runs = %d", r.Runs())
	}
}

func TestLoopRunsPostsAndFrames(t *testing.T) {
	l := NewLoop(time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	done := make(chan struct{})
	var order []string
	l.Post(ctx, func() {
		order = append(order, "post")
		l.RequestFrame(func() {
			order = append(order, "frame")
			close(done)
		})
	})
	errc := make(chan error, 1)
	go func() { errc <- l.Run(ctx) }()
	select {
	case <-done:
	case <-ctx.Done():
		t.Fatalf("frame never ran")
	}
	cancel()
	if err := <-errc; !errors.Is(err, context.Canceled) {
		t.Fatalf("Run returned %v", err)
	}
	if len(order) != 2 || order[0] != "post" || order[1] != "frame" {
		t.Fatalf("order = %v", order)
	}
}

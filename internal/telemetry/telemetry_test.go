/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package telemetry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	events  [][]byte
	crashes [][]byte
}

func (r *recorder) server(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.events = append(r.events, b)
		r.mu.Unlock()
	})
	mux.HandleFunc("/crash", func(w http.ResponseWriter, req *http.Request) {
		b, _ := io.ReadAll(req.Body)
		r.mu.Lock()
		r.crashes = append(r.crashes, b)
		r.mu.Unlock()
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEventAndCrashUpload(t *testing.T) {
	var rec recorder
	srv := rec.server(t)
	c := New(Config{OptIn: true, EventsURL: srv.URL + "/events", CrashURL: srv.URL + "/crash", Timeout: 2 * time.Second})
	defer c.Close()

	c.Event("render", map[string]any{"placements": 3})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	c.Flush(ctx)

	rec.mu.Lock()
	n := len(rec.events)
	var first []byte
	if n > 0 {
		first = rec.events[0]
	}
	rec.mu.Unlock()
	if n != 1 {
		t.Fatalf("events = %d, want 1", n)
	}
	var m map[string]any
	if err := json.Unmarshal(first, &m); err != nil {
		t.Fatalf("event json: %v", err)
	}
	if m["name"] != "render" || m["placements"] != float64(3) {
		t.Fatalf("event = %v", m)
	}

	if err := c.UploadCrash(ctx, []byte("STACK")); err != nil {
		t.Fatalf("UploadCrash: %v", err)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if len(rec.crashes) != 1 || string(rec.crashes[0]) != "STACK" {
		t.Fatalf("crashes = %q", rec.crashes)
	}
}

func TestDisabledSendsNothing(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { hits.Add(1) }))
	defer srv.Close()

	c := New(Config{EventsURL: srv.URL, CrashURL: srv.URL})
	defer c.Close()
	if c.Enabled() {
		t.Fatalf("client without opt-in must be disabled")
	}
	c.Event("ignored", nil)
	if err := c.UploadCrash(context.Background(), []byte("x")); err != nil {
		t.Fatalf("UploadCrash: %v", err)
	}
	c2 := New(Config{OptIn: true, EventsURL: srv.URL})
	defer c2.Close()
	c2.Event("", nil)
	c2.Flush(context.Background())
	if hits.Load() != 0 {
		t.Fatalf("unexpected requests: %d", hits.Load())
	}
}

func TestFromEnv(t *testing.T) {
	t.Setenv("LPC_TELEMETRY_OPT_IN", "true")
	t.Setenv("LPC_TELEMETRY_URL", "http://127.0.0.1:1/events")
	t.Setenv("LPC_TELEMETRY_TIMEOUT", "250ms")
	cfg := FromEnv()
	if !cfg.OptIn || cfg.EventsURL == "" || cfg.Timeout != 250*time.Millisecond {
		t.Fatalf("cfg = %+v", cfg)
	}
	t.Setenv("LPC_TELEMETRY_OPT_IN", "maybe")
	if cfg := FromEnv(); cfg.OptIn {
		t.Fatalf("malformed opt-in must disable: %+v", cfg)
	}
}

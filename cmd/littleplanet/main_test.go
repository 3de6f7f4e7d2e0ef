/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("LPC_IMAGES_NO_DISK_CACHE", "true")
	return dir
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionAndUnknown(t *testing.T) {
	isolate(t)
	if code, out, _ := runCLI(t, "version"); code != 0 || strings.TrimSpace(out) == "" {
		t.Fatalf("version: code=%d out=%q", code, out)
	}
	if code, _, errOut := runCLI(t, "frobnicate"); code != 2 || !strings.Contains(errOut, "unknown command") {
		t.Fatalf("unknown: code=%d err=%q", code, errOut)
	}
	if code, out, _ := runCLI(t); code != 0 || !strings.Contains(out, "Usage:") {
		t.Fatalf("no args: code=%d out=%q", code, out)
	}
}

func TestAddThenInspect(t *testing.T) {
	isolate(t)
	code, out, errOut := runCLI(t, "add", "--x", "974", "--y", "999", "https://planet.test/view", "https://img.test/a.png", "100", "50")
	if code != 0 {
		t.Fatalf("add: code=%d err=%q", code, errOut)
	}
	addr := strings.TrimSpace(out)
	if !strings.Contains(addr, "#data=") {
		t.Fatalf("address has no token: %q", addr)
	}
	code, out, errOut = runCLI(t, "inspect", addr)
	if code != 0 {
		t.Fatalf("inspect: code=%d err=%q", code, errOut)
	}
	if !strings.Contains(out, "Sources: 1  Placements: 1") || !strings.Contains(out, "https://img.test/a.png") {
		t.Fatalf("inspect output:\n%s", out)
	}
}

func TestAddRejectsBadSize(t *testing.T) {
	isolate(t)
	if code, _, _ := runCLI(t, "add", "https://planet.test/", "a.png", "0", "5"); code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
	if code, _, _ := runCLI(t, "add", "https://planet.test/"); code != 2 {
		t.Fatalf("missing args code=%d, want 2", code)
	}
}

func TestMinimapWritesFile(t *testing.T) {
	dir := isolate(t)
	out := filepath.Join(dir, "map.png")
	if code, _, errOut := runCLI(t, "minimap", "https://planet.test/", out); code != 0 {
		t.Fatalf("minimap: code=%d err=%q", code, errOut)
	}
	b, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("\x89PNG")) {
		t.Fatalf("not a png")
	}
}

func TestConfigPrintsYAML(t *testing.T) {
	isolate(t)
	code, out, _ := runCLI(t, "config", "--init")
	if code != 0 || !strings.Contains(out, "canvas:") {
		t.Fatalf("config: code=%d out=%q", code, out)
	}
}

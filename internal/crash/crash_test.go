/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package crash

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteReportIncludesToken(t *testing.T) {
	dir := t.TempDir()
	path, err := writeReport(dir, buildReport("boom", []byte("stacktrace"), `{"s":[0,""]}`))
	if err != nil {
		t.Fatalf("writeReport: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	s := string(b)
	for _, want := range []string{"Little Planet Crash Report", "Panic: boom", `Token: {"s":[0,""]}`, "stacktrace"} {
		if !strings.Contains(s, want) {
			t.Fatalf("report missing %q:\n%s", want, s)
		}
	}
}

func TestRecoverWritesReportAndExits(t *testing.T) {
	oldStderr := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w
	t.Cleanup(func() {
		_ = w.Close()
		os.Stderr = oldStderr
		_, _ = io.Copy(io.Discard, r)
	})

	code := 0
	oldExit := exitFn
	exitFn = func(c int) { code = c }
	t.Cleanup(func() { exitFn = oldExit })

	dir := t.TempDir()
	func() {
		defer Recover(dir, func() string { return "TOKEN" })
		panic("boom")
	}()

	if code != 2 {
		t.Fatalf("exit code = %d, want 2", code)
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "crash-*.log"))
	if len(matches) != 1 {
		t.Fatalf("reports = %v", matches)
	}
	b, _ := os.ReadFile(matches[0])
	if !strings.Contains(string(b), "Token: TOKEN") {
		t.Fatalf("token missing:\n%s", b)
	}
}

func TestSnapshotPanicIsSwallowed(t *testing.T) {
	if got := safeSnapshot(func() string { panic("again") }); got != "" {
		t.Fatalf("got %q", got)
	}
	if got := safeSnapshot(nil); got != "" {
		t.Fatalf("got %q", got)
	}
}

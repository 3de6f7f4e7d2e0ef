/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package crash turns a panic into a report file that carries the current
// share token, so the arrangement can be reopened after a crash.
package crash

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"time"

	applog "littleplanet/internal/log"
	"littleplanet/internal/storage"
	"littleplanet/internal/telemetry"
	"littleplanet/internal/version"
)

var exitFn = os.Exit

// Recover must be deferred directly: defer crash.Recover(dir, snapshot).
// snapshot may be nil; dir defaults to the temp dir.
func Recover(dir string, snapshot func() string) {
	r := recover()
	if r == nil {
		return
	}
	l := applog.WithComponent("crash")
	stack := debug.Stack()
	l.Error("panic recovered", slog.Any("panic", r), slog.String("stack", string(stack)))

	report := buildReport(r, stack, safeSnapshot(snapshot))
	path, err := writeReport(dir, report)
	if err != nil {
		l.Error("crash report not written", slog.Any("err", err))
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	if err := telemetry.Default().UploadCrash(ctx, report); err != nil {
		l.Debug("crash upload failed", slog.Any("err", err))
	}
	cancel()

	fmt.Fprintf(os.Stderr, "A fatal error occurred. A crash report was saved to: %s\n", path)
	fmt.Fprintf(os.Stderr, "Version: %s\n", version.String())
	exitFn(2)
}

// safeSnapshot calls fn, swallowing a second panic from a broken store.
func safeSnapshot(fn func() string) (tok string) {
	if fn == nil {
		return ""
	}
	defer func() {
		if recover() != nil {
			tok = ""
		}
	}()
	return fn()
}

func buildReport(panicVal any, stack []byte, token string) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "Little Planet Crash Report\n")
	fmt.Fprintf(&buf, "Timestamp: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&buf, "Version: %s\n", version.String())
	fmt.Fprintf(&buf, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
	if token != "" {
		fmt.Fprintf(&buf, "Token: %s\n", token)
	}
	fmt.Fprintf(&buf, "\nPanic: %v\n\n", panicVal)
	fmt.Fprintf(&buf, "Stack:\n%s\n", stack)
	return buf.Bytes()
}

func writeReport(dir string, report []byte) (string, error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("crash dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("crash-%s.log", time.Now().Format("20060102-150405.000")))
	if err := storage.WriteFileAtomic(path, report); err != nil {
		return path, err
	}
	return path, nil
}

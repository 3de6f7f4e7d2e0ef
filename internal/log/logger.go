/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package log sets up the process-wide slog logger. Records go to stderr in a
// compact console layout (or JSON) and, when a file is configured, to a
// rotating JSON file as well.
package log

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"

	"littleplanet/internal/version"

	lj "gopkg.in/natefinch/lumberjack.v2"
)

// Options controls logger initialization.
// Environment variables understood by FromEnv:
//   - LPC_LOG_LEVEL=debug|info|warn|error
//   - LPC_LOG_FORMAT=console|json
//   - LPC_LOG_FILE=<path> (rotated JSON file sink)
//   - LPC_LOG_SOURCE=true|false
type Options struct {
	Level     string
	Format    string // "console" or "json"
	AddSource bool
	File      string
}

var (
	mu      sync.RWMutex
	current *slog.Logger
)

// L returns the application logger, initializing it from the environment on first use.
func L() *slog.Logger {
	mu.RLock()
	l := current
	mu.RUnlock()
	if l != nil {
		return l
	}
	Init(FromEnv())
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Init replaces the application logger and slog.Default.
func Init(opts Options) {
	lvl := ParseLevel(opts.Level)
	hopts := &slog.HandlerOptions{Level: lvl, AddSource: opts.AddSource}

	var sinks []slog.Handler
	if strings.EqualFold(strings.TrimSpace(opts.Format), "json") {
		sinks = append(sinks, slog.NewJSONHandler(os.Stderr, hopts))
	} else {
		sinks = append(sinks, newConsoleHandler(os.Stderr, lvl, opts.AddSource))
	}
	if f := strings.TrimSpace(opts.File); f != "" {
		w := &lj.Logger{Filename: f, MaxSize: 10, MaxBackups: 3, MaxAge: 28, Compress: true}
		sinks = append(sinks, slog.NewJSONHandler(w, hopts))
	}

	var h slog.Handler = sinks[0]
	if len(sinks) > 1 {
		h = fanout(sinks)
	}
	logger := slog.New(h).With(
		slog.String("app", "littleplanet"),
		slog.String("ver", version.Version),
	)

	mu.Lock()
	current = logger
	mu.Unlock()
	slog.SetDefault(logger)
}

// FromEnv builds Options from LPC_LOG_* variables.
func FromEnv() Options {
	return Options{
		Level:     getenv("LPC_LOG_LEVEL", "info"),
		Format:    getenv("LPC_LOG_FORMAT", "console"),
		AddSource: strings.EqualFold(getenv("LPC_LOG_SOURCE", "false"), "true"),
		File:      os.Getenv("LPC_LOG_FILE"),
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(name string) *slog.Logger { return L().With(slog.String("component", name)) }

// WithOperation tags l with an operation name.
func WithOperation(l *slog.Logger, op string) *slog.Logger { return l.With(slog.String("op", op)) }

// ParseLevel maps a level name to slog.Level; unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range f {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestCache(t *testing.T, maxBytes int64) *BlobCache {
	t.Helper()
	c, err := OpenBlobCache(context.Background(), t.TempDir(), maxBytes)
	if err != nil {
		t.Fatalf("OpenBlobCache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBlobCachePutGet(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t, 0)
	if _, err := c.Get(ctx, "https://img.example/a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get(missing) err = %v", err)
	}
	if err := c.Put(ctx, "https://img.example/a.png", []byte("png-bytes")); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := c.Get(ctx, "https://img.example/a.png")
	if err != nil || string(got) != "png-bytes" {
		t.Fatalf("Get = %q, %v", got, err)
	}
	if err := c.Put(ctx, "https://img.example/a.png", []byte("v2")); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if total, _ := c.TotalBytes(ctx); total != 2 {
		t.Fatalf("total = %d, want 2", total)
	}
	if err := c.Delete(ctx, "https://img.example/a.png"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := c.Get(ctx, "https://img.example/a.png"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("deleted key still present: %v", err)
	}
}

func TestBlobCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := openTestCache(t, 10)
	clock := time.Unix(1000, 0)
	c.now = func() time.Time { clock = clock.Add(time.Second); return clock }

	for _, k := range []string{"a", "b"} {
		if err := c.Put(ctx, k, []byte("1234")); err != nil {
			t.Fatalf("Put(%s): %v", k, err)
		}
	}
	// touch a so b becomes the oldest
	if _, err := c.Get(ctx, "a"); err != nil {
		t.Fatalf("Get(a): %v", err)
	}
	if err := c.Put(ctx, "c", []byte("1234")); err != nil {
		t.Fatalf("Put(c): %v", err)
	}
	if _, err := c.Get(ctx, "b"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("b should have been evicted, err = %v", err)
	}
	for _, k := range []string{"a", "c"} {
		if _, err := c.Get(ctx, k); err != nil {
			t.Fatalf("%s evicted: %v", k, err)
		}
	}
	if total, _ := c.TotalBytes(ctx); total > 10 {
		t.Fatalf("total = %d exceeds cap", total)
	}
}

func TestBlobCacheRecreatesCorruptFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, CacheFileName)
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 400), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	c, err := OpenBlobCache(context.Background(), dir, 0)
	if err != nil {
		t.Fatalf("OpenBlobCache on corrupt file: %v", err)
	}
	defer c.Close()
	if err := c.Put(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Put after recreate: %v", err)
	}
	matches, _ := filepath.Glob(path + ".corrupt-*")
	if len(matches) == 0 {
		t.Fatalf("corrupt file was not moved aside")
	}
}

func TestOpenBlobCacheRequiresDir(t *testing.T) {
	if _, err := OpenBlobCache(context.Background(), "  ", 0); err == nil {
		t.Fatalf("expected error for empty dir")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "view.png")
	if err := WriteFileAtomic(path, []byte("first")); err != nil {
		t.Fatalf("WriteFileAtomic: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("second")); err != nil {
		t.Fatalf("WriteFileAtomic overwrite: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil || string(b) != "second" {
		t.Fatalf("content = %q, %v", b, err)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

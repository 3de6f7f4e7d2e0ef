/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imagecache

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"littleplanet/internal/placement"
	"littleplanet/internal/storage"
)

func pngBytes(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

type fakeFetcher struct {
	mu    sync.Mutex
	data  map[string][]byte
	calls map[string]int
	gate  chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[src]++
	b, ok := f.data[src]
	if !ok {
		return nil, errors.New("404")
	}
	return b, nil
}

func (f *fakeFetcher) count(src string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[src]
}

func vis(urls ...string) []placement.Visible {
	out := make([]placement.Visible, len(urls))
	for i, u := range urls {
		out[i] = placement.Visible{Ref: placement.Ref{URL: u}, SourceIndex: i, Rect: placement.R(0, 0, 10, 10)}
	}
	return out
}

func TestResolveLoadsVisibleImages(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 4, 3, color.White), "b": pngBytes(t, 2, 2, color.Black)}}
	c := New(Options{Fetcher: f})
	defer c.Close()
	if err := c.Resolve(context.Background(), vis("a", "b")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	img, ok := c.Image("a")
	if !ok || img.Bounds().Dx() != 4 || img.Bounds().Dy() != 3 {
		t.Fatalf("image a = %v, %v", img, ok)
	}
	// already cached: no second fetch
	if err := c.Resolve(context.Background(), vis("a", "b")); err != nil {
		t.Fatalf("Resolve again: %v", err)
	}
	if n := f.count("a"); n != 1 {
		t.Fatalf("a fetched %d times", n)
	}
}

func TestEntriesOutsideVisibleSetAreDropped(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 1, 1, color.White), "b": pngBytes(t, 1, 1, color.White)}}
	c := New(Options{Fetcher: f})
	defer c.Close()
	if err := c.Resolve(context.Background(), vis("a", "b")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if err := c.Resolve(context.Background(), vis("b")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := c.Image("a"); ok {
		t.Fatalf("a should have been dropped")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestResolveReportsFailures(t *testing.T) {
	f := &fakeFetcher{data: map[string][]byte{"ok": pngBytes(t, 1, 1, color.White), "junk": []byte("not an image")}}
	c := New(Options{Fetcher: f})
	defer c.Close()
	err := c.Resolve(context.Background(), vis("ok", "missing", "junk"))
	if err == nil {
		t.Fatalf("expected errors")
	}
	if _, ok := c.Image("ok"); !ok {
		t.Fatalf("good image not loaded")
	}
	if c.Err("missing") == nil || c.Err("junk") == nil {
		t.Fatalf("failures not recorded")
	}
}

func TestUpdateLoadsInBackground(t *testing.T) {
	ready := make(chan string, 4)
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 1, 1, color.White)}}
	c := New(Options{Fetcher: f, OnReady: func(u string) { ready <- u }})
	defer c.Close()
	c.Update(vis("a"))
	select {
	case u := <-ready:
		if u != "a" {
			t.Fatalf("ready for %q", u)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("image never became ready")
	}
	if _, ok := c.Image("a"); !ok {
		t.Fatalf("image missing after OnReady")
	}
}

func TestLoadForUrlThatLeftViewIsDiscarded(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 1, 1, color.White)}, gate: gate}
	ready := make(chan string, 1)
	c := New(Options{Fetcher: f, OnReady: func(u string) { ready <- u }})
	c.Update(vis("a"))
	c.Update(nil)
	close(gate)
	c.Close()
	if _, ok := c.Image("a"); ok {
		t.Fatalf("image for a url that left the view was kept")
	}
	select {
	case u := <-ready:
		t.Fatalf("OnReady called for %q", u)
	default:
	}
}

func TestResolveWaitsForBackgroundLoad(t *testing.T) {
	gate := make(chan struct{})
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 1, 1, color.White)}, gate: gate}
	c := New(Options{Fetcher: f})
	defer c.Close()
	c.Update(vis("a"))
	go func() {
		time.Sleep(20 * time.Millisecond)
		close(gate)
	}()
	if err := c.Resolve(context.Background(), vis("a")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if _, ok := c.Image("a"); !ok {
		t.Fatalf("Resolve returned before the background load finished")
	}
	if n := f.count("a"); n != 1 {
		t.Fatalf("fetched %d times", n)
	}
}

func TestDiskCacheAvoidsRefetch(t *testing.T) {
	ctx := context.Background()
	disk, err := storage.OpenBlobCache(ctx, t.TempDir(), 0)
	if err != nil {
		t.Fatalf("OpenBlobCache: %v", err)
	}
	defer disk.Close()
	f := &fakeFetcher{data: map[string][]byte{"a": pngBytes(t, 1, 1, color.White)}}

	c1 := New(Options{Fetcher: f, Disk: disk})
	if err := c1.Resolve(ctx, vis("a")); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	c1.Close()

	c2 := New(Options{Fetcher: f, Disk: disk})
	defer c2.Close()
	if err := c2.Resolve(ctx, vis("a")); err != nil {
		t.Fatalf("Resolve from disk: %v", err)
	}
	if n := f.count("a"); n != 1 {
		t.Fatalf("fetched %d times, want 1", n)
	}
}

func TestHTTPFetcherSendsHeaders(t *testing.T) {
	body := pngBytes(t, 1, 1, color.White)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") != "lp-test" || r.Header.Get("Authorization") != "Bearer tkn" {
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		if r.URL.Path == "/missing.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(body)
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), UserAgent: "lp-test", Token: func(string) (string, error) { return "tkn", nil }}
	b, err := f.Fetch(context.Background(), srv.URL+"/a.png")
	if err != nil || !bytes.Equal(b, body) {
		t.Fatalf("Fetch = %d bytes, %v", len(b), err)
	}
	if _, err := f.Fetch(context.Background(), srv.URL+"/missing.png"); err == nil {
		t.Fatalf("expected error for 404")
	}
	if _, err := f.Fetch(context.Background(), "ftp://example/a.png"); err == nil {
		t.Fatalf("expected error for unsupported scheme")
	}
}

func TestHTTPFetcherReadsFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.png")
	if err := os.WriteFile(path, pngBytes(t, 2, 1, color.White), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := &HTTPFetcher{}
	for _, src := range []string{path, "file://" + filepath.ToSlash(path)} {
		b, err := f.Fetch(context.Background(), src)
		if err != nil {
			t.Fatalf("Fetch(%s): %v", src, err)
		}
		img, format, err := Decode(b)
		if err != nil || format != "png" || img.Bounds().Dx() != 2 {
			t.Fatalf("Decode = %v %q %v", img, format, err)
		}
	}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package imagecache resolves source URLs to decoded images for the
// compositor. Entries are kept only while their URL is part of the latest
// visible set; fetched bytes can additionally be kept in a disk cache.
package imagecache

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/storage"
)

// Options configures a Cache.
type Options struct {
	Fetcher     Fetcher
	Disk        *storage.BlobCache // optional
	Concurrency int
	Timeout     time.Duration
	// OnReady is called from a loader goroutine after url became available.
	OnReady func(url string)
}

// Cache implements the compositor's image source.
type Cache struct {
	opts   Options
	ctx    context.Context
	cancel context.CancelFunc
	log    *slog.Logger

	mu       sync.Mutex
	wanted   map[string]struct{}
	entries  map[string]image.Image
	inflight map[string]chan struct{}
	failed   map[string]error
	wg       sync.WaitGroup
}

// New creates a cache; call Close to stop in-flight loads.
func New(opts Options) *Cache {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Cache{
		opts:     opts,
		ctx:      ctx,
		cancel:   cancel,
		log:      applog.WithComponent("imagecache"),
		wanted:   map[string]struct{}{},
		entries:  map[string]image.Image{},
		inflight: map[string]chan struct{}{},
		failed:   map[string]error{},
	}
}

// Image returns the decoded image for url if it is loaded.
func (c *Cache) Image(url string) (image.Image, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, ok := c.entries[url]
	return img, ok
}

// Err returns the last load error for url while it stays visible.
func (c *Cache) Err(url string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.failed[url]
}

// Len returns the number of loaded images.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Update makes visible the wanted set, drops everything else and starts
// loading missing images in the background.
func (c *Cache) Update(visible []placement.Visible) {
	missing, _ := c.want(visible)
	if len(missing) == 0 {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_ = c.loadAll(c.ctx, missing)
	}()
}

// Resolve is Update followed by waiting until every visible image has been
// loaded or has failed. Failures are joined into the returned error.
func (c *Cache) Resolve(ctx context.Context, visible []placement.Visible) error {
	missing, pending := c.want(visible)
	_ = c.loadAll(ctx, missing)
	for _, done := range pending {
		select {
		case <-done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	var errs []error
	c.mu.Lock()
	for url := range c.wanted {
		if ferr, ok := c.failed[url]; ok {
			errs = append(errs, fmt.Errorf("%s: %w", url, ferr))
		}
	}
	c.mu.Unlock()
	return errors.Join(errs...)
}

// Close cancels in-flight loads and waits for background loaders.
func (c *Cache) Close() {
	c.cancel()
	c.wg.Wait()
}

// want replaces the wanted set and returns the URLs this call must load plus
// the completion channels of loads already running.
func (c *Cache) want(visible []placement.Visible) (missing []string, pending []chan struct{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wanted = make(map[string]struct{}, len(visible))
	for _, v := range visible {
		c.wanted[v.URL] = struct{}{}
	}
	for url := range c.entries {
		if _, ok := c.wanted[url]; !ok {
			delete(c.entries, url)
		}
	}
	for url := range c.failed {
		if _, ok := c.wanted[url]; !ok {
			delete(c.failed, url)
		}
	}
	for url := range c.wanted {
		if _, ok := c.entries[url]; ok {
			continue
		}
		if _, ok := c.failed[url]; ok {
			continue
		}
		if done, ok := c.inflight[url]; ok {
			pending = append(pending, done)
			continue
		}
		c.inflight[url] = make(chan struct{})
		missing = append(missing, url)
	}
	return missing, pending
}

func (c *Cache) loadAll(ctx context.Context, urls []string) error {
	var g errgroup.Group
	g.SetLimit(c.opts.Concurrency)
	for _, url := range urls {
		g.Go(func() error { return c.load(ctx, url) })
	}
	return g.Wait()
}

func (c *Cache) load(ctx context.Context, url string) error {
	l := applog.WithOperation(c.log, "load").With(slog.String("url", url))
	ctx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	img, err := c.acquire(ctx, url)

	c.mu.Lock()
	done := c.inflight[url]
	delete(c.inflight, url)
	_, stillWanted := c.wanted[url]
	switch {
	case err != nil && stillWanted:
		c.failed[url] = err
	case err == nil && stillWanted:
		c.entries[url] = img
	}
	c.mu.Unlock()
	if done != nil {
		close(done)
	}

	if err != nil {
		l.Warn("image unavailable", slog.Any("err", err))
		return err
	}
	if !stillWanted {
		l.Debug("discarding image that left the view")
		return nil
	}
	l.Debug("image ready", slog.Int("w", img.Bounds().Dx()), slog.Int("h", img.Bounds().Dy()))
	if c.opts.OnReady != nil {
		c.opts.OnReady(url)
	}
	return nil
}

func (c *Cache) acquire(ctx context.Context, url string) (image.Image, error) {
	if c.opts.Disk != nil {
		if b, err := c.opts.Disk.Get(ctx, url); err == nil {
			if img, _, derr := Decode(b); derr == nil {
				return img, nil
			}
			_ = c.opts.Disk.Delete(ctx, url)
		} else if !errors.Is(err, storage.ErrNotFound) {
			c.log.Warn("disk cache read failed", slog.String("url", url), slog.Any("err", err))
		}
	}
	if c.opts.Fetcher == nil {
		return nil, errors.New("no fetcher configured")
	}
	b, err := c.opts.Fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, err
	}
	img, _, err := Decode(b)
	if err != nil {
		return nil, err
	}
	if c.opts.Disk != nil {
		if err := c.opts.Disk.Put(ctx, url, b); err != nil {
			c.log.Warn("disk cache write failed", slog.String("url", url), slog.Any("err", err))
		}
	}
	return img, nil
}

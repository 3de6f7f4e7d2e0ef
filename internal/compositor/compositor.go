/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package compositor paints the visible placements onto the raster surface,
// the S x S texture the lens samples from.
package compositor

import (
	"image"
	"image/color"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"golang.org/x/image/draw"

	"littleplanet/internal/frame"
	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/view"
)

// ImageSource resolves source URLs to drawable images. Update announces the
// currently visible placements and may load asynchronously; Image returns
// what is available now.
type ImageSource interface {
	Update(visible []placement.Visible)
	Image(url string) (image.Image, bool)
}

// Scaler returns the x/image/draw scaler for a filter name; unknown names
// fall back to bilinear.
func Scaler(name string) draw.Scaler {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "nearest":
		return draw.NearestNeighbor
	case "approx", "approxbilinear":
		return draw.ApproxBiLinear
	case "catmullrom":
		return draw.CatmullRom
	default:
		return draw.BiLinear
	}
}

// Options configures a Compositor.
type Options struct {
	Size       int
	Background color.Color
	Scaler     draw.Scaler
	Images     ImageSource
	Scheduler  frame.Scheduler
}

// Compositor keeps the raster surface in sync with the store and the view.
// Redraws are coalesced through a frame runner.
type Compositor struct {
	size   int
	bg     *image.Uniform
	scaler draw.Scaler
	images ImageSource
	store  *placement.Store
	view   *view.State
	runner *frame.Runner
	log    *slog.Logger

	surfaceMu  sync.RWMutex
	surface    *image.RGBA
	generation uint64

	lastVisible []placement.Visible
	lastOffX    float64
	lastOffY    float64
	primed      bool

	listeners []func(gen uint64)
	cancels   []func()
}

// New creates a compositor bound to store and view and subscribes to both.
func New(store *placement.Store, vs *view.State, opts Options) *Compositor {
	if opts.Size <= 0 {
		opts.Size = 2048
	}
	if opts.Background == nil {
		opts.Background = color.White
	}
	if opts.Scaler == nil {
		opts.Scaler = draw.BiLinear
	}
	c := &Compositor{
		size:    opts.Size,
		bg:      image.NewUniform(opts.Background),
		scaler:  opts.Scaler,
		images:  opts.Images,
		store:   store,
		view:    vs,
		log:     applog.WithComponent("compositor"),
		surface: image.NewRGBA(image.Rect(0, 0, opts.Size, opts.Size)),
	}
	c.runner = frame.NewRunner(opts.Scheduler, c.Redraw)
	c.cancels = append(c.cancels,
		store.Subscribe(func(placement.Snapshot) { c.Sync() }),
		vs.Subscribe(func(view.Snapshot) { c.Sync() }),
	)
	c.Sync()
	return c
}

// Close unsubscribes from the store and the view.
func (c *Compositor) Close() {
	for _, cancel := range c.cancels {
		cancel()
	}
	c.cancels = nil
}

// Size is the raster edge.
func (c *Compositor) Size() int { return c.size }

// OnInvalidate registers fn to run after every redraw with the new generation.
func (c *Compositor) OnInvalidate(fn func(gen uint64)) { c.listeners = append(c.listeners, fn) }

// Visible lists the placements inside the current raster window.
func (c *Compositor) Visible() []placement.Visible {
	v := c.view.Read()
	return c.store.Read().VisibleIn(v.OffsetX, v.OffsetY, float64(c.size))
}

// Sync recomputes the visible set and, when it or the offset changed, tells
// the image source and requests a redraw.
func (c *Compositor) Sync() {
	v := c.view.Read()
	vis := c.store.Read().VisibleIn(v.OffsetX, v.OffsetY, float64(c.size))
	if c.primed && v.OffsetX == c.lastOffX && v.OffsetY == c.lastOffY && slices.Equal(vis, c.lastVisible) {
		return
	}
	c.primed = true
	c.lastVisible, c.lastOffX, c.lastOffY = vis, v.OffsetX, v.OffsetY
	if c.images != nil {
		c.images.Update(vis)
	}
	c.runner.Request()
}

// Request asks for a redraw on the next frame, e.g. after an image arrived.
func (c *Compositor) Request() { c.runner.Request() }

// Redraw repaints the surface immediately: background first, then every
// visible placement whose image is available, in drawing order.
func (c *Compositor) Redraw() {
	v := c.view.Read()
	vis := c.store.Read().VisibleIn(v.OffsetX, v.OffsetY, float64(c.size))

	c.surfaceMu.Lock()
	dst := c.surface
	draw.Draw(dst, dst.Bounds(), c.bg, image.Point{}, draw.Src)
	drawn := 0
	for _, p := range vis {
		if c.images == nil {
			break
		}
		img, ok := c.images.Image(p.URL)
		if !ok || img.Bounds().Empty() || p.Rect.W <= 0 || p.Rect.H <= 0 {
			continue
		}
		w := p.Rect.InWindow(v.OffsetX, v.OffsetY)
		dr := image.Rect(w.X, w.Y, w.X+w.W, w.Y+w.H)
		c.scaler.Scale(dst, dr, img, img.Bounds(), draw.Over, nil)
		drawn++
	}
	c.generation++
	gen := c.generation
	c.surfaceMu.Unlock()

	c.log.Debug("redraw", slog.Int("visible", len(vis)), slog.Int("drawn", drawn), slog.Uint64("gen", gen))
	for _, fn := range c.listeners {
		fn(gen)
	}
}

// Generation increases with every redraw.
func (c *Compositor) Generation() uint64 {
	c.surfaceMu.RLock()
	defer c.surfaceMu.RUnlock()
	return c.generation
}

// View calls fn with the surface under a read lock. fn must not retain it.
func (c *Compositor) View(fn func(surface *image.RGBA, gen uint64)) {
	c.surfaceMu.RLock()
	defer c.surfaceMu.RUnlock()
	fn(c.surface, c.generation)
}

// Snapshot returns a copy of the surface.
func (c *Compositor) Snapshot() *image.RGBA {
	c.surfaceMu.RLock()
	defer c.surfaceMu.RUnlock()
	out := image.NewRGBA(c.surface.Rect)
	copy(out.Pix, c.surface.Pix)
	return out
}

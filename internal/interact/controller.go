/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package interact turns pointer gestures into view pans and placement
// edits.
package interact

import (
	"log/slog"
	"math"

	"gonum.org/v1/gonum/spatial/r2"

	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/view"
)

// Mode is the gesture currently in progress.
type Mode int

const (
	Idle Mode = iota
	Panning
	Moving
	Resizing
)

func (m Mode) String() string {
	switch m {
	case Panning:
		return "panning"
	case Moving:
		return "moving"
	case Resizing:
		return "resizing"
	default:
		return "idle"
	}
}

// Corner names one of the four resize handles.
type Corner int

const (
	TopLeft Corner = iota
	TopRight
	BottomRight
	BottomLeft
)

// Corners lists the handles in hit-test order.
var Corners = [4]Corner{TopLeft, TopRight, BottomRight, BottomLeft}

func (c Corner) String() string {
	return [...]string{"tl", "tr", "br", "bl"}[c]
}

func (c Corner) movesLeft() bool { return c == TopLeft || c == BottomLeft }
func (c Corner) movesTop() bool  { return c == TopLeft || c == TopRight }

// Pointer is one pointer event in window pixels.
type Pointer struct {
	X, Y     float64
	Modifier bool
}

func (p Pointer) vec() r2.Vec { return r2.Vec{X: p.X, Y: p.Y} }

// Mapper converts between pointer pixels and window raster coordinates.
// *projection.Lens satisfies it.
type Mapper interface {
	PointerToRaster(pointer r2.Vec) (r2.Vec, bool)
	RasterToPointer(raster r2.Vec) (r2.Vec, bool)
}

// Handle is a resize handle position on screen.
type Handle struct {
	Corner Corner
	At     r2.Vec
}

// Options tune hit radius and minimum edge.
type Options struct {
	HandleRadius float64
	MinEdge      int
}

// Controller is the pointer state machine. It is not safe for concurrent
// use; feed it from the event thread.
type Controller struct {
	store  *placement.Store
	view   *view.State
	mapper Mapper
	radius float64
	min    int
	log    *slog.Logger

	mode   Mode
	corner Corner
	target placement.Ref

	startPointer r2.Vec
	startHit     r2.Vec
	startOffset  r2.Vec
	startRect    placement.Rect
}

// New builds a controller. Zero options fall back to a 6 px handle radius
// and a 12 unit minimum edge.
func New(store *placement.Store, vs *view.State, mapper Mapper, opts Options) *Controller {
	if opts.HandleRadius <= 0 {
		opts.HandleRadius = 6
	}
	if opts.MinEdge <= 0 {
		opts.MinEdge = 12
	}
	return &Controller{
		store:  store,
		view:   vs,
		mapper: mapper,
		radius: opts.HandleRadius,
		min:    opts.MinEdge,
		log:    applog.WithComponent("interact"),
	}
}

// SetMapper swaps the pointer mapping, e.g. after a viewport resize.
func (c *Controller) SetMapper(m Mapper) { c.mapper = m }

// Mode reports the active gesture.
func (c *Controller) Mode() Mode { return c.mode }

// Corner reports the dragged handle while resizing.
func (c *Controller) Corner() Corner { return c.corner }

// Handles returns the on-screen handle positions of the selected
// placement. Corners whose raster point lies outside the lens are omitted.
func (c *Controller) Handles() []Handle {
	snap := c.store.Read()
	if snap.Released {
		return nil
	}
	v := c.view.Read()
	_, r, ok := v.SelectedRect(snap)
	if !ok {
		return nil
	}
	out := make([]Handle, 0, 4)
	for _, corner := range Corners {
		rx, ry := cornerOf(r, corner)
		at, ok := c.mapper.RasterToPointer(r2.Vec{X: float64(rx) - v.OffsetX, Y: float64(ry) - v.OffsetY})
		if ok {
			out = append(out, Handle{Corner: corner, At: at})
		}
	}
	return out
}

func cornerOf(r placement.Rect, corner Corner) (int, int) {
	x, y := r.Right(), r.Bottom()
	if corner.movesLeft() {
		x = r.X
	}
	if corner.movesTop() {
		y = r.Y
	}
	return x, y
}

// PointerDown starts a gesture.
func (c *Controller) PointerDown(p Pointer) {
	snap := c.store.Read()
	v := c.view.Read()
	hit, hitOK := c.mapper.PointerToRaster(p.vec())

	if !snap.Released && hitOK {
		if p.Modifier {
			if ref, ok := snap.HitTest(hit.X+v.OffsetX, hit.Y+v.OffsetY); ok {
				v = c.view.Select(ref)
			} else {
				v = c.view.ClearSelection()
			}
		}
		if ref, r, ok := v.SelectedRect(snap); ok {
			for _, h := range c.Handles() {
				if math.Abs(p.X-h.At.X) <= c.radius && math.Abs(p.Y-h.At.Y) <= c.radius {
					c.begin(Resizing, p, hit, v, ref, r)
					c.corner = h.Corner
					return
				}
			}
			wx, wy := hit.X+v.OffsetX, hit.Y+v.OffsetY
			if wx > float64(r.X) && wx < float64(r.X+r.W) && wy > float64(r.Y) && wy < float64(r.Y+r.H) {
				c.begin(Moving, p, hit, v, ref, r)
				return
			}
		}
	}
	c.begin(Panning, p, hit, v, placement.Ref{}, placement.Rect{})
}

func (c *Controller) begin(m Mode, p Pointer, hit r2.Vec, v view.Snapshot, ref placement.Ref, r placement.Rect) {
	c.mode = m
	c.target = ref
	c.startPointer = p.vec()
	c.startHit = hit
	c.startOffset = r2.Vec{X: v.OffsetX, Y: v.OffsetY}
	c.startRect = r
	c.log.Debug("gesture start", slog.String("mode", m.String()), slog.String("ref", ref.URL), slog.Int("index", ref.Index))
}

// PointerMove advances the active gesture.
func (c *Controller) PointerMove(p Pointer) {
	switch c.mode {
	case Panning:
		d := r2.Sub(p.vec(), c.startPointer)
		c.view.SetOffset(c.startOffset.X-d.X, c.startOffset.Y-d.Y)
	case Moving, Resizing:
		hit, ok := c.mapper.PointerToRaster(p.vec())
		if !ok {
			return
		}
		cur, ok := c.store.Lookup(c.target)
		if !ok {
			c.mode = Idle
			return
		}
		d := r2.Sub(hit, c.startHit)
		if c.mode == Moving {
			cur.X = placement.Round(float64(c.startRect.X) + d.X)
			cur.Y = placement.Round(float64(c.startRect.Y) + d.Y)
			c.store.SetPlacement(c.target, cur)
			return
		}
		c.store.SetPlacement(c.target, Resize(cur, c.startRect, c.corner, d, c.min))
	}
}

// PointerUp ends whatever gesture is active.
func (c *Controller) PointerUp() {
	if c.mode != Idle {
		c.log.Debug("gesture end", slog.String("mode", c.mode.String()))
	}
	c.mode = Idle
}

// Resize drags corner of start by delta while the opposite corner of cur
// stays put. The moving edge never comes closer than minEdge to the pivot.
func Resize(cur, start placement.Rect, corner Corner, delta r2.Vec, minEdge int) placement.Rect {
	pivotX, pivotY := cornerOf(cur, opposite(corner))
	sx, sy := cornerOf(start, corner)
	nx := clampEdge(float64(sx)+delta.X, pivotX, minEdge, corner.movesLeft())
	ny := clampEdge(float64(sy)+delta.Y, pivotY, minEdge, corner.movesTop())
	x0, x1 := min(nx, pivotX), max(nx, pivotX)
	y0, y1 := min(ny, pivotY), max(ny, pivotY)
	return placement.Rect{X: x0, Y: y0, W: x1 - x0 + 1, H: y1 - y0 + 1}
}

func clampEdge(target float64, pivot, minEdge int, towardLow bool) int {
	if towardLow {
		return placement.Round(math.Min(target, float64(pivot-minEdge)))
	}
	return placement.Round(math.Max(target, float64(pivot+minEdge)))
}

func opposite(c Corner) Corner { return (c + 2) % 4 }

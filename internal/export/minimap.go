/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"golang.org/x/image/vector"

	"littleplanet/internal/placement"
)

// Default mini-map dimensions.
const (
	MinimapWidth  = 222
	MinimapHeight = 200
)

var (
	minimapBG    = color.RGBA{A: 255}
	minimapPlace = color.RGBA{R: 0x66, G: 0x66, B: 0x66, A: 255}
	minimapRing  = color.RGBA{G: 128, A: 255}
)

// MinimapOptions describe the map canvas and the view it marks.
type MinimapOptions struct {
	Width, Height    int
	OffsetX, OffsetY float64
	Size             float64 // raster window edge
}

// Minimap draws every placement scaled into the map and a ring marking the
// current view. An empty store yields a blank map.
func Minimap(snap placement.Snapshot, opt MinimapOptions) *image.RGBA {
	if opt.Width <= 0 {
		opt.Width = MinimapWidth
	}
	if opt.Height <= 0 {
		opt.Height = MinimapHeight
	}
	dst := image.NewRGBA(image.Rect(0, 0, opt.Width, opt.Height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(minimapBG), image.Point{}, draw.Src)

	bounds, ok := snap.Bounds()
	if !ok || bounds.W <= 0 || bounds.H <= 0 {
		return dst
	}
	k := minimapScale(bounds, opt.Width, opt.Height)
	fill := image.NewUniform(minimapPlace)
	for _, src := range snap.Sources {
		for _, p := range src.Placements {
			x := int(float64(p.X-bounds.X) * k)
			y := int(float64(p.Y-bounds.Y) * k)
			w := int(math.Ceil(float64(p.W) * k))
			h := int(math.Ceil(float64(p.H) * k))
			if w <= 0 || h <= 0 {
				continue
			}
			draw.Draw(dst, image.Rect(x, y, x+w, y+h), fill, image.Point{}, draw.Src)
		}
	}

	cx := (opt.OffsetX + opt.Size/2 - float64(bounds.X)) * k
	cy := (opt.OffsetY + opt.Size/2 - float64(bounds.Y)) * k
	cx = math.Min(math.Max(cx, 0), float64(opt.Width))
	cy = math.Min(math.Max(cy, 0), float64(opt.Height))
	r := opt.Size / 2 / 1.5 * k
	ring(dst, cx, cy, r, 2)
	return dst
}

func minimapScale(b placement.Rect, w, h int) float64 {
	return math.Min(float64(w)/float64(b.W), float64(h)/float64(b.H))
}

// ring strokes a circle of radius r with the given line width.
func ring(dst *image.RGBA, cx, cy, r, width float64) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	circle(z, cx, cy, r+width/2, false)
	if inner := r - width/2; inner > 0 {
		circle(z, cx, cy, inner, true)
	}
	z.Draw(dst, b, image.NewUniform(minimapRing), image.Point{})
}

// circle adds a four-segment cubic approximation of a circle.
func circle(z *vector.Rasterizer, cx, cy, r float64, reverse bool) {
	const kappa = 0.5522847498
	kr := kappa * r
	f := func(v float64) float32 { return float32(v) }
	s := 1.0
	if reverse {
		s = -1
	}
	z.MoveTo(f(cx+r), f(cy))
	z.CubeTo(f(cx+r), f(cy+s*kr), f(cx+kr), f(cy+s*r), f(cx), f(cy+s*r))
	z.CubeTo(f(cx-kr), f(cy+s*r), f(cx-r), f(cy+s*kr), f(cx-r), f(cy))
	z.CubeTo(f(cx-r), f(cy-s*kr), f(cx-kr), f(cy-s*r), f(cx), f(cy-s*r))
	z.CubeTo(f(cx+kr), f(cy-s*r), f(cx+r), f(cy-s*kr), f(cx+r), f(cy))
	z.ClosePath()
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package lens renders the raster surface as it appears through the
// fisheye, pixel by pixel, on the CPU.
package lens

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/vector"
	"gonum.org/v1/gonum/spatial/r2"

	"littleplanet/internal/placement"
	"littleplanet/internal/projection"
)

// DefaultShadow is how strongly the rim darkens.
const DefaultShadow = 0.6

// HandleSize is the edge of a resize handle square in screen pixels.
const HandleSize = 12

var (
	green   = color.RGBA{G: 255, A: 255}
	handleC = color.RGBA{G: 128, A: 255}
	white   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

// Scene is what one lens frame shows. Highlight is in window raster
// coordinates; Handles are screen positions.
type Scene struct {
	Surface   *image.RGBA
	Highlight *placement.Rect
	Handles   []r2.Vec
}

// Options tune the shading.
type Options struct {
	Shadow  float64
	Outside color.RGBA
}

// Render draws one frame for the lens viewport. Pixels whose ray misses the
// disc get opts.Outside; pixels that land beyond the raster are white.
func Render(l *projection.Lens, scene Scene, opts Options) *image.RGBA {
	vp := l.Viewport()
	w, h := int(math.Ceil(vp.Width)), int(math.Ceil(vp.Height))
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if opts.Shadow == 0 {
		opts.Shadow = DefaultShadow
	}
	if opts.Outside.A == 0 {
		opts.Outside = color.RGBA{A: 255}
	}
	center := l.Center()
	for py := 0; py < h; py++ {
		for px := 0; px < w; px++ {
			ptr := r2.Vec{X: vp.X + float64(px) + 0.5, Y: vp.Y + float64(py) + 0.5}
			dst.SetRGBA(px, py, shade(l, scene, opts, ptr, center))
		}
	}
	for _, at := range scene.Handles {
		drawHandle(dst, at)
	}
	return dst
}

func shade(l *projection.Lens, scene Scene, opts Options, ptr, center r2.Vec) color.RGBA {
	plane, ok := l.ScreenToPlane(ptr)
	if !ok {
		return opts.Outside
	}
	rho := r2.Norm(plane)
	raster, ok := projection.PlaneToRaster(plane, center, l.Size)
	if !ok {
		return opts.Outside
	}
	if raster.X < 0 || raster.X > l.Size || raster.Y < 0 || raster.Y > l.Size {
		return white
	}
	c := sample(scene.Surface, raster)
	f := projection.Brightness(rho)*opts.Shadow + (1 - opts.Shadow)
	c = color.RGBA{R: scale(c.R, f), G: scale(c.G, f), B: scale(c.B, f), A: 255}
	if hl := scene.Highlight; hl != nil {
		c = highlight(c, *hl, raster)
	}
	return c
}

func sample(src *image.RGBA, p r2.Vec) color.RGBA {
	if src == nil {
		return white
	}
	b := src.Bounds()
	x := min(max(int(p.X), 0), b.Dx()-1)
	y := min(max(int(p.Y), 0), b.Dy()-1)
	return src.RGBAAt(b.Min.X+x, b.Min.Y+y)
}

func scale(v uint8, f float64) uint8 {
	return uint8(math.Min(255, math.Round(float64(v)*f)))
}

// highlight tints the selected rectangle and outlines it with a 1 unit
// border on each edge.
func highlight(c color.RGBA, r placement.Rect, p r2.Vec) color.RGBA {
	x, y, w, h := float64(r.X), float64(r.Y), float64(r.W), float64(r.H)
	inX := p.X >= x && p.X <= x+w
	inY := p.Y >= y && p.Y <= y+h
	if inX && inY {
		c = color.RGBA{
			R: scale(c.R, 0.7),
			G: uint8(math.Min(255, math.Round(float64(c.G)*0.7+0.3*255))),
			B: scale(c.B, 0.7),
			A: 255,
		}
	}
	if inX && (math.Abs(p.Y-y) <= 1 || math.Abs(p.Y-y-h) <= 1) {
		return green
	}
	if inY && (math.Abs(p.X-x) <= 1 || math.Abs(p.X-x-w) <= 1) {
		return green
	}
	return c
}

// drawHandle strokes a HandleSize square with a 2 px border centred on at.
func drawHandle(dst *image.RGBA, at r2.Vec) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	outer := float32(HandleSize/2 + 2)
	inner := float32(HandleSize / 2)
	cx, cy := float32(at.X), float32(at.Y)
	square(z, cx, cy, outer, false)
	square(z, cx, cy, inner, true)
	z.Draw(dst, b, image.NewUniform(handleC), image.Point{})
}

// square adds an axis-aligned square of half edge r; reverse flips the
// winding so it cuts a hole out of an enclosing square.
func square(z *vector.Rasterizer, cx, cy, r float32, reverse bool) {
	z.MoveTo(cx-r, cy-r)
	if reverse {
		z.LineTo(cx-r, cy+r)
		z.LineTo(cx+r, cy+r)
		z.LineTo(cx+r, cy-r)
	} else {
		z.LineTo(cx+r, cy-r)
		z.LineTo(cx+r, cy+r)
		z.LineTo(cx-r, cy+r)
	}
	z.ClosePath()
}

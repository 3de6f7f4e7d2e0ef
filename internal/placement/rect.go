/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package placement

import (
	"fmt"
	"math"
)

// Rect is a placement in raster space. X and Y are the top-left corner.
type Rect struct {
	X, Y int
	W, H int
}

func R(x, y, w, h int) Rect { return Rect{X: x, Y: y, W: w, H: h} }

func (r Rect) String() string { return fmt.Sprintf("(%d,%d %dx%d)", r.X, r.Y, r.W, r.H) }

// Right and Bottom are the inclusive far edges used by resize handles.
func (r Rect) Right() int  { return r.X + r.W - 1 }
func (r Rect) Bottom() int { return r.Y + r.H - 1 }

// Contains reports whether the raster point lies in r, edges included on
// both sides.
func (r Rect) Contains(x, y float64) bool {
	return x >= float64(r.X) && x <= float64(r.X+r.W) &&
		y >= float64(r.Y) && y <= float64(r.Y+r.H)
}

// Overlaps reports whether r intersects the square window [offX, offX+size) x
// [offY, offY+size) with a non-empty area on both axes.
func (r Rect) Overlaps(offX, offY, size float64) bool {
	return math.Min(float64(r.X+r.W), offX+size) > math.Max(float64(r.X), offX) &&
		math.Min(float64(r.Y+r.H), offY+size) > math.Max(float64(r.Y), offY)
}

// Union returns the smallest rect containing both.
func (r Rect) Union(o Rect) Rect {
	x0, y0 := min(r.X, o.X), min(r.Y, o.Y)
	x1, y1 := max(r.X+r.W, o.X+o.W), max(r.Y+r.H, o.Y+o.H)
	return Rect{X: x0, Y: y0, W: x1 - x0, H: y1 - y0}
}

// InWindow returns r in coordinates of a window whose top-left corner sits at
// raster (offX, offY). The offset is rounded with Round so every layer agrees.
func (r Rect) InWindow(offX, offY float64) Rect {
	r.X -= Round(offX)
	r.Y -= Round(offY)
	return r
}

// Round rounds half up, matching the rounding used for pointer-driven edits.
func Round(v float64) int { return int(math.Floor(v + 0.5)) }

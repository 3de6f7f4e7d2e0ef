/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package projection holds the fisheye lens law between the plane disc and the
// flat raster, and the perspective camera that maps pointer pixels onto that
// plane and back. All functions are pure; "no mapping" is reported through a
// boolean, never through a panic or a NaN.
package projection

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// LensRadius is the radius of the plane disc the raster is wrapped onto.
const LensRadius = 0.5

// rimSlack absorbs float error on the rim, where the forward arc is a
// quarter turn and may come back a few ulps beyond it.
const rimSlack = 1e-9

// arcRange is the raster distance covered per unit of arc length.
func arcRange(size float64) float64 { return size / (math.Pi / 2) }

// PlaneToRaster maps a point of the plane disc to raster coordinates for a
// raster of edge size whose lens center sits at center. Points outside the
// disc have no raster position.
func PlaneToRaster(p, center r2.Vec, size float64) (r2.Vec, bool) {
	rho := r2.Norm(p)
	if rho > LensRadius || math.IsNaN(rho) {
		return r2.Vec{}, false
	}
	stretched := r2.Vec{}
	if rho > 0 {
		arc := math.Asin(rho/LensRadius) * LensRadius
		stretched = r2.Scale(arc/rho, p)
	}
	rg := arcRange(size)
	return r2.Vec{
		X: center.X + stretched.X*rg,
		Y: size - (center.Y + stretched.Y*rg),
	}, true
}

// RasterToPlane is the inverse of PlaneToRaster. Raster points farther from
// the center than a quarter turn of arc have no plane position.
func RasterToPlane(p, center r2.Vec, size float64) (r2.Vec, bool) {
	rg := arcRange(size)
	if rg == 0 {
		return r2.Vec{}, false
	}
	stretched := r2.Vec{X: (p.X - center.X) / rg, Y: (size - p.Y - center.Y) / rg}
	arc := r2.Norm(stretched)
	if arc/LensRadius > math.Pi/2+rimSlack || math.IsNaN(arc) {
		return r2.Vec{}, false
	}
	if arc == 0 {
		return r2.Vec{}, true
	}
	rho := math.Sin(math.Min(arc/LensRadius, math.Pi/2)) * LensRadius
	return r2.Scale(rho/arc, stretched), true
}

// Brightness is the lens shading factor at plane radius rho: 1 at the center,
// falling to 0 on the rim.
func Brightness(rho float64) float64 {
	if rho >= LensRadius {
		return 0
	}
	return math.Cos(math.Asin(rho / LensRadius))
}

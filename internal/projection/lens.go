/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package projection

import (
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// Lens chains the camera and the fisheye law for a raster window of edge
// Size whose lens center is the middle of the window.
type Lens struct {
	*Projector
	Size float64
}

// NewLens builds a lens for the given camera, viewport and raster edge.
func NewLens(cam Camera, vp Viewport, size float64) (*Lens, error) {
	p, err := NewProjector(cam, vp)
	if err != nil {
		return nil, err
	}
	return &Lens{Projector: p, Size: size}, nil
}

// Center is the lens center in window raster coordinates.
func (l *Lens) Center() r2.Vec { return r2.Vec{X: l.Size / 2, Y: l.Size / 2} }

// PointerToRaster maps a pointer position to window raster coordinates.
func (l *Lens) PointerToRaster(pointer r2.Vec) (r2.Vec, bool) {
	plane, ok := l.ScreenToPlane(pointer)
	if !ok {
		return r2.Vec{}, false
	}
	return PlaneToRaster(plane, l.Center(), l.Size)
}

// RasterToPointer maps window raster coordinates to a pointer position.
func (l *Lens) RasterToPointer(raster r2.Vec) (r2.Vec, bool) {
	plane, ok := RasterToPlane(raster, l.Center(), l.Size)
	if !ok {
		return r2.Vec{}, false
	}
	return l.PlaneToScreen(r3.Vec{X: plane.X, Y: plane.Y})
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/gonum/spatial/r3"
)

// ErrDegenerateCamera is returned when a camera cannot produce an invertible
// view-projection matrix.
var ErrDegenerateCamera = errors.New("degenerate camera")

// Camera is a perspective camera. FovY is the vertical field of view in degrees.
type Camera struct {
	Position r3.Vec
	Target   r3.Vec
	Up       r3.Vec
	FovY     float64
	Near     float64
	Far      float64
}

// DefaultCamera looks down the z axis at the plane from distance 10 with a
// narrow 7 degree field of view, which frames the lens disc.
func DefaultCamera() Camera {
	return Camera{
		Position: r3.Vec{Z: 10},
		Up:       r3.Vec{Y: 1},
		FovY:     7,
		Near:     0.1,
		Far:      2000,
	}
}

// Viewport is the pointer-space rectangle the camera image is shown in.
type Viewport struct {
	X, Y          float64
	Width, Height float64
}

// Aspect returns width over height.
func (v Viewport) Aspect() float64 { return v.Width / v.Height }

// Projector maps between pointer pixels and world points for one camera and
// viewport. Build a new one whenever either changes.
type Projector struct {
	cam Camera
	vp  Viewport
	vpm homog // projection * view
	inv homog
}

// homog is a row-major 4x4 matrix, flattened so per-pixel transforms stay
// on the stack.
type homog [16]float64

func flatten(m mat.Matrix) homog {
	var h homog
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			h[i*4+j] = m.At(i, j)
		}
	}
	return h
}

// NewProjector precomputes the view-projection matrix and its inverse.
func NewProjector(cam Camera, vp Viewport) (*Projector, error) {
	if vp.Width <= 0 || vp.Height <= 0 {
		return nil, fmt.Errorf("viewport %vx%v: %w", vp.Width, vp.Height, ErrDegenerateCamera)
	}
	view, ok := lookAt(cam.Position, cam.Target, cam.Up)
	if !ok {
		return nil, fmt.Errorf("look-at: %w", ErrDegenerateCamera)
	}
	proj, ok := perspective(cam.FovY, vp.Aspect(), cam.Near, cam.Far)
	if !ok {
		return nil, fmt.Errorf("perspective fov=%v: %w", cam.FovY, ErrDegenerateCamera)
	}
	var vpm, inv mat.Dense
	vpm.Mul(proj, view)
	if err := inv.Inverse(&vpm); err != nil {
		return nil, fmt.Errorf("invert view-projection: %w", ErrDegenerateCamera)
	}
	return &Projector{cam: cam, vp: vp, vpm: flatten(&vpm), inv: flatten(&inv)}, nil
}

// Viewport returns the viewport the projector was built for.
func (p *Projector) Viewport() Viewport { return p.vp }

// ScreenToPlane casts a ray from the camera through the pointer position and
// intersects it with the z=0 plane. Rays parallel to the plane or hitting it
// behind the camera have no plane point.
func (p *Projector) ScreenToPlane(pointer r2.Vec) (r2.Vec, bool) {
	ndc := r2.Vec{
		X: (pointer.X-p.vp.X)/p.vp.Width*2 - 1,
		Y: -(pointer.Y-p.vp.Y)/p.vp.Height*2 + 1,
	}
	far, ok := transform(&p.inv, r3.Vec{X: ndc.X, Y: ndc.Y, Z: 0.5})
	if !ok {
		return r2.Vec{}, false
	}
	origin := p.cam.Position
	ray := r3.Sub(far, origin)
	if r3.Norm(ray) == 0 {
		return r2.Vec{}, false
	}
	dir := r3.Unit(ray)
	if math.Abs(dir.Z) < 1e-12 {
		return r2.Vec{}, false
	}
	t := -origin.Z / dir.Z
	if t < 0 {
		return r2.Vec{}, false
	}
	hit := r3.Add(origin, r3.Scale(t, dir))
	return r2.Vec{X: hit.X, Y: hit.Y}, true
}

// PlaneToScreen projects a world point to pointer pixels, vertical axis pointing down.
func (p *Projector) PlaneToScreen(world r3.Vec) (r2.Vec, bool) {
	ndc, ok := transform(&p.vpm, world)
	if !ok {
		return r2.Vec{}, false
	}
	return r2.Vec{
		X: p.vp.X + (ndc.X+1)/2*p.vp.Width,
		Y: p.vp.Y + (-ndc.Y+1)/2*p.vp.Height,
	}, true
}

// transform applies a 4x4 homogeneous matrix and divides by w.
func transform(m *homog, v r3.Vec) (r3.Vec, bool) {
	var out [4]float64
	for i := range out {
		row := m[i*4 : i*4+4]
		out[i] = row[0]*v.X + row[1]*v.Y + row[2]*v.Z + row[3]
	}
	w := out[3]
	if w == 0 || math.IsNaN(w) {
		return r3.Vec{}, false
	}
	return r3.Vec{X: out[0] / w, Y: out[1] / w, Z: out[2] / w}, true
}

func lookAt(eye, target, up r3.Vec) (*mat.Dense, bool) {
	fwd := r3.Sub(eye, target)
	if r3.Norm(fwd) == 0 {
		return nil, false
	}
	z := r3.Unit(fwd)
	side := r3.Cross(up, z)
	if r3.Norm(side) < 1e-12 {
		return nil, false
	}
	x := r3.Unit(side)
	y := r3.Cross(z, x)
	return mat.NewDense(4, 4, []float64{
		x.X, x.Y, x.Z, -r3.Dot(x, eye),
		y.X, y.Y, y.Z, -r3.Dot(y, eye),
		z.X, z.Y, z.Z, -r3.Dot(z, eye),
		0, 0, 0, 1,
	}), true
}

func perspective(fovY, aspect, near, far float64) (*mat.Dense, bool) {
	if fovY <= 0 || fovY >= 180 || aspect <= 0 || near <= 0 || far <= near {
		return nil, false
	}
	f := 1 / math.Tan(fovY*math.Pi/360)
	nf := 1 / (near - far)
	return mat.NewDense(4, 4, []float64{
		f / aspect, 0, 0, 0,
		0, f, 0, 0,
		0, 0, (far + near) * nf, 2 * far * near * nf,
		0, 0, -1, 0,
	}), true
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strconv"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"littleplanet/internal/placement"
)

// InfoLines formats the view offset and the selected rectangle. Missing
// selection values read NaN.
func InfoLines(offX, offY float64, sel *placement.Rect) []string {
	num := func(v int) string { return strconv.Itoa(v) }
	x, y, w, h := "NaN", "NaN", "NaN", "NaN"
	if sel != nil {
		x, y, w, h = num(sel.X), num(sel.Y), num(sel.W), num(sel.H)
	}
	return []string{
		fmt.Sprintf("View: x= %s y= %s", trimFloat(offX), trimFloat(offY)),
		fmt.Sprintf("Selected: x= %s y= %s", x, y),
		fmt.Sprintf("          w= %s h= %s", w, h),
	}
}

func trimFloat(v float64) string { return strconv.FormatFloat(v, 'f', -1, 64) }

// InfoLabel renders lines with the 7x13 bitmap face on a dark panel.
func InfoLabel(lines []string) *image.RGBA {
	face := basicfont.Face7x13
	const pad = 8
	lineH := face.Metrics().Height.Ceil()
	width := 0
	for _, l := range lines {
		width = max(width, font.MeasureString(face, l).Ceil())
	}
	dst := image.NewRGBA(image.Rect(0, 0, width+2*pad, lineH*len(lines)+2*pad))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.RGBA{R: 0x33, G: 0x33, B: 0x33, A: 255}), image.Point{}, draw.Src)
	d := &font.Drawer{Dst: dst, Src: image.NewUniform(color.White), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i, l := range lines {
		d.Dot = fixed.P(pad, pad+ascent+i*lineH)
		d.DrawString(l)
	}
	return dst
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"littleplanet/internal/placement"
)

func checker(n int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, n, n))
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			if (x+y)%2 == 0 {
				img.SetRGBA(x, y, color.RGBA{R: 255, A: 255})
			}
		}
	}
	return img
}

func TestWritePNGRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "frame.png")
	if err := WritePNG(path, checker(16)); err != nil {
		t.Fatalf("WritePNG: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(b))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Fatalf("width = %d", img.Bounds().Dx())
	}
	r, _, _, _ := img.At(0, 0).RGBA()
	if r != 0xffff {
		t.Fatalf("pixel (0,0) red = %x", r)
	}
}

func TestWritePNGNil(t *testing.T) {
	if err := WritePNG(filepath.Join(t.TempDir(), "x.png"), nil); err == nil {
		t.Fatalf("expected error for nil image")
	}
}

func TestWritePDF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.pdf")
	err := WritePDF(path, checker(32), PDFOptions{Title: "view", Caption: []string{"View: x= 0 y= 0"}})
	if err != nil {
		t.Fatalf("WritePDF: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !bytes.HasPrefix(b, []byte("%PDF-")) {
		t.Fatalf("not a pdf: %q", b[:min(len(b), 8)])
	}
}

func TestMinimapEmpty(t *testing.T) {
	img := Minimap(placement.Snapshot{}, MinimapOptions{Size: 2048})
	if img.Bounds() != image.Rect(0, 0, MinimapWidth, MinimapHeight) {
		t.Fatalf("bounds = %v", img.Bounds())
	}
	if c := img.RGBAAt(100, 100); c != minimapBG {
		t.Fatalf("empty map pixel = %v", c)
	}
}

func TestMinimapPlacementsAndRing(t *testing.T) {
	snap := placement.Snapshot{Sources: []placement.Source{
		{URL: "a", Placements: []placement.Rect{placement.R(0, 0, 100, 100)}},
	}}
	img := Minimap(snap, MinimapOptions{Size: 60})
	if c := img.RGBAAt(10, 10); c != minimapPlace {
		t.Fatalf("placement pixel = %v", c)
	}
	if c := img.RGBAAt(210, 10); c != minimapBG {
		t.Fatalf("outside pixel = %v", c)
	}
	// view center (30,30) scaled by k=2, ring radius 20*2
	if c := img.RGBAAt(100, 60); c.G <= c.R {
		t.Fatalf("ring pixel = %v", c)
	}
	if c := img.RGBAAt(60, 60); c != minimapPlace {
		t.Fatalf("ring center pixel = %v", c)
	}
}

func TestInfoLines(t *testing.T) {
	lines := InfoLines(974, 999.5, nil)
	if lines[0] != "View: x= 974 y= 999.5" {
		t.Fatalf("view line = %q", lines[0])
	}
	if lines[1] != "Selected: x= NaN y= NaN" {
		t.Fatalf("selection line = %q", lines[1])
	}
	r := placement.R(1, 2, 3, 4)
	lines = InfoLines(0, 0, &r)
	if lines[1] != "Selected: x= 1 y= 2" || lines[2] != "          w= 3 h= 4" {
		t.Fatalf("lines = %q", lines)
	}
}

func TestInfoLabelDrawsText(t *testing.T) {
	img := InfoLabel([]string{"View: x= 0 y= 0"})
	lit := 0
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if img.RGBAAt(x, y).R > 0x80 {
				lit++
			}
		}
	}
	if lit == 0 {
		t.Fatalf("no text pixels drawn")
	}
}

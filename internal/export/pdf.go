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
	"fmt"
	"image"
	"image/png"

	"github.com/jung-kurt/gofpdf"

	applog "littleplanet/internal/log"
)

// PDFOptions controls the single-page PDF export. Units are points; one
// image pixel becomes one point.
type PDFOptions struct {
	Title   string
	Caption []string
	Margin  float64
}

// WritePDF places img on a page sized to fit it plus margins and an optional
// caption block below it.
func WritePDF(path string, img image.Image, opt PDFOptions) error {
	if img == nil {
		return fmt.Errorf("export pdf %s: nil image", path)
	}
	if opt.Margin <= 0 {
		opt.Margin = 24
	}
	const lineH = 14.0
	b := img.Bounds()
	imgW, imgH := float64(b.Dx()), float64(b.Dy())
	pageW := imgW + 2*opt.Margin
	pageH := imgH + 2*opt.Margin
	if len(opt.Caption) > 0 {
		pageH += lineH*float64(len(opt.Caption)) + lineH/2
	}

	var raw bytes.Buffer
	if err := png.Encode(&raw, img); err != nil {
		return fmt.Errorf("encode page image: %w", err)
	}

	size := gofpdf.SizeType{Wd: pageW, Ht: pageH}
	pdf := gofpdf.NewCustom(&gofpdf.InitType{UnitStr: "pt", Size: size})
	if opt.Title != "" {
		pdf.SetTitle(opt.Title, true)
	}
	pdf.SetCreator("littleplanet", false)
	pdf.SetMargins(0, 0, 0)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPageFormat("P", size)

	imgOpt := gofpdf.ImageOptions{ImageType: "PNG"}
	pdf.RegisterImageOptionsReader("frame", imgOpt, &raw)
	pdf.ImageOptions("frame", opt.Margin, opt.Margin, imgW, imgH, false, imgOpt, 0, "")

	if len(opt.Caption) > 0 {
		pdf.SetFont("Helvetica", "", 11)
		pdf.SetTextColor(40, 40, 40)
		y := opt.Margin + imgH + lineH
		for _, line := range opt.Caption {
			pdf.Text(opt.Margin, y, line)
			y += lineH
		}
	}
	if err := pdf.Error(); err != nil {
		return fmt.Errorf("build pdf: %w", err)
	}
	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return fmt.Errorf("render pdf: %w", err)
	}
	if err := writeOut(path, out.Bytes()); err != nil {
		return err
	}
	applog.WithComponent("export").Info("pdf written", "path", path, "bytes", out.Len())
	return nil
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package export writes lens frames, raster windows and the navigation
// mini-map to files.
package export

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	applog "littleplanet/internal/log"
	"littleplanet/internal/storage"
)

// WritePNG encodes img and atomically replaces path with it.
func WritePNG(path string, img image.Image) error {
	if img == nil {
		return fmt.Errorf("export png %s: nil image", path)
	}
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return fmt.Errorf("encode png: %w", err)
	}
	if err := writeOut(path, buf.Bytes()); err != nil {
		return err
	}
	applog.WithComponent("export").Info("png written", "path", path, "bytes", buf.Len())
	return nil
}

func writeOut(path string, data []byte) error {
	if err := storage.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

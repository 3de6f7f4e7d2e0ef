//go:build fyne && cgo

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package ui

import (
	"testing"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/test"

	"littleplanet/internal/config"
	"littleplanet/internal/placement"
	"littleplanet/internal/session"
)

func TestLensCanvasPans(t *testing.T) {
	a := test.NewApp()
	defer a.Quit()

	cfg := config.Defaults()
	cfg.Canvas.Size = 256
	cfg.Viewport = config.ViewportConfig{Width: 64, Height: 64}
	sess, err := session.New(placement.Snapshot{}, session.Options{Config: cfg})
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	defer sess.Close()

	lc := newLensCanvas(sess, func(fn func()) { fn() })
	lc.Resize(fyne.NewSize(64, 64))
	lc.MouseDown(&desktop.MouseEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(32, 32)}, Button: desktop.MouseButtonPrimary})
	lc.Dragged(&fyne.DragEvent{PointEvent: fyne.PointEvent{Position: fyne.NewPos(22, 32)}})
	lc.DragEnd()

	v := sess.View().Read()
	if v.OffsetX != 10 || v.OffsetY != 0 {
		t.Fatalf("offset = (%v,%v)", v.OffsetX, v.OffsetY)
	}
}

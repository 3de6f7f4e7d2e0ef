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
	"context"
	"fmt"
	"image"
	"log/slog"
	"strconv"
	"strings"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"littleplanet/internal/crash"
	"littleplanet/internal/frame"
	"littleplanet/internal/interact"
	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/session"
	"littleplanet/internal/token"
)

// Run opens the viewer window and blocks until it is closed. All session
// work happens on a frame loop goroutine; widgets are updated through
// fyne.Do.
func Run(opts Options) error {
	l := applog.WithComponent("ui")
	cfg := opts.Config

	addr := opts.Address
	if addr == "" {
		addr = cfg.Share.BaseURL
	}
	loc, err := token.ParseLocation(addr)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	loop := frame.NewLoop(cfg.Render.FrameInterval())
	post := func(fn func()) { loop.Post(ctx, fn) }

	sess, err := session.New(placement.Snapshot{}, session.Options{
		Config:    cfg,
		Scheduler: loop,
		Post:      post,
		Fetcher:   session.NewFetcher(cfg.Images),
		Disk:      opts.Disk,
	})
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.Close()
	sess.Load(loc)
	defer crash.Recover("", func() string {
		tok, _ := sess.Token()
		return tok
	})

	go func() {
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			l.Error("frame loop stopped", slog.Any("err", err))
		}
	}()

	a := app.NewWithID("littleplanet")
	w := a.NewWindow("Little Planet")
	status := widget.NewLabel("Ready")
	lensView := newLensCanvas(sess, post)

	info := widget.NewLabel(strings.Join(sess.Info(), "\n"))
	info.TextStyle = fyne.TextStyle{Monospace: true}
	mini := canvas.NewImageFromImage(sess.Minimap())
	mini.FillMode = canvas.ImageFillContain
	mini.SetMinSize(fyne.NewSize(222, 200))

	sess.OnFrame(func(f *image.RGBA) {
		lines := sess.Info()
		m := sess.Minimap()
		fyne.Do(func() {
			lensView.show(f)
			info.SetText(strings.Join(lines, "\n"))
			mini.Image = m
			mini.Refresh()
		})
	})

	urlEntry := widget.NewEntry()
	urlEntry.SetPlaceHolder("image URL or path")
	wEntry := widget.NewEntry()
	wEntry.SetText("256")
	hEntry := widget.NewEntry()
	hEntry.SetText("256")
	addBtn := widget.NewButton("Add", func() {
		url := strings.TrimSpace(urlEntry.Text)
		pw, errW := strconv.Atoi(strings.TrimSpace(wEntry.Text))
		ph, errH := strconv.Atoi(strings.TrimSpace(hEntry.Text))
		if url == "" || errW != nil || errH != nil || pw < cfg.Canvas.MinEdge || ph < cfg.Canvas.MinEdge {
			status.SetText(fmt.Sprintf("Need a URL and a size of at least %d", cfg.Canvas.MinEdge))
			return
		}
		post(func() {
			sess.AddSource(url)
			sess.AddPlacement(url, pw, ph)
		})
	})
	deleteSelected := func() {
		post(func() {
			if ref, _, ok := sess.SelectedPlacement(); ok {
				sess.DeletePlacement(ref)
			}
		})
	}
	share := func(released bool) {
		post(func() {
			_, err := sess.Save(loc, released)
			addr := loc.String()
			fyne.Do(func() {
				if err != nil {
					status.SetText("Save failed: " + err.Error())
					return
				}
				w.Clipboard().SetContent(addr)
				status.SetText("Address copied to clipboard")
			})
		})
	}
	released := widget.NewCheck("Released", func(on bool) { post(func() { sess.SetReleased(on) }) })
	released.SetChecked(sess.Store().Read().Released)

	side := container.NewVBox(
		widget.NewLabelWithStyle("Images", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		urlEntry,
		container.NewGridWithColumns(3, wEntry, hEntry, addBtn),
		widget.NewButton("Delete selected", deleteSelected),
		widget.NewSeparator(),
		info,
		mini,
		released,
		container.NewGridWithColumns(3,
			widget.NewButton("R", func() { post(sess.ResetView) }),
			widget.NewButton("S", func() { share(false) }),
			widget.NewButton("E", func() { share(true) }),
		),
	)

	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		post(func() { sess.Undo() })
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyZ, Modifier: fyne.KeyModifierShortcutDefault | fyne.KeyModifierShift}, func(fyne.Shortcut) {
		post(func() { sess.Redo() })
	})
	w.Canvas().AddShortcut(&desktop.CustomShortcut{KeyName: fyne.KeyS, Modifier: fyne.KeyModifierShortcutDefault}, func(fyne.Shortcut) {
		share(false)
	})
	w.Canvas().SetOnTypedKey(func(ev *fyne.KeyEvent) {
		if ev.Name == fyne.KeyDelete {
			deleteSelected()
		}
	})

	w.SetContent(container.NewBorder(nil, status, nil, container.NewPadded(side), lensView))
	w.Resize(fyne.NewSize(float32(cfg.Viewport.Width+240), float32(cfg.Viewport.Height)))
	l.Info("viewer started", slog.String("address", addr))
	w.ShowAndRun()
	return nil
}

// lensCanvas shows the lens frames and turns mouse input into pointer
// events posted to the session loop.
type lensCanvas struct {
	widget.BaseWidget
	sess *session.Session
	post func(func())
	img  *canvas.Image
}

func newLensCanvas(sess *session.Session, post func(func())) *lensCanvas {
	lc := &lensCanvas{sess: sess, post: post}
	lc.img = canvas.NewImageFromImage(image.NewRGBA(image.Rect(0, 0, 1, 1)))
	lc.img.FillMode = canvas.ImageFillStretch
	lc.img.ScaleMode = canvas.ImageScalePixels
	lc.ExtendBaseWidget(lc)
	return lc
}

func (lc *lensCanvas) CreateRenderer() fyne.WidgetRenderer { return widget.NewSimpleRenderer(lc.img) }

func (lc *lensCanvas) MinSize() fyne.Size { return fyne.NewSize(200, 200) }

func (lc *lensCanvas) Resize(size fyne.Size) {
	lc.BaseWidget.Resize(size)
	w, h := int(size.Width), int(size.Height)
	if w <= 0 || h <= 0 {
		return
	}
	lc.post(func() {
		if err := lc.sess.Resize(w, h); err != nil {
			applog.WithComponent("ui").Warn("lens resize", slog.Any("err", err))
		}
	})
}

func (lc *lensCanvas) show(f *image.RGBA) {
	lc.img.Image = f
	lc.img.Refresh()
}

func pointerAt(pos fyne.Position, mod fyne.KeyModifier) interact.Pointer {
	return interact.Pointer{
		X:        float64(pos.X),
		Y:        float64(pos.Y),
		Modifier: mod&(fyne.KeyModifierControl|fyne.KeyModifierSuper) != 0,
	}
}

func (lc *lensCanvas) MouseDown(e *desktop.MouseEvent) {
	if e.Button != desktop.MouseButtonPrimary {
		return
	}
	p := pointerAt(e.Position, e.Modifier)
	lc.post(func() { lc.sess.PointerDown(p) })
}

func (lc *lensCanvas) MouseUp(*desktop.MouseEvent) { lc.post(lc.sess.PointerUp) }

func (lc *lensCanvas) Dragged(e *fyne.DragEvent) {
	p := pointerAt(e.Position, 0)
	lc.post(func() { lc.sess.PointerMove(p) })
}

func (lc *lensCanvas) DragEnd() { lc.post(lc.sess.PointerUp) }

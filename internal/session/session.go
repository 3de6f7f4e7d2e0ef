/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package session owns one arrangement being viewed or edited and wires the
// state objects, the compositor, the lens and the undo history together.
package session

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"sync"
	"time"

	"gonum.org/v1/gonum/spatial/r3"

	"littleplanet/internal/compositor"
	"littleplanet/internal/config"
	"littleplanet/internal/export"
	"littleplanet/internal/frame"
	"littleplanet/internal/imagecache"
	"littleplanet/internal/interact"
	"littleplanet/internal/lens"
	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/projection"
	"littleplanet/internal/storage"
	"littleplanet/internal/token"
	"littleplanet/internal/undo"
	"littleplanet/internal/view"
)

// Options configure a session. Scheduler drives redraw frames. Post runs a
// func on the goroutine that owns the session; without it, images arriving
// in the background are only drawn by the next ResolveImages or redraw.
type Options struct {
	Config    config.AppConfig
	Scheduler frame.Scheduler
	Post      func(fn func())
	Fetcher   imagecache.Fetcher
	Disk      *storage.BlobCache
	Now       func() time.Time
}

// Session is not safe for concurrent use except where noted; drive it from
// one goroutine and hand background results in through Options.Post.
type Session struct {
	cfg   config.AppConfig
	post  func(fn func())
	now   func() time.Time
	log   *slog.Logger
	sched frame.Scheduler

	store   *placement.Store
	view    *view.State
	images  *imagecache.Cache
	comp    *compositor.Compositor
	lens    *projection.Lens
	ctrl    *interact.Controller
	overlay *frame.Runner
	history *undo.Manager

	prevMu    sync.Mutex
	prev      placement.Snapshot
	restoring bool

	frameMu  sync.RWMutex
	frame    *image.RGBA
	onFrame  []func(*image.RGBA)
	cancels  []func()
	closeOne sync.Once
}

// New builds a session around initial.
func New(initial placement.Snapshot, opts Options) (*Session, error) {
	cfg := opts.Config
	if cfg.Canvas.Size <= 0 {
		cfg = config.Defaults()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = &frame.ManualScheduler{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	s := &Session{
		cfg:   cfg,
		post:  opts.Post,
		now:   opts.Now,
		log:   applog.WithComponent("session"),
		sched: opts.Scheduler,
		store: placement.NewStore(initial),
		view:  view.New(),
		prev:  initial,
		history: undo.NewManager(undo.Config{
			MaxDepth:    200,
			MinInterval: 400 * time.Millisecond,
		}),
	}

	l, err := projection.NewLens(cameraFor(cfg), projection.Viewport{
		Width:  float64(cfg.Viewport.Width),
		Height: float64(cfg.Viewport.Height),
	}, float64(cfg.Canvas.Size))
	if err != nil {
		return nil, fmt.Errorf("session lens: %w", err)
	}
	s.lens = l

	var src compositor.ImageSource
	if opts.Fetcher != nil {
		s.images = imagecache.New(imagecache.Options{
			Fetcher:     opts.Fetcher,
			Disk:        opts.Disk,
			Concurrency: cfg.Images.Concurrency,
			Timeout:     cfg.Images.FetchTimeout(),
			OnReady:     s.imageReady,
		})
		src = s.images
	}

	s.cancels = append(s.cancels,
		s.store.Subscribe(s.storeChanged),
	)
	s.comp = compositor.New(s.store, s.view, compositor.Options{
		Size:       cfg.Canvas.Size,
		Background: cfg.Canvas.BackgroundColor(),
		Scaler:     compositor.Scaler(cfg.Canvas.Filter),
		Images:     src,
		Scheduler:  opts.Scheduler,
	})
	s.ctrl = interact.New(s.store, s.view, s.lens, interact.Options{
		HandleRadius: cfg.Canvas.HandleRadius,
		MinEdge:      cfg.Canvas.MinEdge,
	})
	s.overlay = frame.NewRunner(opts.Scheduler, s.renderFrame)
	s.comp.OnInvalidate(func(uint64) { s.overlay.Request() })
	s.cancels = append(s.cancels,
		s.view.Subscribe(func(view.Snapshot) { s.overlay.Request() }),
	)
	s.log.Debug("session ready", slog.Int("sources", len(initial.Sources)), slog.Int("placements", initial.Count()))
	return s, nil
}

func cameraFor(cfg config.AppConfig) projection.Camera {
	cam := projection.DefaultCamera()
	if cfg.Camera.Distance > 0 {
		cam.Position = r3.Vec{Z: cfg.Camera.Distance}
	}
	if cfg.Camera.FOV > 0 {
		cam.FovY = cfg.Camera.FOV
	}
	return cam
}

// Close detaches subscriptions and stops image loading.
func (s *Session) Close() {
	s.closeOne.Do(func() {
		for _, c := range s.cancels {
			c()
		}
		s.comp.Close()
		if s.images != nil {
			s.images.Close()
		}
	})
}

// storeChanged keeps the selection valid, records undo state and refreshes
// the overlay.
func (s *Session) storeChanged(next placement.Snapshot) {
	s.view.Reconcile(next)

	s.prevMu.Lock()
	prev, restoring := s.prev, s.restoring
	s.prev = next
	s.prevMu.Unlock()
	if !restoring {
		if blob, err := token.Encode(prev); err == nil {
			s.history.Record(undo.Entry{Blob: []byte(blob), TS: s.now()})
		} else {
			s.log.Warn("undo state not recorded", slog.Any("err", err))
		}
	}
	s.overlay.Request()
}

// imageReady runs on a loader goroutine.
func (s *Session) imageReady(url string) {
	if s.post == nil {
		return
	}
	s.post(func() {
		if s.comp != nil {
			s.comp.Request()
		}
	})
}

func (s *Session) Store() *placement.Store { return s.store }
func (s *Session) View() *view.State { return s.view }
func (s *Session) Compositor() *compositor.Compositor { return s.comp }
func (s *Session) Controller() *interact.Controller { return s.ctrl }
func (s *Session) Lens() *projection.Lens { return s.lens }
func (s *Session) Config() config.AppConfig { return s.cfg }
func (s *Session) Scheduler() frame.Scheduler { return s.sched }
func (s *Session) Images() *imagecache.Cache { return s.images }
func (s *Session) OnFrame(fn func(frame *image.RGBA)) { s.onFrame = append(s.onFrame, fn) }

// SelectedPlacement resolves the selection against the current arrangement.
func (s *Session) SelectedPlacement() (placement.Ref, placement.Rect, bool) {
	return s.view.Read().SelectedRect(s.store.Read())
}

// AddSource registers an image URL.
func (s *Session) AddSource(url string) { s.store.AddSource(url) }

// ReplaceSource swaps old for url, keeping old's placements.
func (s *Session) ReplaceSource(url, old string) { s.store.ReplaceSource(url, old) }

// AddPlacement places a w x h copy of url centred in the current view and
// selects it.
func (s *Session) AddPlacement(url string, w, h int) (placement.Ref, bool) {
	v := s.view.Read()
	half := float64(s.cfg.Canvas.Size) / 2
	ref, ok := s.store.AddPlacement(url, w, h, v.OffsetX+half, v.OffsetY+half)
	if ok {
		s.view.Select(ref)
	}
	return ref, ok
}

// DeletePlacement removes one placement.
func (s *Session) DeletePlacement(ref placement.Ref) { s.store.DeletePlacement(ref) }

// SetPlacement overwrites one placement.
func (s *Session) SetPlacement(ref placement.Ref, r placement.Rect) { s.store.SetPlacement(ref, r) }

// SetOffset moves the view.
func (s *Session) SetOffset(x, y float64) { s.view.SetOffset(x, y) }

// ResetView moves the view back to the origin.
func (s *Session) ResetView() { s.view.Reset() }

// Select marks one placement.
func (s *Session) Select(ref placement.Ref) { s.view.Select(ref) }

// ClearSelection drops the selection.
func (s *Session) ClearSelection() { s.view.ClearSelection() }

// SetReleased switches between editing and the read-only released view.
func (s *Session) SetReleased(released bool) { s.store.SetReleased(released) }

// PointerDown, PointerMove and PointerUp feed the interaction controller.
func (s *Session) PointerDown(p interact.Pointer) { s.ctrl.PointerDown(p) }
func (s *Session) PointerMove(p interact.Pointer) { s.ctrl.PointerMove(p) }
func (s *Session) PointerUp() { s.ctrl.PointerUp() }

// Resize rebuilds the lens for a new viewport.
func (s *Session) Resize(width, height int) error {
	l, err := projection.NewLens(cameraFor(s.cfg), projection.Viewport{Width: float64(width), Height: float64(height)}, float64(s.cfg.Canvas.Size))
	if err != nil {
		return fmt.Errorf("resize lens: %w", err)
	}
	s.lens = l
	s.ctrl.SetMapper(l)
	s.overlay.Request()
	return nil
}

// Save writes the arrangement token with the given release flag into loc
// and returns the token.
func (s *Session) Save(loc token.Location, released bool) (string, error) {
	tok, err := token.Save(loc, s.cfg.Share.ParamKey, s.store.Read(), released)
	if err != nil {
		return "", fmt.Errorf("save arrangement: %w", err)
	}
	s.log.Info("arrangement saved", slog.Bool("released", released), slog.Int("bytes", len(tok)))
	return tok, nil
}

// Load replaces the arrangement with the one stored in loc and forgets the
// undo history.
func (s *Session) Load(loc token.Location) {
	snap := token.Load(loc, s.cfg.Share.ParamKey)
	s.restore(snap)
	s.history.Clear()
}

// Token encodes the current arrangement.
func (s *Session) Token() (string, error) { return token.Encode(s.store.Read()) }

func (s *Session) restore(snap placement.Snapshot) {
	s.prevMu.Lock()
	s.restoring = true
	s.prevMu.Unlock()
	s.store.Replace(snap)
	s.prevMu.Lock()
	s.restoring = false
	s.prev = s.store.Read()
	s.prevMu.Unlock()
}

// Undo steps back one edit burst.
func (s *Session) Undo() bool {
	return s.step(s.history.Undo)
}

// Redo reapplies the last undone step.
func (s *Session) Redo() bool {
	return s.step(s.history.Redo)
}

func (s *Session) step(move func(current []byte) ([]byte, bool)) bool {
	cur, err := token.Encode(s.store.Read())
	if err != nil {
		s.log.Warn("undo unavailable", slog.Any("err", err))
		return false
	}
	blob, ok := move([]byte(cur))
	if !ok {
		return false
	}
	snap, err := token.Decode(string(blob))
	if err != nil {
		s.log.Error("undo state unreadable", slog.Any("err", err))
		return false
	}
	s.restore(snap)
	return true
}

// CanUndo and CanRedo report whether a step is available.
func (s *Session) CanUndo() bool { return s.history.CanUndo() }
func (s *Session) CanRedo() bool { return s.history.CanRedo() }

// ResolveImages loads every visible image, then repaints the raster at once.
// Without a fetcher only the repaint happens.
func (s *Session) ResolveImages(ctx context.Context) error {
	var err error
	if s.images != nil {
		err = s.images.Resolve(ctx, s.comp.Visible())
	}
	s.comp.Redraw()
	return err
}

// Render draws the lens view of the current raster surface with the
// selection overlay.
func (s *Session) Render() *image.RGBA {
	scene := lens.Scene{Surface: s.comp.Snapshot()}
	snap := s.store.Read()
	v := s.view.Read()
	if _, r, ok := v.SelectedRect(snap); ok && !snap.Released {
		r = r.InWindow(v.OffsetX, v.OffsetY)
		scene.Highlight = &r
		for _, h := range s.ctrl.Handles() {
			scene.Handles = append(scene.Handles, h.At)
		}
	}
	return lens.Render(s.lens, scene, lens.Options{Shadow: s.cfg.Render.Shadow})
}

// Raster returns a copy of the raster surface.
func (s *Session) Raster() *image.RGBA { return s.comp.Snapshot() }

// Minimap draws the navigation map for the current arrangement and view.
func (s *Session) Minimap() *image.RGBA {
	v := s.view.Read()
	return export.Minimap(s.store.Read(), export.MinimapOptions{
		OffsetX: v.OffsetX,
		OffsetY: v.OffsetY,
		Size:    float64(s.cfg.Canvas.Size),
	})
}

// Info returns the view and selection label lines.
func (s *Session) Info() []string {
	v := s.view.Read()
	if _, r, ok := s.SelectedPlacement(); ok {
		return export.InfoLines(v.OffsetX, v.OffsetY, &r)
	}
	return export.InfoLines(v.OffsetX, v.OffsetY, nil)
}

// Frame returns the last overlay frame, if one has been rendered.
func (s *Session) Frame() *image.RGBA {
	s.frameMu.RLock()
	defer s.frameMu.RUnlock()
	return s.frame
}

func (s *Session) renderFrame() {
	f := s.Render()
	s.frameMu.Lock()
	s.frame = f
	s.frameMu.Unlock()
	for _, fn := range s.onFrame {
		fn(f)
	}
}

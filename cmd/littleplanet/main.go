/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"littleplanet/internal/config"
	"littleplanet/internal/crash"
	"littleplanet/internal/export"
	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
	"littleplanet/internal/session"
	"littleplanet/internal/storage"
	"littleplanet/internal/telemetry"
	"littleplanet/internal/token"
	"littleplanet/internal/ui"
	"littleplanet/internal/version"
)

func usage(w io.Writer) {
	fmt.Fprintln(w, "Little Planet: fisheye canvas of placed images")
	fmt.Fprintf(w, "Version: %s\n", version.String())
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  littleplanet version                          Show version")
	fmt.Fprintln(w, "  littleplanet inspect <addr>                   List sources and placements stored in an address")
	fmt.Fprintln(w, "  littleplanet add [view] <addr> <image> <w> <h> Place an image in the view center, print the new address")
	fmt.Fprintln(w, "  littleplanet raster [view] <addr> <out.png>   Write the raster window")
	fmt.Fprintln(w, "  littleplanet render [view] <addr> <out.png>   Write the lens view")
	fmt.Fprintln(w, "  littleplanet pdf [view] <addr> <out.pdf>      Write the lens view as a PDF page")
	fmt.Fprintln(w, "  littleplanet minimap [view] <addr> <out.png>  Write the navigation map")
	fmt.Fprintln(w, "  littleplanet auth <host> [token]              Store (or clear) a bearer token for an image host")
	fmt.Fprintln(w, "  littleplanet config [--init]                  Print the effective configuration")
	fmt.Fprintln(w, "  littleplanet ui [addr]                        Launch the viewer (build with -tags fyne)")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "View flags: --x <n> --y <n> raster offset of the window, --release mark the saved address released")
}

// cli carries what every command needs.
type cli struct {
	cfg    config.AppConfig
	out    io.Writer
	errOut io.Writer
	log    *slog.Logger
	sess   *session.Session
	disk   *storage.BlobCache
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) (code int) {
	applog.Init(applog.FromEnv())
	c := &cli{out: stdout, errOut: stderr, log: applog.WithComponent("cli")}
	defer crash.Recover("", c.token)

	cfg, err := config.Load()
	if err != nil {
		c.log.Warn("config unreadable, using defaults", slog.Any("err", err))
		cfg = config.Defaults()
	}
	c.cfg = cfg
	applog.Init(applog.Options{Level: cfg.Logging.Level, Format: cfg.Logging.Format, AddSource: cfg.Logging.Source, File: cfg.Logging.File})
	c.log = applog.WithComponent("cli")
	defer func() {
		if c.sess != nil {
			c.sess.Close()
		}
		if c.disk != nil {
			_ = c.disk.Close()
		}
	}()

	if len(args) == 0 {
		usage(stdout)
		return 0
	}
	c.log.Debug("start", slog.String("cmd", args[0]), slog.Int("args", len(args)))
	telemetry.Default().Event("command", map[string]any{"name": args[0]})
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		telemetry.Default().Flush(ctx)
		cancel()
	}()

	switch args[0] {
	case "version", "--version", "-v":
		fmt.Fprintln(stdout, version.String())
		return 0
	case "inspect":
		return c.inspect(args[1:])
	case "add":
		return c.add(args[1:])
	case "raster", "render", "pdf", "minimap":
		return c.write(args[0], args[1:])
	case "auth":
		return c.auth(args[1:])
	case "config":
		return c.config(args[1:])
	case "ui":
		var addr string
		if len(args) > 1 {
			addr = args[1]
		}
		return c.ui(addr)
	case "help", "-h", "--help":
		usage(stdout)
		return 0
	}
	fmt.Fprintf(stderr, "unknown command %q\n", args[0])
	usage(stderr)
	return 2
}

// token snapshots the open arrangement for crash reports.
func (c *cli) token() string {
	if c.sess == nil {
		return ""
	}
	tok, _ := c.sess.Token()
	return tok
}

func (c *cli) fail(err error) int {
	c.log.Error("command failed", slog.Any("err", err))
	fmt.Fprintln(c.errOut, "Error:", err)
	return 1
}

type viewFlags struct {
	x, y    float64
	release bool
}

func (c *cli) parse(name string, args []string, need int) (viewFlags, []string, bool) {
	var vf viewFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	fs.Float64Var(&vf.x, "x", 0, "raster x of the window's top-left corner")
	fs.Float64Var(&vf.y, "y", 0, "raster y of the window's top-left corner")
	fs.BoolVar(&vf.release, "release", false, "mark the saved address released")
	if err := fs.Parse(args); err != nil {
		return vf, nil, false
	}
	if fs.NArg() < need {
		fmt.Fprintf(c.errOut, "%s requires %d argument(s)\n", name, need)
		usage(c.errOut)
		return vf, nil, false
	}
	return vf, fs.Args(), true
}

// open loads the arrangement of addr into a new session with the view
// placed at vf.
func (c *cli) open(addr string, vf viewFlags, withImages bool) (*token.URLLocation, error) {
	loc, err := token.ParseLocation(addr)
	if err != nil {
		return nil, err
	}
	opts := session.Options{Config: c.cfg}
	if withImages {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		disk, err := session.OpenDisk(ctx, c.cfg.Images)
		if err != nil {
			c.log.Warn("image disk cache unavailable", slog.Any("err", err))
		}
		c.disk, opts.Disk = disk, disk
		opts.Fetcher = session.NewFetcher(c.cfg.Images)
	}
	sess, err := session.New(placement.Snapshot{}, opts)
	if err != nil {
		return nil, err
	}
	c.sess = sess
	sess.Load(loc)
	sess.SetOffset(vf.x, vf.y)
	return loc, nil
}

func (c *cli) inspect(args []string) int {
	_, rest, ok := c.parse("inspect", args, 1)
	if !ok {
		return 2
	}
	loc, err := token.ParseLocation(rest[0])
	if err != nil {
		return c.fail(err)
	}
	snap := token.Load(loc, c.cfg.Share.ParamKey)
	fmt.Fprintf(c.out, "Released: %v\n", snap.Released)
	fmt.Fprintf(c.out, "Sources: %d  Placements: %d\n", len(snap.Sources), snap.Count())
	for _, src := range snap.Sources {
		fmt.Fprintf(c.out, "  %s\n", src.URL)
		for i, r := range src.Placements {
			fmt.Fprintf(c.out, "    [%d] x=%d y=%d w=%d h=%d\n", i, r.X, r.Y, r.W, r.H)
		}
	}
	if b, ok := snap.Bounds(); ok {
		fmt.Fprintf(c.out, "Bounds: x=%d y=%d w=%d h=%d\n", b.X, b.Y, b.W, b.H)
	}
	return 0
}

func (c *cli) add(args []string) int {
	vf, rest, ok := c.parse("add", args, 4)
	if !ok {
		return 2
	}
	w, errW := strconv.Atoi(rest[2])
	h, errH := strconv.Atoi(rest[3])
	if errW != nil || errH != nil || w <= 0 || h <= 0 {
		fmt.Fprintln(c.errOut, "add: width and height must be positive integers")
		return 2
	}
	loc, err := c.open(rest[0], vf, false)
	if err != nil {
		return c.fail(err)
	}
	c.sess.AddSource(rest[1])
	if _, ok := c.sess.AddPlacement(rest[1], w, h); !ok {
		return c.fail(fmt.Errorf("could not place %s", rest[1]))
	}
	if _, err := c.sess.Save(loc, vf.release); err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.out, loc.String())
	return 0
}

func (c *cli) write(kind string, args []string) int {
	vf, rest, ok := c.parse(kind, args, 2)
	if !ok {
		return 2
	}
	addr, out := rest[0], rest[1]
	withImages := kind != "minimap"
	if _, err := c.open(addr, vf, withImages); err != nil {
		return c.fail(err)
	}
	if withImages {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		err := c.sess.ResolveImages(ctx)
		cancel()
		if err != nil {
			c.log.Warn("some images are missing", slog.Any("err", err))
		}
	}
	var err error
	switch kind {
	case "raster":
		err = export.WritePNG(out, c.sess.Raster())
	case "render":
		err = export.WritePNG(out, c.sess.Render())
	case "pdf":
		err = export.WritePDF(out, c.sess.Render(), export.PDFOptions{Title: "Little Planet", Caption: c.sess.Info()})
	case "minimap":
		err = export.WritePNG(out, c.sess.Minimap())
	}
	if err != nil {
		return c.fail(err)
	}
	fmt.Fprintln(c.out, "Wrote", out)
	return 0
}

func (c *cli) auth(args []string) int {
	if len(args) < 1 {
		fmt.Fprintln(c.errOut, "auth requires <host>")
		return 2
	}
	var tok string
	if len(args) > 1 {
		tok = args[1]
	}
	if err := config.SetImageToken(args[0], tok); err != nil {
		return c.fail(err)
	}
	if tok == "" {
		fmt.Fprintln(c.out, "Cleared token for", args[0])
	} else {
		fmt.Fprintln(c.out, "Stored token for", args[0])
	}
	return 0
}

func (c *cli) config(args []string) int {
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(c.errOut)
	initFile := fs.Bool("init", false, "write the effective configuration to the config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *initFile {
		if err := config.Save(c.cfg); err != nil {
			return c.fail(err)
		}
		if p, err := config.ConfigPath(); err == nil {
			fmt.Fprintln(c.out, "# written to", p)
		}
	}
	b, err := yaml.Marshal(c.cfg)
	if err != nil {
		return c.fail(err)
	}
	_, _ = c.out.Write(b)
	return 0
}

func (c *cli) ui(addr string) int {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	disk, err := session.OpenDisk(ctx, c.cfg.Images)
	cancel()
	if err != nil {
		c.log.Warn("image disk cache unavailable", slog.Any("err", err))
	}
	c.disk = disk
	if err := ui.Run(ui.Options{Config: c.cfg, Address: addr, Disk: disk}); err != nil {
		return c.fail(err)
	}
	return 0
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package config loads the user configuration: a YAML file in the per-user
// config directory, overridden by LPC_* environment variables. Credentials for
// private image hosts live in the OS keychain, never in the file.
package config

import (
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// CurrentVersion is written to config_version; bump on incompatible layout changes.
const CurrentVersion = 1

type CanvasConfig struct {
	Size         int     `yaml:"size" env:"LPC_CANVAS_SIZE"`
	Background   string  `yaml:"background" env:"LPC_CANVAS_BACKGROUND"`
	MinEdge      int     `yaml:"min_edge" env:"LPC_CANVAS_MIN_EDGE"`
	HandleRadius float64 `yaml:"handle_radius" env:"LPC_CANVAS_HANDLE_RADIUS"`
	Filter       string  `yaml:"filter" env:"LPC_CANVAS_FILTER"` // nearest | approx | bilinear | catmullrom
}

type CameraConfig struct {
	Distance float64 `yaml:"distance" env:"LPC_CAMERA_DISTANCE"`
	FOV      float64 `yaml:"fov" env:"LPC_CAMERA_FOV"` // vertical, degrees
}

type ViewportConfig struct {
	Width  int `yaml:"width" env:"LPC_VIEWPORT_WIDTH"`
	Height int `yaml:"height" env:"LPC_VIEWPORT_HEIGHT"`
}

type RenderConfig struct {
	FPS    int     `yaml:"fps" env:"LPC_RENDER_FPS"`
	Shadow float64 `yaml:"shadow" env:"LPC_RENDER_SHADOW"`
}

type ImagesConfig struct {
	CacheDir       string `yaml:"cache_dir" env:"LPC_IMAGES_CACHE_DIR"`
	CacheMaxBytes  int64  `yaml:"cache_max_bytes" env:"LPC_IMAGES_CACHE_MAX_BYTES"`
	FetchTimeoutMs int    `yaml:"fetch_timeout_ms" env:"LPC_IMAGES_FETCH_TIMEOUT_MS"`
	Concurrency    int    `yaml:"concurrency" env:"LPC_IMAGES_CONCURRENCY"`
	UserAgent      string `yaml:"user_agent" env:"LPC_IMAGES_USER_AGENT"`
	NoDiskCache    bool   `yaml:"no_disk_cache" env:"LPC_IMAGES_NO_DISK_CACHE"`
}

type ShareConfig struct {
	BaseURL  string `yaml:"base_url" env:"LPC_SHARE_BASE_URL"`
	ParamKey string `yaml:"param_key" env:"LPC_SHARE_PARAM_KEY"`
}

type LoggingConfig struct {
	Level  string `yaml:"level" env:"LPC_LOG_LEVEL"`
	Format string `yaml:"format" env:"LPC_LOG_FORMAT"`
	Source bool   `yaml:"source" env:"LPC_LOG_SOURCE"`
	File   string `yaml:"file" env:"LPC_LOG_FILE"`
}

// AppConfig is the persisted user configuration.
type AppConfig struct {
	ConfigVersion int            `yaml:"config_version"`
	Canvas        CanvasConfig   `yaml:"canvas"`
	Camera        CameraConfig   `yaml:"camera"`
	Viewport      ViewportConfig `yaml:"viewport"`
	Render        RenderConfig   `yaml:"render"`
	Images        ImagesConfig   `yaml:"images"`
	Share         ShareConfig    `yaml:"share"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// Defaults returns the application defaults.
func Defaults() AppConfig {
	return AppConfig{
		ConfigVersion: CurrentVersion,
		Canvas:        CanvasConfig{Size: 2048, Background: "#ffffff", MinEdge: 12, HandleRadius: 6, Filter: "bilinear"},
		Camera:        CameraConfig{Distance: 10, FOV: 7},
		Viewport:      ViewportConfig{Width: 800, Height: 800},
		Render:        RenderConfig{FPS: 60, Shadow: 0.6},
		Images: ImagesConfig{
			CacheMaxBytes:  256 << 20,
			FetchTimeoutMs: 15000,
			Concurrency:    4,
			UserAgent:      "littleplanet",
		},
		Share:   ShareConfig{BaseURL: "https://localhost/", ParamKey: "data"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
}

// ConfigDir returns the per-user directory holding config.yaml.
func ConfigDir() (string, error) {
	var base string
	switch runtime.GOOS {
	case "windows":
		base = os.Getenv("AppData")
		if base == "" {
			base = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
		base = filepath.Join(base, "LittlePlanet")
	case "darwin":
		base = filepath.Join(os.Getenv("HOME"), "Library", "Application Support", "LittlePlanet")
	default:
		if x := os.Getenv("XDG_CONFIG_HOME"); x != "" {
			base = filepath.Join(x, "littleplanet")
		} else {
			base = filepath.Join(os.Getenv("HOME"), ".config", "littleplanet")
		}
	}
	if base == "" {
		return "", errors.New("cannot resolve config directory")
	}
	return base, nil
}

// ConfigPath returns the per-user config file path.
func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.yaml"), nil
}

// Load reads the user config file (if present) over the defaults and applies
// environment overrides.
func Load() (AppConfig, error) {
	path, err := ConfigPath()
	if err != nil {
		return Defaults(), err
	}
	return LoadFrom(path)
}

// LoadFrom is Load with an explicit file path. A missing file is not an error.
func LoadFrom(path string) (AppConfig, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg AppConfig
		if err := yaml.Unmarshal(data, &fileCfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
		mergeInto(&cfg, &fileCfg)
	case !errors.Is(err, os.ErrNotExist):
		return cfg, fmt.Errorf("read %s: %w", path, err)
	}
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("env overrides: %w", err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes cfg to the per-user config file.
func Save(cfg AppConfig) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	return SaveTo(path, cfg)
}

// SaveTo writes cfg as YAML to path, creating parent directories.
func SaveTo(path string, cfg AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// mergeInto copies every non-zero leaf of src over dst. Booleans are copied
// unconditionally so a file can switch a default off.
func mergeInto(dst, src *AppConfig) {
	mergeValue(reflect.ValueOf(dst).Elem(), reflect.ValueOf(src).Elem())
}

func mergeValue(dst, src reflect.Value) {
	for i := 0; i < dst.NumField(); i++ {
		df, sf := dst.Field(i), src.Field(i)
		switch sf.Kind() {
		case reflect.Struct:
			mergeValue(df, sf)
		case reflect.Bool:
			df.SetBool(sf.Bool())
		case reflect.String:
			if s := strings.TrimSpace(sf.String()); s != "" {
				df.SetString(s)
			}
		default:
			if !sf.IsZero() {
				df.Set(sf)
			}
		}
	}
}

// normalize replaces values that would break the canvas with defaults.
func (c *AppConfig) normalize() {
	d := Defaults()
	if c.Canvas.Size <= 0 {
		c.Canvas.Size = d.Canvas.Size
	}
	if c.Canvas.MinEdge <= 0 {
		c.Canvas.MinEdge = d.Canvas.MinEdge
	}
	if c.Canvas.HandleRadius <= 0 {
		c.Canvas.HandleRadius = d.Canvas.HandleRadius
	}
	if c.Camera.FOV <= 0 || c.Camera.FOV >= 180 {
		c.Camera.FOV = d.Camera.FOV
	}
	if c.Camera.Distance <= 0 {
		c.Camera.Distance = d.Camera.Distance
	}
	if c.Viewport.Width <= 0 || c.Viewport.Height <= 0 {
		c.Viewport = d.Viewport
	}
	if c.Render.FPS <= 0 {
		c.Render.FPS = d.Render.FPS
	}
	if c.Render.Shadow < 0 || c.Render.Shadow > 1 {
		c.Render.Shadow = d.Render.Shadow
	}
	if c.Images.Concurrency <= 0 {
		c.Images.Concurrency = d.Images.Concurrency
	}
	if c.Share.ParamKey == "" {
		c.Share.ParamKey = d.Share.ParamKey
	}
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// FrameInterval is the time between two animation frames.
func (r RenderConfig) FrameInterval() time.Duration {
	if r.FPS <= 0 {
		return time.Second / 60
	}
	return time.Second / time.Duration(r.FPS)
}

// FetchTimeout is the per-image fetch timeout.
func (i ImagesConfig) FetchTimeout() time.Duration {
	if i.FetchTimeoutMs <= 0 {
		return time.Duration(Defaults().Images.FetchTimeoutMs) * time.Millisecond
	}
	return time.Duration(i.FetchTimeoutMs) * time.Millisecond
}

// BackgroundColor parses "#rrggbb" (or "#rgb"); anything else yields white.
func (c CanvasConfig) BackgroundColor() color.RGBA {
	white := color.RGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
	s := strings.TrimPrefix(strings.TrimSpace(c.Background), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return white
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return white
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
}

// EnvOverrideFor reports the environment variable currently overriding the
// dotted YAML key (for example "canvas.size"), if any.
func EnvOverrideFor(key string) (string, bool) {
	name, ok := envNames()[key]
	if !ok {
		return "", false
	}
	if _, set := os.LookupEnv(name); !set {
		return "", false
	}
	return name, true
}

// envNames maps dotted yaml keys to their env tags.
func envNames() map[string]string {
	out := map[string]string{}
	var walk func(t reflect.Type, prefix string)
	walk = func(t reflect.Type, prefix string) {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			key := prefix + strings.Split(f.Tag.Get("yaml"), ",")[0]
			if f.Type.Kind() == reflect.Struct {
				walk(f.Type, key+".")
				continue
			}
			if e := f.Tag.Get("env"); e != "" {
				out[key] = e
			}
		}
	}
	walk(reflect.TypeOf(AppConfig{}), "")
	return out
}

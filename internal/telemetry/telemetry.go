/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package telemetry sends opt-in anonymous usage events and crash reports.
// Nothing leaves the machine unless LPC_TELEMETRY_OPT_IN is set and an
// endpoint is configured.
package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"

	applog "littleplanet/internal/log"
	"littleplanet/internal/version"
)

// Config is read from LPC_TELEMETRY_* variables.
type Config struct {
	OptIn     bool          `env:"LPC_TELEMETRY_OPT_IN"`
	EventsURL string        `env:"LPC_TELEMETRY_URL"`
	CrashURL  string        `env:"LPC_CRASH_UPLOAD_URL"`
	Timeout   time.Duration `env:"LPC_TELEMETRY_TIMEOUT" envDefault:"1500ms"`
}

// FromEnv parses the telemetry variables; malformed values disable it.
func FromEnv() Config {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		applog.WithComponent("telemetry").Warn("telemetry env ignored", slog.Any("err", err))
		return Config{Timeout: 1500 * time.Millisecond}
	}
	return cfg
}

// Client posts events from a bounded queue on a background goroutine and
// drops them when the queue is full or the endpoint fails.
type Client struct {
	cfg  Config
	log  *slog.Logger
	http *http.Client
	q    chan []byte
	wg   sync.WaitGroup
	once sync.Once
	done chan struct{}
}

// New starts a client.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 1500 * time.Millisecond
	}
	c := &Client{
		cfg:  cfg,
		log:  applog.WithComponent("telemetry"),
		http: &http.Client{Timeout: cfg.Timeout},
		q:    make(chan []byte, 64),
		done: make(chan struct{}),
	}
	go c.loop()
	return c
}

var (
	defaultMu     sync.Mutex
	defaultClient *Client
)

// Default returns the process client, created from the environment on
// first use.
func Default() *Client {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultClient == nil {
		defaultClient = New(FromEnv())
	}
	return defaultClient
}

// SetDefault installs c as the process client.
func SetDefault(c *Client) {
	defaultMu.Lock()
	defaultClient = c
	defaultMu.Unlock()
}

// Enabled reports whether events will be sent.
func (c *Client) Enabled() bool { return c != nil && c.cfg.OptIn && c.cfg.EventsURL != "" }

// Event queues a named event. Props must not carry image URLs or other
// user content.
func (c *Client) Event(name string, props map[string]any) {
	if !c.Enabled() || name == "" {
		return
	}
	payload := map[string]any{
		"name":    name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
		"version": version.Version,
		"os":      runtime.GOOS,
		"arch":    runtime.GOARCH,
	}
	for k, v := range props {
		payload[k] = v
	}
	b, err := json.Marshal(payload)
	if err != nil {
		c.log.Debug("event dropped", slog.String("name", name), slog.Any("err", err))
		return
	}
	c.wg.Add(1)
	select {
	case c.q <- b:
	default:
		c.wg.Done()
	}
}

// Flush waits until queued events are sent or ctx ends.
func (c *Client) Flush(ctx context.Context) {
	if c == nil {
		return
	}
	idle := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(idle)
	}()
	select {
	case <-idle:
	case <-ctx.Done():
	}
}

// Close stops the sender.
func (c *Client) Close() { c.once.Do(func() { close(c.done) }) }

func (c *Client) loop() {
	for {
		select {
		case <-c.done:
			return
		case b := <-c.q:
			if err := c.post(context.Background(), c.cfg.EventsURL, "application/json", b); err != nil {
				c.log.Debug("event send failed", slog.Any("err", err))
			}
			c.wg.Done()
		}
	}
}

// UploadCrash posts a crash report synchronously; the process is about to
// exit so there is no queue.
func (c *Client) UploadCrash(ctx context.Context, report []byte) error {
	if c == nil || !c.cfg.OptIn || c.cfg.CrashURL == "" {
		return nil
	}
	return c.post(ctx, c.cfg.CrashURL, "text/plain; charset=utf-8", report)
}

func (c *Client) post(ctx context.Context, url, contentType string, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", "littleplanet/"+version.Version)
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("post %s: status %d", url, resp.StatusCode)
	}
	return nil
}

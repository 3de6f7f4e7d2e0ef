/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package imagecache

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MaxImageBytes caps a single fetched image.
const MaxImageBytes = 64 << 20

// Fetcher returns the encoded bytes of a source image.
type Fetcher interface {
	Fetch(ctx context.Context, src string) ([]byte, error)
}

// TokenFunc returns a bearer token for a host, or "" for none.
type TokenFunc func(host string) (string, error)

// HTTPFetcher fetches http(s) URLs and reads file:// URLs and plain paths
// from disk.
type HTTPFetcher struct {
	Client    *http.Client
	UserAgent string
	Token     TokenFunc
}

func (f *HTTPFetcher) Fetch(ctx context.Context, src string) ([]byte, error) {
	u, err := url.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("parse %q: %w", src, err)
	}
	switch u.Scheme {
	case "http", "https":
		return f.fetchHTTP(ctx, u)
	case "file":
		return readLimited(filepath.FromSlash(u.Path))
	case "":
		return readLimited(src)
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (f *HTTPFetcher) fetchHTTP(ctx context.Context, u *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	if f.UserAgent != "" {
		req.Header.Set("User-Agent", f.UserAgent)
	}
	req.Header.Set("Accept", "image/*")
	if f.Token != nil {
		tok, err := f.Token(u.Hostname())
		if err != nil {
			return nil, fmt.Errorf("token for %s: %w", u.Hostname(), err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", u.Redacted(), resp.Status)
	}
	return readAllLimited(resp.Body)
}

func readLimited(path string) ([]byte, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	return readAllLimited(fh)
}

func readAllLimited(r io.Reader) ([]byte, error) {
	b, err := io.ReadAll(io.LimitReader(r, MaxImageBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxImageBytes {
		return nil, fmt.Errorf("image larger than %d bytes", MaxImageBytes)
	}
	return b, nil
}

// Decode decodes any registered format: png, jpeg, gif, webp, bmp, tiff.
func Decode(b []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(b))
	if err != nil {
		return nil, "", fmt.Errorf("decode image: %w", err)
	}
	return img, format, nil
}

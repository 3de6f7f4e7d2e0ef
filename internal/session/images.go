/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package session

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"littleplanet/internal/config"
	"littleplanet/internal/imagecache"
	"littleplanet/internal/storage"
)

// NewFetcher builds the image fetcher described by cfg. Bearer tokens for
// private hosts come from the OS keychain.
func NewFetcher(cfg config.ImagesConfig) *imagecache.HTTPFetcher {
	return &imagecache.HTTPFetcher{
		Client:    &http.Client{Timeout: cfg.FetchTimeout()},
		UserAgent: cfg.UserAgent,
		Token:     config.ImageToken,
	}
}

// CacheDir is where the on-disk image cache lives.
func CacheDir(cfg config.ImagesConfig) (string, error) {
	if cfg.CacheDir != "" {
		return cfg.CacheDir, nil
	}
	base, err := os.UserCacheDir()
	if err != nil {
		return "", fmt.Errorf("user cache dir: %w", err)
	}
	return filepath.Join(base, "littleplanet"), nil
}

// OpenDisk opens the on-disk image cache, or returns nil when it is
// disabled.
func OpenDisk(ctx context.Context, cfg config.ImagesConfig) (*storage.BlobCache, error) {
	if cfg.NoDiskCache {
		return nil, nil
	}
	dir, err := CacheDir(cfg)
	if err != nil {
		return nil, err
	}
	return storage.OpenBlobCache(ctx, dir, cfg.CacheMaxBytes)
}

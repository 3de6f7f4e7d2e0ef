/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package ui is the desktop viewer and editor. The real window needs the
// fyne build tag and cgo; other builds get a stub that explains how to
// rebuild.
package ui

import (
	"littleplanet/internal/config"
	"littleplanet/internal/storage"
)

// Options start the viewer. Address is a share address whose fragment
// carries the arrangement; empty starts from the configured base address.
type Options struct {
	Config  config.AppConfig
	Address string
	Disk    *storage.BlobCache
}

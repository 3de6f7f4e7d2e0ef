/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package version carries the build version of littleplanet.
package version

import "runtime"

// Version is overridden at build time:
//
//	go build -ldflags "-X littleplanet/internal/version.Version=1.2.0"
var Version = "0.3.0-dev"

// String returns the version together with the toolchain it was built with.
func String() string {
	return "littleplanet " + Version + " (" + runtime.Version() + ")"
}

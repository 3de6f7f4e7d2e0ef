/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package config

import (
	"errors"
	"strings"

	"github.com/zalando/go-keyring"
)

const keyringService = "LittlePlanet"

// ImageToken returns the bearer token stored for an image host. A host
// without a stored token yields "" and no error.
func ImageToken(host string) (string, error) {
	host = normalizeHost(host)
	if host == "" {
		return "", nil
	}
	tok, err := keyring.Get(keyringService, host)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", nil
	}
	return tok, err
}

// SetImageToken stores a bearer token for an image host; an empty token deletes it.
func SetImageToken(host, token string) error {
	host = normalizeHost(host)
	if host == "" {
		return errors.New("empty host")
	}
	if token == "" {
		err := keyring.Delete(keyringService, host)
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return err
	}
	return keyring.Set(keyringService, host, token)
}

func normalizeHost(h string) string { return strings.ToLower(strings.TrimSpace(h)) }

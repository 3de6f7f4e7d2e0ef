/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package token

import (
	"fmt"
	"log/slog"
	"net/url"

	applog "littleplanet/internal/log"
	"littleplanet/internal/placement"
)

// DefaultKey is the fragment parameter holding the token.
const DefaultKey = "data"

// Location is an addressable place whose fragment carries the token, such as
// the address of a shared view. Fragment returns the escaped fragment.
type Location interface {
	Fragment() string
	SetFragment(escaped string)
}

// URLLocation is a Location over a parsed URL.
type URLLocation struct{ u *url.URL }

// ParseLocation parses an address.
func ParseLocation(raw string) (*URLLocation, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("parse location: %w", err)
	}
	return &URLLocation{u: u}, nil
}

func (l *URLLocation) Fragment() string { return l.u.EscapedFragment() }

func (l *URLLocation) SetFragment(escaped string) {
	frag, err := url.PathUnescape(escaped)
	if err != nil {
		frag = escaped
	}
	l.u.Fragment = frag
	l.u.RawFragment = escaped
}

func (l *URLLocation) String() string { return l.u.String() }

func keyOrDefault(key string) string {
	if key == "" {
		return DefaultKey
	}
	return key
}

// Save writes the token of snap, with the release flag set to released, under
// key in the fragment of loc. Other fragment parameters are kept.
func Save(loc Location, key string, snap placement.Snapshot, released bool) (string, error) {
	tok, err := Encode(snap.WithReleased(released))
	if err != nil {
		return "", err
	}
	vals, err := url.ParseQuery(loc.Fragment())
	if err != nil {
		vals = url.Values{}
	}
	vals.Set(keyOrDefault(key), tok)
	loc.SetFragment(vals.Encode())
	return tok, nil
}

// Load reads the arrangement stored under key in the fragment of loc. A
// missing or unreadable token yields an empty arrangement.
func Load(loc Location, key string) placement.Snapshot {
	l := applog.WithOperation(applog.WithComponent("token"), "load")
	vals, err := url.ParseQuery(loc.Fragment())
	if err != nil {
		l.Warn("unreadable fragment", slog.Any("err", err))
		return placement.Snapshot{}
	}
	tok := vals.Get(keyOrDefault(key))
	if tok == "" {
		return placement.Snapshot{}
	}
	snap, err := Decode(tok)
	if err != nil {
		l.Warn("falling back to empty arrangement", slog.Any("err", err))
		return placement.Snapshot{}
	}
	l.Debug("arrangement loaded", slog.Int("sources", len(snap.Sources)), slog.Int("placements", snap.Count()))
	return snap
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package token converts an arrangement to and from its compact share token
//
//	{"s":[released, prefix, name, x, y, w, h, x, y, w, h, name, ...]}
//
// where released is 0 or 1, prefix is the part shared by every source URL up
// to and including its last '/', and each name is followed by the
// quadruples of its placements.
package token

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"littleplanet/internal/placement"
)

// ErrMalformed reports a token that does not describe an arrangement.
var ErrMalformed = errors.New("malformed token")

//go:embed schema.json
var schemaJSON []byte

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewBytesLoader(schemaJSON))
	})
	return schema, schemaErr
}

type envelope struct {
	S []any `json:"s"`
}

// SplitPrefix returns the common prefix of urls and the remaining names. The
// prefix is used only when every URL has the same one; otherwise it is empty
// and the names are the full URLs. A URL without '/' has an empty prefix.
func SplitPrefix(urls []string) (string, []string) {
	if len(urls) == 0 {
		return "", nil
	}
	prefixes := make([]string, len(urls))
	names := make([]string, len(urls))
	for i, u := range urls {
		cut := strings.LastIndexByte(u, '/')
		prefixes[i], names[i] = u[:cut+1], u[cut+1:]
	}
	for _, p := range prefixes[1:] {
		if p != prefixes[0] {
			return "", append([]string(nil), urls...)
		}
	}
	return prefixes[0], names
}

// Encode returns the share token of snap.
func Encode(snap placement.Snapshot) (string, error) {
	prefix, names := SplitPrefix(snap.URLs())
	rel := 0
	if snap.Released {
		rel = 1
	}
	s := make([]any, 0, 2+len(names)+4*snap.Count())
	s = append(s, rel, prefix)
	for i, src := range snap.Sources {
		s = append(s, names[i])
		for _, r := range src.Placements {
			s = append(s, r.X, r.Y, r.W, r.H)
		}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{S: s}); err != nil {
		return "", fmt.Errorf("encode token: %w", err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// Decode parses a share token.
func Decode(tok string) (placement.Snapshot, error) {
	sc, err := compiledSchema()
	if err != nil {
		return placement.Snapshot{}, fmt.Errorf("token schema: %w", err)
	}
	res, err := sc.Validate(gojsonschema.NewStringLoader(tok))
	if err != nil {
		return placement.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return placement.Snapshot{}, fmt.Errorf("%w: %s", ErrMalformed, strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(strings.NewReader(tok))
	dec.UseNumber()
	var env envelope
	if err := dec.Decode(&env); err != nil {
		return placement.Snapshot{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	rel, err := integer(env.S[0])
	if err != nil {
		return placement.Snapshot{}, err
	}
	prefix, _ := env.S[1].(string)

	snap := placement.Snapshot{Released: rel == 1}
	for i := 2; i < len(env.S); {
		if name, ok := env.S[i].(string); ok {
			snap.Sources = append(snap.Sources, placement.Source{URL: prefix + name})
			i++
			continue
		}
		if len(snap.Sources) == 0 {
			return placement.Snapshot{}, fmt.Errorf("%w: placement before any source at %d", ErrMalformed, i)
		}
		if i+4 > len(env.S) {
			return placement.Snapshot{}, fmt.Errorf("%w: truncated placement at %d", ErrMalformed, i)
		}
		var q [4]int
		for k := range q {
			v, err := integer(env.S[i+k])
			if err != nil {
				return placement.Snapshot{}, fmt.Errorf("element %d: %w", i+k, err)
			}
			q[k] = v
		}
		last := &snap.Sources[len(snap.Sources)-1]
		last.Placements = append(last.Placements, placement.R(q[0], q[1], q[2], q[3]))
		i += 4
	}
	return snap, nil
}

func integer(v any) (int, error) {
	n, ok := v.(json.Number)
	if !ok {
		return 0, fmt.Errorf("%w: expected number, got %T", ErrMalformed, v)
	}
	i, err := n.Int64()
	if err != nil {
		f, ferr := n.Float64()
		if ferr != nil || f != float64(int64(f)) {
			return 0, fmt.Errorf("%w: %s is not an integer", ErrMalformed, n)
		}
		i = int64(f)
	}
	return int(i), nil
}

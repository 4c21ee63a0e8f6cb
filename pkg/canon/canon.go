// Copyright 2026 The Agent Loop Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package canon implements the argument canonicalization shared by the
// dedupe cache (C3), the tool executor's input fingerprint, and the
// loop detector's history ring: recursively sort object keys, normalize
// numeric representation, and drop nulls that represent absence of a
// value. Canonicalize is idempotent (spec §8, property 7).
package canon

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
)

// Canonicalize normalizes args into a deterministic, JSON-marshalable
// value: map keys are sorted, numeric values are normalized to
// float64, and nil values are dropped (they represent "field absent",
// not "field present with null").
func Canonicalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k, val := range x {
			if val == nil {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make([]canonPair, 0, len(keys))
		for _, k := range keys {
			out = append(out, canonPair{Key: k, Value: Canonicalize(x[k])})
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, item := range x {
			out[i] = Canonicalize(item)
		}
		return out
	case int:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	default:
		return v
	}
}

// canonPair is an ordered key/value entry. Using a slice of pairs
// (rather than map[string]any) for the canonical form preserves sorted
// key order through json.Marshal, which does not guarantee map key
// ordering.
type canonPair struct {
	Key   string
	Value any
}

func (p canonPair) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]any{p.Key, p.Value})
}

// Hash returns a stable hex digest of Canonicalize(args), suitable as a
// dedupe-cache key or loop-detector ring entry.
func Hash(toolName string, args map[string]any) string {
	canonical := Canonicalize(args)
	data, err := json.Marshal(canonical)
	if err != nil {
		// Canonicalize only ever produces JSON-marshalable values, so
		// this path is unreachable in practice; fall back to the tool
		// name alone rather than panicking.
		data = []byte("null")
	}
	h := sha256.New()
	h.Write([]byte(toolName))
	h.Write([]byte{0})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashValue returns a stable hex digest of Canonicalize(v), for
// comparing arbitrary tool outputs (not just argument maps) for
// equality — the loop detector's repeated-no-op check uses this to
// tell a genuine stall (same args, same output) from a legitimate poll
// that keeps returning fresh information.
func HashValue(v any) string {
	data, err := json.Marshal(Canonicalize(v))
	if err != nil {
		data = []byte("null")
	}
	h := sha256.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

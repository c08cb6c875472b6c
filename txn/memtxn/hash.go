// Copyright (C) 2026 dociq, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package memtxn

import (
	"fmt"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

type hashIndex struct {
	c     *collection
	attrs []string
}

func (h *hashIndex) Kind() txn.IndexKind       { return txn.IndexHash }
func (h *hashIndex) AttributePrefix() []string { return h.attrs }

// shapeEncode converts a value into the comparable key representation
// used by the in-memory hash bucket. Values that cannot be encoded
// (functions, channels, NaN-producing conversions) return ok=false,
// matching §4.5's "clause yields no rows" rule.
func shapeEncode(v any) (string, bool) {
	switch v.(type) {
	case nil, bool, float64, int, int64, string:
		return fmt.Sprintf("%T:%v", v, v), true
	default:
		return "", false
	}
}

func (h *hashIndex) Iterate(key []any) (txn.HashIterator, bool, error) {
	if len(key) != len(h.attrs) {
		return nil, false, fmt.Errorf("memtxn: hash index expects %d attributes, got %d", len(h.attrs), len(key))
	}
	encoded := make([]string, len(key))
	for i, v := range key {
		enc, ok := shapeEncode(v)
		if !ok {
			return nil, false, nil
		}
		encoded[i] = enc
	}
	h.c.mu.Lock()
	var matches []map[string]any
	for _, d := range h.c.liveDocs() {
		if hashMatches(d, h.attrs, encoded) {
			matches = append(matches, d)
		}
	}
	h.c.mu.Unlock()
	return &hashIter{docs: matches}, true, nil
}

func hashMatches(d map[string]any, attrs, encoded []string) bool {
	for i, a := range attrs {
		enc, ok := shapeEncode(d[a])
		if !ok || enc != encoded[i] {
			return false
		}
	}
	return true
}

type hashIter struct {
	docs []map[string]any
	pos  int
}

func (it *hashIter) Next(dst []block.ShapedDoc) (int, error) {
	n := 0
	for n < len(dst) && it.pos < len(it.docs) {
		d := it.docs[it.pos]
		key, _ := d["_key"].(string)
		dst[n] = block.ShapedDoc{Key: key, Doc: cloneDoc(d)}
		n++
		it.pos++
	}
	return n, nil
}

func (it *hashIter) Close() error { return nil }

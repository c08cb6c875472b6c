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
	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

type edgeIndex struct{ c *collection }

func (e *edgeIndex) Kind() txn.IndexKind       { return txn.IndexEdge }
func (e *edgeIndex) AttributePrefix() []string { return []string{"_from", "_to"} }

func (e *edgeIndex) Iterate(dir txn.EdgeDirection, vertex string) (txn.EdgeIterator, error) {
	field := "_from"
	if dir == txn.EdgeTo {
		field = "_to"
	}
	e.c.mu.Lock()
	var matches []map[string]any
	for _, d := range e.c.liveDocs() {
		if v, _ := d[field].(string); v == vertex {
			matches = append(matches, d)
		}
	}
	e.c.mu.Unlock()
	return &edgeIter{docs: matches}, nil
}

type edgeIter struct {
	docs []map[string]any
	pos  int
}

func (it *edgeIter) Next(dst []block.ShapedDoc) (int, error) {
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

func (it *edgeIter) Close() error { return nil }

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
	"math/rand"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

// Scanner opens a full-collection cursor; ScanRandom applies a fixed-
// seed shuffle so tests are reproducible while still exercising a
// different traversal than linear order.
func (t *Txn) Scanner(h txn.Handle, mode txn.ScanMode) (txn.DocumentScanner, error) {
	c := h.(*collection)
	c.mu.Lock()
	docs := c.liveDocs()
	c.mu.Unlock()

	order := make([]int, len(docs))
	for i := range order {
		order[i] = i
	}
	if mode == txn.ScanRandom {
		rng := rand.New(rand.NewSource(0xA91))
		rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })
	}
	return &memScanner{docs: docs, order: order}, nil
}

type memScanner struct {
	docs  []map[string]any
	order []int
	pos   int
}

func (s *memScanner) Next(dst []block.ShapedDoc) (int, error) {
	n := 0
	for n < len(dst) && s.pos < len(s.order) {
		d := s.docs[s.order[s.pos]]
		key, _ := d["_key"].(string)
		dst[n] = block.ShapedDoc{Key: key, Doc: cloneDoc(d)}
		n++
		s.pos++
	}
	return n, nil
}

func (s *memScanner) Close() error { return nil }

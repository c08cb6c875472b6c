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

type primaryIndex struct{ c *collection }

func (p *primaryIndex) Kind() txn.IndexKind       { return txn.IndexPrimary }
func (p *primaryIndex) AttributePrefix() []string { return []string{"_key"} }

func (p *primaryIndex) Lookup(key string) (block.ShapedDoc, error) {
	p.c.mu.Lock()
	defer p.c.mu.Unlock()
	i, ok := p.c.byKey[key]
	if !ok || p.c.docs[i] == nil {
		return block.ShapedDoc{}, txn.ErrDocumentNotFound
	}
	return block.ShapedDoc{Key: key, Doc: cloneDoc(p.c.docs[i])}, nil
}

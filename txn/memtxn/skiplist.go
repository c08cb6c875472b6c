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
	"sort"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

type skiplistIndex struct {
	c     *collection
	attrs []string
}

func (s *skiplistIndex) Kind() txn.IndexKind       { return txn.IndexSkiplist }
func (s *skiplistIndex) AttributePrefix() []string { return s.attrs }

// compareScalar orders values the way the wire/value comparator does
// (see operator/sortcmp.go): nil < bool < number < string, and within
// a type by natural order.
func compareScalar(a, b any) int {
	ra, rb := typeRank(a), typeRank(b)
	if ra != rb {
		if ra < rb {
			return -1
		}
		return 1
	}
	switch av := a.(type) {
	case bool:
		bv := b.(bool)
		if av == bv {
			return 0
		}
		if !av {
			return -1
		}
		return 1
	case float64:
		bv := toFloat(b)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	case string:
		bv := b.(string)
		switch {
		case av < bv:
			return -1
		case av > bv:
			return 1
		default:
			return 0
		}
	default:
		return 0
	}
}

func typeRank(v any) int {
	switch v.(type) {
	case nil:
		return 0
	case bool:
		return 1
	case float64, int, int64:
		return 2
	case string:
		return 3
	default:
		return 4
	}
}

func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	default:
		return 0
	}
}

func (s *skiplistIndex) Iterate(c txn.SkiplistCursor) (txn.SkiplistIterator, error) {
	s.c.mu.Lock()
	docs := s.c.liveDocs()
	s.c.mu.Unlock()

	var matched []map[string]any
	for _, d := range docs {
		ok := true
		for i, v := range c.EqPrefix {
			if compareScalar(d[s.attrs[i]], v) != 0 {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		if c.Attribute != "" {
			val := d[c.Attribute]
			if c.HasLow {
				cmp := compareScalar(val, c.Low)
				if cmp < 0 || (cmp == 0 && !c.LowIncl) {
					continue
				}
			}
			if c.HasHigh {
				cmp := compareScalar(val, c.High)
				if cmp > 0 || (cmp == 0 && !c.HighIncl) {
					continue
				}
			}
		}
		matched = append(matched, d)
	}

	sortAttr := c.Attribute
	if sortAttr == "" && len(s.attrs) > len(c.EqPrefix) {
		sortAttr = s.attrs[len(c.EqPrefix)]
	}
	if sortAttr != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			cmp := compareScalar(matched[i][sortAttr], matched[j][sortAttr])
			if c.Reverse {
				return cmp > 0
			}
			return cmp < 0
		})
	}
	return &skiplistIter{docs: matched}, nil
}

type skiplistIter struct {
	docs []map[string]any
	pos  int
}

func (it *skiplistIter) Next(dst []block.ShapedDoc) (int, error) {
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

func (it *skiplistIter) Close() error { return nil }

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

package txn

import "github.com/dociq/aqlengine/block"

// IndexKind identifies which of the four per-index iteration models
// §4.5 of SPEC_FULL.md dispatches on.
type IndexKind uint8

const (
	IndexPrimary IndexKind = iota
	IndexEdge
	IndexHash
	IndexSkiplist
)

// Bound is a single attribute bound within an AND-clause: either an
// equality or a range whose Low and High ends are each optional
// (HasLow/HasHigh) and inclusive or exclusive (LowIncl/HighIncl). Bound
// is the storage-facing counterpart of the index-range operator's
// normalized clause representation (see operator/indexrange.go).
type Bound struct {
	Attribute string
	// Eq, if HasEq, restricts the attribute to a single value.
	Eq    any
	HasEq bool
	// Low/High bound a range; either may be absent.
	Low, High         any
	LowIncl, HighIncl bool
	HasLow, HasHigh   bool
}

// Clause is one AND-clause: a conjunction of per-attribute bounds.
type Clause struct {
	Bounds []Bound
}

// Index is implemented once per index kind by the storage layer and
// driven by operator.IndexRange.
type Index interface {
	Kind() IndexKind
	// AttributePrefix returns the indexed attributes in key order,
	// used by the skiplist dispatch to sort clauses against the
	// index's own ordering.
	AttributePrefix() []string
}

// PrimaryIndex looks up at most one document per equality clause on
// _key (or a resolved _id).
type PrimaryIndex interface {
	Index
	Lookup(key string) (block.ShapedDoc, error)
}

// EdgeDirection selects which endpoint of an edge document a clause
// constrains.
type EdgeDirection uint8

const (
	EdgeFrom EdgeDirection = iota
	EdgeTo
)

// EdgeIndex drives a per-direction batch iterator over edges incident
// to a vertex.
type EdgeIndex interface {
	Index
	Iterate(dir EdgeDirection, vertex string) (EdgeIterator, error)
}

// EdgeIterator batch-yields edges.
type EdgeIterator interface {
	Next(dst []block.ShapedDoc) (int, error)
	Close() error
}

// HashIndex iterates documents matching an equality tuple, one value
// per indexed attribute (in the index's own attribute order).
type HashIndex interface {
	Index
	// Iterate returns ok=false if any value in key could not be
	// shape-encoded (the clause then yields no rows per §4.5).
	Iterate(key []any) (iter HashIterator, ok bool, err error)
}

// HashIterator batch-yields documents matching a hash-index equality
// tuple.
type HashIterator interface {
	Next(dst []block.ShapedDoc) (int, error)
	Close() error
}

// SkiplistCursor drives one (possibly reversed) composite-key range
// scan: a leading equality prefix followed by one non-equality bound.
type SkiplistCursor struct {
	// EqPrefix holds the equality-matched leading attributes, in
	// index order.
	EqPrefix []any
	// Attribute is the first non-equality attribute in index order,
	// or "" if the clause is a pure equality lookup.
	Attribute         string
	Low, High         any
	LowIncl, HighIncl bool
	HasLow, HasHigh   bool
	Reverse           bool
}

// SkiplistIndex drives a composite-key range iterator that preserves
// index key order so Sort can be elided when the query requests the
// same order (§4.5, §8 scenario S2).
type SkiplistIndex interface {
	Index
	Iterate(c SkiplistCursor) (SkiplistIterator, error)
}

// SkiplistIterator batch-yields documents in index key order.
type SkiplistIterator interface {
	Next(dst []block.ShapedDoc) (int, error)
	Close() error
}

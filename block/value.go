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

// Package block implements the per-row tagged Value and the
// rectangular ItemBlock batch container that the operator pull
// protocol passes between execution operators.
package block

import (
	"fmt"
)

// Kind discriminates the variant held by a Value.
type Kind uint8

const (
	// KindEmpty marks an uninitialized slot.
	KindEmpty Kind = iota
	// KindJSON is a self-owned structured value.
	KindJSON
	// KindShaped is a pointer into a collection document.
	KindShaped
	// KindRange is a lazily materialized integer interval.
	KindRange
	// KindDocVec is a sequence of item blocks (materialized subquery result).
	KindDocVec
)

func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindJSON:
		return "json"
	case KindShaped:
		return "shaped"
	case KindRange:
		return "range"
	case KindDocVec:
		return "docvec"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// CollectionTag identifies the collection a Shaped value was read
// from. A zero value means "no collection" (e.g. a plain JSON value).
// Collection tags live out-of-line, one per ItemBlock column, not on
// the Value itself.
type CollectionTag uint32

// Range is a lazily materialized half-open integer interval [Low, High).
type Range struct {
	Low, High int64
}

// Len returns the number of integers the range would materialize to.
func (r Range) Len() int64 {
	if r.High <= r.Low {
		return 0
	}
	return r.High - r.Low
}

// jsonBox is the heap-allocated payload backing a KindJSON value.
// It carries its own reference count so that ItemBlock.Slice can
// share a payload across rows/blocks, and soleOwner can cheaply detect
// whether a slot is the payload's sole owner.
//
// This is a deliberate simplification of the "valueCount on the
// enclosing block" bookkeeping described for the source system: the
// refcount travels with the payload instead of living in a side table
// on ItemBlock. Any code path that can reach a jsonBox reached it
// through a slot that was produced by clone (refs=1) or slice
// (refs incremented), so the two schemes answer the same question
// ("am I the only reference?") with the same result.
type jsonBox struct {
	data any
	refs int32
}

// ShapedDoc is a resolved reference into a collection document. The
// storage layer (accessed through the txn.Transaction interface) is
// responsible for producing these; the engine never parses document
// bytes itself.
type ShapedDoc struct {
	Key string
	Doc map[string]any
}

// DocVec holds the concatenated rows of a materialized subquery
// result. It is itself a slice of ItemBlocks rather than a single
// block so that EnumerateList can iterate it without first
// concatenating (concatenation would force a copy).
type DocVec struct {
	Blocks []*ItemBlock
}

// Value is the tagged union that occupies one (row, register) slot of
// an ItemBlock.
type Value struct {
	kind  Kind
	json  *jsonBox
	shape ShapedDoc
	rng   Range
	vec   DocVec
}

// Empty returns the zero Value (KindEmpty).
func Empty() Value { return Value{} }

// NewJSON wraps a decoded JSON-ish Go value (nil, bool, float64/int64,
// string, []any, map[string]any) as an owned KindJSON Value.
func NewJSON(v any) Value {
	return Value{kind: KindJSON, json: &jsonBox{data: v, refs: 1}}
}

// NewShaped wraps a resolved document reference.
func NewShaped(d ShapedDoc) Value {
	return Value{kind: KindShaped, shape: d}
}

// NewRange wraps a lazily materialized integer interval.
func NewRange(low, high int64) Value {
	return Value{kind: KindRange, rng: Range{Low: low, High: high}}
}

// NewDocVec wraps a materialized subquery result.
func NewDocVec(blocks []*ItemBlock) Value {
	return Value{kind: KindDocVec, vec: DocVec{Blocks: blocks}}
}

// Kind reports the variant currently held.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the slot is uninitialized.
func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// JSON returns the decoded payload of a KindJSON value. It panics if
// v is not KindJSON; callers must check Kind() first, matching the
// teacher's pattern of unchecked variant access guarded by an
// upstream type check (e.g. expr evaluation asserting ArrayExpected).
func (v Value) JSON() any {
	if v.kind != KindJSON {
		panic("block: JSON() on non-JSON value")
	}
	return v.json.data
}

// Shaped returns the document reference of a KindShaped value.
func (v Value) Shaped() ShapedDoc {
	if v.kind != KindShaped {
		panic("block: Shaped() on non-Shaped value")
	}
	return v.shape
}

// RangeVal returns the interval of a KindRange value.
func (v Value) RangeVal() Range {
	if v.kind != KindRange {
		panic("block: RangeVal() on non-Range value")
	}
	return v.rng
}

// DocVecVal returns the blocks of a KindDocVec value.
func (v Value) DocVecVal() DocVec {
	if v.kind != KindDocVec {
		panic("block: DocVecVal() on non-DocVec value")
	}
	return v.vec
}

// Native materializes any Value variant into a plain Go value for
// comparison, serialization, or expression evaluation. Shaped values
// resolve to their document; Range expands eagerly (callers iterating
// a large range should prefer RangeVal+Len instead); DocVec expands to
// a list of row-documents built from each block's columns in order.
func (v Value) Native() any {
	switch v.kind {
	case KindEmpty:
		return nil
	case KindJSON:
		return v.json.data
	case KindShaped:
		return v.shape.Doc
	case KindRange:
		n := v.rng.Len()
		out := make([]any, 0, n)
		for i := v.rng.Low; i < v.rng.High; i++ {
			out = append(out, i)
		}
		return out
	case KindDocVec:
		var out []any
		for _, b := range v.vec.Blocks {
			for r := 0; r < b.Rows(); r++ {
				row := make(map[string]any, b.NrRegs())
				for c := 0; c < b.NrRegs(); c++ {
					row[fmt.Sprintf("reg%d", c)] = b.GetValue(r, c).Native()
				}
				out = append(out, row)
			}
		}
		return out
	}
	return nil
}

// Clone produces an independent deep copy that shares no heap state
// with the receiver. Operators use this to copy an incoming register
// into multiple output rows (e.g. EnumerateCollection repeating an
// outer row's bindings across every document it produces) without
// the aliasing that Slice's shared-payload semantics would introduce.
func (v Value) Clone() Value { return v.clone() }

// clone is the unexported implementation shared by Clone and the
// internal callers (ItemBlock.Clone).
func (v Value) clone() Value {
	switch v.kind {
	case KindEmpty, KindRange:
		return v
	case KindJSON:
		return Value{kind: KindJSON, json: &jsonBox{data: deepCopy(v.json.data), refs: 1}}
	case KindShaped:
		return Value{kind: KindShaped, shape: ShapedDoc{Key: v.shape.Key, Doc: deepCopyMap(v.shape.Doc)}}
	case KindDocVec:
		// DocVec is the materialized (and by then immutable) result of
		// a subquery; cloning shares the underlying blocks, matching
		// the source system's behavior of not re-running a subquery
		// just to duplicate its already-computed output.
		return v
	}
	return v
}

// steal transfers the payload out of v (leaving v Empty) without
// copying. It is the Value-level primitive behind ItemBlock.Steal and
// ItemBlock.StealValue, which the Singleton and Return operators call
// to avoid cloning large documents.
func (v *Value) steal() Value {
	// The payload's refcount is unaffected: one slot (the source)
	// stops referencing it and one slot (the destination, via the
	// returned Value) starts, so the count that soleOwner/clone-cache
	// logic cares about does not change.
	out := *v
	*v = Value{}
	return out
}

// destroy releases any refcounted heap state. It is safe to call on
// an already-Empty value.
func (v *Value) destroy() {
	if v.kind == KindJSON && v.json != nil {
		v.json.refs--
	}
	*v = Value{}
}

// soleOwner reports whether v is the only outstanding reference to
// its payload, i.e. whether Sort (and similar operators) may steal it
// instead of cloning.
func (v Value) soleOwner() bool {
	if v.kind != KindJSON {
		return true
	}
	return v.json.refs <= 1
}

// Identity returns a comparable key that uniquely identifies the heap
// payload backing v, or (nil, false) if v has no shareable payload
// (and so can never alias another slot). The Sort operator uses this
// to key its clone-dedup cache so the same shared payload is not
// cloned twice when it appears in multiple output rows.
func (v Value) Identity() (any, bool) {
	if v.kind == KindJSON {
		return v.json, true
	}
	return nil, false
}

// SoleOwner reports whether v is the only outstanding reference to
// its payload, i.e. whether it is safe to steal instead of clone.
func (v Value) SoleOwner() bool { return v.soleOwner() }

// Retain returns a second reference to v's payload, bumping the
// refcount the same way Slice does when it shares a payload across
// rows. Sort uses this to hand the same cloned value to more than one
// output row without paying for an extra deep copy each time.
func (v Value) Retain() Value {
	if v.kind == KindJSON && v.json != nil {
		v.json.refs++
	}
	return v
}

func deepCopy(v any) any {
	switch x := v.(type) {
	case map[string]any:
		return deepCopyMap(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = deepCopy(e)
		}
		return out
	default:
		return x
	}
}

func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopy(v)
	}
	return out
}

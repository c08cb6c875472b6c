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

package block

import (
	"fmt"

	"golang.org/x/exp/slices"
)

// RegisterSet is a sparse set of register (column) ids, used to
// describe a per-operator kill-set (see RegisterPlan.RegsToClear).
type RegisterSet struct {
	bits []bool
}

// NewRegisterSet builds a RegisterSet containing exactly the given ids.
func NewRegisterSet(ids ...int) RegisterSet {
	rs := RegisterSet{}
	for _, id := range ids {
		rs.Add(id)
	}
	return rs
}

// Add inserts id into the set.
func (rs *RegisterSet) Add(id int) {
	if id < 0 {
		return
	}
	if id >= len(rs.bits) {
		grown := make([]bool, id+1)
		copy(grown, rs.bits)
		rs.bits = grown
	}
	rs.bits[id] = true
}

// Has reports whether id is a member of the set.
func (rs RegisterSet) Has(id int) bool {
	return id >= 0 && id < len(rs.bits) && rs.bits[id]
}

// Each calls f once for every member, in ascending order.
func (rs RegisterSet) Each(f func(id int)) {
	for i, set := range rs.bits {
		if set {
			f(i)
		}
	}
}

// ItemBlock is a rectangular rows x nrRegs container of Value, plus a
// parallel nrRegs-long vector of optional collection tags (one per
// column). ItemBlock is always owned exclusively by whichever
// operator currently holds it; hand-off between operators is by move
// (the caller must not retain a reference after returning a block).
type ItemBlock struct {
	nrRegs int
	rows   int
	data   []Value         // row-major: data[r*nrRegs+c]
	tags   []CollectionTag // one per column
}

// NewItemBlock allocates an empty (zero-row) block with the given
// column count.
func NewItemBlock(nrRegs int) *ItemBlock {
	b := &ItemBlock{nrRegs: nrRegs, tags: make([]CollectionTag, nrRegs)}
	leakCheck(b)
	return b
}

// NrRegs returns the column count.
func (b *ItemBlock) NrRegs() int { return b.nrRegs }

// Rows returns the row count.
func (b *ItemBlock) Rows() int { return b.rows }

func (b *ItemBlock) index(r, c int) int {
	if r < 0 || r >= b.rows || c < 0 || c >= b.nrRegs {
		panic(fmt.Sprintf("block: index (%d,%d) out of bounds for %dx%d block", r, c, b.rows, b.nrRegs))
	}
	return r*b.nrRegs + c
}

// GetValue returns a reference to the value at (r,c). The returned
// Value is only valid for the lifetime of the block.
func (b *ItemBlock) GetValue(r, c int) Value {
	return b.data[b.index(r, c)]
}

// SetValue stores v at (r,c), taking ownership of it. Any previous
// occupant of the slot is destroyed first.
func (b *ItemBlock) SetValue(r, c int, v Value) {
	i := b.index(r, c)
	b.data[i].destroy()
	b.data[i] = v
}

// EraseValue destroys the value at (r,c) and resets the slot to Empty.
func (b *ItemBlock) EraseValue(r, c int) {
	i := b.index(r, c)
	b.data[i].destroy()
}

// StealValue moves the value out of (r,c), leaving the slot Empty,
// without affecting its payload's refcount (ownership transfers to
// the caller rather than being released).
func (b *ItemBlock) StealValue(r, c int) Value {
	i := b.index(r, c)
	return b.data[i].steal()
}

// CollectionTag returns the collection tag of column c.
func (b *ItemBlock) CollectionTag(c int) CollectionTag {
	return b.tags[c]
}

// SetCollectionTag sets the collection tag of column c.
func (b *ItemBlock) SetCollectionTag(c int, t CollectionTag) {
	b.tags[c] = t
}

// ClearRegisters destroys every value in the given columns, across
// every row. Operators call this on each output block for every
// register in their RegisterPlan-assigned kill-set.
func (b *ItemBlock) ClearRegisters(regs RegisterSet) {
	for c := 0; c < b.nrRegs; c++ {
		if !regs.Has(c) {
			continue
		}
		for r := 0; r < b.rows; r++ {
			b.EraseValue(r, c)
		}
	}
}

// AppendRow grows the block by one row, copying vals (one per
// column) into it by move (vals[c] ownership transfers to the block;
// the caller must not use vals after this call).
func (b *ItemBlock) AppendRow(vals []Value) {
	if len(vals) != b.nrRegs {
		panic(fmt.Sprintf("block: AppendRow got %d values, want %d", len(vals), b.nrRegs))
	}
	b.data = append(b.data, vals...)
	b.rows++
}

// grow extends the block by n fresh (Empty) rows and returns the
// first new row index.
func (b *ItemBlock) grow(n int) int {
	start := b.rows
	if n <= 0 {
		return start
	}
	b.data = append(b.data, make([]Value, n*b.nrRegs)...)
	b.rows += n
	return start
}

// Slice returns a new block spanning rows [r0,r1) that SHARES
// Json/Shaped payloads with the source (the payload's refcount is
// bumped via clone-on-write semantics is NOT performed; instead the
// jsonBox refcount is incremented so stealing downstream can detect
// it is no longer the sole owner).
func (b *ItemBlock) Slice(r0, r1 int) *ItemBlock {
	if r0 < 0 || r1 > b.rows || r0 > r1 {
		panic(fmt.Sprintf("block: Slice(%d,%d) out of bounds for %d rows", r0, r1, b.rows))
	}
	out := &ItemBlock{nrRegs: b.nrRegs, rows: r1 - r0}
	out.tags = append(out.tags[:0:0], b.tags...)
	out.data = make([]Value, out.rows*b.nrRegs)
	for i := range out.data {
		v := b.data[r0*b.nrRegs+i]
		if v.kind == KindJSON {
			v.json.refs++
		}
		out.data[i] = v
	}
	return out
}

// Steal returns a new block spanning rows [r0,r1) that MOVES heap
// values out of the source; the source's slots in that range become
// Empty. It is the caller's responsibility to discard (or no longer
// read from) the stolen range of the source block.
func (b *ItemBlock) Steal(r0, r1 int) *ItemBlock {
	if r0 < 0 || r1 > b.rows || r0 > r1 {
		panic(fmt.Sprintf("block: Steal(%d,%d) out of bounds for %d rows", r0, r1, b.rows))
	}
	out := &ItemBlock{nrRegs: b.nrRegs, rows: r1 - r0}
	out.tags = append(out.tags[:0:0], b.tags...)
	out.data = make([]Value, out.rows*b.nrRegs)
	for i := range out.data {
		idx := r0*b.nrRegs + i
		out.data[i] = b.data[idx].steal()
	}
	return out
}

// StealRows is Steal restricted to an explicit, possibly non-
// contiguous, list of row indices (used by Filter to materialize only
// the rows that passed).
func (b *ItemBlock) StealRows(chosen []int) *ItemBlock {
	out := &ItemBlock{nrRegs: b.nrRegs, rows: len(chosen)}
	out.tags = append(out.tags[:0:0], b.tags...)
	out.data = make([]Value, out.rows*b.nrRegs)
	for oi, r := range chosen {
		for c := 0; c < b.nrRegs; c++ {
			out.data[oi*b.nrRegs+c] = b.data[b.index(r, c)].steal()
		}
	}
	return out
}

// Concatenate builds one block from the summed row count of blocks.
// All inputs must share the same column count; their collection tags
// must agree (the first non-zero tag per column wins, matching the
// teacher's assumption that tags are a schema-level property that
// does not vary block-to-block within one operator's output).
func Concatenate(blocks []*ItemBlock) *ItemBlock {
	if len(blocks) == 0 {
		return NewItemBlock(0)
	}
	nrRegs := blocks[0].nrRegs
	total := 0
	for _, blk := range blocks {
		if blk.nrRegs != nrRegs {
			panic("block: Concatenate: mismatched column counts")
		}
		total += blk.rows
	}
	out := &ItemBlock{nrRegs: nrRegs, tags: append([]CollectionTag(nil), blocks[0].tags...)}
	out.data = make([]Value, 0, total*nrRegs)
	for _, blk := range blocks {
		out.data = append(out.data, blk.data...)
		for c, t := range blk.tags {
			if out.tags[c] == 0 && t != 0 {
				out.tags[c] = t
			}
		}
		noLeakCheck(blk)
	}
	out.rows = total
	leakCheck(out)
	return out
}

// Shrink truncates the block to n rows in place, destroying the
// values of the discarded rows.
func (b *ItemBlock) Shrink(n int) {
	if n >= b.rows {
		return
	}
	if n < 0 {
		n = 0
	}
	for r := n; r < b.rows; r++ {
		for c := 0; c < b.nrRegs; c++ {
			b.EraseValue(r, c)
		}
	}
	b.data = b.data[:n*b.nrRegs]
	b.rows = n
}

// Clone deep-copies every value in the block, producing a block that
// shares no heap state with the receiver.
func (b *ItemBlock) Clone() *ItemBlock {
	out := &ItemBlock{nrRegs: b.nrRegs, rows: b.rows}
	out.tags = append([]CollectionTag(nil), b.tags...)
	out.data = make([]Value, len(b.data))
	for i, v := range b.data {
		out.data[i] = v.clone()
	}
	return out
}

// Equal reports whether a and b hold the same shape, tags, and
// values under a value-and-tag equality (used by round-trip tests of
// the wire codec).
func Equal(a, b *ItemBlock) bool {
	if a.nrRegs != b.nrRegs || a.rows != b.rows {
		return false
	}
	if !slices.Equal(a.tags, b.tags) {
		return false
	}
	for i := range a.data {
		if !valueEqual(a.data[i], b.data[i]) {
			return false
		}
	}
	return true
}

func valueEqual(a, bv Value) bool {
	if a.kind != bv.kind {
		return false
	}
	switch a.kind {
	case KindEmpty:
		return true
	case KindJSON:
		return nativeEqual(a.json.data, bv.json.data)
	case KindShaped:
		return a.shape.Key == bv.shape.Key && nativeEqual(a.shape.Doc, bv.shape.Doc)
	case KindRange:
		return a.rng == bv.rng
	case KindDocVec:
		if len(a.vec.Blocks) != len(bv.vec.Blocks) {
			return false
		}
		for i := range a.vec.Blocks {
			if !Equal(a.vec.Blocks[i], bv.vec.Blocks[i]) {
				return false
			}
		}
		return true
	}
	return false
}

func nativeEqual(x, y any) bool {
	switch xv := x.(type) {
	case map[string]any:
		yv, ok := y.(map[string]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for k, v := range xv {
			yv2, ok := yv[k]
			if !ok || !nativeEqual(v, yv2) {
				return false
			}
		}
		return true
	case []any:
		yv, ok := y.([]any)
		if !ok || len(xv) != len(yv) {
			return false
		}
		for i := range xv {
			if !nativeEqual(xv[i], yv[i]) {
				return false
			}
		}
		return true
	default:
		return x == y
	}
}

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

package operator

import (
	"fmt"
	"sort"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

// AttrBoundKind distinguishes an equality template from a range
// template within one attribute of a ClauseTemplate.
type AttrBoundKind uint8

const (
	AttrEq AttrBoundKind = iota
	AttrRange
)

// AttrTemplate is one attribute's bound template within a
// ClauseTemplate, evaluated fresh against every incoming row (§4.5).
// A template whose expression is a constant-folded literal Expression
// behaves exactly like a variable one here — re-evaluating a constant
// is cheap and the operator does not need a separate "is this
// constant" fast path to be correct, only to be faster; §4.5's
// "runs once at initialize" optimization for the fully-constant case
// is therefore left as a planner-level concern, not duplicated here.
type AttrTemplate struct {
	Attribute string
	Kind      AttrBoundKind

	EqExpr Expression

	LowExpr  Expression
	LowIncl  bool
	HighExpr Expression
	HighIncl bool
}

// ClauseTemplate is one AND-clause of attribute bound templates.
type ClauseTemplate struct {
	Attrs []AttrTemplate
}

// rangeIterator is the common shape of EdgeIterator/HashIterator/
// SkiplistIterator; Go's structural typing lets any of them satisfy
// it without an adapter.
type rangeIterator interface {
	Next(dst []block.ShapedDoc) (int, error)
	Close() error
}

// IndexRange drives one of the four per-index iteration models over a
// disjunction of conjunctive attribute bounds, re-specializing the
// condition against each outer row (§4.5).
type IndexRange struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	outCol      int

	txn     txn.Transaction
	handle  txn.Handle
	index   txn.Index
	reverse bool

	templates []ClauseTemplate

	outer    *rowCursor
	curRow   *block.ItemBlock
	clauses  []txn.Clause
	clauseAt int

	iter    rangeIterator
	docBuf  []block.ShapedDoc
	docPos  int
	docLen  int
	done    bool
}

// NewIndexRange builds an IndexRange operator. idx is the
// already-resolved index handle (via txn.Transaction.Index); reverse
// requests descending order from a SkiplistIndex.
func NewIndexRange(in Operator, nrRegs, outCol int, tx txn.Transaction, h txn.Handle, idx txn.Index, templates []ClauseTemplate, reverse bool, regsToClear block.RegisterSet) *IndexRange {
	return &IndexRange{
		in: in, nrRegs: nrRegs, outCol: outCol, regsToClear: regsToClear,
		txn: tx, handle: h, index: idx, templates: templates, reverse: reverse,
		outer: newRowCursor(in),
		docBuf: make([]block.ShapedDoc, DefaultBatchSize),
	}
}

func (x *IndexRange) NrRegs() int                   { return x.nrRegs }
func (x *IndexRange) RegsToClear() block.RegisterSet { return x.regsToClear }

func (x *IndexRange) Initialize(ctx *Context) error { return x.in.Initialize(ctx) }

func (x *IndexRange) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	x.outer = newRowCursor(x.in)
	x.curRow = nil
	x.clauses = nil
	x.clauseAt = 0
	x.closeIter()
	x.docPos, x.docLen = 0, 0
	x.done = false
	return x.in.InitializeCursor(ctx, items, pos)
}

func (x *IndexRange) closeIter() {
	if x.iter != nil {
		x.iter.Close()
		x.iter = nil
	}
}

// specialize builds the normalized clause list for one outer row:
// DNF bound evaluation, cartesian expansion of array-valued equality
// bounds, and removal of duplicate clauses. A clause with an empty
// array-valued equality bound is dropped. A later bound on an
// attribute replaces an earlier one on the same attribute instead of
// being intersected with it, so no other contradiction is detected,
// and a clause subsumed by a different clause is kept.
func (x *IndexRange) specialize(ctx *Context, row *block.ItemBlock) ([]txn.Clause, error) {
	var clauses []txn.Clause
	seen := map[string]bool{}
	for _, ct := range x.templates {
		variants := []map[string]txn.Bound{{}}
		contradiction := false
		for _, at := range ct.Attrs {
			switch at.Kind {
			case AttrEq:
				v, err := Eval(at.EqExpr, ctx.Runtime, Row{Block: row, Index: 0})
				if err != nil {
					return nil, err
				}
				native := v.Native()
				if arr, ok := native.([]any); ok {
					if len(arr) == 0 {
						contradiction = true
						break
					}
					expanded := make([]map[string]txn.Bound, 0, len(variants)*len(arr))
					for _, vr := range variants {
						for _, elem := range arr {
							nv := cloneBoundMap(vr)
							nv[at.Attribute] = txn.Bound{Attribute: at.Attribute, Eq: elem, HasEq: true}
							expanded = append(expanded, nv)
						}
					}
					variants = expanded
				} else {
					for _, vr := range variants {
						vr[at.Attribute] = txn.Bound{Attribute: at.Attribute, Eq: native, HasEq: true}
					}
				}
			case AttrRange:
				b := txn.Bound{Attribute: at.Attribute}
				if at.LowExpr != nil {
					v, err := Eval(at.LowExpr, ctx.Runtime, Row{Block: row, Index: 0})
					if err != nil {
						return nil, err
					}
					b.Low, b.HasLow, b.LowIncl = v.Native(), true, at.LowIncl
				}
				if at.HighExpr != nil {
					v, err := Eval(at.HighExpr, ctx.Runtime, Row{Block: row, Index: 0})
					if err != nil {
						return nil, err
					}
					b.High, b.HasHigh, b.HighIncl = v.Native(), true, at.HighIncl
				}
				for _, vr := range variants {
					vr[at.Attribute] = b
				}
			}
			if contradiction {
				break
			}
		}
		if contradiction {
			continue
		}
		for _, vr := range variants {
			bounds := make([]txn.Bound, 0, len(vr))
			for _, b := range vr {
				bounds = append(bounds, b)
			}
			key := clauseKey(bounds)
			if seen[key] {
				continue
			}
			seen[key] = true
			clauses = append(clauses, txn.Clause{Bounds: bounds})
		}
	}
	return clauses, nil
}

func cloneBoundMap(m map[string]txn.Bound) map[string]txn.Bound {
	out := make(map[string]txn.Bound, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func clauseKey(bounds []txn.Bound) string {
	sorted := append([]txn.Bound(nil), bounds...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Attribute < sorted[j].Attribute })
	s := ""
	for _, b := range sorted {
		s += fmt.Sprintf("%s=%v:%v[%v/%v/%v,%v/%v/%v]|", b.Attribute, b.Eq, b.HasEq,
			b.Low, b.HasLow, b.LowIncl, b.High, b.HasHigh, b.HighIncl)
	}
	return s
}

func boundByAttr(bounds []txn.Bound, attr string) (txn.Bound, bool) {
	for _, b := range bounds {
		if b.Attribute == attr {
			return b, true
		}
	}
	return txn.Bound{}, false
}

// sortClausesForIndex orders clauses by x.index's own key order (§4.5:
// "sort the AND-clauses by the index's attribute prefix using a
// lexicographic comparator, reversed when the query requests reverse
// order") so that iterating clauses in order and concatenating their
// per-clause results keeps the whole merged output sorted. Only a
// SkiplistIndex makes this promise (AttributePrefix's own doc comment:
// "used by the skiplist dispatch to sort clauses against the index's
// own ordering") — Primary/Edge/Hash dispatch has no ordering
// contract to preserve, so clauses are left in discovery order there.
func (x *IndexRange) sortClausesForIndex(clauses []txn.Clause) {
	if _, ok := x.index.(txn.SkiplistIndex); !ok {
		return
	}
	prefix := x.index.AttributePrefix()
	reverse := x.reverse
	sort.SliceStable(clauses, func(i, j int) bool {
		return clauseLess(clauses[i], clauses[j], prefix, reverse)
	})
}

// clauseKeyPrefix reduces a clause to the ordered tuple of values it
// constrains along idx's attribute prefix: an equality-bound
// attribute contributes its value and the walk continues; a
// range-bound (or absent) attribute contributes its starting bound
// (Low for an ascending scan, High for a descending one) and ends the
// walk, since that is the first attribute where the clause's rows are
// not pinned to a single value.
func clauseKeyPrefix(c txn.Clause, prefix []string, reverse bool) []any {
	key := make([]any, 0, len(prefix))
	for _, attr := range prefix {
		b, ok := boundByAttr(c.Bounds, attr)
		if !ok {
			break
		}
		if b.HasEq {
			key = append(key, b.Eq)
			continue
		}
		if reverse && b.HasHigh {
			key = append(key, b.High)
		} else if !reverse && b.HasLow {
			key = append(key, b.Low)
		}
		break
	}
	return key
}

// clauseLess implements the lexicographic clause comparator described
// on sortClausesForIndex, comparing component-wise with
// operator.compareValue and falling back to the shorter (less
// constrained) key sorting first when one key is a prefix of the
// other.
func clauseLess(a, b txn.Clause, prefix []string, reverse bool) bool {
	ka := clauseKeyPrefix(a, prefix, reverse)
	kb := clauseKeyPrefix(b, prefix, reverse)
	n := len(ka)
	if len(kb) < n {
		n = len(kb)
	}
	for i := 0; i < n; i++ {
		c := compareValue(block.NewJSON(ka[i]), block.NewJSON(kb[i]))
		if c != 0 {
			if reverse {
				return c > 0
			}
			return c < 0
		}
	}
	return len(ka) < len(kb)
}

// openClause starts iterating clauses[x.clauseAt], dispatching on the
// index kind, and leaves either x.iter set or one document placed
// directly in x.docBuf (the Primary-index single-lookup case).
func (x *IndexRange) openClause(ctx *Context) error {
	c := x.clauses[x.clauseAt]
	switch idx := x.index.(type) {
	case txn.PrimaryIndex:
		var key string
		if b, ok := boundByAttr(c.Bounds, "_key"); ok && b.HasEq {
			key = fmt.Sprintf("%v", b.Eq)
		} else if b, ok := boundByAttr(c.Bounds, "_id"); ok && b.HasEq {
			_, k, err := x.txn.ResolveID(fmt.Sprintf("%v", b.Eq))
			if err != nil {
				return nil
			}
			key = k
		} else {
			return nil
		}
		doc, err := idx.Lookup(key)
		if err != nil {
			return nil
		}
		x.docBuf[0] = doc
		x.docPos, x.docLen = 0, 1
		return nil

	case txn.EdgeIndex:
		if b, ok := boundByAttr(c.Bounds, "_from"); ok && b.HasEq {
			it, err := idx.Iterate(txn.EdgeFrom, fmt.Sprintf("%v", b.Eq))
			if err != nil {
				return err
			}
			x.iter = it
			return nil
		}
		if b, ok := boundByAttr(c.Bounds, "_to"); ok && b.HasEq {
			it, err := idx.Iterate(txn.EdgeTo, fmt.Sprintf("%v", b.Eq))
			if err != nil {
				return err
			}
			x.iter = it
			return nil
		}
		return nil

	case txn.HashIndex:
		key := make([]any, 0, len(x.index.AttributePrefix()))
		for _, attr := range x.index.AttributePrefix() {
			b, ok := boundByAttr(c.Bounds, attr)
			if !ok || !b.HasEq {
				return nil
			}
			key = append(key, b.Eq)
		}
		it, ok, err := idx.Iterate(key)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		x.iter = it
		return nil

	case txn.SkiplistIndex:
		var sc txn.SkiplistCursor
		sc.Reverse = x.reverse
		prefix := x.index.AttributePrefix()
		i := 0
		for ; i < len(prefix); i++ {
			b, ok := boundByAttr(c.Bounds, prefix[i])
			if !ok || !b.HasEq {
				break
			}
			sc.EqPrefix = append(sc.EqPrefix, b.Eq)
		}
		if i < len(prefix) {
			if b, ok := boundByAttr(c.Bounds, prefix[i]); ok {
				sc.Attribute = prefix[i]
				sc.Low, sc.HasLow, sc.LowIncl = b.Low, b.HasLow, b.LowIncl
				sc.High, sc.HasHigh, sc.HighIncl = b.High, b.HasHigh, b.HighIncl
			}
		}
		it, err := idx.Iterate(sc)
		if err != nil {
			return err
		}
		x.iter = it
		return nil
	}
	errorf("indexrange: unrecognized index kind %T for clause %d", x.index, x.clauseAt)
	return fmt.Errorf("operator: unrecognized index kind %T: %w", x.index, ErrIndexNotFound)
}

// refill ensures x.docBuf[x.docPos:x.docLen] has at least one
// unconsumed document, advancing clauses and outer rows as needed.
// It returns false only when the whole operator is exhausted.
func (x *IndexRange) refill(ctx *Context) (bool, error) {
	for {
		if x.docPos < x.docLen {
			return true, nil
		}
		if x.iter != nil {
			n, err := x.iter.Next(x.docBuf)
			if err != nil {
				return false, err
			}
			if n > 0 {
				ctx.Stats.ScannedIndex += int64(n)
				x.docPos, x.docLen = 0, n
				return true, nil
			}
			x.closeIter()
		}
		if x.clauseAt < len(x.clauses) {
			if err := x.openClause(ctx); err != nil {
				return false, err
			}
			x.clauseAt++
			if x.docLen > x.docPos {
				ctx.Stats.ScannedIndex += int64(x.docLen - x.docPos)
			}
			continue
		}
		row, err := x.outer.next(ctx)
		if err != nil {
			return false, err
		}
		if row == nil {
			x.done = true
			return false, nil
		}
		x.curRow = row
		clauses, err := x.specialize(ctx, row)
		if err != nil {
			return false, err
		}
		x.sortClausesForIndex(clauses)
		x.clauses = clauses
		x.clauseAt = 0
	}
}

func (x *IndexRange) grabRow() []block.Value {
	row := make([]block.Value, x.nrRegs)
	for c := 0; c < x.outCol; c++ {
		row[c] = x.curRow.GetValue(0, c).Clone()
	}
	doc := x.docBuf[x.docPos]
	x.docPos++
	row[x.outCol] = block.NewShaped(doc)
	return row
}

func (x *IndexRange) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if x.done && x.docPos >= x.docLen {
		return nil, nil
	}
	out := block.NewItemBlock(x.nrRegs)
	out.SetCollectionTag(x.outCol, x.handle.Tag())
	for out.Rows() < atMost {
		ok, err := x.refill(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		out.AppendRow(x.grabRow())
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(x, out), nil
}

func (x *IndexRange) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	n := 0
	for n < atMost {
		ok, err := x.refill(ctx)
		if err != nil {
			return n, err
		}
		if !ok {
			break
		}
		x.docPos++
		n++
	}
	return n, nil
}

func (x *IndexRange) HasMore(ctx *Context) (bool, error) {
	if x.docPos < x.docLen {
		return true, nil
	}
	return !x.done, nil
}

func (x *IndexRange) Remaining(ctx *Context) (int64, bool) { return 0, false }

func (x *IndexRange) Shutdown(ctx *Context, code int) error {
	x.closeIter()
	return x.in.Shutdown(ctx, code)
}

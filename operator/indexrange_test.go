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
	"testing"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn/memtxn"
)

// constExpr is a literal Expression for tests: it always returns the
// same Value regardless of the row.
type constExpr struct {
	v block.Value
}

func (e constExpr) Execute(rt ScriptRuntime, row Row) (block.Value, error) { return e.v, nil }
func (e constExpr) IsV8() bool                                            { return false }
func (e constExpr) Invalidate()                                           {}

func oneEmptyRowSource() *fixedSource {
	b := block.NewItemBlock(0)
	b.AppendRow(nil)
	return &fixedSource{nrRegs: 0, blocks: []*block.ItemBlock{b}}
}

func TestIndexRangeHashEquality(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"k": "x"})
	col.Seed("2", map[string]any{"k": "y"})
	col.Seed("3", map[string]any{"k": "x"})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")
	idx, err := tx.Index(handle, "hash:k")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "k", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON("x")}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 matching docs, got %d", out.Rows())
	}
	for r := 0; r < out.Rows(); r++ {
		doc := out.GetValue(r, 0).Shaped().Doc
		if doc["k"] != "x" {
			t.Errorf("row %d: want k=x, got %v", r, doc["k"])
		}
	}
	if ctx.Stats.ScannedIndex != 2 {
		t.Errorf("want ScannedIndex=2, got %d", ctx.Stats.ScannedIndex)
	}
}

func TestIndexRangeArrayEqualityExpandsCartesian(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"k": "a"})
	col.Seed("2", map[string]any{"k": "b"})
	col.Seed("3", map[string]any{"k": "c"})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")
	idx, _ := tx.Index(handle, "hash:k")
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "k", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON([]any{"a", "c"})}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 matching docs, got %d", out.Rows())
	}
	got := map[string]bool{}
	for r := 0; r < out.Rows(); r++ {
		got[out.GetValue(r, 0).Shaped().Doc["k"].(string)] = true
	}
	if !got["a"] || !got["c"] {
		t.Errorf("unexpected result set: %#v", got)
	}
}

func TestIndexRangeSkiplistSortsClausesByAttributePrefix(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"g": 1.0, "v": 10.0})
	col.Seed("2", map[string]any{"g": 2.0, "v": 20.0})
	col.Seed("3", map[string]any{"g": 3.0, "v": 30.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")
	idx, err := tx.Index(handle, "skiplist:g,v")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	// The equality template's array is deliberately out of index
	// order (3, 1, 2): without sorting the specialized clauses by the
	// index's attribute prefix, the merged output would come back in
	// this discovery order instead of ascending g order.
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "g", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON([]any{3.0, 1.0, 2.0})}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 3 {
		t.Fatalf("want 3 matching docs, got %d", out.Rows())
	}
	wantG := []float64{1.0, 2.0, 3.0}
	for r := 0; r < out.Rows(); r++ {
		got := out.GetValue(r, 0).Shaped().Doc["g"].(float64)
		if got != wantG[r] {
			t.Errorf("row %d: want g=%v, got %v", r, wantG[r], got)
		}
	}
}

func TestIndexRangeSkiplistSortsClausesReversed(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"g": 1.0, "v": 10.0})
	col.Seed("2", map[string]any{"g": 2.0, "v": 20.0})
	col.Seed("3", map[string]any{"g": 3.0, "v": 30.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")
	idx, _ := tx.Index(handle, "skiplist:g,v")
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "g", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON([]any{1.0, 3.0, 2.0})}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, true, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 3 {
		t.Fatalf("want 3 matching docs, got %d", out.Rows())
	}
	wantG := []float64{3.0, 2.0, 1.0}
	for r := 0; r < out.Rows(); r++ {
		got := out.GetValue(r, 0).Shaped().Doc["g"].(float64)
		if got != wantG[r] {
			t.Errorf("row %d: want g=%v, got %v", r, wantG[r], got)
		}
	}
}

func TestIndexRangeEdgeLookup(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("edges")
	col.Seed("e1", map[string]any{"_from": "v/1", "_to": "v/2"})
	col.Seed("e2", map[string]any{"_from": "v/1", "_to": "v/3"})
	col.Seed("e3", map[string]any{"_from": "v/2", "_to": "v/3"})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("edges")
	idx, err := tx.Index(handle, "edge:_from,_to")
	if err != nil {
		t.Fatalf("Index: %v", err)
	}
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "_from", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON("v/1")}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 matching edges, got %d", out.Rows())
	}
	got := map[string]bool{}
	for r := 0; r < out.Rows(); r++ {
		doc := out.GetValue(r, 0).Shaped().Doc
		if doc["_from"] != "v/1" {
			t.Errorf("row %d: want _from=v/1, got %v", r, doc["_from"])
		}
		got[doc["_to"].(string)] = true
	}
	if !got["v/2"] || !got["v/3"] {
		t.Errorf("unexpected result set: %#v", got)
	}
	if ctx.Stats.ScannedIndex != 2 {
		t.Errorf("want ScannedIndex=2, got %d", ctx.Stats.ScannedIndex)
	}
}

func TestIndexRangeEdgeLookupByTo(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("edges")
	col.Seed("e1", map[string]any{"_from": "v/1", "_to": "v/3"})
	col.Seed("e2", map[string]any{"_from": "v/2", "_to": "v/3"})
	col.Seed("e3", map[string]any{"_from": "v/2", "_to": "v/4"})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("edges")
	idx, _ := tx.Index(handle, "edge:_from,_to")
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "_to", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON("v/3")}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 matching edges, got %d", out.Rows())
	}
	for r := 0; r < out.Rows(); r++ {
		if doc := out.GetValue(r, 0).Shaped().Doc; doc["_to"] != "v/3" {
			t.Errorf("row %d: want _to=v/3, got %v", r, doc["_to"])
		}
	}
}

func TestIndexRangePrimaryLookup(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("42", map[string]any{"v": 1.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")
	idx, _ := tx.Index(handle, "primary")
	templates := []ClauseTemplate{{Attrs: []AttrTemplate{
		{Attribute: "_key", Kind: AttrEq, EqExpr: constExpr{v: block.NewJSON("42")}},
	}}}
	x := NewIndexRange(oneEmptyRowSource(), 1, 0, tx, handle, idx, templates, false, block.RegisterSet{})
	ctx := NewContext(nil)
	x.Initialize(ctx)
	x.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, x)
	out := block.Concatenate(blocks)
	if out.Rows() != 1 {
		t.Fatalf("want 1 doc, got %d", out.Rows())
	}
	if out.GetValue(0, 0).Shaped().Key != "42" {
		t.Errorf("want key 42, got %v", out.GetValue(0, 0).Shaped().Key)
	}
}

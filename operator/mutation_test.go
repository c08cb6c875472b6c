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
	"errors"
	"testing"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
	"github.com/dociq/aqlengine/txn/memtxn"
)

func TestMutationRemove(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"v": 1.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")

	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{rowBlock(1, "1")}}
	m := NewRemove(src, 1, 0, -1, tx, handle, MutationOptions{}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	m.Initialize(ctx)
	m.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, m)
	_ = blocks
	if ctx.Stats.WritesExecuted != 1 {
		t.Fatalf("want 1 write executed, got %d", ctx.Stats.WritesExecuted)
	}
	if _, err := tx.ReadSingle(handle, "1"); err != txn.ErrDocumentNotFound {
		t.Errorf("want document removed, got err=%v", err)
	}
}

func TestMutationInsertWithReturn(t *testing.T) {
	store := memtxn.NewStore()
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")

	doc := map[string]any{"v": 1.0}
	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{rowBlockDoc(doc)}}
	m := NewInsert(src, 2, 0, -1, -1, 1, tx, handle, MutationOptions{}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	m.Initialize(ctx)
	m.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, m)
	out := block.Concatenate(blocks)
	if out.Rows() != 1 {
		t.Fatalf("want 1 row, got %d", out.Rows())
	}
	shaped := out.GetValue(0, 1).Shaped()
	if shaped.Doc["v"] != 1.0 {
		t.Errorf("unexpected returned doc: %#v", shaped.Doc)
	}
	if ctx.Stats.WritesExecuted != 1 {
		t.Fatalf("want 1 write executed, got %d", ctx.Stats.WritesExecuted)
	}
}

func TestMutationIgnoreDocumentNotFound(t *testing.T) {
	store := memtxn.NewStore()
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")

	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{rowBlock(1, "missing")}}
	m := NewRemove(src, 1, 0, -1, tx, handle, MutationOptions{IgnoreDocumentNotFound: true}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	m.Initialize(ctx)
	m.InitializeCursor(ctx, nil, 0)
	drainAll(t, ctx, m)
	if ctx.Stats.WritesIgnored != 1 {
		t.Fatalf("want 1 write ignored, got %d", ctx.Stats.WritesIgnored)
	}
}

func TestMutationUpdateRevisionMismatchFails(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"v": 1.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")

	patch := map[string]any{"v": 2.0, "_rev": "not-the-current-rev"}
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{rowBlock(2, "1", patch)}}
	m := NewUpdate(src, 2, 0, 1, -1, tx, handle, MutationOptions{}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	m.Initialize(ctx)
	m.InitializeCursor(ctx, nil, 0)
	if _, err := m.GetSome(ctx, 1, 10); !errors.Is(err, txn.ErrRevisionMismatch) {
		t.Fatalf("want ErrRevisionMismatch, got %v", err)
	}
	doc, err := tx.ReadSingle(handle, "1")
	if err != nil {
		t.Fatalf("ReadSingle: %v", err)
	}
	if doc.Doc["v"] != 1.0 {
		t.Errorf("want document untouched by the failed write, got v=%v", doc.Doc["v"])
	}
}

func TestMutationUpdateRevisionMismatchIgnored(t *testing.T) {
	store := memtxn.NewStore()
	col := store.Collection("c")
	col.Seed("1", map[string]any{"v": 1.0})
	tx := memtxn.New(store)
	handle, _ := tx.TrxCollection("c")

	patch := map[string]any{"v": 2.0, "_rev": "not-the-current-rev"}
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{rowBlock(2, "1", patch)}}
	opts := MutationOptions{Tx: txn.MutationOptions{Policy: txn.WritePolicy{IgnoreRevisionMismatch: true}}}
	m := NewUpdate(src, 2, 0, 1, -1, tx, handle, opts, false, block.RegisterSet{})
	ctx := NewContext(nil)
	m.Initialize(ctx)
	m.InitializeCursor(ctx, nil, 0)
	drainAll(t, ctx, m)
	if ctx.Stats.WritesExecuted != 1 {
		t.Fatalf("want 1 write executed despite the mismatch, got %d", ctx.Stats.WritesExecuted)
	}
	doc, err := tx.ReadSingle(handle, "1")
	if err != nil {
		t.Fatalf("ReadSingle: %v", err)
	}
	if doc.Doc["v"] != 2.0 {
		t.Errorf("want document updated, got v=%v", doc.Doc["v"])
	}
}

func rowBlockDoc(doc map[string]any) *block.ItemBlock {
	b := block.NewItemBlock(1)
	b.AppendRow([]block.Value{block.NewJSON(doc)})
	return b
}

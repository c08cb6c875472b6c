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
)

// fixedSource serves pre-built blocks one at a time regardless of the
// requested atLeast/atMost, which is enough to drive Sort's
// materialize loop in tests.
type fixedSource struct {
	nrRegs int
	blocks []*block.ItemBlock
	pos    int
}

func (f *fixedSource) NrRegs() int                   { return f.nrRegs }
func (f *fixedSource) RegsToClear() block.RegisterSet { return block.RegisterSet{} }
func (f *fixedSource) Initialize(ctx *Context) error  { return nil }
func (f *fixedSource) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	f.pos = 0
	return nil
}
func (f *fixedSource) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if f.pos >= len(f.blocks) {
		return nil, nil
	}
	b := f.blocks[f.pos]
	f.pos++
	return b, nil
}
func (f *fixedSource) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if f.pos >= len(f.blocks) {
		return 0, nil
	}
	b := f.blocks[f.pos]
	f.pos++
	return b.Rows(), nil
}
func (f *fixedSource) HasMore(ctx *Context) (bool, error)    { return f.pos < len(f.blocks), nil }
func (f *fixedSource) Remaining(ctx *Context) (int64, bool)  { return 0, false }
func (f *fixedSource) Shutdown(ctx *Context, code int) error { return nil }

func rowBlock(nrRegs int, vals ...any) *block.ItemBlock {
	b := block.NewItemBlock(nrRegs)
	row := make([]block.Value, nrRegs)
	for i, v := range vals {
		row[i] = block.NewJSON(v)
	}
	b.AppendRow(row)
	return b
}

func drainAll(t *testing.T, ctx *Context, op Operator) []*block.ItemBlock {
	t.Helper()
	var out []*block.ItemBlock
	for {
		blk, err := op.GetSome(ctx, 1, 10)
		if err != nil {
			t.Fatalf("GetSome: %v", err)
		}
		if blk == nil {
			return out
		}
		out = append(out, blk)
	}
}

func TestSortAscending(t *testing.T) {
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{
		rowBlock(2, "c", 3.0),
		rowBlock(2, "a", 1.0),
		rowBlock(2, "b", 2.0),
	}}
	s := NewSort(src, 2, []SortKey{{Register: 1, Ascending: true}}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	if err := s.Initialize(ctx); err != nil {
		t.Fatalf("Initialize: %v", err)
	}
	if err := s.InitializeCursor(ctx, nil, 0); err != nil {
		t.Fatalf("InitializeCursor: %v", err)
	}
	blocks := drainAll(t, ctx, s)
	if len(blocks) != 1 {
		t.Fatalf("want 1 output block, got %d", len(blocks))
	}
	out := blocks[0]
	if out.Rows() != 3 {
		t.Fatalf("want 3 rows, got %d", out.Rows())
	}
	want := []string{"a", "b", "c"}
	for i, w := range want {
		got := out.GetValue(i, 0).JSON().(string)
		if got != w {
			t.Errorf("row %d: want %q, got %q", i, w, got)
		}
	}
}

func TestSortDescending(t *testing.T) {
	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{
		rowBlock(1, 1.0),
		rowBlock(1, 3.0),
		rowBlock(1, 2.0),
	}}
	s := NewSort(src, 1, []SortKey{{Register: 0, Ascending: false}}, false, block.RegisterSet{})
	ctx := NewContext(nil)
	s.Initialize(ctx)
	s.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, s)
	out := block.Concatenate(blocks)
	want := []float64{3.0, 2.0, 1.0}
	for i, w := range want {
		if got := out.GetValue(i, 0).JSON().(float64); got != w {
			t.Errorf("row %d: want %v, got %v", i, w, got)
		}
	}
}

func TestSortSharedPayloadClonedOncePerIdentity(t *testing.T) {
	shared := rowBlock(2, "x", 9.0)
	// Two rows of one block share column 0's payload via Slice so
	// neither is the sole owner, exercising the clone-cache path.
	wide := shared.Slice(0, 1)
	combined := block.Concatenate([]*block.ItemBlock{shared, wide})
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{combined}}
	s := NewSort(src, 2, []SortKey{{Register: 1, Ascending: true}}, true, block.RegisterSet{})
	ctx := NewContext(nil)
	s.Initialize(ctx)
	s.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, s)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 rows, got %d", out.Rows())
	}
	for r := 0; r < 2; r++ {
		if got := out.GetValue(r, 0).JSON().(string); got != "x" {
			t.Errorf("row %d col 0: want %q, got %q", r, "x", got)
		}
	}
}

func TestSortStableKeepsInputOrderOnTies(t *testing.T) {
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{
		rowBlock(2, "first", 1.0),
		rowBlock(2, "second", 1.0),
		rowBlock(2, "third", 1.0),
	}}
	s := NewSort(src, 2, []SortKey{{Register: 1, Ascending: true}}, true, block.RegisterSet{})
	ctx := NewContext(nil)
	s.Initialize(ctx)
	s.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, s)
	out := block.Concatenate(blocks)
	want := []string{"first", "second", "third"}
	for i, w := range want {
		if got := out.GetValue(i, 0).JSON().(string); got != w {
			t.Errorf("row %d: want %q, got %q", i, w, got)
		}
	}
}

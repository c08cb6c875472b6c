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

package cluster

import (
	"testing"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/cluster/shard"
	"github.com/dociq/aqlengine/operator"
)

// fakeSource serves a fixed sequence of single-row blocks, one GetSome
// call at a time, ignoring atLeast/atMost beyond "give me the next
// block or nil".
type fakeSource struct {
	nrRegs int
	blocks []*block.ItemBlock
	pos    int
}

func (f *fakeSource) Initialize(ctx *operator.Context) error { return nil }
func (f *fakeSource) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	return nil
}
func (f *fakeSource) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if f.pos >= len(f.blocks) {
		return nil, nil
	}
	b := f.blocks[f.pos]
	f.pos++
	return b, nil
}
func (f *fakeSource) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) { return 0, nil }
func (f *fakeSource) HasMore(ctx *operator.Context) (bool, error)                      { return f.pos < len(f.blocks), nil }
func (f *fakeSource) Remaining(ctx *operator.Context) (int64, bool)                    { return 0, false }
func (f *fakeSource) Shutdown(ctx *operator.Context, code int) error                   { return nil }
func (f *fakeSource) NrRegs() int                                                      { return f.nrRegs }
func (f *fakeSource) RegsToClear() block.RegisterSet                                   { return block.RegisterSet{} }

func intRow(nrRegs, v int) *block.ItemBlock {
	b := block.NewItemBlock(nrRegs)
	vals := make([]block.Value, nrRegs)
	for i := range vals {
		vals[i] = block.NewJSON(float64(v))
	}
	b.AppendRow(vals)
	return b
}

func drainOp(t *testing.T, ctx *operator.Context, op operator.Operator) []int {
	var got []int
	for {
		blk, err := op.GetSome(ctx, 1, 10)
		if err != nil {
			t.Fatalf("GetSome: %v", err)
		}
		if blk == nil {
			return got
		}
		for r := 0; r < blk.Rows(); r++ {
			got = append(got, int(blk.GetValue(r, 0).JSON().(float64)))
		}
	}
}

func TestScatterEveryClientSeesEveryRow(t *testing.T) {
	src := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{intRow(1, 1), intRow(1, 2), intRow(1, 3)}}
	s := NewScatter(src, 1, 2)
	ctx := operator.NewContext(nil)
	s.Initialize(ctx)

	c0 := s.Client(0)
	c1 := s.Client(1)

	got0 := drainOp(t, ctx, c0)
	got1 := drainOp(t, ctx, c1)

	want := []int{1, 2, 3}
	if !eq(got0, want) || !eq(got1, want) {
		t.Fatalf("want both clients to see %v, got %v and %v", want, got0, got1)
	}
}

func TestDistributeRoutesEachRowOnce(t *testing.T) {
	src := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{
		rowDoc("a"), rowDoc("b"), rowDoc("c"), rowDoc("d"),
	}}
	router := shard.NewRouter(fixedLocator{"c": {"region"}}, "c", 2, 7, 11)
	d := NewDistribute(src, 1, 0, router, 2)
	ctx := operator.NewContext(nil)
	d.Initialize(ctx)

	c0 := drainStrings(t, ctx, d.Client(0))
	c1 := drainStrings(t, ctx, d.Client(1))

	total := len(c0) + len(c1)
	if total != 4 {
		t.Fatalf("want 4 rows total routed, got %d (c0=%v c1=%v)", total, c0, c1)
	}
}

func TestGatherSortedMerge(t *testing.T) {
	a := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{intRow(1, 1), intRow(1, 3), intRow(1, 5)}}
	b := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{intRow(1, 2), intRow(1, 4), intRow(1, 6)}}
	g := NewGather([]operator.Operator{a, b}, 1, []SortKey{{Register: 0, Ascending: true}})
	ctx := operator.NewContext(nil)
	g.Initialize(ctx)
	got := drainOp(t, ctx, g)
	want := []int{1, 2, 3, 4, 5, 6}
	if !eq(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

func TestGatherConcat(t *testing.T) {
	a := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{intRow(1, 1), intRow(1, 2)}}
	b := &fakeSource{nrRegs: 1, blocks: []*block.ItemBlock{intRow(1, 3)}}
	g := NewGather([]operator.Operator{a, b}, 1, nil)
	ctx := operator.NewContext(nil)
	g.Initialize(ctx)
	got := drainOp(t, ctx, g)
	want := []int{1, 2, 3}
	if !eq(got, want) {
		t.Fatalf("want %v, got %v", want, got)
	}
}

type fixedLocator map[string][]string

func (f fixedLocator) ShardKeys(collection string) []string { return f[collection] }

func rowDoc(region string) *block.ItemBlock {
	b := block.NewItemBlock(1)
	b.AppendRow([]block.Value{block.NewJSON(map[string]any{"region": region})})
	return b
}

func drainStrings(t *testing.T, ctx *operator.Context, op operator.Operator) []string {
	var got []string
	for {
		blk, err := op.GetSome(ctx, 1, 10)
		if err != nil {
			t.Fatalf("GetSome: %v", err)
		}
		if blk == nil {
			return got
		}
		for r := 0; r < blk.Rows(); r++ {
			doc, _ := blk.GetValue(r, 0).JSON().(map[string]any)
			got = append(got, doc["region"].(string))
		}
	}
}

func eq(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

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

func TestCollectCountGroupsBySortedKey(t *testing.T) {
	// Pre-sorted on register 0: groups "a" (x2), "b" (x1).
	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{
		rowBlock(1, "a"),
		rowBlock(1, "a"),
		rowBlock(1, "b"),
	}}
	c := NewCollect(src, 2, []int{0}, []int{0}, CollectCount, 1, nil, nil, block.RegisterSet{})
	ctx := NewContext(nil)
	c.Initialize(ctx)
	c.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, c)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 groups, got %d", out.Rows())
	}
	wantKey := []string{"a", "b"}
	wantCount := []float64{2, 1}
	for i := range wantKey {
		if got := out.GetValue(i, 0).JSON().(string); got != wantKey[i] {
			t.Errorf("row %d key: want %q, got %q", i, wantKey[i], got)
		}
		if got := out.GetValue(i, 1).JSON().(float64); got != wantCount[i] {
			t.Errorf("row %d count: want %v, got %v", i, wantCount[i], got)
		}
	}
}

func TestCollectCountEmptyTotalAggregation(t *testing.T) {
	src := &fixedSource{nrRegs: 0, blocks: nil}
	c := NewCollect(src, 1, nil, nil, CollectCount, 0, nil, nil, block.RegisterSet{})
	ctx := NewContext(nil)
	c.Initialize(ctx)
	c.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, c)
	out := block.Concatenate(blocks)
	if out.Rows() != 1 {
		t.Fatalf("want 1 row for empty total aggregation, got %d", out.Rows())
	}
	if got := out.GetValue(0, 0).JSON().(float64); got != 0 {
		t.Errorf("want count 0, got %v", got)
	}
}

func TestCollectIntoVars(t *testing.T) {
	src := &fixedSource{nrRegs: 2, blocks: []*block.ItemBlock{
		rowBlock(2, "a", 1.0),
		rowBlock(2, "a", 2.0),
	}}
	c := NewCollect(src, 2, []int{0}, []int{0}, CollectIntoVars, 1,
		[]KeepVar{{Register: 1, Name: "v"}}, nil, block.RegisterSet{})
	ctx := NewContext(nil)
	c.Initialize(ctx)
	c.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, c)
	out := block.Concatenate(blocks)
	if out.Rows() != 1 {
		t.Fatalf("want 1 group, got %d", out.Rows())
	}
	arr, ok := out.GetValue(0, 1).JSON().([]any)
	if !ok || len(arr) != 2 {
		t.Fatalf("want 2-element array, got %#v", out.GetValue(0, 1).JSON())
	}
	first, ok := arr[0].(map[string]any)
	if !ok || first["v"] != 1.0 {
		t.Errorf("unexpected first element: %#v", arr[0])
	}
}

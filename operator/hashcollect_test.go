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

func TestHashCollectGroupsUnsortedInput(t *testing.T) {
	src := &fixedSource{nrRegs: 1, blocks: []*block.ItemBlock{
		rowBlock(1, "b"),
		rowBlock(1, "a"),
		rowBlock(1, "b"),
		rowBlock(1, "a"),
		rowBlock(1, "a"),
	}}
	h := NewHashCollect(src, 2, []int{0}, []int{0}, CollectCount, 1, nil, nil, block.RegisterSet{})
	ctx := NewContext(nil)
	h.Initialize(ctx)
	h.InitializeCursor(ctx, nil, 0)
	blocks := drainAll(t, ctx, h)
	out := block.Concatenate(blocks)
	if out.Rows() != 2 {
		t.Fatalf("want 2 groups, got %d", out.Rows())
	}
	counts := map[string]float64{}
	for r := 0; r < out.Rows(); r++ {
		key := out.GetValue(r, 0).JSON().(string)
		counts[key] = out.GetValue(r, 1).JSON().(float64)
	}
	if counts["a"] != 3 || counts["b"] != 2 {
		t.Errorf("unexpected counts: %#v", counts)
	}
}

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

import "github.com/dociq/aqlengine/block"

// Filter pulls input blocks and keeps only the rows whose filter
// register holds a truthy value (spec.md §4.6). Rejected rows are
// counted in ctx.Stats.Filtered.
type Filter struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	filterReg   int

	pending *block.ItemBlock // a block whose passing rows haven't all been emitted yet
	pos     int              // offset into pending already emitted
	done    bool
}

// NewFilter builds a Filter operator reading its predicate from
// filterReg (set by an upstream Calculation).
func NewFilter(in Operator, nrRegs, filterReg int, regsToClear block.RegisterSet) *Filter {
	return &Filter{in: in, nrRegs: nrRegs, filterReg: filterReg, regsToClear: regsToClear}
}

func (f *Filter) NrRegs() int                   { return f.nrRegs }
func (f *Filter) RegsToClear() block.RegisterSet { return f.regsToClear }

func (f *Filter) Initialize(ctx *Context) error { return f.in.Initialize(ctx) }

func (f *Filter) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	f.done = false
	f.pending = nil
	f.pos = 0
	return f.in.InitializeCursor(ctx, items, pos)
}

func truthy(v block.Value) bool {
	if v.Kind() != block.KindJSON {
		return false
	}
	switch x := v.JSON().(type) {
	case bool:
		return x
	case nil:
		return false
	case float64:
		return x != 0
	case string:
		return x != ""
	default:
		return true
	}
}

// chosen computes the passing-row indices of blk.
func (f *Filter) chosen(blk *block.ItemBlock) []int {
	var idx []int
	for r := 0; r < blk.Rows(); r++ {
		if truthy(blk.GetValue(r, f.filterReg)) {
			idx = append(idx, r)
		}
	}
	return idx
}

// fillOne pulls the next input block and materializes its passing
// rows (via StealRows), or returns nil if input is exhausted.
func (f *Filter) fillOne(ctx *Context) (*block.ItemBlock, error) {
	for {
		blk, err := f.in.GetSome(ctx, 1, DefaultBatchSize)
		if err != nil {
			return nil, err
		}
		if blk == nil {
			return nil, nil
		}
		idx := f.chosen(blk)
		ctx.Stats.Filtered += int64(blk.Rows() - len(idx))
		if len(idx) == 0 {
			continue // drop the block and pull again
		}
		return blk.StealRows(idx), nil
	}
}

func (f *Filter) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	var collected []*block.ItemBlock
	have := 0
	for have < atMost {
		if f.pending == nil {
			if f.done {
				break
			}
			blk, err := f.fillOne(ctx)
			if err != nil {
				return nil, err
			}
			if blk == nil {
				f.done = true
				break
			}
			f.pending = blk
			f.pos = 0
		}
		remaining := f.pending.Rows() - f.pos
		need := atMost - have
		if remaining > need {
			collected = append(collected, f.pending.Slice(f.pos, f.pos+need))
			f.pos += need
			have += need
		} else {
			if f.pos == 0 {
				collected = append(collected, f.pending)
			} else {
				collected = append(collected, f.pending.Slice(f.pos, f.pending.Rows()))
			}
			have += remaining
			f.pending = nil
			f.pos = 0
		}
	}
	if len(collected) == 0 {
		return nil, nil
	}
	var out *block.ItemBlock
	if len(collected) == 1 {
		out = collected[0]
	} else {
		out = block.Concatenate(collected)
	}
	return clearKilled(f, out), nil
}

func (f *Filter) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	skipped := 0
	for skipped < atMost {
		if err := ctx.ThrowIfKilled(); err != nil {
			return skipped, err
		}
		if f.pending == nil {
			if f.done {
				break
			}
			blk, err := f.fillOne(ctx)
			if err != nil {
				return skipped, err
			}
			if blk == nil {
				f.done = true
				break
			}
			f.pending = blk
			f.pos = 0
		}
		remaining := f.pending.Rows() - f.pos
		need := atMost - skipped
		if remaining > need {
			f.pos += need
			skipped += need
		} else {
			skipped += remaining
			f.pending = nil
			f.pos = 0
		}
	}
	return skipped, nil
}

func (f *Filter) HasMore(ctx *Context) (bool, error) {
	if f.pending != nil && f.pos < f.pending.Rows() {
		return true, nil
	}
	if f.done {
		return false, nil
	}
	return f.in.HasMore(ctx)
}

func (f *Filter) Remaining(ctx *Context) (int64, bool) { return 0, false }

func (f *Filter) Shutdown(ctx *Context, code int) error { return f.in.Shutdown(ctx, code) }

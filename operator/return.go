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

// Return strips all columns but the designated return column
// (spec.md §4.12). It steals the column into a single-column output
// block and propagates the source column's collection tag.
type Return struct {
	in      Operator
	retReg  int
	cursor  *blockCursor
}

// NewReturn builds a Return operator. The output block always has
// exactly one column.
func NewReturn(in Operator, retReg int) *Return {
	return &Return{in: in, retReg: retReg, cursor: newBlockCursor(in)}
}

func (r *Return) NrRegs() int                   { return 1 }
func (r *Return) RegsToClear() block.RegisterSet { return block.RegisterSet{} }

func (r *Return) Initialize(ctx *Context) error { return r.in.Initialize(ctx) }

func (r *Return) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	r.cursor = newBlockCursor(r.in)
	return r.in.InitializeCursor(ctx, items, pos)
}

func (r *Return) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	blk, err := r.cursor.fill(ctx, atLeast, atMost)
	if err != nil || blk == nil {
		return nil, err
	}
	out := block.NewItemBlock(1)
	out.SetCollectionTag(0, blk.CollectionTag(r.retReg))
	for row := 0; row < blk.Rows(); row++ {
		v := blk.StealValue(row, r.retReg)
		out.AppendRow([]block.Value{v})
	}
	return out, nil
}

func (r *Return) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	return r.cursor.skip(ctx, atLeast, atMost)
}

func (r *Return) HasMore(ctx *Context) (bool, error) { return r.cursor.hasMore(ctx) }

func (r *Return) Remaining(ctx *Context) (int64, bool) { return r.in.Remaining(ctx) }

func (r *Return) Shutdown(ctx *Context, code int) error { return r.in.Shutdown(ctx, code) }

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

// Calculation evaluates an expression against each input row, writing
// the result into the output register (spec.md §4.7). Reference mode
// is detected once at construction: when Expr is a VariableRef, the
// column (and its collection tag) is copied instead of re-evaluated.
type Calculation struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	outReg      int
	expr        Expression
	refReg      int // valid only when ref
	ref         bool
	condReg     int // >= 0 if guarded
	hasCond     bool

	cursor *blockCursor
}

// NewCalculation builds a Calculation operator. If condReg >= 0, the
// expression is only evaluated when that register is truthy;
// otherwise a null literal is written without evaluating (§4.7).
func NewCalculation(in Operator, nrRegs, outReg int, expr Expression, condReg int, regsToClear block.RegisterSet) *Calculation {
	c := &Calculation{in: in, nrRegs: nrRegs, outReg: outReg, expr: expr, regsToClear: regsToClear, cursor: newBlockCursor(in)}
	if vr, ok := expr.(VariableRef); ok {
		c.ref = true
		c.refReg = vr.RefRegister()
	}
	if condReg >= 0 {
		c.hasCond = true
		c.condReg = condReg
	}
	return c
}

func (c *Calculation) NrRegs() int                   { return c.nrRegs }
func (c *Calculation) RegsToClear() block.RegisterSet { return c.regsToClear }

func (c *Calculation) Initialize(ctx *Context) error { return c.in.Initialize(ctx) }

func (c *Calculation) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	c.cursor = newBlockCursor(c.in)
	return c.in.InitializeCursor(ctx, items, pos)
}

func (c *Calculation) evalRow(ctx *Context, blk *block.ItemBlock, r int) (block.Value, error) {
	if c.hasCond && !truthy(blk.GetValue(r, c.condReg)) {
		return block.NewJSON(nil), nil
	}
	if c.ref {
		return blk.GetValue(r, c.refReg).Clone(), nil
	}
	return Eval(c.expr, ctx.Runtime, Row{Block: blk, Index: r})
}

func (c *Calculation) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	blk, err := c.cursor.fill(ctx, atLeast, atMost)
	if err != nil || blk == nil {
		return nil, err
	}
	if c.ref {
		// reference mode also propagates the source column's
		// collection tag, since it is effectively a column alias.
		blk.SetCollectionTag(c.outReg, blk.CollectionTag(c.refReg))
	}
	for r := 0; r < blk.Rows(); r++ {
		v, err := c.evalRow(ctx, blk, r)
		if err != nil {
			return nil, err
		}
		blk.SetValue(r, c.outReg, v)
	}
	return clearKilled(c, blk), nil
}

func (c *Calculation) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	return c.cursor.skip(ctx, atLeast, atMost)
}

func (c *Calculation) HasMore(ctx *Context) (bool, error) { return c.cursor.hasMore(ctx) }

func (c *Calculation) Remaining(ctx *Context) (int64, bool) { return c.in.Remaining(ctx) }

func (c *Calculation) Shutdown(ctx *Context, code int) error { return c.in.Shutdown(ctx, code) }

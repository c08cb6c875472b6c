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

// CollectMode selects what Collect writes into its group-output
// register (spec.md §4.10's three modes).
type CollectMode int

const (
	// CollectCount writes the number of rows in the group.
	CollectCount CollectMode = iota
	// CollectIntoVars writes a JSON array of objects, one per group
	// row, built from KeepVars.
	CollectIntoVars
	// CollectIntoExpr writes a JSON array of IntoExpr's per-row value.
	CollectIntoExpr
)

// KeepVar names one input register retained per row under Name when
// Collect is in CollectIntoVars mode.
type KeepVar struct {
	Register int
	Name     string
}

// Collect implements streaming group-by over input pre-sorted on the
// grouping columns (spec.md §4.10). GroupRegs/OutRegs are parallel:
// GroupRegs[i] is compared between rows to detect a group boundary,
// and its value is copied into OutRegs[i] of the emitted row.
type Collect struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet

	groupRegs []int
	outRegs   []int

	mode     CollectMode
	outReg   int
	keepVars []KeepVar
	intoExpr Expression

	rows      *rowCursor
	haveGroup bool
	keyVals   []block.Value
	count     int64
	objects   []map[string]any
	values    []any

	sawAnyInput bool
	done        bool
}

// NewCollect builds a Collect operator. For CollectCount, keepVars and
// intoExpr are ignored. For CollectIntoVars, keepVars lists the
// registers retained per row. For CollectIntoExpr, intoExpr is
// evaluated once per row and its value retained.
func NewCollect(in Operator, nrRegs int, groupRegs, outRegs []int, mode CollectMode, outReg int, keepVars []KeepVar, intoExpr Expression, regsToClear block.RegisterSet) *Collect {
	return &Collect{
		in: in, nrRegs: nrRegs, regsToClear: regsToClear,
		groupRegs: groupRegs, outRegs: outRegs,
		mode: mode, outReg: outReg, keepVars: keepVars, intoExpr: intoExpr,
	}
}

func (c *Collect) NrRegs() int                   { return c.nrRegs }
func (c *Collect) RegsToClear() block.RegisterSet { return c.regsToClear }

func (c *Collect) Initialize(ctx *Context) error { return c.in.Initialize(ctx) }

func (c *Collect) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	c.rows = newRowCursor(c.in)
	c.haveGroup = false
	c.keyVals = nil
	c.count = 0
	c.objects = nil
	c.values = nil
	c.sawAnyInput = false
	c.done = false
	return c.in.InitializeCursor(ctx, items, pos)
}

func (c *Collect) sameKey(row *block.ItemBlock) bool {
	for i, reg := range c.groupRegs {
		if compareValue(c.keyVals[i], row.GetValue(0, reg)) != 0 {
			return false
		}
	}
	return true
}

func (c *Collect) startGroup(ctx *Context, row *block.ItemBlock) {
	c.keyVals = make([]block.Value, len(c.groupRegs))
	for i, reg := range c.groupRegs {
		c.keyVals[i] = row.GetValue(0, reg).Clone()
	}
	c.count = 0
	c.objects = nil
	c.values = nil
	c.accumulate(ctx, row)
}

func (c *Collect) accumulate(ctx *Context, row *block.ItemBlock) {
	c.count++
	switch c.mode {
	case CollectIntoVars:
		obj := make(map[string]any, len(c.keepVars))
		for _, kv := range c.keepVars {
			obj[kv.Name] = row.GetValue(0, kv.Register).Native()
		}
		c.objects = append(c.objects, obj)
	case CollectIntoExpr:
		v, err := Eval(c.intoExpr, runtimeOf(ctx), Row{Block: row, Index: 0})
		if err == nil {
			c.values = append(c.values, v.Native())
		}
	}
}

func runtimeOf(ctx *Context) ScriptRuntime {
	if ctx == nil {
		return nil
	}
	return ctx.Runtime
}

func (c *Collect) emit(nrRegs int) []block.Value {
	row := make([]block.Value, nrRegs)
	for i, reg := range c.outRegs {
		row[reg] = c.keyVals[i]
	}
	switch c.mode {
	case CollectCount:
		row[c.outReg] = block.NewJSON(float64(c.count))
	case CollectIntoVars:
		arr := make([]any, len(c.objects))
		for i, o := range c.objects {
			arr[i] = o
		}
		row[c.outReg] = block.NewJSON(arr)
	case CollectIntoExpr:
		arr := append([]any(nil), c.values...)
		row[c.outReg] = block.NewJSON(arr)
	}
	c.haveGroup = false
	return row
}

// emitEmptyTotal builds the single row spec.md §4.10 says a total
// aggregation (no group columns) over zero input rows still emits.
func (c *Collect) emitEmptyTotal(nrRegs int) []block.Value {
	c.keyVals = nil
	c.count = 0
	c.objects = nil
	c.values = nil
	return c.emit(nrRegs)
}

func (c *Collect) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if c.done {
		return nil, nil
	}
	out := block.NewItemBlock(c.nrRegs)
	for out.Rows() < atMost {
		row, err := c.rows.next(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			if c.haveGroup {
				out.AppendRow(c.emit(c.nrRegs))
			} else if len(c.groupRegs) == 0 && !c.sawAnyInput {
				out.AppendRow(c.emitEmptyTotal(c.nrRegs))
			}
			c.done = true
			break
		}
		c.sawAnyInput = true
		switch {
		case !c.haveGroup:
			c.startGroup(ctx, row)
			c.haveGroup = true
		case c.sameKey(row):
			c.accumulate(ctx, row)
		default:
			finished := c.emit(c.nrRegs)
			c.startGroup(ctx, row)
			c.haveGroup = true
			out.AppendRow(finished)
		}
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(c, out), nil
}

func (c *Collect) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		blk, err := c.GetSome(ctx, 1, 1)
		if err != nil {
			return n, err
		}
		if blk == nil {
			break
		}
		n += blk.Rows()
	}
	return n, nil
}

func (c *Collect) HasMore(ctx *Context) (bool, error) {
	if c.done {
		return false, nil
	}
	return true, nil
}

func (c *Collect) Remaining(ctx *Context) (int64, bool) { return 0, false }

func (c *Collect) Shutdown(ctx *Context, code int) error { return c.in.Shutdown(ctx, code) }

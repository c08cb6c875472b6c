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
	"fmt"

	"github.com/dociq/aqlengine/block"
)

// EnumerateList iterates a value bound in an input register: a JSON
// array, a Range (numeric iteration), or a DocVec (concatenated rows
// of its contained blocks), per spec.md §4.4.
type EnumerateList struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	listReg     int // input register holding the list-like value
	outCol      int // output register receiving each element

	outer *rowCursor
	cur   *block.ItemBlock // current outer row snapshot
	val   block.Value
	index int // position within an array or Range
	// DocVec cursor
	blockIdx, blockOffset int
	done                  bool
}

// NewEnumerateList builds an EnumerateList operator.
func NewEnumerateList(in Operator, nrRegs, listReg, outCol int, regsToClear block.RegisterSet) *EnumerateList {
	return &EnumerateList{in: in, nrRegs: nrRegs, listReg: listReg, outCol: outCol, regsToClear: regsToClear, outer: newRowCursor(in)}
}

func (e *EnumerateList) NrRegs() int                   { return e.nrRegs }
func (e *EnumerateList) RegsToClear() block.RegisterSet { return e.regsToClear }

func (e *EnumerateList) Initialize(ctx *Context) error { return e.in.Initialize(ctx) }

func (e *EnumerateList) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	e.done = false
	e.cur = nil
	e.val = block.Value{}
	e.index, e.blockIdx, e.blockOffset = 0, 0, 0
	e.outer = newRowCursor(e.in)
	return e.in.InitializeCursor(ctx, items, pos)
}

// advance moves to the next outer row and validates/prepares its list
// value. It returns false once the operator is fully exhausted.
func (e *EnumerateList) advance(ctx *Context) (bool, error) {
	outer, err := e.outer.next(ctx)
	if err != nil {
		return false, err
	}
	if outer == nil {
		e.done = true
		return false, nil
	}
	e.cur = outer
	e.val = outer.GetValue(0, e.listReg)
	e.index, e.blockIdx, e.blockOffset = 0, 0, 0
	switch e.val.Kind() {
	case block.KindJSON:
		if _, ok := e.val.JSON().([]any); !ok {
			return false, fmt.Errorf("%w: EnumerateList on non-array JSON value", ErrArrayExpected)
		}
	case block.KindRange, block.KindDocVec:
		// fine
	default:
		return false, fmt.Errorf("%w: EnumerateList on %s value", ErrArrayExpected, e.val.Kind())
	}
	return true, nil
}

// exhausted reports whether the current outer row's list has no more
// elements to offer.
func (e *EnumerateList) exhausted() bool {
	switch e.val.Kind() {
	case block.KindJSON:
		arr := e.val.JSON().([]any)
		return e.index >= len(arr)
	case block.KindRange:
		r := e.val.RangeVal()
		return r.Low+int64(e.index) >= r.High
	case block.KindDocVec:
		blocks := e.val.DocVecVal().Blocks
		for e.blockIdx < len(blocks) && e.blockOffset >= blocks[e.blockIdx].Rows() {
			e.blockIdx++
			e.blockOffset = 0
		}
		return e.blockIdx >= len(blocks)
	}
	return true
}

func (e *EnumerateList) nextElement() block.Value {
	switch e.val.Kind() {
	case block.KindJSON:
		arr := e.val.JSON().([]any)
		v := block.NewJSON(arr[e.index])
		e.index++
		return v
	case block.KindRange:
		r := e.val.RangeVal()
		v := block.NewJSON(float64(r.Low + int64(e.index)))
		e.index++
		return v
	case block.KindDocVec:
		blocks := e.val.DocVecVal().Blocks
		row := blocks[e.blockIdx].Slice(e.blockOffset, e.blockOffset+1)
		e.blockOffset++
		if row.NrRegs() == 1 {
			return row.GetValue(0, 0).Clone()
		}
		return block.NewDocVec([]*block.ItemBlock{row})
	}
	return block.Value{}
}

func (e *EnumerateList) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if e.done {
		return nil, nil
	}
	out := block.NewItemBlock(e.nrRegs)
	for out.Rows() < atMost {
		if e.cur == nil || e.exhausted() {
			ok, err := e.advance(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			continue
		}
		row := make([]block.Value, e.nrRegs)
		for c := 0; c < e.outCol; c++ {
			row[c] = e.cur.GetValue(0, c).Clone()
		}
		row[e.outCol] = e.nextElement()
		out.AppendRow(row)
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(e, out), nil
}

func (e *EnumerateList) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		if err := ctx.ThrowIfKilled(); err != nil {
			return n, err
		}
		if e.done {
			break
		}
		if e.cur == nil || e.exhausted() {
			ok, err := e.advance(ctx)
			if err != nil {
				return n, err
			}
			if !ok {
				break
			}
			continue
		}
		e.nextElement()
		n++
	}
	return n, nil
}

func (e *EnumerateList) HasMore(ctx *Context) (bool, error) {
	if e.done {
		return false, nil
	}
	if e.cur != nil && !e.exhausted() {
		return true, nil
	}
	more, err := e.in.HasMore(ctx)
	return more, err
}

func (e *EnumerateList) Remaining(ctx *Context) (int64, bool) { return 0, false }

func (e *EnumerateList) Shutdown(ctx *Context, code int) error { return e.in.Shutdown(ctx, code) }

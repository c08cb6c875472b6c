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

// Subquery evaluates its Root sub-plan once per outer row, accumulates
// the blocks it produces into a DocVec value, and writes that into
// the outer row's output register (spec.md §4.8). The subquery's
// Initialize/Shutdown run once, not per row.
//
// Const defaults to false: per the §9 design note, the original
// source stubbed "subqueryIsConst" as always false with a TODO, so a
// re-implementation should default to re-evaluation and only treat it
// as const when the planner explicitly opts in (SPEC_FULL.md §6).
type Subquery struct {
	in          Operator
	Root        Operator
	nrRegs      int
	regsToClear block.RegisterSet
	outReg      int
	Const       bool

	outer    *rowCursor
	done     bool
	evalOnce bool
	cached   block.Value
}

// NewSubquery builds a Subquery operator.
func NewSubquery(in, root Operator, nrRegs, outReg int, regsToClear block.RegisterSet) *Subquery {
	return &Subquery{in: in, Root: root, nrRegs: nrRegs, outReg: outReg, regsToClear: regsToClear, outer: newRowCursor(in)}
}

func (s *Subquery) NrRegs() int                   { return s.nrRegs }
func (s *Subquery) RegsToClear() block.RegisterSet { return s.regsToClear }

func (s *Subquery) Initialize(ctx *Context) error {
	if err := s.in.Initialize(ctx); err != nil {
		return err
	}
	return s.Root.Initialize(ctx)
}

func (s *Subquery) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	s.done = false
	s.evalOnce = false
	s.outer = newRowCursor(s.in)
	return s.in.InitializeCursor(ctx, items, pos)
}

// runSubquery resets Root's cursor to outerRow and drains it fully
// into a DocVec value.
func (s *Subquery) runSubquery(ctx *Context, outerRow *block.ItemBlock) (block.Value, error) {
	if err := s.Root.InitializeCursor(ctx, outerRow, 0); err != nil {
		return block.Value{}, err
	}
	var blocks []*block.ItemBlock
	for {
		blk, err := s.Root.GetSome(ctx, 1, DefaultBatchSize)
		if err != nil {
			return block.Value{}, err
		}
		if blk == nil {
			break
		}
		blocks = append(blocks, blk)
	}
	return block.NewDocVec(blocks), nil
}

func (s *Subquery) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if s.done {
		return nil, nil
	}
	out := block.NewItemBlock(s.nrRegs)
	for out.Rows() < atMost {
		outer, err := s.outer.next(ctx)
		if err != nil {
			return nil, err
		}
		if outer == nil {
			s.done = true
			break
		}
		// Capture the passthrough columns before runSubquery, which
		// binds outer to the inner plan's leaf Singleton and steals
		// its registers.
		row := make([]block.Value, s.nrRegs)
		for c := 0; c < s.outReg; c++ {
			row[c] = outer.GetValue(0, c).Clone()
		}
		var result block.Value
		if s.Const && s.evalOnce {
			result = s.cached
		} else {
			result, err = s.runSubquery(ctx, outer)
			if err != nil {
				return nil, err
			}
			if s.Const {
				s.cached = result
				s.evalOnce = true
			}
		}
		row[s.outReg] = result
		out.AppendRow(row)
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(s, out), nil
}

func (s *Subquery) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		if err := ctx.ThrowIfKilled(); err != nil {
			return n, err
		}
		outer, err := s.outer.next(ctx)
		if err != nil {
			return n, err
		}
		if outer == nil {
			s.done = true
			break
		}
		if !(s.Const && s.evalOnce) {
			result, err := s.runSubquery(ctx, outer)
			if err != nil {
				return n, err
			}
			if s.Const {
				s.cached = result
				s.evalOnce = true
			}
		}
		n++
	}
	return n, nil
}

func (s *Subquery) HasMore(ctx *Context) (bool, error) {
	if s.done {
		return false, nil
	}
	return s.in.HasMore(ctx)
}

func (s *Subquery) Remaining(ctx *Context) (int64, bool) { return s.in.Remaining(ctx) }

func (s *Subquery) Shutdown(ctx *Context, code int) error {
	err1 := s.Root.Shutdown(ctx, code)
	err2 := s.in.Shutdown(ctx, code)
	if err1 != nil {
		return err1
	}
	return err2
}

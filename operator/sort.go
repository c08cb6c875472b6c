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
	"golang.org/x/exp/slices"

	"github.com/dociq/aqlengine/block"
)

// SortKey names one column of the sort's comparison key and its
// direction.
type SortKey struct {
	Register  int
	Ascending bool
}

// coord addresses a single row inside Sort's materialized buffer.
type coord struct {
	blockIdx int
	rowIdx   int
}

// Sort fully materializes its input, orders it by Keys, and replays
// it in the new order (spec.md §4.9). It is a blocking operator: the
// first GetSome/SkipSome call after InitializeCursor drains the input
// completely before producing anything.
//
// Replay steals a value out of its source slot when the slot is the
// payload's sole owner, and otherwise clones it once per distinct
// payload and Retains the clone for any further row that shares it —
// this mirrors how Slice/Steal already decide between aliasing and
// copying elsewhere in this package, just applied to a reordering
// instead of a pass-through.
type Sort struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	keys        []SortKey
	stable      bool

	materialized bool
	blocks       []*block.ItemBlock
	order        []coord
	pos          int
	cloneCache   map[any]block.Value
}

// NewSort builds a Sort operator. stable requests that rows comparing
// equal under keys retain their input order.
func NewSort(in Operator, nrRegs int, keys []SortKey, stable bool, regsToClear block.RegisterSet) *Sort {
	return &Sort{in: in, nrRegs: nrRegs, keys: keys, stable: stable, regsToClear: regsToClear}
}

func (s *Sort) NrRegs() int                   { return s.nrRegs }
func (s *Sort) RegsToClear() block.RegisterSet { return s.regsToClear }

func (s *Sort) Initialize(ctx *Context) error { return s.in.Initialize(ctx) }

func (s *Sort) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	s.materialized = false
	s.blocks = nil
	s.order = nil
	s.pos = 0
	s.cloneCache = nil
	return s.in.InitializeCursor(ctx, items, pos)
}

func (s *Sort) materialize(ctx *Context) error {
	if s.materialized {
		return nil
	}
	for {
		blk, err := s.in.GetSome(ctx, 1, DefaultBatchSize)
		if err != nil {
			return err
		}
		if blk == nil {
			break
		}
		bi := len(s.blocks)
		s.blocks = append(s.blocks, blk)
		for r := 0; r < blk.Rows(); r++ {
			s.order = append(s.order, coord{blockIdx: bi, rowIdx: r})
		}
	}
	less := func(a, b coord) bool { return s.less(a, b) }
	if s.stable {
		slices.SortStableFunc(s.order, less)
	} else {
		slices.SortFunc(s.order, less)
	}
	s.cloneCache = make(map[any]block.Value)
	s.materialized = true
	return nil
}

func (s *Sort) less(a, b coord) bool {
	for _, k := range s.keys {
		va := s.blocks[a.blockIdx].GetValue(a.rowIdx, k.Register)
		vb := s.blocks[b.blockIdx].GetValue(b.rowIdx, k.Register)
		c := compareValue(va, vb)
		if !k.Ascending {
			c = -c
		}
		if c != 0 {
			return c < 0
		}
	}
	return false
}

// take returns the value for coordinate c's column, stealing it if
// this slot is the sole owner of its payload, and otherwise serving a
// cached clone (retained a second time if another row already drew
// the same clone).
func (s *Sort) take(c coord, col int) block.Value {
	blk := s.blocks[c.blockIdx]
	v := blk.GetValue(c.rowIdx, col)
	if v.SoleOwner() {
		return blk.StealValue(c.rowIdx, col)
	}
	id, shareable := v.Identity()
	if !shareable {
		return v.Clone()
	}
	if cached, ok := s.cloneCache[id]; ok {
		return cached.Retain()
	}
	cloned := v.Clone()
	s.cloneCache[id] = cloned
	return cloned.Retain()
}

func (s *Sort) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if err := s.materialize(ctx); err != nil {
		return nil, err
	}
	if s.pos >= len(s.order) {
		return nil, nil
	}
	out := block.NewItemBlock(s.nrRegs)
	for c := 0; c < s.nrRegs; c++ {
		out.SetCollectionTag(c, s.blocks[0].CollectionTag(c))
	}
	for s.pos < len(s.order) && out.Rows() < atMost {
		crd := s.order[s.pos]
		s.pos++
		row := make([]block.Value, s.nrRegs)
		for c := 0; c < s.nrRegs; c++ {
			row[c] = s.take(crd, c)
		}
		out.AppendRow(row)
	}
	return clearKilled(s, out), nil
}

func (s *Sort) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	if err := s.materialize(ctx); err != nil {
		return 0, err
	}
	n := 0
	for s.pos < len(s.order) && n < atMost {
		crd := s.order[s.pos]
		s.pos++
		for c := 0; c < s.nrRegs; c++ {
			blk := s.blocks[crd.blockIdx]
			blk.EraseValue(crd.rowIdx, c)
		}
		n++
	}
	return n, nil
}

func (s *Sort) HasMore(ctx *Context) (bool, error) {
	if err := s.materialize(ctx); err != nil {
		return false, err
	}
	return s.pos < len(s.order), nil
}

func (s *Sort) Remaining(ctx *Context) (int64, bool) {
	if !s.materialized {
		return 0, false
	}
	return int64(len(s.order) - s.pos), true
}

func (s *Sort) Shutdown(ctx *Context, code int) error { return s.in.Shutdown(ctx, code) }

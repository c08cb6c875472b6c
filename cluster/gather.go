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
	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/operator"
)

// inputQueue is one Gather input's pending blocks plus a read cursor,
// refilled lazily as it empties.
type inputQueue struct {
	in     operator.Operator
	blocks []*block.ItemBlock
	pos    int // row index into blocks[0]
	eof    bool
}

func (q *inputQueue) front(ctx *operator.Context) (*block.ItemBlock, error) {
	for len(q.blocks) == 0 {
		if q.eof {
			return nil, nil
		}
		blk, err := q.in.GetSome(ctx, 1, defaultFillBatch)
		if err != nil {
			return nil, err
		}
		if blk == nil {
			q.eof = true
			return nil, nil
		}
		q.blocks = append(q.blocks, blk)
	}
	return q.blocks[0], nil
}

func (q *inputQueue) advance() {
	q.pos++
	if q.pos >= q.blocks[0].Rows() {
		q.blocks = q.blocks[1:]
		q.pos = 0
	}
}

// SortKey mirrors operator.SortKey so cluster/gather.go does not need
// to import operator's unexported comparator details; Gather's
// sorted-merge mode uses operator.CompareValue for the actual
// per-register comparison, exactly as Sort does, so the two produce
// the same total order over the same registers.
type SortKey struct {
	Register  int
	Ascending bool
}

// Gather implements the N→1 fan-in of spec.md §4.14: either a simple
// concatenation that drains each input fully, in input order, before
// moving to the next, or (when keys
// is non-empty) a sorted merge that picks the minimum row across the
// current front of every input on each step.
type Gather struct {
	nrRegs int
	inputs []*inputQueue
	keys   []SortKey
	next   int // input currently being drained, for concat mode
	done   bool
}

// NewGather builds a Gather over inputs. If keys is empty, Gather
// concatenates inputs by draining one at a time in order; otherwise
// it performs a sorted merge assuming each input is already sorted
// by keys (the usual case: each input is a shard-local Sort).
func NewGather(inputs []operator.Operator, nrRegs int, keys []SortKey) *Gather {
	qs := make([]*inputQueue, len(inputs))
	for i, in := range inputs {
		qs[i] = &inputQueue{in: in}
	}
	return &Gather{nrRegs: nrRegs, inputs: qs, keys: keys}
}

func (g *Gather) Initialize(ctx *operator.Context) error {
	for _, q := range g.inputs {
		if err := q.in.Initialize(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gather) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	for _, q := range g.inputs {
		if err := q.in.InitializeCursor(ctx, items, pos); err != nil {
			return err
		}
	}
	return nil
}

func (g *Gather) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if g.done {
		return nil, nil
	}
	out := block.NewItemBlock(g.nrRegs)
	var err error
	if len(g.keys) == 0 {
		err = g.fillConcat(ctx, out, atMost)
	} else {
		err = g.fillMerge(ctx, out, atMost)
	}
	if err != nil {
		return nil, err
	}
	if out.Rows() == 0 {
		g.done = true
		return nil, nil
	}
	return out, nil
}

func (g *Gather) fillConcat(ctx *operator.Context, out *block.ItemBlock, atMost int) error {
	for out.Rows() < atMost {
		if g.next >= len(g.inputs) {
			return nil
		}
		q := g.inputs[g.next]
		front, err := q.front(ctx)
		if err != nil {
			return err
		}
		if front == nil {
			g.next++
			continue
		}
		vals := make([]block.Value, g.nrRegs)
		for c := 0; c < g.nrRegs; c++ {
			vals[c] = front.GetValue(q.pos, c)
		}
		out.AppendRow(vals)
		q.advance()
	}
	return nil
}

func (g *Gather) fillMerge(ctx *operator.Context, out *block.ItemBlock, atMost int) error {
	for out.Rows() < atMost {
		best := -1
		var bestFront *block.ItemBlock
		for i, q := range g.inputs {
			front, err := q.front(ctx)
			if err != nil {
				return err
			}
			if front == nil {
				continue
			}
			if best < 0 || g.less(front, q.pos, bestFront, g.inputs[best].pos) {
				best = i
				bestFront = front
			}
		}
		if best < 0 {
			return nil
		}
		q := g.inputs[best]
		vals := make([]block.Value, g.nrRegs)
		for c := 0; c < g.nrRegs; c++ {
			vals[c] = bestFront.GetValue(q.pos, c)
		}
		out.AppendRow(vals)
		q.advance()
	}
	return nil
}

func (g *Gather) less(a *block.ItemBlock, ar int, b *block.ItemBlock, br int) bool {
	for _, k := range g.keys {
		c := operator.CompareValue(a.GetValue(ar, k.Register), b.GetValue(br, k.Register))
		if c == 0 {
			continue
		}
		if !k.Ascending {
			c = -c
		}
		return c < 0
	}
	return false
}

func (g *Gather) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		blk, err := g.GetSome(ctx, 1, atMost-n)
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

func (g *Gather) HasMore(ctx *operator.Context) (bool, error) {
	for _, q := range g.inputs {
		if len(q.blocks) > 0 {
			return true, nil
		}
		if !q.eof {
			more, err := q.in.HasMore(ctx)
			if err != nil {
				return false, err
			}
			if more {
				return true, nil
			}
		}
	}
	return false, nil
}

func (g *Gather) Remaining(ctx *operator.Context) (int64, bool) { return 0, false }

func (g *Gather) Shutdown(ctx *operator.Context, code int) error {
	var first error
	for _, q := range g.inputs {
		if err := q.in.Shutdown(ctx, code); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (g *Gather) NrRegs() int { return g.nrRegs }

func (g *Gather) RegsToClear() block.RegisterSet { return block.RegisterSet{} }

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

// blockCursor implements the shared drain template described in
// spec.md §4.1 for operators whose output row count equals exactly
// what was requested from the input (Calculation and Return). It
// buffers at most one pending input block and
// a position cursor into it.
type blockCursor struct {
	in     Operator
	buffer *block.ItemBlock
	pos    int
	done   bool
}

func newBlockCursor(in Operator) *blockCursor {
	return &blockCursor{in: in}
}

// fill drains buffered + freshly pulled input blocks into a single
// result honoring [atLeast,atMost], implementing the three slicing
// cases from §4.1:
//  1. head block larger than remaining capacity -> Slice(pos,pos+need)
//  2. head block fits but pos>0 (partially consumed) -> Slice(pos,size)
//  3. head block fits and fresh (pos==0) -> hand over whole block
//
// If only one slice was collected it is returned directly; otherwise
// Concatenate builds the result.
func (c *blockCursor) fill(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	var collected []*block.ItemBlock
	have := 0
	for have < atMost {
		if err := ctx.ThrowIfKilled(); err != nil {
			return nil, err
		}
		if c.buffer == nil {
			if c.done {
				break
			}
			blk, err := c.in.GetSome(ctx, 1, atMost-have)
			if err != nil {
				return nil, err
			}
			if blk == nil {
				c.done = true
				break
			}
			c.buffer = blk
			c.pos = 0
		}
		remaining := c.buffer.Rows() - c.pos
		need := atMost - have
		switch {
		case remaining > need:
			// case 1: head block larger than remaining capacity
			collected = append(collected, c.buffer.Slice(c.pos, c.pos+need))
			c.pos += need
			have += need
		case c.pos > 0:
			// case 2: head block fits but was partially consumed
			collected = append(collected, c.buffer.Slice(c.pos, c.buffer.Rows()))
			have += remaining
			c.buffer = nil
			c.pos = 0
		default:
			// case 3: head block fits and is fresh
			collected = append(collected, c.buffer)
			have += remaining
			c.buffer = nil
			c.pos = 0
		}
		if c.done && c.buffer == nil {
			break
		}
	}
	_ = atLeast // contract allows returning up to atMost whenever available; atLeast only bounds non-exhausted returns, which this loop satisfies by running until atMost or exhaustion
	if len(collected) == 0 {
		return nil, nil
	}
	if len(collected) == 1 {
		return collected[0], nil
	}
	return block.Concatenate(collected), nil
}

// skip discards up to atMost rows (at least atLeast unless exhausted)
// equivalently to fill, without materializing a result block.
func (c *blockCursor) skip(ctx *Context, atLeast, atMost int) (int, error) {
	have := 0
	for have < atMost {
		if err := ctx.ThrowIfKilled(); err != nil {
			return have, err
		}
		if c.buffer == nil {
			if c.done {
				break
			}
			n, err := c.in.SkipSome(ctx, 1, atMost-have)
			if err != nil {
				return have, err
			}
			if n == 0 {
				c.done = true
				break
			}
			have += n
			continue
		}
		remaining := c.buffer.Rows() - c.pos
		need := atMost - have
		if remaining > need {
			c.pos += need
			have += need
		} else {
			have += remaining
			c.buffer = nil
			c.pos = 0
		}
	}
	_ = atLeast
	return have, nil
}

func (c *blockCursor) hasMore(ctx *Context) (bool, error) {
	if c.buffer != nil && c.pos < c.buffer.Rows() {
		return true, nil
	}
	if c.done {
		return false, nil
	}
	return c.in.HasMore(ctx)
}

// rowCursor pulls the input operator strictly one row at a time, for
// operators that expand each outer row into zero or more output rows
// (EnumerateCollection, EnumerateList, IndexRange, Subquery).
type rowCursor struct {
	in   Operator
	cur  *block.ItemBlock
	idx  int
	done bool
}

func newRowCursor(in Operator) *rowCursor {
	return &rowCursor{in: in}
}

// next returns the next outer row as a 1-row block, or nil if the
// input is exhausted.
func (c *rowCursor) next(ctx *Context) (*block.ItemBlock, error) {
	if c.done {
		return nil, nil
	}
	if c.cur == nil || c.idx >= c.cur.Rows() {
		blk, err := c.in.GetSome(ctx, 1, 1)
		if err != nil {
			return nil, err
		}
		if blk == nil {
			c.done = true
			return nil, nil
		}
		c.cur = blk
		c.idx = 0
	}
	row := c.cur.Slice(c.idx, c.idx+1)
	c.idx++
	return row, nil
}

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

// Package cluster implements the fan-out/fan-in operators of spec.md
// §4.14 that span more than one shard client: Scatter, Distribute,
// Gather, and the Remote RPC proxy, plus the peer transport
// (cluster/server, cluster/client, cluster/wire) and the shard
// routing function (cluster/shard).
package cluster

import (
	"sync"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/cluster/shard"
	"github.com/dociq/aqlengine/operator"
)

// ShardLocator reports the shard-key attributes of a collection; it
// is the cluster package's name for shard.Locator (spec.md §4.14).
type ShardLocator = shard.Locator

// defaultFillBatch bounds how many rows Scatter/Distribute pull from
// their input in one refill, independent of any one client's atMost.
const defaultFillBatch = 1000

// scatterCursor is one client's position in the shared buffer:
// blockIdx indexes buffer (after retirement adjustments), rowIdx is
// the next unread row within that block.
type scatterCursor struct {
	blockIdx, rowIdx int
}

// Scatter implements the 1→N fan-out of spec.md §4.14: every client
// sees every input row, each advancing independently over a shared
// front-to-back buffer of blocks. A buffer's front block is retired
// (dropped) once every client's cursor has advanced past it.
type Scatter struct {
	mu        sync.Mutex
	in        operator.Operator
	nrRegs    int
	nrClients int
	buffer    []*block.ItemBlock
	cursors   []scatterCursor
	eof       bool
	err       error
}

// NewScatter builds a Scatter over in, serving nrClients shard
// clients.
func NewScatter(in operator.Operator, nrRegs, nrClients int) *Scatter {
	return &Scatter{in: in, nrRegs: nrRegs, nrClients: nrClients, cursors: make([]scatterCursor, nrClients)}
}

// Initialize propagates to the input exactly once.
func (s *Scatter) Initialize(ctx *operator.Context) error { return s.in.Initialize(ctx) }

// Client returns the operator.Operator view of shard i.
func (s *Scatter) Client(i int) operator.Operator { return &scatterClient{s: s, shard: i} }

func (s *Scatter) refill(ctx *operator.Context) error {
	if s.eof || s.err != nil {
		return s.err
	}
	blk, err := s.in.GetSome(ctx, 1, defaultFillBatch)
	if err != nil {
		s.err = err
		return err
	}
	if blk == nil {
		s.eof = true
		return nil
	}
	s.buffer = append(s.buffer, blk)
	return nil
}

// retire drops buffer[0] once every client's cursor has moved past it.
// Must be called with mu held.
func (s *Scatter) retire() {
	for len(s.buffer) > 0 {
		allPast := true
		for i := range s.cursors {
			if s.cursors[i].blockIdx == 0 {
				allPast = false
				break
			}
		}
		if !allPast {
			return
		}
		s.buffer = s.buffer[1:]
		for i := range s.cursors {
			s.cursors[i].blockIdx--
		}
	}
}

func (s *Scatter) getSome(ctx *operator.Context, shardID, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	out := block.NewItemBlock(s.nrRegs)
	cur := &s.cursors[shardID]
	for out.Rows() < atMost {
		if cur.blockIdx >= len(s.buffer) {
			if s.eof {
				break
			}
			if err := s.refill(ctx); err != nil {
				return nil, err
			}
			if cur.blockIdx >= len(s.buffer) {
				if s.eof {
					break
				}
				continue
			}
		}
		blk := s.buffer[cur.blockIdx]
		avail := blk.Rows() - cur.rowIdx
		take := atMost - out.Rows()
		if take > avail {
			take = avail
		}
		if take > 0 {
			sliced := blk.Slice(cur.rowIdx, cur.rowIdx+take)
			for r := 0; r < sliced.Rows(); r++ {
				vals := make([]block.Value, s.nrRegs)
				for c := 0; c < s.nrRegs; c++ {
					vals[c] = sliced.GetValue(r, c)
				}
				out.AppendRow(vals)
			}
			cur.rowIdx += take
		}
		if cur.rowIdx >= blk.Rows() {
			cur.blockIdx++
			cur.rowIdx = 0
		}
	}
	s.retire()
	if out.Rows() == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *Scatter) hasMore(shardID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.cursors[shardID]
	if cur.blockIdx < len(s.buffer) {
		return true
	}
	return !s.eof
}

// Shutdown propagates to the input exactly once, regardless of how
// many clients call it; subsequent calls are no-ops.
func (s *Scatter) Shutdown(ctx *operator.Context, code int) error {
	s.mu.Lock()
	in := s.in
	s.in = noopOperator{nrRegs: s.nrRegs}
	s.mu.Unlock()
	return in.Shutdown(ctx, code)
}

// scatterClient is the per-shard operator.Operator view of a Scatter.
type scatterClient struct {
	s     *Scatter
	shard int
}

func (c *scatterClient) Initialize(ctx *operator.Context) error { return nil }

func (c *scatterClient) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	return nil
}

func (c *scatterClient) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	return c.s.getSome(ctx, c.shard, atLeast, atMost)
}

func (c *scatterClient) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		blk, err := c.GetSome(ctx, 1, atMost-n)
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

func (c *scatterClient) HasMore(ctx *operator.Context) (bool, error) { return c.s.hasMore(c.shard), nil }

func (c *scatterClient) Remaining(ctx *operator.Context) (int64, bool) { return 0, false }

func (c *scatterClient) Shutdown(ctx *operator.Context, code int) error { return nil }

func (c *scatterClient) NrRegs() int { return c.s.nrRegs }

func (c *scatterClient) RegsToClear() block.RegisterSet { return block.RegisterSet{} }

// noopOperator replaces Scatter/Distribute's reference to their real
// input after Shutdown, so a second Shutdown call (or a stray pull)
// from another client doesn't re-enter a torn-down operator.
type noopOperator struct{ nrRegs int }

func (noopOperator) Initialize(ctx *operator.Context) error { return nil }
func (noopOperator) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	return nil
}
func (noopOperator) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	return nil, nil
}
func (noopOperator) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) { return 0, nil }
func (noopOperator) HasMore(ctx *operator.Context) (bool, error)                      { return false, nil }
func (noopOperator) Remaining(ctx *operator.Context) (int64, bool)                    { return 0, false }
func (noopOperator) Shutdown(ctx *operator.Context, code int) error                   { return nil }
func (n noopOperator) NrRegs() int                                                    { return n.nrRegs }
func (noopOperator) RegsToClear() block.RegisterSet                                   { return block.RegisterSet{} }

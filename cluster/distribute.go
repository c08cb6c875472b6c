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
	"sync"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/cluster/shard"
	"github.com/dociq/aqlengine/operator"
)

// chunk is one already-routed slice of input rows destined for a
// single client.
type chunk struct {
	blk *block.ItemBlock
	pos int
}

// Distribute implements the 1→N fan-out of spec.md §4.14 that routes
// each input row to exactly one client, chosen by hashing the row's
// document against the target collection's shard-key attributes.
// Unlike Scatter, no row is ever read by more than one client, so
// each client's queue holds freshly materialized (StealRows) blocks
// rather than a shared, refcounted buffer.
type Distribute struct {
	mu     sync.Mutex
	in     operator.Operator
	nrRegs int
	docCol int
	router *shard.Router

	queues [][]chunk
	eof    bool
	err    error
}

// NewDistribute builds a Distribute over in, routing on column docCol
// of each input row using router, for len router's nrClients clients.
func NewDistribute(in operator.Operator, nrRegs, docCol int, router *shard.Router, nrClients int) *Distribute {
	return &Distribute{in: in, nrRegs: nrRegs, docCol: docCol, router: router, queues: make([][]chunk, nrClients)}
}

func (d *Distribute) Initialize(ctx *operator.Context) error { return d.in.Initialize(ctx) }

func (d *Distribute) Client(i int) operator.Operator { return &distributeClient{d: d, shard: i} }

// refill pulls one block from the input, routes every row, and
// appends a per-destination StealRows chunk to that client's queue.
// Must be called with mu held.
func (d *Distribute) refill(ctx *operator.Context) error {
	if d.eof || d.err != nil {
		return d.err
	}
	blk, err := d.in.GetSome(ctx, 1, defaultFillBatch)
	if err != nil {
		d.err = err
		return err
	}
	if blk == nil {
		d.eof = true
		return nil
	}
	byClient := make(map[int][]int, len(d.queues))
	for r := 0; r < blk.Rows(); r++ {
		routed, target, rerr := d.router.RouteValue(blk.GetValue(r, d.docCol))
		if rerr != nil {
			d.err = rerr
			return rerr
		}
		if routed.Kind() != block.KindEmpty {
			blk.SetValue(r, d.docCol, routed)
		}
		byClient[target] = append(byClient[target], r)
	}
	for target, rows := range byClient {
		sub := blk.StealRows(rows)
		d.queues[target] = append(d.queues[target], chunk{blk: sub})
	}
	return nil
}

func (d *Distribute) getSome(ctx *operator.Context, shardID, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	out := block.NewItemBlock(d.nrRegs)
	for out.Rows() < atMost {
		q := d.queues[shardID]
		if len(q) == 0 {
			if d.eof {
				break
			}
			if err := d.refill(ctx); err != nil {
				return nil, err
			}
			if len(d.queues[shardID]) == 0 {
				if d.eof {
					break
				}
				continue
			}
			q = d.queues[shardID]
		}
		head := &q[0]
		avail := head.blk.Rows() - head.pos
		take := atMost - out.Rows()
		if take > avail {
			take = avail
		}
		for i := 0; i < take; i++ {
			vals := make([]block.Value, d.nrRegs)
			for c := 0; c < d.nrRegs; c++ {
				vals[c] = head.blk.GetValue(head.pos+i, c)
			}
			out.AppendRow(vals)
		}
		head.pos += take
		if head.pos >= head.blk.Rows() {
			d.queues[shardID] = q[1:]
		}
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return out, nil
}

func (d *Distribute) hasMore(shardID int) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.queues[shardID]) > 0 {
		return true
	}
	return !d.eof
}

func (d *Distribute) Shutdown(ctx *operator.Context, code int) error {
	d.mu.Lock()
	in := d.in
	d.in = noopOperator{nrRegs: d.nrRegs}
	d.mu.Unlock()
	return in.Shutdown(ctx, code)
}

type distributeClient struct {
	d     *Distribute
	shard int
}

func (c *distributeClient) Initialize(ctx *operator.Context) error { return nil }

func (c *distributeClient) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	return nil
}

func (c *distributeClient) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	return c.d.getSome(ctx, c.shard, atLeast, atMost)
}

func (c *distributeClient) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) {
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

func (c *distributeClient) HasMore(ctx *operator.Context) (bool, error) { return c.d.hasMore(c.shard), nil }

func (c *distributeClient) Remaining(ctx *operator.Context) (int64, bool) { return 0, false }

func (c *distributeClient) Shutdown(ctx *operator.Context, code int) error { return nil }

func (c *distributeClient) NrRegs() int { return c.d.nrRegs }

func (c *distributeClient) RegsToClear() block.RegisterSet { return block.RegisterSet{} }

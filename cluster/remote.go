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
	"context"
	"fmt"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/cluster/client"
	"github.com/dociq/aqlengine/cluster/rpcproto"
	"github.com/dociq/aqlengine/cluster/wire"
	"github.com/dociq/aqlengine/operator"
)

// Remote is the RPC proxy of spec.md §4.14/§6: every Operator method
// call becomes exactly one HTTP request to a peer running the
// remainder of the plan. A "query not found" error on shutdown is
// tolerated (the peer may already have torn down); any other
// communication failure surfaces as a cluster-communication error.
type Remote struct {
	nrRegs      int
	regsToClear block.RegisterSet
	client      *client.Client
}

// NewRemote builds a Remote operator proxying nrRegs-wide rows over c.
func NewRemote(c *client.Client, nrRegs int, regsToClear block.RegisterSet) *Remote {
	return &Remote{client: c, nrRegs: nrRegs, regsToClear: regsToClear}
}

func (r *Remote) NrRegs() int                    { return r.nrRegs }
func (r *Remote) RegsToClear() block.RegisterSet { return r.regsToClear }

// Initialize is a local no-op: the peer's plan is initialized
// server-side when the caller first registers it (engine concern, not
// Remote's), so there is no corresponding RPC for it in §6's table.
func (r *Remote) Initialize(ctx *operator.Context) error { return nil }

func (r *Remote) InitializeCursor(ctx *operator.Context, items *block.ItemBlock, pos int) error {
	encoded, err := wire.Encode(items)
	if err != nil {
		return fmt.Errorf("cluster: remote: encoding outer row: %w", err)
	}
	req := &rpcproto.InitializeCursorRequest{Pos: pos, Items: encoded, Exhausted: items == nil}
	if err := ctx.ThrowIfKilled(); err != nil {
		return err
	}
	return r.client.InitializeCursor(context.Background(), req)
}

func (r *Remote) GetSome(ctx *operator.Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	resp, err := r.client.GetSome(context.Background(), atLeast, atMost)
	if err != nil {
		if operator.Errorf != nil {
			operator.Errorf("cluster: remote: getSome RPC failed: %v", err)
		}
		return nil, err
	}
	applyDelta(ctx, resp.Stats)
	if resp.Exhausted {
		return nil, nil
	}
	blk, err := wire.Decode(resp.Block)
	if err != nil {
		return nil, fmt.Errorf("cluster: remote: decoding block: %w", err)
	}
	return clearKilled(r, blk), nil
}

func (r *Remote) SkipSome(ctx *operator.Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	resp, err := r.client.SkipSome(context.Background(), atLeast, atMost)
	if err != nil {
		return 0, err
	}
	applyDelta(ctx, resp.Stats)
	return resp.Skipped, nil
}

func (r *Remote) HasMore(ctx *operator.Context) (bool, error) {
	return r.client.HasMore(context.Background())
}

func (r *Remote) Remaining(ctx *operator.Context) (int64, bool) {
	n, known, err := r.client.Remaining(context.Background())
	if err != nil {
		return 0, false
	}
	return n, known
}

// Shutdown tolerates client.ErrQueryNotFound (already mapped to a nil
// error by Client.Shutdown) and merges any returned warnings into the
// caller's own warning list, per spec.md §6.
func (r *Remote) Shutdown(ctx *operator.Context, code int) error {
	warnings, err := r.client.Shutdown(context.Background(), code)
	if err != nil {
		return err
	}
	for _, w := range warnings {
		ctx.Warnings.Add(w)
	}
	return nil
}

func applyDelta(ctx *operator.Context, d rpcproto.StatsDelta) {
	ctx.Stats.Add(operator.Stats{
		ScannedFull:    d.ScannedFull,
		ScannedIndex:   d.ScannedIndex,
		Filtered:       d.Filtered,
		WritesExecuted: d.WritesExecuted,
		WritesIgnored:  d.WritesIgnored,
		FullCount:      d.FullCount,
	})
}

// clearKilled mirrors operator's unexported helper of the same name
// (it cannot be reused directly since it lives in package operator
// and is not exported); Remote performs the same kill-set erasure on
// the block it decodes from the wire, matching every other operator's
// GetSome contract.
func clearKilled(r *Remote, b *block.ItemBlock) *block.ItemBlock {
	if b == nil {
		return nil
	}
	b.ClearRegisters(r.regsToClear)
	return b
}

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

// Package engine drives a built operator tree to completion: it
// allocates the per-query Context (kill switch, stats, warnings), the
// root-level Singleton binding (spec.md §4.2's "for the root query, an
// empty-input Singleton"), and pulls the root operator until
// exhausted, accumulating stats and warnings the way a real caller of
// the pull protocol would.
package engine

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/operator"
)

// Query owns a root operator and the Context shared by every operator
// instance in its tree. ID is generated once per query, matching the
// {queryId} path segment the cluster-peer RPC table keys on (spec.md
// §6).
type Query struct {
	ID   string
	Root operator.Operator
	Ctx  *operator.Context
}

// New builds a Query ready to run root. rt may be nil if no
// expression in the plan needs a scripting runtime.
func New(root operator.Operator, rt operator.ScriptRuntime) *Query {
	return &Query{ID: uuid.NewString(), Root: root, Ctx: operator.NewContext(rt)}
}

// rootItems is the single empty row every top-level plan's outermost
// Singleton binds to, so a zero-register FOR-loop leaf has something
// to iterate.
func rootItems() *block.ItemBlock {
	b := block.NewItemBlock(0)
	b.AppendRow(nil)
	return b
}

// Run drives the query to completion, pulling atMost rows per
// GetSome, and returns the concatenation of every produced block.
// Callers that want streaming behavior should call GetSome directly
// instead; Run is the convenience path for callers that want the
// whole result at once.
func (q *Query) Run(atMost int) (*block.ItemBlock, error) {
	if err := q.Root.Initialize(q.Ctx); err != nil {
		return nil, fmt.Errorf("engine: initialize: %w", err)
	}
	if err := q.Root.InitializeCursor(q.Ctx, rootItems(), 0); err != nil {
		return nil, fmt.Errorf("engine: initialize cursor: %w", err)
	}
	var blocks []*block.ItemBlock
	for {
		blk, err := q.Root.GetSome(q.Ctx, 1, atMost)
		if err != nil {
			_ = q.Root.Shutdown(q.Ctx, 1)
			return nil, fmt.Errorf("engine: getSome: %w", err)
		}
		if blk == nil {
			break
		}
		blocks = append(blocks, blk)
	}
	if err := q.Root.Shutdown(q.Ctx, 0); err != nil {
		return nil, fmt.Errorf("engine: shutdown: %w", err)
	}
	return block.Concatenate(blocks), nil
}

// Kill marks the query killed; any in-flight or future pull raises
// operator.ErrQueryKilled at its next throwIfKilled check (spec.md §5).
func (q *Query) Kill() { q.Ctx.Kill.Kill() }

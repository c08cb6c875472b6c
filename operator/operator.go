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

// Package operator implements the batch-oriented pull protocol
// between query execution operators and the concrete semantics of
// every built-in operator described in spec.md §4.
package operator

import "github.com/dociq/aqlengine/block"

// Operator is the interface every execution-tree node implements
// (spec.md §4.1). All methods take ctx explicitly rather than relying
// on ambient/thread-local state (§9, "explicit capability").
type Operator interface {
	// Initialize propagates once to every input, before any rows flow.
	Initialize(ctx *Context) error

	// InitializeCursor resets state to re-run the sub-plan for a new
	// outer row (used by Subquery). items/pos is the outer row
	// snapshot to bind; items may be nil for the top-level plan.
	InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error

	// GetSome returns a block of 1..atMost rows, with at least
	// atLeast rows unless the input is exhausted, or nil when
	// exhausted. 1 <= atLeast <= atMost is a precondition.
	GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error)

	// SkipSome advances the operator by up to atMost rows (at least
	// atLeast unless exhausted) without materializing them, and
	// returns the count actually skipped.
	SkipSome(ctx *Context, atLeast, atMost int) (int, error)

	// HasMore reports whether a subsequent GetSome could produce a row.
	HasMore(ctx *Context) (bool, error)

	// Remaining is a best-effort lower bound of remaining rows, or
	// (_, false) if unknown.
	Remaining(ctx *Context) (int64, bool)

	// Shutdown propagates to inputs exactly once; it must be callable
	// even if Initialize never ran or failed partway.
	Shutdown(ctx *Context, code int) error

	// NrRegs returns the column count of blocks this operator emits.
	NrRegs() int

	// RegsToClear returns this operator's kill-set (see
	// block.RegisterPlan); it must be erased in every emitted block.
	RegsToClear() block.RegisterSet
}

// clearKilled erases an operator's kill-set columns from b, the last
// step every GetSome implementation performs before returning.
func clearKilled(op Operator, b *block.ItemBlock) *block.ItemBlock {
	if b == nil {
		return nil
	}
	b.ClearRegisters(op.RegsToClear())
	return b
}

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

// NoResults is a trivial operator that short-circuits a subtree known
// at plan time to produce no rows (e.g. a constant-false filter
// folded during optimization). It never pulls its input. Supplemented
// from the original ArangoDB source per SPEC_FULL.md §5; spec.md's
// component table lists it under stateless transform operators but
// never describes its semantics, which are exactly this.
type NoResults struct {
	nrRegs      int
	regsToClear block.RegisterSet
}

// NewNoResults builds a NoResults operator with the given output shape.
func NewNoResults(nrRegs int, regsToClear block.RegisterSet) *NoResults {
	return &NoResults{nrRegs: nrRegs, regsToClear: regsToClear}
}

func (n *NoResults) NrRegs() int                   { return n.nrRegs }
func (n *NoResults) RegsToClear() block.RegisterSet { return n.regsToClear }

func (n *NoResults) Initialize(ctx *Context) error                                  { return nil }
func (n *NoResults) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error { return nil }
func (n *NoResults) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	return nil, ctx.ThrowIfKilled()
}
func (n *NoResults) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	return 0, ctx.ThrowIfKilled()
}
func (n *NoResults) HasMore(ctx *Context) (bool, error)       { return false, nil }
func (n *NoResults) Remaining(ctx *Context) (int64, bool)     { return 0, true }
func (n *NoResults) Shutdown(ctx *Context, code int) error    { return nil }

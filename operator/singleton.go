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

// Singleton produces at most one row with the input register values
// supplied to InitializeCursor (spec.md §4.2). It is the plan's leaf:
// every operator tree bottoms out at a Singleton (or, for the root
// query, an empty-input Singleton).
type Singleton struct {
	nrRegs      int
	regsToClear block.RegisterSet

	snapshot *block.ItemBlock // 1-row block stolen from InitializeCursor
	row      int
	consumed bool
}

// NewSingleton builds a Singleton with the given output column count.
func NewSingleton(nrRegs int, regsToClear block.RegisterSet) *Singleton {
	return &Singleton{nrRegs: nrRegs, regsToClear: regsToClear}
}

func (s *Singleton) NrRegs() int                   { return s.nrRegs }
func (s *Singleton) RegsToClear() block.RegisterSet { return s.regsToClear }

func (s *Singleton) Initialize(ctx *Context) error { return nil }

// InitializeCursor steals (not clones) the input snapshot's row so
// large subquery bindings are not duplicated, per §4.2.
func (s *Singleton) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	s.consumed = false
	if items == nil {
		s.snapshot = nil
		return nil
	}
	s.snapshot = items.Steal(pos, pos+1)
	s.row = 0
	return nil
}

func (s *Singleton) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if s.consumed || s.snapshot == nil {
		return nil, nil
	}
	s.consumed = true
	out := s.snapshot.Steal(0, 1)
	return clearKilled(s, out), nil
}

func (s *Singleton) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	if s.consumed || s.snapshot == nil {
		return 0, nil
	}
	s.consumed = true
	return 1, nil
}

func (s *Singleton) HasMore(ctx *Context) (bool, error) {
	return !s.consumed && s.snapshot != nil, nil
}

func (s *Singleton) Remaining(ctx *Context) (int64, bool) {
	if s.consumed || s.snapshot == nil {
		return 0, true
	}
	return 1, true
}

func (s *Singleton) Shutdown(ctx *Context, code int) error { return nil }

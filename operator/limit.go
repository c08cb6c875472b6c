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

type limitState uint8

const (
	limitFresh limitState = iota
	limitRunning
	limitDone
)

// Limit implements offset/count/fullCount (spec.md §4.11). On the
// first call with offset>0 it issues a SkipSome(offset) on the input;
// once running, it caps the requested atMost at count-emitted and
// forwards; when fullCount is set, after reaching count it continues
// draining the input with SkipSome in DefaultBatchSize batches to
// count the remaining rows, attributing the total to Stats.FullCount.
type Limit struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	offset      int
	count       int
	fullCount   bool

	state   limitState
	emitted int
}

// NewLimit builds a Limit operator.
func NewLimit(in Operator, nrRegs int, offset, count int, fullCount bool, regsToClear block.RegisterSet) *Limit {
	return &Limit{in: in, nrRegs: nrRegs, offset: offset, count: count, fullCount: fullCount, regsToClear: regsToClear}
}

func (l *Limit) NrRegs() int                   { return l.nrRegs }
func (l *Limit) RegsToClear() block.RegisterSet { return l.regsToClear }

func (l *Limit) Initialize(ctx *Context) error { return l.in.Initialize(ctx) }

func (l *Limit) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	l.state = limitFresh
	l.emitted = 0
	return l.in.InitializeCursor(ctx, items, pos)
}

func (l *Limit) ensureOffset(ctx *Context) error {
	if l.state != limitFresh {
		return nil
	}
	if l.offset > 0 {
		remaining := l.offset
		for remaining > 0 {
			n, err := l.in.SkipSome(ctx, 1, remaining)
			if err != nil {
				return err
			}
			remaining -= n
			if n == 0 {
				break
			}
		}
	}
	l.state = limitRunning
	return nil
}

func (l *Limit) drainFullCount(ctx *Context) error {
	if !l.fullCount {
		return nil
	}
	for {
		n, err := l.in.SkipSome(ctx, 1, DefaultBatchSize)
		if err != nil {
			return err
		}
		ctx.Stats.FullCount += int64(n)
		if n == 0 {
			break
		}
	}
	return nil
}

func (l *Limit) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if l.state == limitDone {
		return nil, nil
	}
	if err := l.ensureOffset(ctx); err != nil {
		return nil, err
	}
	capped := l.count - l.emitted
	if capped <= 0 {
		l.state = limitDone
		if err := l.drainFullCount(ctx); err != nil {
			return nil, err
		}
		return nil, nil
	}
	reqAtMost := atMost
	if capped < reqAtMost {
		reqAtMost = capped
	}
	reqAtLeast := atLeast
	if reqAtLeast > reqAtMost {
		reqAtLeast = reqAtMost
	}
	blk, err := l.in.GetSome(ctx, reqAtLeast, reqAtMost)
	if err != nil {
		return nil, err
	}
	if blk == nil {
		l.state = limitDone
		return nil, nil
	}
	l.emitted += blk.Rows()
	if l.emitted >= l.count {
		l.state = limitDone
		if err := l.drainFullCount(ctx); err != nil {
			return nil, err
		}
	}
	return clearKilled(l, blk), nil
}

func (l *Limit) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	if l.state == limitDone {
		return 0, nil
	}
	if err := l.ensureOffset(ctx); err != nil {
		return 0, err
	}
	capped := l.count - l.emitted
	if capped <= 0 {
		l.state = limitDone
		return 0, l.drainFullCount(ctx)
	}
	if atMost > capped {
		atMost = capped
	}
	n, err := l.in.SkipSome(ctx, atLeast, atMost)
	if err != nil {
		return n, err
	}
	l.emitted += n
	if l.emitted >= l.count {
		l.state = limitDone
		if err := l.drainFullCount(ctx); err != nil {
			return n, err
		}
	}
	return n, nil
}

func (l *Limit) HasMore(ctx *Context) (bool, error) {
	if l.state == limitDone {
		return false, nil
	}
	if l.emitted >= l.count {
		return false, nil
	}
	return l.in.HasMore(ctx)
}

func (l *Limit) Remaining(ctx *Context) (int64, bool) {
	rem, ok := l.in.Remaining(ctx)
	if !ok {
		return 0, false
	}
	capped := int64(l.count - l.emitted)
	if rem > capped {
		rem = capped
	}
	return rem, true
}

func (l *Limit) Shutdown(ctx *Context, code int) error { return l.in.Shutdown(ctx, code) }

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

import (
	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

// DefaultBatchSize is the batch size used by EnumerateCollection's
// scanner refills and by Limit's fullCount drain (spec.md §4.3, §4.11).
const DefaultBatchSize = 1000

// EnumerateCollection performs a full scan of a collection, in either
// linear or random order, once per row of its input (spec.md §4.3).
// The collection is resolved through a transactional collection
// handle, and a barrier is installed for the operator's whole life to
// prevent compaction of documents it may still reference.
type EnumerateCollection struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet
	outCol      int
	tag         block.CollectionTag

	txn     txn.Transaction
	handle  txn.Handle
	mode    txn.ScanMode

	outer   *rowCursor
	barrier txn.Barrier

	curOuter *block.ItemBlock
	scanner  txn.DocumentScanner
	docBuf   []block.ShapedDoc
	docPos   int
	docLen   int
	done     bool
}

// NewEnumerateCollection builds an EnumerateCollection operator.
// outCol is the output register that receives the scanned document.
func NewEnumerateCollection(in Operator, nrRegs, outCol int, regsToClear block.RegisterSet, tx txn.Transaction, collection string, mode txn.ScanMode) (*EnumerateCollection, error) {
	h, err := tx.TrxCollection(collection)
	if err != nil {
		return nil, err
	}
	return &EnumerateCollection{
		in: in, nrRegs: nrRegs, regsToClear: regsToClear, outCol: outCol,
		tag: h.Tag(), txn: tx, handle: h, mode: mode,
		outer: newRowCursor(in),
		docBuf: make([]block.ShapedDoc, DefaultBatchSize),
	}, nil
}

func (e *EnumerateCollection) NrRegs() int                   { return e.nrRegs }
func (e *EnumerateCollection) RegsToClear() block.RegisterSet { return e.regsToClear }

func (e *EnumerateCollection) Initialize(ctx *Context) error {
	if err := e.in.Initialize(ctx); err != nil {
		return err
	}
	b, err := e.txn.OrderBarrier(e.handle)
	if err != nil {
		return err
	}
	e.barrier = b
	return nil
}

func (e *EnumerateCollection) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	e.done = false
	e.curOuter = nil
	e.scanner = nil
	e.docPos, e.docLen = 0, 0
	e.outer = newRowCursor(e.in)
	return e.in.InitializeCursor(ctx, items, pos)
}

func (e *EnumerateCollection) openScanner() error {
	s, err := e.txn.Scanner(e.handle, e.mode)
	if err != nil {
		return err
	}
	e.scanner = s
	e.docPos, e.docLen = 0, 0
	return nil
}

// refill advances to the next outer row / scanner batch as needed.
// It returns (false, nil) once the whole operator is exhausted.
func (e *EnumerateCollection) refill(ctx *Context) (bool, error) {
	for {
		if e.curOuter != nil && e.docPos < e.docLen {
			return true, nil
		}
		if e.scanner != nil {
			n, err := e.scanner.Next(e.docBuf)
			if err != nil {
				return false, err
			}
			if n > 0 {
				e.docPos, e.docLen = 0, n
				ctx.Stats.ScannedFull += int64(n)
				return true, nil
			}
			e.scanner.Close()
			e.scanner = nil
		}
		outer, err := e.outer.next(ctx)
		if err != nil {
			return false, err
		}
		if outer == nil {
			e.done = true
			return false, nil
		}
		e.curOuter = outer
		if err := e.openScanner(); err != nil {
			return false, err
		}
	}
}

func (e *EnumerateCollection) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if e.done {
		return nil, nil
	}
	out := block.NewItemBlock(e.nrRegs)
	out.SetCollectionTag(e.outCol, e.tag)
	for out.Rows() < atMost {
		ok, err := e.refill(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		for e.docPos < e.docLen && out.Rows() < atMost {
			row := e.grabRow()
			out.AppendRow(row)
			e.docPos++
		}
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(e, out), nil
}

func (e *EnumerateCollection) grabRow() []block.Value {
	row := make([]block.Value, e.nrRegs)
	for c := 0; c < e.outCol; c++ {
		row[c] = e.curOuter.GetValue(0, c).Clone()
	}
	d := e.docBuf[e.docPos]
	row[e.outCol] = block.NewShaped(d)
	return row
}

func (e *EnumerateCollection) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return 0, err
	}
	skipped := 0
	for skipped < atMost && !e.done {
		ok, err := e.refill(ctx)
		if err != nil {
			return skipped, err
		}
		if !ok {
			break
		}
		for e.docPos < e.docLen && skipped < atMost {
			e.docPos++
			skipped++
		}
	}
	return skipped, nil
}

func (e *EnumerateCollection) HasMore(ctx *Context) (bool, error) {
	if e.done {
		return false, nil
	}
	return true, nil
}

func (e *EnumerateCollection) Remaining(ctx *Context) (int64, bool) {
	return 0, false
}

func (e *EnumerateCollection) Shutdown(ctx *Context, code int) error {
	if e.scanner != nil {
		e.scanner.Close()
		e.scanner = nil
	}
	if e.barrier != nil {
		e.barrier.Release()
		e.barrier = nil
	}
	return e.in.Shutdown(ctx, code)
}

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
	"errors"
	"fmt"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

// MutationKind selects which of the four data-modification operators
// a Mutation instance implements (spec.md §4.13).
type MutationKind uint8

const (
	MutationRemove MutationKind = iota
	MutationInsert
	MutationUpdate
	MutationReplace
)

// MutationOptions configures the per-row error policy and read-back
// behavior shared by all four mutation operators.
type MutationOptions struct {
	// IgnoreErrors counts any write failure into writesIgnored instead
	// of aborting the query.
	IgnoreErrors bool
	// IgnoreDocumentNotFound additionally tolerates a missing document
	// on Remove/Update even when IgnoreErrors is false, matching the
	// sharded-deployment allowance in §4.13.
	IgnoreDocumentNotFound bool
	// ReturnOld reads the document back before the write (Replace's
	// "returnOldValues"); otherwise the post-write document is used.
	ReturnOld bool
	Tx        txn.MutationOptions
}

// Mutation implements Remove/Insert/Update/Replace. Accumulate selects
// between the two execution modes of §4.13: when true, the entire
// input is pulled and buffered before any write is issued (for plans
// where the same collection is both read and written and the reads
// must not observe the writes); when false, each input block is
// mutated and discarded immediately (streaming).
type Mutation struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet

	kind MutationKind
	tx   txn.Transaction
	h    txn.Handle

	keyReg   int // Remove/Update/Replace: register holding the key (or keyed doc)
	valueReg int // Insert/Update/Replace: register holding doc/patch
	fromReg  int // Insert on an edge collection; -1 if unused
	toReg    int
	outReg   int // -1 if the plan does not request a return value

	opts MutationOptions

	accumulate bool
	rows       *rowCursor
	buffered   []*block.ItemBlock
	bufPos     int
	preloaded  bool
	done       bool
}

// NewRemove builds a Remove mutation operator.
func NewRemove(in Operator, nrRegs, keyReg, outReg int, tx txn.Transaction, h txn.Handle, opts MutationOptions, accumulate bool, regsToClear block.RegisterSet) *Mutation {
	return &Mutation{in: in, nrRegs: nrRegs, regsToClear: regsToClear, kind: MutationRemove,
		tx: tx, h: h, keyReg: keyReg, valueReg: -1, fromReg: -1, toReg: -1, outReg: outReg,
		opts: opts, accumulate: accumulate}
}

// NewInsert builds an Insert mutation operator. fromReg/toReg are -1
// unless h is an edge collection and the plan supplies those values.
func NewInsert(in Operator, nrRegs, valueReg, fromReg, toReg, outReg int, tx txn.Transaction, h txn.Handle, opts MutationOptions, accumulate bool, regsToClear block.RegisterSet) *Mutation {
	return &Mutation{in: in, nrRegs: nrRegs, regsToClear: regsToClear, kind: MutationInsert,
		tx: tx, h: h, keyReg: -1, valueReg: valueReg, fromReg: fromReg, toReg: toReg, outReg: outReg,
		opts: opts, accumulate: accumulate}
}

// NewUpdate builds an Update mutation operator.
func NewUpdate(in Operator, nrRegs, keyReg, patchReg, outReg int, tx txn.Transaction, h txn.Handle, opts MutationOptions, accumulate bool, regsToClear block.RegisterSet) *Mutation {
	return &Mutation{in: in, nrRegs: nrRegs, regsToClear: regsToClear, kind: MutationUpdate,
		tx: tx, h: h, keyReg: keyReg, valueReg: patchReg, fromReg: -1, toReg: -1, outReg: outReg,
		opts: opts, accumulate: accumulate}
}

// NewReplace builds a Replace mutation operator.
func NewReplace(in Operator, nrRegs, keyReg, docReg, outReg int, tx txn.Transaction, h txn.Handle, opts MutationOptions, accumulate bool, regsToClear block.RegisterSet) *Mutation {
	return &Mutation{in: in, nrRegs: nrRegs, regsToClear: regsToClear, kind: MutationReplace,
		tx: tx, h: h, keyReg: keyReg, valueReg: docReg, fromReg: -1, toReg: -1, outReg: outReg,
		opts: opts, accumulate: accumulate}
}

func (m *Mutation) NrRegs() int                   { return m.nrRegs }
func (m *Mutation) RegsToClear() block.RegisterSet { return m.regsToClear }

func (m *Mutation) Initialize(ctx *Context) error { return m.in.Initialize(ctx) }

func (m *Mutation) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	m.rows = newRowCursor(m.in)
	m.buffered = nil
	m.bufPos = 0
	m.preloaded = false
	m.done = false
	return m.in.InitializeCursor(ctx, items, pos)
}

// extractKey implements §4.13's extractKey: a Shaped value yields its
// resolved key directly; a JSON string is the key itself; a JSON
// object yields its "_key" field (or the key half of "_id").
func extractKey(v block.Value) (string, error) {
	switch v.Kind() {
	case block.KindShaped:
		return v.Shaped().Key, nil
	case block.KindJSON:
		switch x := v.JSON().(type) {
		case string:
			return x, nil
		case map[string]any:
			if k, ok := x["_key"].(string); ok {
				return k, nil
			}
			if id, ok := x["_id"].(string); ok {
				for i := len(id) - 1; i >= 0; i-- {
					if id[i] == '/' {
						return id[i+1:], nil
					}
				}
			}
		}
	}
	return "", fmt.Errorf("operator: mutation: cannot extract key from %s value: %w", v.Kind(), txn.ErrDocumentKeyMissing)
}

// extractRev reads an optional "_rev" precondition off the same value
// a patch/document is taken from: a Shaped value's resolved document,
// or a JSON object's "_rev" field. An empty result means the caller
// supplied no precondition, not that one was checked and cleared.
func extractRev(v block.Value) string {
	switch v.Kind() {
	case block.KindShaped:
		if r, ok := v.Shaped().Doc["_rev"].(string); ok {
			return r
		}
	case block.KindJSON:
		if m, ok := v.JSON().(map[string]any); ok {
			if r, ok := m["_rev"].(string); ok {
				return r
			}
		}
	}
	return ""
}

func asDoc(v block.Value) (map[string]any, error) {
	switch v.Kind() {
	case block.KindShaped:
		return v.Shaped().Doc, nil
	case block.KindJSON:
		if m, ok := v.JSON().(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("%w: mutation input is not a document", txn.ErrDocumentTypeInvalid)
}

func (m *Mutation) preload(ctx *Context) error {
	if m.preloaded {
		return nil
	}
	for {
		row, err := m.rows.next(ctx)
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		m.buffered = append(m.buffered, row)
	}
	m.preloaded = true
	return nil
}

func (m *Mutation) nextRow(ctx *Context) (*block.ItemBlock, error) {
	if m.accumulate {
		if err := m.preload(ctx); err != nil {
			return nil, err
		}
		if m.bufPos >= len(m.buffered) {
			return nil, nil
		}
		row := m.buffered[m.bufPos]
		m.bufPos++
		return row, nil
	}
	return m.rows.next(ctx)
}

// apply executes one row's write and returns the output row values
// (nrRegs long), or (nil, nil) if the row's failure was tolerated and
// nothing should be emitted for it.
// apply assumes the plan lays registers out as [carried...][keyReg]
// [valueReg?][outReg?]: everything before the first register the
// mutation itself consumes is copied through unchanged.
func (m *Mutation) apply(ctx *Context, row *block.ItemBlock) ([]block.Value, error) {
	out := make([]block.Value, m.nrRegs)
	carry := m.keyReg
	if carry < 0 {
		carry = m.valueReg
	}
	for c := 0; c < carry; c++ {
		out[c] = row.GetValue(0, c).Clone()
	}

	var result block.ShapedDoc
	var oldDoc block.ShapedDoc
	var haveOld bool
	var werr error

	switch m.kind {
	case MutationRemove:
		key, err := extractKey(row.GetValue(0, m.keyReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		if m.outReg >= 0 {
			if d, e := m.tx.ReadSingle(m.h, key); e == nil {
				oldDoc, haveOld = d, true
			}
		}
		werr = m.tx.Remove(m.h, key, m.opts.Tx)
		result = oldDoc

	case MutationInsert:
		doc, err := asDoc(row.GetValue(0, m.valueReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		doc = cloneDocShallow(doc)
		if m.fromReg >= 0 {
			doc["_from"] = fmt.Sprintf("%v", row.GetValue(0, m.fromReg).Native())
		}
		if m.toReg >= 0 {
			doc["_to"] = fmt.Sprintf("%v", row.GetValue(0, m.toReg).Native())
		}
		result, werr = m.tx.Create(m.h, doc, m.opts.Tx)

	case MutationUpdate:
		key, err := extractKey(row.GetValue(0, m.keyReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		patch, err := asDoc(row.GetValue(0, m.valueReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		if m.outReg >= 0 && m.opts.ReturnOld {
			if d, e := m.tx.ReadSingle(m.h, key); e == nil {
				oldDoc, haveOld = d, true
			}
		}
		result, werr = m.tx.Update(m.h, key, patch, m.withExpectedRev(row.GetValue(0, m.valueReg)))

	case MutationReplace:
		key, err := extractKey(row.GetValue(0, m.keyReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		doc, err := asDoc(row.GetValue(0, m.valueReg))
		if err != nil {
			return m.fail(ctx, err)
		}
		if m.outReg >= 0 && m.opts.ReturnOld {
			if d, e := m.tx.ReadSingle(m.h, key); e == nil {
				oldDoc, haveOld = d, true
			}
		}
		result, werr = m.tx.Replace(m.h, key, doc, m.withExpectedRev(row.GetValue(0, m.valueReg)))
	}

	if werr != nil {
		notFound := errors.Is(werr, txn.ErrDocumentNotFound)
		if (notFound && (m.opts.IgnoreDocumentNotFound || m.opts.IgnoreErrors)) || (!notFound && m.opts.IgnoreErrors) {
			ctx.Stats.WritesIgnored++
			return nil, nil
		}
		return nil, werr
	}
	ctx.Stats.WritesExecuted++

	if m.outReg >= 0 {
		if m.opts.ReturnOld && haveOld {
			out[m.outReg] = block.NewShaped(oldDoc)
		} else {
			out[m.outReg] = block.NewShaped(result)
		}
	}
	return out, nil
}

// withExpectedRev copies m.opts.Tx and sets Policy.IfMatchRev to the
// "_rev" precondition carried on valueVal (the patch for Update, the
// replacement document for Replace), leaving
// Policy.IgnoreRevisionMismatch at whatever the operator was
// constructed with. valueVal carrying no "_rev" clears the
// precondition for this row, matching a write with no `_rev` in the
// AQL patch/document expression.
func (m *Mutation) withExpectedRev(valueVal block.Value) txn.MutationOptions {
	opts := m.opts.Tx
	opts.Policy.IfMatchRev = extractRev(valueVal)
	return opts
}

func (m *Mutation) fail(ctx *Context, err error) ([]block.Value, error) {
	if m.opts.IgnoreErrors {
		ctx.Stats.WritesIgnored++
		return nil, nil
	}
	return nil, err
}

func cloneDocShallow(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+2)
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (m *Mutation) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if m.done {
		return nil, nil
	}
	out := block.NewItemBlock(m.nrRegs)
	for out.Rows() < atMost {
		row, err := m.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if row == nil {
			m.done = true
			break
		}
		vals, err := m.apply(ctx, row)
		if err != nil {
			return nil, err
		}
		if vals == nil {
			continue
		}
		out.AppendRow(vals)
	}
	if out.Rows() == 0 {
		return nil, nil
	}
	return clearKilled(m, out), nil
}

func (m *Mutation) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	n := 0
	for n < atMost {
		blk, err := m.GetSome(ctx, 1, 1)
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

func (m *Mutation) HasMore(ctx *Context) (bool, error) { return !m.done, nil }

func (m *Mutation) Remaining(ctx *Context) (int64, bool) { return 0, false }

func (m *Mutation) Shutdown(ctx *Context, code int) error { return m.in.Shutdown(ctx, code) }

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
	"fmt"
	"strings"

	"github.com/dociq/aqlengine/block"
)

// hashGroup accumulates one group's state for HashCollect, mirroring
// Collect's per-group bookkeeping but keyed by a hash instead of
// relying on sort order.
type hashGroup struct {
	keyVals []block.Value
	count   int64
	objects []map[string]any
	values  []any
}

// HashCollect is the unsorted counterpart to Collect: COLLECT ...
// OPTIONS {method: "hash"} in the original system (SPEC_FULL.md §5),
// grounded in the teacher's vm/hash_aggregate.go hash-table grouping
// reworked to row/register semantics. Unlike Collect it does not
// require pre-sorted input, at the cost of materializing the entire
// input before any group can be emitted.
type HashCollect struct {
	in          Operator
	nrRegs      int
	regsToClear block.RegisterSet

	groupRegs []int
	outRegs   []int

	mode     CollectMode
	outReg   int
	keepVars []KeepVar
	intoExpr Expression

	materialized bool
	order        []string
	groups       map[string]*hashGroup
	emitIdx      int
	done         bool
}

// NewHashCollect builds a HashCollect operator with the same mode
// vocabulary as Collect.
func NewHashCollect(in Operator, nrRegs int, groupRegs, outRegs []int, mode CollectMode, outReg int, keepVars []KeepVar, intoExpr Expression, regsToClear block.RegisterSet) *HashCollect {
	return &HashCollect{
		in: in, nrRegs: nrRegs, regsToClear: regsToClear,
		groupRegs: groupRegs, outRegs: outRegs,
		mode: mode, outReg: outReg, keepVars: keepVars, intoExpr: intoExpr,
	}
}

func (h *HashCollect) NrRegs() int                   { return h.nrRegs }
func (h *HashCollect) RegsToClear() block.RegisterSet { return h.regsToClear }

func (h *HashCollect) Initialize(ctx *Context) error { return h.in.Initialize(ctx) }

func (h *HashCollect) InitializeCursor(ctx *Context, items *block.ItemBlock, pos int) error {
	h.materialized = false
	h.order = nil
	h.groups = nil
	h.emitIdx = 0
	h.done = false
	return h.in.InitializeCursor(ctx, items, pos)
}

// groupKey builds a string from the %T and %v text of each group
// register. For scalar keys (the common case) two rows get the same
// string exactly when they carry the same values. fmt prints map keys
// in sorted order, so equal objects give equal strings, but elements
// nested in arrays and objects are printed without their type, so
// e.g. [1] and ["1"] give the same string and fall into one group.
func groupKey(row *block.ItemBlock, groupRegs []int) string {
	var sb strings.Builder
	for _, reg := range groupRegs {
		v := row.GetValue(0, reg).Native()
		fmt.Fprintf(&sb, "%T:%v|", v, v)
	}
	return sb.String()
}

func (h *HashCollect) materialize(ctx *Context) error {
	if h.materialized {
		return nil
	}
	h.groups = make(map[string]*hashGroup)
	rows := newRowCursor(h.in)
	sawAny := false
	for {
		row, err := rows.next(ctx)
		if err != nil {
			return err
		}
		if row == nil {
			break
		}
		sawAny = true
		key := groupKey(row, h.groupRegs)
		g, ok := h.groups[key]
		if !ok {
			g = &hashGroup{keyVals: make([]block.Value, len(h.groupRegs))}
			for i, reg := range h.groupRegs {
				g.keyVals[i] = row.GetValue(0, reg).Clone()
			}
			h.groups[key] = g
			h.order = append(h.order, key)
		}
		g.count++
		switch h.mode {
		case CollectIntoVars:
			obj := make(map[string]any, len(h.keepVars))
			for _, kv := range h.keepVars {
				obj[kv.Name] = row.GetValue(0, kv.Register).Native()
			}
			g.objects = append(g.objects, obj)
		case CollectIntoExpr:
			v, err := Eval(h.intoExpr, runtimeOf(ctx), Row{Block: row, Index: 0})
			if err == nil {
				g.values = append(g.values, v.Native())
			}
		}
	}
	if !sawAny && len(h.groupRegs) == 0 {
		h.order = append(h.order, "")
		h.groups[""] = &hashGroup{}
	}
	h.materialized = true
	return nil
}

func (h *HashCollect) emit(key string) []block.Value {
	g := h.groups[key]
	row := make([]block.Value, h.nrRegs)
	for i, reg := range h.outRegs {
		row[reg] = g.keyVals[i]
	}
	switch h.mode {
	case CollectCount:
		row[h.outReg] = block.NewJSON(float64(g.count))
	case CollectIntoVars:
		arr := make([]any, len(g.objects))
		for i, o := range g.objects {
			arr[i] = o
		}
		row[h.outReg] = block.NewJSON(arr)
	case CollectIntoExpr:
		row[h.outReg] = block.NewJSON(append([]any(nil), g.values...))
	}
	return row
}

func (h *HashCollect) GetSome(ctx *Context, atLeast, atMost int) (*block.ItemBlock, error) {
	if err := ctx.ThrowIfKilled(); err != nil {
		return nil, err
	}
	if h.done {
		return nil, nil
	}
	if err := h.materialize(ctx); err != nil {
		return nil, err
	}
	if h.emitIdx >= len(h.order) {
		h.done = true
		return nil, nil
	}
	out := block.NewItemBlock(h.nrRegs)
	for h.emitIdx < len(h.order) && out.Rows() < atMost {
		out.AppendRow(h.emit(h.order[h.emitIdx]))
		h.emitIdx++
	}
	if h.emitIdx >= len(h.order) {
		h.done = true
	}
	return clearKilled(h, out), nil
}

func (h *HashCollect) SkipSome(ctx *Context, atLeast, atMost int) (int, error) {
	if err := h.materialize(ctx); err != nil {
		return 0, err
	}
	n := 0
	for h.emitIdx < len(h.order) && n < atMost {
		h.emitIdx++
		n++
	}
	if h.emitIdx >= len(h.order) {
		h.done = true
	}
	return n, nil
}

func (h *HashCollect) HasMore(ctx *Context) (bool, error) {
	if err := h.materialize(ctx); err != nil {
		return false, err
	}
	return h.emitIdx < len(h.order), nil
}

func (h *HashCollect) Remaining(ctx *Context) (int64, bool) {
	if !h.materialized {
		return 0, false
	}
	return int64(len(h.order) - h.emitIdx), true
}

func (h *HashCollect) Shutdown(ctx *Context, code int) error { return h.in.Shutdown(ctx, code) }

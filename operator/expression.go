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

// Row is the read-only view of one input row an Expression evaluates
// against: the registers of the current block at the current
// position.
type Row struct {
	Block *block.ItemBlock
	Index int
}

// Get returns the value in register reg of the current row.
func (r Row) Get(reg int) block.Value {
	return r.Block.GetValue(r.Index, reg)
}

// Expression is the external collaborator consumed for evaluating
// calculation/filter/bound expressions (spec.md §1, "out of scope":
// the expression evaluator). The planner and optimizer that produce
// expr.Node-like trees are likewise external; this engine only calls
// through this interface.
type Expression interface {
	// Execute evaluates the expression against row, using rt (which
	// may be nil) to enter/exit a scripting runtime if IsV8 is true.
	Execute(rt ScriptRuntime, row Row) (block.Value, error)

	// IsV8 reports whether Execute requires a scripting runtime to be
	// entered first.
	IsV8() bool

	// Invalidate is called after Execute in a clustered instance so
	// the expression can drop any runtime-local cached state before
	// being reused by a different worker thread (§4.7, §6).
	Invalidate()
}

// VariableRef is the detectable "reference mode" case of Calculation
// (§4.7): an expression that is nothing but a single variable lookup.
// Calculation special-cases this by asserting Expression against this
// interface once at construction, instead of per row.
type VariableRef interface {
	Expression
	// RefRegister returns the register holding the referenced
	// variable, so Calculation can copy the column (and its
	// collection tag) without calling Execute at all.
	RefRegister() int
}

// withRuntime runs fn with rt entered (if required) and guarantees
// Exit (and, in a cluster worker, Invalidate) on every return path,
// including a panic, matching §4.7's "enter on entry, exit on all
// return paths including exceptions".
func withRuntime(rt ScriptRuntime, needsRuntime bool, invalidate func(), fn func() (block.Value, error)) (block.Value, error) {
	if !needsRuntime || rt == nil {
		return fn()
	}
	if err := rt.Enter(); err != nil {
		return block.Value{}, err
	}
	defer func() {
		rt.Exit()
		if rt.InvalidateOnExit() && invalidate != nil {
			invalidate()
		}
	}()
	return fn()
}

// Eval is the helper every expression-consuming operator uses instead
// of calling expr.Execute directly, so the enter/exit/invalidate
// discipline lives in one place.
func Eval(expr Expression, rt ScriptRuntime, row Row) (block.Value, error) {
	return withRuntime(rt, expr.IsV8(), expr.Invalidate, func() (block.Value, error) {
		return expr.Execute(rt, row)
	})
}

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

package block

// RegisterPlan is the slot assignment computed once per query plan
// during compilation (outside this engine's scope; it is handed in by
// the planner) and shared, immutable, among every operator instance
// of a query.
type RegisterPlan struct {
	// vars maps a variable name to its (depth, register) location.
	vars map[string]VarLocation
	// nrRegs[d] is the number of columns visible at depth d (i.e. the
	// column count of any block flowing out of an operator at depth d).
	nrRegs []int
	// nrRegsHere[d] is the number of columns first introduced at depth d.
	nrRegsHere []int
	// regsToClear[nodeID] is the kill-set for the operator with that
	// plan-node id.
	regsToClear map[int]RegisterSet
}

// VarLocation is where a variable's value lives within a block.
type VarLocation struct {
	Depth    int
	Register int
}

// NewRegisterPlan builds an empty plan with room for maxDepth+1 depths.
func NewRegisterPlan(maxDepth int) *RegisterPlan {
	return &RegisterPlan{
		vars:        make(map[string]VarLocation),
		nrRegs:      make([]int, maxDepth+1),
		nrRegsHere:  make([]int, maxDepth+1),
		regsToClear: make(map[int]RegisterSet),
	}
}

// Bind records that variable name lives at (depth, register), and
// that depth's running column counts include it.
func (p *RegisterPlan) Bind(name string, depth, register int) {
	p.vars[name] = VarLocation{Depth: depth, Register: register}
	if register+1 > p.nrRegs[depth] {
		p.nrRegs[depth] = register + 1
	}
	p.nrRegsHere[depth]++
}

// Lookup returns the location of a bound variable.
func (p *RegisterPlan) Lookup(name string) (VarLocation, bool) {
	loc, ok := p.vars[name]
	return loc, ok
}

// NrRegs returns the number of columns in any block produced at the
// given depth.
func (p *RegisterPlan) NrRegs(depth int) int {
	if depth < 0 || depth >= len(p.nrRegs) {
		return 0
	}
	return p.nrRegs[depth]
}

// NrRegsHere returns the number of columns first introduced at depth.
func (p *RegisterPlan) NrRegsHere(depth int) int {
	if depth < 0 || depth >= len(p.nrRegsHere) {
		return 0
	}
	return p.nrRegsHere[depth]
}

// SetRegsToClear assigns the kill-set for a plan node.
func (p *RegisterPlan) SetRegsToClear(nodeID int, regs RegisterSet) {
	p.regsToClear[nodeID] = regs
}

// RegsToClear returns the kill-set for a plan node (the empty set if
// none was assigned).
func (p *RegisterPlan) RegsToClear(nodeID int) RegisterSet {
	return p.regsToClear[nodeID]
}

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

import "testing"

func TestSliceSharesPayload(t *testing.T) {
	b := NewItemBlock(1)
	b.AppendRow([]Value{NewJSON(map[string]any{"v": 1.0})})
	b.AppendRow([]Value{NewJSON(map[string]any{"v": 2.0})})

	s := b.Slice(0, 2)
	if s.Rows() != 2 || s.NrRegs() != 1 {
		t.Fatalf("unexpected slice shape %dx%d", s.Rows(), s.NrRegs())
	}
	// after Slice, both the source row and the sliced row reference
	// the same jsonBox, so soleOwner should report false.
	if s.GetValue(0, 0).soleOwner() {
		t.Fatalf("expected shared payload after Slice to not be sole-owned")
	}
}

func TestStealEmptiesSource(t *testing.T) {
	b := NewItemBlock(1)
	b.AppendRow([]Value{NewJSON("hello")})

	stolen := b.Steal(0, 1)
	if !b.GetValue(0, 0).IsEmpty() {
		t.Fatalf("Steal should have left the source slot Empty")
	}
	if stolen.GetValue(0, 0).JSON() != "hello" {
		t.Fatalf("stolen value mismatch")
	}
}

func TestStealRowsPicksSubset(t *testing.T) {
	b := NewItemBlock(2)
	b.AppendRow([]Value{NewJSON(1.0), NewJSON("a")})
	b.AppendRow([]Value{NewJSON(2.0), NewJSON("b")})
	b.AppendRow([]Value{NewJSON(3.0), NewJSON("c")})

	out := b.StealRows([]int{0, 2})
	if out.Rows() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Rows())
	}
	if out.GetValue(0, 1).JSON() != "a" || out.GetValue(1, 1).JSON() != "c" {
		t.Fatalf("StealRows picked wrong rows")
	}
	if !b.GetValue(0, 0).IsEmpty() || !b.GetValue(2, 1).IsEmpty() {
		t.Fatalf("StealRows should empty the chosen source slots")
	}
	if b.GetValue(1, 0).JSON() != 2.0 {
		t.Fatalf("StealRows should leave untouched rows intact")
	}
}

func TestConcatenate(t *testing.T) {
	a := NewItemBlock(1)
	a.AppendRow([]Value{NewJSON(1.0)})
	b := NewItemBlock(1)
	b.AppendRow([]Value{NewJSON(2.0)})
	b.AppendRow([]Value{NewJSON(3.0)})

	out := Concatenate([]*ItemBlock{a, b})
	if out.Rows() != 3 {
		t.Fatalf("expected 3 rows, got %d", out.Rows())
	}
	want := []float64{1.0, 2.0, 3.0}
	for i, w := range want {
		if out.GetValue(i, 0).JSON() != w {
			t.Fatalf("row %d: got %v want %v", i, out.GetValue(i, 0).JSON(), w)
		}
	}
}

func TestClearRegisters(t *testing.T) {
	b := NewItemBlock(2)
	b.AppendRow([]Value{NewJSON(1.0), NewJSON(2.0)})
	b.ClearRegisters(NewRegisterSet(1))
	if b.GetValue(0, 0).IsEmpty() {
		t.Fatalf("register 0 should be untouched")
	}
	if !b.GetValue(0, 1).IsEmpty() {
		t.Fatalf("register 1 should have been cleared")
	}
}

func TestShrink(t *testing.T) {
	b := NewItemBlock(1)
	for i := 0; i < 5; i++ {
		b.AppendRow([]Value{NewJSON(float64(i))})
	}
	b.Shrink(2)
	if b.Rows() != 2 {
		t.Fatalf("expected 2 rows after Shrink, got %d", b.Rows())
	}
}

func TestEqualRoundTripShape(t *testing.T) {
	a := NewItemBlock(1)
	a.AppendRow([]Value{NewJSON(map[string]any{"x": 1.0})})
	b := a.Clone()
	if !Equal(a, b) {
		t.Fatalf("clone should be equal to original")
	}
	b.SetValue(0, 0, NewJSON(map[string]any{"x": 2.0}))
	if Equal(a, b) {
		t.Fatalf("mutated clone should differ")
	}
}

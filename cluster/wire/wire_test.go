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

package wire

import (
	"testing"

	"github.com/dociq/aqlengine/block"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	b := block.NewItemBlock(3)
	b.SetCollectionTag(1, 7)
	b.AppendRow([]block.Value{
		block.NewJSON(map[string]any{"a": 1.0, "b": "x"}),
		block.NewShaped(block.ShapedDoc{Key: "42", Doc: map[string]any{"v": true}}),
		block.NewRange(3, 9),
	})
	b.AppendRow([]block.Value{
		block.Empty(),
		block.NewShaped(block.ShapedDoc{Key: "43", Doc: map[string]any{"v": false}}),
		block.NewJSON([]any{1.0, 2.0, 3.0}),
	})

	data, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !block.Equal(b, got) {
		t.Fatalf("round trip mismatch:\nwant %#v\ngot  %#v", b, got)
	}
	if got.CollectionTag(1) != 7 {
		t.Errorf("want collection tag 7, got %d", got.CollectionTag(1))
	}
}

func TestEncodeNilBlock(t *testing.T) {
	data, err := Encode(nil)
	if err != nil || data != nil {
		t.Fatalf("want (nil, nil), got (%v, %v)", data, err)
	}
	out, err := Decode(data)
	if err != nil || out != nil {
		t.Fatalf("want (nil, nil) round trip, got (%v, %v)", out, err)
	}
}

func TestEncodeDocVec(t *testing.T) {
	inner := block.NewItemBlock(1)
	inner.AppendRow([]block.Value{block.NewJSON("nested")})
	b := block.NewItemBlock(1)
	b.AppendRow([]block.Value{block.NewDocVec([]*block.ItemBlock{inner})})

	data, err := Encode(b)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	dv := got.GetValue(0, 0).DocVecVal()
	if len(dv.Blocks) != 1 || dv.Blocks[0].GetValue(0, 0).JSON() != "nested" {
		t.Fatalf("docvec round trip mismatch: %#v", dv)
	}
}

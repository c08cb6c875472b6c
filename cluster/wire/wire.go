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

// Package wire implements the serialized ItemBlock format of spec.md
// §6: "a self-describing object with register count, per-column
// collection tags, row count, and a per-column value list." The
// teacher's own self-describing encoding (ion.Buffer/ion.Symtab) is
// not carried into this module (see DESIGN.md); the wire shape below
// is JSON, matching the same "self-describing object" requirement,
// compressed with zstd the way the teacher's blockfmt package
// compresses columnar data on disk.
package wire

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/dociq/aqlengine/block"
)

// kind mirrors block.Kind in the wire format; it is re-declared
// rather than imported so the on-wire integers are pinned
// independently of any future reordering of block.Kind's iota.
type kind uint8

const (
	kEmpty kind = iota
	kJSON
	kShaped
	kRange
	kDocVec
)

type wireValue struct {
	Kind   kind             `json:"k"`
	JSON   any              `json:"j,omitempty"`
	SKey   string           `json:"sk,omitempty"`
	SDoc   map[string]any   `json:"sd,omitempty"`
	RLow   int64            `json:"rl,omitempty"`
	RHigh  int64            `json:"rh,omitempty"`
	DocVec []wireBlock      `json:"dv,omitempty"`
}

type wireBlock struct {
	NrRegs int             `json:"n"`
	Rows   int             `json:"r"`
	Tags   []uint32        `json:"t"`
	Cells  []wireValue     `json:"c"` // row-major, len == Rows*NrRegs
}

// Encode serializes b into the wire format and compresses it with
// zstd. It returns (nil, nil) for a nil block, matching GetSome's
// "exhausted" convention so Remote can distinguish "no more rows"
// from "zero-row block" at the transport layer.
func Encode(b *block.ItemBlock) ([]byte, error) {
	if b == nil {
		return nil, nil
	}
	raw, err := json.Marshal(toWireBlock(b))
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}
	enc := acquireEncoder()
	defer releaseEncoder(enc)
	return enc.EncodeAll(raw, nil), nil
}

// Decode reverses Encode. A nil/empty payload decodes to a nil block.
func Decode(data []byte) (*block.ItemBlock, error) {
	if len(data) == 0 {
		return nil, nil
	}
	dec := acquireDecoder()
	defer releaseDecoder(dec)
	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("wire: decompress: %w", err)
	}
	var wb wireBlock
	if err := json.Unmarshal(raw, &wb); err != nil {
		return nil, fmt.Errorf("wire: decode: %w", err)
	}
	return fromWireBlock(wb), nil
}

func toWireBlock(b *block.ItemBlock) wireBlock {
	nrRegs := b.NrRegs()
	rows := b.Rows()
	tags := make([]uint32, nrRegs)
	for c := 0; c < nrRegs; c++ {
		tags[c] = uint32(b.CollectionTag(c))
	}
	cells := make([]wireValue, 0, rows*nrRegs)
	for r := 0; r < rows; r++ {
		for c := 0; c < nrRegs; c++ {
			cells = append(cells, toWireValue(b.GetValue(r, c)))
		}
	}
	return wireBlock{NrRegs: nrRegs, Rows: rows, Tags: tags, Cells: cells}
}

func fromWireBlock(wb wireBlock) *block.ItemBlock {
	b := block.NewItemBlock(wb.NrRegs)
	for c, t := range wb.Tags {
		b.SetCollectionTag(c, block.CollectionTag(t))
	}
	if wb.NrRegs == 0 {
		for r := 0; r < wb.Rows; r++ {
			b.AppendRow(nil)
		}
		return b
	}
	for r := 0; r < wb.Rows; r++ {
		vals := make([]block.Value, wb.NrRegs)
		for c := 0; c < wb.NrRegs; c++ {
			vals[c] = fromWireValue(wb.Cells[r*wb.NrRegs+c])
		}
		b.AppendRow(vals)
	}
	return b
}

func toWireValue(v block.Value) wireValue {
	switch v.Kind() {
	case block.KindEmpty:
		return wireValue{Kind: kEmpty}
	case block.KindJSON:
		return wireValue{Kind: kJSON, JSON: v.JSON()}
	case block.KindShaped:
		s := v.Shaped()
		return wireValue{Kind: kShaped, SKey: s.Key, SDoc: s.Doc}
	case block.KindRange:
		rg := v.RangeVal()
		return wireValue{Kind: kRange, RLow: rg.Low, RHigh: rg.High}
	case block.KindDocVec:
		dv := v.DocVecVal()
		blocks := make([]wireBlock, len(dv.Blocks))
		for i, bl := range dv.Blocks {
			blocks[i] = toWireBlock(bl)
		}
		return wireValue{Kind: kDocVec, DocVec: blocks}
	default:
		return wireValue{Kind: kEmpty}
	}
}

func fromWireValue(wv wireValue) block.Value {
	switch wv.Kind {
	case kJSON:
		return block.NewJSON(wv.JSON)
	case kShaped:
		return block.NewShaped(block.ShapedDoc{Key: wv.SKey, Doc: wv.SDoc})
	case kRange:
		return block.NewRange(wv.RLow, wv.RHigh)
	case kDocVec:
		blocks := make([]*block.ItemBlock, len(wv.DocVec))
		for i, wb := range wv.DocVec {
			blocks[i] = fromWireBlock(wb)
		}
		return block.NewDocVec(blocks)
	default:
		return block.Empty()
	}
}

// zstd encoders/decoders are expensive to construct and explicitly
// documented by klauspost/compress as safe for concurrent reuse, so
// the cluster transport keeps one of each around instead of building
// one per RPC call.
var (
	encoderPool = sync.Pool{New: func() any {
		e, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			panic(err)
		}
		return e
	}}
	decoderPool = sync.Pool{New: func() any {
		d, err := zstd.NewReader(nil)
		if err != nil {
			panic(err)
		}
		return d
	}}
)

func acquireEncoder() *zstd.Encoder { return encoderPool.Get().(*zstd.Encoder) }
func releaseEncoder(e *zstd.Encoder) { encoderPool.Put(e) }
func acquireDecoder() *zstd.Decoder { return decoderPool.Get().(*zstd.Decoder) }
func releaseDecoder(d *zstd.Decoder) { decoderPool.Put(d) }

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

// Package shard implements Distribute's routing function (spec.md
// §4.14): a keyed hash of a document's shard-key attribute tuple,
// picking one of N client indices, plus the ShardLocator capability
// that tells a plan which attributes a target collection shards on.
package shard

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dchest/siphash"
	"github.com/google/uuid"

	"github.com/dociq/aqlengine/block"
)

// ErrKeyNotAllowed is returned by Route when the target collection
// shards on attributes other than the default "_key" and the input
// document already carries a "_key" (spec.md §4.14: "if the
// collection shards on non-_key attributes, reject inputs that
// already carry a _key").
var ErrKeyNotAllowed = errors.New("shard: document carries _key but collection shards on other attributes")

// Locator reports the shard-key attribute tuple of a collection, the
// same way the original engine's ClusterInfo/CollectionInfo does.
type Locator interface {
	// ShardKeys returns the attribute names a collection's default
	// sharding hashes on, in order. A single-element ["_key"] slice
	// means "default sharding on _key".
	ShardKeys(collection string) []string
}

// Router picks, for each input document, which of nrClients shard
// clients should receive it, injecting a generated _key when the
// collection uses default sharding and the document doesn't carry one.
type Router struct {
	locator    Locator
	collection string
	nrClients  int
	// seed is the keyed-hash key (siphash takes two uint64 halves);
	// zero is fine for a single query's lifetime since the only
	// requirement is a stable routing function across the clients of
	// one Distribute instance, not cross-query unguessability.
	k0, k1 uint64
}

// NewRouter builds a Router for nrClients shard clients of the named
// collection.
func NewRouter(locator Locator, collection string, nrClients int, k0, k1 uint64) *Router {
	return &Router{locator: locator, collection: collection, nrClients: nrClients, k0: k0, k1: k1}
}

// Route determines the destination client index for doc, injecting a
// generated "_key" into doc when the collection shards by default and
// doc has none. It returns the (possibly mutated) document and the
// destination client index.
func (r *Router) Route(doc map[string]any) (map[string]any, int, error) {
	keys := r.locator.ShardKeys(r.collection)
	if len(keys) == 0 {
		keys = []string{"_key"}
	}
	_, hasKey := doc["_key"]
	defaultSharding := len(keys) == 1 && keys[0] == "_key"

	if defaultSharding && !hasKey {
		doc = cloneShallow(doc)
		doc["_key"] = uuid.NewString()
	} else if !defaultSharding && hasKey {
		return doc, 0, ErrKeyNotAllowed
	}

	h := r.hashAttrs(doc, keys)
	return doc, int(h % uint64(r.nrClients)), nil
}

// RouteValue is the block.Value-typed counterpart of Route, used by
// Distribute when the input row's document column is a Value rather
// than a bare map (the common case: a Shaped or JSON row column).
func (r *Router) RouteValue(v block.Value) (block.Value, int, error) {
	doc, err := docOf(v)
	if err != nil {
		return v, 0, err
	}
	routed, client, err := r.Route(doc)
	if err != nil {
		return v, 0, err
	}
	if routed == nil {
		return v, client, nil
	}
	return block.NewJSON(routed), client, nil
}

func docOf(v block.Value) (map[string]any, error) {
	switch v.Kind() {
	case block.KindShaped:
		return v.Shaped().Doc, nil
	case block.KindJSON:
		if m, ok := v.JSON().(map[string]any); ok {
			return m, nil
		}
	}
	return nil, fmt.Errorf("shard: cannot route a %s value", v.Kind())
}

func (r *Router) hashAttrs(doc map[string]any, keys []string) uint64 {
	var buf []byte
	for _, k := range keys {
		buf = appendAttr(buf, doc[k])
	}
	return siphash.Hash(r.k0, r.k1, buf)
}

// appendAttr encodes a shard-key attribute value into buf in a form
// stable enough for routing purposes (exact byte-for-byte canonical
// encoding is not required, only that equal values produce equal
// bytes within one Router's lifetime).
func appendAttr(buf []byte, v any) []byte {
	switch x := v.(type) {
	case nil:
		return append(buf, 0)
	case bool:
		if x {
			return append(buf, 1, 1)
		}
		return append(buf, 1, 0)
	case float64:
		var tmp [8]byte
		binary.BigEndian.PutUint64(tmp[:], uint64(int64(x)))
		return append(append(buf, 2), tmp[:]...)
	case string:
		return append(append(buf, 3), x...)
	default:
		return append(append(buf, 4), fmt.Sprintf("%v", x)...)
	}
}

func cloneShallow(m map[string]any) map[string]any {
	out := make(map[string]any, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

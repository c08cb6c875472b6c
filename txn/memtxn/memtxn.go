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

// Package memtxn is a small in-memory Transaction used by the
// engine's own tests and by the S1-S6 scenario tests in
// engine/scenario_test.go. It is not meant to be a production
// storage engine -- a real deployment backs txn.Transaction with a
// real collection/MVCC/WAL layer, which is explicitly out of scope
// (spec.md §1).
package memtxn

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/dociq/aqlengine/block"
	"github.com/dociq/aqlengine/txn"
)

// Store is the whole in-memory database: a set of named collections.
type Store struct {
	mu   sync.Mutex
	cols map[string]*collection
	next uint64
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{cols: make(map[string]*collection)}
}

// Collection creates (if absent) and returns the named collection,
// for test setup convenience.
func (s *Store) Collection(name string) *collection {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cols[name]
	if !ok {
		c = &collection{
			name: name,
			tag:  block.CollectionTag(len(s.cols) + 1),
			byKey: make(map[string]int),
		}
		s.cols[name] = c
	}
	return c
}

// collection holds documents in insertion order; removed slots are
// tombstoned (nil) rather than compacted, so outstanding barriers
// never observe a reused index.
type collection struct {
	mu      sync.Mutex
	name    string
	tag     block.CollectionTag
	docs    []map[string]any // insertion order; byKey maps a key to its index
	byKey   map[string]int
	barrier int // outstanding barrier count
	nextRev uint64
}

func (c *collection) Name() string             { return c.name }
func (c *collection) Tag() block.CollectionTag { return c.tag }

// newRev allocates the next "_rev" for this collection. Callers hold
// c.mu.
func (c *collection) newRev() string {
	c.nextRev++
	return strconv.FormatUint(c.nextRev, 10)
}

// Seed inserts a document with an explicit key, for test fixtures.
func (c *collection) Seed(key string, doc map[string]any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := cloneDoc(doc)
	cp["_key"] = key
	cp["_id"] = c.name + "/" + key
	cp["_rev"] = c.newRev()
	c.byKey[key] = len(c.docs)
	c.docs = append(c.docs, cp)
}

// Txn is the txn.Transaction implementation backed by a Store.
type Txn struct {
	store *Store
}

// New wraps a Store as a Transaction.
func New(s *Store) *Txn { return &Txn{store: s} }

func (t *Txn) TrxCollection(name string) (txn.Handle, error) {
	return t.store.Collection(name), nil
}

type memBarrier struct{ c *collection }

func (b *memBarrier) Release() {
	b.c.mu.Lock()
	b.c.barrier--
	b.c.mu.Unlock()
}

func (t *Txn) OrderBarrier(h txn.Handle) (txn.Barrier, error) {
	c := h.(*collection)
	c.mu.Lock()
	c.barrier++
	c.mu.Unlock()
	return &memBarrier{c: c}, nil
}

func (t *Txn) ReadSingle(h txn.Handle, key string) (block.ShapedDoc, error) {
	c := h.(*collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byKey[key]
	if !ok || c.docs[i] == nil {
		return block.ShapedDoc{}, txn.ErrDocumentNotFound
	}
	return block.ShapedDoc{Key: key, Doc: cloneDoc(c.docs[i])}, nil
}

func (t *Txn) Create(h txn.Handle, doc map[string]any, opts txn.MutationOptions) (block.ShapedDoc, error) {
	c := h.(*collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	key, _ := doc["_key"].(string)
	if key == "" {
		t.store.mu.Lock()
		t.store.next++
		key = strconv.FormatUint(t.store.next, 10)
		t.store.mu.Unlock()
	}
	if _, exists := c.byKey[key]; exists {
		return block.ShapedDoc{}, fmt.Errorf("memtxn: duplicate key %q", key)
	}
	cp := cloneDoc(doc)
	cp["_key"] = key
	cp["_id"] = c.name + "/" + key
	cp["_rev"] = c.newRev()
	c.byKey[key] = len(c.docs)
	c.docs = append(c.docs, cp)
	return block.ShapedDoc{Key: key, Doc: cloneDoc(cp)}, nil
}

func (t *Txn) Remove(h txn.Handle, key string, opts txn.MutationOptions) error {
	c := h.(*collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byKey[key]
	if !ok || c.docs[i] == nil {
		return txn.ErrDocumentNotFound
	}
	c.docs[i] = nil
	delete(c.byKey, key)
	return nil
}

func (t *Txn) Update(h txn.Handle, key string, patch map[string]any, opts txn.MutationOptions) (block.ShapedDoc, error) {
	c := h.(*collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byKey[key]
	if !ok || c.docs[i] == nil {
		return block.ShapedDoc{}, txn.ErrDocumentNotFound
	}
	if err := checkRevPolicy(c.docs[i], opts.Policy); err != nil {
		return block.ShapedDoc{}, err
	}
	merged := cloneDoc(c.docs[i])
	for k, v := range patch {
		if v == nil && opts.NullMeansRemove {
			delete(merged, k)
			continue
		}
		if opts.MergeObjects {
			if sub, ok := merged[k].(map[string]any); ok {
				if psub, ok := v.(map[string]any); ok {
					merged[k] = mergeMaps(sub, psub)
					continue
				}
			}
		}
		merged[k] = v
	}
	merged["_rev"] = c.newRev()
	c.docs[i] = merged
	return block.ShapedDoc{Key: key, Doc: cloneDoc(merged)}, nil
}

func (t *Txn) Replace(h txn.Handle, key string, doc map[string]any, opts txn.MutationOptions) (block.ShapedDoc, error) {
	c := h.(*collection)
	c.mu.Lock()
	defer c.mu.Unlock()
	i, ok := c.byKey[key]
	if !ok || c.docs[i] == nil {
		return block.ShapedDoc{}, txn.ErrDocumentNotFound
	}
	if err := checkRevPolicy(c.docs[i], opts.Policy); err != nil {
		return block.ShapedDoc{}, err
	}
	cp := cloneDoc(doc)
	cp["_key"] = key
	cp["_id"] = c.name + "/" + key
	cp["_rev"] = c.newRev()
	c.docs[i] = cp
	return block.ShapedDoc{Key: key, Doc: cloneDoc(cp)}, nil
}

// checkRevPolicy enforces WritePolicy.IfMatchRev against stored's
// current "_rev", the in-memory analogue of a real storage engine's
// optimistic-concurrency precondition check (SPEC_FULL.md §5,
// "ignoreRevs"). Callers hold the collection's mutex.
func checkRevPolicy(stored map[string]any, policy txn.WritePolicy) error {
	if policy.IfMatchRev == "" || policy.IgnoreRevisionMismatch {
		return nil
	}
	if cur, _ := stored["_rev"].(string); cur != policy.IfMatchRev {
		return txn.ErrRevisionMismatch
	}
	return nil
}

func (t *Txn) ResolveID(id string) (txn.Handle, string, error) {
	parts := strings.SplitN(id, "/", 2)
	if len(parts) != 2 {
		return nil, "", fmt.Errorf("memtxn: malformed _id %q", id)
	}
	h, _ := t.TrxCollection(parts[0])
	return h, parts[1], nil
}

func (t *Txn) Index(h txn.Handle, name string) (txn.Index, error) {
	c := h.(*collection)
	switch {
	case name == "primary":
		return &primaryIndex{c: c}, nil
	case strings.HasPrefix(name, "edge:"):
		return &edgeIndex{c: c}, nil
	case strings.HasPrefix(name, "hash:"):
		return &hashIndex{c: c, attrs: strings.Split(name[len("hash:"):], ",")}, nil
	case strings.HasPrefix(name, "skiplist:"):
		return &skiplistIndex{c: c, attrs: strings.Split(name[len("skiplist:"):], ",")}, nil
	default:
		return nil, fmt.Errorf("memtxn: no such index %q", name)
	}
}

func cloneDoc(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func mergeMaps(a, b map[string]any) map[string]any {
	out := cloneDoc(a)
	for k, v := range b {
		out[k] = v
	}
	return out
}

// liveDocs returns the non-tombstoned documents in insertion order.
func (c *collection) liveDocs() []map[string]any {
	out := make([]map[string]any, 0, len(c.docs))
	for _, d := range c.docs {
		if d != nil {
			out = append(out, d)
		}
	}
	return out
}

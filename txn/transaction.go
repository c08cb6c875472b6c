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

// Package txn declares the storage-layer interfaces the execution
// engine consumes. The storage engine itself (collections, MVCC, the
// WAL) is out of scope for this module; everything here is the
// narrow surface the operator package calls through.
package txn

import (
	"errors"

	"github.com/dociq/aqlengine/block"
)

// Errors returned by Transaction methods. Operators translate these
// into the engine.ErrorKind policy described in the design notes.
var (
	ErrDocumentNotFound    = errors.New("txn: document not found")
	ErrDocumentHandleBad   = errors.New("txn: bad document handle")
	ErrDocumentKeyMissing  = errors.New("txn: document key missing")
	ErrDocumentTypeInvalid = errors.New("txn: document is not an object")

	// ErrRevisionMismatch is returned by Update/Replace when
	// WritePolicy.IfMatchRev is set, does not match the stored
	// document's current "_rev", and IgnoreRevisionMismatch is false.
	ErrRevisionMismatch = errors.New("txn: revision mismatch")
)

// Handle is an opaque reference to a collection obtained from a
// Transaction, analogous to a trxCollection(cid) result.
type Handle interface {
	// Name returns the collection's name, for diagnostics.
	Name() string
	// Tag returns the CollectionTag this handle resolves to when a
	// Shaped value is produced by a scan/index operator over it.
	Tag() block.CollectionTag
}

// WritePolicy controls conflict handling for Update/Replace.
type WritePolicy struct {
	// IfMatchRev is the caller's expected current "_rev" of the
	// document being written, extracted from the input patch/document
	// (see SPEC_FULL.md §5, "ignoreRevs"). Empty means no precondition
	// is supplied, regardless of IgnoreRevisionMismatch.
	IfMatchRev string

	// IgnoreRevisionMismatch disables the IfMatchRev precondition
	// check entirely: the write proceeds even if the stored document's
	// "_rev" differs from IfMatchRev. Zero value means the precondition
	// (when IfMatchRev is non-empty) is enforced and a mismatch fails
	// the write with ErrRevisionMismatch.
	IgnoreRevisionMismatch bool
}

// MutationOptions configures Update/Merge semantics that are common
// to mutation operators.
type MutationOptions struct {
	NullMeansRemove bool
	MergeObjects    bool
	WaitForSync     bool
	Policy          WritePolicy
}

// Barrier is a scoped token that prevents reclamation of documents a
// scan/index operator may still reference. It must be released
// exactly once, on every exit path (including panics, via a deferred
// Release), mirroring the teacher's scope-guard convention for
// collection barriers.
type Barrier interface {
	Release()
}

// Transaction is the storage-layer collaborator consumed by the
// execution engine. An implementation backs every scan, index-range,
// and mutation operator.
type Transaction interface {
	// TrxCollection resolves a collection name to a Handle.
	TrxCollection(name string) (Handle, error)

	// OrderBarrier installs a barrier on h for the caller's lifetime.
	OrderBarrier(h Handle) (Barrier, error)

	// ReadSingle looks up one document by key. It returns
	// ErrDocumentNotFound if absent.
	ReadSingle(h Handle, key string) (block.ShapedDoc, error)

	// Create inserts doc (a map[string]any) and returns the stored
	// document, which may have generated fields (e.g. _key) filled in.
	Create(h Handle, doc map[string]any, opts MutationOptions) (block.ShapedDoc, error)

	// Remove deletes the document with the given key.
	Remove(h Handle, key string, opts MutationOptions) error

	// Update applies patch on top of the existing document (merge
	// semantics controlled by opts) and returns the new document.
	// If opts.Policy.IfMatchRev is set and does not match the stored
	// document's "_rev", it returns ErrRevisionMismatch unless
	// opts.Policy.IgnoreRevisionMismatch is true.
	Update(h Handle, key string, patch map[string]any, opts MutationOptions) (block.ShapedDoc, error)

	// Replace overwrites the document with doc and returns the new
	// document. Same IfMatchRev precondition as Update.
	Replace(h Handle, key string, doc map[string]any, opts MutationOptions) (block.ShapedDoc, error)

	// ResolveID parses a cross-collection "_id" (of the form
	// "collection/key") into a handle and bare key, for Primary index
	// lookups on `_id`.
	ResolveID(id string) (Handle, string, error)

	// Scanner opens a full-collection scan. mode selects linear vs
	// random traversal order (§4.3).
	Scanner(h Handle, mode ScanMode) (DocumentScanner, error)

	// Index resolves a named index on a collection to its iterator
	// factory (§4.5). It returns an error equivalent to IndexNotFound
	// if no such index exists.
	Index(h Handle, name string) (Index, error)
}

// ScanMode selects EnumerateCollection's traversal order.
type ScanMode uint8

const (
	// ScanLinear visits documents in stable document order.
	ScanLinear ScanMode = iota
	// ScanRandom visits documents in an implementation-defined order
	// with roughly uniform coverage.
	ScanRandom
)

// DocumentScanner is a batch-oriented full-collection cursor.
type DocumentScanner interface {
	// Next fills dst with up to len(dst) documents and returns the
	// number filled. A short (or zero) count means the scan is
	// exhausted.
	Next(dst []block.ShapedDoc) (int, error)
	Close() error
}
